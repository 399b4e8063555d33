package changefeed

import (
	"encoding/json"
	"fmt"
	"time"

	"spesedonut/internal/core"
)

// Envelope is the wire form of a batch.
type Envelope struct {
	Changes     []Change  `json:"changes"`
	PublishedAt time.Time `json:"published_at"`
}

type Change struct {
	Kind   string `json:"kind"`
	Record Record `json:"record"`
}

type Record struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CostCents int64  `json:"cost_cents"`
}

// Encode serialises a batch. Delta order is preserved.
func Encode(batch core.Batch, publishedAt time.Time) ([]byte, error) {
	env := Envelope{
		Changes:     make([]Change, len(batch)),
		PublishedAt: publishedAt.UTC(),
	}
	for i, d := range batch {
		env.Changes[i] = Change{
			Kind: d.Kind.String(),
			Record: Record{
				ID:        d.Record.ID,
				Name:      d.Record.Name,
				CostCents: d.Record.Cost.Cents,
			},
		}
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal change batch: %w", err)
	}
	return data, nil
}

// Decode parses a batch. Unknown kinds are kept as-is so the replica can skip them.
func Decode(data []byte) (core.Batch, time.Time, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal change batch: %w", err)
	}
	batch := make(core.Batch, len(env.Changes))
	for i, c := range env.Changes {
		batch[i] = core.NewDelta(core.ChangeKind(c.Kind), core.ExpenseRecord{
			ID:   c.Record.ID,
			Name: c.Record.Name,
			Cost: core.Money{Cents: c.Record.CostCents},
		})
	}
	return batch, env.PublishedAt, nil
}
