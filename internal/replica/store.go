// Package replica keeps an ordered local mirror of the expense collection,
// reconciled from the change feed's added/modified/removed deltas.
package replica

import (
	"context"
	"log/slog"
	"sync"

	"spesedonut/internal/core"
)

// Outcome reports what applying a single delta did to the replica.
type Outcome int

const (
	Appended Outcome = iota + 1
	Replaced
	Deleted
	IgnoredNotFound
	IgnoredUnknownKind
)

func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case Replaced:
		return "replaced"
	case Deleted:
		return "deleted"
	case IgnoredNotFound:
		return "ignored_not_found"
	case IgnoredUnknownKind:
		return "ignored_unknown_kind"
	default:
		return "unknown"
	}
}

// Ignored reports whether the delta left the replica unchanged.
func (o Outcome) Ignored() bool {
	return o == IgnoredNotFound || o == IgnoredUnknownKind
}

// Store is the local replica. The change-feed consumer is its only writer;
// HTTP handlers and SSE clients read snapshots concurrently, so a batch is
// applied under the write lock and snapshots never see it half done.
type Store struct {
	mu      sync.RWMutex
	records []core.ExpenseRecord
	index   map[string]int
}

// New returns an empty replica.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Apply applies a single delta. It never fails: unknown kinds and
// modified/removed deltas for absent ids are no-ops.
func (s *Store) Apply(d core.Delta) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(d)
}

// ApplyBatch applies every delta of b in order, atomically with respect to
// Snapshot, and returns one outcome per delta.
func (s *Store) ApplyBatch(ctx context.Context, b core.Batch) []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes := make([]Outcome, len(b))
	for i, d := range b {
		outcomes[i] = s.apply(d)
		if outcomes[i].Ignored() {
			slog.DebugContext(ctx, "Delta ignored",
				"expense_id", d.Record.ID,
				"change_kind", d.Kind.String(),
				"reason", outcomes[i].String())
		}
	}
	return outcomes
}

func (s *Store) apply(d core.Delta) Outcome {
	id := d.Record.ID
	pos, found := s.index[id]

	switch d.Kind {
	case core.Added:
		// A duplicate id overwrites in place so the id stays unique.
		if found {
			s.records[pos] = d.Record
			return Replaced
		}
		s.index[id] = len(s.records)
		s.records = append(s.records, d.Record)
		return Appended

	case core.Modified:
		if !found {
			return IgnoredNotFound
		}
		s.records[pos] = d.Record
		return Replaced

	case core.Removed:
		if !found {
			return IgnoredNotFound
		}
		s.records = append(s.records[:pos], s.records[pos+1:]...)
		delete(s.index, id)
		for i := pos; i < len(s.records); i++ {
			s.index[s.records[i].ID] = i
		}
		return Deleted

	default:
		return IgnoredUnknownKind
	}
}

// Snapshot returns a copy of the records in insertion order.
func (s *Store) Snapshot() []core.ExpenseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.ExpenseRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (core.ExpenseRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return core.ExpenseRecord{}, false
	}
	return s.records[pos], true
}

// Len returns the number of records currently mirrored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
