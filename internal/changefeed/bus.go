// Package changefeed carries batches of expense deltas from the command
// side to every live replica. A Bus delivers batches to each subscriber in
// publish order.
package changefeed

import (
	"context"
	"errors"

	"spesedonut/internal/core"
)

var ErrClosed = errors.New("change feed closed")

type Publisher interface {
	Publish(ctx context.Context, batch core.Batch) error
}

type Subscriber interface {
	// Subscribe returns a channel of batches that is closed when ctx ends or the bus closes.
	Subscribe(ctx context.Context) (<-chan core.Batch, error)
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}
