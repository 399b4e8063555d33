package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"spesedonut/internal/changefeed"
	"spesedonut/internal/core"
	"spesedonut/internal/log"
	"spesedonut/internal/metrics"
)

// ExpenseService is the command layer: it validates input, writes to the
// remote store and announces every successful write on the change feed.
//
// Writes are serialized: a command holds mu from its store write until its
// delta is published, so the feed carries deltas in store order.
type ExpenseService struct {
	store   ExpenseStore
	feed    changefeed.Publisher
	metrics *metrics.Metrics
	logger  *log.Logger
	timeout time.Duration

	mu sync.Mutex
}

type Option func(*ExpenseService)

// WithTimeout bounds every remote store call.
func WithTimeout(d time.Duration) Option {
	return func(s *ExpenseService) { s.timeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ExpenseService) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *ExpenseService) { s.logger = l }
}

func NewExpenseService(store ExpenseStore, feed changefeed.Publisher, opts ...Option) *ExpenseService {
	s := &ExpenseService{store: store, feed: feed}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentExpense)
	return s
}

// UpdateInput carries a partial update; nil fields keep their current value.
type UpdateInput struct {
	Name *string
	Cost *core.Money
}

// CreateExpense validates and stores a new expense, then publishes an Added delta.
func (s *ExpenseService) CreateExpense(ctx context.Context, name string, cost core.Money) (core.ExpenseRecord, error) {
	name = strings.TrimSpace(name)
	if err := (core.ExpenseRecord{Name: name, Cost: cost}).Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := withTimeout(ctx, s.timeout, func(ctx context.Context) (core.ExpenseRecord, error) {
		return s.store.Create(ctx, name, cost)
	})
	s.metrics.Command("create", err)
	if err != nil {
		return core.ExpenseRecord{}, &core.RemoteError{Op: "create", Err: err}
	}

	s.publish(ctx, core.NewDelta(core.Added, rec))
	return rec, nil
}

// UpdateExpense applies a partial update, then publishes a Modified delta.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id string, in UpdateInput) (core.ExpenseRecord, error) {
	if strings.TrimSpace(id) == "" {
		return core.ExpenseRecord{}, core.ErrEmptyID
	}

	// Held from the read so a concurrent update cannot slip in between.
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := withTimeout(ctx, s.timeout, func(ctx context.Context) (core.ExpenseRecord, error) {
		return s.store.Get(ctx, id)
	})
	if err != nil {
		return core.ExpenseRecord{}, s.remoteError("update", id, err)
	}

	next := current
	if in.Name != nil {
		next.Name = strings.TrimSpace(*in.Name)
	}
	if in.Cost != nil {
		next.Cost = *in.Cost
	}
	if err := next.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}

	rec, err := withTimeout(ctx, s.timeout, func(ctx context.Context) (core.ExpenseRecord, error) {
		return s.store.Update(ctx, next)
	})
	s.metrics.Command("update", err)
	if err != nil {
		return core.ExpenseRecord{}, s.remoteError("update", id, err)
	}

	s.publish(ctx, core.NewDelta(core.Modified, rec))
	return rec, nil
}

// DeleteExpense removes an expense, then publishes a Removed delta.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := withTimeout(ctx, s.timeout, func(ctx context.Context) (core.ExpenseRecord, error) {
		return s.store.Delete(ctx, id)
	})
	s.metrics.Command("delete", err)
	if err != nil {
		return s.remoteError("delete", id, err)
	}

	s.publish(ctx, core.NewDelta(core.Removed, rec))
	return nil
}

// ListExpenses returns the store's records, used to seed a new replica.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	recs, err := withTimeout(ctx, s.timeout, func(ctx context.Context) ([]core.ExpenseRecord, error) {
		return s.store.List(ctx)
	})
	if err != nil {
		return nil, &core.RemoteError{Op: "list", Err: err}
	}
	return recs, nil
}

// publish never fails the command: the write already happened.
func (s *ExpenseService) publish(ctx context.Context, d core.Delta) {
	if s.feed == nil {
		s.logger.WarnContext(ctx, "Change feed not available, skipping publish", log.FieldExpenseID, d.Record.ID)
		return
	}
	if err := s.feed.Publish(ctx, core.Batch{d}); err != nil {
		s.metrics.PublishFailed()
		s.logger.ErrorContext(ctx, "Failed to publish change",
			log.FieldOperation, log.OpPublish,
			log.FieldExpenseID, d.Record.ID,
			log.FieldChangeKind, d.Kind,
			log.FieldError, err)
	}
}

// remoteError keeps not-found distinguishable from a failed remote call.
func (s *ExpenseService) remoteError(op, id string, err error) error {
	if errors.Is(err, core.ErrRecordNotFound) {
		return fmt.Errorf("%s expense %s: %w", op, id, core.ErrRecordNotFound)
	}
	return &core.RemoteError{Op: op, ID: id, Err: err}
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
