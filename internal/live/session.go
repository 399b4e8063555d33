// Package live runs the single consumer loop that keeps the replica in
// step with the change feed and republishes the chart after every batch.
package live

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"spesedonut/internal/changefeed"
	"spesedonut/internal/chart"
	"spesedonut/internal/core"
	"spesedonut/internal/log"
	"spesedonut/internal/metrics"
	"spesedonut/internal/replica"
	"spesedonut/internal/sse"
)

var ErrFeedClosed = errors.New("change feed closed")

const (
	defaultRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

// Source lists the remote store's records to seed the replica.
type Source interface {
	ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error)
}

// Broadcaster receives every new frame.
type Broadcaster interface {
	Broadcast(msg sse.Message)
}

type Options struct {
	Feed      changefeed.Subscriber
	Source    Source
	Replica   *replica.Store
	Projector *chart.Projector
	Hub       Broadcaster
	Metrics   *metrics.Metrics
	Logger    *log.Logger
	// OnFrame, when set, is called from the consumer goroutine after each frame.
	OnFrame func(Frame)
	// RetryDelay is the first pause before resubscribing; it doubles up to 30s.
	RetryDelay time.Duration
}

type Session struct {
	feed      changefeed.Subscriber
	source    Source
	replica   *replica.Store
	projector *chart.Projector
	hub       Broadcaster
	metrics   *metrics.Metrics
	logger    *log.Logger
	onFrame   func(Frame)
	now       func() time.Time

	retryDelay time.Duration

	mu      sync.RWMutex
	current Frame
	version uint64
	ready   atomic.Bool
}

func NewSession(opts Options) *Session {
	s := &Session{
		feed:      opts.Feed,
		source:    opts.Source,
		replica:   opts.Replica,
		projector: opts.Projector,
		hub:       opts.Hub,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		onFrame:   opts.OnFrame,
		now:       time.Now,

		retryDelay: opts.RetryDelay,
	}
	if s.retryDelay <= 0 {
		s.retryDelay = defaultRetryDelay
	}

	if s.replica == nil {
		s.replica = replica.New()
	}
	if s.projector == nil {
		s.projector = chart.NewProjector(chart.DefaultConfig())
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentLive)
	s.current = NewFrame(0, s.projector.Config(), chart.Projection{}, s.now())
	return s
}

// Run subscribes, seeds the replica from the source and then applies batches
// until ctx ends. Subscribing first means no change made during the initial
// load is missed; replaying it is harmless because a duplicate Added
// overwrites and stale Modified/Removed deltas are no-ops.
//
// A subscription that ends while ctx is live is replaced: the session backs
// off, subscribes again and reloads the store. Only a closed bus stops it.
func (s *Session) Run(ctx context.Context) error {
	defer s.ready.Store(false)

	batches, stop, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if stop != nil {
			stop()
		}
	}()
	s.logger.InfoContext(ctx, "Live session started", log.FieldReplicaSize, s.replica.Len())

	for {
		s.drain(ctx, batches)
		if ctx.Err() != nil {
			return nil
		}
		s.ready.Store(false)
		stop()
		s.logger.WarnContext(ctx, "Change feed subscription ended, resubscribing")

		batches, stop, err = s.reconnect(ctx)
		if err != nil || batches == nil {
			return err
		}
		s.logger.InfoContext(ctx, "Live session resubscribed", log.FieldReplicaSize, s.replica.Len())
	}
}

// connect subscribes and brings the replica in line with the source. The
// returned stop ends the subscription.
func (s *Session) connect(ctx context.Context) (<-chan core.Batch, context.CancelFunc, error) {
	subCtx, stop := context.WithCancel(ctx)
	batches, err := s.feed.Subscribe(subCtx)
	if err != nil {
		stop()
		if errors.Is(err, changefeed.ErrClosed) {
			return nil, nil, ErrFeedClosed
		}
		return nil, nil, fmt.Errorf("subscribe change feed: %w", err)
	}

	var records []core.ExpenseRecord
	if s.source != nil {
		records, err = s.source.ListExpenses(ctx)
		if err != nil {
			stop()
			return nil, nil, fmt.Errorf("load initial snapshot: %w", err)
		}
	}
	s.handle(ctx, s.resync(records), true)
	s.ready.Store(true)
	return batches, stop, nil
}

// reconnect retries connect with exponential backoff until it succeeds, the
// bus is closed or ctx ends. It returns a nil channel when ctx ends.
func (s *Session) reconnect(ctx context.Context) (<-chan core.Batch, context.CancelFunc, error) {
	delay := s.retryDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, nil, nil
		case <-time.After(delay):
		}

		batches, stop, err := s.connect(ctx)
		if err == nil {
			return batches, stop, nil
		}
		if errors.Is(err, ErrFeedClosed) {
			return nil, nil, err
		}
		if ctx.Err() != nil {
			return nil, nil, nil
		}
		s.logger.WarnContext(ctx, "Resubscribe failed, retrying",
			"attempt", attempt,
			"retry_in", delay,
			log.FieldError, err)
		delay = min(delay*2, maxRetryDelay)
	}
}

// drain applies batches until the subscription ends or ctx is done.
func (s *Session) drain(ctx context.Context, batches <-chan core.Batch) {
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Live session stopped", "reason", ctx.Err())
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			s.handle(ctx, b, false)
		}
	}
}

// resync turns a full store listing into one batch: Removed for replica
// records the store no longer has, then Added for every listed record.
// On first load the replica is empty and only Added deltas are produced.
func (s *Session) resync(records []core.ExpenseRecord) core.Batch {
	listed := make(map[string]struct{}, len(records))
	for _, r := range records {
		listed[r.ID] = struct{}{}
	}
	var b core.Batch
	for _, r := range s.replica.Snapshot() {
		if _, ok := listed[r.ID]; !ok {
			b = append(b, core.NewDelta(core.Removed, r))
		}
	}
	for _, r := range records {
		b = append(b, core.NewDelta(core.Added, r))
	}
	return b
}

// handle is the non-preemptible unit: apply, project, publish.
func (s *Session) handle(ctx context.Context, b core.Batch, force bool) {
	outcomes := s.replica.ApplyBatch(ctx, b)

	changed := force
	for i, o := range outcomes {
		if o.Ignored() {
			s.metrics.DeltaIgnored(o.String())
			continue
		}
		changed = true
		s.metrics.DeltaApplied(b[i].Kind.String())
	}
	if !changed {
		s.logger.DebugContext(ctx, "Batch left replica unchanged", log.FieldBatchSize, len(b))
		return
	}

	snapshot := s.replica.Snapshot()
	s.metrics.BatchApplied(len(snapshot))
	projection := s.projector.Project(snapshot)

	s.mu.Lock()
	s.version++
	frame := NewFrame(s.version, s.projector.Config(), projection, s.now())
	s.current = frame
	s.mu.Unlock()

	s.metrics.FrameProjected(frame.Version)
	s.logger.DebugContext(ctx, "Batch applied",
		log.FieldBatchSize, len(b),
		log.FieldReplicaSize, len(snapshot),
		log.FieldVersion, frame.Version)

	if s.hub != nil {
		s.hub.Broadcast(FrameMessage(frame))
	}
	if s.onFrame != nil {
		s.onFrame(frame)
	}
}

// FrameMessage wraps a frame for the SSE hub.
func FrameMessage(f Frame) sse.Message {
	return sse.Message{Event: sse.EventFrame, ID: strconv.FormatUint(f.Version, 10), Data: f}
}

// Current returns the latest frame.
func (s *Session) Current() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Snapshot returns the replica's current records.
func (s *Session) Snapshot() []core.ExpenseRecord {
	return s.replica.Snapshot()
}

// Ready reports whether the initial snapshot has been loaded and the loop is running.
func (s *Session) Ready() bool {
	return s.ready.Load()
}
