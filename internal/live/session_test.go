package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"spesedonut/internal/changefeed"
	"spesedonut/internal/chart"
	"spesedonut/internal/core"
	"spesedonut/internal/log"
	"spesedonut/internal/sse"
)

type staticSource struct {
	records []core.ExpenseRecord
	err     error
}

func (s staticSource) ListExpenses(context.Context) ([]core.ExpenseRecord, error) {
	return s.records, s.err
}

type recordingHub struct {
	mu   sync.Mutex
	msgs []sse.Message
}

func (h *recordingHub) Broadcast(m sse.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, m)
}

func (h *recordingHub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

func rec(id, name string, cents int64) core.ExpenseRecord {
	return core.ExpenseRecord{ID: id, Name: name, Cost: core.Money{Cents: cents}}
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

type harness struct {
	session *Session
	feed    *changefeed.Local
	hub     *recordingHub
	frames  chan Frame
	errc    chan error
	cancel  context.CancelFunc
}

func start(t *testing.T, src Source) *harness {
	t.Helper()
	h := &harness{
		feed:   changefeed.NewLocal(8),
		hub:    &recordingHub{},
		frames: make(chan Frame, 16),
		errc:   make(chan error, 1),
	}
	h.session = NewSession(Options{
		Feed:    h.feed,
		Source:  src,
		Hub:     h.hub,
		Logger:  quietLogger(),
		OnFrame: func(f Frame) { h.frames <- f },

		RetryDelay: 5 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.errc <- h.session.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		h.feed.Close()
	})
	return h
}

func (h *harness) nextFrame(t *testing.T) Frame {
	t.Helper()
	select {
	case f := <-h.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func TestSessionInitialSnapshot(t *testing.T) {
	h := start(t, staticSource{records: []core.ExpenseRecord{
		rec("1", "Rent", 10000),
		rec("2", "Food", 20000),
		rec("3", "Cinema", 30000),
	}})

	f := h.nextFrame(t)
	if f.Version != 1 {
		t.Fatalf("initial frame version = %d, want 1", f.Version)
	}
	if len(f.Segments) != 3 || f.Segments[0].ID != "1" || f.Segments[2].ID != "3" {
		t.Fatalf("unexpected segments %+v", f.Segments)
	}
	span := f.Segments[2].EndAngle - f.Segments[2].StartAngle
	if math.Abs(span-chart.FullTurn/2) > 1e-9 {
		t.Errorf("third span = %v, want half turn", span)
	}
	if f.Total.Cents != 60000 || f.Total.Units != 600 {
		t.Errorf("total = %+v, want 60000 cents", f.Total)
	}
	for _, tr := range f.Transitions {
		if tr.Phase != string(chart.Enter) {
			t.Errorf("initial transition %s phase = %s, want enter", tr.ID, tr.Phase)
		}
	}
	if !h.session.Ready() {
		t.Error("session should be ready after initial snapshot")
	}
	if got := h.session.Current(); got.Version != 1 {
		t.Errorf("Current().Version = %d, want 1", got.Version)
	}
	if h.hub.len() != 1 {
		t.Errorf("hub received %d messages, want 1", h.hub.len())
	}
}

func TestSessionEmptyStoreStillPublishesFrame(t *testing.T) {
	h := start(t, nil)
	f := h.nextFrame(t)
	if f.Version != 1 || len(f.Segments) != 0 {
		t.Fatalf("unexpected initial frame %+v", f)
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	json.Unmarshal(data, &decoded)
	if _, ok := decoded["segments"].([]any); !ok {
		t.Errorf("segments should encode as an array: %s", data)
	}
}

func TestSessionAppliesBatches(t *testing.T) {
	h := start(t, staticSource{records: []core.ExpenseRecord{rec("1", "Rent", 1000)}})
	h.nextFrame(t)
	ctx := context.Background()

	h.feed.Publish(ctx, core.Batch{
		core.NewDelta(core.Added, rec("2", "Food", 2000)),
		core.NewDelta(core.Modified, rec("1", "Rent", 3000)),
	})
	f := h.nextFrame(t)
	if f.Version != 2 || len(f.Segments) != 2 {
		t.Fatalf("unexpected frame %+v", f)
	}
	if f.Segments[0].ID != "1" || f.Segments[0].Cost.Cents != 3000 {
		t.Errorf("modified record should keep its position: %+v", f.Segments)
	}

	h.feed.Publish(ctx, core.Batch{core.NewDelta(core.Removed, rec("1", "", 0))})
	f = h.nextFrame(t)
	if len(f.Segments) != 1 || f.Segments[0].ID != "2" {
		t.Fatalf("unexpected segments after remove %+v", f.Segments)
	}
	phases := map[string]string{}
	for _, tr := range f.Transitions {
		phases[tr.ID] = tr.Phase
	}
	if phases["1"] != string(chart.Exit) || phases["2"] != string(chart.Update) {
		t.Errorf("unexpected phases %v", phases)
	}

	snap := h.session.Snapshot()
	if len(snap) != 1 || snap[0].ID != "2" {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestSessionSkipsBatchesThatChangeNothing(t *testing.T) {
	h := start(t, nil)
	h.nextFrame(t)
	ctx := context.Background()

	h.feed.Publish(ctx, core.Batch{
		core.NewDelta(core.Removed, rec("ghost", "", 0)),
		core.NewDelta(core.ChangeKind("renamed"), rec("x", "Name", 100)),
	})
	h.feed.Publish(ctx, core.Batch{core.NewDelta(core.Added, rec("1", "Rent", 100))})

	f := h.nextFrame(t)
	if f.Version != 2 || len(f.Segments) != 1 {
		t.Fatalf("ignored batch should not produce a frame, got %+v", f)
	}
}

func TestSessionFeedClosed(t *testing.T) {
	h := start(t, nil)
	h.nextFrame(t)
	h.feed.Close()

	select {
	case err := <-h.errc:
		if !errors.Is(err, ErrFeedClosed) {
			t.Fatalf("Run() error = %v, want ErrFeedClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after feed close")
	}
	if h.session.Ready() {
		t.Error("session should not be ready after Run returns")
	}
}

// droppingFeed hands out subscriptions the test can end one by one.
type droppingFeed struct {
	mu         sync.Mutex
	subs       []chan core.Batch
	failNext   int
	subscribed chan int
}

func newDroppingFeed() *droppingFeed {
	return &droppingFeed{subscribed: make(chan int, 8)}
}

func (f *droppingFeed) Subscribe(context.Context) (<-chan core.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return nil, errors.New("broker unreachable")
	}
	ch := make(chan core.Batch, 4)
	f.subs = append(f.subs, ch)
	f.subscribed <- len(f.subs)
	return ch, nil
}

func (f *droppingFeed) drop(failures int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = failures
	close(f.subs[len(f.subs)-1])
}

func (f *droppingFeed) send(b core.Batch) {
	f.mu.Lock()
	ch := f.subs[len(f.subs)-1]
	f.mu.Unlock()
	ch <- b
}

type mutableSource struct {
	mu      sync.Mutex
	records []core.ExpenseRecord
}

func (s *mutableSource) set(records ...core.ExpenseRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

func (s *mutableSource) ListExpenses(context.Context) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExpenseRecord(nil), s.records...), nil
}

func TestSessionResubscribesWhenSubscriptionEnds(t *testing.T) {
	feed := newDroppingFeed()
	src := &mutableSource{}
	src.set(rec("1", "Rent", 1000), rec("2", "Food", 2000))

	frames := make(chan Frame, 16)
	session := NewSession(Options{
		Feed:       feed,
		Source:     src,
		Logger:     quietLogger(),
		OnFrame:    func(f Frame) { frames <- f },
		RetryDelay: 5 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- session.Run(ctx) }()
	defer cancel()

	next := func() Frame {
		t.Helper()
		select {
		case f := <-frames:
			return f
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frame")
		}
		return Frame{}
	}

	next()
	<-feed.subscribed

	// While disconnected, record 1 is deleted and record 3 created.
	src.set(rec("2", "Food", 2000), rec("3", "Cinema", 3000))
	feed.drop(2)

	select {
	case n := <-feed.subscribed:
		if n != 2 {
			t.Fatalf("subscription count = %d, want 2", n)
		}
	case err := <-errc:
		t.Fatalf("Run() returned %v instead of resubscribing", err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not resubscribe")
	}

	f := next()
	if len(f.Segments) != 2 || f.Segments[0].ID != "2" || f.Segments[1].ID != "3" {
		t.Fatalf("segments after reload = %+v, want [2 3]", f.Segments)
	}
	if !session.Ready() {
		t.Error("session should be ready again after reload")
	}

	feed.send(core.Batch{core.NewDelta(core.Added, rec("4", "Books", 4000))})
	f = next()
	if len(f.Segments) != 3 || f.Segments[2].ID != "4" {
		t.Fatalf("new subscription not drained: %+v", f.Segments)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSessionStopsOnCancel(t *testing.T) {
	h := start(t, nil)
	h.nextFrame(t)
	h.cancel()

	select {
	case err := <-h.errc:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSessionSourceError(t *testing.T) {
	s := NewSession(Options{
		Feed:   changefeed.NewLocal(1),
		Source: staticSource{err: errors.New("store down")},
		Logger: quietLogger(),
	})
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error when initial load fails")
	}
	if s.Current().Version != 0 {
		t.Error("no frame should be published when the initial load fails")
	}
}

func TestFrameETag(t *testing.T) {
	if got := (Frame{Version: 12}).ETag(); got != `"frame-12"` {
		t.Errorf("ETag() = %s", got)
	}
}
