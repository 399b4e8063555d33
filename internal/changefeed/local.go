package changefeed

import (
	"context"
	"slices"
	"sync"

	"spesedonut/internal/core"
)

const defaultLocalBuffer = 64

type localSub struct {
	ch   chan core.Batch
	done chan struct{}
	once sync.Once
}

func (s *localSub) stop() {
	s.once.Do(func() { close(s.done) })
}

// Local is an in-process Bus. Publish blocks while a subscriber's buffer is
// full, so no batch is dropped for a subscriber that keeps reading.
type Local struct {
	mu     sync.RWMutex
	subs   map[*localSub]struct{}
	buffer int
	closed bool
}

func NewLocal(buffer int) *Local {
	if buffer <= 0 {
		buffer = defaultLocalBuffer
	}
	return &Local{subs: make(map[*localSub]struct{}), buffer: buffer}
}

func (l *Local) Publish(ctx context.Context, batch core.Batch) error {
	if len(batch) == 0 {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	for s := range l.subs {
		select {
		case s.ch <- slices.Clone(batch):
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context) (<-chan core.Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	s := &localSub{ch: make(chan core.Batch, l.buffer), done: make(chan struct{})}
	l.subs[s] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		l.remove(s)
	}()
	return s.ch, nil
}

// Subscribers returns the number of active subscriptions.
func (l *Local) Subscribers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

func (l *Local) remove(s *localSub) {
	s.stop()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[s]; ok {
		delete(l.subs, s)
		close(s.ch)
	}
}

func (l *Local) Close() error {
	// Unblock publishers waiting on a full buffer before taking the write lock.
	l.mu.RLock()
	for s := range l.subs {
		s.stop()
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for s := range l.subs {
		s.stop()
		delete(l.subs, s)
		close(s.ch)
	}
	return nil
}
