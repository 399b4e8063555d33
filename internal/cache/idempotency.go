package cache

import (
	"time"

	"golang.org/x/sync/singleflight"
)

// Idempotency runs an operation at most once per key within the TTL.
// Concurrent callers with the same key share one execution; failed
// executions are not remembered, so the caller may retry.
type Idempotency[T any] struct {
	results *LRUCache[T]
	group   singleflight.Group
}

func NewIdempotency[T any](maxKeys int, ttl time.Duration) *Idempotency[T] {
	return &Idempotency[T]{results: NewLRUCache[T](maxKeys, ttl)}
}

// Do returns the remembered result for key, or runs fn and remembers it.
// replayed is true when fn was not run for this call.
func (i *Idempotency[T]) Do(key string, fn func() (T, error)) (result T, replayed bool, err error) {
	if key == "" {
		result, err = fn()
		return result, false, err
	}
	if v, ok := i.results.Get(key); ok {
		return v, true, nil
	}

	ran := false
	v, err, _ := i.group.Do(key, func() (any, error) {
		if v, ok := i.results.Get(key); ok {
			return v, nil
		}
		ran = true
		v, err := fn()
		if err != nil {
			return v, err
		}
		i.results.Set(key, v)
		return v, nil
	})
	if v != nil {
		result = v.(T)
	}
	return result, !ran, err
}

// CleanExpired lets a Manager evict stale keys.
func (i *Idempotency[T]) CleanExpired() int {
	return i.results.CleanExpired()
}

func (i *Idempotency[T]) Size() int {
	return i.results.Size()
}
