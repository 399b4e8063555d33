package changefeed

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"spesedonut/internal/core"
	"spesedonut/internal/log"
)

// RedisBus publishes batches on a Redis pub/sub channel.
type RedisBus struct {
	logger  *log.Logger
	rdb     *goredis.Client
	channel string
	now     func() time.Time
}

// NewRedisBus connects to addr and checks the connection with a ping.
func NewRedisBus(ctx context.Context, addr, channel string, logger *log.Logger) (*RedisBus, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		return nil, fmt.Errorf("missing redis channel")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisBusWithClient(rdb, channel, logger), nil
}

// NewRedisBusWithClient wraps an existing client.
func NewRedisBusWithClient(rdb *goredis.Client, channel string, logger *log.Logger) *RedisBus {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RedisBus{
		logger:  logger.WithComponent(log.ComponentRedis).With(log.FieldFeed, "redis", "channel", channel),
		rdb:     rdb,
		channel: channel,
		now:     time.Now,
	}
}

func (b *RedisBus) Publish(ctx context.Context, batch core.Batch) error {
	if len(batch) == 0 {
		return nil
	}
	raw, err := Encode(batch, b.now())
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan core.Batch, error) {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan core.Batch)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				batch, _, err := Decode([]byte(m.Payload))
				if err != nil {
					b.logger.WarnContext(ctx, "Bad change batch payload", log.FieldError, err)
					continue
				}
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
