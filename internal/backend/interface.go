package backend

import (
	"context"

	"spesedonut/internal/changefeed"
	"spesedonut/internal/services"
)

// Store is the remote expense store the command service writes to.
type Store interface {
	services.ExpenseStore
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// StoreResult contains the store instance and optional cleanup function
type StoreResult struct {
	Store Store
	// Pinger is nil for stores with nothing to check.
	Pinger interface {
		Ping(ctx context.Context) error
	}
	Cleanup CleanupFunc
}

// FeedResult contains the change feed and optional cleanup function
type FeedResult struct {
	Bus     changefeed.Bus
	Cleanup CleanupFunc
}

// Factory creates stores and change feeds based on configuration
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*StoreResult, error)
	CreateFeed(ctx context.Context, config Config) (*FeedResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType
	Feed FeedType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	// Change feed specific
	AMQPURL      string
	AMQPExchange string
	RedisAddr    string
	RedisChannel string
	LocalBuffer  int
}

// BackendType represents the type of data backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// FeedType represents the transport of the change feed
type FeedType string

const (
	LocalFeed FeedType = "local"
	AMQPFeed  FeedType = "amqp"
	RedisFeed FeedType = "redis"
)

func (ft FeedType) String() string {
	return string(ft)
}

func (ft FeedType) IsValid() bool {
	switch ft {
	case LocalFeed, AMQPFeed, RedisFeed:
		return true
	default:
		return false
	}
}
