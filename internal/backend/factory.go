package backend

import (
	"context"
	"fmt"

	"spesedonut/internal/amqp"
	"spesedonut/internal/changefeed"
	"spesedonut/internal/log"
	"spesedonut/internal/memory"
	"spesedonut/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*StoreResult, error) {
	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteStore(config)
	case MemoryBackend:
		return f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteStore(config Config) (*StoreResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &StoreResult{
		Store:   repo,
		Pinger:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) (*StoreResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &StoreResult{Store: store}, nil
}

// CreateFeed implements Factory.CreateFeed
func (f *DefaultFactory) CreateFeed(ctx context.Context, config Config) (*FeedResult, error) {
	var bus changefeed.Bus
	switch config.Feed {
	case LocalFeed:
		bus = changefeed.NewLocal(config.LocalBuffer)
		f.logger.Info("Initialized in-process change feed")

	case AMQPFeed:
		client, err := amqp.NewClient(ctx, config.AMQPURL, config.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP change feed: %w", err)
		}
		f.logger.Info("Initialized AMQP change feed", "exchange", config.AMQPExchange)
		bus = client

	case RedisFeed:
		rb, err := changefeed.NewRedisBus(ctx, config.RedisAddr, config.RedisChannel, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis change feed: %w", err)
		}
		f.logger.Info("Initialized Redis change feed", "addr", config.RedisAddr, "channel", config.RedisChannel)
		bus = rb

	default:
		return nil, fmt.Errorf("unsupported feed type: %s", config.Feed)
	}

	return &FeedResult{Bus: bus, Cleanup: bus.Close}, nil
}
