package backend

import (
	"fmt"

	"spesedonut/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	feedType := FeedType(appConfig.FeedBackend)
	if !feedType.IsValid() {
		return Config{}, fmt.Errorf("invalid feed type in config: %s", appConfig.FeedBackend)
	}

	return Config{
		Type: backendType,
		Feed: feedType,

		SQLiteDBPath:  appConfig.SQLiteDBPath,
		DataDirectory: appConfig.SeedDir,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		RedisAddr:    appConfig.RedisAddr,
		RedisChannel: appConfig.RedisChannel,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.Feed.IsValid() {
		return fmt.Errorf("invalid feed type: %s", c.Feed)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data" if empty
	}

	switch c.Feed {
	case AMQPFeed:
		if c.AMQPURL == "" || c.AMQPExchange == "" {
			return fmt.Errorf("AMQP URL and exchange are required for amqp feed")
		}
	case RedisFeed:
		if c.RedisAddr == "" || c.RedisChannel == "" {
			return fmt.Errorf("Redis address and channel are required for redis feed")
		}
	}

	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	return []string{MemoryBackend.String(), SQLiteBackend.String()}
}

// GetFeedTypeStrings returns all valid feed type strings
func GetFeedTypeStrings() []string {
	return []string{LocalFeed.String(), AMQPFeed.String(), RedisFeed.String()}
}
