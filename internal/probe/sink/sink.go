// Package sink persists the outcome of a successful extraction.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/credguard/internal/config"
	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/pkg/logger"
)

// Sink receives extraction records.
type Sink interface {
	Name() string
	Save(ctx context.Context, e domain.Extraction) error
	Close() error
}

// FromConfig builds the enabled sinks.
func FromConfig(cfg config.SinksConfig) ([]Sink, error) {
	var sinks []Sink

	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("file sink enabled without a path")
		}
		sinks = append(sinks, NewFileSink(cfg.File.Path))
	}
	if cfg.Redis.Enabled {
		sinks = append(sinks, NewRedisSink(cfg.Redis))
	}
	if cfg.Log.Enabled {
		sinks = append(sinks, NewLogSink())
	}
	return sinks, nil
}

// FileSink writes the most recent extraction as a JSON document.
type FileSink struct {
	path string
}

// NewFileSink creates a FileSink.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Name returns "file".
func (s *FileSink) Name() string { return "file" }

// Save replaces the file atomically.
func (s *FileSink) Save(_ context.Context, e domain.Extraction) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".extraction-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// Recovered secrets are not world readable.
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Close is a no-op.
func (s *FileSink) Close() error { return nil }

// Setter is the subset of the Redis client used by RedisSink.
type Setter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisSink stores each extraction under prefix+identity.
type RedisSink struct {
	client    Setter
	closer    func() error
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSink creates a RedisSink with its own client.
func NewRedisSink(cfg config.RedisSinkConfig) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &RedisSink{
		client:    client,
		closer:    client.Close,
		keyPrefix: cfg.Redis.KeyPrefix,
		ttl:       cfg.TTL,
	}
}

// NewRedisSinkWithClient creates a RedisSink over an existing client.
func NewRedisSinkWithClient(client Setter, keyPrefix string, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Name returns "redis".
func (s *RedisSink) Name() string { return "redis" }

// Key returns the key an identity is stored under.
func (s *RedisSink) Key(id domain.Identity) string {
	return s.keyPrefix + strconv.FormatInt(int64(id), 10)
}

// Save stores e as JSON.
func (s *RedisSink) Save(ctx context.Context, e domain.Extraction) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.Key(e.Identity), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the client when the sink owns it.
func (s *RedisSink) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// LogSink logs extractions with the secret and token masked.
type LogSink struct{}

// NewLogSink creates a LogSink.
func NewLogSink() *LogSink { return &LogSink{} }

// Name returns "log".
func (s *LogSink) Name() string { return "log" }

// Save logs e.
func (s *LogSink) Save(ctx context.Context, e domain.Extraction) error {
	logger.WithContext(ctx).Info("extraction result",
		logger.String("run_id", e.RunID),
		logger.Int64("user_id", int64(e.Identity)),
		logger.Secret("pin", e.Secret),
		logger.Token("token", e.Token),
		logger.Time("timestamp", e.Timestamp),
	)
	return nil
}

// Close is a no-op.
func (s *LogSink) Close() error { return nil }
