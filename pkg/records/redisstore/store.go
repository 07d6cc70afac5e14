// Package redisstore keeps records as Redis hashes named "<table>:<key>".
package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/autoflow/pkg/records"
)

type Store struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// New wraps an existing client.
func New(client redis.UniversalClient, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, logger *slog.Logger, redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return New(client, logger), nil
}

func hashKey(target records.Target, key string) string {
	return target.Table + ":" + key
}

func (s *Store) Upsert(ctx context.Context, target records.Target, key string, fields map[string]any) error {
	values := make(map[string]any, len(fields)+1)
	values[target.KeyColumn] = key

	for column, value := range fields {
		values[column] = records.Text(value)
	}

	err := s.client.HSet(ctx, hashKey(target, key), values).Err()
	if err != nil {
		return fmt.Errorf("failed to write record %s: %w", hashKey(target, key), err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, target records.Target, key string) (map[string]any, error) {
	values, err := s.client.HGetAll(ctx, hashKey(target, key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", hashKey(target, key), err)
	}

	if len(values) == 0 {
		return nil, records.ErrRecordNotFound
	}

	row := make(map[string]any, len(values))
	for k, v := range values {
		row[k] = v
	}

	return row, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
