// Package sequence hands out per-name ticket numbers. Numbers come from
// an atomic counter in the backing store so two tickets opened at the
// same moment never share a name.
package sequence

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Sequencer returns the next number for name, starting at 1
type Sequencer interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Postgres keeps counters in the counters table
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres creates a counter backed by db
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Next increments and returns the counter for name
func (p *Postgres) Next(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value
	`

	var value int64
	err := p.db.QueryRowxContext(ctx, query, name).Scan(&value)

	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}

	return value, nil
}

// KeyPrefix namespaces the Redis counter keys
const KeyPrefix = "hireatutor:seq:"

// Redis keeps counters as Redis integers
type Redis struct {
	client *redis.Client
}

// NewRedis connects to addr and checks the connection
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client}, nil
}

// Next increments and returns the counter for name
func (r *Redis) Next(ctx context.Context, name string) (int64, error) {
	value, err := r.client.Incr(ctx, KeyPrefix+name).Result()

	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}

	return value, nil
}

// Close closes the Redis connection
func (r *Redis) Close() error {
	return r.client.Close()
}

// Memory keeps counters in process; numbers restart with the process
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemory creates an empty in-process counter
func NewMemory() *Memory {
	return &Memory{counters: make(map[string]int64)}
}

// Next increments and returns the counter for name
func (m *Memory) Next(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[name]++
	return m.counters[name], nil
}
