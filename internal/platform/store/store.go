// Package store provides a unified interface to the storage backends
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newswire/internal/platform/logger"
)

// Store is the facade for the configured backends
// zero value is safe but does nothing
type Store struct {
	// Log is the logger used by subclients
	// zero means a no op zerolog logger
	Log logger.Logger

	// PG is the postgres sql seam, nil when disabled
	PG TxRunner

	// Redis is the key value seam, nil when disabled
	Redis KV
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes the minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag is a tiny interface to inspect command results
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repos use for sql
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner wraps transaction execution around a function
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Entry is one key value pair for batched writes
type Entry struct {
	Key string
	Val string
	TTL time.Duration
}

// KV is the narrow key value seam caches and limiters are built on.
// Implementations live under store/redis; tests use in memory fakes.
type KV interface {
	// Get returns the value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes a value with a TTL; ttl <= 0 means no expiry
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	// SetMany writes all entries in one pipeline
	SetMany(ctx context.Context, entries []Entry) error
	// GetMany reads all keys in one pipeline; nil elements are misses
	GetMany(ctx context.Context, keys []string) ([]*string, error)
	// Del removes keys and reports how many existed
	Del(ctx context.Context, keys ...string) (int64, error)
	// Scan walks the keyspace and returns every key matching pattern
	Scan(ctx context.Context, pattern string) ([]string, error)
	// SetNX writes only when the key is absent and reports whether it did
	SetNX(ctx context.Context, key, val string, ttl time.Duration) (bool, error)
	// GetDel atomically reads and removes a key
	GetDel(ctx context.Context, key string) (string, bool, error)
	// IncrBy adds delta to the integer at key, creating it at zero when
	// absent, and returns the new value
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	// SMembers returns all members of a set
	SMembers(ctx context.Context, key string) ([]string, error)
	// SRem removes members from a set
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	// TouchWindow atomically prunes entries older than window from the
	// sorted set at key, inserts one at now, refreshes the expiry and
	// returns the resulting cardinality
	TouchWindow(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the requested backends
// backends not enabled in cfg remain nil on the Store
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	// defaults for zero logger to avoid nil checks
	s.Log = s.Log.With().Logger()

	if cfg.PG.Enabled {
		pgClient, err := openPG(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.PG = pgClient
	}

	if cfg.Redis.Enabled {
		kv, err := openRedis(ctx, cfg)
		if err != nil {
			if s.PG != nil {
				_ = s.Close(ctx)
			}
			return nil, err
		}
		s.Redis = kv
	}

	return s, nil
}

// Guard verifies all configured seams the Store knows about
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	if s.PG != nil {
		if p, ok := any(s.PG).(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("pg: %w", err))
			}
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all initialized backends gracefully
// nil backends are ignored
func (s *Store) Close(ctx context.Context) error {
	var errs []error

	if s.Redis != nil {
		if e := s.Redis.Close(); e != nil {
			errs = append(errs, e)
		}
	}

	if c, ok := s.PG.(interface{ Close() error }); ok {
		if e := c.Close(); e != nil {
			errs = append(errs, e)
		}
	}

	return errors.Join(errs...)
}
