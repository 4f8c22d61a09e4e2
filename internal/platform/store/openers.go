package store

import (
	"context"
	"fmt"
	"time"

	"newswire/internal/platform/store/pg"
	rds "newswire/internal/platform/store/redis"
)

// openPG opens pg and wraps it with our sql adapter
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
	}, tracer, nil)
	if err != nil {
		return nil, err
	}

	if err := pingUntilReady(ctx, p); err != nil {
		p.Close()
		return nil, err
	}

	// publish the adapter only once the pool is healthy
	a := newPGAdapter(p)
	s.PG = a
	return a, nil
}

// pingUntilReady retries against the raw pool (no adapter, no SQL trace
// line) so a database still coming up does not fail the boot
func pingUntilReady(ctx context.Context, p *pg.PG) error {
	const (
		maxAttempts    = 20
		pingTimeout    = 3 * time.Second
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)

	var lastErr error
	backoff := backoffStart
	for i := 0; i < maxAttempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = p.Pool.Ping(toCtx)
		cancel()

		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, backoffCeiling)
	}
	return fmt.Errorf("postgres ping failed after %d attempts: %w", maxAttempts, lastErr)
}

// openRedis opens the go-redis client and verifies it responds
func openRedis(ctx context.Context, cfg Config) (KV, error) {
	c, err := rds.Open(ctx, rds.Config{
		Addr:        cfg.Redis.Addr,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("redis open: %w", err)
	}
	return newKVAdapter(c), nil
}
