package store

import (
	"context"
	"time"

	rds "newswire/internal/platform/store/redis"
)

// kvAdapter wraps redis.Client and implements KV
// it exists so the redis subpackage stays free of store types, mirroring pg
type kvAdapter struct {
	c *rds.Client
}

func newKVAdapter(c *rds.Client) *kvAdapter { return &kvAdapter{c: c} }

func (a *kvAdapter) Get(ctx context.Context, key string) (string, bool, error) {
	return a.c.Get(ctx, key)
}

func (a *kvAdapter) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return a.c.Set(ctx, key, val, ttl)
}

func (a *kvAdapter) SetMany(ctx context.Context, entries []Entry) error {
	out := make([]rds.Entry, len(entries))
	for i, e := range entries {
		out[i] = rds.Entry{Key: e.Key, Val: e.Val, TTL: e.TTL}
	}
	return a.c.SetMany(ctx, out)
}

func (a *kvAdapter) GetMany(ctx context.Context, keys []string) ([]*string, error) {
	return a.c.GetMany(ctx, keys)
}

func (a *kvAdapter) Del(ctx context.Context, keys ...string) (int64, error) {
	return a.c.Del(ctx, keys...)
}

func (a *kvAdapter) Scan(ctx context.Context, pattern string) ([]string, error) {
	return a.c.Scan(ctx, pattern)
}

func (a *kvAdapter) SetNX(ctx context.Context, key, val string, ttl time.Duration) (bool, error) {
	return a.c.SetNX(ctx, key, val, ttl)
}

func (a *kvAdapter) GetDel(ctx context.Context, key string) (string, bool, error) {
	return a.c.GetDel(ctx, key)
}

func (a *kvAdapter) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return a.c.IncrBy(ctx, key, delta)
}

func (a *kvAdapter) SMembers(ctx context.Context, key string) ([]string, error) {
	return a.c.SMembers(ctx, key)
}

func (a *kvAdapter) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	return a.c.SRem(ctx, key, members...)
}

func (a *kvAdapter) TouchWindow(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	return a.c.TouchWindow(ctx, key, now, window)
}

func (a *kvAdapter) Ping(ctx context.Context) error { return a.c.Ping(ctx) }

func (a *kvAdapter) Close() error { return a.c.Close() }
