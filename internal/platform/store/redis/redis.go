// Package redis adapts github.com/redis/go-redis/v9 to the store key value seam
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Config configures the go-redis client
type Config struct {
	Addr        string
	DB          int
	DialTimeout time.Duration
}

// Entry is one key value pair for batched writes
type Entry struct {
	Key string
	Val string
	TTL time.Duration
}

// Client is a thin go-redis wrapper; the store package adapts it to its
// key value seam the same way it adapts pg
type Client struct {
	c *goredis.Client
}

// Open constructs the client; connectivity is verified by Store.Guard
func Open(_ context.Context, cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: empty addr")
	}
	opt := &goredis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	}
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	return &Client{c: goredis.NewClient(opt)}, nil
}

func (r *Client) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Client) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.c.Set(ctx, key, val, ttl).Err()
}

// SetMany issues all writes in one pipeline; per-command failures are joined
// after every command has been sent
func (r *Client) SetMany(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	cmds, err := r.c.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for _, e := range entries {
			ttl := e.TTL
			if ttl < 0 {
				ttl = 0
			}
			p.Set(ctx, e.Key, e.Val, ttl)
		}
		return nil
	})
	if err != nil {
		return err
	}
	var errs []error
	for _, cmd := range cmds {
		if e := cmd.Err(); e != nil {
			errs = append(errs, e)
		}
	}
	return errors.Join(errs...)
}

// GetMany reads all keys in one pipeline; nil elements are misses
func (r *Client) GetMany(ctx context.Context, keys []string) ([]*string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	gets := make([]*goredis.StringCmd, len(keys))
	_, err := r.c.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for i, k := range keys {
			gets[i] = p.Get(ctx, k)
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, err
	}
	out := make([]*string, len(keys))
	for i, g := range gets {
		v, gerr := g.Result()
		if errors.Is(gerr, goredis.Nil) {
			continue
		}
		if gerr != nil {
			return nil, gerr
		}
		out[i] = &v
	}
	return out, nil
}

func (r *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return r.c.Del(ctx, keys...).Result()
}

// Scan walks the full keyspace with a cursor loop so large prefixes do not
// block the server the way KEYS would
func (r *Client) Scan(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	var cursor uint64
	for {
		keys, next, err := r.c.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

func (r *Client) SetNX(ctx context.Context, key, val string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return r.c.SetNX(ctx, key, val, ttl).Result()
}

func (r *Client) GetDel(ctx context.Context, key string) (string, bool, error) {
	v, err := r.c.GetDel(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return r.c.IncrBy(ctx, key, delta).Result()
}

func (r *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.c.SMembers(ctx, key).Result()
}

func (r *Client) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.c.SRem(ctx, key, args...).Result()
}

// TouchWindow prunes, inserts and counts in one MULTI/EXEC round trip.
// The score is the nanosecond timestamp; the member carries a uuid suffix
// so two admissions landing in the same nanosecond still count separately
func (r *Client) TouchWindow(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	nowNS := now.UnixNano()
	cutoff := nowNS - window.Nanoseconds()

	var card *goredis.IntCmd
	_, err := r.c.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
		p.ZAdd(ctx, key, goredis.Z{
			Score:  float64(nowNS),
			Member: strconv.FormatInt(nowNS, 10) + "-" + uuid.NewString(),
		})
		p.Expire(ctx, key, window)
		card = p.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return card.Val(), nil
}

func (r *Client) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *Client) Close() error {
	return r.c.Close()
}
