// Package storycache provides the two tier story cache over the key value seam
package storycache

import (
	"context"
	"strconv"
	"time"

	"newswire/internal/platform/config"
	"newswire/internal/platform/logger"
	"newswire/internal/platform/store"
)

const (
	defaultNamespace  = "hn"
	defaultPrimaryTTL = 900 * time.Second

	// backup entries outlive their primary by a fixed multiple
	backupRatio = 4

	// refresh lock sits slightly above the expected fetch duration
	refreshLockTTL = 30 * time.Second

	// IndexKey is the logical key of the story index
	IndexKey = "stories"
)

// Config for the cache
type Config struct {
	Namespace  string
	PrimaryTTL time.Duration
}

// FromConfig reads cache settings from the env backed config
func FromConfig(cfg config.Conf) Config {
	c := cfg.Prefix("CACHE_")
	return Config{
		Namespace:  c.MayString("NAMESPACE", defaultNamespace),
		PrimaryTTL: c.MayDuration("PRIMARY_TTL", defaultPrimaryTTL),
	}
}

// Cache reads and writes primary plus backup entry pairs
// the backup tier keeps serving when the primary expired and the upstream
// has no fresh data to offer
type Cache struct {
	kv  store.KV
	cfg Config
	log logger.Logger
	now func() time.Time
}

// New constructs a Cache with defaults applied
func New(kv store.KV, cfg Config) *Cache {
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	if cfg.PrimaryTTL <= 0 {
		cfg.PrimaryTTL = defaultPrimaryTTL
	}
	return &Cache{
		kv:  kv,
		cfg: cfg,
		log: *logger.Named("storycache"),
		now: time.Now,
	}
}

// Key returns the namespaced primary key for a logical key
func (c *Cache) Key(key string) string { return c.cfg.Namespace + ":" + key }

func (c *Cache) backupKey(key string) string { return c.Key(key) + ":backup" }

func (c *Cache) lastUpdatedKey(key string) string { return c.Key(key) + ":last_updated" }

func (c *Cache) lockKey() string { return c.cfg.Namespace + ":refreshing" }

// BackupTTL is the TTL applied to backup entries
func (c *Cache) BackupTTL() time.Duration { return c.cfg.PrimaryTTL * backupRatio }

// Get reads a logical key, preferring primary over backup.
// Callers cannot tell which tier served the read. Store errors are logged
// and degrade to a miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	vals, err := c.kv.GetMany(ctx, []string{c.Key(key), c.backupKey(key)})
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return "", false
	}
	for _, v := range vals {
		if v != nil {
			return *v, true
		}
	}
	return "", false
}

// Set writes primary and backup in one pipeline.
// Both writes are issued even if one fails; a partial failure leaves the
// tiers transiently divergent, which readers tolerate.
func (c *Cache) Set(ctx context.Context, key, payload string) error {
	err := c.kv.SetMany(ctx, []store.Entry{
		{Key: c.Key(key), Val: payload, TTL: c.cfg.PrimaryTTL},
		{Key: c.backupKey(key), Val: payload, TTL: c.BackupTTL()},
	})
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write partially failed")
	}
	return err
}

// Touch bumps the last updated marker for a logical key
func (c *Cache) Touch(ctx context.Context, key string) error {
	millis := strconv.FormatInt(c.now().UnixMilli(), 10)
	return c.kv.Set(ctx, c.lastUpdatedKey(key), millis, c.cfg.PrimaryTTL)
}

// GetMany reads many logical keys in one pipelined round trip covering both
// tiers. Keys absent from both tiers are simply absent from the result.
func (c *Cache) GetMany(ctx context.Context, keys []string) map[string]string {
	if len(keys) == 0 {
		return map[string]string{}
	}
	flat := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		flat = append(flat, c.Key(k), c.backupKey(k))
	}
	vals, err := c.kv.GetMany(ctx, flat)
	if err != nil {
		c.log.Warn().Err(err).Int("keys", len(keys)).Msg("cache batch read failed, treating as misses")
		return map[string]string{}
	}
	out := make(map[string]string, len(keys))
	for i, k := range keys {
		if v := vals[i*2]; v != nil {
			out[k] = *v
			continue
		}
		if v := vals[i*2+1]; v != nil {
			out[k] = *v
		}
	}
	return out
}

// InvalidateAll removes every key under the namespaced prefix
func (c *Cache) InvalidateAll(ctx context.Context, prefix string) (int64, error) {
	keys, err := c.kv.Scan(ctx, c.Key(prefix)+"*")
	if err != nil {
		return 0, err
	}
	var n int64
	for len(keys) > 0 {
		batch := keys
		if len(batch) > 100 {
			batch = batch[:100]
		}
		keys = keys[len(batch):]
		d, err := c.kv.Del(ctx, batch...)
		n += d
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ShouldRefresh reports whether the index is due a background refresh
// true when the marker is absent or older than half the primary TTL.
// A failed probe counts as an absent marker, erring toward freshness
func (c *Cache) ShouldRefresh(ctx context.Context) bool {
	v, ok, err := c.kv.Get(ctx, c.lastUpdatedKey(IndexKey))
	if err != nil {
		c.log.Warn().Err(err).Msg("cache staleness probe failed")
		return true
	}
	if !ok {
		return true
	}
	millis, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return true
	}
	age := c.now().Sub(time.UnixMilli(millis))
	return age > c.cfg.PrimaryTTL/2
}

// TryLockRefresh takes the refresh marker; false means another refresh is in flight
func (c *Cache) TryLockRefresh(ctx context.Context) (bool, error) {
	return c.kv.SetNX(ctx, c.lockKey(), "1", refreshLockTTL)
}

// UnlockRefresh drops the refresh marker
func (c *Cache) UnlockRefresh(ctx context.Context) {
	if _, err := c.kv.Del(ctx, c.lockKey()); err != nil {
		c.log.Warn().Err(err).Msg("refresh unlock failed, marker will expire on its own")
	}
}
