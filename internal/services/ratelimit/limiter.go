// Package ratelimit provides a sliding window limiter over the key value seam
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"newswire/internal/platform/config"
	perr "newswire/internal/platform/errors"
	"newswire/internal/platform/logger"
	"newswire/internal/platform/store"
)

const (
	defaultNamespace   = "hn"
	defaultMaxRequests = 30
	defaultWindow      = 60 * time.Second
)

// Config for the limiter
type Config struct {
	Namespace   string
	MaxRequests int
	Window      time.Duration

	// FailOpen admits with a logged warning when the store is unreachable
	// the default denies with the wrapped store error
	FailOpen bool
}

// FromConfig reads limiter settings from the env backed config
func FromConfig(cfg config.Conf) Config {
	rl := cfg.Prefix("RATELIMIT_")
	return Config{
		Namespace:   cfg.MayString("CACHE_NAMESPACE", defaultNamespace),
		MaxRequests: rl.MayInt("MAX_REQUESTS", defaultMaxRequests),
		Window:      rl.MayDuration("WINDOW", defaultWindow),
		FailOpen:    rl.MayBool("FAIL_OPEN", false),
	}
}

// Limiter admits or denies identifiers against a per identifier sliding window
type Limiter struct {
	kv  store.KV
	cfg Config
	log logger.Logger
	now func() time.Time
}

// New constructs a Limiter with defaults applied
func New(kv store.KV, cfg Config) *Limiter {
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = defaultMaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	return &Limiter{
		kv:  kv,
		cfg: cfg,
		log: *logger.Named("ratelimit"),
		now: time.Now,
	}
}

// Key returns the sorted set key for an identifier
func (l *Limiter) Key(identifier string) string {
	return fmt.Sprintf("ratelimit:%s:%s", l.cfg.Namespace, identifier)
}

// Admit records one request for identifier and reports whether it is allowed.
// Denial is (false, nil); errors only surface for store failures in fail
// closed mode.
func (l *Limiter) Admit(ctx context.Context, identifier string) (bool, error) {
	n, err := l.kv.TouchWindow(ctx, l.Key(identifier), l.now(), l.cfg.Window)
	if err != nil {
		if l.cfg.FailOpen {
			l.log.Warn().Err(err).Str("identifier", identifier).Msg("ratelimit store unreachable, admitting")
			return true, nil
		}
		return false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "ratelimit store failed")
	}
	return n <= int64(l.cfg.MaxRequests), nil
}
