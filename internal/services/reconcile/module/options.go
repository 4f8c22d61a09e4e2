package module

import (
	"time"

	"newswire/internal/platform/config"
)

// Options holds configuration settings for the reconcile module
type Options struct {
	Token      string
	Namespace  string
	BatchSize  int
	BatchPause time.Duration
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	r := cfg.Prefix("RECONCILE_")
	return Options{
		Token:      r.MayString("TOKEN", ""),
		Namespace:  cfg.MayString("CACHE_NAMESPACE", "hn"),
		BatchSize:  r.MayInt("BATCH_SIZE", 100),
		BatchPause: r.MayDuration("BATCH_PAUSE", 50*time.Millisecond),
	}
}
