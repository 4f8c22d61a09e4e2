package module

import (
	"time"

	"newswire/internal/platform/config"
)

// Options holds configuration settings for the stories module
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Attempts  int
	WarmCount int
	Fanout    int
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	h := cfg.Prefix("HN_")
	s := cfg.Prefix("STORIES_")
	return Options{
		BaseURL:   h.MayString("BASE_URL", ""),
		Timeout:   h.MayDuration("TIMEOUT", 5*time.Second),
		Attempts:  h.MayInt("ATTEMPTS", 3),
		WarmCount: s.MayInt("WARM_COUNT", 30),
		Fanout:    s.MayInt("FANOUT", 8),
	}
}
