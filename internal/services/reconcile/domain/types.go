// Package domain defines reconciliation jobs and reports
package domain

import (
	"context"
	"time"
)

// Job names accepted by the runner
const (
	JobViewCounts   = "view-counts"
	JobOrphanPrune  = "orphan-prune"
	JobRefreshCache = "refresh-cache"
)

// RefreshFunc rebuilds the story cache from upstream
// injected by the composition root so jobs never patch shared cache objects
type RefreshFunc func(ctx context.Context) error

// Report is the well formed outcome every job returns
// Success is false only for job level failure; per item errors are appended
// and processing continues
type Report struct {
	Success    bool           `json:"success"`
	Job        string         `json:"job"`
	RunID      string         `json:"runId"`
	DurationMs int64          `json:"durationMs"`
	Counters   map[string]int `json:"counters"`
	Errors     []string       `json:"errors,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
