package domain

import "context"

// RunnerPort executes a reconciliation job by name
type RunnerPort interface {
	// Run executes one job and returns its report
	// err is non nil only when the job name is unknown; job failures are
	// carried inside the report
	Run(ctx context.Context, job string) (Report, error)

	// Jobs lists the job names Run accepts
	Jobs() []string
}
