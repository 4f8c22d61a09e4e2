// Package http exposes the reconciliation trigger endpoints
package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"newswire/internal/modkit/httpkit"
	"newswire/internal/services/reconcile/domain"
)

// Register mounts the job trigger on the given router.
// Auth is applied as module middleware, not here
func Register(r httpkit.Router, runner domain.RunnerPort) {
	h := &handlers{runner: runner}

	httpkit.Get(r, "/jobs", h.jobs)
	r.Post("/{job}", httpkit.Handle(h.run))
}

type handlers struct{ runner domain.RunnerPort }

func (h *handlers) jobs(r *stdhttp.Request) (any, error) {
	return map[string][]string{"jobs": h.runner.Jobs()}, nil
}

// run executes the named job synchronously and returns its report.
// A failed report keeps the report body but signals 500 so callers and
// cron monitors see the failure without parsing it
func (h *handlers) run(r *stdhttp.Request) httpkit.Response {
	job := chi.URLParam(r, "job")
	rep, err := h.runner.Run(r.Context(), job)
	if err != nil {
		return httpkit.Error(err)
	}
	if !rep.Success {
		return httpkit.StatusOf(stdhttp.StatusInternalServerError, rep)
	}
	return httpkit.OK(rep)
}
