// Package http provides http transport for stories
package http

import (
	stdhttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"newswire/internal/modkit/httpkit"
	perr "newswire/internal/platform/errors"
	"newswire/internal/platform/net/http/bind"
	"newswire/internal/services/stories/domain"
)

type listParams struct {
	Page       int    `query:"page" validate:"omitempty,min=1"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Search     string `query:"search" validate:"omitempty,max=128"`
	Sort       string `query:"sort" validate:"omitempty,oneof=score time comments"`
	Type       string `query:"type" validate:"omitempty,max=16"`
	Identifier string `query:"identifier" validate:"omitempty,max=64"`
}

// Register mounts story endpoints on the given router
func Register(r httpkit.Router, q domain.QueryPort) {
	h := &handlers{q: q}

	httpkit.Get(r, "/", h.list)
	httpkit.Get(r, "/{id}", h.byID)
}

type handlers struct{ q domain.QueryPort }

func (h *handlers) list(r *stdhttp.Request) (any, error) {
	p, err := bind.ParseQuery[listParams](r)
	if err != nil {
		return nil, err
	}
	identifier := p.Identifier
	if identifier == "" {
		identifier = r.RemoteAddr
	}
	return h.q.List(r.Context(), domain.ListQuery{
		Page:       p.Page,
		Limit:      p.Limit,
		Search:     p.Search,
		Sort:       p.Sort,
		Type:       p.Type,
		Identifier: identifier,
	})
}

func (h *handlers) byID(r *stdhttp.Request) (any, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, perr.Newf(perr.ErrorCodeValidation, "id must be a positive integer")
	}
	return h.q.Story(r.Context(), id)
}
