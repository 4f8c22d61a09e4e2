// Package module wires reconciliation into the API using modkit
package module

import (
	"net/http"

	modkit "newswire/internal/modkit"
	"newswire/internal/modkit/httpkit"
	phttp "newswire/internal/platform/net/http"
	"newswire/internal/platform/net/middleware"
	str "newswire/internal/platform/strings"
	"newswire/internal/services/reconcile/domain"
	reconcilehttp "newswire/internal/services/reconcile/http"
	reconcilesvc "newswire/internal/services/reconcile/service"
)

// Ports exposed by the reconcile module
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the reconcile module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws   []func(http.Handler) http.Handler
	ports Ports

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc *reconcilesvc.Service
}

// New constructs the reconcile module. Pass the cache rebuild source with
// modkit.WithPorts(domain.RefreshFunc(...)); without it the refresh-cache
// job reports failure
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("reconcile"), modkit.WithPrefix("/reconcile")}, opts...)...)

	o := FromConfig(deps.Cfg)
	refresh, _ := b.Ports.(domain.RefreshFunc)
	svc := reconcilesvc.New(deps.PG, deps.KV, refresh, reconcilesvc.Config{
		Namespace:  o.Namespace,
		BatchSize:  o.BatchSize,
		BatchPause: o.BatchPause,
	})

	// every route in this module sits behind the shared-secret token
	mws := append([]func(http.Handler) http.Handler{middleware.Bearer(o.Token, phttp.JSON)}, b.Mw...)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       mws,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = Ports{Runner: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		reconcilehttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns the module port set
func (m *Module) Ports() any { return m.ports }
