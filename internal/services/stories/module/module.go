// Package module wires stories into the API using modkit
package module

import (
	"net/http"

	"newswire/internal/adapters/hn"
	modkit "newswire/internal/modkit"
	"newswire/internal/modkit/httpkit"
	str "newswire/internal/platform/strings"
	"newswire/internal/services/ratelimit"
	"newswire/internal/services/stories/domain"
	storieshttp "newswire/internal/services/stories/http"
	storiessvc "newswire/internal/services/stories/service"
	"newswire/internal/services/storycache"
)

// Ports exposed by the stories module
type Ports struct {
	Query     domain.QueryPort
	Refresher domain.RefresherPort
}

// Module implements the stories module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws   []func(http.Handler) http.Handler
	ports Ports

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc *storiessvc.Service
}

// New constructs the stories module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("stories"), modkit.WithPrefix("/stories")}, opts...)...)

	o := FromConfig(deps.Cfg)
	fetcher := hn.NewClient(hn.Options{
		BaseURL:  o.BaseURL,
		Timeout:  o.Timeout,
		Attempts: o.Attempts,
	})
	cache := storycache.New(deps.KV, storycache.FromConfig(deps.Cfg))
	limiter := ratelimit.New(deps.KV, ratelimit.FromConfig(deps.Cfg))
	svc := storiessvc.New(fetcher, cache, limiter, storiessvc.Config{
		WarmCount: o.WarmCount,
		Fanout:    o.Fanout,
	})

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = Ports{Query: svc, Refresher: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		storieshttp.Register(r, m.svc)
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
