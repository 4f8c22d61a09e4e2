// Package api assembles the HTTP surface from the service modules
package api

import (
	"time"

	"newswire/internal/platform/config"
	"newswire/internal/platform/logger"
	phttp "newswire/internal/platform/net/http"
	"newswire/internal/platform/net/middleware"
	"newswire/internal/platform/store"

	"newswire/internal/modkit"
	"newswire/internal/modkit/module"

	reconciledom "newswire/internal/services/reconcile/domain"
	reconcilemod "newswire/internal/services/reconcile/module"
	storiesdom "newswire/internal/services/stories/domain"
	storiesmod "newswire/internal/services/stories/module"
)

// Options are the API options
type Options struct {
	Config config.Conf
	Store  *store.Store
	Logger *logger.Logger
}

// Mount mounts every module onto the given router behind the common stack
func Mount(r phttp.Router, opt Options) {
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		KV:  opt.Store.Redis,
	}

	// stories first so reconcile can borrow its refresher
	stories := storiesmod.New(deps)
	refresher := module.MustPortsOf[storiesdom.RefresherPort](stories)
	reconcile := reconcilemod.New(deps,
		modkit.WithPorts(reconciledom.RefreshFunc(refresher.RefreshCache)),
	)

	mods := []module.Module{stories, reconcile}

	// health probe answers at the root, outside the versioned tree
	r.Use(middleware.Heartbeat("/healthz"))

	stack := middleware.Defaults()
	stack = append(stack,
		middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: []string{opt.Config.MayString("CORS_ORIGIN", "*")},
		}),
		middleware.AccessLogZerolog(middleware.AccessLogOptions{Slow: 2 * time.Second}),
		middleware.RecoverJSON,
	)

	r.Route("/api/v1", func(api phttp.Router) {
		api.Use(stack...)
		for _, m := range mods {
			m.MountRoutes(api)
		}
	})
}
