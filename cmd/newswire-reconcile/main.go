package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"newswire/internal/modkit"
	"newswire/internal/modkit/module"
	"newswire/internal/platform/config"
	"newswire/internal/platform/logger"
	"newswire/internal/platform/store"

	reconciledom "newswire/internal/services/reconcile/domain"
	reconcilemod "newswire/internal/services/reconcile/module"
	storiesdom "newswire/internal/services/stories/domain"
	storiesmod "newswire/internal/services/stories/module"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	redisCfg := root.Prefix("SERVICE_REDIS_")

	l := logger.Get()

	var (
		fJobs  = flag.String("jobs", "all", "comma separated job names, or all")
		fEvery = flag.Duration("every", 0, "rerun interval, 0 runs once and exits")
	)
	flag.Parse()

	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		Redis: store.RedisConfig{
			Enabled: true,
			Addr:    redisCfg.MustString("ADDR"),
			DB:      redisCfg.MayInt("DB", 0),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Cfg: root,
		Log: *l,
		PG:  st.PG,
		KV:  st.Redis,
	}

	stories := storiesmod.New(deps)
	refresher := module.MustPortsOf[storiesdom.RefresherPort](stories)
	rec := reconcilemod.New(deps,
		modkit.WithPorts(reconciledom.RefreshFunc(refresher.RefreshCache)),
	)
	runner := module.MustPortsOf[reconcilemod.Ports](rec).Runner

	jobs := runner.Jobs()
	if *fJobs != "all" {
		jobs = strings.Split(*fJobs, ",")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runAll := func() bool {
		ok := true
		for _, job := range jobs {
			rep, err := runner.Run(ctx, strings.TrimSpace(job))
			if err != nil {
				l.Error().Err(err).Str("job", job).Msg("job rejected")
				ok = false
				continue
			}
			evt := l.Info()
			if !rep.Success {
				evt = l.Error()
				ok = false
			}
			evt.Str("job", rep.Job).
				Str("run_id", rep.RunID).
				Int64("duration_ms", rep.DurationMs).
				Any("counters", rep.Counters).
				Strs("errors", rep.Errors).
				Msg("reconcile run")
		}
		return ok
	}

	if *fEvery <= 0 {
		if !runAll() {
			os.Exit(1)
		}
		return
	}

	tick := time.NewTicker(*fEvery)
	defer tick.Stop()
	runAll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			runAll()
		}
	}
}
