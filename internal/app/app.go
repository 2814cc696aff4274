package app

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"chatmate/internal/alerts"
	"chatmate/internal/config"
	"chatmate/internal/enhance"
	"chatmate/internal/eventbus"
	"chatmate/internal/httpapi"
	"chatmate/internal/schedule"
	"chatmate/internal/storage"
	"chatmate/internal/unipile"
	logx "chatmate/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	sched  *schedule.Scheduler
	api    *httpapi.Server
	alerts *alerts.Service

	grp *group
}

// NewApp loads the config file and secrets and wires every component. Nothing
// runs until Start.
func NewApp(cfgPath, envPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	sec, err := LoadSecrets(envPath)
	if err != nil {
		return nil, err
	}
	return build(cfgm, cfg, sec, nil)
}

// build wires the app. backend overrides the Unipile client when non-nil.
func build(cfgm *config.ConfigManager, cfg *config.Config, sec Secrets, backend schedule.Backend) (*App, error) {
	logSvc, root := logx.New(mapLogging(cfg.Logging))
	log := root.With(logx.String("comp", "app"))
	bus := eventbus.New()

	a := &App{cfgm: cfgm, log: log, logs: logSvc, bus: bus}
	ok := false
	defer func() {
		if !ok {
			a.closeStore()
			_ = logSvc.Close()
		}
	}()

	sc, enabled, err := mapStorage(cfg, sec)
	if err != nil {
		return nil, err
	}
	if enabled {
		st, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, errors.Wrap(err, "open storage")
		}
		a.store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	if backend == nil {
		ucfg, err := mapUnipile(cfg, sec)
		if err != nil {
			return nil, err
		}
		client, err := unipile.New(ucfg, root.With(logx.String("comp", "unipile")))
		if err != nil {
			return nil, errors.Wrap(err, "unipile")
		}
		backend = client
	}

	var enhancer schedule.Enhancer
	ecfg, useEnhancer, err := mapEnhancer(cfg, sec)
	if err != nil {
		return nil, err
	}
	if useEnhancer {
		g, err := enhance.New(ecfg, root.With(logx.String("comp", "enhance")))
		if err != nil {
			return nil, errors.Wrap(err, "enhancer")
		}
		enhancer = g
	} else if cfg.Enhancer.Enabled {
		log.Warn("enhancer enabled but GROQ_API_KEY is not set; messages will be sent as written")
	}

	var (
		jobs    schedule.JobStore
		history schedule.HistoryLog
	)
	switch {
	case cfg.Scheduler.Persist && a.store != nil:
		jobs = schedule.NewPersistentJobStore(a.store, root.With(logx.String("comp", "jobs")))
		history = schedule.NewPersistentHistory(a.store)
	default:
		history = schedule.NewMemoryHistory(cfg.Scheduler.HistorySize)
	}

	scfg, err := mapScheduler(cfg.Scheduler)
	if err != nil {
		return nil, err
	}
	sched, err := schedule.New(scfg, schedule.Deps{
		Backend:  backend,
		Enhancer: enhancer,
		Store:    jobs,
		History:  history,
		Bus:      bus,
		Log:      root.With(logx.String("comp", "scheduler")),
	})
	if err != nil {
		return nil, err
	}
	a.sched = sched

	hcfg, err := mapHTTP(cfg.HTTP)
	if err != nil {
		return nil, err
	}
	a.api = httpapi.New(hcfg, sched, root.With(logx.String("comp", "http")))

	acfg, err := mapAlerts(cfg.Alerts)
	if err != nil {
		return nil, err
	}
	var sender alerts.Sender
	if strings.TrimSpace(sec.TelegramToken) != "" {
		tg, err := alerts.NewTelegram(sec.TelegramToken)
		if err != nil {
			return nil, err
		}
		sender = tg
	} else if acfg.Enabled {
		log.Warn("alerts enabled but TELEGRAM_BOT_TOKEN is not set; alerts disabled")
	}
	a.alerts = alerts.New(acfg, sender, bus, root.With(logx.String("comp", "alerts")))

	ok = true
	return a, nil
}

// Scheduler exposes the scheduler for embedding callers.
func (a *App) Scheduler() *schedule.Scheduler { return a.sched }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.grp == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.grp.Context().Done()
}

// Err returns the first fatal error observed after Start.
func (a *App) Err() error {
	if a.grp == nil {
		return nil
	}
	return a.grp.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.grp = newGroup(ctx, a.log)
	runCtx := a.grp.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	if err := a.sched.Start(runCtx); err != nil {
		a.grp.Cancel()
		return err
	}
	a.alerts.Start(runCtx)

	a.grp.Go("http", a.api.Run)
	a.grp.Go("config.watch", a.cfgm.Watch)
	a.grp.Go("config.reload", a.reloadLoop)

	events, unsub := a.bus.Subscribe(128)
	a.grp.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.grp == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.grp.Cancel()

	a.step(ctx, "scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "alerts", 2*time.Second, func(c context.Context) error { a.alerts.Stop(c); return nil })
	a.step(ctx, "goroutines", 3*time.Second, a.grp.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.closeStore() })

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) closeStore() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// step runs fn bounded by max and by the caller's deadline. A step that
// overruns is logged and abandoned.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Newf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(sctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-sctx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
