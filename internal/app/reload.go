package app

import (
	"context"
	"strings"
	"time"

	"chatmate/internal/config"
	logx "chatmate/pkg/logx"
)

func (a *App) reloadLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-sub:
			if !ok {
				return nil
			}
			cfg = latest(sub, cfg)
			a.applyConfig(ctx, last, cfg)
			last = cfg
		}
	}
}

// latest drains sub and returns the newest pending config.
func latest(sub <-chan *config.Config, cfg *config.Config) *config.Config {
	for {
		select {
		case newer, ok := <-sub:
			if !ok || newer == nil {
				return cfg
			}
			cfg = newer
		default:
			return cfg
		}
	}
}

// applyConfig pushes live-reloadable sections to their components. Storage,
// delivery, enhancer and HTTP changes need a restart.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogging(newCfg.Logging))
		case "scheduler":
			scfg, err := mapScheduler(newCfg.Scheduler)
			if err != nil {
				a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
				continue
			}
			a.sched.Apply(scfg)
		case "alerts":
			acfg, err := mapAlerts(newCfg.Alerts)
			if err != nil {
				a.log.Warn("invalid alerts config; keeping previous", logx.Err(err))
				continue
			}
			stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			a.alerts.Stop(stopCtx)
			cancel()
			a.alerts.Apply(acfg)
			a.alerts.Start(ctx)
		}
	}
	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config applied", fields...)
}
