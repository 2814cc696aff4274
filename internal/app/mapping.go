package app

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"chatmate/internal/alerts"
	"chatmate/internal/config"
	"chatmate/internal/enhance"
	"chatmate/internal/httpapi"
	"chatmate/internal/schedule"
	"chatmate/internal/storage"
	"chatmate/internal/unipile"
	logx "chatmate/pkg/logx"
)

func mapLogging(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		JSON:    c.JSON,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}

// mapStorage returns ok=false when no driver is configured.
func mapStorage(cfg *config.Config, sec Secrets) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "file":
		if path == "" {
			path = "./data/chatmate"
		}
		return storage.Config{Driver: driver, Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, errors.New("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	case "redis":
		addr := strings.TrimSpace(sc.Addr)
		if addr == "" {
			addr = "127.0.0.1:6379"
		}
		return storage.Config{Driver: driver, Addr: addr, DB: sc.DB, Prefix: sc.Prefix, Password: sec.RedisPassword}, true, nil
	default:
		return storage.Config{}, false, errors.Newf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapScheduler(c config.SchedulerConfig) (schedule.Config, error) {
	timeout, err := config.ParseDurationOrDefault("scheduler.dispatch_timeout", c.DispatchTimeout, schedule.DefaultDispatchTimeout)
	if err != nil {
		return schedule.Config{}, err
	}
	return schedule.Config{Timezone: c.Timezone, DispatchTimeout: timeout}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func mapUnipile(cfg *config.Config, sec Secrets) (unipile.Config, error) {
	timeout, err := config.ParseDurationField("unipile.timeout", cfg.Unipile.Timeout)
	if err != nil {
		return unipile.Config{}, err
	}
	return unipile.Config{
		BaseURL:    firstNonEmpty(sec.UnipileBaseURL, cfg.Unipile.BaseURL),
		APIKey:     sec.UnipileAPIKey,
		DSN:        firstNonEmpty(sec.UnipileDSN, cfg.Unipile.DSN),
		AccountID:  firstNonEmpty(sec.WhatsAppAccountID, cfg.Unipile.AccountID),
		Timeout:    timeout,
		RatePerSec: cfg.Unipile.RatePerSec,
	}, nil
}

// mapEnhancer returns ok=false when enhancement is off or no API key is set.
func mapEnhancer(cfg *config.Config, sec Secrets) (enhance.Config, bool, error) {
	timeout, err := config.ParseDurationField("enhancer.timeout", cfg.Enhancer.Timeout)
	if err != nil {
		return enhance.Config{}, false, err
	}
	if !cfg.Enhancer.Enabled || strings.TrimSpace(sec.GroqAPIKey) == "" {
		return enhance.Config{}, false, nil
	}
	return enhance.Config{
		BaseURL: cfg.Enhancer.BaseURL,
		APIKey:  sec.GroqAPIKey,
		Model:   cfg.Enhancer.Model,
		Timeout: timeout,
	}, true, nil
}

func mapHTTP(c config.HTTPConfig) (httpapi.Config, error) {
	out := httpapi.Config{Addr: c.Addr}
	var err error
	if out.ReadTimeout, err = config.ParseDurationField("http.read_timeout", c.ReadTimeout); err != nil {
		return httpapi.Config{}, err
	}
	if out.WriteTimeout, err = config.ParseDurationField("http.write_timeout", c.WriteTimeout); err != nil {
		return httpapi.Config{}, err
	}
	if out.ShutdownTimeout, err = config.ParseDurationField("http.shutdown_timeout", c.ShutdownTimeout); err != nil {
		return httpapi.Config{}, err
	}
	return out, nil
}

func mapAlerts(a *config.AlertsConfig) (alerts.Config, error) {
	if a == nil {
		return alerts.Config{}, nil
	}
	base, err := config.ParseDurationOrDefault("alerts.retry_base", a.RetryBase, time.Second)
	if err != nil {
		return alerts.Config{}, err
	}
	dedup, err := config.ParseDurationOrDefault("alerts.dedup_window", a.DedupWindow, 10*time.Minute)
	if err != nil {
		return alerts.Config{}, err
	}
	retry := a.RetryMax
	if retry == 0 {
		retry = 3
	}
	return alerts.Config{
		Enabled:     a.Enabled,
		ChatID:      a.ChatID,
		RatePerSec:  a.RatePerSec,
		RetryMax:    retry,
		RetryBase:   base,
		DedupWindow: dedup,
	}, nil
}
