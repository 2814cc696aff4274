package config

import (
	"reflect"
	"sort"
	"strings"

	logx "chatmate/pkg/logx"
)

// SummarizeConfigChange lists the changed top-level sections and log fields
// describing the new values. Fields never carry credentials.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.dispatch_timeout", strings.TrimSpace(newCfg.Scheduler.DispatchTimeout)),
			logx.Bool("scheduler.persist", newCfg.Scheduler.Persist),
		)
	}
	if !reflect.DeepEqual(derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)) {
		changed = append(changed, "storage")
		s := derefStorage(newCfg.Storage)
		attrs = append(attrs,
			logx.String("storage.driver", s.Driver),
			logx.Bool("storage.path_set", strings.TrimSpace(s.Path) != ""),
			logx.Bool("storage.addr_set", strings.TrimSpace(s.Addr) != ""),
		)
	}
	if oldCfg.Unipile != newCfg.Unipile {
		changed = append(changed, "unipile")
		attrs = append(attrs,
			logx.String("unipile.base_url", newCfg.Unipile.BaseURL),
			logx.Bool("unipile.dsn_set", newCfg.Unipile.DSN != ""),
			logx.Int("unipile.rate_per_sec", newCfg.Unipile.RatePerSec),
		)
	}
	if oldCfg.Enhancer != newCfg.Enhancer {
		changed = append(changed, "enhancer")
		attrs = append(attrs,
			logx.Bool("enhancer.enabled", newCfg.Enhancer.Enabled),
			logx.String("enhancer.model", newCfg.Enhancer.Model),
		)
	}
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs, logx.String("http.addr", newCfg.HTTP.Addr))
	}
	if !reflect.DeepEqual(oldCfg.Alerts, newCfg.Alerts) {
		changed = append(changed, "alerts")
		a := AlertsConfig{}
		if newCfg.Alerts != nil {
			a = *newCfg.Alerts
		}
		attrs = append(attrs,
			logx.Bool("alerts.enabled", a.Enabled),
			logx.Int64("alerts.chat_id", a.ChatID),
		)
	}
	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired reports sections that only take effect on restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "storage", "unipile", "enhancer", "http":
			out = append(out, s)
		}
	}
	return out
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}
