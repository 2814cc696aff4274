package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

var storageDrivers = map[string]bool{"": true, "none": true, "file": true, "sqlite": true, "redis": true}

// Validate checks values that Decode cannot: durations, timezone and the
// storage driver. It does not touch the network or the filesystem.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	check := func(path, raw string) {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	check("scheduler.dispatch_timeout", cfg.Scheduler.DispatchTimeout)
	check("unipile.timeout", cfg.Unipile.Timeout)
	check("enhancer.timeout", cfg.Enhancer.Timeout)
	check("http.read_timeout", cfg.HTTP.ReadTimeout)
	check("http.write_timeout", cfg.HTTP.WriteTimeout)
	check("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, errors.Wrapf(err, "scheduler.timezone %q", tz))
		}
	}
	if cfg.Scheduler.HistorySize < 0 {
		errs = append(errs, errors.New("scheduler.history_size must be >= 0"))
	}

	driver := ""
	if cfg.Storage != nil {
		driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
		check("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if !storageDrivers[driver] {
			errs = append(errs, errors.Newf("storage.driver: unknown driver %q", cfg.Storage.Driver))
		}
	}
	if cfg.Scheduler.Persist && (driver == "" || driver == "none") {
		errs = append(errs, errors.New("scheduler.persist requires a storage driver"))
	}

	if a := cfg.Alerts; a != nil {
		check("alerts.retry_base", a.RetryBase)
		check("alerts.dedup_window", a.DedupWindow)
		if a.Enabled && a.ChatID == 0 {
			errs = append(errs, errors.New("alerts.chat_id is required when alerts are enabled"))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return errors.Newf("invalid config: %s", strings.Join(msgs, "; "))
}
