package config

// Config is the on-disk configuration (JSON or YAML). Secrets are not stored
// here; see app.Secrets.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Unipile   UnipileConfig   `json:"unipile"`
	Enhancer  EnhancerConfig  `json:"enhancer"`
	HTTP      HTTPConfig      `json:"http"`
	Alerts    *AlertsConfig   `json:"alerts,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls how schedule times are interpreted and how long a
// fire may spend in the enhancer and the delivery backend.
//
// Durations are Go duration strings (e.g. "30s").
type SchedulerConfig struct {
	// Timezone is an IANA name. Changing it affects newly scheduled jobs only.
	Timezone        string `json:"timezone,omitempty"`
	DispatchTimeout string `json:"dispatch_timeout,omitempty"`
	// HistorySize caps the in-memory history (0 means unbounded). Ignored when
	// persist is true.
	HistorySize int `json:"history_size,omitempty"`
	// Persist keeps jobs and history in the storage backend across restarts.
	Persist bool `json:"persist,omitempty"`
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/chatmate.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // file | sqlite | redis | none
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	Addr        string `json:"addr,omitempty"`         // redis
	DB          int    `json:"db,omitempty"`           // redis
	Prefix      string `json:"prefix,omitempty"`       // redis key prefix
}

type UnipileConfig struct {
	BaseURL    string `json:"base_url,omitempty"`
	AccountID  string `json:"account_id,omitempty"`
	DSN        string `json:"dsn,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type EnhancerConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type HTTPConfig struct {
	Addr            string `json:"addr,omitempty"`
	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
}

// AlertsConfig controls Telegram alerts for failed deliveries. The bot token
// comes from TELEGRAM_BOT_TOKEN.
type AlertsConfig struct {
	Enabled     bool   `json:"enabled"`
	ChatID      int64  `json:"chat_id"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	RetryMax    int    `json:"retry_max,omitempty"`
	RetryBase   string `json:"retry_base,omitempty"`
	DedupWindow string `json:"dedup_window,omitempty"`
}
