package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
scheduler:
  timezone: Asia/Kolkata
  dispatch_timeout: 30s
  persist: true
storage:
  driver: sqlite
  path: ./data/chatmate.db
unipile:
  base_url: https://api1.unipile.com:13111
  account_id: acc-1
enhancer:
  enabled: true
http:
  addr: 127.0.0.1:8080
alerts:
  enabled: true
  chat_id: -100123
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeFile(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "Asia/Kolkata", cfg.Scheduler.Timezone)
	assert.True(t, cfg.Scheduler.Persist)
	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "acc-1", cfg.Unipile.AccountID)
	require.NotNil(t, cfg.Alerts)
	assert.Equal(t, int64(-100123), cfg.Alerts.ChatID)
	require.NoError(t, Validate(cfg))
}

func TestDecode_Strict(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		name, body string
	}{
		"unknown json key": {"c.json", `{"scheduler":{"tz":"UTC"}}`},
		"unknown yaml key": {"c.yaml", "scheduler:\n  workers: 2\n"},
		"trailing data":    {"c.json", `{} {}`},
		"malformed yaml":   {"c.yml", "logging: [\n"},
		"wrong type":       {"c.json", `{"http":{"addr":8080}}`},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tc.name, []byte(tc.body))
			require.Error(t, err)
		})
	}
}

func TestDecode_EmptyYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("c.yaml", nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.Storage)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		cfg     Config
		wantErr string
	}{
		"zero ok":          {cfg: Config{}},
		"bad timezone":     {cfg: Config{Scheduler: SchedulerConfig{Timezone: "Mars/Olympus"}}, wantErr: "scheduler.timezone"},
		"bad duration":     {cfg: Config{Scheduler: SchedulerConfig{DispatchTimeout: "soon"}}, wantErr: "scheduler.dispatch_timeout"},
		"negative history": {cfg: Config{Scheduler: SchedulerConfig{HistorySize: -1}}, wantErr: "history_size"},
		"unknown driver":   {cfg: Config{Storage: &StorageConfig{Driver: "mongo"}}, wantErr: "storage.driver"},
		"persist no store": {cfg: Config{Scheduler: SchedulerConfig{Persist: true}}, wantErr: "scheduler.persist"},
		"persist none":     {cfg: Config{Scheduler: SchedulerConfig{Persist: true}, Storage: &StorageConfig{Driver: "none"}}, wantErr: "scheduler.persist"},
		"alerts no chat":   {cfg: Config{Alerts: &AlertsConfig{Enabled: true}}, wantErr: "alerts.chat_id"},
		"redis ok":         {cfg: Config{Scheduler: SchedulerConfig{Persist: true}, Storage: &StorageConfig{Driver: "redis", Addr: "localhost:6379"}}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tc.cfg)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	d, err = ParseDurationOrDefault("x", "250ms", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	_, err = ParseDurationField("x", "-1s")
	require.Error(t, err)
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Scheduler: SchedulerConfig{Timezone: "UTC"}, HTTP: HTTPConfig{Addr: ":8080"}}
	newCfg := &Config{Scheduler: SchedulerConfig{Timezone: "Asia/Kolkata"}, HTTP: HTTPConfig{Addr: ":9090"},
		Storage: &StorageConfig{Driver: "file", Path: "./x"}}

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"http", "scheduler", "storage"}, changed)
	assert.NotEmpty(t, attrs)
	assert.Equal(t, []string{"http", "storage"}, RestartRequired(changed))

	changed, _ = SummarizeConfigChange(newCfg, newCfg)
	assert.Empty(t, changed)
}

func TestWatch_PublishesValidChanges(t *testing.T) {
	path := writeFile(t, "config.json", `{"scheduler":{"timezone":"UTC"}}`)
	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	m.SetValidator(func(_ context.Context, cfg *Config) error { return Validate(cfg) })
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()
	// let the watcher register the directory
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{"scheduler":{"timezone":"Nowhere/Land"}}`), 0o600))
	select {
	case <-ch:
		t.Fatal("invalid config published")
	case <-time.After(time.Second):
	}

	require.NoError(t, os.WriteFile(path, []byte(`{"scheduler":{"timezone":"Europe/Berlin"}}`), 0o600))
	select {
	case cfg := <-ch:
		assert.Equal(t, "Europe/Berlin", cfg.Scheduler.Timezone)
		assert.Same(t, cfg, m.Get())
	case <-time.After(3 * time.Second):
		t.Fatal("config not published")
	}
}

func TestPublish_KeepsNewest(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("unused.json")
	ch := m.Subscribe(1)
	a, b := &Config{}, &Config{}
	m.publish(a)
	m.publish(b)
	assert.Same(t, b, <-ch)
	m.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}
