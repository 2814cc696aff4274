package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatmate/internal/config"
	"chatmate/internal/schedule"
)

type fakeBackend struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeBackend) SendToNumber(_ context.Context, phone, content string) (schedule.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, phone+":"+content)
	return schedule.Receipt{"messageId": "m1"}, nil
}

func (f *fakeBackend) SendToContact(_ context.Context, contact, content string) (schedule.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, contact+":"+content)
	return schedule.Receipt{"messageId": "m2"}, nil
}

func writeConfig(t *testing.T, path, tz, storePath string) {
	t.Helper()
	body := fmt.Sprintf(`{
  "logging": {"level": "error", "console": true, "file": {"enabled": false, "path": ""}},
  "scheduler": {"timezone": %q, "persist": true},
  "storage": {"driver": "file", "path": %q},
  "unipile": {},
  "enhancer": {"enabled": false},
  "http": {"addr": "127.0.0.1:0"}
}`, tz, storePath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func newTestApp(t *testing.T, cfgPath string, backend schedule.Backend) *App {
	t.Helper()
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	require.NoError(t, err)
	a, err := build(cfgm, cfg, Secrets{}, backend)
	require.NoError(t, err)
	return a
}

func TestApp_JobsSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	writeConfig(t, cfgPath, "UTC", filepath.Join(dir, "store", "chatmate"))

	a := newTestApp(t, cfgPath, &fakeBackend{})
	require.NoError(t, a.Start(context.Background()))
	sum, err := a.Scheduler().Schedule(context.Background(), schedule.Request{
		Recipient:      "+15551234567",
		Content:        "standup",
		ScheduleTime:   time.Now().Add(time.Hour),
		Repeat:         true,
		RepeatInterval: schedule.Daily,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx, StopSignal))
	require.NoError(t, a.Err())

	b := newTestApp(t, cfgPath, &fakeBackend{})
	require.NoError(t, b.Start(context.Background()))
	defer func() { _ = b.Stop(context.Background(), StopSignal) }()

	jobs := b.Scheduler().List()
	require.Len(t, jobs, 1)
	assert.Equal(t, sum.JobID, jobs[0].JobID)
	assert.Equal(t, "standup", jobs[0].Content)
}

func TestApp_ReloadsTimezone(t *testing.T) {
	if testing.Short() {
		t.Skip("watches the filesystem")
	}
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	storePath := filepath.Join(dir, "chatmate")
	writeConfig(t, cfgPath, "UTC", storePath)

	a := newTestApp(t, cfgPath, &fakeBackend{})
	require.NoError(t, a.Start(context.Background()))
	defer func() { _ = a.Stop(context.Background(), StopSignal) }()
	assert.Equal(t, "UTC", a.Scheduler().Snapshot().Timezone)

	time.Sleep(300 * time.Millisecond)
	writeConfig(t, cfgPath, "Asia/Kolkata", storePath)
	require.Eventually(t, func() bool {
		return a.Scheduler().Snapshot().Timezone == "Asia/Kolkata"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestApp_DoneBeforeStart(t *testing.T) {
	t.Parallel()
	a := &App{}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done should be closed before Start")
	}
	assert.NoError(t, a.Err())
	assert.NoError(t, a.Stop(context.Background(), StopUnknown))
}

func TestNewApp_RequiresUnipileCredentials(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	writeConfig(t, cfgPath, "UTC", filepath.Join(dir, "chatmate"))
	for _, k := range []string{"UNIPILE_API_KEY", "UNIPILE_BASE_URL", "WHATSAPP_ACCOUNT_ID"} {
		t.Setenv(k, "")
	}
	_, err := NewApp(cfgPath, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unipile")
}
