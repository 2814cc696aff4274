package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatmate/internal/schedule"
	logx "chatmate/pkg/logx"
)

type stubScheduler struct {
	gotReq   schedule.Request
	gotLimit int
	schedErr error
	jobs     []schedule.Details
	hist     []schedule.HistoryEntry
	cleared  int
	snap     schedule.Snapshot
}

func (s *stubScheduler) Schedule(_ context.Context, req schedule.Request) (schedule.Summary, error) {
	s.gotReq = req
	if s.schedErr != nil {
		return schedule.Summary{}, s.schedErr
	}
	return schedule.Summary{
		JobID:          "job-1",
		ScheduleTime:   req.ScheduleTime,
		Repeat:         req.Repeat,
		RepeatInterval: req.RepeatInterval,
		Message:        "Message scheduled for later",
	}, nil
}

func (s *stubScheduler) Cancel(_ context.Context, id string) (schedule.CancelResult, error) {
	if id != "job-1" {
		return schedule.CancelResult{}, errors.Mark(errors.Newf("job %s not found", id), schedule.ErrNotFound)
	}
	return schedule.CancelResult{Success: true, Message: "Scheduled message job-1 cancelled"}, nil
}

func (s *stubScheduler) List() []schedule.Details { return s.jobs }

func (s *stubScheduler) History(_ context.Context, limit int) ([]schedule.HistoryEntry, error) {
	s.gotLimit = limit
	return s.hist, nil
}

func (s *stubScheduler) ClearHistory(context.Context) (int, error) { return s.cleared, nil }

func (s *stubScheduler) Snapshot() schedule.Snapshot { return s.snap }

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestPostSchedule(t *testing.T) {
	t.Parallel()
	st := &stubScheduler{}
	h := New(Config{}, st, logx.Nop()).Handler()

	rec, out := do(t, h, http.MethodPost, "/schedule", `{
		"sendMode": "number",
		"phoneNumber": "+911234567890",
		"content": "hello",
		"scheduleTime": "2026-06-01T10:00:00+05:30",
		"repeat": true,
		"repeatInterval": "weekly",
		"aiEnhance": true
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "job-1", out["jobId"])
	assert.Equal(t, "weekly", out["repeatInterval"])
	assert.Equal(t, "Message scheduled for later", out["message"])

	assert.Equal(t, schedule.SendNumber, st.gotReq.SendMode)
	assert.Equal(t, "+911234567890", st.gotReq.Recipient)
	assert.True(t, st.gotReq.AIEnhance)
	assert.True(t, st.gotReq.ScheduleTime.Equal(time.Date(2026, 6, 1, 4, 30, 0, 0, time.UTC)))
}

func TestPostSchedule_RecipientKeys(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		body string
		want string
	}{
		{"phoneNumber", `{"sendMode":"number","phoneNumber":"+15551234567","content":"hi","scheduleTime":"2026-06-01T10:00:00Z"}`, "+15551234567"},
		{"recipient", `{"sendMode":"number","recipient":"+15551234567","content":"hi","scheduleTime":"2026-06-01T10:00:00Z"}`, "+15551234567"},
		{"phoneNumber wins", `{"phoneNumber":"+15550000001","recipient":"+15550000002","content":"hi","scheduleTime":"2026-06-01T10:00:00Z"}`, "+15550000001"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			st := &stubScheduler{}
			rec, _ := do(t, New(Config{}, st, logx.Nop()).Handler(), http.MethodPost, "/schedule", tc.body)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			assert.Equal(t, tc.want, st.gotReq.Recipient)
		})
	}
}

func TestPostSchedule_Errors(t *testing.T) {
	t.Parallel()

	rec, out := do(t, New(Config{}, &stubScheduler{}, logx.Nop()).Handler(), http.MethodPost, "/schedule", `{"content":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "invalid JSON")

	st := &stubScheduler{schedErr: errors.Mark(errors.New("schedule time must be in the future"), schedule.ErrValidation)}
	rec, out = do(t, New(Config{}, st, logx.Nop()).Handler(), http.MethodPost, "/schedule", `{"content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "schedule time must be in the future", out["error"])

	st = &stubScheduler{schedErr: errors.New("store offline")}
	rec, _ = do(t, New(Config{}, st, logx.Nop()).Handler(), http.MethodPost, "/schedule", `{"content":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDeleteSchedule(t *testing.T) {
	t.Parallel()
	h := New(Config{}, &stubScheduler{}, logx.Nop()).Handler()

	rec, out := do(t, h, http.MethodDelete, "/schedule/job-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Scheduled message job-1 cancelled", out["message"])

	rec, out = do(t, h, http.MethodDelete, "/schedule/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "job nope not found", out["error"])
}

func TestGetSchedule(t *testing.T) {
	t.Parallel()
	st := &stubScheduler{jobs: []schedule.Details{{JobID: "a", CronExpr: "0 9 * * *", Status: schedule.StatusScheduled}}}
	rec, out := do(t, New(Config{}, st, logx.Nop()).Handler(), http.MethodGet, "/schedule", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["total"])
	jobs := out["jobs"].([]any)
	require.Len(t, jobs, 1)
	job := jobs[0].(map[string]any)
	assert.Equal(t, "a", job["jobId"])
	assert.Equal(t, "0 9 * * *", job["cronExpression"])

	rec, out = do(t, New(Config{}, &stubScheduler{}, logx.Nop()).Handler(), http.MethodGet, "/schedule", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, out["total"])
	assert.Equal(t, []any{}, out["jobs"])
}

func TestHistoryEndpoints(t *testing.T) {
	t.Parallel()
	st := &stubScheduler{
		hist:    []schedule.HistoryEntry{{JobID: "a", Status: schedule.RunFailed, Error: "boom"}},
		cleared: 4,
	}
	h := New(Config{}, st, logx.Nop()).Handler()

	rec, out := do(t, h, http.MethodGet, "/history?limit=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, st.gotLimit)
	assert.EqualValues(t, 1, out["total"])

	_, _ = do(t, h, http.MethodGet, "/history", "")
	assert.Equal(t, 0, st.gotLimit)

	rec, _ = do(t, h, http.MethodGet, "/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = do(t, h, http.MethodDelete, "/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cleared 4 history entries", out["message"])
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	soon := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	st := &stubScheduler{snap: schedule.Snapshot{Timezone: "Asia/Kolkata", Jobs: []schedule.JobInfo{
		{Next: soon.Add(time.Hour)},
		{Next: soon},
		{},
	}}}
	rec, out := do(t, New(Config{}, st, logx.Nop()).Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.EqualValues(t, 3, out["jobs"])
	assert.Equal(t, "2026-06-01T08:00:00Z", out["nextRun"])
}

func TestServe_StopsOnCancel(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := New(Config{}, &stubScheduler{}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
