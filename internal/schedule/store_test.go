package schedule

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJob(id string) *Job {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return newJob(Details{JobID: id, Request: Request{Recipient: "1", Content: "x", ScheduleTime: at}}, RuleFor(at, false, "", time.UTC))
}

func TestMemoryJobStore_Order(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryJobStore()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Register(ctx, testJob(id)))
	}
	_, ok := s.Remove(ctx, "a")
	require.True(t, ok)
	_, ok = s.Remove(ctx, "a")
	assert.False(t, ok)
	require.NoError(t, s.Register(ctx, testJob("a")))

	var ids []string
	for _, j := range s.List() {
		ids = append(ids, j.ID())
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
	assert.Equal(t, 3, s.Len())

	j, ok := s.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, StatusScheduled, j.Status())
}

func TestJob_StatusTransitions(t *testing.T) {
	t.Parallel()
	j := testJob("x")
	assert.True(t, j.casStatus(StatusScheduled, StatusCancelled))
	assert.False(t, j.casStatus(StatusScheduled, StatusRetired))
	assert.Equal(t, StatusCancelled, j.Details().Status)
	assert.Empty(t, j.details.Status, "stored details stay untouched")
}

func TestMemoryHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := NewMemoryHistory(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Append(ctx, HistoryEntry{JobID: fmt.Sprint(i), Status: RunSuccess}))
	}
	assert.Equal(t, 3, h.Len())

	got, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "4", got[0].JobID)
	assert.Equal(t, "2", got[2].JobID)

	got, _ = h.Recent(ctx, 1)
	assert.Equal(t, []HistoryEntry{{JobID: "4", Status: RunSuccess}}, got)

	n, err := h.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	got, _ = h.Recent(ctx, 0)
	assert.Empty(t, got)
}

func TestMemoryHistory_Unbounded(t *testing.T) {
	t.Parallel()
	h := NewMemoryHistory(-1)
	for i := 0; i < 120; i++ {
		_ = h.Append(context.Background(), HistoryEntry{JobID: fmt.Sprint(i)})
	}
	assert.Equal(t, 120, h.Len())
	got, _ := h.Recent(context.Background(), 0)
	assert.Len(t, got, defaultHistoryLimit)
}

func TestHistoryEntryString(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	assert.Equal(t, "2026-02-03T04:05:06Z j1 success", HistoryEntry{JobID: "j1", ExecutedAt: at, Status: RunSuccess}.String())
	assert.Equal(t, "2026-02-03T04:05:06Z j1 failed: nope", HistoryEntry{JobID: "j1", ExecutedAt: at, Status: RunFailed, Error: "nope"}.String())
}
