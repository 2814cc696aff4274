package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "chatmate/pkg/logx"
)

func TestCronDriver_OneShotFires(t *testing.T) {
	t.Parallel()
	d := NewCronDriver(time.UTC, logx.Nop())
	d.Start()
	defer d.Stop(context.Background())

	fired := make(chan struct{}, 1)
	_, err := d.Arm(RuleFor(time.Now().Add(100*time.Millisecond), false, "", time.UTC), func() { fired <- struct{}{} })
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot did not fire")
	}
}

func TestCronDriver_OverdueFiresImmediately(t *testing.T) {
	t.Parallel()
	d := NewCronDriver(time.UTC, logx.Nop())
	fired := make(chan struct{}, 1)
	_, err := d.Arm(RuleFor(time.Now().Add(-time.Hour), false, "", time.UTC), func() { fired <- struct{}{} })
	require.NoError(t, err)

	select {
	case <-fired:
		t.Fatal("fired before Start")
	case <-time.After(50 * time.Millisecond):
	}

	d.Start()
	defer d.Stop(context.Background())
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("overdue one-shot did not fire after Start")
	}
}

func TestCronDriver_DisarmPreventsFire(t *testing.T) {
	t.Parallel()
	d := NewCronDriver(time.UTC, logx.Nop())
	d.Start()
	defer d.Stop(context.Background())

	var n atomic.Int32
	at := time.Now().Add(150 * time.Millisecond)
	h, err := d.Arm(RuleFor(at, false, "", time.UTC), func() { n.Add(1) })
	require.NoError(t, err)
	assert.WithinDuration(t, at, d.Next(h), 0)

	d.Disarm(h)
	d.Disarm(h)
	assert.True(t, d.Next(h).IsZero())

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, n.Load())
}

func TestCronDriver_RepeatingNext(t *testing.T) {
	t.Parallel()
	d := NewCronDriver(time.UTC, logx.Nop())
	d.Start()
	defer d.Stop(context.Background())

	h, err := d.Arm(RuleFor(time.Now().Add(time.Hour), true, Daily, time.UTC), func() {})
	require.NoError(t, err)

	next := d.Next(h)
	require.False(t, next.IsZero())
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(25*time.Hour)))
}

func TestCronDriver_StopWaitsForInFlight(t *testing.T) {
	t.Parallel()
	d := NewCronDriver(time.UTC, logx.Nop())
	d.Start()

	entered := make(chan struct{})
	var finished atomic.Bool
	_, err := d.Arm(RuleFor(time.Now(), false, "", time.UTC), func() {
		close(entered)
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
	})
	require.NoError(t, err)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Stop(ctx)
	assert.True(t, finished.Load())
}

type recordingBackend struct {
	mu   sync.Mutex
	sent []string
}

func (b *recordingBackend) SendToNumber(_ context.Context, phone, content string) (Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, phone+": "+content)
	return Receipt{"messageId": "m-" + phone}, nil
}

func (b *recordingBackend) SendToContact(_ context.Context, contact, content string) (Receipt, error) {
	return b.SendToNumber(context.Background(), contact, content)
}

// End to end through the real driver: a job two seconds out is sent once and
// then disappears from the listing.
func TestScheduler_OneShotThroughCronDriver(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the wall clock")
	}
	t.Parallel()
	backend := &recordingBackend{}
	s, err := New(Config{Timezone: "UTC"}, Deps{Backend: backend, Log: logx.Nop()})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	sum, err := s.Schedule(context.Background(), Request{
		Recipient:    "+911234567890",
		Content:      "Test message",
		ScheduleTime: time.Now().Add(2 * time.Second),
	})
	require.NoError(t, err)
	require.Len(t, s.List(), 1)

	require.Eventually(t, func() bool {
		h, _ := s.History(context.Background(), 0)
		return len(h) == 1
	}, 5*time.Second, 50*time.Millisecond)

	h, _ := s.History(context.Background(), 0)
	assert.Equal(t, sum.JobID, h[0].JobID)
	assert.Equal(t, RunSuccess, h[0].Status)
	assert.Eventually(t, func() bool { return len(s.List()) == 0 }, time.Second, 10*time.Millisecond)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, []string{"+911234567890: Test message"}, backend.sent)
}
