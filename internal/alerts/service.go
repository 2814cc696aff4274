package alerts

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chatmate/internal/eventbus"
	"chatmate/internal/schedule"
	logx "chatmate/pkg/logx"
)

type Config struct {
	Enabled     bool
	ChatID      int64
	RatePerSec  int
	QueueSize   int
	RetryMax    int
	RetryBase   time.Duration
	DedupWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.DedupWindow < 0 {
		c.DedupWindow = 0
	}
	return c
}

// Service is safe for concurrent use. Start and Stop may be called again
// after a reload.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	sender  Sender
	bus     eventbus.Bus
	log     logx.Logger

	queue  chan string
	unsub  func()
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dmu   sync.Mutex
	dedup map[uint64]time.Time
	now   func() time.Time
}

func New(cfg Config, sender Sender, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	s := &Service{sender: sender, bus: bus, log: log, dedup: map[uint64]time.Time{}, now: time.Now}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(cfg)
}

func (s *Service) applyLocked(cfg Config) {
	cfg = cfg.withDefaults()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil || !s.cfg.Enabled || s.sender == nil {
		return
	}
	if s.cfg.ChatID == 0 {
		s.log.Warn("alerts enabled without chat id; disabled")
		return
	}
	rctx, cancel := context.WithCancel(ctx)
	events, unsub := s.bus.Subscribe(s.cfg.QueueSize, schedule.EventFired)
	q := make(chan string, s.cfg.QueueSize)
	s.queue, s.unsub, s.cancel = q, unsub, cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer close(q)
		s.listen(rctx, events, q)
	}()
	go func() {
		defer s.wg.Done()
		for text := range q {
			s.sendWithRetry(rctx, text)
		}
	}()
	s.log.Info("alerts started", logx.Int64("chat", s.cfg.ChatID))
}

// Stop unsubscribes and drains queued alerts until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.queue == nil {
		s.mu.Unlock()
		return
	}
	unsub, cancel := s.unsub, s.cancel
	s.queue, s.unsub, s.cancel = nil, nil, nil
	s.mu.Unlock()

	unsub()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("alerts stop timed out; dropping queued alerts")
	}
	cancel()
}

func (s *Service) listen(ctx context.Context, events <-chan eventbus.Event, q chan<- string) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			je, ok := ev.Data.(schedule.JobEvent)
			if !ok || je.Status != schedule.RunFailed {
				continue
			}
			if !s.allow(je) {
				s.log.Debug("alert suppressed", logx.String("job", je.JobID))
				continue
			}
			select {
			case q <- format(je, ev.Time):
			default:
				s.log.Warn("alert queue full; dropping", logx.String("job", je.JobID))
			}
		}
	}
}

func (s *Service) allow(je schedule.JobEvent) bool {
	s.mu.Lock()
	window := s.cfg.DedupWindow
	s.mu.Unlock()
	if window == 0 {
		return true
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(je.JobID + "|" + je.Error))
	key := h.Sum64()
	now := s.now()

	s.dmu.Lock()
	defer s.dmu.Unlock()
	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	s.dedup[key] = now.Add(window)
	return true
}

func format(je schedule.JobEvent, at time.Time) string {
	var b strings.Builder
	b.WriteString("⚠️ Scheduled message failed\n")
	fmt.Fprintf(&b, "Job: %s\n", je.JobID)
	fmt.Fprintf(&b, "To: %s\n", je.Recipient)
	if je.Repeat {
		b.WriteString("Repeating: yes\n")
	}
	if !at.IsZero() {
		fmt.Fprintf(&b, "At: %s\n", at.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Error: %s", je.Error)
	return b.String()
}

func (s *Service) sendWithRetry(ctx context.Context, text string) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	attempts := 1 + cfg.RetryMax
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := s.sender.Send(cctx, cfg.ChatID, text)
		cancel()
		if err == nil {
			return
		}
		s.log.Debug("alert send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", attempts))
		if attempt == attempts {
			s.log.Warn("alert dropped after retries", logx.Err(err))
			return
		}
		t := time.NewTimer(cfg.RetryBase * time.Duration(1<<(attempt-1)))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}
