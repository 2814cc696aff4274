package app

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	logx "chatmate/pkg/logx"
)

// group runs named goroutines under a shared context. The first error or
// panic cancels the context.
type group struct {
	eg  *errgroup.Group
	ctx context.Context
	log logx.Logger

	cancel   context.CancelFunc
	errOnce  sync.Once
	firstErr error
	mu       sync.Mutex
}

func newGroup(parent context.Context, log logx.Logger) *group {
	ctx, cancel := context.WithCancel(parent)
	eg, ctx := errgroup.WithContext(ctx)
	return &group{eg: eg, ctx: ctx, cancel: cancel, log: log}
}

func (g *group) Context() context.Context { return g.ctx }

func (g *group) Cancel() { g.cancel() }

// Err returns the first error reported by a goroutine.
func (g *group) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.firstErr
}

func (g *group) Go(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() (err error) {
		start := time.Now()
		g.log.Debug("goroutine started", logx.String("name", name))
		defer func() {
			if r := recover(); r != nil {
				err = errors.Newf("panic in %s: %v", name, r)
				g.log.Error("goroutine panic", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				g.errOnce.Do(func() {
					g.mu.Lock()
					g.firstErr = err
					g.mu.Unlock()
				})
				g.log.Error("goroutine failed", logx.String("name", name), logx.Err(err))
			} else {
				err = nil
			}
			g.log.Debug("goroutine stopped", logx.String("name", name), logx.Duration("ran", time.Since(start)))
		}()
		return fn(g.ctx)
	})
}

// Wait blocks until every goroutine returns or ctx is done.
func (g *group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = g.eg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
