package game

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Advancer is the step a Ticker drives.
type Advancer interface {
	Advance(ctx context.Context) error
}

// Ticker advances rounds on an interval so transitions happen on time even
// when nobody is polling. It uses the same Advance path as requests.
type Ticker struct {
	interval time.Duration
	engine   Advancer
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTicker(interval time.Duration, engine Advancer, logger *slog.Logger) *Ticker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ticker{
		interval: interval,
		engine:   engine,
		logger:   logger,
	}
}

// Start begins the loop.
func (t *Ticker) Start(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	t.wg.Add(1)
	go t.run()

	t.logger.Info("round ticker started", "interval", t.interval)
	return nil
}

// Stop cancels the loop and waits for an in-flight step to finish.
func (t *Ticker) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("round ticker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.step()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.step()
		}
	}
}

func (t *Ticker) step() {
	if err := t.engine.Advance(t.ctx); err != nil && t.ctx.Err() == nil {
		t.logger.Warn("round advance failed", "err", err)
	}
}
