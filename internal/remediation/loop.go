package remediation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinelstack/sentinel-ops/internal/metrics"
)

// Sweeper polls every service once, classifying its metric window and feeding
// detected anomalies to the controller.
type Sweeper interface {
	CheckAllServices(ctx context.Context) error
}

// Loop is the background scheduler that drives periodic fleet sweeps. It keeps
// ticking while remediation is disabled (ticks become no-ops) so re-enabling
// takes effect on the next tick without restarting the loop.
type Loop struct {
	sweeper     Sweeper
	controller  *Controller
	interval    time.Duration
	stopTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewLoop builds a loop that sweeps on the given interval.
func NewLoop(sweeper Sweeper, controller *Controller, interval, stopTimeout time.Duration, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}
	return &Loop{
		sweeper:     sweeper,
		controller:  controller,
		interval:    interval,
		stopTimeout: stopTimeout,
		logger:      logger,
	}
}

// Start launches the background task. Calling Start on a running loop is a
// no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.running = true
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(loopCtx)
	l.logger.Info("remediation loop started", "interval", l.interval)
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	// Sweeps run detached from the stop signal. Stop interrupts only the
	// wait below; a restart already in flight must complete and record its
	// real outcome instead of a context-canceled escalation.
	sweepCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(sweepCtx)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("remediation loop stopping")
			return
		case <-ticker.C:
			l.tick(sweepCtx)
		}
	}
}

// tick runs one fleet sweep. Sweep errors are logged and counted; they never
// abort the loop.
func (l *Loop) tick(ctx context.Context) {
	metrics.ObserveTick()

	if !l.controller.IsEnabled() {
		l.logger.Debug("remediation disabled, skipping sweep")
		return
	}
	if err := l.sweeper.CheckAllServices(ctx); err != nil {
		metrics.ObserveTickError()
		l.logger.Error("fleet sweep failed", "error", err)
	}
}

// Stop signals the loop to exit and waits for it within the stop timeout. The
// stop interrupts the inter-tick wait, not an in-flight sweep; a sweep that
// outlives the timeout is abandoned to finish on its own.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel := l.cancel
	done := l.done
	l.running = false
	l.cancel = nil
	l.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(l.stopTimeout):
		l.logger.Warn("remediation loop did not stop in time", "timeout", l.stopTimeout)
	}
}

// IsRunning reports whether the background task is live.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
