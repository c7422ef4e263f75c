package sync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives recurring update cycles. Manual refresh requests and
// interval ticks funnel into the same orchestrator entry point; saving
// settings reprograms the interval without restarting the daemon.
type Scheduler struct {
	orch     *Orchestrator
	log      *zap.SugaredLogger
	interval time.Duration

	triggerCh  chan struct{}
	intervalCh chan time.Duration
}

// NewScheduler creates a scheduler firing every interval.
func NewScheduler(orch *Orchestrator, interval time.Duration, log *zap.SugaredLogger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		orch:       orch,
		log:        log,
		interval:   interval,
		triggerCh:  make(chan struct{}, 1),
		intervalCh: make(chan time.Duration, 1),
	}
}

// Trigger requests an immediate update cycle. Coalesces when one is
// already pending.
func (s *Scheduler) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Reconfigure changes the tick interval, taking effect immediately.
func (s *Scheduler) Reconfigure(interval time.Duration) {
	if interval <= 0 {
		return
	}
	select {
	case s.intervalCh <- interval:
	default:
	}
}

// Run loops until ctx is cancelled, executing one update cycle per tick
// or trigger. A failed cycle is logged and the loop keeps going.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case interval := <-s.intervalCh:
			s.interval = interval
			ticker.Reset(interval)
			s.log.Infow("update interval changed", "interval", interval)
		case <-ticker.C:
			s.cycle(ctx)
		case <-s.triggerCh:
			s.cycle(ctx)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	accounts, err := s.orch.UpdateAll(ctx)
	if err != nil {
		s.log.Errorw("update cycle failed", "error", err)
		return
	}
	s.log.Infow("update cycle complete",
		"accounts", len(accounts), "unread", TotalUnread(accounts))

	s.applySavedInterval(ctx)
}

// applySavedInterval picks up settings saved since the last cycle. The
// settings row is shared with the external UI, so a changed interval
// reprograms the ticker without a daemon restart.
func (s *Scheduler) applySavedInterval(ctx context.Context) {
	settings, err := s.orch.Settings(ctx)
	if err != nil {
		s.log.Warnw("reading settings", "error", err)
		return
	}
	interval := time.Duration(settings.UpdateIntervalMinutes) * time.Minute
	if interval > 0 && interval != s.interval {
		s.Reconfigure(interval)
	}
}
