package services

import (
	"context"
	"time"

	"cart-monitor-service/models"

	"go.uber.org/zap"
)

type cartMonitor interface {
	MonitorCarts(ctx context.Context) (*models.MonitorResult, error)
}

// Scheduler invokes the monitor once immediately and then on every tick
// until its context ends. A failed pass is logged and the next tick runs as
// usual.
type Scheduler struct {
	monitor  cartMonitor
	interval time.Duration
	log      *zap.Logger
}

func NewScheduler(monitor cartMonitor, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		monitor:  monitor,
		interval: interval,
		log:      log.With(zap.String("component", "scheduler")),
	}
}

// Run blocks until ctx is done. It returns immediately when the interval is
// not positive.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("Scheduler disabled")
		return
	}
	s.log.Info("Scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.monitor.MonitorCarts(ctx)
	if err != nil {
		s.log.Error("Scheduled monitoring pass failed", zap.Error(err))
		return
	}
	s.log.Debug("Scheduled monitoring pass finished", zap.Int("abandoned_carts", len(result.AbandonedCarts)))
}
