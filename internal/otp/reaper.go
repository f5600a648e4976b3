package otp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const reapTimeout = 30 * time.Second

// Reaper periodically removes expired codes on a cron schedule.
type Reaper struct {
	service *Service
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewReaper schedules service.Reap on a cron schedule such as "@every 3m".
func NewReaper(service *Service, schedule string, logger *slog.Logger) (*Reaper, error) {
	r := &Reaper{
		service: service,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.RunOnce); err != nil {
		return nil, fmt.Errorf("schedule otp reaper %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins the schedule in its own goroutine.
func (r *Reaper) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running sweep, bounded by ctx.
func (r *Reaper) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce performs a single sweep.
func (r *Reaper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), reapTimeout)
	defer cancel()
	n, err := r.service.Reap(ctx)
	if err != nil {
		r.logger.Error("otp reap failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		r.logger.Info("otp reap completed", slog.Int64("deleted", n))
	}
}
