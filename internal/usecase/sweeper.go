package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"partnerbot/internal/domain"
)

// Sweeper periodically removes expired principal records and stale login
// nonces from stores without native TTL support (the SQLite backend).
// Redis-backed stores expire keys themselves and register no sweepers.
type Sweeper struct {
	cron    *cron.Cron
	targets []domain.Sweeper
	logger  *slog.Logger
}

// NewSweeper creates a sweeper over the given targets.
func NewSweeper(targets []domain.Sweeper, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cron:    cron.New(),
		targets: targets,
		logger:  logger,
	}
}

// Start schedules the sweep on the given cron spec (e.g. "@every 10m") and
// begins running. Returns an error for an invalid spec.
func (s *Sweeper) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, s.sweepAll)
	if err != nil {
		return domain.WrapOp("Sweeper.Start", err)
	}
	s.cron.Start()
	s.logger.Info("expiry sweeper started", "schedule", spec, "targets", len(s.targets))
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweepAll() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now()
	for _, t := range s.targets {
		n, err := t.Sweep(ctx, now)
		if err != nil {
			s.logger.Warn("sweep failed", "error", err)
			continue
		}
		if n > 0 {
			s.logger.Info("expired records swept", "count", n)
		}
	}
}
