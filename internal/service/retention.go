package service

import (
	"context"
	"time"

	"precioverdadero/internal/constants"
	"precioverdadero/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Cleaner deletes records older than the retention period.
type Cleaner interface {
	CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error)
}

// RetentionSweeper purges expired chat history and idempotency keys once
// at start and then on every interval.
type RetentionSweeper struct {
	cleaner       Cleaner
	retentionDays int
	interval      time.Duration
	logger        *logrus.Logger
}

func NewRetentionSweeper(cleaner Cleaner, retentionDays int, interval time.Duration, logger *logrus.Logger) *RetentionSweeper {
	if interval <= 0 {
		interval = constants.DefaultCleanupIntervalHours * time.Hour
	}
	if retentionDays <= 0 {
		retentionDays = constants.DefaultRetentionDays
	}
	return &RetentionSweeper{
		cleaner:       cleaner,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger,
	}
}

// Run blocks until ctx is done. Failed sweeps are logged and retried on
// the next tick.
func (s *RetentionSweeper) Run(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		LogFieldRetentionDays: s.retentionDays,
		"interval":            s.interval.String(),
	}).Info("Retention sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *RetentionSweeper) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	removed, err := s.cleaner.CleanupOldRecords(ctx, s.retentionDays)
	if err != nil {
		metrics.IncrementCounter(metrics.RetentionSweeps, map[string]string{"status": "error"}, "Retention sweeps")
		s.logger.WithError(err).Error("Retention sweep failed")
		return
	}

	metrics.IncrementCounter(metrics.RetentionSweeps, map[string]string{"status": "success"}, "Retention sweeps")
	metrics.AddToCounter(metrics.RecordsPurged, float64(removed), nil, "Expired records deleted")
	s.logger.WithFields(logrus.Fields{
		LogFieldCount:    removed,
		LogFieldDuration: time.Since(start).Milliseconds(),
	}).Info("Retention sweep completed")
}
