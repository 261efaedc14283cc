package miner

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"alphaminer/internal/logging"
)

// Scheduler saves checkpoints on a time schedule, independent of the
// acceptance-count interval, so a long dry stretch without acceptances
// still leaves recent progress on disk.
type Scheduler struct {
	cron  *cron.Cron
	miner *Miner
}

// NewScheduler creates a checkpoint scheduler. The schedule uses cron
// syntax, e.g. "@every 5m".
func NewScheduler(m *Miner, schedule string) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{cron: c, miner: m}

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.Checkpoint(ctx); err != nil {
			logging.WithError(err).Warn("Scheduled checkpoint failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add checkpoint job: %w", err)
	}
	return s, nil
}

// Start begins scheduled checkpointing
func (s *Scheduler) Start() {
	s.cron.Start()
	logging.Info("Checkpoint scheduler started")
}

// Stop halts scheduled checkpointing, waiting for a running save
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
