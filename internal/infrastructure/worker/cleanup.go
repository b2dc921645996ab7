package worker

import (
	"context"
	"time"

	"fxcore-service/internal/application"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var _ application.Worker = (*Cleanup)(nil)

const (
	DefaultRetentionDays   = 90
	DefaultCleanupSchedule = "0 3 * * *"
)

// Cleanup prunes conversion records past the retention window on a
// cron schedule.
type Cleanup struct {
	store         application.ConversionStore
	log           *zap.Logger
	schedule      string
	retentionDays int
}

func NewCleanup(store application.ConversionStore, log *zap.Logger, schedule string, retentionDays int) *Cleanup {
	if log == nil {
		log = zap.NewNop()
	}
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Cleanup{store: store, log: log, schedule: schedule, retentionDays: retentionDays}
}

func (c *Cleanup) Start(ctx context.Context) {
	cr := cron.New()
	_, err := cr.AddFunc(c.schedule, func() { c.runOnce(ctx) })
	if err != nil {
		c.log.Error("cleanup.bad_schedule", zap.String("schedule", c.schedule), zap.Error(err))
		return
	}
	cr.Start()
	<-ctx.Done()
	<-cr.Stop().Done()
}

func (c *Cleanup) runOnce(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	deleted, err := c.store.DeleteOlderThan(cctx, c.retentionDays)
	if err != nil {
		c.log.Error("cleanup.retention_failed", zap.Error(err))
		return
	}
	c.log.Info("cleanup.retention_done",
		zap.Int64("deleted", deleted),
		zap.Int("retention_days", c.retentionDays),
	)
}
