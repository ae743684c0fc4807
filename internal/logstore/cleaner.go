package logstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultCleanupSchedule runs retention cleanup hourly.
const DefaultCleanupSchedule = "@every 1h"

// Cleaner is anything that can apply retention, normally *Store.
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// RetentionCleaner runs Cleanup on a cron schedule.
type RetentionCleaner struct {
	store    Cleaner
	cron     *cron.Cron
	schedule string
	stopOnce sync.Once
}

// NewRetentionCleaner runs one cleanup immediately to catch up after
// downtime, then schedules the rest. schedule accepts standard cron specs
// (optionally with seconds) and descriptors such as "@every 30m".
func NewRetentionCleaner(store Cleaner, schedule string) (*RetentionCleaner, error) {
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	rc := &RetentionCleaner{
		store:    store,
		cron:     cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule: schedule,
	}

	if _, err := rc.cron.AddFunc(schedule, rc.cleanup); err != nil {
		return nil, fmt.Errorf("logstore: invalid cleanup schedule %q: %w", schedule, err)
	}

	rc.cleanup()
	rc.cron.Start()
	log.Info().Str("schedule", schedule).Msg("logstore: retention cleaner started")

	return rc, nil
}

func (rc *RetentionCleaner) cleanup() {
	n, err := rc.store.Cleanup(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("logstore: retention cleanup failed")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Str("schedule", rc.schedule).Msg("logstore: retention cleanup deleted expired entries")
	}
}

// Stop stops the schedule and waits for a running cleanup to finish.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		<-rc.cron.Stop().Done()
	})
}
