package dependency_container

import (
	"context"

	"github.com/NeuralTrust/ThreatGate/pkg/config"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/scheduler"
)

const (
	DetectorTask  = "attack_detector"
	SweepTask     = "blocklist_sweep"
	SyncTask      = "ledger_sync"
	RetentionTask = "security_event_retention"
)

// ScheduledTasks returns the background jobs a proxy instance runs.
func (c *Container) ScheduledTasks(cfg *config.Config) []scheduler.Task {
	tasks := []scheduler.Task{
		{
			Name:     SweepTask,
			Interval: cfg.Blocklist.SweepInterval,
			Run: func(ctx context.Context) error {
				_, err := c.Lifecycle.SweepExpired(ctx)
				return err
			},
		},
		{
			Name:     SyncTask,
			Interval: cfg.Blocklist.SyncInterval,
			Run: func(ctx context.Context) error {
				if _, err := c.Lifecycle.SyncPending(ctx); err != nil {
					return err
				}
				_, err := c.Detector.SyncPending(ctx)
				return err
			},
		},
		{
			Name:     RetentionTask,
			Interval: cfg.SecurityEvents.RetentionCheck,
			Run: func(ctx context.Context) error {
				_, err := c.Recorder.Trim(ctx)
				return err
			},
		},
	}
	if cfg.Detector.Enabled {
		tasks = append(tasks, scheduler.Task{
			Name:     DetectorTask,
			Interval: cfg.Detector.Interval,
			Run: func(ctx context.Context) error {
				_, err := c.Detector.Run(ctx)
				return err
			},
		})
	}
	return tasks
}
