package tasks

import (
	"context"

	"github.com/jamcalli/Pulsarr-sub011/internal/health"
	"github.com/jamcalli/Pulsarr-sub011/internal/scheduler"
)

const HealthCheckTaskID = "health-check"

// RegisterHealthCheckTask registers the periodic instance connectivity probe.
func RegisterHealthCheckTask(sched *scheduler.Scheduler, checker *health.Checker) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HealthCheckTaskID,
		Name:        "Health Check",
		Description: "Probe configured instances and the Plex account",
		Cron:        "*/5 * * * *",
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			return checker.Run(ctx)
		},
	})
}
