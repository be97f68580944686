package tasks

import (
	"context"
	"time"

	"github.com/jamcalli/Pulsarr-sub011/internal/history"
	"github.com/jamcalli/Pulsarr-sub011/internal/scheduler"
)

const HistoryCleanupTaskID = "history-cleanup"

// historyRetention keeps a year of routing history. Purged items are
// treated as new on the next sync, so the window stays long.
const historyRetention = 365 * 24 * time.Hour

// RegisterHistoryCleanupTask registers the nightly history cleanup task.
func RegisterHistoryCleanupTask(sched *scheduler.Scheduler, service *history.Service) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryCleanupTaskID,
		Name:        "History Cleanup",
		Description: "Remove routing history entries past the retention window",
		Cron:        "0 3 * * *",
		Func: func(ctx context.Context) error {
			_, err := service.PurgeOlderThan(ctx, time.Now().Add(-historyRetention))
			return err
		},
	})
}
