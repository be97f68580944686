package tasks

import (
	"context"
	"fmt"

	"github.com/jamcalli/Pulsarr-sub011/internal/config"
	"github.com/jamcalli/Pulsarr-sub011/internal/scheduler"
	"github.com/jamcalli/Pulsarr-sub011/internal/watchlist"
)

const WatchlistSyncTaskID = "watchlist-sync"

func buildWatchlistSyncCronExpr(intervalMin int) string {
	if intervalMin <= 0 {
		intervalMin = 20
	}
	if intervalMin > 59 {
		intervalMin = 59
	}
	return fmt.Sprintf("*/%d * * * *", intervalMin)
}

// RegisterWatchlistSyncTask registers the watchlist sync task with the
// scheduler.
func RegisterWatchlistSyncTask(sched *scheduler.Scheduler, service *watchlist.Service, cfg *config.SyncConfig) error {
	if !cfg.Enabled {
		return nil
	}

	cronExpr := buildWatchlistSyncCronExpr(int(cfg.Interval.Minutes()))

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          WatchlistSyncTaskID,
		Name:        "Watchlist Sync",
		Description: "Fetch the Plex watchlist and route new items",
		Cron:        cronExpr,
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			_, err := service.Sync(ctx)
			return err
		},
	})
}
