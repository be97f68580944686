// Package watchlist periodically syncs the Plex watchlist and routes new
// items through the routing engine.
package watchlist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/history"
	"github.com/jamcalli/Pulsarr-sub011/internal/plex"
	"github.com/jamcalli/Pulsarr-sub011/internal/progress"
	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// PlexSource is the slice of the Plex client the sync consumes.
type PlexSource interface {
	Account(ctx context.Context) (*plex.Account, error)
	Watchlist(ctx context.Context) ([]plex.WatchlistItem, error)
	Metadata(ctx context.Context, ratingKey string) (*plex.WatchlistItem, error)
}

// Router is the slice of the routing service the sync consumes.
type Router interface {
	Route(ctx context.Context, item *router.ContentItem, rctx *router.RoutingContext) ([]router.RoutingDecision, error)
}

// Broadcaster pushes sync progress to websocket clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Status describes the current or last sync run.
type Status struct {
	Running     bool       `json:"running"`
	RunID       string     `json:"runId,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	ItemsTotal  int        `json:"itemsTotal"`
	ItemsNew    int        `json:"itemsNew"`
	ItemsRouted int        `json:"itemsRouted"`
	ItemsFailed int        `json:"itemsFailed"`
	LastError   string     `json:"lastError,omitempty"`
}

// Service syncs the watchlist against routing history.
type Service struct {
	plex     PlexSource
	router   Router
	history  *history.Service
	hub      Broadcaster
	progress *progress.Manager
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	status  Status
}

// NewService creates a new watchlist sync service.
func NewService(plexClient PlexSource, routerSvc Router, historySvc *history.Service, hub Broadcaster, logger zerolog.Logger) *Service {
	return &Service{
		plex:     plexClient,
		router:   routerSvc,
		history:  historySvc,
		hub:      hub,
		progress: progress.NewManager(hub, logger),
		logger:   logger.With().Str("component", "watchlist").Logger(),
	}
}

// Status returns a snapshot of the current sync state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	status.Running = s.running
	return status
}

// Sync fetches the watchlist, routes items not seen before, and records
// each outcome. Only one sync runs at a time; a second call while one is
// in flight returns an error.
func (s *Service) Sync(ctx context.Context) (Status, error) {
	if s.plex == nil {
		return Status{}, fmt.Errorf("no plex token configured")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Status{}, fmt.Errorf("sync already in progress")
	}
	runID := uuid.NewString()
	now := time.Now().UTC()
	s.running = true
	s.status = Status{RunID: runID, StartedAt: &now}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		finished := time.Now().UTC()
		s.running = false
		s.status.FinishedAt = &finished
		s.mu.Unlock()
	}()

	logger := s.logger.With().Str("run", runID).Logger()
	logger.Info().Msg("Watchlist sync started")
	s.broadcast("sync:started", map[string]any{"runId": runID})
	s.progress.StartActivity(runID, progress.ActivityTypeSync, "Watchlist sync")

	status, err := s.run(ctx, runID, logger)
	if err != nil {
		s.progress.FailActivity(runID, err.Error())
		s.mu.Lock()
		s.status.LastError = err.Error()
		s.mu.Unlock()
		s.broadcast("sync:failed", map[string]any{"runId": runID, "error": err.Error()})
		return s.Status(), err
	}

	s.mu.Lock()
	s.status.ItemsTotal = status.ItemsTotal
	s.status.ItemsNew = status.ItemsNew
	s.status.ItemsRouted = status.ItemsRouted
	s.status.ItemsFailed = status.ItemsFailed
	s.mu.Unlock()

	s.progress.CompleteActivity(runID,
		fmt.Sprintf("%d new items, %d routed", status.ItemsNew, status.ItemsRouted))

	logger.Info().
		Int("total", status.ItemsTotal).
		Int("new", status.ItemsNew).
		Int("routed", status.ItemsRouted).
		Int("failed", status.ItemsFailed).
		Msg("Watchlist sync finished")
	s.broadcast("sync:finished", s.Status())

	return s.Status(), nil
}

func (s *Service) run(ctx context.Context, runID string, logger zerolog.Logger) (Status, error) {
	account, err := s.plex.Account(ctx)
	if err != nil {
		return Status{}, err
	}

	items, err := s.plex.Watchlist(ctx)
	if err != nil {
		return Status{}, err
	}

	status := Status{ItemsTotal: len(items)}
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return status, err
		}

		s.progress.UpdateActivity(runID, item.Title, (i*100)/len(items))

		seen, err := s.history.Seen(ctx, item.RatingKey)
		if err != nil {
			return status, err
		}
		if seen {
			continue
		}
		status.ItemsNew++

		if err := s.routeItem(ctx, runID, account, item); err != nil {
			status.ItemsFailed++
			logger.Error().Err(err).Str("title", item.Title).Msg("Failed to route watchlist item")
			continue
		}
		status.ItemsRouted++
	}

	return status, nil
}

// routeItem enriches one item with full metadata, routes it, and records
// each applied decision.
func (s *Service) routeItem(ctx context.Context, runID string, account *plex.Account, item plex.WatchlistItem) error {
	detail, err := s.plex.Metadata(ctx, item.RatingKey)
	if err != nil {
		// Route on the thinner listing data rather than dropping the item.
		s.logger.Warn().Err(err).Str("title", item.Title).
			Msg("Metadata fetch failed, routing with listing data")
		detail = &item
	}

	rctx := &router.RoutingContext{
		UserID:      account.ID,
		UserName:    account.Username,
		ItemKey:     item.RatingKey,
		ContentType: detail.Type,
		Syncing:     true,
	}

	decisions, err := s.router.Route(ctx, detail.ContentItem(), rctx)
	if err != nil {
		return err
	}

	for _, decision := range decisions {
		entry := &history.Entry{
			ItemKey:     item.RatingKey,
			Title:       detail.Title,
			ContentType: string(detail.Type),
			InstanceID:  decision.InstanceID,
			RuleName:    decision.RuleName,
			Fallback:    decision.Fallback,
			SyncRun:     runID,
			Tags:        decision.Tags,
		}
		if decision.RuleID != 0 {
			id := decision.RuleID
			entry.RuleID = &id
		}
		if err := s.history.Record(ctx, entry); err != nil {
			return fmt.Errorf("failed to record routing history: %w", err)
		}
	}
	return nil
}

func (s *Service) broadcast(msgType string, payload interface{}) {
	if s.hub != nil {
		_ = s.hub.Broadcast(msgType, payload)
	}
}
