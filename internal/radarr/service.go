package radarr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/instances"
	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// Service applies movie routing decisions to Radarr instances. It implements
// router.MovieTarget: instance rows are resolved on demand and clients are
// cached per instance.
type Service struct {
	instances *instances.Store
	logger    zerolog.Logger

	mu      sync.Mutex
	clients map[int64]*Client
}

// NewService creates the Radarr routing target.
func NewService(store *instances.Store, logger zerolog.Logger) *Service {
	return &Service{
		instances: store,
		logger:    logger.With().Str("component", "radarr").Logger(),
		clients:   make(map[int64]*Client),
	}
}

// RouteMovie adds the item to the given Radarr instance with the decision's
// overrides. An item already present in the instance's library is a no-op
// success, so reapplying a routing plan stays idempotent.
func (s *Service) RouteMovie(ctx context.Context, item *router.ContentItem, key string, instanceID int64, opts router.RouteOptions) error {
	inst, err := s.instances.Get(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("failed to resolve instance %d: %w", instanceID, err)
	}
	if inst.Type != router.TargetRadarr {
		return fmt.Errorf("instance %d (%s) is not a radarr instance", instanceID, inst.Name)
	}
	if !inst.Enabled {
		return fmt.Errorf("instance %d (%s) is disabled", instanceID, inst.Name)
	}

	tmdbID, err := tmdbIDFromItem(item)
	if err != nil {
		return err
	}

	client, err := s.client(inst)
	if err != nil {
		return err
	}

	existing, err := client.LookupByTMDBID(ctx, tmdbID)
	if err != nil {
		return fmt.Errorf("failed to look up movie: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Debug().Str("title", item.Title).Str("instance", inst.Name).
			Msg("Movie already in library, skipping add")
		return nil
	}

	profileID, err := s.resolveQualityProfile(ctx, client, opts.QualityProfile, inst.QualityProfile)
	if err != nil {
		return err
	}
	rootFolder, err := s.resolveRootFolder(ctx, client, opts.RootFolder, inst.RootFolder)
	if err != nil {
		return err
	}
	tagIDs, err := s.resolveTags(ctx, client, opts.Tags)
	if err != nil {
		return err
	}

	// Bulk sync suppresses the per-item search; a sync of a large
	// watchlist must not fire hundreds of indexer searches at once.
	search := !opts.Syncing
	if opts.SearchOnAdd != nil {
		search = *opts.SearchOnAdd && !opts.Syncing
	}

	req := AddMovieRequest{
		Title:            item.Title,
		TmdbID:           tmdbID,
		Year:             item.Year,
		QualityProfileID: profileID,
		RootFolderPath:   rootFolder,
		Monitored:        true,
		Tags:             tagIDs,
		AddOptions:       AddMovieOptions{SearchForMovie: search},
	}

	if _, err := client.AddMovie(ctx, req); err != nil {
		return fmt.Errorf("failed to add movie to %s: %w", inst.Name, err)
	}

	s.logger.Info().
		Str("title", item.Title).
		Str("itemKey", key).
		Str("instance", inst.Name).
		Int64("qualityProfileId", profileID).
		Str("rootFolder", rootFolder).
		Msg("Routed movie to radarr")
	return nil
}

// PingInstance checks connectivity to one configured instance.
func (s *Service) PingInstance(ctx context.Context, inst *instances.Instance) error {
	client, err := s.client(inst)
	if err != nil {
		return err
	}
	return client.Ping(ctx)
}

// client returns a cached client for the instance, rebuilding it when the
// instance's connection settings changed.
func (s *Service) client(inst *instances.Instance) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[inst.ID]; ok && client.baseURL == strings.TrimSuffix(inst.URL, "/") && client.apiKey == inst.APIKey {
		return client, nil
	}

	client, err := NewClient(ClientConfig{
		URL:           inst.URL,
		APIKey:        inst.APIKey,
		SkipSSLVerify: inst.SkipSSLVerify,
		Logger:        s.logger,
	})
	if err != nil {
		return nil, err
	}
	s.clients[inst.ID] = client
	return client, nil
}

// resolveQualityProfile maps a profile name to its server-side ID, trying
// the decision's override first, then the instance default, then the first
// profile the server offers.
func (s *Service) resolveQualityProfile(ctx context.Context, client *Client, override, instanceDefault string) (int64, error) {
	profiles, err := client.QualityProfiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list quality profiles: %w", err)
	}
	if len(profiles) == 0 {
		return 0, fmt.Errorf("radarr instance has no quality profiles")
	}

	for _, name := range []string{override, instanceDefault} {
		if name == "" {
			continue
		}
		for _, p := range profiles {
			if strings.EqualFold(p.Name, name) {
				return p.ID, nil
			}
		}
		s.logger.Warn().Str("profile", name).Msg("Quality profile not found on instance")
	}
	return profiles[0].ID, nil
}

// resolveRootFolder picks the decision's override, the instance default, or
// the server's first root folder.
func (s *Service) resolveRootFolder(ctx context.Context, client *Client, override, instanceDefault string) (string, error) {
	if override != "" {
		return override, nil
	}
	if instanceDefault != "" {
		return instanceDefault, nil
	}

	folders, err := client.RootFolders(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list root folders: %w", err)
	}
	if len(folders) == 0 {
		return "", fmt.Errorf("radarr instance has no root folders")
	}
	return folders[0].Path, nil
}

// resolveTags maps tag labels to server-side tag IDs, creating missing tags.
func (s *Service) resolveTags(ctx context.Context, client *Client, labels []string) ([]int64, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	existing, err := client.Tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	byLabel := make(map[string]int64, len(existing))
	for _, t := range existing {
		byLabel[strings.ToLower(t.Label)] = t.ID
	}

	ids := make([]int64, 0, len(labels))
	for _, label := range labels {
		if id, ok := byLabel[strings.ToLower(label)]; ok {
			ids = append(ids, id)
			continue
		}
		tag, err := client.CreateTag(ctx, label)
		if err != nil {
			return nil, fmt.Errorf("failed to create tag %q: %w", label, err)
		}
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

func tmdbIDFromItem(item *router.ContentItem) (int64, error) {
	raw := item.GUID("tmdb")
	if raw == "" {
		return 0, fmt.Errorf("item %q has no tmdb guid", item.Title)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("item %q has malformed tmdb guid %q", item.Title, raw)
	}
	return id, nil
}
