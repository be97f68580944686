package sonarr

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

// Default show-only hints used when neither the rule nor the instance sets
// them.
const (
	defaultSeasonMonitoring = "all"
	defaultSeriesType       = "standard"
)

// Service applies show routing decisions to Sonarr instances. It implements
// router.SeriesTarget.
type Service struct {
	instances *instances.Store
	logger    zerolog.Logger

	mu      sync.Mutex
	clients map[int64]*Client
}

// NewService creates the Sonarr routing target.
func NewService(store *instances.Store, logger zerolog.Logger) *Service {
	return &Service{
		instances: store,
		logger:    logger.With().Str("component", "sonarr").Logger(),
		clients:   make(map[int64]*Client),
	}
}

// RouteSeries adds the item to the given Sonarr instance with the decision's
// overrides. An item already present in the instance's library is a no-op
// success.
func (s *Service) RouteSeries(ctx context.Context, item *router.ContentItem, key string, instanceID int64, opts router.RouteOptions) error {
	inst, err := s.instances.Get(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("failed to resolve instance %d: %w", instanceID, err)
	}
	if inst.Type != router.TargetSonarr {
		return fmt.Errorf("instance %d (%s) is not a sonarr instance", instanceID, inst.Name)
	}
	if !inst.Enabled {
		return fmt.Errorf("instance %d (%s) is disabled", instanceID, inst.Name)
	}

	tvdbID, err := tvdbIDFromItem(item)
	if err != nil {
		return err
	}

	client, err := s.client(inst)
	if err != nil {
		return err
	}

	existing, err := client.LookupByTVDBID(ctx, tvdbID)
	if err != nil {
		return fmt.Errorf("failed to look up series: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Debug().Str("title", item.Title).Str("instance", inst.Name).
			Msg("Series already in library, skipping add")
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

	monitor := opts.SeasonMonitoring
	if monitor == "" {
		monitor = defaultSeasonMonitoring
	}
	seriesType := opts.SeriesType
	if seriesType == "" {
		seriesType = defaultSeriesType
	}

	search := !opts.Syncing
	if opts.SearchOnAdd != nil {
		search = *opts.SearchOnAdd && !opts.Syncing
	}

	req := AddSeriesRequest{
		Title:            item.Title,
		TvdbID:           tvdbID,
		Year:             item.Year,
		QualityProfileID: profileID,
		RootFolderPath:   rootFolder,
		SeriesType:       seriesType,
		Monitored:        true,
		Tags:             tagIDs,
		AddOptions: AddSeriesOptions{
			Monitor:                  monitor,
			SearchForMissingEpisodes: search,
		},
	}

	if _, err := client.AddSeries(ctx, req); err != nil {
		return fmt.Errorf("failed to add series to %s: %w", inst.Name, err)
	}

	s.logger.Info().
		Str("title", item.Title).
		Str("itemKey", key).
		Str("instance", inst.Name).
		Str("monitor", monitor).
		Str("seriesType", seriesType).
		Msg("Routed series to sonarr")
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

func (s *Service) resolveQualityProfile(ctx context.Context, client *Client, override, instanceDefault string) (int64, error) {
	profiles, err := client.QualityProfiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list quality profiles: %w", err)
	}
	if len(profiles) == 0 {
		return 0, fmt.Errorf("sonarr instance has no quality profiles")
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
		return "", fmt.Errorf("sonarr instance has no root folders")
	}
	return folders[0].Path, nil
}

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

func tvdbIDFromItem(item *router.ContentItem) (int64, error) {
	raw := item.GUID("tvdb")
	if raw == "" {
		return 0, fmt.Errorf("item %q has no tvdb guid", item.Title)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("item %q has malformed tvdb guid %q", item.Title, raw)
	}
	return id, nil
}
