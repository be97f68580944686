// Package plex fetches watchlist items and their metadata from the Plex
// discover API.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

const (
	defaultMetadataURL = "https://metadata.provider.plex.tv"
	defaultAccountURL  = "https://plex.tv"
	defaultTimeout     = 30 * time.Second
	tokenHeader        = "X-Plex-Token"
)

// Client provides HTTP communication with the Plex discover API.
type Client struct {
	metadataURL string
	accountURL  string
	token       string
	httpClient  *http.Client
	logger      zerolog.Logger
}

// ClientConfig contains configuration for creating a Plex client.
type ClientConfig struct {
	Token string

	// MetadataURL and AccountURL override the public Plex endpoints,
	// used by tests.
	MetadataURL string
	AccountURL  string

	Logger zerolog.Logger
}

// NewClient creates a new Plex client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("plex token is required")
	}

	metadataURL := cfg.MetadataURL
	if metadataURL == "" {
		metadataURL = defaultMetadataURL
	}
	accountURL := cfg.AccountURL
	if accountURL == "" {
		accountURL = defaultAccountURL
	}

	return &Client{
		metadataURL: strings.TrimSuffix(metadataURL, "/"),
		accountURL:  strings.TrimSuffix(accountURL, "/"),
		token:       cfg.Token,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		logger:      cfg.Logger.With().Str("component", "plex-client").Logger(),
	}, nil
}

// Account is the Plex account owning the configured token.
type Account struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// WatchlistItem is one entry of the account's watchlist.
type WatchlistItem struct {
	RatingKey string
	Title     string
	Type      router.ContentType
	Year      int
	GUIDs     []string
	Genres    []string
	Ratings   *router.Ratings
	Seasons   []router.Season
}

// mediaContainer mirrors the JSON envelope of discover API responses.
type mediaContainer struct {
	MediaContainer struct {
		Metadata []metadataEntry `json:"Metadata"`
	} `json:"MediaContainer"`
}

type metadataEntry struct {
	RatingKey   string  `json:"ratingKey"`
	Title       string  `json:"title"`
	Type        string  `json:"type"`
	Year        int     `json:"year"`
	GUID        string  `json:"guid"`
	RatingCount int     `json:"ratingCount"`
	Guids       []struct {
		ID string `json:"id"`
	} `json:"Guid"`
	Genres []struct {
		Tag string `json:"tag"`
	} `json:"Genre"`
	Ratings []struct {
		Image string  `json:"image"`
		Type  string  `json:"type"`
		Value float64 `json:"value"`
	} `json:"Rating"`
	Children []struct {
		Index     int `json:"index"`
		LeafCount int `json:"leafCount"`
	} `json:"Children"`
}

// Account returns the account owning the token. Its identity becomes the
// routing context's user.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.get(ctx, c.accountURL+"/api/v2/user", &account); err != nil {
		return nil, fmt.Errorf("failed to fetch plex account: %w", err)
	}
	return &account, nil
}

// Watchlist returns the account's current watchlist.
func (c *Client) Watchlist(ctx context.Context) ([]WatchlistItem, error) {
	var container mediaContainer
	url := c.metadataURL + "/library/sections/watchlist/all"
	if err := c.get(ctx, url, &container); err != nil {
		return nil, fmt.Errorf("failed to fetch watchlist: %w", err)
	}

	items := make([]WatchlistItem, 0, len(container.MediaContainer.Metadata))
	for _, entry := range container.MediaContainer.Metadata {
		item, ok := entryToItem(entry)
		if !ok {
			c.logger.Debug().Str("type", entry.Type).Str("title", entry.Title).
				Msg("Skipping unsupported watchlist entry")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Metadata enriches one watchlist item with full details: genres, ratings
// and, for shows, the season list.
func (c *Client) Metadata(ctx context.Context, ratingKey string) (*WatchlistItem, error) {
	var container mediaContainer
	url := c.metadataURL + "/library/metadata/" + ratingKey
	if err := c.get(ctx, url, &container); err != nil {
		return nil, fmt.Errorf("failed to fetch metadata for %s: %w", ratingKey, err)
	}
	if len(container.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("no metadata for rating key %s", ratingKey)
	}

	item, ok := entryToItem(container.MediaContainer.Metadata[0])
	if !ok {
		return nil, fmt.Errorf("unsupported metadata type for rating key %s", ratingKey)
	}
	return &item, nil
}

func entryToItem(entry metadataEntry) (WatchlistItem, bool) {
	var contentType router.ContentType
	switch entry.Type {
	case "movie":
		contentType = router.ContentTypeMovie
	case "show":
		contentType = router.ContentTypeShow
	default:
		return WatchlistItem{}, false
	}

	item := WatchlistItem{
		RatingKey: entry.RatingKey,
		Title:     entry.Title,
		Type:      contentType,
		Year:      entry.Year,
	}

	for _, g := range entry.Guids {
		if g.ID != "" {
			item.GUIDs = append(item.GUIDs, g.ID)
		}
	}
	for _, g := range entry.Genres {
		if g.Tag != "" {
			item.Genres = append(item.Genres, g.Tag)
		}
	}
	for _, child := range entry.Children {
		item.Seasons = append(item.Seasons, router.Season{
			Number:           child.Index,
			EpisodeFileCount: child.LeafCount,
		})
	}

	item.Ratings = parseRatings(entry)
	return item, true
}

// parseRatings maps Plex's per-source rating entries to the internal 0-10
// model. Plex already reports all sources on a 0-10 scale.
func parseRatings(entry metadataEntry) *router.Ratings {
	if len(entry.Ratings) == 0 {
		return nil
	}

	ratings := &router.Ratings{}
	for _, r := range entry.Ratings {
		switch {
		case strings.HasPrefix(r.Image, "imdb://"):
			ratings.IMDB = &router.Rating{Value: r.Value, Votes: entry.RatingCount}
		case strings.HasPrefix(r.Image, "rottentomatoes://") && r.Type == "audience":
			ratings.RTAudience = &router.Rating{Value: r.Value}
		case strings.HasPrefix(r.Image, "rottentomatoes://"):
			ratings.RTCritic = &router.Rating{Value: r.Value}
		case strings.HasPrefix(r.Image, "themoviedb://"):
			ratings.TMDB = &router.Rating{Value: r.Value}
		}
	}
	return ratings
}

// ContentItem converts a watchlist item to the routing engine's input.
func (w *WatchlistItem) ContentItem() *router.ContentItem {
	return &router.ContentItem{
		Title:   w.Title,
		Type:    w.Type,
		GUIDs:   w.GUIDs,
		Genres:  w.Genres,
		Year:    w.Year,
		Seasons: w.Seasons,
		Ratings: w.Ratings,
	}
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(tokenHeader, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("plex returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode plex response: %w", err)
	}
	return nil
}
