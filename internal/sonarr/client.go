// Package sonarr applies show routing decisions to Sonarr instances.
package sonarr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 60 * time.Second
	apiKeyHeader   = "X-Api-Key"
)

// Client provides HTTP communication with one Sonarr server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientConfig contains configuration for creating a Sonarr client.
type ClientConfig struct {
	URL           string
	APIKey        string
	SkipSSLVerify bool
	Logger        zerolog.Logger
}

// NewClient creates a new Sonarr HTTP client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("sonarr URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sonarr API key is required")
	}

	transport := &http.Transport{}
	if cfg.SkipSSLVerify {
		//nolint:gosec // admin-configured endpoint, TLS verification optional
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	baseURL := strings.TrimSuffix(cfg.URL, "/")

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
		logger: cfg.Logger.With().Str("component", "sonarr-client").Str("url", baseURL).Logger(),
	}, nil
}

// QualityProfile is one Sonarr quality profile.
type QualityProfile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RootFolder is one Sonarr root folder.
type RootFolder struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

// Tag is one Sonarr tag.
type Tag struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Series is the subset of Sonarr's series resource this client reads.
type Series struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	TvdbID int64  `json:"tvdbId"`
}

// AddSeriesRequest is the payload for adding a series.
type AddSeriesRequest struct {
	Title            string           `json:"title"`
	TvdbID           int64            `json:"tvdbId"`
	Year             int              `json:"year,omitempty"`
	QualityProfileID int64            `json:"qualityProfileId"`
	RootFolderPath   string           `json:"rootFolderPath"`
	SeriesType       string           `json:"seriesType,omitempty"`
	Monitored        bool             `json:"monitored"`
	Tags             []int64          `json:"tags,omitempty"`
	AddOptions       AddSeriesOptions `json:"addOptions"`
}

// AddSeriesOptions controls Sonarr's behavior on add. Monitor selects which
// episodes to monitor: all, future, missing, existing, firstSeason,
// latestSeason or none.
type AddSeriesOptions struct {
	Monitor                  string `json:"monitor,omitempty"`
	SearchForMissingEpisodes bool   `json:"searchForMissingEpisodes"`
}

// QualityProfiles lists the server's quality profiles.
func (c *Client) QualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	var profiles []QualityProfile
	if err := c.get(ctx, "/api/v3/qualityprofile", &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// RootFolders lists the server's root folders.
func (c *Client) RootFolders(ctx context.Context) ([]RootFolder, error) {
	var folders []RootFolder
	if err := c.get(ctx, "/api/v3/rootfolder", &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// Tags lists the server's tags.
func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := c.get(ctx, "/api/v3/tag", &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// CreateTag creates a tag and returns it.
func (c *Client) CreateTag(ctx context.Context, label string) (*Tag, error) {
	var tag Tag
	if err := c.post(ctx, "/api/v3/tag", map[string]string{"label": label}, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

// LookupByTVDBID returns the library entries matching a TVDB ID.
func (c *Client) LookupByTVDBID(ctx context.Context, tvdbID int64) ([]Series, error) {
	var series []Series
	path := fmt.Sprintf("/api/v3/series?tvdbId=%d", tvdbID)
	if err := c.get(ctx, path, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// AddSeries adds a series to the library.
func (c *Client) AddSeries(ctx context.Context, req AddSeriesRequest) (*Series, error) {
	var series Series
	if err := c.post(ctx, "/api/v3/series", req, &series); err != nil {
		return nil, err
	}
	c.logger.Info().Str("title", req.Title).Int64("tvdbId", req.TvdbID).Msg("Added series")
	return &series, nil
}

// Ping verifies connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	var status map[string]any
	return c.get(ctx, "/api/v3/system/status", &status)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data), out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sonarr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sonarr returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode sonarr response: %w", err)
		}
	}
	return nil
}
