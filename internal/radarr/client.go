// Package radarr applies movie routing decisions to Radarr instances.
package radarr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 60 * time.Second
	apiKeyHeader   = "X-Api-Key"
)

// Client provides HTTP communication with one Radarr server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientConfig contains configuration for creating a Radarr client.
type ClientConfig struct {
	URL           string
	APIKey        string
	SkipSSLVerify bool
	Logger        zerolog.Logger
}

// NewClient creates a new Radarr HTTP client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("radarr URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("radarr API key is required")
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
		logger: cfg.Logger.With().Str("component", "radarr-client").Str("url", baseURL).Logger(),
	}, nil
}

// QualityProfile is one Radarr quality profile.
type QualityProfile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RootFolder is one Radarr root folder.
type RootFolder struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

// Tag is one Radarr tag.
type Tag struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Movie is the subset of Radarr's movie resource this client reads.
type Movie struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	TmdbID int64  `json:"tmdbId"`
}

// AddMovieRequest is the payload for adding a movie.
type AddMovieRequest struct {
	Title            string          `json:"title"`
	TmdbID           int64           `json:"tmdbId"`
	Year             int             `json:"year,omitempty"`
	QualityProfileID int64           `json:"qualityProfileId"`
	RootFolderPath   string          `json:"rootFolderPath"`
	Monitored        bool            `json:"monitored"`
	Tags             []int64         `json:"tags,omitempty"`
	AddOptions       AddMovieOptions `json:"addOptions"`
}

// AddMovieOptions controls Radarr's behavior on add.
type AddMovieOptions struct {
	SearchForMovie bool `json:"searchForMovie"`
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

// LookupByTMDBID returns the library entries matching a TMDB ID. An empty
// slice means the movie is not in the library yet.
func (c *Client) LookupByTMDBID(ctx context.Context, tmdbID int64) ([]Movie, error) {
	var movies []Movie
	path := fmt.Sprintf("/api/v3/movie?tmdbId=%d", tmdbID)
	if err := c.get(ctx, path, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// AddMovie adds a movie to the library.
func (c *Client) AddMovie(ctx context.Context, req AddMovieRequest) (*Movie, error) {
	var movie Movie
	if err := c.post(ctx, "/api/v3/movie", req, &movie); err != nil {
		return nil, err
	}
	c.logger.Info().Str("title", req.Title).Int64("tmdbId", req.TmdbID).Msg("Added movie")
	return &movie, nil
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
	reqURL := c.baseURL + path
	if _, err := url.Parse(reqURL); err != nil {
		return fmt.Errorf("invalid request URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("radarr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("radarr returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode radarr response: %w", err)
		}
	}
	return nil
}
