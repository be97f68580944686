package sonarr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		URL:    server.URL,
		APIKey: "test-key",
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{APIKey: "k"})
	assert.Error(t, err, "URL is required")

	_, err = NewClient(ClientConfig{URL: "http://localhost:8989"})
	assert.Error(t, err, "API key is required")
}

func TestClientLookupByTVDBID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/series", r.URL.Path)
		assert.Equal(t, "271663", r.URL.Query().Get("tvdbId"))
		assert.Equal(t, "test-key", r.Header.Get(apiKeyHeader))
		json.NewEncoder(w).Encode([]Series{{ID: 3, Title: "Dark", TvdbID: 271663}})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	series, err := client.LookupByTVDBID(context.Background(), 271663)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, int64(271663), series[0].TvdbID)
}

func TestClientAddSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v3/series", r.URL.Path)

		var req AddSeriesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(271663), req.TvdbID)
		assert.Equal(t, "anime", req.SeriesType)
		assert.Equal(t, "future", req.AddOptions.Monitor)
		assert.True(t, req.AddOptions.SearchForMissingEpisodes)

		json.NewEncoder(w).Encode(Series{ID: 9, Title: req.Title, TvdbID: req.TvdbID})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	series, err := client.AddSeries(context.Background(), AddSeriesRequest{
		Title:            "Dark",
		TvdbID:           271663,
		QualityProfileID: 6,
		RootFolderPath:   "/tv",
		SeriesType:       "anime",
		Monitored:        true,
		AddOptions: AddSeriesOptions{
			Monitor:                  "future",
			SearchForMissingEpisodes: true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), series.ID)
}

func TestClientCreateTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/tag", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(Tag{ID: 4, Label: body["label"]})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	tag, err := client.CreateTag(context.Background(), "watchlist")
	require.NoError(t, err)
	assert.Equal(t, Tag{ID: 4, Label: "watchlist"}, *tag)
}

func TestClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
