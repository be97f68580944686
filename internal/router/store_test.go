package router_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
	"github.com/jamcalli/Pulsarr-sub011/internal/testutil"
)

func seedInstance(t *testing.T, conn *sql.DB, name, kind string) int64 {
	t.Helper()
	result, err := conn.Exec(
		`INSERT INTO instances (name, type, url, api_key) VALUES (?, ?, ?, ?)`,
		name, kind, "http://localhost:7878", "key")
	if err != nil {
		t.Fatalf("seed instance: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("seed instance id: %v", err)
	}
	return id
}

func TestStoreRuleLifecycle(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	instanceID := seedInstance(t, tdb.Conn, "radarr-main", "radarr")
	store := router.NewStore(tdb.Conn, zerolog.Nop())
	ctx := context.Background()

	search := true
	created, err := store.CreateRule(ctx, &router.RouterRule{
		Name:           "anime-movies",
		Type:           "genre",
		Target:         router.TargetRadarr,
		InstanceID:     instanceID,
		QualityProfile: "HD-1080p",
		RootFolder:     "/movies/anime",
		Tags:           []string{"anime", "watchlist"},
		Enabled:        true,
		Criteria:       json.RawMessage(`{"field":"genre","operator":"equals","value":"anime"}`),
		SearchOnAdd:    &search,
	})
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("CreateRule did not assign an ID")
	}
	if created.Order != router.DefaultRuleOrder {
		t.Errorf("default order = %d, want %d", created.Order, router.DefaultRuleOrder)
	}

	got, err := store.GetRule(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got.Name != "anime-movies" || got.Target != router.TargetRadarr {
		t.Errorf("GetRule = %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"anime", "watchlist"}) {
		t.Errorf("tags round-trip = %v", got.Tags)
	}
	if got.SearchOnAdd == nil || !*got.SearchOnAdd {
		t.Error("searchOnAdd not persisted")
	}
	if got.QualityProfile != "HD-1080p" || got.RootFolder != "/movies/anime" {
		t.Errorf("overrides not persisted: %+v", got)
	}

	got.Name = "anime-4k"
	got.Enabled = false
	got.Tags = nil
	if err := store.UpdateRule(ctx, got); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	updated, err := store.GetRule(ctx, got.ID)
	if err != nil {
		t.Fatalf("GetRule after update: %v", err)
	}
	if updated.Name != "anime-4k" || updated.Enabled || updated.Tags != nil {
		t.Errorf("update not applied: %+v", updated)
	}

	count, err := store.CountRules(ctx)
	if err != nil {
		t.Fatalf("CountRules: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	if err := store.DeleteRule(ctx, got.ID); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if _, err := store.GetRule(ctx, got.ID); !errors.Is(err, router.ErrRuleNotFound) {
		t.Errorf("GetRule after delete = %v, want ErrRuleNotFound", err)
	}
}

func TestStoreGetRouterRulesByType(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	radarrID := seedInstance(t, tdb.Conn, "radarr-main", "radarr")
	sonarrID := seedInstance(t, tdb.Conn, "sonarr-main", "sonarr")
	store := router.NewStore(tdb.Conn, zerolog.Nop())
	ctx := context.Background()

	criteria := json.RawMessage(`{"field":"year","operator":"greaterThan","value":2020}`)
	rules := []router.RouterRule{
		{Name: "low", Type: "year", Target: router.TargetRadarr, InstanceID: radarrID, Order: 10, Criteria: criteria},
		{Name: "high", Type: "year", Target: router.TargetRadarr, InstanceID: radarrID, Order: 90, Criteria: criteria},
		{Name: "other-type", Type: "genre", Target: router.TargetSonarr, InstanceID: sonarrID,
			Criteria: json.RawMessage(`{"field":"genre","operator":"equals","value":"anime"}`)},
	}
	for i := range rules {
		if _, err := store.CreateRule(ctx, &rules[i]); err != nil {
			t.Fatalf("CreateRule %s: %v", rules[i].Name, err)
		}
	}

	yearRules, err := store.GetRouterRulesByType(ctx, "year")
	if err != nil {
		t.Fatalf("GetRouterRulesByType: %v", err)
	}
	if len(yearRules) != 2 {
		t.Fatalf("year rules = %d, want 2", len(yearRules))
	}
	// Highest sort order first.
	if yearRules[0].Name != "high" || yearRules[1].Name != "low" {
		t.Errorf("order = [%s, %s], want [high, low]", yearRules[0].Name, yearRules[1].Name)
	}

	all, err := store.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListRules = %d, want 3", len(all))
	}
}

func TestStoreNotFoundPaths(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	store := router.NewStore(tdb.Conn, zerolog.Nop())
	ctx := context.Background()

	if _, err := store.GetRule(ctx, 999); !errors.Is(err, router.ErrRuleNotFound) {
		t.Errorf("GetRule = %v, want ErrRuleNotFound", err)
	}
	if err := store.DeleteRule(ctx, 999); !errors.Is(err, router.ErrRuleNotFound) {
		t.Errorf("DeleteRule = %v, want ErrRuleNotFound", err)
	}
	err := store.UpdateRule(ctx, &router.RouterRule{
		ID: 999, Name: "ghost", Type: "year", Target: router.TargetRadarr, InstanceID: 1,
		Criteria: json.RawMessage(`{"field":"year","operator":"equals","value":2020}`),
	})
	if !errors.Is(err, router.ErrRuleNotFound) {
		t.Errorf("UpdateRule = %v, want ErrRuleNotFound", err)
	}
}
