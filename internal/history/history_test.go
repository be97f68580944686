package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/history"
	"github.com/jamcalli/Pulsarr-sub011/internal/testutil"
)

func newTestService(t *testing.T) (*history.Service, func()) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return history.NewService(tdb.Conn, zerolog.Nop()), tdb.Close
}

func TestRecordAndSeen(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	seen, err := svc.Seen(ctx, "plex:movie:603")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Error("unrecorded item reported as seen")
	}

	ruleID := int64(7)
	entry := &history.Entry{
		ItemKey:     "plex:movie:603",
		Title:       "The Matrix",
		ContentType: "movie",
		InstanceID:  1,
		RuleID:      &ruleID,
		RuleName:    "scifi",
		SyncRun:     "run-1",
		Tags:        []string{"scifi"},
	}
	if err := svc.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if entry.ID == 0 {
		t.Error("Record did not assign an ID")
	}

	seen, err = svc.Seen(ctx, "plex:movie:603")
	if err != nil {
		t.Fatalf("Seen after record: %v", err)
	}
	if !seen {
		t.Error("recorded item not reported as seen")
	}
}

func TestListPaginationAndFilter(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Record(ctx, &history.Entry{
			ItemKey:     fmt.Sprintf("plex:movie:%d", i),
			Title:       fmt.Sprintf("Movie %d", i),
			ContentType: "movie",
			InstanceID:  1,
			Fallback:    true,
		}); err != nil {
			t.Fatalf("Record movie %d: %v", i, err)
		}
	}
	if err := svc.Record(ctx, &history.Entry{
		ItemKey:     "plex:show:1",
		Title:       "Dark",
		ContentType: "show",
		InstanceID:  2,
	}); err != nil {
		t.Fatalf("Record show: %v", err)
	}

	page, err := svc.List(ctx, history.ListOptions{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalCount != 4 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Errorf("page = %d items, total %d over %d pages; want 2/4/2",
			len(page.Items), page.TotalCount, page.TotalPages)
	}
	// Newest first.
	if page.Items[0].Title != "Dark" {
		t.Errorf("first item = %q, want Dark", page.Items[0].Title)
	}

	movies, err := svc.List(ctx, history.ListOptions{ContentType: "movie"})
	if err != nil {
		t.Fatalf("List movies: %v", err)
	}
	if movies.TotalCount != 3 {
		t.Errorf("movie count = %d, want 3", movies.TotalCount)
	}
	for _, item := range movies.Items {
		if !item.Fallback {
			t.Errorf("fallback flag lost on %q", item.Title)
		}
	}
}

func TestPurgeOlderThan(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	if err := svc.Record(ctx, &history.Entry{
		ItemKey: "plex:movie:1", Title: "Recent", ContentType: "movie", InstanceID: 1,
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Entries are recorded with the current time; a cutoff in the past
	// must not touch them.
	deleted, err := svc.PurgeOlderThan(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}

	deleted, err = svc.PurgeOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeOlderThan future: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	seen, err := svc.Seen(ctx, "plex:movie:1")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Error("purged item still reported as seen")
	}
}

func TestDeleteAll(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.Record(ctx, &history.Entry{
			ItemKey: fmt.Sprintf("k%d", i), Title: "x", ContentType: "movie", InstanceID: 1,
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	if err := svc.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	page, err := svc.List(ctx, history.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalCount != 0 {
		t.Errorf("count after clear = %d, want 0", page.TotalCount)
	}
}
