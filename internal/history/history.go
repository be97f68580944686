// Package history records which watchlist items have been routed, and
// where. The watchlist sync consults it to skip items it already handled.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one recorded routing outcome.
type Entry struct {
	ID          int64     `json:"id"`
	ItemKey     string    `json:"itemKey"`
	Title       string    `json:"title"`
	ContentType string    `json:"contentType"`
	InstanceID  int64     `json:"instanceId"`
	RuleID      *int64    `json:"ruleId,omitempty"`
	RuleName    string    `json:"ruleName,omitempty"`
	Fallback    bool      `json:"fallback"`
	SyncRun     string    `json:"syncRun,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	RoutedAt    time.Time `json:"routedAt"`
}

// Service persists and queries routing history.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Record stores one routing outcome.
func (s *Service) Record(ctx context.Context, entry *Entry) error {
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	var ruleID sql.NullInt64
	if entry.RuleID != nil {
		ruleID = sql.NullInt64{Int64: *entry.RuleID, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO routed_items (item_key, title, content_type, instance_id, rule_id, rule_name, fallback, sync_run, tags, routed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ItemKey, entry.Title, entry.ContentType, entry.InstanceID, ruleID,
		entry.RuleName, boolToInt(entry.Fallback), entry.SyncRun, string(tags),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record routing: %w", err)
	}

	entry.ID, _ = result.LastInsertId()
	return nil
}

// Seen reports whether an item key already has a history entry.
func (s *Service) Seen(ctx context.Context, itemKey string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM routed_items WHERE item_key = ?`, itemKey).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check history: %w", err)
	}
	return count > 0, nil
}

// ListOptions controls history pagination and filtering.
type ListOptions struct {
	ContentType string
	Page        int
	PageSize    int
}

// ListResponse is a paginated history result.
type ListResponse struct {
	Items      []*Entry `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalCount int64    `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
}

// List lists history entries with pagination and filtering, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	offset := (opts.Page - 1) * opts.PageSize

	query := `
		SELECT id, item_key, title, content_type, instance_id, rule_id, rule_name, fallback, sync_run, tags, routed_at
		FROM routed_items`
	countQuery := `SELECT COUNT(*) FROM routed_items`
	var args []any
	if opts.ContentType != "" {
		query += ` WHERE content_type = ?`
		countQuery += ` WHERE content_type = ?`
		args = append(args, opts.ContentType)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, append(args, opts.PageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0, opts.PageSize)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var totalCount int64
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}

	totalPages := int(totalCount) / opts.PageSize
	if int(totalCount)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      entries,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}, nil
}

// PurgeOlderThan removes entries routed before the cutoff. Item keys stay
// deduplicated only while their entries exist, so the retention window
// should be generous.
func (s *Service) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM routed_items WHERE routed_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// DeleteAll removes all history entries. Subsequent syncs treat every
// watchlist item as new.
func (s *Service) DeleteAll(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM routed_items`)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	deleted, _ := result.RowsAffected()
	s.logger.Info().Int64("deleted", deleted).Msg("Routing history cleared")
	return nil
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var (
		entry    Entry
		ruleID   sql.NullInt64
		ruleName sql.NullString
		syncRun  sql.NullString
		fallback int
		tags     sql.NullString
		routedAt string
	)

	err := rows.Scan(&entry.ID, &entry.ItemKey, &entry.Title, &entry.ContentType,
		&entry.InstanceID, &ruleID, &ruleName, &fallback, &syncRun, &tags, &routedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	if ruleID.Valid {
		entry.RuleID = &ruleID.Int64
	}
	entry.RuleName = ruleName.String
	entry.SyncRun = syncRun.String
	entry.Fallback = fallback != 0
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &entry.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, routedAt); err == nil {
		entry.RoutedAt = t
	}
	return &entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
