package router

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrRuleNotFound is returned when a rule ID does not exist.
var ErrRuleNotFound = errors.New("router rule not found")

// Store persists router rules in SQLite. The engine path only reads via
// GetRouterRulesByType; the CRUD methods back the admin API.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a new rule store.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "router-store").Logger(),
	}
}

const ruleColumns = `id, name, type, target, instance_id, quality_profile, root_folder,
	tags, enabled, sort_order, criteria, search_on_add, season_monitoring, series_type`

// GetRouterRulesByType returns all rules with the given type tag, enabled or
// not. Evaluators filter on Enabled and Target themselves.
func (s *Store) GetRouterRulesByType(ctx context.Context, ruleType string) ([]RouterRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM router_rules WHERE type = ? ORDER BY sort_order DESC, id ASC`,
		ruleType)
	if err != nil {
		return nil, fmt.Errorf("failed to query router rules: %w", err)
	}
	defer rows.Close()

	return s.scanRules(rows)
}

// ListRules returns all rules ordered by weight.
func (s *Store) ListRules(ctx context.Context) ([]RouterRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM router_rules ORDER BY sort_order DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query router rules: %w", err)
	}
	defer rows.Close()

	return s.scanRules(rows)
}

// GetRule returns one rule by ID.
func (s *Store) GetRule(ctx context.Context, id int64) (*RouterRule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM router_rules WHERE id = ?`, id)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return rule, nil
}

// CreateRule inserts a rule and returns it with its assigned ID.
func (s *Store) CreateRule(ctx context.Context, rule *RouterRule) (*RouterRule, error) {
	if rule.Order == 0 {
		rule.Order = DefaultRuleOrder
	}

	tagsJSON, err := marshalTags(rule.Tags)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO router_rules
			(name, type, target, instance_id, quality_profile, root_folder, tags,
			 enabled, sort_order, criteria, search_on_add, season_monitoring, series_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Name, rule.Type, string(rule.Target), rule.InstanceID,
		nullString(rule.QualityProfile), nullString(rule.RootFolder), tagsJSON,
		boolToInt(rule.Enabled), rule.Order, string(rule.Criteria),
		nullBool(rule.SearchOnAdd), nullString(rule.SeasonMonitoring), nullString(rule.SeriesType))
	if err != nil {
		return nil, fmt.Errorf("failed to insert router rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	rule.ID = id
	return rule, nil
}

// UpdateRule replaces a rule's fields.
func (s *Store) UpdateRule(ctx context.Context, rule *RouterRule) error {
	if rule.Order == 0 {
		rule.Order = DefaultRuleOrder
	}

	tagsJSON, err := marshalTags(rule.Tags)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE router_rules SET
			name = ?, type = ?, target = ?, instance_id = ?, quality_profile = ?,
			root_folder = ?, tags = ?, enabled = ?, sort_order = ?, criteria = ?,
			search_on_add = ?, season_monitoring = ?, series_type = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		rule.Name, rule.Type, string(rule.Target), rule.InstanceID,
		nullString(rule.QualityProfile), nullString(rule.RootFolder), tagsJSON,
		boolToInt(rule.Enabled), rule.Order, string(rule.Criteria),
		nullBool(rule.SearchOnAdd), nullString(rule.SeasonMonitoring), nullString(rule.SeriesType),
		rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update router rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// DeleteRule removes a rule.
func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM router_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete router rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// CountRules returns the total number of rules.
func (s *Store) CountRules(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM router_rules`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRules(rows *sql.Rows) ([]RouterRule, error) {
	var rules []RouterRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func scanRule(row rowScanner) (*RouterRule, error) {
	var (
		rule             RouterRule
		target           string
		qualityProfile   sql.NullString
		rootFolder       sql.NullString
		tagsJSON         sql.NullString
		enabled          int64
		sortOrder        sql.NullInt64
		criteria         string
		searchOnAdd      sql.NullInt64
		seasonMonitoring sql.NullString
		seriesType       sql.NullString
	)

	err := row.Scan(&rule.ID, &rule.Name, &rule.Type, &target, &rule.InstanceID,
		&qualityProfile, &rootFolder, &tagsJSON, &enabled, &sortOrder, &criteria,
		&searchOnAdd, &seasonMonitoring, &seriesType)
	if err != nil {
		return nil, err
	}

	rule.Target = TargetType(target)
	rule.QualityProfile = qualityProfile.String
	rule.RootFolder = rootFolder.String
	rule.Enabled = enabled != 0
	rule.Criteria = json.RawMessage(criteria)
	rule.SeasonMonitoring = seasonMonitoring.String
	rule.SeriesType = seriesType.String

	if sortOrder.Valid {
		rule.Order = int(sortOrder.Int64)
	} else {
		rule.Order = DefaultRuleOrder
	}

	if searchOnAdd.Valid {
		v := searchOnAdd.Int64 != 0
		rule.SearchOnAdd = &v
	}

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &rule.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode rule tags: %w", err)
		}
	}

	return &rule, nil
}

func marshalTags(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode rule tags: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBool(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	v := int64(0)
	if *b {
		v = 1
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
