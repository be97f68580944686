// Package instances manages the registry of Radarr and Sonarr instances
// that routing decisions are applied to.
package instances

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/crypto"
	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

var (
	// ErrNotFound is returned when an instance ID does not exist.
	ErrNotFound = errors.New("instance not found")
	// ErrNoDefault is returned when a target backend has no default
	// instance configured.
	ErrNoDefault = errors.New("no default instance configured")
)

// Instance is one configured Radarr or Sonarr server.
type Instance struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	Type           router.TargetType `json:"type"`
	URL            string            `json:"url"`
	APIKey         string            `json:"apiKey"`
	QualityProfile string            `json:"qualityProfile,omitempty"`
	RootFolder     string            `json:"rootFolder,omitempty"`
	SkipSSLVerify  bool              `json:"skipSslVerify,omitempty"`
	IsDefault      bool              `json:"isDefault"`
	Enabled        bool              `json:"enabled"`
}

// Store persists instance configuration in SQLite.
type Store struct {
	db      *sql.DB
	secrets *crypto.SecretStore
	logger  zerolog.Logger
}

// NewStore creates a new instance store.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "instance-store").Logger(),
	}
}

// SetSecretStore enables API key encryption at rest. Keys written before
// encryption was enabled are still readable.
func (s *Store) SetSecretStore(secrets *crypto.SecretStore) {
	s.secrets = secrets
}

func (s *Store) sealKey(apiKey string) (string, error) {
	if s.secrets == nil {
		return apiKey, nil
	}
	return s.secrets.Encrypt(apiKey)
}

func (s *Store) openKey(apiKey string) string {
	if s.secrets == nil || !crypto.IsEncrypted(apiKey) {
		return apiKey
	}
	return s.secrets.MustDecrypt(apiKey)
}

const instanceColumns = `id, name, type, url, api_key, quality_profile, root_folder,
	skip_ssl_verify, is_default, enabled`

// List returns all instances.
func (s *Store) List(ctx context.Context) ([]Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instances ORDER BY type, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var instances []Instance
	for rows.Next() {
		inst, err := s.scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *inst)
	}
	return instances, rows.Err()
}

// Get returns one instance by ID.
func (s *Store) Get(ctx context.Context, id int64) (*Instance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE id = ?`, id)
	inst, err := s.scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return inst, nil
}

// GetDefault returns the default enabled instance for a target backend.
func (s *Store) GetDefault(ctx context.Context, target router.TargetType) (*Instance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM instances
		 WHERE type = ? AND enabled = 1 AND is_default = 1
		 ORDER BY id LIMIT 1`, string(target))
	inst, err := s.scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w for target %s", ErrNoDefault, target)
		}
		return nil, err
	}
	return inst, nil
}

// DefaultInstance implements router.InstanceResolver.
func (s *Store) DefaultInstance(ctx context.Context, target router.TargetType) (int64, error) {
	inst, err := s.GetDefault(ctx, target)
	if err != nil {
		return 0, err
	}
	return inst.ID, nil
}

// Create inserts an instance and returns it with its assigned ID. Marking
// an instance default clears the flag on its target's previous default.
func (s *Store) Create(ctx context.Context, inst *Instance) (*Instance, error) {
	if inst.IsDefault {
		if err := s.clearDefault(ctx, inst.Type); err != nil {
			return nil, err
		}
	}

	apiKey, err := s.sealKey(inst.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt api key: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO instances
			(name, type, url, api_key, quality_profile, root_folder,
			 skip_ssl_verify, is_default, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.Name, string(inst.Type), inst.URL, apiKey,
		nullable(inst.QualityProfile), nullable(inst.RootFolder),
		boolInt(inst.SkipSSLVerify), boolInt(inst.IsDefault), boolInt(inst.Enabled))
	if err != nil {
		return nil, fmt.Errorf("failed to insert instance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	inst.ID = id
	return inst, nil
}

// Update replaces an instance's configuration.
func (s *Store) Update(ctx context.Context, inst *Instance) error {
	if inst.IsDefault {
		if err := s.clearDefault(ctx, inst.Type); err != nil {
			return err
		}
	}

	apiKey, err := s.sealKey(inst.APIKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt api key: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE instances SET
			name = ?, type = ?, url = ?, api_key = ?, quality_profile = ?,
			root_folder = ?, skip_ssl_verify = ?, is_default = ?, enabled = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		inst.Name, string(inst.Type), inst.URL, apiKey,
		nullable(inst.QualityProfile), nullable(inst.RootFolder),
		boolInt(inst.SkipSSLVerify), boolInt(inst.IsDefault), boolInt(inst.Enabled),
		inst.ID)
	if err != nil {
		return fmt.Errorf("failed to update instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an instance.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) clearDefault(ctx context.Context, target router.TargetType) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE instances SET is_default = 0 WHERE type = ?`, string(target))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanInstance(row rowScanner) (*Instance, error) {
	var (
		inst           Instance
		instType       string
		qualityProfile sql.NullString
		rootFolder     sql.NullString
		skipSSL        int64
		isDefault      int64
		enabled        int64
	)

	err := row.Scan(&inst.ID, &inst.Name, &instType, &inst.URL, &inst.APIKey,
		&qualityProfile, &rootFolder, &skipSSL, &isDefault, &enabled)
	if err != nil {
		return nil, err
	}

	inst.Type = router.TargetType(instType)
	inst.APIKey = s.openKey(inst.APIKey)
	inst.QualityProfile = qualityProfile.String
	inst.RootFolder = rootFolder.String
	inst.SkipSSLVerify = skipSSL != 0
	inst.IsDefault = isDefault != 0
	inst.Enabled = enabled != 0
	return &inst, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
