package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
)

type ProviderRepository struct {
	db *sql.DB
}

const providerColumns = `
	id, company_id, kind, name, is_active, is_default, priority,
	credentials, webhook_secret, created_at, updated_at, disabled_at
`

func (r *ProviderRepository) Providers(ctx context.Context, companyID string) ([]*models.ProviderConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE company_id = $1 ORDER BY priority DESC, created_at`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.ProviderConfig

	for rows.Next() {
		config, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, config)
	}

	return out, rows.Err()
}

func (r *ProviderRepository) ProviderByID(ctx context.Context, id string) (*models.ProviderConfig, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE id = $1`, id)

	config, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrProviderNotFound
	}

	if err != nil {
		return nil, err
	}

	return config, nil
}

func (r *ProviderRepository) SaveProvider(ctx context.Context, config *models.ProviderConfig) error {
	credentials, err := json.Marshal(config.Credentials)
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}

	now := time.Now().UTC()
	if config.CreatedAt.IsZero() {
		config.CreatedAt = now
	}

	config.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO providers (
			id, company_id, kind, name, is_active, is_default, priority,
			credentials, webhook_secret, created_at, updated_at, disabled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			kind = EXCLUDED.kind,
			name = EXCLUDED.name,
			is_active = EXCLUDED.is_active,
			is_default = EXCLUDED.is_default,
			priority = EXCLUDED.priority,
			credentials = EXCLUDED.credentials,
			webhook_secret = EXCLUDED.webhook_secret,
			updated_at = EXCLUDED.updated_at,
			disabled_at = EXCLUDED.disabled_at
	`,
		config.ID, config.CompanyID, config.Kind, config.Name,
		config.IsActive, config.IsDefault, config.Priority,
		credentials, nullString(config.WebhookSecret),
		config.CreatedAt, config.UpdatedAt, nullTime(config.DisabledAt))
	if err != nil {
		return fmt.Errorf("failed to save provider %s: %w", config.ID, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*models.ProviderConfig, error) {
	var (
		config        models.ProviderConfig
		credentials   []byte
		webhookSecret sql.NullString
		disabledAt    sql.NullTime
	)

	err := row.Scan(
		&config.ID, &config.CompanyID, &config.Kind, &config.Name,
		&config.IsActive, &config.IsDefault, &config.Priority,
		&credentials, &webhookSecret,
		&config.CreatedAt, &config.UpdatedAt, &disabledAt)
	if err != nil {
		return nil, err
	}

	if len(credentials) > 0 {
		if err := json.Unmarshal(credentials, &config.Credentials); err != nil {
			return nil, fmt.Errorf("failed to deserialize credentials for provider %s: %w", config.ID, err)
		}
	}

	config.WebhookSecret = webhookSecret.String

	if disabledAt.Valid {
		config.DisabledAt = &disabledAt.Time
	}

	return &config, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *value, Valid: true}
}
