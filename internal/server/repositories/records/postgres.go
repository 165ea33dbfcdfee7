// Package records provides the PostgreSQL-backed repository for the
// pseudonym-keyed entitlement cache rows.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avelkov/licbroker/internal/common"
	"github.com/avelkov/licbroker/internal/dbx"
	"github.com/avelkov/licbroker/internal/server/models"
)

// PostgresRepository implements record storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts a row keyed by pseudonym or, on conflict, overwrites its
// content and refreshes updated_at. Last writer wins on concurrent upserts
// to the same key.
func (r *PostgresRepository) Upsert(ctx context.Context, pseudonym, content string) error {
	query := `
		INSERT INTO entitlement_records (hmac_id, content)
		VALUES ($1, $2)
		ON CONFLICT (hmac_id)
		DO UPDATE SET content = EXCLUDED.content, updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, pseudonym, content); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the record stored under pseudonym, or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, pseudonym string) (*models.EntitlementRecord, error) {
	query := `
		SELECT hmac_id, content, created_at, updated_at FROM entitlement_records
		WHERE hmac_id = $1
	`
	rec := &models.EntitlementRecord{}
	var updatedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, pseudonym).
		Scan(&rec.Pseudonym, &rec.Content, &rec.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if updatedAt.Valid {
		rec.UpdatedAt = &updatedAt.Time
	}
	return rec, nil
}

// Delete removes the record stored under pseudonym. Deleting an absent row
// succeeds, so retried or duplicate termination events do not error.
func (r *PostgresRepository) Delete(ctx context.Context, pseudonym string) error {
	query := `DELETE FROM entitlement_records WHERE hmac_id = $1`
	if _, err := r.db.ExecContext(ctx, query, pseudonym); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
