// Package users provides the PostgreSQL-backed repository for the broker's
// user mirror and its fixed-width profile attribute slots.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avelkov/licbroker/internal/common"
	"github.com/avelkov/licbroker/internal/dbx"
	"github.com/avelkov/licbroker/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query := `
		INSERT INTO users (id, username, idp_alias, school_id, state_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.UserName, user.IdpAlias, user.SchoolID, user.StateID).Scan(&user.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	query := `
		SELECT id, username, idp_alias, school_id, state_id, created_at FROM users
		WHERE username = $1
	`
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, userName).
		Scan(&user.ID, &user.UserName, &user.IdpAlias, &user.SchoolID, &user.StateID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM users WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SetAttribute writes one attribute slot, overwriting any previous value
// stored under the same name.
func (r *PostgresRepository) SetAttribute(ctx context.Context, userID, name, value string) error {
	query := `
		INSERT INTO user_attributes (user_id, name, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, name)
		DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := r.db.ExecContext(ctx, query, userID, name, value); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RemoveAttributesByPrefix clears every attribute slot whose name starts
// with prefix. Used to drop stale chunk suffixes before a rewrite.
func (r *PostgresRepository) RemoveAttributesByPrefix(ctx context.Context, userID, prefix string) error {
	query := `DELETE FROM user_attributes WHERE user_id = $1 AND name LIKE $2 || '%'`
	if _, err := r.db.ExecContext(ctx, query, userID, prefix); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetAttributesByPrefix returns name->value for every attribute slot whose
// name starts with prefix.
func (r *PostgresRepository) GetAttributesByPrefix(ctx context.Context, userID, prefix string) (map[string]string, error) {
	query := `SELECT name, value FROM user_attributes WHERE user_id = $1 AND name LIKE $2 || '%'`
	rows, err := r.db.QueryContext(ctx, query, userID, prefix)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		result[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
