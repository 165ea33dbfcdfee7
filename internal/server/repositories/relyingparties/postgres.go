// Package relyingparties provides the PostgreSQL-backed repository for
// registered clients and their pseudonym settings.
package relyingparties

import (
	"context"
	"fmt"

	"github.com/avelkov/licbroker/internal/dbx"
	"github.com/avelkov/licbroker/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListByClientID(ctx context.Context, clientID string) ([]*models.RelyingParty, error) {
	query := `
		SELECT id, client_id, hash_algorithm, salt, sector_identifier, created_at
		FROM relying_parties
		WHERE client_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.RelyingParty
	for rows.Next() {
		var rp models.RelyingParty
		if err := rows.Scan(&rp.ID, &rp.ClientID, &rp.HashAlgorithm, &rp.Salt, &rp.SectorIdentifier, &rp.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &rp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
