package records

import (
	"context"

	"github.com/avelkov/licbroker/internal/server/models"
)

type Repository interface {
	// Upsert creates the record or overwrites its content. created_at is
	// set only on first insert; updated_at is refreshed on overwrite.
	Upsert(ctx context.Context, pseudonym, content string) error
	// Get returns the record or common.ErrNotFound.
	Get(ctx context.Context, pseudonym string) (*models.EntitlementRecord, error)
	// Delete removes the record. Absence is not an error.
	Delete(ctx context.Context, pseudonym string) error
}
