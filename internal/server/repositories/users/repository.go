package users

import (
	"context"

	"github.com/avelkov/licbroker/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetByUserName returns the user or common.ErrNotFound.
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	// Delete removes the account and, via cascade, its profile attributes.
	// Absence is not an error.
	Delete(ctx context.Context, userID string) error

	// Profile attribute slots. Each value fits one fixed-width column.
	SetAttribute(ctx context.Context, userID, name, value string) error
	RemoveAttributesByPrefix(ctx context.Context, userID, prefix string) error
	GetAttributesByPrefix(ctx context.Context, userID, prefix string) (map[string]string, error)
}
