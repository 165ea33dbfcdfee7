package relyingparties

import (
	"context"

	"github.com/avelkov/licbroker/internal/server/models"
)

type Repository interface {
	// ListByClientID returns every registration for clientID, in creation
	// order. Callers decide how to treat zero or multiple rows.
	ListByClientID(ctx context.Context, clientID string) ([]*models.RelyingParty, error)
}
