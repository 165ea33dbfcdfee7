package services

import (
	"context"
	"fmt"

	"github.com/avelkov/licbroker/internal/common"
	"github.com/avelkov/licbroker/internal/pseudonym"
	"github.com/avelkov/licbroker/internal/server/repositories/relyingparties"
)

// resolvePseudonymConfig returns the single pseudonym configuration
// registered for clientID. Zero or multiple registrations are an operator
// problem, not a caller one, and map to ErrConfiguration.
func resolvePseudonymConfig(ctx context.Context, repo relyingparties.Repository, clientID string) (pseudonym.Config, error) {
	if clientID == "" {
		return pseudonym.Config{}, fmt.Errorf("%w: empty client id", common.ErrInvalidInput)
	}

	rps, err := repo.ListByClientID(ctx, clientID)
	if err != nil {
		return pseudonym.Config{}, fmt.Errorf("loading relying party %q: %w", clientID, err)
	}

	switch len(rps) {
	case 1:
		return rps[0].PseudonymConfig(), nil
	case 0:
		return pseudonym.Config{}, fmt.Errorf("%w: no pseudonym settings registered for client %q", common.ErrConfiguration, clientID)
	default:
		return pseudonym.Config{}, fmt.Errorf("%w: %d pseudonym settings registered for client %q", common.ErrConfiguration, len(rps), clientID)
	}
}
