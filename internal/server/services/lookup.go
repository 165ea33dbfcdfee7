package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avelkov/licbroker/internal/common"
	"github.com/avelkov/licbroker/internal/logging"
	"github.com/avelkov/licbroker/internal/pseudonym"
	"github.com/avelkov/licbroker/internal/server/auth"
	"github.com/avelkov/licbroker/internal/server/repositories/repomanager"
)

// MaxLookupCandidates bounds one reverse-lookup request. The candidate list
// would otherwise be an open resource-exhaustion vector for callers allowed
// onto the endpoint.
const MaxLookupCandidates = 10000

// LookupService resolves which plaintext candidate corresponds to an
// observed pseudonym. It is a bounded guess-and-compare, not an inverse
// function: the caller supplies the candidates, the service only confirms
// membership and never reveals the salt or algorithm.
type LookupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

// NewLookupService constructs a LookupService.
func NewLookupService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *LookupService {
	return &LookupService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "reverse_lookup"),
	}
}

// Lookup recomputes the pseudonym for each candidate in order under
// clientID's registered settings and returns the first candidate matching
// testValue, or ErrNotFound after exhausting the list.
//
// The caller's allow-list must name clientID; the access check runs before
// anything else, a candidate that would match never leaks to an unauthorized
// caller.
func (s *LookupService) Lookup(ctx context.Context, principal *auth.Principal, clientID string, candidates []string, testValue string) (string, error) {
	if principal == nil || !principal.AllowedFor(clientID) {
		s.logger.Warn(ctx, "lookup forbidden", "client_id", clientID)
		return "", fmt.Errorf("%w: caller not allowed for client %q", common.ErrForbidden, clientID)
	}

	if testValue == "" {
		return "", fmt.Errorf("%w: empty test value", common.ErrInvalidInput)
	}
	if len(candidates) > MaxLookupCandidates {
		s.logger.Warn(ctx, "lookup rejected: candidate list too large",
			"client_id", clientID, "candidates", len(candidates))
		return "", fmt.Errorf("%w: candidate list exceeds %d entries", common.ErrInvalidInput, MaxLookupCandidates)
	}

	cfg, err := resolvePseudonymConfig(ctx, s.repomanager.RelyingParties(s.db), clientID)
	if err != nil {
		s.logger.Error(ctx, "resolving pseudonym settings failed", "client_id", clientID, "error", err.Error())
		return "", err
	}

	for _, candidate := range candidates {
		// An empty candidate cannot correspond to any issued pseudonym.
		if candidate == "" {
			continue
		}
		p, err := pseudonym.Generate(candidate, cfg)
		if err != nil {
			s.logger.Error(ctx, "pseudonym generation failed during scan", "error", err.Error())
			return "", err
		}
		if p == testValue {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: no candidate matches", common.ErrNotFound)
}
