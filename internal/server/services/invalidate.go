package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avelkov/licbroker/internal/common"
	"github.com/avelkov/licbroker/internal/dbx"
	"github.com/avelkov/licbroker/internal/logging"
	"github.com/avelkov/licbroker/internal/pseudonym"
	"github.com/avelkov/licbroker/internal/server/models"
	"github.com/avelkov/licbroker/internal/server/repositories/repomanager"
)

// DeletionPolicy selects which users session-end invalidation applies to.
type DeletionPolicy string

const (
	// PolicyNone leaves every user and cache record untouched.
	PolicyNone DeletionPolicy = "none"
	// PolicyFederated applies only to users with an external identity.
	PolicyFederated DeletionPolicy = "federated"
	// PolicyAll applies to every user.
	PolicyAll DeletionPolicy = "all"
)

// ParseDeletionPolicy validates a configured policy string.
func ParseDeletionPolicy(s string) (DeletionPolicy, error) {
	switch DeletionPolicy(s) {
	case PolicyNone, PolicyFederated, PolicyAll:
		return DeletionPolicy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown deletion policy %q", common.ErrConfiguration, s)
	}
}

// InvalidationService reacts to session-termination events (logout or
// administrative removal) by deleting the user's cache record and, for
// qualifying users, the account itself.
type InvalidationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       *CacheService
	policy      DeletionPolicy
	logger      logging.Logger
}

// NewInvalidationService constructs an InvalidationService for the given policy.
func NewInvalidationService(db *sql.DB, m repomanager.RepositoryManager, cache *CacheService, policy DeletionPolicy, logger logging.Logger) *InvalidationService {
	return &InvalidationService{
		db:          db,
		repomanager: m,
		cache:       cache,
		policy:      policy,
		logger:      logger.With("module", "invalidation"),
	}
}

func (s *InvalidationService) qualifies(user *models.User) bool {
	switch s.policy {
	case PolicyAll:
		return true
	case PolicyFederated:
		return user.Federated()
	default:
		return false
	}
}

// OnSessionEnd handles one termination event for userName under clientID.
//
// The pseudonym is recomputed from the same per-client settings used at
// attach time, then the cache record and the account are removed, cache
// record first. The two deletions are independent, both are attempted
// regardless of the other's outcome and their failures are joined; there is
// no cross-step atomicity. A duplicate event for an already-removed user is
// a no-op.
func (s *InvalidationService) OnSessionEnd(ctx context.Context, userName, clientID string) error {
	user, err := s.repomanager.Users(s.db).GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Debug(ctx, "session end for unknown user, nothing to do", "user", userName)
			return nil
		}
		s.logger.Error(ctx, "loading user failed", "user", userName, "error", err.Error())
		return fmt.Errorf("loading user: %w", err)
	}

	if !s.qualifies(user) {
		s.logger.Debug(ctx, "user not governed by deletion policy, nothing to do",
			"user", userName, "policy", string(s.policy))
		return nil
	}

	cfg, err := resolvePseudonymConfig(ctx, s.repomanager.RelyingParties(s.db), clientID)
	if err != nil {
		s.logger.Error(ctx, "resolving pseudonym settings failed", "client_id", clientID, "error", err.Error())
		return err
	}

	p, err := pseudonym.Generate(user.ID, cfg)
	if err != nil {
		s.logger.Error(ctx, "pseudonym generation failed", "user", userName, "error", err.Error())
		return err
	}

	var errs []error

	if err := s.cache.Delete(ctx, p); err != nil {
		errs = append(errs, fmt.Errorf("deleting cache record: %w", err))
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).Delete(ctx, user.ID)
	})
	if err != nil {
		s.logger.Error(ctx, "deleting user failed", "user", userName, "error", err.Error())
		errs = append(errs, fmt.Errorf("deleting user: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.logger.Info(ctx, "session invalidated", "user", userName, "client_id", clientID)
	return nil
}
