// Package services contains the broker's server-side business logic: the
// pseudonym-keyed entitlement cache, the login-time fetch-and-attach flow,
// session-end invalidation, and the reverse-lookup scan.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avelkov/licbroker/internal/common"
	"github.com/avelkov/licbroker/internal/dbx"
	"github.com/avelkov/licbroker/internal/logging"
	"github.com/avelkov/licbroker/internal/server/models"
	"github.com/avelkov/licbroker/internal/server/repositories/repomanager"
)

// CacheService is the entitlement cache engine. Every mutation opens its own
// transaction, never an ambient one: the triggering lifecycle hooks can fire
// outside normal request transactions, and the mutation must be committed or
// rolled back before the triggering handler returns.
type CacheService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

// NewCacheService constructs a CacheService using repositories and a logger.
func NewCacheService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *CacheService {
	return &CacheService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "entitlement_cache"),
	}
}

// Put stores payload under pseudonym, creating the record or overwriting an
// existing one. Concurrent puts to the same key resolve last-writer-wins.
func (s *CacheService) Put(ctx context.Context, pseudonym, payload string) error {
	if pseudonym == "" {
		return fmt.Errorf("%w: empty pseudonym", common.ErrInvalidInput)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Records(tx).Upsert(ctx, pseudonym, payload)
	})
	if err != nil {
		s.logger.Error(ctx, "cache put failed", "error", err.Error())
		return err
	}
	return nil
}

// Get returns the record stored under pseudonym, or common.ErrNotFound.
func (s *CacheService) Get(ctx context.Context, pseudonym string) (*models.EntitlementRecord, error) {
	if pseudonym == "" {
		return nil, fmt.Errorf("%w: empty pseudonym", common.ErrInvalidInput)
	}

	rec, err := s.repomanager.Records(s.db).Get(ctx, pseudonym)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error(ctx, "cache get failed", "error", err.Error())
		}
		return nil, err
	}
	return rec, nil
}

// Delete removes the record stored under pseudonym. Deletion is idempotent:
// retried or duplicate termination events must not error on an absent row.
func (s *CacheService) Delete(ctx context.Context, pseudonym string) error {
	if pseudonym == "" {
		return fmt.Errorf("%w: empty pseudonym", common.ErrInvalidInput)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Records(tx).Delete(ctx, pseudonym)
	})
	if err != nil {
		s.logger.Error(ctx, "cache delete failed", "error", err.Error())
		return err
	}
	return nil
}
