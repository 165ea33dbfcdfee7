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
	sc "github.com/avelkov/licbroker/internal/server/config"
	"github.com/avelkov/licbroker/internal/server/models"
	"github.com/avelkov/licbroker/internal/server/repositories/repomanager"
	"github.com/avelkov/licbroker/internal/server/upstream"
)

// FetchService runs the login-time fetch-and-attach flow: query the upstream
// entitlement service for the authenticated user, write the payload to the
// user's profile in bounded chunks, and mirror the raw payload into the
// pseudonym-keyed cache.
//
// A failed flow denies the surrounding login (fail closed); the caller may
// retry only by re-authenticating, no retries happen within one attempt.
type FetchService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	fetcher       upstream.Fetcher
	cache         *CacheService
	attributeBase string
	configured    bool
	logger        logging.Logger
}

// NewFetchService constructs a FetchService. The upstream client is injected
// and owned by the caller; the service only records whether the deployment
// configured an upstream at all.
func NewFetchService(db *sql.DB, m repomanager.RepositoryManager, fetcher upstream.Fetcher, cache *CacheService, cfg *sc.Config, logger logging.Logger) *FetchService {
	return &FetchService{
		db:            db,
		repomanager:   m,
		fetcher:       fetcher,
		cache:         cache,
		attributeBase: cfg.EntitlementAttributeBase,
		configured:    cfg.UpstreamBaseURL != "" && cfg.UpstreamAPIKey != "",
		logger:        logger.With("module", "entitlement_fetch"),
	}
}

// AttachOnLogin handles one completed federated login for userName under
// clientID. Every denial reason is logged before surfacing; none is ever
// treated as success.
//
// The flow is re-entrant: a repeated login for the same user rewrites both
// the profile chunks and the cache record.
func (s *FetchService) AttachOnLogin(ctx context.Context, userName, clientID string) error {
	if !s.configured {
		err := fmt.Errorf("%w: upstream base URL or API key not configured", common.ErrConfiguration)
		s.logger.Error(ctx, "denied: upstream not configured", "user", userName)
		return err
	}

	user, err := s.repomanager.Users(s.db).GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "denied: unknown user", "user", userName)
			return fmt.Errorf("%w: unknown user", common.ErrNotFound)
		}
		s.logger.Error(ctx, "loading user failed", "user", userName, "error", err.Error())
		return fmt.Errorf("loading user: %w", err)
	}
	if !user.Federated() {
		s.logger.Warn(ctx, "denied: no qualifying external identity", "user", userName)
		return fmt.Errorf("%w: no qualifying external identity", common.ErrNotFound)
	}

	result, err := s.fetcher.Fetch(ctx, upstream.Query{
		UserID:     user.ID,
		ClientID:   clientID,
		ClientName: clientID,
		SchoolID:   user.SchoolID,
		StateID:    user.StateID,
	})
	if err != nil {
		s.logger.Error(ctx, "denied: upstream fetch failed", "user", userName, "error", err.Error())
		return err
	}

	if !result.HasEntitlements {
		s.logger.Info(ctx, "denied: user has no entitlements", "user", userName)
		return fmt.Errorf("%w: no entitlements for user", common.ErrNotFound)
	}

	if err := s.attach(ctx, user, clientID, result.Payload); err != nil {
		return err
	}

	s.logger.Info(ctx, "entitlements attached", "user", userName, "client_id", clientID)
	return nil
}

// attach performs both writes. The profile chunks go first, inside one
// transaction so a reader never observes a gapped suffix sequence; the cache
// put then opens its own transaction via the cache service. Both writes run
// even when a previous attempt for this login already wrote one of them.
func (s *FetchService) attach(ctx context.Context, user *models.User, clientID, payload string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sink := NewUserAttributeSink(s.repomanager.Users(tx), user.ID)
		return writeChunked(ctx, sink, s.attributeBase, payload)
	})
	if err != nil {
		s.logger.Error(ctx, "writing profile chunks failed", "user", user.UserName, "error", err.Error())
		return fmt.Errorf("writing profile chunks: %w", err)
	}

	cfg, err := resolvePseudonymConfig(ctx, s.repomanager.RelyingParties(s.db), clientID)
	if err != nil {
		s.logger.Error(ctx, "resolving pseudonym settings failed", "client_id", clientID, "error", err.Error())
		return err
	}

	p, err := pseudonym.Generate(user.ID, cfg)
	if err != nil {
		s.logger.Error(ctx, "pseudonym generation failed", "user", user.UserName, "error", err.Error())
		return err
	}

	return s.cache.Put(ctx, p, payload)
}

// ReadEntitlement reconstructs the chunked payload stored on userName's
// profile. Absent chunks yield an empty string; a gapped sequence yields
// ErrIncompleteData.
func (s *FetchService) ReadEntitlement(ctx context.Context, userName string) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByUserName(ctx, userName)
	if err != nil {
		return "", err
	}
	value, err := readChunked(ctx, s.repomanager.Users(s.db), user.ID, s.attributeBase)
	if err != nil {
		s.logger.Error(ctx, "reading profile chunks failed", "user", userName, "error", err.Error())
		return "", err
	}
	return value, nil
}
