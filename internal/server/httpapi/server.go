// Package httpapi exposes the broker's HTTP surface: the session lifecycle
// event hooks the identity provider calls, the relying-party reverse-lookup
// resource, and the pseudonym-keyed record read.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avelkov/licbroker/internal/logging"
	"github.com/avelkov/licbroker/internal/server/auth"
	"github.com/avelkov/licbroker/internal/server/models"
)

// LoginHandler runs the fetch-and-attach flow for a completed login.
type LoginHandler interface {
	AttachOnLogin(ctx context.Context, userName, clientID string) error
	ReadEntitlement(ctx context.Context, userName string) (string, error)
}

// LogoutHandler applies the deletion policy for a terminated session.
type LogoutHandler interface {
	OnSessionEnd(ctx context.Context, userName, clientID string) error
}

// PseudonymResolver answers which candidate corresponds to a pseudonym.
type PseudonymResolver interface {
	Lookup(ctx context.Context, principal *auth.Principal, clientID string, candidates []string, testValue string) (string, error)
}

// RecordReader reads one cached entitlement record.
type RecordReader interface {
	Get(ctx context.Context, pseudonym string) (*models.EntitlementRecord, error)
}

type Server struct {
	address         string
	logger          logging.Logger
	fetch           LoginHandler
	invalidation    LogoutHandler
	lookup          PseudonymResolver
	records         RecordReader
	jwtSecret       []byte
	shutdownTimeout time.Duration
}

func NewServer(a string, l logging.Logger, fetch LoginHandler, inv LogoutHandler, lookup PseudonymResolver, records RecordReader, secretKey string, shutdownTimeout time.Duration) (*Server, error) {
	return &Server{
		address:         a,
		logger:          l.With("module", "http_server"),
		fetch:           fetch,
		invalidation:    inv,
		lookup:          lookup,
		records:         records,
		jwtSecret:       []byte(secretKey),
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// Handler builds the full route table wrapped in the request-id middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/events/login", s.handleLoginEvent)
	mux.HandleFunc("POST /v1/events/logout", s.handleLogoutEvent)
	mux.HandleFunc("POST /v1/pseudonyms/resolve", s.handleResolve)
	mux.HandleFunc("GET /v1/records/{pseudonym}", s.handleRecordGet)
	mux.HandleFunc("GET /v1/users/{username}/licence", s.handleLicenceGet)
	mux.HandleFunc("GET /v1/ping", s.handlePing)
	return s.withRequestID(mux)
}

func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
