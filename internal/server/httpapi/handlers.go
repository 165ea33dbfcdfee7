package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/avelkov/licbroker/internal/common"
	"github.com/avelkov/licbroker/internal/server/auth"
)

type sessionEventRequest struct {
	UserName string `json:"userName"`
	ClientID string `json:"clientId"`
}

type resolveRequest struct {
	ClientID       string   `json:"clientId"`
	OriginalValues []string `json:"originalValues"`
	TestValue      string   `json:"testValue"`
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// statusForError maps the service-layer sentinel errors onto HTTP statuses
// for resource-style endpoints.
func statusForError(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) authenticate(r *http.Request) (*auth.Principal, error) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return nil, common.ErrInvalidToken
	}
	return auth.ParsePrincipal(strings.TrimPrefix(h, prefix), s.jwtSecret)
}

// handleLoginEvent reacts to a completed federated login. Any denial from the
// fetch-and-attach flow translates into 403 so the identity provider aborts
// the login; only genuinely internal failures surface as 500.
func (s *Server) handleLoginEvent(w http.ResponseWriter, r *http.Request) {
	var req sessionEventRequest
	if err := decodeJSON(r, &req); err != nil || req.UserName == "" || req.ClientID == "" {
		http.Error(w, "invalid event body", http.StatusBadRequest)
		return
	}

	if err := s.fetch.AttachOnLogin(r.Context(), req.UserName, req.ClientID); err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound),
			errors.Is(err, common.ErrUpstreamUnavailable),
			errors.Is(err, common.ErrConfiguration):
			http.Error(w, "login denied", http.StatusForbidden)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogoutEvent(w http.ResponseWriter, r *http.Request) {
	var req sessionEventRequest
	if err := decodeJSON(r, &req); err != nil || req.UserName == "" || req.ClientID == "" {
		http.Error(w, "invalid event body", http.StatusBadRequest)
		return
	}

	if err := s.invalidation.OnSessionEnd(r.Context(), req.UserName, req.ClientID); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleResolve is the relying-party reverse-lookup resource. The bearer
// token is verified before the body is read at all.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	principal, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil || req.ClientID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	match, err := s.lookup.Lookup(r.Context(), principal, req.ClientID, req.OriginalValues, req.TestValue)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, match)
}

// handleRecordGet returns the cached record under a pseudonym. A miss is not
// an error from the caller's point of view: the response is an empty JSON
// object so clients need no special-case handling.
func (s *Server) handleRecordGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Get(r.Context(), r.PathValue("pseudonym"))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, "{}")
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, rec.Content)
}

// handleLicenceGet reconstructs the chunked entitlement payload stored on a
// user's profile.
func (s *Server) handleLicenceGet(w http.ResponseWriter, r *http.Request) {
	value, err := s.fetch.ReadEntitlement(r.Context(), r.PathValue("username"))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			http.Error(w, "unknown user", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if value == "" {
		value = "{}"
	}

	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, value)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "pong")
}
