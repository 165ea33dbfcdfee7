package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/avelkov/licbroker/internal/chunk"
	"github.com/avelkov/licbroker/internal/server/repositories/users"
)

// AttributeSink is the single capability the attach flow needs from a
// profile-attribute target. One adapter exists per host-side target; the
// flow depends only on this interface, never on the target's shape.
type AttributeSink interface {
	SetAttribute(ctx context.Context, name, value string) error
	RemoveAttributesByPrefix(ctx context.Context, prefix string) error
}

type userAttributeSink struct {
	repo   users.Repository
	userID string
}

// NewUserAttributeSink adapts a users repository to an AttributeSink for one
// user's persisted profile.
func NewUserAttributeSink(repo users.Repository, userID string) AttributeSink {
	return &userAttributeSink{repo: repo, userID: userID}
}

func (s *userAttributeSink) SetAttribute(ctx context.Context, name, value string) error {
	return s.repo.SetAttribute(ctx, s.userID, name, value)
}

func (s *userAttributeSink) RemoveAttributesByPrefix(ctx context.Context, prefix string) error {
	return s.repo.RemoveAttributesByPrefix(ctx, s.userID, prefix)
}

// writeChunked stores value in fixed-width attribute slots named
// baseName+"1"..baseName+"N". Stale slots under the base name are removed
// first: a leftover suffix from a previously longer payload would make the
// stored sequence non-contiguous and unreadable.
func writeChunked(ctx context.Context, sink AttributeSink, baseName, value string) error {
	if err := sink.RemoveAttributesByPrefix(ctx, baseName); err != nil {
		return fmt.Errorf("clearing stale chunks: %w", err)
	}
	for _, p := range chunk.Encode(value) {
		if err := sink.SetAttribute(ctx, chunk.Key(baseName, p.Index), p.Value); err != nil {
			return fmt.Errorf("writing chunk %d: %w", p.Index, err)
		}
	}
	return nil
}

// readChunked reconstructs the value stored by writeChunked. A gap in the
// suffix sequence surfaces as ErrIncompleteData from the codec; attribute
// names under the base that do not parse as a positive integer suffix are
// foreign and ignored.
func readChunked(ctx context.Context, repo users.Repository, userID, baseName string) (string, error) {
	attrs, err := repo.GetAttributesByPrefix(ctx, userID, baseName)
	if err != nil {
		return "", err
	}

	parts := make(map[int]string, len(attrs))
	for name, value := range attrs {
		suffix := strings.TrimPrefix(name, baseName)
		idx, err := strconv.Atoi(suffix)
		if err != nil || idx < 1 {
			continue
		}
		parts[idx] = value
	}
	return chunk.Decode(parts)
}
