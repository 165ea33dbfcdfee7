// Package models defines server-side data models persisted in the database.
package models

import "time"

// EntitlementRecord is the pseudonym-keyed cache row. At most one record
// exists per pseudonym: it is created on the first successful fetch for a
// (user, relying party) pair, overwritten on subsequent fetches, and removed
// on session-end invalidation.
type EntitlementRecord struct {
	// Pseudonym is the opaque HMAC-derived primary key (column hmac_id).
	Pseudonym string
	// Content is the raw, unchunked entitlement payload.
	Content   string
	CreatedAt time.Time
	// UpdatedAt is nil until the record is overwritten for the first time.
	UpdatedAt *time.Time
}
