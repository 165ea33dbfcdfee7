package models

import "time"

// User mirrors the host user whose profile the broker annotates.
type User struct {
	ID       string
	UserName string
	// IdpAlias names the external identity provider the account is
	// delegated to. nil means a locally managed account.
	IdpAlias  *string
	SchoolID  string
	StateID   string
	CreatedAt time.Time
}

// Federated reports whether the account authenticates through an external
// identity provider.
func (u *User) Federated() bool {
	return u.IdpAlias != nil && *u.IdpAlias != ""
}
