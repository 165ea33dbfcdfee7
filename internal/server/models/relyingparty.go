package models

import (
	"time"

	"github.com/avelkov/licbroker/internal/pseudonym"
)

// RelyingParty is a registered client and its pseudonym settings. client_id
// carries no unique index on purpose: the lookup contract has to observe
// ambiguous registrations and reject them.
type RelyingParty struct {
	ID               string
	ClientID         string
	HashAlgorithm    string
	Salt             string
	SectorIdentifier string
	CreatedAt        time.Time
}

// PseudonymConfig converts the stored row into the generator's config.
func (rp *RelyingParty) PseudonymConfig() pseudonym.Config {
	return pseudonym.Config{
		Algorithm:        pseudonym.Algorithm(rp.HashAlgorithm),
		Salt:             rp.Salt,
		SectorIdentifier: rp.SectorIdentifier,
	}
}
