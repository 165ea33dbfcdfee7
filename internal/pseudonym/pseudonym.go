// Package pseudonym derives stable, one-way pseudonyms for user identifiers.
//
// A pseudonym is HMAC(algorithm, salt, rawIdentifier || sectorIdentifier)
// rendered as lowercase hex. It is deterministic for fixed inputs, keyed so
// the salt cannot be recovered from the output, and partitioned by sector so
// the same user yields different pseudonyms for different relying parties.
package pseudonym

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/avelkov/licbroker/internal/common"
	"golang.org/x/crypto/sha3"
)

// Algorithm names the keyed hash used for derivation.
type Algorithm string

const (
	HMACSHA256  Algorithm = "hmac-sha256"
	HMACSHA512  Algorithm = "hmac-sha512"
	HMACSHA3256 Algorithm = "hmac-sha3-256"
)

// Config carries a relying party's pseudonym settings. It is supplied by
// client configuration and immutable for the lifetime of those settings;
// changing any field invalidates previously issued pseudonyms.
type Config struct {
	Algorithm        Algorithm
	Salt             string
	SectorIdentifier string
}

func newHash(a Algorithm) (func() hash.Hash, error) {
	switch a {
	case HMACSHA256:
		return sha256.New, nil
	case HMACSHA512:
		return sha512.New, nil
	case HMACSHA3256:
		return sha3.New256, nil
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", common.ErrConfiguration, a)
	}
}

// Generate derives the pseudonym for rawIdentifier under cfg.
//
// It is pure: no storage or network access, and the same inputs always
// produce the same output.
func Generate(rawIdentifier string, cfg Config) (string, error) {
	if rawIdentifier == "" {
		return "", fmt.Errorf("%w: empty identifier", common.ErrInvalidInput)
	}
	if cfg.SectorIdentifier == "" {
		return "", fmt.Errorf("%w: empty sector identifier", common.ErrConfiguration)
	}

	h, err := newHash(cfg.Algorithm)
	if err != nil {
		return "", err
	}

	mac := hmac.New(h, []byte(cfg.Salt))
	mac.Write([]byte(rawIdentifier))
	mac.Write([]byte(cfg.SectorIdentifier))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
