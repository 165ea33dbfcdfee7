// Package auth issues and verifies the bearer tokens relying parties use to
// call the reverse-lookup resource. A token's allowedClients claim is the
// allow-list naming which client configurations the caller may test against.
package auth

import (
	"time"

	"github.com/avelkov/licbroker/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims extends the registered JWT claims with the caller's allow-list.
type Claims struct {
	jwt.RegisteredClaims
	AllowedClients []string `json:"allowedClients"`
}

// Principal is the authenticated identity of a caller.
type Principal struct {
	Subject        string
	AllowedClients []string
}

// AllowedFor reports whether the principal's allow-list names clientID.
func (p *Principal) AllowedFor(clientID string) bool {
	for _, c := range p.AllowedClients {
		if c == clientID {
			return true
		}
	}
	return false
}

// GenerateToken mints an HS256 token for subject carrying allowedClients.
func GenerateToken(subject string, allowedClients []string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		AllowedClients: allowedClients,
	})
	return token.SignedString(secretKey)
}

// ParsePrincipal verifies tokenString and returns the caller's principal.
// Invalid, expired, or otherwise unverifiable tokens yield ErrInvalidToken.
func ParsePrincipal(tokenString string, secretKey []byte) (*Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return &Principal{Subject: claims.Subject, AllowedClients: claims.AllowedClients}, nil
}
