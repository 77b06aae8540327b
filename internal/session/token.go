// internal/session/token.go
package session

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tommasop/stima/internal/config"
)

// privateKey and publicKey sign and verify reconnect tokens. Keys are
// generated fresh at startup: a token only needs to outlive the process that
// issued it, since a restart loses the in-memory match state anyway.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	tokenTTL time.Duration
)

// InitTokens generates the signing key pair and reads TOKEN_EXPIRE_TIME
// (duration string; empty or "never" means no expiry claim).
func InitTokens() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	tokenTTL = config.GetenvDuration("TOKEN_EXPIRE_TIME", 0)
	return nil
}

// CreateToken issues a signed reconnect token with sub = identity.
func CreateToken(identity uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": identity.String(),
	}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// VerifyToken checks a reconnect token and returns the identity it names.
func VerifyToken(tokenString string) (uuid.UUID, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("token parse error: %w", err)
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return uuid.Nil, fmt.Errorf("invalid token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing sub claim")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed sub claim: %w", err)
	}
	return id, nil
}
