// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when a request carries no identity token.
	ErrMissingToken = errors.New("missing auth token")

	// ErrInvalidToken is returned when a token fails signature or claim checks.
	ErrInvalidToken = errors.New("invalid auth token")
)

// Authenticator resolves an identity token into the caller's Identity.
type Authenticator interface {
	Authenticate(token string) (Identity, error)
}

// TokenAuthority signs and verifies EdDSA identity tokens. The claims carry
// "sub" = user id and "email".
type TokenAuthority struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// ttl of issued tokens; 0 means no exp claim.
	ttl time.Duration
}

// ParseTokenTTL reads a TOKEN_EXPIRE_TIME style value. "never", "0" and "" mean the
// token never expires.
func ParseTokenTTL(s string) (time.Duration, error) {
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// NewTokenAuthority generates a fresh ed25519 key pair at runtime.
func NewTokenAuthority(ttl time.Duration) (*TokenAuthority, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &TokenAuthority{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// LoadTokenAuthority reads raw ed25519 keys from disk. An empty privatePath yields a
// verify-only authority.
func LoadTokenAuthority(privatePath, publicPath string, ttl time.Duration) (*TokenAuthority, error) {
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key file %s: want %d bytes, got %d", publicPath, ed25519.PublicKeySize, len(publicKeyData))
	}

	ta := &TokenAuthority{publicKey: ed25519.PublicKey(publicKeyData), ttl: ttl}
	if privatePath == "" {
		return ta, nil
	}

	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key file %s: want %d bytes, got %d", privatePath, ed25519.PrivateKeySize, len(privateKeyData))
	}
	ta.privateKey = ed25519.PrivateKey(privateKeyData)
	return ta, nil
}

// TTL returns the lifetime given to issued tokens.
func (ta *TokenAuthority) TTL() time.Duration { return ta.ttl }

// CreateJWT signs a token for id. With a zero TTL no exp claim is set.
func (ta *TokenAuthority) CreateJWT(id Identity) (string, error) {
	if ta.privateKey == nil {
		return "", errors.New("token authority has no private key")
	}
	if id.UserID == "" {
		return "", errors.New("identity has no user id")
	}

	claims := jwt.MapClaims{
		"sub": id.UserID,
	}
	if id.Email != "" {
		claims["email"] = id.Email
	}
	if ta.ttl > 0 {
		claims["exp"] = time.Now().Add(ta.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(ta.privateKey)
}

// Authenticate verifies a token and returns the identity it names.
func (ta *TokenAuthority) Authenticate(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}

	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ta.publicKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid jwt claims", ErrInvalidToken)
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return Identity{}, fmt.Errorf("%w: missing sub in jwt", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)

	return Identity{UserID: userID, Email: email}, nil
}

// WriteKeyFiles stores the authority's raw keys in the format LoadTokenAuthority reads.
func (ta *TokenAuthority) WriteKeyFiles(privatePath, publicPath string) error {
	if ta.privateKey == nil {
		return errors.New("authority has no private key")
	}
	if err := os.WriteFile(privatePath, ta.privateKey, 0o600); err != nil {
		return fmt.Errorf("failed to write private key file: %w", err)
	}
	if err := os.WriteFile(publicPath, ta.publicKey, 0o644); err != nil {
		return fmt.Errorf("failed to write public key file: %w", err)
	}
	return nil
}
