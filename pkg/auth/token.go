package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DevSecretKey is the fallback signing key used when no secret is configured.
// It is insecure and exists only for backward compatibility with development
// deployments; production must set a real secret.
const DevSecretKey = "dev_secret_key"

// DefaultTokenTTL is the access token lifetime.
const DefaultTokenTTL = 24 * time.Hour

// Claims are the fields embedded in a signed access token. Once signed they
// are immutable; authorization after issuance is purely claim-based.
type Claims struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Identity reconstructs the authenticated identity from the claims.
func (c *Claims) Identity() *Identity {
	return &Identity{
		ID:          c.ID,
		Username:    c.Username,
		Email:       c.Email,
		Role:        c.Role,
		Permissions: c.Permissions,
	}
}

// TokenIssuer signs and verifies self-contained HS256 access tokens. No
// server-side record of issued tokens is kept.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer. An empty secret falls back to
// DevSecretKey; a zero TTL selects DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if secret == "" {
		secret = DevSecretKey
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token carrying the identity's id, username, email, role and
// permission set, expiring after the configured TTL.
func (ti *TokenIssuer) Issue(identity *Identity) (string, error) {
	now := ti.now()
	claims := Claims{
		ID:          identity.ID,
		Username:    identity.Username,
		Email:       identity.Email,
		Role:        identity.Role,
		Permissions: identity.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

// Verify parses and validates a token string. Wrong key, expiry, and
// malformed input all fail uniformly as ErrInvalidToken.
func (ti *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return ti.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
