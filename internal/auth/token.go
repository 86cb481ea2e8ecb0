// Package auth issues and verifies session tokens for customers and the
// seller.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthorized is returned for missing, malformed or expired tokens.
var ErrUnauthorized = errors.New("Not Authorized")

// Role is the kind of principal a token was issued to.
type Role string

const (
	RoleUser   Role = "user"
	RoleSeller Role = "seller"
)

// Cookie names carrying session tokens.
const (
	UserCookie   = "token"
	SellerCookie = "sellerToken"
)

// Claims are the JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Identity is the authenticated principal of a request.
type Identity struct {
	Subject string
	Role    Role
}

// Tokens issues and parses HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token issuer. A non-positive ttl defaults to seven
// days.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the token lifetime.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for subject with the given role.
func (t *Tokens) Issue(subject string, role Role) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Parse verifies a token and returns its identity.
func (t *Tokens) Parse(token string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, errors.Wrapf(ErrUnauthorized, "%s", err.Error())
	}
	if claims.Subject == "" || claims.Role == "" {
		return Identity{}, ErrUnauthorized
	}
	return Identity{Subject: claims.Subject, Role: claims.Role}, nil
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
