// Package auth verifies bearer tokens issued by the upstream identity
// service and extracts the user identity they carry.
package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/config"
)

// Identity is the authenticated subject of a token.
type Identity struct {
	UserID    string
	ExpiresAt time.Time
}

// TokenValidator is implemented by Validator; sessions and HTTP middleware
// depend on this interface.
type TokenValidator interface {
	Validate(token string) (Identity, error)
}

// Validator checks HS256 signatures, expiry and (optionally) the issuer.
// It is stateless and safe for concurrent use.
type Validator struct {
	secret []byte
	issuer string
	claim  string
	leeway time.Duration
	now    func() time.Time
}

func NewValidator(cfg config.AuthConfig) *Validator {
	claim := cfg.IdentityClaim
	if claim == "" {
		claim = config.DefaultIdentityClaim
	}
	return &Validator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		claim:  claim,
		leeway: cfg.Leeway,
		now:    time.Now,
	}
}

// WithClock returns a copy of v that reads the current time from now.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	c := *v
	c.now = now
	return &c
}

// Validate parses token (with or without a "Bearer " prefix) and returns
// its identity. Every failure is an apperr.KindAuthentication error.
func (v *Validator) Validate(token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Identity{}, apperr.Authentication("token missing", nil)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, apperr.Authentication("token expired", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Identity{}, apperr.Authentication("token malformed", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Identity{}, apperr.Authentication("token signature invalid", err)
		default:
			return Identity{}, apperr.Authentication("token invalid", err)
		}
	}
	if !parsed.Valid {
		return Identity{}, apperr.Authentication("token invalid", nil)
	}

	raw, ok := claims[v.claim].(string)
	if !ok || raw == "" {
		return Identity{}, apperr.Authentication("token has no identity claim", nil)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return Identity{}, apperr.Authentication("identity claim is not a valid id", err)
	}

	identity := Identity{UserID: id.String()}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return identity, nil
}

// Issuer mints tokens accepted by a Validator built from the same config.
// End users get their tokens from the identity service; this is for the
// admin CLI and tests.
type Issuer struct {
	secret []byte
	issuer string
	claim  string
	now    func() time.Time
}

func NewIssuer(cfg config.AuthConfig) *Issuer {
	claim := cfg.IdentityClaim
	if claim == "" {
		claim = config.DefaultIdentityClaim
	}
	return &Issuer{secret: []byte(cfg.Secret), issuer: cfg.Issuer, claim: claim, now: time.Now}
}

// Issue signs an access token for userID that expires after ttl. A
// negative ttl produces an already expired token.
func (i *Issuer) Issue(userID string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"token_type": "access",
		i.claim:      userID,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
		"jti":        uuid.NewString(),
	}
	if i.issuer != "" {
		claims["iss"] = i.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
