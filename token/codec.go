// Package token signs, decodes and verifies the compact credentials exchanged
// between the issuance server and its clients. Refresh tokens and auth tokens
// share the same claim shape and differ only by the secret that validates them.
package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NowFunc returns the current time. It can be overridden in tests.
var NowFunc = time.Now

var (
	// ErrTokenInvalid covers malformed tokens and signature mismatches.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired means the signature checked out but the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Data is the caller-supplied part of a token's claims.
type Data struct {
	Email string
	App   string
	Renew int
}

// Claims is the full decoded claim set of a signed token.
type Claims struct {
	Email     string `json:"email"`
	App       string `json:"app"`
	Renew     int    `json:"renew,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	ID        string `json:"jti,omitempty"`
}

// GetExpirationTime implements jwt.Claims.
func (c *Claims) GetExpirationTime() (*jwtlib.NumericDate, error) {
	return jwtlib.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

// GetIssuedAt implements jwt.Claims.
func (c *Claims) GetIssuedAt() (*jwtlib.NumericDate, error) {
	return jwtlib.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

// GetNotBefore implements jwt.Claims.
func (c *Claims) GetNotBefore() (*jwtlib.NumericDate, error) { return nil, nil }

// GetIssuer implements jwt.Claims.
func (c *Claims) GetIssuer() (string, error) { return "", nil }

// GetSubject implements jwt.Claims.
func (c *Claims) GetSubject() (string, error) { return c.Email, nil }

// GetAudience implements jwt.Claims.
func (c *Claims) GetAudience() (jwtlib.ClaimStrings, error) {
	return jwtlib.ClaimStrings{c.App}, nil
}

// Sign produces a compact HS256 token embedding data with iat = now and
// exp = now + ttl.
func Sign(data Data, secret string, ttl time.Duration) (string, error) {
	now := NowFunc()
	claims := &Claims{
		Email:     data.Email,
		App:       data.App,
		Renew:     data.Renew,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		ID:        uuid.New().String(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// Decode parses a token without checking its signature. The result is
// untrusted input: it exists so callers can read the app claim and pick the
// secret to verify against.
func Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwtlib.NewParser(jwtlib.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Verify checks the signature and expiry of a token. It returns
// ErrTokenExpired when the signature is valid but exp has passed, and
// ErrTokenInvalid for anything else, because callers react differently to the
// two (offer renewal vs reject outright).
func Verify(raw, secret string) (*Claims, error) {
	return parse(raw, secret, false)
}

// VerifyIgnoreExpiry checks the signature of a token but accepts an elapsed
// exp. Used by renewal, which deliberately operates on expired refresh tokens.
func VerifyIgnoreExpiry(raw, secret string) (*Claims, error) {
	return parse(raw, secret, true)
}

func parse(raw, secret string, ignoreExpiry bool) (*Claims, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(func() time.Time { return NowFunc() }),
	}
	if ignoreExpiry {
		opts = append(opts, jwtlib.WithoutClaimsValidation())
	}
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Expired reports whether the claims are past their expiry. A negative offset
// implements "will expire within N seconds" look-ahead for proactive renewal.
func Expired(claims *Claims, offset time.Duration) bool {
	exp := time.Unix(claims.ExpiresAt, 0).Add(offset)
	return !exp.After(NowFunc())
}

// SameIdentity reports whether two tokens name the same account for the same
// application.
func SameIdentity(a, b *Claims) bool {
	return a.Email == b.Email && a.App == b.App
}

// Fresher reports whether a expires strictly after b.
func Fresher(a, b *Claims) bool {
	return a.ExpiresAt > b.ExpiresAt
}
