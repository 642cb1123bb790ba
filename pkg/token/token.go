// Package token performs syntactic checks on developer tokens.
//
// Tokens are opaque bearer credentials. The engine only requires them to be
// non-empty and shaped as three dot-separated segments; signatures are never
// verified client-side.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrEmpty is returned for a blank token
	ErrEmpty = errors.New("developer token cannot be empty")
	// ErrMalformed is returned when the token is not three dot-separated segments
	ErrMalformed = errors.New("developer token must have three dot-separated segments")
)

// Info holds claims peeked from a JWT-encoded token. Zero values mean the
// claim was absent or the payload was not decodable.
type Info struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
}

// Validate checks that raw is non-empty and well formed
func Validate(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmpty
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return ErrMalformed
	}
	for _, p := range parts {
		if p == "" {
			return ErrMalformed
		}
	}

	return nil
}

// Peek decodes the token payload without verifying it. It only feeds
// diagnostics, so an undecodable payload yields ok=false rather than an error.
func Peek(raw string) (Info, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(raw), &claims); err != nil {
		return Info{}, false
	}

	info := Info{
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}

	return info, true
}

// Expired reports whether the token carries an exp claim before now
func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && i.ExpiresAt.Before(now)
}
