package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoUserID is returned when an access token carries no user id claim
var ErrNoUserID = errors.New("access token has no user id claim")

// userIDClaims are checked in order
var userIDClaims = []string{"userId", "user_id", "uid", "sub"}

// AccessToken is the decoded payload of the bearer token issued by the
// meetup backend. The signature is verified by the backend, not here.
type AccessToken struct {
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the token has an expiry before now
func (t *AccessToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// ParseAccessToken decodes the claims of a JWT without verifying it
func ParseAccessToken(raw string) (*AccessToken, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	t := &AccessToken{}
	for _, name := range userIDClaims {
		if id := claimString(claims[name]); id != "" {
			t.UserID = id
			break
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t.ExpiresAt = exp.Time
	}
	return t, nil
}

// UserIDFromToken returns the user id a token was issued for
func UserIDFromToken(raw string) (string, error) {
	t, err := ParseAccessToken(raw)
	if err != nil {
		return "", err
	}
	if t.UserID == "" {
		return "", ErrNoUserID
	}
	return t.UserID, nil
}

func claimString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatInt(int64(id), 10)
	}
	return ""
}
