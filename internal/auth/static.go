package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StaticToken serves a fixed bearer token.
// When the token is a JWT its exp claim is read (without verifying the signature)
// so an expired token is reported before it is sent.
type StaticToken struct {
	token Token
	now   func() time.Time
}

// NewStaticToken wraps raw. An empty token is an error.
func NewStaticToken(raw string) (*StaticToken, error) {
	if raw == "" {
		return nil, ErrNoToken
	}

	t := Token{AccessToken: raw}
	if exp, sub, ok := jwtClaims(raw); ok {
		t.ExpiresOn = exp
		t.AccountID = sub
		slog.Debug("static token is a jwt", "subject", sub, "expires", exp)
	}
	return &StaticToken{token: t, now: time.Now}, nil
}

// GetToken implements TokenProvider.
func (s *StaticToken) GetToken(context.Context) (*Token, error) {
	if s.token.Expired(s.now()) {
		return nil, ErrTokenExpired
	}
	t := s.token
	return &t, nil
}

// jwtClaims extracts the expiry and subject of an unverified JWT.
func jwtClaims(raw string) (exp time.Time, sub string, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, "", false
	}

	sub, _ = claims.GetSubject()
	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, sub, true
	}
	return nd.Time, sub, true
}
