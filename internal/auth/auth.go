// Package auth provides bearer tokens for the agenda backend.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cpuguy83/agenda/internal/config"
)

// DefaultAuthorityHost is the Microsoft identity platform host.
const DefaultAuthorityHost = "https://login.microsoftonline.com/"

var (
	ErrNoToken      = errors.New("no token configured")
	ErrTokenExpired = errors.New("token expired")
	ErrAuthFailed   = errors.New("authentication failed")
)

// Token represents an OAuth2 access token.
type Token struct {
	AccessToken string
	ExpiresOn   time.Time // zero when unknown
	AccountID   string
}

// Expired reports whether the token is past its expiry at now.
// Tokens without a known expiry never expire.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresOn.IsZero() && !now.Before(t.ExpiresOn)
}

// TokenProvider supplies access tokens for outgoing requests.
// A nil token with a nil error means the request goes out anonymously.
type TokenProvider interface {
	GetToken(ctx context.Context) (*Token, error)
}

// None is the anonymous provider.
type None struct{}

// GetToken implements TokenProvider.
func (None) GetToken(context.Context) (*Token, error) {
	return nil, nil
}

// authority returns the authority URL for a tenant ("common" when empty).
func authority(tenantID string) string {
	if tenantID == "" {
		tenantID = "common"
	}
	return DefaultAuthorityHost + strings.Trim(tenantID, "/")
}

// New builds the token provider selected by cfg.Method.
func New(cfg config.AuthConfig) (TokenProvider, error) {
	switch cfg.Method {
	case "", "none":
		return None{}, nil
	case "token":
		raw, err := cfg.GetToken()
		if err != nil {
			return nil, err
		}
		return NewStaticToken(raw)
	case "client_credentials":
		return NewClientCredentials(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, cfg.Scopes)
	case "device_code":
		return NewDeviceCodeAuth(cfg.TenantID, cfg.ClientID, cfg.Scopes)
	default:
		return nil, fmt.Errorf("unknown auth method %q", cfg.Method)
	}
}
