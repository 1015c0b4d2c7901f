package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"
)

// ClientCredentials acquires app-only tokens for a service principal.
type ClientCredentials struct {
	client confidential.Client
	scopes []string

	mu          sync.Mutex
	cachedToken *Token
}

// NewClientCredentials creates a confidential client for tenantID.
func NewClientCredentials(tenantID, clientID, secret string, scopes []string) (*ClientCredentials, error) {
	if clientID == "" || secret == "" {
		return nil, errors.New("client credentials require client_id and client_secret")
	}
	if len(scopes) == 0 {
		return nil, errors.New("client credentials require at least one scope")
	}

	cred, err := confidential.NewCredFromSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	var opts []confidential.Option
	if path, err := getCacheFilePath("msal_app_cache.json"); err != nil {
		slog.Warn("could not determine cache file path", "error", err)
	} else {
		opts = append(opts, confidential.WithCache(&tokenCacheAccessor{path: path}))
	}

	client, err := confidential.New(authority(tenantID), clientID, cred, opts...)
	if err != nil {
		return nil, fmt.Errorf("create MSAL client: %w", err)
	}

	return &ClientCredentials{client: client, scopes: scopes}, nil
}

// GetToken acquires an access token, using the cached token if valid.
func (c *ClientCredentials) GetToken(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachedToken != nil && !c.cachedToken.Expired(time.Now().Add(5*time.Minute)) {
		return c.cachedToken, nil
	}

	result, err := c.client.AcquireTokenSilent(ctx, c.scopes)
	if err != nil {
		slog.Debug("silent app token failed", "error", err)
		result, err = c.client.AcquireTokenByCredential(ctx, c.scopes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
	}

	c.cachedToken = &Token{
		AccessToken: result.AccessToken,
		ExpiresOn:   result.ExpiresOn,
	}
	return c.cachedToken, nil
}
