package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
)

// DeviceCodeAuth signs a person in with the device code flow and keeps
// their token in a file cache for silent renewal.
type DeviceCodeAuth struct {
	client public.Client
	scopes []string

	mu          sync.Mutex
	cachedToken *Token
}

// NewDeviceCodeAuth creates a new device code auth client.
func NewDeviceCodeAuth(tenantID, clientID string, scopes []string) (*DeviceCodeAuth, error) {
	if clientID == "" {
		return nil, errors.New("device code auth requires client_id")
	}

	opts := []public.Option{public.WithAuthority(authority(tenantID))}
	if path, err := getCacheFilePath("msal_token_cache.json"); err != nil {
		slog.Warn("could not determine cache file path", "error", err)
	} else {
		opts = append(opts, public.WithCache(&tokenCacheAccessor{path: path}))
	}

	client, err := public.New(clientID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create MSAL client: %w", err)
	}

	return &DeviceCodeAuth{client: client, scopes: scopes}, nil
}

// GetToken acquires an access token, using cached token if valid.
func (d *DeviceCodeAuth) GetToken(ctx context.Context) (*Token, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cachedToken != nil && !d.cachedToken.Expired(time.Now().Add(5*time.Minute)) {
		return d.cachedToken, nil
	}

	accounts, err := d.client.Accounts(ctx)
	if err != nil {
		slog.Debug("could not get cached accounts", "error", err)
	}

	for _, acct := range accounts {
		result, err := d.client.AcquireTokenSilent(ctx, d.scopes, public.WithSilentAccount(acct))
		if err == nil {
			d.cachedToken = &Token{
				AccessToken: result.AccessToken,
				ExpiresOn:   result.ExpiresOn,
				AccountID:   acct.HomeAccountID,
			}
			return d.cachedToken, nil
		}
		slog.Debug("silent auth failed for account", "account", acct.PreferredUsername, "error", err)
	}

	slog.Info("no cached credentials, starting device code flow")
	token, err := d.acquireTokenWithDeviceCode(ctx)
	if err != nil {
		return nil, err
	}

	d.cachedToken = token
	return token, nil
}

func (d *DeviceCodeAuth) acquireTokenWithDeviceCode(ctx context.Context) (*Token, error) {
	dc, err := d.client.AcquireTokenByDeviceCode(ctx, d.scopes)
	if err != nil {
		return nil, fmt.Errorf("start device code flow: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n"+
		"Para iniciar sesión abra %s\n"+
		"e ingrese el código %s.\n\n",
		dc.Result.VerificationURL,
		dc.Result.UserCode)

	result, err := dc.AuthenticationResult(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: device code: %w", ErrAuthFailed, err)
	}

	return &Token{
		AccessToken: result.AccessToken,
		ExpiresOn:   result.ExpiresOn,
		AccountID:   result.Account.HomeAccountID,
	}, nil
}

// tokenCacheAccessor persists the MSAL cache to a file.
type tokenCacheAccessor struct {
	path string
}

func (t *tokenCacheAccessor) Replace(ctx context.Context, c cache.Unmarshaler, hints cache.ReplaceHints) error {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return c.Unmarshal(data)
}

func (t *tokenCacheAccessor) Export(ctx context.Context, c cache.Marshaler, hints cache.ExportHints) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(t.path, data, 0o600)
}

// getCacheFilePath returns the path of a token cache file.
func getCacheFilePath(name string) (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "agenda", name), nil
}
