// Package identity verifies Login with Amazon access tokens and fetches the
// profile of their owner.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrInvalidToken is returned when the access token was rejected or was not
// issued for this client.
var ErrInvalidToken = errors.New("invalid access token")

const (
	DefaultTokenInfoURL = "https://api.amazon.com/auth/o2/tokeninfo"
	DefaultProfileURL   = "https://api.amazon.com/user/profile"
	DefaultTimeout      = 10 * time.Second

	defaultRetryDelay = 200 * time.Millisecond
	maxResponseBytes  = 1 << 20
)

// Profile is the part of the user profile the application uses.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Verifier turns an access token into a verified profile.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (*Profile, error)
}

// Config configures an Amazon verifier.
type Config struct {
	ClientID     string
	TokenInfoURL string
	ProfileURL   string
	Timeout      time.Duration
	RetryDelay   time.Duration

	// HTTPClient overrides the default client. Its Timeout is left as is.
	HTTPClient *http.Client
}

// Amazon verifies tokens against the Login with Amazon API.
type Amazon struct {
	cfg    Config
	client *http.Client
}

// NewAmazon creates a verifier, filling in defaults for unset fields.
func NewAmazon(cfg Config) *Amazon {
	if cfg.TokenInfoURL == "" {
		cfg.TokenInfoURL = DefaultTokenInfoURL
	}
	if cfg.ProfileURL == "" {
		cfg.ProfileURL = DefaultProfileURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Amazon{cfg: cfg, client: client}
}

type tokenInfo struct {
	Audience string `json:"aud"`
}

// Verify checks that the token was issued for the configured client ID and
// returns the profile of its owner.
func (a *Amazon) Verify(ctx context.Context, accessToken string) (*Profile, error) {
	if accessToken == "" {
		return nil, ErrInvalidToken
	}

	var info tokenInfo
	infoURL := a.cfg.TokenInfoURL + "?access_token=" + url.QueryEscape(accessToken)
	if err := a.getJSON(ctx, infoURL, "", &info); err != nil {
		return nil, fmt.Errorf("checking token: %w", err)
	}
	if info.Audience != a.cfg.ClientID {
		slog.Warn("access token issued for another client", "aud", info.Audience)
		return nil, ErrInvalidToken
	}

	var profile Profile
	if err := a.getJSON(ctx, a.cfg.ProfileURL, "bearer "+accessToken, &profile); err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("profile has no email: %w", ErrInvalidToken)
	}
	return &profile, nil
}

// getJSON fetches u and decodes the body into dst. Transport errors, 5xx and
// 429 responses are retried once.
func (a *Amazon) getJSON(ctx context.Context, u, authorization string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	backoff := retry.WithMaxRetries(1, retry.NewConstant(a.cfg.RetryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("reading response: %w", err))
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("unexpected status %d", resp.StatusCode))
		case resp.StatusCode >= 400:
			return fmt.Errorf("status %d: %w", resp.StatusCode, ErrInvalidToken)
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
}
