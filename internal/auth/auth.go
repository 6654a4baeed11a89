// Package auth provides minimal credential helpers.
//
// It supplies opaque bearer tokens to the channel and backend layers
// and intentionally avoids policy and storage concerns.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var (
	ErrNoCredential  = errors.New("auth: no credential")
	ErrTokenRejected = errors.New("auth: token request rejected")
)

// TokenSource supplies a bearer credential string.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken serves a single fixed token. It is intended only for
// development and tests.
type StaticToken struct {
	Value string
}

func (s StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(s.Value) == "" {
		return "", ErrNoCredential
	}
	return s.Value, nil
}

// FuncSource adapts a function into a TokenSource.
type FuncSource func(ctx context.Context) (string, error)

func (f FuncSource) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// ClientCredentials fetches bearer tokens via the OAuth2
// client_credentials grant and caches them until shortly before expiry.
type ClientCredentials struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// expirySkew keeps a margin so a token near expiry is never handed out.
const expirySkew = 30 * time.Second

func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && (c.expires.IsZero() || time.Now().Before(c.expires)) {
		return c.token, nil
	}

	if strings.TrimSpace(c.AuthURL) == "" || strings.TrimSpace(c.ClientID) == "" {
		return "", fmt.Errorf("%w: auth url and client id required", ErrNoCredential)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrTokenRejected, resp.StatusCode)
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrTokenRejected, err)
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return "", fmt.Errorf("%w: empty access_token", ErrTokenRejected)
	}

	c.token = parsed.AccessToken
	c.expires = time.Time{}
	if parsed.ExpiresIn > 0 {
		c.expires = time.Now().Add(time.Duration(parsed.ExpiresIn)*time.Second - expirySkew)
	}
	return c.token, nil
}
