// Package api talks to a Standard File sync server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/snfs/pkg/core"
)

// DefaultURL is the public sync server.
const DefaultURL = "https://sync.standardnotes.org"

// Client is a sync server client. It implements core.Transport once a
// session token is set.
type Client struct {
	BaseURL string
	Logger  *slog.Logger
	HTTP    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Logger:  logger,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// AuthParams are the key derivation parameters of an account.
type AuthParams struct {
	Identifier string `json:"identifier"`
	Version    string `json:"version"`
	Cost       int    `json:"pw_cost"`
	Nonce      string `json:"pw_nonce,omitempty"`
	Salt       string `json:"pw_salt,omitempty"`
}

// MFAError is returned when the server wants a second factor. Retry with
// the code stored under Key.
type MFAError struct {
	Key     string
	Message string
}

func (e *MFAError) Error() string {
	return fmt.Sprintf("%s: %s", core.ErrMFARequired, e.Message)
}

func (e *MFAError) Unwrap() error { return core.ErrMFARequired }

type apiError struct {
	Error *struct {
		Message string `json:"message"`
		Tag     string `json:"tag"`
		Payload struct {
			MFAKey string `json:"mfa_key"`
		} `json:"payload"`
	} `json:"error"`
}

// AuthParams fetches the derivation parameters for email. mfa carries a
// second factor code from a previous MFAError.
func (c *Client) AuthParams(ctx context.Context, email string, mfa map[string]string) (*AuthParams, error) {
	q := url.Values{"email": {email}}
	for k, v := range mfa {
		q.Set(k, v)
	}
	var params AuthParams
	if err := c.do(ctx, http.MethodGet, "/auth/params", q, nil, &params); err != nil {
		return nil, err
	}
	if params.Version == "" || params.Cost <= 0 {
		return nil, fmt.Errorf("%w: incomplete auth params", core.ErrTransport)
	}
	if params.Identifier == "" {
		params.Identifier = email
	}
	return &params, nil
}

// SignIn authenticates with the derived server password and stores the
// returned session token.
func (c *Client) SignIn(ctx context.Context, email, pw string, mfa map[string]string) (string, error) {
	body := map[string]string{"email": email, "password": pw}
	for k, v := range mfa {
		body[k] = v
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/sign_in", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: sign in returned no token", core.ErrTransport)
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

// VerifyToken checks that the current token is still accepted.
func (c *Client) VerifyToken(ctx context.Context) error {
	if c.Token() == "" {
		return fmt.Errorf("%w: no session token", core.ErrTransport)
	}
	var resp core.SyncResponse
	return c.do(ctx, http.MethodPost, "/items/sync", nil, map[string]int{"limit": 1}, &resp)
}

// Sync implements core.Transport.
func (c *Client) Sync(ctx context.Context, req core.SyncRequest) (*core.SyncResponse, error) {
	if req.Items == nil {
		req.Items = []core.EncryptedItem{}
	}
	var resp core.SyncResponse
	if err := c.do(ctx, http.MethodPost, "/items/sync", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, route string, query url.Values, body, out any) error {
	u := c.BaseURL + route
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", route, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", route, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.Logger.Debug("api request", "method", method, "route", route)
	start := time.Now()
	res, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s: %w", core.ErrTransport, route, err)
		}
		return fmt.Errorf("%w: %w: %s: %w", core.ErrTransport, core.ErrOffline, route, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: %w: reading %s response: %w", core.ErrTransport, core.ErrOffline, route, err)
	}
	c.Logger.Debug("api response", "route", route, "status", res.StatusCode, "bytes", len(data), "elapsed", time.Since(start))

	var apiErr apiError
	_ = json.Unmarshal(data, &apiErr)
	if apiErr.Error != nil {
		if apiErr.Error.Tag == "mfa-required" {
			return &MFAError{Key: apiErr.Error.Payload.MFAKey, Message: apiErr.Error.Message}
		}
		return fmt.Errorf("%w: %s: %s (status %d)", core.ErrTransport, route, apiErr.Error.Message, res.StatusCode)
	}

	switch {
	case res.StatusCode == http.StatusBadGateway ||
		res.StatusCode == http.StatusServiceUnavailable ||
		res.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %w: %s: status %d", core.ErrTransport, core.ErrOffline, route, res.StatusCode)
	case res.StatusCode >= 300:
		return fmt.Errorf("%w: %s: status %d", core.ErrTransport, route, res.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: malformed %s response: %w", core.ErrTransport, route, err)
		}
	}
	return nil
}

// IsMFA reports whether err asks for a second factor and returns it.
func IsMFA(err error) (*MFAError, bool) {
	var mfa *MFAError
	ok := errors.As(err, &mfa)
	return mfa, ok
}

var _ core.Transport = (*Client)(nil)
