// Package client is a typed HTTP client for the issuance server. It decodes
// the JSON result body on every status code, since the server always writes
// one, and surfaces rejection kinds as errors the session package can display.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/etienne-dldc/lomasi/core"
	"github.com/pkg/errors"
)

// Client calls the four protocol endpoints of one issuance server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option modifies the Client during construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a client for the server at baseURL (no trailing slash needed).
func New(baseURL string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[client.New] baseURL is required")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Login requests a magic-link mail.
func (c *Client) Login(ctx context.Context, req core.LoginRequest) (core.LoginResult, error) {
	var res core.LoginResult
	err := c.post(ctx, "/login", req, &res)
	return res, err
}

// Authenticate exchanges a refresh token and password for an auth token.
func (c *Client) Authenticate(ctx context.Context, req core.AuthenticateRequest) (core.AuthenticateResult, error) {
	var res core.AuthenticateResult
	err := c.post(ctx, "/authenticate", req, &res)
	return res, err
}

// Validate checks a refresh token and password without minting.
func (c *Client) Validate(ctx context.Context, req core.AuthenticateRequest) (core.ValidateResult, error) {
	var res core.ValidateResult
	err := c.post(ctx, "/validate", req, &res)
	return res, err
}

// Renew exchanges an expired refresh token for a replacement.
func (c *Client) Renew(ctx context.Context, req core.RenewRequest) (core.RenewResult, error) {
	var res core.RenewResult
	err := c.post(ctx, "/renew", req, &res)
	return res, err
}

// LoginFunc adapts the client to the reconciler's login callback. The
// callback URL template is fixed per app, so it is bound here.
func (c *Client) LoginFunc(callback string) func(ctx context.Context, email, password string) error {
	return func(ctx context.Context, email, password string) error {
		res, err := c.Login(ctx, core.LoginRequest{Email: email, Password: password, Callback: callback})
		if err != nil {
			return err
		}
		if res.Type != core.KindMailSend {
			return errors.New(string(res.Type))
		}
		return nil
	}
}

// AuthenticateFunc adapts the client to the auth session's mint callback.
func (c *Client) AuthenticateFunc() func(ctx context.Context, refreshToken, password string) (string, error) {
	return func(ctx context.Context, refreshToken, password string) (string, error) {
		res, err := c.Authenticate(ctx, core.AuthenticateRequest{Token: refreshToken, Password: password})
		if err != nil {
			return "", err
		}
		if res.Type != core.KindAuthorized {
			return "", errors.New(string(res.Type))
		}
		return res.Token, nil
	}
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s failed", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return errors.Wrapf(err, "POST %s: unreadable response (status %d)", path, resp.StatusCode)
	}
	return nil
}
