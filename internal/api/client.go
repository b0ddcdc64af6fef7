package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// Response header names carrying rotated tokens. Whenever present on any
// response, the values overwrite the stored tokens — this lets the server
// silently extend a session on any authenticated call.
const (
	HeaderAccessToken  = "x-access-token"
	HeaderRefreshToken = "x-refresh-token"
)

const (
	refreshPath = "/auth/refresh-token/"
	userAgent   = "bongo-go/0.1"
)

// TokenStore is the credential storage the client reads and rotates.
// Satisfied by *tokenstore.Store.
type TokenStore interface {
	Access() string
	SetAccess(token string) string
	Refresh() string
	SetRefresh(token string) error
	Clear() error
}

// Response is the envelope returned for every call that reached the server
// and produced a non-5xx status. OK is true for 2xx. Data holds the raw JSON
// body (nil for DELETE, which returns no body) for the caller to decode.
type Response struct {
	Status int
	OK     bool
	Data   json.RawMessage
	Header http.Header
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("api: response has no body")
	}

	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("api: decoding response body: %w", err)
	}

	return nil
}

// Client is the authenticated HTTP transport for the Bongo Cloud API.
// Every call attaches a bearer token when one is available, refreshing it
// first when expired, and rotates stored tokens from response headers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	logger     *slog.Logger

	// expired is the JWT expiry predicate. Tests override this to force or
	// suppress refresh round-trips.
	expired func(token string) bool

	// refreshGroup collapses concurrent refresh round-trips into one.
	refreshGroup singleflight.Group
}

// NewClient creates an API client. baseURL has no trailing slash, e.g.
// "https://api.bongo.example".
func NewClient(baseURL string, httpClient *http.Client, tokens TokenStore, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
		expired: func(token string) bool {
			return tokenExpired(token, time.Now())
		},
	}
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client. Callers that need different
// client settings can reuse its Transport to stay on one connection pool.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Do issues a JSON request. body may be nil; otherwise it is marshaled as
// the JSON request body.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader

	contentType := ""

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: marshaling request body: %w", err)
		}

		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	return c.send(ctx, method, path, reader, contentType)
}

// DoForm issues a multipart form request. Every key/value pair of fields
// becomes one form field; nil values are coerced to the empty string.
// Used for filesystem creation, where the server expects form encoding.
func (c *Client) DoForm(ctx context.Context, method, path string, fields map[string]any) (*Response, error) {
	body, contentType, err := encodeForm(fields)
	if err != nil {
		return nil, err
	}

	return c.send(ctx, method, path, body, contentType)
}

// send executes one call: ensure a fresh access token, attach it, issue the
// request, rotate tokens from response headers, classify the outcome.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	access := c.BearerToken(ctx)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	// Omit the header entirely when no token is available — never send an
	// empty bearer credential.
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	c.RotateFromHeader(resp.Header)

	if resp.StatusCode >= http.StatusInternalServerError {
		errBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		c.logger.Error("server error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return nil, &Error{Status: resp.StatusCode, Message: string(errBody), Err: ErrServer}
	}

	// DELETE responses carry no body.
	var data json.RawMessage

	if method != http.MethodDelete {
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading response body: %w", ErrTransport, err)
		}
	}

	c.logger.Debug("request complete",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	return &Response{
		Status: resp.StatusCode,
		OK:     resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices,
		Data:   data,
		Header: resp.Header,
	}, nil
}

// BearerToken returns the access token to attach to an outgoing call,
// refreshing it first when missing or expired. Returns "" when no usable
// token can be obtained; the call then proceeds unauthenticated.
func (c *Client) BearerToken(ctx context.Context) string {
	refresh := c.tokens.Refresh()
	if refresh == "" {
		return ""
	}

	access := c.tokens.Access()
	if access != "" && !c.expired(access) {
		return access
	}

	// Collapse concurrent refreshes into a single round-trip. The refresh
	// endpoint is idempotent, so duplicates would be tolerated, but one
	// round-trip is cheaper and avoids racing header rotations.
	v, _, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		return c.refreshOnce(ctx, refresh), nil
	})

	token, _ := v.(string)

	return token
}

// RotateFromHeader overwrites stored tokens with any rotated values the
// server attached to a response.
func (c *Client) RotateFromHeader(h http.Header) {
	if access := h.Get(HeaderAccessToken); access != "" {
		c.tokens.SetAccess(access)
		c.logger.Debug("access token rotated from response header")
	}

	if refresh := h.Get(HeaderRefreshToken); refresh != "" {
		if err := c.tokens.SetRefresh(refresh); err != nil {
			c.logger.Warn("failed to persist rotated refresh token",
				slog.String("error", err.Error()),
			)
		}
	}
}

// refreshOnce performs one refresh round-trip. A non-200 response means the
// refresh token is invalid: both tokens are cleared and "" is returned so the
// original call proceeds unauthenticated. A network failure leaves the tokens
// in place — the server being unreachable does not invalidate the session.
func (c *Client) refreshOnce(ctx context.Context, refresh string) string {
	reqBody, err := json.Marshal(map[string]string{"refresh": refresh})
	if err != nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, bytes.NewReader(reqBody))
	if err != nil {
		return ""
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("token refresh round-trip failed",
			slog.String("error", err.Error()),
		)

		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Info("refresh token rejected, clearing session",
			slog.Int("status", resp.StatusCode),
		)

		if clearErr := c.tokens.Clear(); clearErr != nil {
			c.logger.Warn("failed to clear tokens",
				slog.String("error", clearErr.Error()),
			)
		}

		return ""
	}

	var body struct {
		Access string `json:"access"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn("decoding refresh response failed",
			slog.String("error", err.Error()),
		)

		return ""
	}

	c.logger.Debug("access token refreshed")

	return c.tokens.SetAccess(body.Access)
}
