// Package session tracks who is logged in. It distinguishes a genuinely
// logged-out state from a backend that is merely unreachable, so callers can
// keep showing cached state instead of dropping the user to a login prompt
// during an outage.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bongocloud/bongo-go/internal/api"
	"github.com/bongocloud/bongo-go/internal/fscache"
)

var (
	// ErrNotLoggedIn means no valid session exists and the user must
	// authenticate.
	ErrNotLoggedIn = errors.New("session: not logged in")

	// ErrServiceUnavailable means the session state could not be
	// determined because the backend is down or unreachable. Existing
	// tokens are kept.
	ErrServiceUnavailable = errors.New("session: service unavailable")
)

// userNotFoundDetail is the backend's marker for a token whose account no
// longer exists. Only this exact 403 clears stored credentials.
const userNotFoundDetail = "User not found"

// TokenStore is the credential persistence the session needs.
// Satisfied by *tokenstore.Store.
type TokenStore interface {
	SetAccess(token string) string
	SetRefresh(token string) error
	Clear() error
}

// Session resolves and mutates the authenticated user.
type Session struct {
	client *api.Client
	tokens TokenStore
	cache  *fscache.Cache
	logger *slog.Logger
}

// New creates a Session. cache may be nil.
func New(client *api.Client, tokens TokenStore, cache *fscache.Cache, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		client: client,
		tokens: tokens,
		cache:  cache,
		logger: logger,
	}
}

// CurrentUser returns the authenticated user, serving from the cache when
// seeded and asking the backend otherwise.
//
// A 403 naming a missing account clears stored credentials and reports
// ErrNotLoggedIn. Server errors and network failures report
// ErrServiceUnavailable without touching credentials: an outage is not a
// logout.
func (s *Session) CurrentUser(ctx context.Context) (*api.User, error) {
	if s.cache != nil {
		if user, ok := s.cache.AuthenticatedUser(); ok {
			return user, nil
		}
	}

	user, resp, err := s.client.Me(ctx)
	if err != nil {
		if errors.Is(err, api.ErrTransport) || errors.Is(err, api.ErrServer) {
			s.logger.Warn("session check unavailable", slog.String("error", err.Error()))

			return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
		}

		return nil, err
	}

	if !resp.OK {
		if resp.Status == http.StatusForbidden && isUserNotFound(resp.Data) {
			s.logger.Info("stored session rejected, clearing credentials")

			if err := s.tokens.Clear(); err != nil {
				s.logger.Warn("clearing credentials failed", slog.String("error", err.Error()))
			}

			if s.cache != nil {
				s.cache.Reset()
			}
		}

		return nil, ErrNotLoggedIn
	}

	if s.cache != nil {
		s.cache.SetAuthenticatedUser(user)
	}

	return user, nil
}

// Login authenticates with username and password, stores the returned token
// pair, and seeds the cache with the user. A rejected login surfaces the
// response so field errors can be shown.
func (s *Session) Login(ctx context.Context, username, password string) (*api.User, *api.Response, error) {
	creds, resp, err := s.client.Login(ctx, username, password)
	if err != nil {
		return nil, resp, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	user, err := s.establish(creds)

	return user, resp, err
}

// Register creates an account and logs straight into it.
func (s *Session) Register(ctx context.Context, params api.RegisterParams) (*api.User, *api.Response, error) {
	creds, resp, err := s.client.Register(ctx, params)
	if err != nil {
		return nil, resp, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	user, err := s.establish(creds)

	return user, resp, err
}

func (s *Session) establish(creds *api.Credentials) (*api.User, error) {
	if err := s.tokens.SetRefresh(creds.Refresh); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	s.tokens.SetAccess(creds.Access)

	if s.cache != nil {
		s.cache.Reset()
		s.cache.SetAuthenticatedUser(&creds.User)
	}

	s.logger.Info("logged in", slog.String("username", creds.User.Username))

	return &creds.User, nil
}

// Logout discards stored credentials and cached state. Purely local: there
// is no server-side session to revoke.
func (s *Session) Logout() error {
	if s.cache != nil {
		s.cache.Reset()
	}

	if err := s.tokens.Clear(); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}

	s.logger.Info("logged out")

	return nil
}

// isUserNotFound inspects a 403 body for the missing-account detail.
func isUserNotFound(data json.RawMessage) bool {
	var body struct {
		Detail string `json:"detail"`
	}

	if err := json.Unmarshal(data, &body); err != nil {
		return false
	}

	return strings.Contains(body.Detail, userNotFoundDetail)
}
