package api

import (
	"context"
	"net/http"
)

// RegisterParams is the payload for account creation.
type RegisterParams struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Login authenticates with username and password. On success the returned
// Credentials carry the user plus a fresh token pair; storing them is the
// session layer's job. On validation failure Credentials is nil and the
// envelope carries the field errors.
func (c *Client) Login(ctx context.Context, username, password string) (*Credentials, *Response, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/auth/login/", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, nil, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	var creds Credentials
	if err := resp.Decode(&creds); err != nil {
		return nil, resp, err
	}

	return &creds, resp, nil
}

// Register creates a new account. Semantics mirror Login.
func (c *Client) Register(ctx context.Context, params RegisterParams) (*Credentials, *Response, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/auth/register/", params)
	if err != nil {
		return nil, nil, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	var creds Credentials
	if err := resp.Decode(&creds); err != nil {
		return nil, resp, err
	}

	return &creds, resp, nil
}

// Me fetches the authenticated identity. A 403 with detail "User not found"
// signals a revoked identity; callers (the session layer) must clear tokens.
func (c *Client) Me(ctx context.Context) (*User, *Response, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/auth/me/", nil)
	if err != nil {
		return nil, nil, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	var body struct {
		User User `json:"user"`
	}

	if err := resp.Decode(&body); err != nil {
		return nil, resp, err
	}

	return &body.User, resp, nil
}
