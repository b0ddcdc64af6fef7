package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ShareParams configures a share descriptor. A nil Password leaves the share
// open; a nil Expiry makes it permanent.
type ShareParams struct {
	Password *string    `json:"password"`
	Expiry   *time.Time `json:"expiry"`
}

// Share grants public access to a file. Sharing an already-shared item
// updates the existing descriptor rather than creating a second one.
func (c *Client) Share(ctx context.Context, itemID string, params ShareParams) (*SharedItem, *Response, error) {
	resp, err := c.Do(ctx, http.MethodPost, fmt.Sprintf("/filesystem/%s/share/", itemID), params)
	if err != nil {
		return nil, nil, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	return decodeSharedItem(resp)
}

// UpdateShare changes the password/expiry gating of an existing share.
func (c *Client) UpdateShare(ctx context.Context, shareID string, params ShareParams) (*SharedItem, *Response, error) {
	resp, err := c.Do(ctx, http.MethodPatch, fmt.Sprintf("/filesystem/share/%s/update/", shareID), params)
	if err != nil {
		return nil, nil, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	return decodeSharedItem(resp)
}

// DeleteShare revokes a share descriptor.
func (c *Client) DeleteShare(ctx context.Context, shareID string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/filesystem/share/%s/delete/", shareID), nil)
}

// SharedItemForItem fetches the share descriptor attached to one of the
// caller's own items, if any.
func (c *Client) SharedItemForItem(ctx context.Context, itemID string) (*SharedItem, *Response, error) {
	resp, err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/filesystem/share/item/%s/", itemID), nil)
	if err != nil {
		return nil, nil, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	return decodeSharedItem(resp)
}

// SharedItem fetches the public download descriptor for a share link.
// This endpoint requires no authentication.
func (c *Client) SharedItem(ctx context.Context, shareID string) (*SharedItem, *Response, error) {
	resp, err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/filesystem/share/%s/", shareID), nil)
	if err != nil {
		return nil, nil, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	return decodeSharedItem(resp)
}

func decodeSharedItem(resp *Response) (*SharedItem, *Response, error) {
	var shared SharedItem
	if err := resp.Decode(&shared); err != nil {
		return nil, resp, err
	}

	return &shared, resp, nil
}
