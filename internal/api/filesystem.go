package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/text/unicode/norm"
)

// List fetches the listing for a parent folder, or the root when parentID
// is nil.
func (c *Client) List(ctx context.Context, parentID *string) (*Listing, *Response, error) {
	path := "/filesystem/"
	if parentID != nil {
		path = fmt.Sprintf("/filesystem/%s/", *parentID)
	}

	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, nil, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	var listing Listing
	if err := resp.Decode(&listing); err != nil {
		return nil, resp, err
	}

	return &listing, resp, nil
}

// ItemByPath looks up an item by its slash-joined path, for deep links.
// The path is sent as a single escaped segment.
func (c *Client) ItemByPath(ctx context.Context, itemPath string) (*Item, *Response, error) {
	escaped := url.PathEscape(norm.NFC.String(itemPath))

	resp, err := c.Do(ctx, http.MethodGet, "/filesystem/path/"+escaped+"/", nil)
	if err != nil {
		return nil, nil, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	var body struct {
		Item Item `json:"item"`
	}

	if err := resp.Decode(&body); err != nil {
		return nil, resp, err
	}

	return &body.Item, resp, nil
}

// CreateFolder creates an empty folder under parentID (nil for root).
// The create endpoint is form-encoded because the same endpoint accepts
// binary uploads; an absent payload makes the item a folder.
func (c *Client) CreateFolder(ctx context.Context, parentID *string, name string) (*Item, *Response, error) {
	fields := map[string]any{
		"parent": nil,
		"name":   norm.NFC.String(name),
	}
	if parentID != nil {
		fields["parent"] = *parentID
	}

	resp, err := c.DoForm(ctx, http.MethodPost, "/filesystem/create/", fields)
	if err != nil {
		return nil, nil, err
	}

	if resp.Status != http.StatusCreated {
		return nil, resp, nil
	}

	return decodeItem(resp)
}

// Rename changes an item's name in place. The server recomputes the path of
// the item and all descendants; the returned item is authoritative.
func (c *Client) Rename(ctx context.Context, itemID string, parentID *string, name string) (*Item, *Response, error) {
	return c.patchItem(ctx, fmt.Sprintf("/filesystem/%s/update/", itemID), parentID, name)
}

// Move reparents an item, keeping its name.
func (c *Client) Move(ctx context.Context, itemID string, newParentID *string, name string) (*Item, *Response, error) {
	return c.patchItem(ctx, fmt.Sprintf("/filesystem/%s/move/", itemID), newParentID, name)
}

// Delete removes an item. Folder deletion is recursive server-side.
func (c *Client) Delete(ctx context.Context, itemID string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/filesystem/%s/delete", itemID), nil)
}

// patchItem sends the shared {parent, name} update payload used by both the
// update and move endpoints.
func (c *Client) patchItem(ctx context.Context, path string, parentID *string, name string) (*Item, *Response, error) {
	resp, err := c.Do(ctx, http.MethodPatch, path, map[string]any{
		"parent": parentID,
		"name":   norm.NFC.String(name),
	})
	if err != nil {
		return nil, nil, err
	}

	if !resp.OK {
		return nil, resp, nil
	}

	return decodeItem(resp)
}

func decodeItem(resp *Response) (*Item, *Response, error) {
	var item Item
	if err := resp.Decode(&item); err != nil {
		return nil, resp, err
	}

	return &item, resp, nil
}
