package api

import "time"

// User is the authenticated account as returned by the auth endpoints.
type User struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	DateJoined time.Time `json:"date_joined"`
}

// Item is a single filesystem entry (file or folder).
//
// Parent is nil for top-level items. Path is the slash-joined chain of
// ancestor names; it is recomputed server-side on every rename and move, so
// callers must treat it as derived, never editable.
type Item struct {
	ID          string    `json:"id"`
	Parent      *string   `json:"parent"`
	Name        string    `json:"name"`
	IsFile      bool      `json:"is_file"`
	Size        int64     `json:"size"`
	Path        string    `json:"path"`
	IsShared    bool      `json:"is_shared"`
	DownloadURL string    `json:"download_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SharedItem is a share descriptor granting public access to a single file,
// optionally gated by password and expiry. At most one exists per item;
// sharing an already-shared item updates the existing record.
type SharedItem struct {
	ID          string     `json:"id"`
	Sharer      User       `json:"sharer"`
	Item        Item       `json:"item"`
	HasPassword bool       `json:"has_password"`
	DoesExpire  bool       `json:"does_expire"`
	Expiry      *time.Time `json:"expiry"`
	DownloadURL string     `json:"download_url"`
}

// Listing is the set of immediate children of a folder (or the root when
// Current is nil).
type Listing struct {
	Current *Item  `json:"current"`
	Items   []Item `json:"items"`
}

// Credentials is the body of a successful login or register response.
type Credentials struct {
	User    User   `json:"user"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
