// Package transfer moves binary payloads in and out of Bongo Cloud with
// cumulative progress reporting and cooperative cancellation, which the
// JSON-only transport cannot do. Uploads are multipart-encoded; downloads
// stream to a .partial file and are renamed into place atomically.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bongocloud/bongo-go/internal/api"
)

// Sentinel errors for transfer preconditions.
var (
	// ErrNotFile is returned when a folder is passed to a download.
	// The check happens before any network call.
	ErrNotFile = errors.New("transfer: item is not a file")

	// ErrNoDownloadURL is returned when a file item carries no download URL.
	ErrNoDownloadURL = errors.New("transfer: item has no download URL")
)

// ProgressFunc receives cumulative totals on every underlying progress tick:
// transferred of total bytes so far. A total of 0 with a non-zero transfer
// count means the size is unknown and the caller should render an
// indeterminate indicator. Cancellation is driven by the context passed to
// the operation, not through this callback.
type ProgressFunc func(total, transferred int64)

// Transport is what the controller needs from the authenticated API client.
// Satisfied by *api.Client.
type Transport interface {
	BearerToken(ctx context.Context) string
	RotateFromHeader(h http.Header)
	BaseURL() string
	HTTPClient() *http.Client
}

// Journal records transfer activity for the transfers listing and for
// download resume. Satisfied by *journal.Store. May be nil.
type Journal interface {
	Begin(kind, itemID, name string, size int64, localPath string) (string, error)
	Progress(id string, transferred int64) error
	Finish(id, state string, transferred int64) error
}

// Result is the outcome of a transfer that reached the server. OK is true
// only for the operation's success status (201 for uploads, 200/206 for
// downloads). On failure Data preserves the error body for diagnostic
// display rather than discarding it.
type Result struct {
	Status int
	OK     bool
	Data   json.RawMessage

	// Item is the created filesystem item, set on upload success.
	Item *api.Item

	// Path is the saved local file, set on download success.
	Path string

	// Bytes is the number of payload bytes moved.
	Bytes int64
}

// Controller performs uploads and downloads over an authenticated transport.
type Controller struct {
	transport Transport
	journal   Journal
	logger    *slog.Logger
}

// New creates a Controller. journal may be nil to disable journaling.
func New(transport Transport, journal Journal, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		transport: transport,
		journal:   journal,
		logger:    logger,
	}
}

// journalBegin starts a journal record, tolerating a nil journal and
// recording failures as log warnings only — journaling never blocks a
// transfer.
func (c *Controller) journalBegin(kind, itemID, name string, size int64, localPath string) string {
	if c.journal == nil {
		return ""
	}

	id, err := c.journal.Begin(kind, itemID, name, size, localPath)
	if err != nil {
		c.logger.Warn("journal begin failed",
			slog.String("kind", kind),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)

		return ""
	}

	return id
}

func (c *Controller) journalProgress(id string, transferred int64) {
	if c.journal == nil || id == "" {
		return
	}

	if err := c.journal.Progress(id, transferred); err != nil {
		c.logger.Warn("journal progress failed", slog.String("error", err.Error()))
	}
}

func (c *Controller) journalFinish(id, state string, transferred int64) {
	if c.journal == nil || id == "" {
		return
	}

	if err := c.journal.Finish(id, state, transferred); err != nil {
		c.logger.Warn("journal finish failed", slog.String("error", err.Error()))
	}
}

// endState maps a transfer error to its journal state.
func endState(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}

	return "failed"
}
