package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"golang.org/x/text/unicode/norm"

	"github.com/bongocloud/bongo-go/internal/api"
)

const createPath = "/filesystem/create/"

// Upload streams payload to the server as a new file named name under
// parentID (nil for the root folder). size is the payload length in bytes
// and drives the progress totals; progress may be nil.
//
// The call fails fast with api.ErrUnauthenticated before touching the
// network when no access token is available. Success means HTTP 201 with
// the created item decoded into Result.Item; any other server status is
// reported as a non-OK Result with the error body preserved.
func (c *Controller) Upload(ctx context.Context, parentID *string, name string, payload io.Reader, size int64, progress ProgressFunc) (*Result, error) {
	access := c.transport.BearerToken(ctx)
	if access == "" {
		return nil, api.ErrUnauthenticated
	}

	name = norm.NFC.String(name)

	journalID := c.journalBegin("upload", "", name, size, "")

	c.logger.Debug("upload starting",
		slog.String("name", name),
		slog.Int64("size", size),
	)

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	body := newProgressReader(payload, size, progress, func(transferred int64) {
		c.journalProgress(journalID, transferred)
	})

	// Zero-byte payloads still get their single tick.
	if size == 0 && progress != nil {
		progress(0, 0)
	}

	// Build the request before spawning the form writer: once started, the
	// goroutine blocks until something drains the pipe.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.transport.BaseURL()+createPath, pr)
	if err != nil {
		c.journalFinish(journalID, "failed", body.read)

		return nil, fmt.Errorf("building upload request: %w", err)
	}

	go func() {
		pw.CloseWithError(writeUploadForm(writer, parentID, name, body))
	}()

	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := c.transport.HTTPClient().Do(req)
	if err != nil {
		c.journalFinish(journalID, endState(err), body.read)

		return nil, &api.Error{Message: "upload request failed", Err: fmt.Errorf("%w: %w", api.ErrTransport, err)}
	}
	defer resp.Body.Close()

	c.transport.RotateFromHeader(resp.Header)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.journalFinish(journalID, endState(err), body.read)

		return nil, &api.Error{Status: resp.StatusCode, Message: "reading upload response", Err: fmt.Errorf("%w: %w", api.ErrTransport, err)}
	}

	result := &Result{
		Status: resp.StatusCode,
		OK:     resp.StatusCode == http.StatusCreated,
		Bytes:  body.read,
	}

	if !result.OK {
		result.Data = data
		c.journalFinish(journalID, "failed", body.read)
		c.logger.Warn("upload rejected",
			slog.String("name", name),
			slog.Int("status", resp.StatusCode),
		)

		return result, nil
	}

	var item api.Item
	if err := json.Unmarshal(data, &item); err != nil {
		c.journalFinish(journalID, "failed", body.read)

		return nil, &api.Error{Status: resp.StatusCode, Message: "decoding created item", Err: err}
	}

	result.Item = &item

	c.journalFinish(journalID, "done", body.read)
	c.logger.Info("upload complete",
		slog.String("name", name),
		slog.String("id", item.ID),
		slog.Int64("bytes", body.read),
	)

	return result, nil
}

// writeUploadForm emits the multipart fields the create endpoint expects.
// A nil parent is sent as the empty string, which the server reads as the
// root folder.
func writeUploadForm(w *multipart.Writer, parentID *string, name string, payload io.Reader) error {
	parent := ""
	if parentID != nil {
		parent = *parentID
	}

	if err := w.WriteField("parent", parent); err != nil {
		return fmt.Errorf("writing parent field: %w", err)
	}

	if err := w.WriteField("name", name); err != nil {
		return fmt.Errorf("writing name field: %w", err)
	}

	part, err := w.CreateFormFile("uploaded_file", name)
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}

	if _, err := io.Copy(part, payload); err != nil {
		return fmt.Errorf("streaming payload: %w", err)
	}

	return w.Close()
}
