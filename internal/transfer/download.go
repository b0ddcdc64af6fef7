package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bongocloud/bongo-go/internal/api"
)

// partialSuffix marks an in-progress download on disk. The final name
// appears only after the payload is complete.
const partialSuffix = ".partial"

// Request describes a download source. Download builds one from a filesystem
// item; callers with a public share link build one directly.
type Request struct {
	// URL of the payload. A path beginning with "/" is resolved against
	// the client's base URL.
	URL string

	// Name of the destination file.
	Name string

	// ItemID for journaling, may be empty.
	ItemID string

	// Password unlocks a protected share link. When set the request is a
	// POST carrying the password as JSON instead of a plain GET.
	Password string
}

// Download fetches a file item into destDir. Folders are rejected with
// ErrNotFile before any network call, and file items without a download URL
// with ErrNoDownloadURL.
func (c *Controller) Download(ctx context.Context, item api.Item, destDir string, progress ProgressFunc) (*Result, error) {
	if !item.IsFile {
		return nil, ErrNotFile
	}

	if item.DownloadURL == "" {
		return nil, ErrNoDownloadURL
	}

	return c.DownloadWith(ctx, Request{
		URL:    item.DownloadURL,
		Name:   item.Name,
		ItemID: item.ID,
	}, destDir, progress)
}

// DownloadWith streams req into destDir, writing to a .partial file and
// renaming it into place once complete so the final name never refers to a
// truncated payload. An existing .partial is resumed with a Range request
// when the server cooperates. On cancellation the .partial is kept for a
// later resume; on other failures it is removed.
func (c *Controller) DownloadWith(ctx context.Context, req Request, destDir string, progress ProgressFunc) (*Result, error) {
	destPath := filepath.Join(destDir, req.Name)
	partialPath := destPath + partialSuffix

	offset := partialSize(partialPath)

	journalID := c.journalBegin("download", req.ItemID, req.Name, 0, destPath)

	httpReq, err := c.buildDownloadRequest(ctx, req, offset)
	if err != nil {
		c.journalFinish(journalID, "failed", offset)

		return nil, err
	}

	resp, err := c.transport.HTTPClient().Do(httpReq)
	if err != nil {
		c.journalFinish(journalID, endState(err), offset)

		return nil, &api.Error{Message: "download request failed", Err: fmt.Errorf("%w: %w", api.ErrTransport, err)}
	}
	defer resp.Body.Close()

	c.transport.RotateFromHeader(resp.Header)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		data, _ := io.ReadAll(resp.Body)
		c.journalFinish(journalID, "failed", offset)
		c.logger.Warn("download rejected",
			slog.String("name", req.Name),
			slog.Int("status", resp.StatusCode),
		)

		return &Result{Status: resp.StatusCode, Data: data}, nil
	}

	resuming := resp.StatusCode == http.StatusPartialContent && offset > 0
	if !resuming {
		offset = 0
	}

	// Content-Length of -1 means the size is unknown; report a zero total
	// so the caller can render an indeterminate indicator.
	total := offset
	if resp.ContentLength >= 0 {
		total += resp.ContentLength
	} else {
		total = 0
	}

	if progress != nil {
		progress(total, offset)
	}

	written, err := c.writePartial(partialPath, resuming, resp.Body, total, offset, progress, journalID)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			if rmErr := os.Remove(partialPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				c.logger.Warn("removing partial file failed", slog.String("error", rmErr.Error()))
			}
		}

		c.journalFinish(journalID, endState(err), written)

		return nil, err
	}

	if err := os.Rename(partialPath, destPath); err != nil {
		c.journalFinish(journalID, "failed", written)

		return nil, fmt.Errorf("finalizing download: %w", err)
	}

	c.journalFinish(journalID, "done", written)
	c.logger.Info("download complete",
		slog.String("name", req.Name),
		slog.String("path", destPath),
		slog.Int64("bytes", written),
	)

	return &Result{
		Status: resp.StatusCode,
		OK:     true,
		Path:   destPath,
		Bytes:  written,
	}, nil
}

// buildDownloadRequest resolves the URL, picks GET or password POST, and
// attaches the bearer token when one is available. Public share links work
// without a session, so a missing token is not an error here.
func (c *Controller) buildDownloadRequest(ctx context.Context, req Request, offset int64) (*http.Request, error) {
	url := req.URL
	if strings.HasPrefix(url, "/") {
		url = c.transport.BaseURL() + url
	}

	method := http.MethodGet

	var body io.Reader

	if req.Password != "" {
		method = http.MethodPost

		payload, err := json.Marshal(map[string]string{"password": req.Password})
		if err != nil {
			return nil, fmt.Errorf("encoding password: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}

	if req.Password != "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if access := c.transport.BearerToken(ctx); access != "" {
		httpReq.Header.Set("Authorization", "Bearer "+access)
	}

	if offset > 0 {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	return httpReq, nil
}

// writePartial streams body into the partial file, appending when resuming
// and truncating otherwise, and returns the cumulative byte count.
func (c *Controller) writePartial(partialPath string, resuming bool, body io.Reader, total, offset int64, progress ProgressFunc, journalID string) (int64, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if resuming {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(partialPath, flags, 0o644)
	if err != nil {
		return offset, fmt.Errorf("opening partial file: %w", err)
	}

	dst := newProgressWriter(f, total, offset, progress, func(transferred int64) {
		c.journalProgress(journalID, transferred)
	})

	if _, err := io.Copy(dst, body); err != nil {
		f.Close()

		return dst.written, fmt.Errorf("streaming download: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return dst.written, fmt.Errorf("syncing partial file: %w", err)
	}

	if err := f.Close(); err != nil {
		return dst.written, fmt.Errorf("closing partial file: %w", err)
	}

	return dst.written, nil
}

// partialSize reports the byte count of an existing partial file, or zero.
func partialSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0
	}

	return info.Size()
}
