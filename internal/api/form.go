package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
)

// encodeForm serializes fields as a multipart form body. Values are written
// as their string representation; nil values become empty fields, matching
// how the server distinguishes "no parent" from a missing field.
func encodeForm(fields map[string]any) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	for key, value := range fields {
		text := ""
		if value != nil {
			text = fmt.Sprint(value)
		}

		if err := w.WriteField(key, text); err != nil {
			return nil, "", fmt.Errorf("api: encoding form field %q: %w", key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("api: finalizing form body: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
