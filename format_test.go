package main

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bongocloud/bongo-go/internal/api"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 512, "512 B"},
		{"kilobytes", 2048, "2.0 KB"},
		{"megabytes", 5 * 1024 * 1024, "5.0 MB"},
		{"gigabytes", 3 * 1024 * 1024 * 1024, "3.0 GB"},
		{"terabytes", 2 * 1024 * 1024 * 1024 * 1024, "2.0 TB"},
		{"fractional", 1536, "1.5 KB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()

	sameYear := formatTime(time.Date(now.Year(), 6, 15, 10, 30, 0, 0, time.UTC))
	assert.Equal(t, "Jun 15 10:30", sameYear)
	assert.NotContains(t, sameYear, strconv.Itoa(now.Year()), "same-year format omits the year")

	old := time.Date(2019, 6, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "Jun 15  2019", formatTime(old))
}

func TestPrintTableAlignsColumns(t *testing.T) {
	var sb strings.Builder

	printTable(&sb, []string{"NAME", "SIZE"}, [][]string{
		{"short", "1 B"},
		{"a-much-longer-name", "12.5 MB"},
	})

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	assert.Len(t, lines, 3)

	// The SIZE column starts at the same offset on every line.
	offset := strings.Index(lines[0], "SIZE")
	assert.Equal(t, offset, strings.Index(lines[1], "1 B"))
	assert.Equal(t, offset, strings.Index(lines[2], "12.5 MB"))
}

func TestFieldErrors(t *testing.T) {
	t.Run("nil response", func(t *testing.T) {
		err := fieldErrors("login failed", nil)
		assert.EqualError(t, err, "login failed")
	})

	t.Run("array field messages", func(t *testing.T) {
		resp := &api.Response{Data: []byte(`{"password":["This field is required."]}`)}

		err := fieldErrors("login failed", resp)
		assert.ErrorContains(t, err, "password: This field is required.")
	})

	t.Run("string detail", func(t *testing.T) {
		resp := &api.Response{Data: []byte(`{"detail":"Invalid credentials."}`)}

		err := fieldErrors("login failed", resp)
		assert.ErrorContains(t, err, "detail: Invalid credentials.")
	})

	t.Run("unparseable body falls back to prefix", func(t *testing.T) {
		resp := &api.Response{Data: []byte(`<html>`)}

		err := fieldErrors("login failed", resp)
		assert.EqualError(t, err, "login failed")
	})
}
