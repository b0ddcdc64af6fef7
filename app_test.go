package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bongocloud/bongo-go/internal/api"
	"github.com/bongocloud/bongo-go/internal/fscache"
	"github.com/bongocloud/bongo-go/internal/session"
	"github.com/bongocloud/bongo-go/internal/tokenstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// freshToken mints an access token whose exp claim is far enough out that no
// refresh round-trip fires during the test.
func freshToken(t *testing.T) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return signed
}

// Exercises the whole session: log in, browse the root, create a folder, and
// navigate into it — counting how often each listing is actually fetched.
func TestLoginBrowseCreateFlow(t *testing.T) {
	access := freshToken(t)

	var rootFetches, folderFetches int

	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{` +
			`"user":{"id":"u1","username":"alice","email":"alice@example.com"},` +
			`"access":"` + access + `",` +
			`"refresh":"refresh-1"}`))
	})

	mux.HandleFunc("GET /filesystem/", func(w http.ResponseWriter, r *http.Request) {
		rootFetches++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current":null,"items":[` +
			`{"id":"f1","parent":null,"name":"existing.txt","is_file":true,"size":3}]}`))
	})

	mux.HandleFunc("GET /filesystem/d1/", func(w http.ResponseWriter, r *http.Request) {
		folderFetches++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current":{"id":"d1","parent":null,"name":"photos","is_file":false},"items":[]}`))
	})

	mux.HandleFunc("POST /filesystem/create/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "photos", r.FormValue("name"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"d1","parent":null,"name":"photos","is_file":false}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := tokenstore.New(filepath.Join(t.TempDir(), "tokens.json"))
	client := api.NewClient(server.URL, nil, tokens, testLogger())
	cache := fscache.New(time.Minute, testLogger())
	sess := session.New(client, tokens, cache, testLogger())

	a := &app{
		logger:  testLogger(),
		tokens:  tokens,
		client:  client,
		cache:   cache,
		session: sess,
	}

	ctx := context.Background()

	user, _, err := sess.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)

	// Both tokens stored; the refresh token survives on disk.
	assert.Equal(t, access, tokens.Access())
	assert.Equal(t, "refresh-1", tokens.Refresh())

	// First root visit hits the server, the second is served from cache.
	listing, err := a.listing(ctx, nil)
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
	assert.Equal(t, 1, rootFetches)

	_, err = a.listing(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rootFetches)

	// Creating a folder patches the cached root listing in place.
	created, resp, err := a.client.CreateFolder(ctx, nil, "photos")
	require.NoError(t, err)
	require.NotNil(t, created, "create must succeed: %+v", resp)
	a.cache.AddItem(*created)

	listing, err = a.listing(ctx, nil)
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)
	assert.Equal(t, "photos", listing.Items[1].Name)
	assert.Equal(t, 1, rootFetches, "optimistic insert must not refetch the root")

	// Navigating into the new folder is a cache miss and fetches fresh.
	inside, err := a.listing(ctx, &created.ID)
	require.NoError(t, err)
	assert.Empty(t, inside.Items)
	assert.Equal(t, 1, folderFetches)
}

func TestTransferClientSharesConnectionPool(t *testing.T) {
	tokens := tokenstore.New(filepath.Join(t.TempDir(), "tokens.json"))
	pool := &http.Transport{}
	client := api.NewClient("http://example.invalid", &http.Client{Timeout: time.Second, Transport: pool}, tokens, testLogger())

	hc := transferClient(client).HTTPClient()

	assert.Zero(t, hc.Timeout, "transfers must not carry the request timeout")
	assert.Same(t, pool, hc.Transport)
}
