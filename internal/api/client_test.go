package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory TokenStore for tests.
type memStore struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func (m *memStore) Access() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refresh == "" {
		return ""
	}

	return m.access
}

func (m *memStore) SetAccess(t string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = t

	return t
}

func (m *memStore) Refresh() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.refresh
}

func (m *memStore) SetRefresh(t string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = t

	return nil
}

func (m *memStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = ""
	m.refresh = ""

	return nil
}

// newTestClient builds a Client against url with a non-expiring predicate
// and a populated token pair.
func newTestClient(url string) (*Client, *memStore) {
	store := &memStore{access: "access-1", refresh: "refresh-1"}
	c := NewClient(url, http.DefaultClient, store, testLogger())
	c.expired = func(string) bool { return false }

	return c, store
}

func TestDo_AttachesBearerToken(t *testing.T) {
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	resp, err := client.Do(context.Background(), http.MethodGet, "/filesystem/", nil)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "Bearer access-1", gotAuth)
}

func TestDo_OmitsAuthorizationWhenNoToken(t *testing.T) {
	var hasAuth bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	store := &memStore{}
	client := NewClient(srv.URL, http.DefaultClient, store, testLogger())

	_, err := client.Do(context.Background(), http.MethodGet, "/filesystem/", nil)
	require.NoError(t, err)
	assert.False(t, hasAuth, "Authorization header must be omitted, not sent empty")
}

func TestDo_RefreshTriggeredWhenAccessExpired(t *testing.T) {
	var refreshCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			refreshCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]string{"access": "access-2"})

			return
		}

		assert.Equal(t, "Bearer access-2", r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, store := newTestClient(srv.URL)
	client.expired = func(string) bool { return true }

	_, err := client.Do(context.Background(), http.MethodGet, "/filesystem/", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, "access-2", store.Access())
}

func TestDo_NoRefreshWhenAccessValid(t *testing.T) {
	var refreshCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			refreshCalls.Add(1)
		}

		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	_, err := client.Do(context.Background(), http.MethodGet, "/filesystem/", nil)
	require.NoError(t, err)
	assert.Zero(t, refreshCalls.Load())
}

func TestDo_RefreshFailureClearsTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Token is invalid or expired"}`))

			return
		}

		// The original call proceeds unauthenticated.
		_, hasAuth := r.Header["Authorization"]
		assert.False(t, hasAuth)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, store := newTestClient(srv.URL)
	client.expired = func(string) bool { return true }

	resp, err := client.Do(context.Background(), http.MethodGet, "/filesystem/", nil)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Empty(t, store.Access())
	assert.Empty(t, store.Refresh())
}

func TestDo_ConcurrentCallsShareOneRefresh(t *testing.T) {
	var refreshCalls atomic.Int32

	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			refreshCalls.Add(1)
			<-release
			json.NewEncoder(w).Encode(map[string]string{"access": "access-2"})

			return
		}

		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)
	client.expired = func(string) bool { return true }

	var wg sync.WaitGroup

	const callers = 5

	wg.Add(callers)

	for range callers {
		go func() {
			defer wg.Done()

			_, err := client.Do(context.Background(), http.MethodGet, "/filesystem/", nil)
			assert.NoError(t, err)
		}()
	}

	close(release)
	wg.Wait()

	// Single-flight collapses the five concurrent refreshes. Stragglers that
	// arrive after the first flight completes may trigger a second one; what
	// must never happen is one refresh per caller.
	assert.Less(t, refreshCalls.Load(), int32(callers))
}

func TestDo_HeaderRotationOverwritesTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(HeaderAccessToken, "rotated-access")
		w.Header().Set(HeaderRefreshToken, "rotated-refresh")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, store := newTestClient(srv.URL)

	_, err := client.Do(context.Background(), http.MethodGet, "/filesystem/", nil)
	require.NoError(t, err)
	assert.Equal(t, "rotated-access", store.Access())
	assert.Equal(t, "rotated-refresh", store.Refresh())
}

func TestDo_ApplicationErrorIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"name":["already exists"]}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	resp, err := client.Do(context.Background(), http.MethodPost, "/filesystem/create/", nil)
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.JSONEq(t, `{"name":["already exists"]}`, string(resp.Data))
}

func TestDo_ServerErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	resp, err := client.Do(context.Background(), http.MethodGet, "/filesystem/", nil)
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServer))

	var apiErr *Error

	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestDo_NetworkErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused

	client, _ := newTestClient(srv.URL)

	_, err := client.Do(context.Background(), http.MethodGet, "/filesystem/", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestDo_DeleteSkipsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	resp, err := client.Do(context.Background(), http.MethodDelete, "/filesystem/abc/delete", nil)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Nil(t, resp.Data)
}

func TestDoForm_NilValuesBecomeEmptyFields(t *testing.T) {
	var gotParent, gotName string

	var parentPresent bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		values, ok := r.MultipartForm.Value["parent"]
		parentPresent = ok

		if ok {
			gotParent = values[0]
		}

		gotName = r.FormValue("name")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	resp, err := client.DoForm(context.Background(), http.MethodPost, "/filesystem/create/", map[string]any{
		"parent": nil,
		"name":   "docs",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.True(t, parentPresent, "nil value must still produce a field")
	assert.Empty(t, gotParent)
	assert.Equal(t, "docs", gotName)
}
