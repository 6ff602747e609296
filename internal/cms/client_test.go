package cms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travelblog/internal/retry"
)

func newTestClient(url string) *Client {
	c := NewClient(url, "space1", "master", "token", time.Second, 3)
	c.SetRetryPolicy(retry.Policy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})
	return c
}

func TestEnvironmentSendsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/spaces/space1/environments/master", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"name":"master","sys":{"id":"master","type":"Environment","version":1}}`))
	}))
	defer server.Close()

	env, err := newTestClient(server.URL).Environment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "master", env.Name)
}

func TestEnvironmentUnauthorizedIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"The access token you sent could not be found or is invalid.","sys":{"id":"AccessTokenInvalid","type":"Error"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Environment(context.Background())
	var statusErr *retry.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, statusErr.Message, "access token")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreateAndPublishEntry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/spaces/space1/environments/master/entries/auto-alps-1":
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "theConclaveBlog", r.Header.Get("X-Contentful-Content-Type"))
			assert.Equal(t, managementContentType, r.Header.Get("Content-Type"))

			body, _ := io.ReadAll(r.Body)
			var payload struct {
				Fields map[string]map[string]any `json:"fields"`
			}
			require.NoError(t, json.Unmarshal(body, &payload))
			assert.Equal(t, "Alps", payload.Fields["title"]["en-US"])
			doc := payload.Fields["content"]["en-US"].(map[string]any)
			assert.Equal(t, "document", doc["nodeType"])

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"sys":{"id":"auto-alps-1","type":"Entry","version":1}}`))
		case "/spaces/space1/environments/master/entries/auto-alps-1/published":
			assert.Equal(t, "1", r.Header.Get("X-Contentful-Version"))
			_, _ = w.Write([]byte(`{"sys":{"id":"auto-alps-1","type":"Entry","version":2}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	fields := Fields{}
	fields.Set("title", "en-US", "Alps")
	fields.Set("content", "en-US", RichText("Snow and silence."))

	entry, err := client.CreateEntryWithID(context.Background(), "theConclaveBlog", "auto-alps-1", fields)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Sys.Version)

	published, err := client.PublishEntry(context.Background(), entry.Sys.ID, entry.Sys.Version)
	require.NoError(t, err)
	assert.Equal(t, 2, published.Sys.Version)
}

func TestCreateEntryConflictIsEntryExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"version mismatch","sys":{"id":"VersionMismatch","type":"Error"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CreateEntryWithID(context.Background(), "theConclaveBlog", "auto-x", Fields{})
	assert.ErrorIs(t, err, ErrEntryExists)
}

func TestCreateEntryRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"sys":{"id":"auto-x","version":1}}`))
	}))
	defer server.Close()

	entry, err := newTestClient(server.URL).CreateEntryWithID(context.Background(), "theConclaveBlog", "auto-x", Fields{})
	require.NoError(t, err)
	assert.Equal(t, "auto-x", entry.Sys.ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestUnconfiguredClient(t *testing.T) {
	c := NewClient("", "", "", "", 0, 1)
	assert.False(t, c.Configured())
	_, err := c.Environment(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
