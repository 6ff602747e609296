package newsapi

import (
	"context"
	"errors"
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
	c := NewClient(url, "secret", time.Second, 3)
	c.SetRetryPolicy(retry.Policy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})
	return c
}

func TestEverythingSendsQueryAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "travel AND tourism destination tips", r.URL.Query().Get("q"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "5", r.URL.Query().Get("pageSize"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":1,"articles":[{"source":{"id":null,"name":"Wanderer"},"title":"Ten Alpine Villages","description":"Quiet places","url":"https://news.example.com/alps","publishedAt":"2024-04-01T08:30:00Z","content":null}]}`))
	}))
	defer server.Close()

	articles, err := newTestClient(server.URL).Everything(context.Background(), Query{
		Q:        "travel AND tourism destination tips",
		Language: "en",
		PageSize: 5,
	})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Ten Alpine Villages", articles[0].Title)
	assert.Equal(t, "Wanderer", articles[0].Source.Name)
	assert.Equal(t, "", articles[0].Content)
	assert.Equal(t, time.Date(2024, 4, 1, 8, 30, 0, 0, time.UTC), articles[0].Published(time.Time{}))
}

func TestEverythingRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","articles":[]}`))
	}))
	defer server.Close()

	articles, err := newTestClient(server.URL).Everything(context.Background(), Query{Q: "x"})
	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEverythingDoesNotRetryAuthErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Everything(context.Background(), Query{Q: "x"})
	var statusErr *retry.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, statusErr.Message, "invalid")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEverythingRequiresKey(t *testing.T) {
	c := NewClient("http://unused", "", time.Second, 1)
	_, err := c.Everything(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
	assert.False(t, c.Configured())
}
