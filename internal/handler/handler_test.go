package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/travelblog/internal/db"
	"github.com/travelblog/internal/media"
	"github.com/travelblog/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type notification struct {
	Room  string
	Event string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) ToAdmins(event string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{Room: "admin", Event: event})
}

func (n *recordingNotifier) ToUser(email, event string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{Room: "user:" + email, Event: event})
}

func (n *recordingNotifier) count(room, event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, e := range n.events {
		if e.Room == room && e.Event == event {
			total++
		}
	}
	return total
}

type testEnv struct {
	api       *API
	engine    *gin.Engine
	store     store.Store
	notifier  *recordingNotifier
	uploadDir string
}

func setupTestAPI(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	st := store.NewGorm(conn, 5*time.Second)
	t.Cleanup(func() { _ = st.Close() })

	uploadDir := t.TempDir()
	notifier := &recordingNotifier{}
	api := NewAPI(Dependencies{
		Store:      st,
		Notifier:   notifier,
		Background: func(task func()) { task() },
		Media:      media.NewStoreWith(media.NewLocalUploader(uploadDir, "/static/uploads")),
		Integrations: Integrations{
			StoreDriver: st.Driver(),
			MediaDriver: "local",
		},
	})

	r := gin.New()
	r.GET("/health", api.HealthCheck)
	r.GET("/", api.Welcome)
	r.GET("/api/admin/blog/posts", api.ListAdminPosts)
	r.POST("/api/admin/blog/posts", api.CreatePost)
	r.GET("/api/admin/blog/posts/:id", api.GetAdminPost)
	r.PUT("/api/admin/blog/posts/:id", api.UpdatePost)
	r.DELETE("/api/admin/blog/posts/:id", api.DeletePost)
	r.POST("/api/admin/uploads", api.UploadImage)
	r.GET("/api/user/blog/posts", api.ListPublishedPosts)
	r.GET("/api/user/blog/posts/:id", api.GetPublishedPost)
	r.GET("/api/user/blog/categories", api.ListCategories)
	r.POST("/api/contact/submit", api.SubmitContact)
	r.GET("/api/submissions/admin", api.ListAdminSubmissions)
	r.GET("/api/submissions/admin/unread-count", api.AdminUnreadCount)
	r.GET("/api/submissions/user/:email", api.ListUserSubmissions)
	r.GET("/api/submissions/user/:email/unread-count", api.UserUnreadCount)
	r.POST("/api/submissions/:id/reply", api.ReplyToSubmission)
	r.PUT("/api/submissions/:id/read-admin", api.MarkReadByAdmin)
	r.PUT("/api/submissions/:id/read-user", api.MarkReadByUser)
	r.PUT("/api/submissions/:id/status", api.UpdateSubmissionStatus)
	r.DELETE("/api/submissions/:id", api.DeleteSubmission)
	r.POST("/api/newsletter/subscribe", api.Subscribe)
	r.POST("/api/newsletter/unsubscribe", api.Unsubscribe)
	r.GET("/api/newsletter/subscribers", api.ListSubscribers)
	r.GET("/api/newsletter/stats", api.SubscriberStats)
	r.GET("/api/newsletter/export", api.ExportSubscribers)
	r.NoRoute(api.NotFound)

	return &testEnv{api: api, engine: r, store: st, notifier: notifier, uploadDir: uploadDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
}
