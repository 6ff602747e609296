package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/travelblog/internal/db"
	"github.com/travelblog/internal/mail"
	"github.com/travelblog/internal/store"
)

func setupServiceTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	s := store.NewGorm(conn, 5*time.Second)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type sentEvent struct {
	Room    string
	Event   string
	Payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) ToAdmins(event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{Room: "admin", Event: event, Payload: payload})
}

func (n *recordingNotifier) ToUser(email, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{Room: "user:" + email, Event: event, Payload: payload})
}

func (n *recordingNotifier) all() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []db.Submission
}

func (m *recordingMailer) SendSubmission(_ context.Context, submission db.Submission) mail.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, submission)
	return mail.Report{}
}

func runInline(task func()) { task() }
