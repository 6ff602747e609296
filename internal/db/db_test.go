package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
)

func TestLoggerSkipsRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf)
	query := func() (string, int64) { return "SELECT * FROM posts WHERE id = 'x'", 0 }

	l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("record not found should not be logged, got %q", buf.String())
	}

	l.Trace(context.Background(), time.Now(), query, errors.New("disk I/O error"))
	if !bytes.Contains(buf.Bytes(), []byte("disk I/O error")) {
		t.Fatalf("expected real errors to be logged, got %q", buf.String())
	}
}

func TestOpenDoesNotLogMissingRows(t *testing.T) {
	conn, err := Open("file:db-logger?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	var buf bytes.Buffer
	quiet := conn.Session(&gorm.Session{Logger: newLogger(&buf)})
	var post Post
	if err := quiet.First(&post, "id = ?", NewID()).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected log output %q", buf.String())
	}
}
