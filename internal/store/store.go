package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/travelblog/internal/config"
	"github.com/travelblog/internal/db"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("duplicate record")
	ErrUnavailable = errors.New("store unavailable")
	ErrInvalidID   = errors.New("invalid id")
)

// DuplicateError names the field whose unique constraint was violated.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

// Is lets errors.Is(err, ErrDuplicate) match any DuplicateError.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// Sort orders a listing by a Post JSON field name.
type Sort struct {
	Field      string
	Descending bool
}

// RecentFirst is the default listing order.
var RecentFirst = Sort{Field: "updatedAt", Descending: true}

// PostFilter 文章查询条件，零值表示不限制。
type PostFilter struct {
	Search      string
	Category    string
	IsPublished *bool
}

// PostQuery is a filtered, sorted and optionally paginated post listing.
// Limit 0 returns every match; Skip is only honoured with a Limit.
type PostQuery struct {
	Filter PostFilter
	Sort   Sort
	Skip   int
	Limit  int
	// Fields holds Post JSON names to load; empty loads all of them.
	Fields []string
}

// SubscriberFilter narrows subscriber queries.
type SubscriberFilter struct {
	Search          string
	Active          *bool
	SubscribedSince *time.Time
}

// SubscriberQuery lists subscribers newest first.
type SubscriberQuery struct {
	Filter SubscriberFilter
	Skip   int
	Limit  int
}

// SubmissionFilter narrows submission queries.
type SubmissionFilter struct {
	Email  string
	Status db.SubmissionStatus
	// UnreadByAdmin matches isReadByAdmin=false, UnreadByUser isReadByUser=false.
	UnreadByAdmin bool
	UnreadByUser  bool
}

type PostRepository interface {
	Create(ctx context.Context, post *db.Post) error
	// Get loads a post by id that also satisfies filter.
	Get(ctx context.Context, id string, filter PostFilter) (*db.Post, error)
	Update(ctx context.Context, post *db.Post) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, query PostQuery) ([]db.Post, error)
	Count(ctx context.Context, filter PostFilter) (int64, error)
	// IncrementViews atomically adds delta to views without touching updatedAt.
	IncrementViews(ctx context.Context, id string, delta int64) error
	Categories(ctx context.Context, filter PostFilter) ([]string, error)
}

type SubscriberRepository interface {
	Create(ctx context.Context, subscriber *db.Subscriber) error
	FindByEmail(ctx context.Context, email string) (*db.Subscriber, error)
	Update(ctx context.Context, subscriber *db.Subscriber) error
	List(ctx context.Context, query SubscriberQuery) ([]db.Subscriber, error)
	Count(ctx context.Context, filter SubscriberFilter) (int64, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, submission *db.Submission) error
	Get(ctx context.Context, id string) (*db.Submission, error)
	Update(ctx context.Context, submission *db.Submission) error
	Delete(ctx context.Context, id string) error
	// List returns matches newest first, at most limit of them when limit > 0.
	List(ctx context.Context, filter SubmissionFilter, limit int) ([]db.Submission, error)
	Count(ctx context.Context, filter SubmissionFilter) (int64, error)
}

// Store 处理器与采集任务共享的文档存储。
type Store interface {
	Posts() PostRepository
	Subscribers() SubscriberRepository
	Submissions() SubmissionRepository
	Ping(ctx context.Context) error
	Driver() string
	Close() error
}

// New 根据 cfg.Driver 打开对应的存储后端。
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLite(cfg)
	case "mongodb", "mongo":
		return OpenMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// PostFieldNames lists the Post JSON names that may be projected.
var PostFieldNames = []string{
	"id", "title", "category", "summary", "content", "imageUrl",
	"isPublished", "tags", "views", "author", "createdAt", "updatedAt",
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
