package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/travelblog/internal/config"
	"github.com/travelblog/internal/db"
	"gorm.io/gorm"
)

var postColumns = map[string]string{
	"id":          "id",
	"title":       "title",
	"category":    "category",
	"summary":     "summary",
	"content":     "content",
	"imageUrl":    "image_url",
	"isPublished": "is_published",
	"tags":        "tags",
	"views":       "views",
	"author":      "author",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

type gormStore struct {
	db          *gorm.DB
	posts       *gormPosts
	subscribers *gormSubscribers
	submissions *gormSubmissions
}

// OpenSQLite opens the SQLite database at cfg.DatabasePath.
func OpenSQLite(cfg config.StoreConfig) (Store, error) {
	conn, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return NewGorm(conn, cfg.QueryTimeout), nil
}

// NewGorm wraps an already migrated gorm connection.
func NewGorm(conn *gorm.DB, timeout time.Duration) Store {
	return &gormStore{
		db:          conn,
		posts:       &gormPosts{db: conn, timeout: timeout},
		subscribers: &gormSubscribers{db: conn, timeout: timeout},
		submissions: &gormSubmissions{db: conn, timeout: timeout},
	}
}

func (s *gormStore) Posts() PostRepository             { return s.posts }
func (s *gormStore) Subscribers() SubscriberRepository { return s.subscribers }
func (s *gormStore) Submissions() SubmissionRepository { return s.submissions }
func (s *gormStore) Driver() string                    { return "sqlite" }

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translateGormError maps driver errors onto the store sentinels.
func translateGormError(err error, uniqueField string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT FAILED"):
		return &DuplicateError{Field: uniqueField}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	}
	return fmt.Errorf("sqlite: %w", err)
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(value) + "%"
}

func paginate(query *gorm.DB, skip, limit int) *gorm.DB {
	if limit <= 0 {
		return query
	}
	query = query.Limit(limit)
	if skip > 0 {
		query = query.Offset(skip)
	}
	return query
}

// tagMatch 逐个匹配 tags 数组元素，避免命中 JSON 序列化后的标点。
const tagMatch = `EXISTS (SELECT 1 FROM json_each(CASE WHEN json_valid(posts.tags) THEN posts.tags ELSE '[]' END) AS tag WHERE tag.value LIKE ? ESCAPE '\')`

type gormPosts struct {
	db      *gorm.DB
	timeout time.Duration
}

func (r *gormPosts) scoped(ctx context.Context, filter PostFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&db.Post{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		like := escapeLike(search)
		query = query.Where(
			`(title LIKE ? ESCAPE '\' OR summary LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\' OR `+tagMatch+`)`,
			like, like, like, like,
		)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.IsPublished != nil {
		query = query.Where("is_published = ?", *filter.IsPublished)
	}
	return query
}

func (r *gormPosts) Create(ctx context.Context, post *db.Post) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return translateGormError(r.db.WithContext(ctx).Create(post).Error, "title")
}

func (r *gormPosts) Get(ctx context.Context, id string, filter PostFilter) (*db.Post, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var post db.Post
	if err := r.scoped(ctx, filter).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, translateGormError(err, "title")
	}
	return &post, nil
}

func (r *gormPosts) Update(ctx context.Context, post *db.Post) error {
	if err := validID(post.ID); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	post.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).Model(post).Select("*").Omit("id", "created_at").Updates(post)
	if result.Error != nil {
		return translateGormError(result.Error, "title")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormPosts) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Post{})
	if result.Error != nil {
		return translateGormError(result.Error, "title")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormPosts) List(ctx context.Context, q PostQuery) ([]db.Post, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := r.scoped(ctx, q.Filter)
	if columns := selectColumns(q.Fields); len(columns) > 0 {
		query = query.Select(columns)
	}

	sort := q.Sort
	if sort.Field == "" {
		sort = RecentFirst
	}
	column, ok := postColumns[sort.Field]
	if !ok {
		column = "updated_at"
	}
	direction := "asc"
	if sort.Descending {
		direction = "desc"
	}
	query = query.Order(column + " " + direction).Order("id " + direction)

	var posts []db.Post
	if err := paginate(query, q.Skip, q.Limit).Find(&posts).Error; err != nil {
		return nil, translateGormError(err, "title")
	}
	return posts, nil
}

func selectColumns(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		if column, ok := postColumns[field]; ok {
			columns = append(columns, column)
		}
	}
	return columns
}

func (r *gormPosts) Count(ctx context.Context, filter PostFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var total int64
	if err := r.scoped(ctx, filter).Count(&total).Error; err != nil {
		return 0, translateGormError(err, "title")
	}
	return total, nil
}

func (r *gormPosts) IncrementViews(ctx context.Context, id string, delta int64) error {
	if err := validID(id); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	// UpdateColumn skips hooks and leaves updated_at untouched
	result := r.db.WithContext(ctx).Model(&db.Post{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", delta))
	if result.Error != nil {
		return translateGormError(result.Error, "title")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormPosts) Categories(ctx context.Context, filter PostFilter) ([]string, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var categories []string
	if err := r.scoped(ctx, filter).Distinct().Order("category asc").Pluck("category", &categories).Error; err != nil {
		return nil, translateGormError(err, "title")
	}
	return categories, nil
}

type gormSubscribers struct {
	db      *gorm.DB
	timeout time.Duration
}

func (r *gormSubscribers) scoped(ctx context.Context, filter SubscriberFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&db.Subscriber{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := escapeLike(search)
		query = query.Where(`(name LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`, like, like)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	if filter.SubscribedSince != nil {
		query = query.Where("subscribed_at >= ?", *filter.SubscribedSince)
	}
	return query
}

func (r *gormSubscribers) Create(ctx context.Context, subscriber *db.Subscriber) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return translateGormError(r.db.WithContext(ctx).Create(subscriber).Error, "email")
}

func (r *gormSubscribers) FindByEmail(ctx context.Context, email string) (*db.Subscriber, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var subscriber db.Subscriber
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&subscriber).Error; err != nil {
		return nil, translateGormError(err, "email")
	}
	return &subscriber, nil
}

func (r *gormSubscribers) Update(ctx context.Context, subscriber *db.Subscriber) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	subscriber.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).Model(subscriber).Select("*").Omit("id", "created_at").Updates(subscriber)
	if result.Error != nil {
		return translateGormError(result.Error, "email")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormSubscribers) List(ctx context.Context, q SubscriberQuery) ([]db.Subscriber, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := r.scoped(ctx, q.Filter).Order("subscribed_at desc").Order("id desc")
	var subscribers []db.Subscriber
	if err := paginate(query, q.Skip, q.Limit).Find(&subscribers).Error; err != nil {
		return nil, translateGormError(err, "email")
	}
	return subscribers, nil
}

func (r *gormSubscribers) Count(ctx context.Context, filter SubscriberFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var total int64
	if err := r.scoped(ctx, filter).Count(&total).Error; err != nil {
		return 0, translateGormError(err, "email")
	}
	return total, nil
}

type gormSubmissions struct {
	db      *gorm.DB
	timeout time.Duration
}

func (r *gormSubmissions) scoped(ctx context.Context, filter SubmissionFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&db.Submission{})
	if filter.Email != "" {
		query = query.Where("email = ?", filter.Email)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.UnreadByAdmin {
		query = query.Where("is_read_by_admin = ?", false)
	}
	if filter.UnreadByUser {
		query = query.Where("is_read_by_user = ?", false)
	}
	return query
}

func (r *gormSubmissions) Create(ctx context.Context, submission *db.Submission) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return translateGormError(r.db.WithContext(ctx).Create(submission).Error, "id")
}

func (r *gormSubmissions) Get(ctx context.Context, id string) (*db.Submission, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var submission db.Submission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&submission).Error; err != nil {
		return nil, translateGormError(err, "id")
	}
	return &submission, nil
}

func (r *gormSubmissions) Update(ctx context.Context, submission *db.Submission) error {
	if err := validID(submission.ID); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	submission.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).Model(submission).Select("*").Omit("id", "created_at").Updates(submission)
	if result.Error != nil {
		return translateGormError(result.Error, "id")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormSubmissions) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Submission{})
	if result.Error != nil {
		return translateGormError(result.Error, "id")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormSubmissions) List(ctx context.Context, filter SubmissionFilter, limit int) ([]db.Submission, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := r.scoped(ctx, filter).Order("created_at desc").Order("id desc")
	var submissions []db.Submission
	if err := paginate(query, 0, limit).Find(&submissions).Error; err != nil {
		return nil, translateGormError(err, "id")
	}
	return submissions, nil
}

func (r *gormSubmissions) Count(ctx context.Context, filter SubmissionFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var total int64
	if err := r.scoped(ctx, filter).Count(&total).Error; err != nil {
		return 0, translateGormError(err, "id")
	}
	return total, nil
}
