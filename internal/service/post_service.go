package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/travelblog/internal/db"
	"github.com/travelblog/internal/store"
)

// publicListFields never includes content; list pages only render cards.
var publicListFields = []string{
	"id", "title", "category", "summary", "imageUrl", "isPublished",
	"tags", "views", "author", "createdAt", "updatedAt",
}

// PostService 封装文章相关的存储操作。
type PostService struct {
	posts store.PostRepository
}

// PostInput 表示创建文章时接受的字段。
type PostInput struct {
	Title       string
	Category    string
	Summary     string
	Content     string
	ImageURL    string
	IsPublished bool
	Tags        []string
	Author      string
}

// PostPatch 保存更新时提交的字段，nil 表示保持原值。
type PostPatch struct {
	Title       *string
	Category    *string
	Summary     *string
	Content     *string
	ImageURL    *string
	IsPublished *bool
	Tags        *[]string
}

// PostListResult 聚合分页列表数据与计数。
type PostListResult struct {
	Posts      []db.Post
	Total      int64
	Counted    bool
	Paginated  bool
	Page       int
	PerPage    int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// NewPostService 创建 PostService 实例。
func NewPostService(posts store.PostRepository) *PostService {
	return &PostService{posts: posts}
}

// ListAdmin 返回全部文章，不区分发布状态。
// 仅在 paginate 为 true 时分页；分页或 withCount 时计算总数。
func (s *PostService) ListAdmin(ctx context.Context, query PostQuery, paginate, withCount bool) (*PostListResult, error) {
	posts, err := s.posts.List(ctx, query.storeQuery(paginate))
	if err != nil {
		return nil, err
	}

	result := &PostListResult{Posts: nonNilPosts(posts), Paginated: paginate}
	if !paginate && !withCount {
		return result, nil
	}

	total, err := s.posts.Count(ctx, query.Filter)
	if err != nil {
		return nil, err
	}
	result.Total = total
	result.Counted = true
	if paginate {
		fillPagination(result, query.Page, query.Limit)
	}
	return result, nil
}

// ListPublished 返回一页已发布文章，不含正文。
func (s *PostService) ListPublished(ctx context.Context, query PostQuery) (*PostListResult, error) {
	published := true
	query.Filter.IsPublished = &published
	query.Fields = publicListFields

	total, err := s.posts.Count(ctx, query.Filter)
	if err != nil {
		return nil, err
	}

	posts, err := s.posts.List(ctx, query.storeQuery(true))
	if err != nil {
		return nil, err
	}

	result := &PostListResult{
		Posts:     nonNilPosts(posts),
		Total:     total,
		Counted:   true,
		Paginated: true,
	}
	fillPagination(result, query.Page, query.Limit)
	return result, nil
}

func fillPagination(result *PostListResult, page, perPage int) {
	result.Page = page
	result.PerPage = perPage
	result.TotalPages = calculateTotalPages(result.Total, perPage)
	result.HasNext = page < result.TotalPages
	result.HasPrev = page > 1
}

// Categories returns the distinct categories among published posts.
func (s *PostService) Categories(ctx context.Context) ([]string, error) {
	published := true
	categories, err := s.posts.Categories(ctx, store.PostFilter{IsPublished: &published})
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// Get 按 ID 获取文章。
func (s *PostService) Get(ctx context.Context, id string) (*db.Post, error) {
	post, err := s.posts.Get(ctx, id, store.PostFilter{})
	if err != nil {
		return nil, notFound(err, ErrPostNotFound)
	}
	normalizePost(post)
	return post, nil
}

// GetPublished 获取已发布文章并累计浏览量。
func (s *PostService) GetPublished(ctx context.Context, id string) (*db.Post, error) {
	published := true
	post, err := s.posts.Get(ctx, id, store.PostFilter{IsPublished: &published})
	if err != nil {
		return nil, notFound(err, ErrPostNotFound)
	}
	normalizePost(post)

	if err := s.posts.IncrementViews(ctx, post.ID, 1); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		log.Printf("[STORE] failed to increment views for post %s: %v", post.ID, err)
		return post, nil
	}
	post.Views++
	return post, nil
}

// Validate reports every invalid field of input without touching the store.
func (s *PostService) Validate(input PostInput) error {
	post := postFromInput(input)
	return validatePost(&post)
}

// Create 校验并保存新文章。
func (s *PostService) Create(ctx context.Context, input PostInput) (*db.Post, error) {
	post := postFromInput(input)
	if err := validatePost(&post); err != nil {
		return nil, err
	}
	if post.Summary == "" {
		post.Summary = DeriveSummary(post.Content)
	}

	if err := s.posts.Create(ctx, &post); err != nil {
		return nil, translatePostWriteError(err)
	}
	return &post, nil
}

// Update 将提交的字段应用到已有文章并保存。
func (s *PostService) Update(ctx context.Context, id string, patch PostPatch) (*db.Post, error) {
	post, err := s.PrepareUpdate(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return s.Save(ctx, post)
}

// PrepareUpdate 加载文章并应用补丁，校验通过后返回待保存的文章，不写入存储。
func (s *PostService) PrepareUpdate(ctx context.Context, id string, patch PostPatch) (*db.Post, error) {
	post, err := s.posts.Get(ctx, id, store.PostFilter{})
	if err != nil {
		return nil, notFound(err, ErrPostNotFound)
	}

	if patch.Title != nil {
		post.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Category != nil {
		post.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Summary != nil {
		post.Summary = strings.TrimSpace(*patch.Summary)
	}
	if patch.Content != nil {
		post.Content = *patch.Content
	}
	if patch.ImageURL != nil {
		post.ImageURL = strings.TrimSpace(*patch.ImageURL)
	}
	if patch.IsPublished != nil {
		post.IsPublished = *patch.IsPublished
	}
	if patch.Tags != nil {
		post.Tags = normalizeTags(*patch.Tags)
	}
	normalizePost(post)

	if err := validatePost(post); err != nil {
		return nil, err
	}
	if post.Summary == "" {
		post.Summary = DeriveSummary(post.Content)
	}
	return post, nil
}

// Save 持久化由 PrepareUpdate 返回的文章。
func (s *PostService) Save(ctx context.Context, post *db.Post) (*db.Post, error) {
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, translatePostWriteError(err)
	}
	return post, nil
}

// Delete 删除文章，已存储的图片保留。
func (s *PostService) Delete(ctx context.Context, id string) error {
	if err := s.posts.Delete(ctx, id); err != nil {
		return notFound(err, ErrPostNotFound)
	}
	return nil
}

func postFromInput(input PostInput) db.Post {
	post := db.Post{
		Title:       strings.TrimSpace(input.Title),
		Category:    strings.TrimSpace(input.Category),
		Summary:     strings.TrimSpace(input.Summary),
		Content:     input.Content,
		ImageURL:    strings.TrimSpace(input.ImageURL),
		IsPublished: input.IsPublished,
		Tags:        normalizeTags(input.Tags),
		Author:      strings.TrimSpace(input.Author),
	}
	if post.Author == "" {
		post.Author = db.DefaultAuthor
	}
	return post
}

func validatePost(post *db.Post) error {
	verr := &ValidationError{}

	switch {
	case post.Title == "":
		verr.add("title", "Title is required")
	case utf8.RuneCountInString(post.Title) > maxTitleLength:
		verr.add("title", fmt.Sprintf("Title cannot exceed %d characters", maxTitleLength))
	}

	switch {
	case post.Category == "":
		verr.add("category", "Category is required")
	case !db.IsValidCategory(post.Category):
		verr.add("category", "Category must be one of: "+strings.Join(db.Categories, ", "))
	}

	if strings.TrimSpace(post.Content) == "" {
		verr.add("content", "Content is required")
	}

	if utf8.RuneCountInString(post.Summary) > maxSummaryLength {
		verr.add("summary", fmt.Sprintf("Summary cannot exceed %d characters", maxSummaryLength))
	}

	return verr.orNil()
}

func translatePostWriteError(err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return &ConflictError{Field: "title", Message: "A blog post with this title already exists"}
	case errors.Is(err, store.ErrNotFound):
		return ErrPostNotFound
	}
	return err
}

// normalizeTags trims tags and drops empty ones, keeping order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizePost(post *db.Post) {
	if post.Tags == nil {
		post.Tags = []string{}
	}
}

func nonNilPosts(posts []db.Post) []db.Post {
	if posts == nil {
		return []db.Post{}
	}
	for i := range posts {
		normalizePost(&posts[i])
	}
	return posts
}
