package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/travelblog/internal/db"
)

func setupTestStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:store-%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	s := NewGorm(conn, 5*time.Second)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func boolPtr(v bool) *bool { return &v }

func createPost(t *testing.T, s Store, post db.Post) db.Post {
	t.Helper()
	if post.Category == "" {
		post.Category = db.CategoryTravels
	}
	if post.Content == "" {
		post.Content = "content for " + post.Title
	}
	if err := s.Posts().Create(context.Background(), &post); err != nil {
		t.Fatalf("create post %q: %v", post.Title, err)
	}
	return post
}

func TestGormPosts_DuplicateTitle(t *testing.T) {
	s := setupTestStore(t)
	createPost(t, s, db.Post{Title: "Santorini sunsets"})

	dup := db.Post{Title: "Santorini sunsets", Category: db.CategoryTours, Content: "again"}
	err := s.Posts().Create(context.Background(), &dup)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	var dupErr *DuplicateError
	if !errors.As(err, &dupErr) || dupErr.Field != "title" {
		t.Fatalf("expected duplicate on title, got %#v", err)
	}
}

func TestGormPosts_GetRespectsFilterAndID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	draft := createPost(t, s, db.Post{Title: "Draft only"})

	if _, err := s.Posts().Get(ctx, draft.ID, PostFilter{}); err != nil {
		t.Fatalf("unrestricted get: %v", err)
	}
	if _, err := s.Posts().Get(ctx, draft.ID, PostFilter{IsPublished: boolPtr(true)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unpublished post, got %v", err)
	}
	if _, err := s.Posts().Get(ctx, "not-a-uuid", PostFilter{}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := s.Posts().Get(ctx, db.NewID(), PostFilter{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestGormPosts_SearchIsLiteralAndCaseInsensitive(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createPost(t, s, db.Post{Title: "100% Bali", Content: "rice terraces"})
	createPost(t, s, db.Post{Title: "Alps hiking", Summary: "Glacier walks", Content: "boots"})
	createPost(t, s, db.Post{Title: "Tokyo", Content: "ramen", Tags: []string{"Food_Trip"}})

	cases := []struct {
		search string
		want   int
	}{
		{"bali", 1},
		{"GLACIER", 1},
		{"food_trip", 1},
		{"%", 1},
		{"_", 1},
		{"nothing here", 0},
	}
	for _, tc := range cases {
		total, err := s.Posts().Count(ctx, PostFilter{Search: tc.search})
		if err != nil {
			t.Fatalf("count %q: %v", tc.search, err)
		}
		if total != int64(tc.want) {
			t.Fatalf("search %q: expected %d matches, got %d", tc.search, tc.want, total)
		}
	}
}

func TestGormPosts_SearchMatchesTagValuesNotJSON(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createPost(t, s, db.Post{Title: "Quiet coast", Content: "Sand and sea.", Tags: []string{"beach", "sun"}})
	createPost(t, s, db.Post{Title: "Untagged", Content: "Nothing else."})

	cases := []struct {
		search string
		want   int
	}{
		{"[", 0},
		{`","`, 0},
		{`"`, 0},
		{"BEACH", 1},
		{"sand", 1},
	}
	for _, tc := range cases {
		total, err := s.Posts().Count(ctx, PostFilter{Search: tc.search})
		if err != nil {
			t.Fatalf("count %q: %v", tc.search, err)
		}
		if total != int64(tc.want) {
			t.Fatalf("search %q: expected %d matches, got %d", tc.search, tc.want, total)
		}
	}
}

func TestGormPosts_ListPaginatesByUpdatedAtDesc(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		createPost(t, s, db.Post{Title: fmt.Sprintf("Post %d", i), IsPublished: true})
		time.Sleep(2 * time.Millisecond)
	}

	seen := map[string]bool{}
	var previous time.Time
	for page := 0; page < 3; page++ {
		posts, err := s.Posts().List(ctx, PostQuery{Sort: RecentFirst, Skip: page * 3, Limit: 3})
		if err != nil {
			t.Fatalf("list page %d: %v", page, err)
		}
		for _, p := range posts {
			if seen[p.ID] {
				t.Fatalf("post %s returned twice", p.ID)
			}
			seen[p.ID] = true
			if !previous.IsZero() && p.UpdatedAt.After(previous) {
				t.Fatalf("posts not sorted by updatedAt desc")
			}
			previous = p.UpdatedAt
		}
	}
	if len(seen) != 7 {
		t.Fatalf("expected 7 distinct posts across pages, got %d", len(seen))
	}
}

func TestGormPosts_ProjectionSkipsContent(t *testing.T) {
	s := setupTestStore(t)
	createPost(t, s, db.Post{Title: "Projected", Summary: "short", Content: "long body"})

	posts, err := s.Posts().List(context.Background(), PostQuery{Fields: []string{"id", "title", "summary", "bogus"}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if posts[0].Content != "" || posts[0].Title != "Projected" || posts[0].ID == "" {
		t.Fatalf("unexpected projection result %#v", posts[0])
	}
}

func TestGormPosts_IncrementViewsKeepsUpdatedAt(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	post := createPost(t, s, db.Post{Title: "Counted"})

	before, err := s.Posts().Get(ctx, post.ID, PostFilter{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if err := s.Posts().IncrementViews(ctx, post.ID, 1); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	after, err := s.Posts().Get(ctx, post.ID, PostFilter{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Views != 3 {
		t.Fatalf("expected 3 views, got %d", after.Views)
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("updatedAt changed from %v to %v", before.UpdatedAt, after.UpdatedAt)
	}
	if err := s.Posts().IncrementViews(ctx, db.NewID(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGormPosts_UpdateAndDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	post := createPost(t, s, db.Post{Title: "Original"})

	post.Summary = "changed"
	post.Tags = []string{"a"}
	if err := s.Posts().Update(ctx, &post); err != nil {
		t.Fatalf("update: %v", err)
	}
	loaded, err := s.Posts().Get(ctx, post.ID, PostFilter{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Summary != "changed" || len(loaded.Tags) != 1 {
		t.Fatalf("update not persisted: %#v", loaded)
	}

	if err := s.Posts().Delete(ctx, post.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Posts().Delete(ctx, post.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestGormPosts_CategoriesDistinctSorted(t *testing.T) {
	s := setupTestStore(t)
	createPost(t, s, db.Post{Title: "a", Category: db.CategoryTours, IsPublished: true})
	createPost(t, s, db.Post{Title: "b", Category: db.CategoryHotels, IsPublished: true})
	createPost(t, s, db.Post{Title: "c", Category: db.CategoryTours, IsPublished: true})
	createPost(t, s, db.Post{Title: "d", Category: db.CategoryTourism})

	categories, err := s.Posts().Categories(context.Background(), PostFilter{IsPublished: boolPtr(true)})
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(categories) != 2 || categories[0] != db.CategoryHotels || categories[1] != db.CategoryTours {
		t.Fatalf("unexpected categories %v", categories)
	}
}

func TestGormSubscribers_UniqueEmailAndFilters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first := db.Subscriber{Name: "Ann", Email: "ann@example.com", IsActive: true, SubscribedAt: now, SubscriptionCount: 1}
	if err := s.Subscribers().Create(ctx, &first); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := db.Subscriber{Name: "Ann 2", Email: "ann@example.com", IsActive: true, SubscribedAt: now}
	var dupErr *DuplicateError
	if err := s.Subscribers().Create(ctx, &dup); !errors.As(err, &dupErr) || dupErr.Field != "email" {
		t.Fatalf("expected duplicate email, got %v", err)
	}

	old := db.Subscriber{Name: "Bob", Email: "bob@example.com", IsActive: false, SubscribedAt: now.Add(-72 * time.Hour)}
	if err := s.Subscribers().Create(ctx, &old); err != nil {
		t.Fatalf("create: %v", err)
	}

	active, err := s.Subscribers().Count(ctx, SubscriberFilter{Active: boolPtr(true)})
	if err != nil || active != 1 {
		t.Fatalf("expected 1 active, got %d (%v)", active, err)
	}
	since := now.Add(-24 * time.Hour)
	recent, err := s.Subscribers().Count(ctx, SubscriberFilter{SubscribedSince: &since})
	if err != nil || recent != 1 {
		t.Fatalf("expected 1 recent, got %d (%v)", recent, err)
	}
	found, err := s.Subscribers().List(ctx, SubscriberQuery{Filter: SubscriberFilter{Search: "BOB"}})
	if err != nil || len(found) != 1 || found[0].Email != "bob@example.com" {
		t.Fatalf("search by name failed: %v %v", found, err)
	}
}

func TestGormSubmissions_UnreadPredicates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	submissions := []db.Submission{
		{FirstName: "A", LastName: "One", Email: "a@example.com", Status: db.StatusNew},
		{FirstName: "B", LastName: "Two", Email: "b@example.com", Status: db.StatusNew, IsReadByAdmin: true},
		{FirstName: "C", LastName: "Three", Email: "a@example.com", Status: db.StatusReplied},
	}
	for i := range submissions {
		if err := s.Submissions().Create(ctx, &submissions[i]); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	unreadAdmin, err := s.Submissions().Count(ctx, SubmissionFilter{Status: db.StatusNew, UnreadByAdmin: true})
	if err != nil || unreadAdmin != 1 {
		t.Fatalf("expected 1 unread for admin, got %d (%v)", unreadAdmin, err)
	}
	unreadUser, err := s.Submissions().Count(ctx, SubmissionFilter{Email: "a@example.com", Status: db.StatusReplied, UnreadByUser: true})
	if err != nil || unreadUser != 1 {
		t.Fatalf("expected 1 unread for user, got %d (%v)", unreadUser, err)
	}

	list, err := s.Submissions().List(ctx, SubmissionFilter{Email: "a@example.com"}, 1)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected limit to apply, got %d (%v)", len(list), err)
	}
}
