package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/travelblog/internal/db"
	"github.com/travelblog/internal/store"
)

const maxSubscriberNameLength = 100

// ExportHeader is the first CSV row of a subscriber export.
var ExportHeader = []string{"Name", "Email", "Subscribed Date", "Status"}

// NewsletterService 管理邮件通讯订阅。
type NewsletterService struct {
	subscribers store.SubscriberRepository
	notifier    Notifier
	now         func() time.Time
}

// SubscribeInput is a subscribe request after boundary parsing.
type SubscribeInput struct {
	Email  string
	Name   string
	Source string
}

// SubscribeResult 标明是否重新激活了已退订的订阅。
type SubscribeResult struct {
	Subscriber  *db.Subscriber
	Reactivated bool
}

// SubscriberEvent is the payload of a new-newsletter-subscriber event.
type SubscriberEvent struct {
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Source         string    `json:"source"`
	SubscribedAt   time.Time `json:"subscribedAt"`
	IsReactivation bool      `json:"isReactivation"`
}

// SubscriberListParams are raw listing parameters.
type SubscriberListParams struct {
	Search string
	Page   string
	Limit  string
}

// SubscriberListResult is one page of active subscribers.
type SubscriberListResult struct {
	Subscribers []db.Subscriber
	Total       int64
	Page        int
	PerPage     int
	TotalPages  int
	HasNext     bool
	HasPrev     bool
}

// SubscriberStats 订阅者统计。
type SubscriberStats struct {
	Total       int64 `json:"total"`
	Active      int64 `json:"active"`
	Inactive    int64 `json:"inactive"`
	NewToday    int64 `json:"newToday"`
	NewThisWeek int64 `json:"newThisWeek"`
}

// NewNewsletterService 创建 NewsletterService，notifier 为 nil 时不推送事件。
func NewNewsletterService(subscribers store.SubscriberRepository, notifier Notifier) *NewsletterService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &NewsletterService{subscribers: subscribers, notifier: notifier, now: time.Now}
}

// Subscribe 新建订阅或重新激活已退订的订阅。
func (s *NewsletterService) Subscribe(ctx context.Context, input SubscribeInput) (*SubscribeResult, error) {
	email := NormalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	source := strings.ToLower(strings.TrimSpace(input.Source))
	if source == "" {
		source = db.SourceBlog
	}

	verr := &ValidationError{}
	if email == "" {
		verr.add("email", "Email is required")
	} else if !strings.Contains(email, "@") {
		verr.add("email", "Please provide a valid email address")
	}
	if utf8.RuneCountInString(name) > maxSubscriberNameLength {
		verr.add("name", fmt.Sprintf("Name cannot exceed %d characters", maxSubscriberNameLength))
	}
	if !db.IsValidSource(source) {
		verr.add("source", "Source must be one of: "+strings.Join(db.Sources, ", "))
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	existing, err := s.subscribers.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return s.reactivate(ctx, existing, name)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	if name == "" {
		name = nameFromEmail(email)
	}
	subscriber := db.Subscriber{
		Name:              name,
		Email:             email,
		SubscribedAt:      s.now(),
		Source:            source,
		IsActive:          true,
		SubscriptionCount: 1,
	}
	if err := s.subscribers.Create(ctx, &subscriber); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &ConflictError{Field: "email", Message: "This email is already subscribed"}
		}
		return nil, err
	}

	s.emit(&subscriber, false)
	return &SubscribeResult{Subscriber: &subscriber}, nil
}

func (s *NewsletterService) reactivate(ctx context.Context, subscriber *db.Subscriber, name string) (*SubscribeResult, error) {
	if subscriber.IsActive {
		return nil, ErrAlreadySubscribed
	}

	subscriber.IsActive = true
	subscriber.SubscriptionCount++
	if name != "" {
		subscriber.Name = name
	}
	if err := s.subscribers.Update(ctx, subscriber); err != nil {
		return nil, notFound(err, ErrSubscriberNotFound)
	}

	s.emit(subscriber, true)
	return &SubscribeResult{Subscriber: subscriber, Reactivated: true}, nil
}

func (s *NewsletterService) emit(subscriber *db.Subscriber, reactivated bool) {
	s.notifier.ToAdmins(EventNewSubscriber, SubscriberEvent{
		Email:          subscriber.Email,
		Name:           subscriber.Name,
		Source:         subscriber.Source,
		SubscribedAt:   subscriber.SubscribedAt,
		IsReactivation: reactivated,
	})
}

// Unsubscribe 停用该邮箱的订阅。
func (s *NewsletterService) Unsubscribe(ctx context.Context, email string) (*db.Subscriber, error) {
	email = NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, &ValidationError{Fields: map[string]string{"email": "Please provide a valid email address"}}
	}

	subscriber, err := s.subscribers.FindByEmail(ctx, email)
	if err != nil {
		return nil, notFound(err, ErrSubscriberNotFound)
	}
	if !subscriber.IsActive {
		return subscriber, nil
	}

	subscriber.IsActive = false
	if err := s.subscribers.Update(ctx, subscriber); err != nil {
		return nil, notFound(err, ErrSubscriberNotFound)
	}
	return subscriber, nil
}

// List 按订阅时间倒序返回一页活跃订阅者。
func (s *NewsletterService) List(ctx context.Context, params SubscriberListParams) (*SubscriberListResult, error) {
	page := normalizePage(parsePositiveInt(params.Page, DefaultPage))
	limit := normalizeLimit(parsePositiveInt(params.Limit, DefaultLimit))

	active := true
	filter := store.SubscriberFilter{Search: strings.TrimSpace(params.Search), Active: &active}

	total, err := s.subscribers.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	subscribers, err := s.subscribers.List(ctx, store.SubscriberQuery{
		Filter: filter,
		Skip:   (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	if subscribers == nil {
		subscribers = []db.Subscriber{}
	}

	totalPages := calculateTotalPages(total, limit)
	return &SubscriberListResult{
		Subscribers: subscribers,
		Total:       total,
		Page:        page,
		PerPage:     limit,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}, nil
}

// Stats 统计订阅者。今日从本地零点起算，本周为最近七天，两者不区分订阅状态。
func (s *NewsletterService) Stats(ctx context.Context) (*SubscriberStats, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.Add(-7 * 24 * time.Hour)
	active := true

	var stats SubscriberStats
	counts := []struct {
		target *int64
		filter store.SubscriberFilter
	}{
		{&stats.Total, store.SubscriberFilter{}},
		{&stats.Active, store.SubscriberFilter{Active: &active}},
		{&stats.NewToday, store.SubscriberFilter{SubscribedSince: &midnight}},
		{&stats.NewThisWeek, store.SubscriberFilter{SubscribedSince: &weekAgo}},
	}
	for _, c := range counts {
		n, err := s.subscribers.Count(ctx, c.filter)
		if err != nil {
			return nil, err
		}
		*c.target = n
	}
	stats.Inactive = stats.Total - stats.Active
	return &stats, nil
}

// ExportFilename names the CSV attachment for the given day.
func ExportFilename(day time.Time) string {
	return fmt.Sprintf("newsletter-subscribers-%s.csv", day.Format("2006-01-02"))
}

// WriteCSV 将所有活跃订阅者以 CSV 写入 w。
func (s *NewsletterService) WriteCSV(ctx context.Context, w io.Writer) error {
	active := true
	subscribers, err := s.subscribers.List(ctx, store.SubscriberQuery{
		Filter: store.SubscriberFilter{Active: &active},
	})
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeader); err != nil {
		return err
	}
	for _, subscriber := range subscribers {
		status := "Inactive"
		if subscriber.IsActive {
			status = "Active"
		}
		record := []string{
			subscriber.Name,
			subscriber.Email,
			subscriber.SubscribedAt.Format("2006-01-02"),
			status,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return email
	}
	return local
}
