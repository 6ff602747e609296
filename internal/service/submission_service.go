package service

import (
	"context"
	"strings"
	"time"

	"github.com/travelblog/internal/db"
	"github.com/travelblog/internal/store"
)

const (
	adminSubmissionLimit = 100
	userSubmissionLimit  = 50
)

// SubmissionService 处理投稿及其回复。
type SubmissionService struct {
	submissions store.SubmissionRepository
	notifier    Notifier
	mailer      SubmissionMailer
	background  BackgroundRunner
}

// SubmissionInput 客户端提交的投稿表单。
type SubmissionInput struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Address     string
	Interests   []string
	Experience  string
	Message     string
	HearAboutUs string
	UserID      string
}

// SubmissionEvent is the payload of a new-submission event.
type SubmissionEvent struct {
	SubmissionID string    `json:"submissionId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ReplyEvent is the payload of an admin-reply event.
type ReplyEvent struct {
	SubmissionID string    `json:"submissionId"`
	AdminReply   string    `json:"adminReply"`
	RepliedAt    time.Time `json:"repliedAt"`
}

// NewSubmissionService 组装仓储与通知、邮件通道。
// notifier 或 mailer 为 nil 时关闭对应通道；runner 为 nil 时使用 goroutine。
func NewSubmissionService(submissions store.SubmissionRepository, notifier Notifier, mailer SubmissionMailer, background BackgroundRunner) *SubmissionService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if background == nil {
		background = RunInGoroutine
	}
	return &SubmissionService{
		submissions: submissions,
		notifier:    notifier,
		mailer:      mailer,
		background:  background,
	}
}

// Submit 保存投稿、通知管理员，并在后台发送两封邮件。
func (s *SubmissionService) Submit(ctx context.Context, input SubmissionInput) (*db.Submission, error) {
	submission := db.Submission{
		FirstName:   strings.TrimSpace(input.FirstName),
		LastName:    strings.TrimSpace(input.LastName),
		Email:       NormalizeEmail(input.Email),
		Phone:       strings.TrimSpace(input.Phone),
		Address:     strings.TrimSpace(input.Address),
		Interests:   normalizeTags(input.Interests),
		Experience:  strings.TrimSpace(input.Experience),
		Message:     strings.TrimSpace(input.Message),
		HearAboutUs: strings.TrimSpace(input.HearAboutUs),
		UserID:      strings.TrimSpace(input.UserID),
		Status:      db.StatusNew,
		NotificationCount: db.NotificationCount{
			Admin: 1,
		},
	}

	verr := &ValidationError{}
	if submission.FirstName == "" {
		verr.add("firstName", "First name is required")
	}
	if submission.LastName == "" {
		verr.add("lastName", "Last name is required")
	}
	if submission.Email == "" {
		verr.add("email", "Email is required")
	} else if !strings.Contains(submission.Email, "@") {
		verr.add("email", "Please provide a valid email address")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return nil, err
	}

	s.notifier.ToAdmins(EventNewSubmission, SubmissionEvent{
		SubmissionID: submission.ID,
		Name:         submission.FullName(),
		Email:        submission.Email,
		Message:      submission.Message,
		CreatedAt:    submission.CreatedAt,
	})

	if s.mailer != nil {
		snapshot := submission
		s.background(func() {
			s.mailer.SendSubmission(context.Background(), snapshot)
		})
	}

	return &submission, nil
}

// ListForAdmin 返回最新投稿及管理员未读数。
func (s *SubmissionService) ListForAdmin(ctx context.Context) ([]db.Submission, int64, error) {
	submissions, err := s.submissions.List(ctx, store.SubmissionFilter{}, adminSubmissionLimit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.UnreadForAdmin(ctx)
	if err != nil {
		return nil, 0, err
	}
	return nonNilSubmissions(submissions), unread, nil
}

// ListForUser 返回某个投稿人的最新投稿及其未读回复数。
func (s *SubmissionService) ListForUser(ctx context.Context, email string) ([]db.Submission, int64, error) {
	email = NormalizeEmail(email)
	submissions, err := s.submissions.List(ctx, store.SubmissionFilter{Email: email}, userSubmissionLimit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.UnreadForUser(ctx, email)
	if err != nil {
		return nil, 0, err
	}
	return nonNilSubmissions(submissions), unread, nil
}

// UnreadForAdmin 统计管理员未读且状态为 new 的投稿。
func (s *SubmissionService) UnreadForAdmin(ctx context.Context) (int64, error) {
	return s.submissions.Count(ctx, store.SubmissionFilter{Status: db.StatusNew, UnreadByAdmin: true})
}

// UnreadForUser counts replied submissions the submitter has not opened.
func (s *SubmissionService) UnreadForUser(ctx context.Context, email string) (int64, error) {
	return s.submissions.Count(ctx, store.SubmissionFilter{
		Email:        NormalizeEmail(email),
		Status:       db.StatusReplied,
		UnreadByUser: true,
	})
}

// Reply 记录管理员回复并通知投稿人。
func (s *SubmissionService) Reply(ctx context.Context, id, message, adminID string) (*db.Submission, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &ValidationError{Fields: map[string]string{"adminReply": "Reply message is required"}}
	}

	submission, err := s.submissions.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrSubmissionNotFound)
	}

	now := time.Now()
	submission.AdminReply = db.AdminReply{
		Message:   message,
		RepliedAt: &now,
		AdminID:   strings.TrimSpace(adminID),
	}
	submission.Status = db.StatusReplied
	submission.IsReadByUser = false
	submission.NotificationCount.User++

	if err := s.submissions.Update(ctx, submission); err != nil {
		return nil, notFound(err, ErrSubmissionNotFound)
	}

	s.notifier.ToUser(submission.Email, EventAdminReply, ReplyEvent{
		SubmissionID: submission.ID,
		AdminReply:   message,
		RepliedAt:    now,
	})
	return submission, nil
}

// MarkReadByAdmin 标记管理员已读，new 状态转为 viewed。
func (s *SubmissionService) MarkReadByAdmin(ctx context.Context, id string) (*db.Submission, error) {
	submission, err := s.submissions.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrSubmissionNotFound)
	}

	submission.IsReadByAdmin = true
	if submission.Status == db.StatusNew {
		submission.Status = db.StatusViewed
	}
	if err := s.submissions.Update(ctx, submission); err != nil {
		return nil, notFound(err, ErrSubmissionNotFound)
	}
	return submission, nil
}

// MarkReadByUser 标记投稿人已读回复。
func (s *SubmissionService) MarkReadByUser(ctx context.Context, id string) (*db.Submission, error) {
	submission, err := s.submissions.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrSubmissionNotFound)
	}

	submission.IsReadByUser = true
	submission.NotificationCount.User = 0
	if err := s.submissions.Update(ctx, submission); err != nil {
		return nil, notFound(err, ErrSubmissionNotFound)
	}
	return submission, nil
}

// UpdateStatus lets the admin mark a submission viewed or closed.
func (s *SubmissionService) UpdateStatus(ctx context.Context, id, status string) (*db.Submission, error) {
	next := db.SubmissionStatus(strings.ToLower(strings.TrimSpace(status)))
	if next != db.StatusViewed && next != db.StatusClosed {
		return nil, &ValidationError{Fields: map[string]string{"status": "Status must be one of: viewed, closed"}}
	}

	submission, err := s.submissions.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrSubmissionNotFound)
	}

	submission.Status = next
	if next == db.StatusViewed {
		submission.IsReadByAdmin = true
	}
	if err := s.submissions.Update(ctx, submission); err != nil {
		return nil, notFound(err, ErrSubmissionNotFound)
	}
	return submission, nil
}

// Delete 删除投稿。
func (s *SubmissionService) Delete(ctx context.Context, id string) error {
	if err := s.submissions.Delete(ctx, id); err != nil {
		return notFound(err, ErrSubmissionNotFound)
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nonNilSubmissions(submissions []db.Submission) []db.Submission {
	if submissions == nil {
		return []db.Submission{}
	}
	for i := range submissions {
		if submissions[i].Interests == nil {
			submissions[i].Interests = []string{}
		}
	}
	return submissions
}
