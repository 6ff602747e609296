package service

import (
	"context"

	"github.com/travelblog/internal/db"
	"github.com/travelblog/internal/mail"
)

// 推送到管理员房间或投稿人房间的实时事件名
const (
	EventNewSubmission = "new-submission"
	EventAdminReply    = "admin-reply"
	EventNewSubscriber = "new-newsletter-subscriber"
)

// Notifier 尽力推送实时事件，实现不得阻塞。
type Notifier interface {
	ToAdmins(event string, payload any)
	ToUser(email, event string, payload any)
}

// SubmissionMailer sends the admin notification and user confirmation emails.
type SubmissionMailer interface {
	SendSubmission(ctx context.Context, submission db.Submission) mail.Report
}

// BackgroundRunner 在请求之外执行无需等待的任务。
type BackgroundRunner func(task func())

// RunInGoroutine is the production BackgroundRunner.
func RunInGoroutine(task func()) {
	go task()
}

type noopNotifier struct{}

func (noopNotifier) ToAdmins(string, any)       {}
func (noopNotifier) ToUser(string, string, any) {}
