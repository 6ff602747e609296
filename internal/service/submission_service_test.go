package service

import (
	"context"
	"errors"
	"testing"

	"github.com/travelblog/internal/db"
)

func newSubmissionService(t *testing.T) (*SubmissionService, *recordingNotifier, *recordingMailer) {
	t.Helper()
	notifier := &recordingNotifier{}
	mailer := &recordingMailer{}
	svc := NewSubmissionService(setupServiceTestStore(t).Submissions(), notifier, mailer, runInline)
	return svc, notifier, mailer
}

func TestSubmissionService_AdaLovelaceScenario(t *testing.T) {
	svc, notifier, mailer := newSubmissionService(t)
	ctx := context.Background()

	submission, err := svc.Submit(ctx, SubmissionInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "Ada@Example.com ",
		Message:   "I would love to write about Italian lakes",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submission.Email != "ada@example.com" || submission.Status != db.StatusNew {
		t.Fatalf("unexpected stored submission: %+v", submission)
	}
	if submission.NotificationCount.Admin != 1 {
		t.Fatalf("expected admin notification count 1, got %d", submission.NotificationCount.Admin)
	}

	events := notifier.all()
	if len(events) != 1 || events[0].Room != "admin" || events[0].Event != EventNewSubmission {
		t.Fatalf("expected one new-submission event to admin, got %+v", events)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].ID != submission.ID {
		t.Fatalf("expected mail dispatch for submission, got %+v", mailer.sent)
	}

	unread, err := svc.UnreadForAdmin(ctx)
	if err != nil || unread != 1 {
		t.Fatalf("expected admin unread 1, got %d (%v)", unread, err)
	}

	replied, err := svc.Reply(ctx, submission.ID, "Welcome aboard!", "admin-1")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if replied.Status != db.StatusReplied || replied.IsReadByUser || replied.NotificationCount.User != 1 {
		t.Fatalf("unexpected reply state: %+v", replied)
	}
	if replied.AdminReply.Message != "Welcome aboard!" || replied.AdminReply.RepliedAt == nil {
		t.Fatalf("reply fields not set: %+v", replied.AdminReply)
	}

	events = notifier.all()
	last := events[len(events)-1]
	if last.Room != "user:ada@example.com" || last.Event != EventAdminReply {
		t.Fatalf("expected admin-reply to user room, got %+v", last)
	}

	userUnread, err := svc.UnreadForUser(ctx, "ADA@example.com")
	if err != nil || userUnread != 1 {
		t.Fatalf("expected user unread 1, got %d (%v)", userUnread, err)
	}

	if _, err := svc.MarkReadByUser(ctx, submission.ID); err != nil {
		t.Fatalf("mark read by user: %v", err)
	}
	userUnread, err = svc.UnreadForUser(ctx, "ada@example.com")
	if err != nil || userUnread != 0 {
		t.Fatalf("expected user unread 0, got %d (%v)", userUnread, err)
	}

	list, unreadInList, err := svc.ListForUser(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(list) != 1 || unreadInList != 0 || list[0].NotificationCount.User != 0 {
		t.Fatalf("unexpected user list: %+v unread=%d", list, unreadInList)
	}
}

func TestSubmissionService_SubmitValidation(t *testing.T) {
	svc, notifier, mailer := newSubmissionService(t)

	_, err := svc.Submit(context.Background(), SubmissionInput{Email: "not-an-email"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"firstName", "lastName", "email"} {
		if verr.Fields[field] == "" {
			t.Fatalf("expected %s error, got %v", field, verr.Fields)
		}
	}
	if len(notifier.all()) != 0 || len(mailer.sent) != 0 {
		t.Fatalf("side channels must not fire on invalid input")
	}
}

func TestSubmissionService_ReplyErrors(t *testing.T) {
	svc, _, _ := newSubmissionService(t)
	ctx := context.Background()

	var verr *ValidationError
	if _, err := svc.Reply(ctx, db.NewID(), "   ", ""); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for empty reply, got %v", err)
	}
	if _, err := svc.Reply(ctx, db.NewID(), "hello", ""); !errors.Is(err, ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
	if _, err := svc.Reply(ctx, "bogus", "hello", ""); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestSubmissionService_MarkReadByAdminIsIdempotent(t *testing.T) {
	svc, _, _ := newSubmissionService(t)
	ctx := context.Background()

	submission, err := svc.Submit(ctx, SubmissionInput{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	for i := 0; i < 2; i++ {
		marked, err := svc.MarkReadByAdmin(ctx, submission.ID)
		if err != nil {
			t.Fatalf("mark read by admin: %v", err)
		}
		if !marked.IsReadByAdmin || marked.Status != db.StatusViewed {
			t.Fatalf("unexpected state after mark read: %+v", marked)
		}
	}

	unread, err := svc.UnreadForAdmin(ctx)
	if err != nil || unread != 0 {
		t.Fatalf("expected admin unread 0, got %d (%v)", unread, err)
	}
}

func TestSubmissionService_UpdateStatus(t *testing.T) {
	svc, _, _ := newSubmissionService(t)
	ctx := context.Background()

	submission, err := svc.Submit(ctx, SubmissionInput{FirstName: "Alan", LastName: "Turing", Email: "alan@example.com"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var verr *ValidationError
	if _, err := svc.UpdateStatus(ctx, submission.ID, "replied"); !errors.As(err, &verr) {
		t.Fatalf("replied must only be reachable through Reply, got %v", err)
	}
	closed, err := svc.UpdateStatus(ctx, submission.ID, "closed")
	if err != nil || closed.Status != db.StatusClosed {
		t.Fatalf("expected closed status, got %+v (%v)", closed, err)
	}

	if err := svc.Delete(ctx, submission.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, submission.ID); !errors.Is(err, ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
}
