package mail

import (
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"log"
	"net"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"

	"github.com/travelblog/internal/config"
	"github.com/travelblog/internal/db"
	"github.com/travelblog/internal/retry"
)

// DefaultSiteName appears in subjects and signatures.
const DefaultSiteName = "The Conclave Academy"

// Failure reasons reported by Classify.
const (
	ReasonAuthentication   = "authentication"
	ReasonNetwork          = "network"
	ReasonInvalidRecipient = "invalid-recipient"
	ReasonUnknown          = "unknown"
)

// Report 记录两封投稿邮件的发送结果。
type Report struct {
	AdminErr error
	UserErr  error
}

// OK reports whether both emails went out.
func (r Report) OK() bool {
	return r.AdminErr == nil && r.UserErr == nil
}

// Dispatcher 渲染并发送投稿相关邮件。
type Dispatcher struct {
	sender     Sender
	adminEmail string
	siteName   string
	siteURL    string
	timeout    time.Duration
	retry      retry.Policy
}

// NewDispatcher builds a dispatcher around sender.
func NewDispatcher(sender Sender, cfg config.MailConfig, siteURL string) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Dispatcher{
		sender:     sender,
		adminEmail: strings.TrimSpace(cfg.AdminEmail),
		siteName:   DefaultSiteName,
		siteURL:    siteURL,
		timeout:    timeout,
		retry:      retry.DefaultPolicy(2),
	}
}

// SendSubmission 并发发送管理员通知与用户确认邮件，一封失败不影响另一封。
func (d *Dispatcher) SendSubmission(ctx context.Context, sub db.Submission) Report {
	data := newFormData(sub, d.siteName, d.siteURL)

	var (
		report Report
		wg     sync.WaitGroup
	)

	if d.adminEmail == "" {
		report.AdminErr = errors.New("admin email not configured")
		log.Printf("[MAIL] ADMIN_EMAIL not set, skipping admin notification for %s", sub.ID)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report.AdminErr = d.sendRendered(ctx, "admin notification", Message{
				To:      d.adminEmail,
				ReplyTo: sub.Email,
				Subject: fmt.Sprintf("New Write for Us Submission - %s", sub.FullName()),
			}, adminText, adminHTML, data)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		report.UserErr = d.sendRendered(ctx, "user confirmation", Message{
			To:      sub.Email,
			Subject: fmt.Sprintf("Thank You for Your Submission - %s", d.siteName),
		}, userText, userHTML, data)
	}()

	wg.Wait()
	return report
}

func (d *Dispatcher) sendRendered(ctx context.Context, kind string, msg Message, text *texttemplate.Template, html *htmltemplate.Template, data formData) error {
	var err error
	msg.Text, msg.HTML, err = render(text, html, data)
	if err != nil {
		log.Printf("[MAIL] failed to render %s: %v", kind, err)
		return err
	}

	err = d.retry.Do(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		sendErr := d.sender.Send(attemptCtx, msg)
		if sendErr == nil {
			return nil
		}
		switch Classify(sendErr) {
		case ReasonAuthentication, ReasonInvalidRecipient:
			return retry.Permanent(sendErr)
		}
		return sendErr
	})
	if err != nil {
		log.Printf("[MAIL] %s to %s failed (%s): %v", kind, msg.To, Classify(err), err)
		return err
	}

	log.Printf("[MAIL] %s sent to %s", kind, msg.To)
	return nil
}

// Classify 将发送错误归类，用于日志。
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrInvalidRecipient) {
		return ReasonInvalidRecipient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonNetwork
	}

	message := strings.ToLower(err.Error())
	switch {
	case containsAny(message, "535", "auth", "username and password", "credentials"):
		return ReasonAuthentication
	case containsAny(message, "550", "553", "recipient", "mailbox unavailable", "no such user"):
		return ReasonInvalidRecipient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ReasonNetwork
	}
	if containsAny(message, "connection refused", "no such host", "timeout", "dial tcp", "eof") {
		return ReasonNetwork
	}
	return ReasonUnknown
}

func containsAny(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
