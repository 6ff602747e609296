package mail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/travelblog/internal/config"
	gomail "github.com/wneessen/go-mail"
)

// Message is one rendered email with a plain and an HTML part.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender 通过 go-mail 经 SMTP 服务器发送邮件。
type SMTPSender struct {
	client *gomail.Client
	from   string
}

// NewSMTPSender builds a sender from cfg; Configured(cfg) must be true.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{client: client, from: from}, nil
}

// Configured reports whether cfg carries enough to talk to an SMTP relay.
func Configured(cfg config.MailConfig) bool {
	return strings.TrimSpace(cfg.Host) != "" && (cfg.From != "" || cfg.Username != "")
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			log.Printf("[MAIL] ignoring invalid reply-to %q: %v", msg.ReplyTo, err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	return s.client.DialAndSendWithContext(ctx, m)
}

// LogSender 仅记录日志，未配置 SMTP 时使用。
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Printf("[MAIL] smtp not configured, skipping %q to %s", msg.Subject, msg.To)
	return nil
}

// ErrInvalidRecipient marks a recipient address the relay can never accept.
var ErrInvalidRecipient = errors.New("invalid recipient")
