// AngelaMos | 2026
// mail.go

package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/gomail.v2"

	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/metrics"
)

type Message struct {
	To       string
	Subject  string
	Template string
	HTML     string
}

// Mailer delivers a message. Delivery is best effort; callers decide
// whether an error is worth retrying.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when a host is configured and a log-only
// mailer otherwise.
func New(cfg config.MailConfig, logger *slog.Logger) Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SMTPHost == "" || cfg.FromAddress == "" {
		logger.Warn("smtp not configured, mail will only be logged")
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg, logger)
}

type SMTPMailer struct {
	cfg    config.MailConfig
	dialer *gomail.Dialer
	logger *slog.Logger
}

func NewSMTPMailer(cfg config.MailConfig, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		logger: logger,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		m.logger.WarnContext(ctx, "mail recipient empty, skip", "template", msg.Template)
		return nil
	}

	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.cfg.FromAddress, m.cfg.FromName)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	if err := m.dialer.DialAndSend(gm); err != nil {
		metrics.MailsSentTotal.WithLabelValues(msg.Template, "error").Inc()
		return fmt.Errorf("send mail: %w", err)
	}

	metrics.MailsSentTotal.WithLabelValues(msg.Template, "success").Inc()
	m.logger.InfoContext(ctx, "mail sent", "to", msg.To, "template", msg.Template)
	return nil
}

// LogMailer writes messages to the log and keeps them in memory. It backs
// local development and tests.
type LogMailer struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	metrics.MailsSentTotal.WithLabelValues(msg.Template, "logged").Inc()
	m.logger.InfoContext(ctx, "mail (log only)",
		"to", msg.To,
		"subject", msg.Subject,
		"template", msg.Template,
	)
	return nil
}

func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

const TemplateArticleCompleted = "article_completed"

var completionTmpl = template.Must(template.New(TemplateArticleCompleted).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Great work, {{.Name}}!</h2>
    <p>You finished <strong>{{.ArticleTitle}}</strong> with {{printf "%.0f" .Accuracy}}% accuracy.</p>
    {{if .NextURL}}<p><a href="{{.NextURL}}">Continue to the next article</a></p>{{end}}
  </div>
</body>
</html>`))

type CompletionData struct {
	Name         string
	ArticleTitle string
	Accuracy     float64
	NextURL      string
}

func CompletionMessage(to string, data CompletionData) (Message, error) {
	var buf bytes.Buffer
	if err := completionTmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", TemplateArticleCompleted, err)
	}
	return Message{
		To:       to,
		Subject:  "Article completed: " + data.ArticleTitle,
		Template: TemplateArticleCompleted,
		HTML:     buf.String(),
	}, nil
}
