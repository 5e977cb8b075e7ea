// Package mail renders account emails and delivers them over SMTP.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

const (
	welcomeSubject = "Welcome to the Natours Family!"
	resetSubject   = "Your password reset token (valid for only %d minutes)"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

type templateData struct {
	FirstName    string
	URL          string
	ValidMinutes int
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// ResetTTL is quoted in the reset email.
	ResetTTL time.Duration
}

// SMTPMailer implements ports.Mailer by sending multipart emails over SMTP.
type SMTPMailer struct {
	from     string
	resetTTL time.Duration
	send     func(...*gomail.Message) error
	log      zerolog.Logger
}

var _ ports.Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(cfg Config, log zerolog.Logger) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPMailer{
		from:     cfg.From,
		resetTTL: cfg.ResetTTL,
		send:     d.DialAndSend,
		log:      log,
	}
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, user *domain.User, url string) error {
	return m.deliver(ctx, user, welcomeSubject, "welcome", templateData{FirstName: FirstName(user.Name), URL: url})
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, user *domain.User, url string) error {
	minutes := resetMinutes(m.resetTTL)
	return m.deliver(ctx, user, fmt.Sprintf(resetSubject, minutes), "password_reset",
		templateData{FirstName: FirstName(user.Name), URL: url, ValidMinutes: minutes})
}

// deliver renders the named template pair and sends it. The SMTP exchange
// runs on its own goroutine so ctx can bound the wait.
func (m *SMTPMailer) deliver(ctx context.Context, user *domain.User, subject, tmpl string, data templateData) error {
	msg, err := m.compose(user.Email, subject, tmpl, data)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- m.send(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send %s email: %w", tmpl, err)
		}
		m.log.Info().Str("template", tmpl).Str("user_id", user.ID).Msg("email sent")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send %s email: %w", tmpl, ctx.Err())
	}
}

func (m *SMTPMailer) compose(to, subject, tmpl string, data templateData) (*gomail.Message, error) {
	html, text, err := render(tmpl, data)
	if err != nil {
		return nil, err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)
	return msg, nil
}

func render(tmpl string, data templateData) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&hb, tmpl+".html", data); err != nil {
		return "", "", fmt.Errorf("render %s html: %w", tmpl, err)
	}
	if err := textTemplates.ExecuteTemplate(&tb, tmpl+".txt", data); err != nil {
		return "", "", fmt.Errorf("render %s text: %w", tmpl, err)
	}
	return hb.String(), tb.String(), nil
}

// LogMailer writes links to the log instead of sending email. It is used in
// development when no SMTP host is configured.
type LogMailer struct {
	log zerolog.Logger
}

var _ ports.Mailer = (*LogMailer)(nil)

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendWelcome(_ context.Context, user *domain.User, url string) error {
	m.log.Info().Str("user_id", user.ID).Str("url", url).Msg("welcome email (not sent)")
	return nil
}

func (m *LogMailer) SendPasswordReset(_ context.Context, user *domain.User, url string) error {
	m.log.Info().Str("user_id", user.ID).Str("url", url).Msg("password reset email (not sent)")
	return nil
}

// FirstName returns the first word of a display name.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

func resetMinutes(ttl time.Duration) int {
	if ttl <= 0 {
		return 10
	}
	n := int(ttl / time.Minute)
	if n < 1 {
		n = 1
	}
	return n
}
