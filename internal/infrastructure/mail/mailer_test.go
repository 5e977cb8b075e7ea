package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/natours/tour-booking/internal/core/domain"
)

func newTestMailer(send func(...*gomail.Message) error) *SMTPMailer {
	m := NewSMTPMailer(Config{Host: "localhost", Port: 2525, From: "Natours <hello@natours.io>", ResetTTL: 10 * time.Minute}, zerolog.Nop())
	m.send = send
	return m
}

func messageText(t *testing.T, msg *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestSMTPMailer_PasswordReset(t *testing.T) {
	var sent []*gomail.Message
	m := newTestMailer(func(msgs ...*gomail.Message) error {
		sent = append(sent, msgs...)
		return nil
	})

	user := &domain.User{ID: "u1", Name: "Jonas Schmedtmann", Email: "jonas@example.com"}
	url := "https://natours.dev/api/v1/users/resetPassword/abc123"
	require.NoError(t, m.SendPasswordReset(context.Background(), user, url))

	require.Len(t, sent, 1)
	assert.Equal(t, []string{"jonas@example.com"}, sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Your password reset token (valid for only 10 minutes)"}, sent[0].GetHeader("Subject"))

	raw := messageText(t, sent[0])
	assert.Contains(t, raw, "Hi Jonas")
	assert.Contains(t, raw, "abc123")
}

func TestSMTPMailer_Welcome(t *testing.T) {
	var sent []*gomail.Message
	m := newTestMailer(func(msgs ...*gomail.Message) error {
		sent = append(sent, msgs...)
		return nil
	})

	user := &domain.User{ID: "u1", Name: "Ana", Email: "ana@example.com"}
	require.NoError(t, m.SendWelcome(context.Background(), user, "https://natours.dev/me"))

	require.Len(t, sent, 1)
	assert.Equal(t, []string{welcomeSubject}, sent[0].GetHeader("Subject"))
	assert.Contains(t, messageText(t, sent[0]), "https://natours.dev/me")
}

func TestSMTPMailer_SendError(t *testing.T) {
	boom := errors.New("smtp down")
	m := newTestMailer(func(...*gomail.Message) error { return boom })

	err := m.SendWelcome(context.Background(), &domain.User{Name: "A", Email: "a@example.com"}, "u")
	assert.ErrorIs(t, err, boom)
}

func TestSMTPMailer_ContextBoundsSend(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m := newTestMailer(func(...*gomail.Message) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.SendPasswordReset(ctx, &domain.User{Name: "A", Email: "a@example.com"}, "u")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRender_EscapesHTML(t *testing.T) {
	html, text, err := render("welcome", templateData{FirstName: "<b>x</b>", URL: "https://example.com"})
	require.NoError(t, err)
	assert.NotContains(t, html, "<b>x</b>")
	assert.True(t, strings.Contains(text, "<b>x</b>"), "plain text is not escaped")
}

func TestFirstName(t *testing.T) {
	assert.Equal(t, "Jonas", FirstName("Jonas Schmedtmann"))
	assert.Equal(t, "Ana", FirstName("  Ana  "))
	assert.Equal(t, "there", FirstName(""))
}

func TestResetMinutes(t *testing.T) {
	assert.Equal(t, 10, resetMinutes(0))
	assert.Equal(t, 15, resetMinutes(15*time.Minute))
	assert.Equal(t, 1, resetMinutes(10*time.Second))
}
