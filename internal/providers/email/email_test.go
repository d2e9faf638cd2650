package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/smallbiznis/identity/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderInviteMember(t *testing.T) {
	subject, body, err := Render(TemplateInviteMember, map[string]interface{}{
		"org_name":   "Acme <Labs>",
		"role_name":  "Member",
		"accept_url": "https://app.example.com/invitations/accept?token=abc",
		"expires_at": "2026-03-09",
	})
	require.NoError(t, err)
	assert.Equal(t, "You're invited to join Acme <Labs>", subject)
	assert.Contains(t, body, "Acme &lt;Labs&gt;")
	assert.Contains(t, body, "token=abc")

	subject, _, err = Render(TemplateInviteMember, map[string]interface{}{"subject": "Join us"})
	require.NoError(t, err)
	assert.Equal(t, "Join us", subject)

	_, _, err = Render("missing", nil)
	assert.Error(t, err)
}

func TestSMTPSendComposesMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 2525, From: "no-reply@example.com"})
	var gotAddr string
	var gotAuth smtp.Auth
	var gotMsg string
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotMsg = addr, a, string(msg)
		assert.Equal(t, "no-reply@example.com", from)
		assert.Equal(t, []string{"jane@example.com"}, to)
		return nil
	}

	require.NoError(t, p.Send(context.Background(), Message{
		To:      []string{"jane@example.com"},
		Subject: "Hi\r\nBcc: evil",
		HTML:    "<p>x</p>",
	}))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Nil(t, gotAuth)
	assert.Contains(t, gotMsg, "Subject: HiBcc: evil\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\n<p>x</p>"))

	assert.ErrorIs(t, p.Send(context.Background(), Message{To: []string{" "}, Subject: "s"}), ErrNoRecipients)
}

func TestRenderMessage(t *testing.T) {
	msg, err := RenderMessage([]string{"jane@example.com"}, TemplateInviteMember, map[string]interface{}{"org_name": "Acme"})
	require.NoError(t, err)
	assert.Equal(t, []string{"jane@example.com"}, msg.To)
	assert.Equal(t, "You're invited to join Acme", msg.Subject)
	assert.Contains(t, msg.HTML, "Acme")

	noop := &NoOpProvider{}
	assert.NoError(t, noop.Send(context.Background(), msg))
	assert.ErrorIs(t, noop.Send(context.Background(), Message{}), ErrNoRecipients)
}

func TestNewFromConfig(t *testing.T) {
	assert.IsType(t, &NoOpProvider{}, NewFromConfig(config.Config{}, zap.NewNop()))
	assert.IsType(t, &SMTPProvider{}, NewFromConfig(config.Config{Email: config.EmailConfig{Enabled: true}}, zap.NewNop()))
}
