package email

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in the Markdown source is escaped (WithUnsafe is not set), so
// names typed by the coach cannot inject markup.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(`# Welcome, {{.Name}}

Your coach has created your account.

- **Email:** {{.Email}}
- **Temporary password:** ` + "`{{.TempPassword}}`" + `

Sign in at [{{.LoginURL}}]({{.LoginURL}}). You will be asked to choose a new password on first access.
`))

var resetTemplate = template.Must(template.New("reset").Parse(`# Password reset

Hi {{.Name}},

someone asked to reset the password of this account. Open the link below to choose a new one:

[Reset your password]({{.ResetURL}})

The link expires in {{.TTL}}. If you did not ask for a reset, ignore this email.
`))

// Mailer composes the application's emails and hands them to a Sender.
type Mailer struct {
	sender  Sender
	replyTo string
	baseURL string
}

func NewMailer(sender Sender, replyTo, appBaseURL string) *Mailer {
	return &Mailer{
		sender:  sender,
		replyTo: replyTo,
		baseURL: strings.TrimRight(appBaseURL, "/"),
	}
}

// SendWelcome delivers first-access credentials to a new client.
func (m *Mailer) SendWelcome(ctx context.Context, to, name, tempPassword string) error {
	body, err := renderMarkdown(welcomeTemplate, map[string]string{
		"Name":         name,
		"Email":        to,
		"TempPassword": tempPassword,
		"LoginURL":     m.baseURL + "/client/login",
	})
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Your account is ready", body)
}

// SendPasswordReset delivers a one-time reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, name, token, ttl string) error {
	body, err := renderMarkdown(resetTemplate, map[string]string{
		"Name":     name,
		"ResetURL": m.baseURL + "/reset-password?token=" + url.QueryEscape(token),
		"TTL":      ttl,
	})
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Reset your password", body)
}

func (m *Mailer) send(ctx context.Context, to, subject, html string) error {
	_, err := m.sender.Send(ctx, SendRequest{
		To:      []string{to},
		Subject: subject,
		HTML:    html,
		ReplyTo: m.replyTo,
	})
	return err
}

func renderMarkdown(t *template.Template, data any) (string, error) {
	var md bytes.Buffer
	if err := t.Execute(&md, data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", t.Name(), err)
	}
	var html bytes.Buffer
	if err := mdRenderer.Convert(md.Bytes(), &html); err != nil {
		return "", fmt.Errorf("render %s markdown: %w", t.Name(), err)
	}
	return html.String(), nil
}
