// Package email sends admin notifications via SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"lexshelf/api/internal/library"
)

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	return s.config.From
}

// SendHTMLEmail sends an HTML email with a plain text alternative.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	msg := buildMessage(s.fromHeader(), to, subject, textBody, htmlBody)
	if err := s.send(s.server, s.auth, s.config.From, to, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, textBody, htmlBody string) []byte {
	boundary := "boundary-lexshelf"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes()
}

type SubmissionData struct {
	AppName     string
	Name        string
	Message     string
	Files       []library.AttachmentRef
	SubmittedAt time.Time
}

// SendSubmissionNotice tells the admin that a visitor left a message.
func (s *Service) SendSubmissionNotice(to string, sub library.Submission) error {
	data := SubmissionData{
		AppName:     "Lexshelf",
		Name:        sub.Name,
		Message:     sub.Message,
		Files:       sub.Files,
		SubmittedAt: sub.SubmittedAt,
	}
	html, err := renderTemplate(submissionEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render submission template: %w", err)
	}
	text := fmt.Sprintf("New message from %s (%d files):\n\n%s", sub.Name, len(sub.Files), sub.Message)
	return s.SendHTMLEmail([]string{to}, "New visitor message from "+sub.Name, text, html)
}

// SendPasswordResetNotice tells the admin that the credential was cleared.
func (s *Service) SendPasswordResetNotice(to string, at time.Time) error {
	html, err := renderTemplate(passwordResetEmailTemplate, struct {
		AppName string
		At      time.Time
	}{AppName: "Lexshelf", At: at})
	if err != nil {
		return fmt.Errorf("render password reset template: %w", err)
	}
	text := "The admin password was reset at " + at.Format(time.RFC1123) + ". Set a new one at the next login."
	return s.SendHTMLEmail([]string{to}, "Admin password reset", text, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const submissionEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New message on {{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #d4af37; padding-bottom: 10px; margin-bottom: 20px; }
        .message { background: #f7f7f7; padding: 12px; border-radius: 4px; white-space: pre-wrap; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>New message from {{.Name}}</h2>

    {{if .Message}}<div class="message">{{.Message}}</div>{{end}}

    {{if .Files}}
    <p>Attached files:</p>
    <ul>
    {{range .Files}}<li>{{.Name}} ({{.Size}} bytes)</li>
    {{end}}
    </ul>
    {{end}}

    <div class="footer">
        <p>Received {{.SubmittedAt.Format "2006-01-02 15:04 MST"}}. Open the admin inbox to download attachments.</p>
    </div>
</body>
</html>`

const passwordResetEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}} admin password reset</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .warning { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
    </style>
</head>
<body>
    <h1>{{.AppName}}</h1>
    <div class="warning">
        <strong>The admin password was reset</strong> on {{.At.Format "2006-01-02 15:04 MST"}}.
        All admin sessions were signed out. The next login sets a new password.
    </div>
</body>
</html>`
