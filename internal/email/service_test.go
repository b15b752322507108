package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"lexshelf/api/internal/library"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{name: "empty config", config: Config{}, expected: false},
		{name: "missing host", config: Config{Port: "587", From: "test@example.com"}, expected: false},
		{name: "missing port", config: Config{Host: "smtp.example.com", From: "test@example.com"}, expected: false},
		{name: "missing from", config: Config{Host: "smtp.example.com", Port: "587"}, expected: false},
		{name: "fully configured", config: Config{Host: "smtp.example.com", Port: "587", From: "test@example.com"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestSendRequiresConfiguration(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendHTMLEmail([]string{"a@example.com"}, "s", "t", "<p>h</p>"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendSubmissionNotice(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "library@example.com", FromName: "Library"})
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	svc.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := svc.SendSubmissionNotice("admin@example.com", library.Submission{
		Name:        "Visitor",
		Message:     "Please add the 2025 decree",
		Files:       []library.AttachmentRef{{ID: "u1", Name: "decree.pdf", Size: 42}},
		SubmittedAt: time.Date(2026, 2, 3, 4, 5, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SendSubmissionNotice() error = %v", err)
	}
	if gotAddr != "smtp.example.com:587" || len(gotTo) != 1 || gotTo[0] != "admin@example.com" {
		t.Fatalf("unexpected envelope: %s %v", gotAddr, gotTo)
	}
	for _, want := range []string{
		"From: Library <library@example.com>",
		"Subject: New visitor message from Visitor",
		"Please add the 2025 decree",
		"decree.pdf (42 bytes)",
		"2026-02-03 04:05 UTC",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendPropagatesTransportError(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "library@example.com"})
	svc.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	if err := svc.SendPasswordResetNotice("admin@example.com", time.Now()); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestRenderPasswordResetTemplate(t *testing.T) {
	html, err := renderTemplate(passwordResetEmailTemplate, struct {
		AppName string
		At      time.Time
	}{AppName: "Lexshelf", At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(html, "Lexshelf") || !strings.Contains(html, "2026-01-01 00:00 UTC") {
		t.Errorf("unexpected template output: %s", html)
	}
}
