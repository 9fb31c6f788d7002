package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/pharmadata/pharmadata-backend/pkg/config"
)

func validSMTPConfig() config.SMTPConfig {
	return config.SMTPConfig{
		Host:        "smtp.pharmadata.test",
		Port:        587,
		Username:    "mailer",
		Password:    "s3cret",
		FromAddress: "noreply@pharmadata.test",
	}
}

func TestNew_RequiresHostAndFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected error without smtp host")
	}

	cfg = validSMTPConfig()
	cfg.FromAddress = ""
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected error without from address")
	}
}

func TestSend_BuildsMessage(t *testing.T) {
	m, err := New(validSMTPConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	m.(*smtpMailer).send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotFrom = from
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	err = m.Send(context.Background(), "user@example.com", "Ticket received\r\nX-Evil: 1", "We got your message.")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAddr != "smtp.pharmadata.test:587" {
		t.Fatalf("addr = %q", gotAddr)
	}
	if gotFrom != "noreply@pharmadata.test" {
		t.Fatalf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "user@example.com" {
		t.Fatalf("to = %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Ticket received  X-Evil: 1\r\n") {
		t.Fatalf("header injection not stripped: %q", gotMsg)
	}
	if !strings.HasSuffix(gotMsg, "\r\n\r\nWe got your message.") {
		t.Fatalf("body misplaced: %q", gotMsg)
	}
}

func TestSend_Errors(t *testing.T) {
	m, err := New(validSMTPConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := m.Send(context.Background(), "  ", "s", "b"); err == nil {
		t.Fatal("expected error for empty recipient")
	}

	m.(*smtpMailer).send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	if err := m.Send(context.Background(), "user@example.com", "s", "b"); err == nil {
		t.Fatal("expected transport error to propagate")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, "user@example.com", "s", "b"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
