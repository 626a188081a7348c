package mail

import (
	"context"
	"errors"
	"strings"
	"testing"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSenderWithoutKeyLogs(t *testing.T) {
	sender := NewSender(Config{FromName: "Registration Clerk", FromAddress: "clerk@delphi-council.org"}, zap.NewNop())
	if _, ok := sender.(*LogSender); !ok {
		t.Fatalf("expected log sender, got %T", sender)
	}
	withKey := NewSender(Config{FromAddress: "clerk@delphi-council.org", SendGridAPIKey: "SG.key"}, zap.NewNop())
	if _, ok := withKey.(*SendGridSender); !ok {
		t.Fatalf("expected sendgrid sender, got %T", withKey)
	}
}

func TestLogSenderRecordsMail(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sender := NewLogSender(zap.New(core))

	err := sender.Send(context.Background(), Message{
		ToAddress: "knight@example.org",
		Subject:   "Confirm your registration",
		PlainText: "https://delphi.example.org/confirm/abc",
	})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	entries := logs.FilterMessage("mail not delivered, logging instead").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["to"] != "knight@example.org" {
		t.Fatalf("unexpected recipient %v", entries[0].ContextMap()["to"])
	}
}

func TestLogSenderRequiresRecipient(t *testing.T) {
	err := NewLogSender(nil).Send(context.Background(), Message{Subject: "x"})
	if !errors.Is(err, errMissingRecipient) {
		t.Fatalf("expected missing recipient error, got %v", err)
	}
}

func TestBuildMessageAddsHTMLBody(t *testing.T) {
	from := sgmail.NewEmail("Registration Clerk", "clerk@delphi-council.org")
	payload, err := buildMessage(from, Message{
		ToName:    "Quin Sebastian",
		ToAddress: "quin@example.org",
		Subject:   "Welcome",
		PlainText: "line one\nline two",
	})
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if payload.Subject != "Welcome" || payload.From.Address != "clerk@delphi-council.org" {
		t.Fatalf("unexpected payload header %+v", payload)
	}
	if len(payload.Content) != 2 || payload.Content[1].Value != "<p>line one<br>line two</p>" {
		t.Fatalf("unexpected content %+v", payload.Content)
	}
}

func TestBuildMessageEscapesPlainText(t *testing.T) {
	from := sgmail.NewEmail("Registration Clerk", "clerk@delphi-council.org")
	payload, err := buildMessage(from, Message{
		ToAddress: "quin@example.org",
		Subject:   "Welcome",
		PlainText: "Hello <a href=\"https://evil.example\">Quin</a>,\nconfirm at https://delphi.test/confirm?token=a&b",
	})
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	want := "<p>Hello &lt;a href=&#34;https://evil.example&#34;&gt;Quin&lt;/a&gt;,<br>confirm at https://delphi.test/confirm?token=a&amp;b</p>"
	if payload.Content[1].Value != want {
		t.Fatalf("unexpected html body %q", payload.Content[1].Value)
	}
	if !strings.Contains(payload.Content[0].Value, `<a href="https://evil.example">`) {
		t.Fatalf("expected the plain text to stay unchanged, got %q", payload.Content[0].Value)
	}
}
