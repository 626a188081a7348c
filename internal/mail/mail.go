// Package mail delivers account mails through SendGrid or the log.
package mail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

var errMissingRecipient = errors.New("mail: recipient address required")

// Message is one outgoing mail.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	PlainText string
	HTML      string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// Config selects and configures the sender.
type Config struct {
	FromName       string
	FromAddress    string
	SendGridAPIKey string
}

// NewSender returns a SendGrid sender when an API key is configured and a
// logging sender otherwise.
func NewSender(cfg Config, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.SendGridAPIKey) == "" {
		logger.Warn("no sendgrid api key configured, mails are only logged")
		return &LogSender{logger: logger}
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		logger: logger,
	}
}

// SendGridSender sends through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
	logger *zap.Logger
}

func (s *SendGridSender) Send(ctx context.Context, message Message) error {
	payload, err := buildMessage(s.from, message)
	if err != nil {
		return err
	}
	response, err := s.client.SendWithContext(ctx, payload)
	if err != nil {
		s.logger.Error("sendgrid delivery failed", zap.String("to", message.ToAddress), zap.Error(err))
		return fmt.Errorf("mail: send: %w", err)
	}
	if response.StatusCode >= 300 {
		s.logger.Error("sendgrid rejected mail",
			zap.String("to", message.ToAddress),
			zap.Int("status", response.StatusCode),
			zap.String("body", response.Body))
		return fmt.Errorf("mail: sendgrid status %d", response.StatusCode)
	}
	s.logger.Info("mail sent", zap.String("to", message.ToAddress), zap.String("subject", message.Subject))
	return nil
}

func buildMessage(from *sgmail.Email, message Message) (*sgmail.SGMailV3, error) {
	if strings.TrimSpace(message.ToAddress) == "" {
		return nil, errMissingRecipient
	}
	body := message.HTML
	if body == "" {
		body = "<p>" + strings.ReplaceAll(html.EscapeString(message.PlainText), "\n", "<br>") + "</p>"
	}
	to := sgmail.NewEmail(message.ToName, message.ToAddress)
	return sgmail.NewSingleEmail(from, message.Subject, to, message.PlainText, body), nil
}

// LogSender writes mails to the log. Used when no mail provider is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, message Message) error {
	if strings.TrimSpace(message.ToAddress) == "" {
		return errMissingRecipient
	}
	s.logger.Info("mail not delivered, logging instead",
		zap.String("to", message.ToAddress),
		zap.String("subject", message.Subject),
		zap.String("text", message.PlainText))
	return nil
}
