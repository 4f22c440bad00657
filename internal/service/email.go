package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"ubertool-reminder-dispatch/internal/config"
	"ubertool-reminder-dispatch/internal/logger"
)

// NewMailDeliveryService builds the provider selected by cfg.Mail.Provider.
func NewMailDeliveryService(cfg *config.Config) (MailDeliveryService, error) {
	switch cfg.Mail.Provider {
	case config.MailProviderSMTP:
		return NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From, cfg.Mail.FromName), nil
	case config.MailProviderSendGrid:
		return NewSendGridMailer(cfg.SendGrid.APIKey, cfg.SendGrid.From, cfg.Mail.FromName), nil
	case config.MailProviderLog:
		return NewLogMailer(), nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", cfg.Mail.Provider)
	}
}

type smtpMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPMailer(host string, port int, username, password, from, fromName string) MailDeliveryService {
	return &smtpMailer{
		dialer:   gomail.NewDialer(host, port, username, password),
		from:     from,
		fromName: fromName,
	}
}

func (s *smtpMailer) Send(ctx context.Context, msg *Message) (*DeliveryReport, error) {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", msg.To...)
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", msg.Bcc...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	logger.ExternalServiceCall("smtp", "DialAndSend", "to", strings.Join(msg.To, ","))
	err := s.dialer.DialAndSend(m)
	logger.ExternalServiceResult("smtp", "DialAndSend", err)
	if err != nil {
		return nil, fmt.Errorf("failed to send email via gomail: %w", err)
	}

	// SMTP accepted the envelope for every recipient once DialAndSend returns.
	return &DeliveryReport{Accepted: append(append([]string{}, msg.To...), msg.Bcc...)}, nil
}

type sendGridMailer struct {
	from *mail.Email
	send func(ctx context.Context, m *mail.SGMailV3) (*rest.Response, error)
}

func NewSendGridMailer(apiKey, fromEmail, fromName string) MailDeliveryService {
	client := sendgrid.NewSendClient(apiKey)
	return &sendGridMailer{
		from: mail.NewEmail(fromName, fromEmail),
		send: client.SendWithContext,
	}
}

func (s *sendGridMailer) buildMessage(msg *Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(mail.NewEmail("", to))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(mail.NewEmail("", bcc))
	}
	m.AddPersonalizations(p)

	m.AddContent(mail.NewContent("text/plain", msg.TextBody))
	if msg.HTMLBody != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTMLBody))
	}
	return m
}

func (s *sendGridMailer) Send(ctx context.Context, msg *Message) (*DeliveryReport, error) {
	logger.ExternalServiceCall("sendgrid", "Send", "to", strings.Join(msg.To, ","))
	resp, err := s.send(ctx, s.buildMessage(msg))
	logger.ExternalServiceResult("sendgrid", "Send", err)
	if err != nil {
		return nil, fmt.Errorf("failed to send email via sendgrid: %w", err)
	}

	recipients := append(append([]string{}, msg.To...), msg.Bcc...)
	if resp.StatusCode >= 400 {
		logger.Warn("SendGrid rejected message", "status", resp.StatusCode, "body", resp.Body)
		return &DeliveryReport{Rejected: recipients}, nil
	}
	return &DeliveryReport{Accepted: recipients}, nil
}

// logMailer accepts every message and only logs it. Used for local development.
type logMailer struct{}

func NewLogMailer() MailDeliveryService {
	return &logMailer{}
}

func (l *logMailer) Send(ctx context.Context, msg *Message) (*DeliveryReport, error) {
	logger.InfoContext(ctx, "Mail (log provider)",
		"to", strings.Join(msg.To, ","),
		"bcc", strings.Join(msg.Bcc, ","),
		"subject", msg.Subject)
	logger.Debug("Mail body", "text", msg.TextBody)
	return &DeliveryReport{Accepted: append([]string{}, msg.To...)}, nil
}
