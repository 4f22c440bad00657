package service

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ubertool-reminder-dispatch/internal/config"
)

func TestNewMailDeliveryService(t *testing.T) {
	cfg := &config.Config{}

	cfg.Mail.Provider = config.MailProviderLog
	svc, err := NewMailDeliveryService(cfg)
	require.NoError(t, err)
	assert.IsType(t, &logMailer{}, svc)

	cfg.Mail.Provider = config.MailProviderSMTP
	cfg.SMTP = config.SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@test.com"}
	svc, err = NewMailDeliveryService(cfg)
	require.NoError(t, err)
	assert.IsType(t, &smtpMailer{}, svc)

	cfg.Mail.Provider = config.MailProviderSendGrid
	svc, err = NewMailDeliveryService(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sendGridMailer{}, svc)

	cfg.Mail.Provider = "fax"
	_, err = NewMailDeliveryService(cfg)
	assert.Error(t, err)
}

func TestLogMailer_AcceptsRecipients(t *testing.T) {
	report, err := NewLogMailer().Send(context.Background(), &Message{To: []string{"a@test.com"}, Subject: "hi"})
	require.NoError(t, err)
	assert.True(t, report.Success())
	assert.Equal(t, []string{"a@test.com"}, report.Accepted)
}

func TestSendGridMailer_Send(t *testing.T) {
	msg := &Message{
		To:       []string{"renter@test.com"},
		Bcc:      []string{"ops@test.com"},
		Subject:  "Due today",
		TextBody: "plain",
		HTMLBody: "<p>html</p>",
	}

	t.Run("Accepted", func(t *testing.T) {
		var captured *mail.SGMailV3
		m := &sendGridMailer{
			from: mail.NewEmail("Ubertool", "noreply@test.com"),
			send: func(ctx context.Context, sg *mail.SGMailV3) (*rest.Response, error) {
				captured = sg
				return &rest.Response{StatusCode: 202}, nil
			},
		}
		report, err := m.Send(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, []string{"renter@test.com", "ops@test.com"}, report.Accepted)

		require.NotNil(t, captured)
		assert.Equal(t, "Due today", captured.Subject)
		require.Len(t, captured.Personalizations, 1)
		assert.Equal(t, "renter@test.com", captured.Personalizations[0].To[0].Address)
		assert.Equal(t, "ops@test.com", captured.Personalizations[0].BCC[0].Address)
		assert.Len(t, captured.Content, 2)
	})

	t.Run("Rejected", func(t *testing.T) {
		m := &sendGridMailer{
			from: mail.NewEmail("Ubertool", "noreply@test.com"),
			send: func(ctx context.Context, sg *mail.SGMailV3) (*rest.Response, error) {
				return &rest.Response{StatusCode: 400, Body: "bad request"}, nil
			},
		}
		report, err := m.Send(context.Background(), msg)
		require.NoError(t, err)
		assert.False(t, report.Success())
		assert.Len(t, report.Rejected, 2)
	})

	t.Run("TransportError", func(t *testing.T) {
		m := &sendGridMailer{
			from: mail.NewEmail("Ubertool", "noreply@test.com"),
			send: func(ctx context.Context, sg *mail.SGMailV3) (*rest.Response, error) {
				return nil, assert.AnError
			},
		}
		report, err := m.Send(context.Background(), msg)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Nil(t, report)
	})
}

func TestSendGridMailer_OverHTTP(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	msg := &Message{To: []string{"renter@test.com"}, Subject: "Due today", TextBody: "plain"}

	t.Run("Accepted", func(t *testing.T) {
		httpmock.Reset()
		var body, auth string
		httpmock.RegisterResponder("POST", "https://api.sendgrid.com/v3/mail/send",
			func(req *http.Request) (*http.Response, error) {
				b, _ := io.ReadAll(req.Body)
				body = string(b)
				auth = req.Header.Get("Authorization")
				return httpmock.NewStringResponse(202, ""), nil
			})

		report, err := NewSendGridMailer("SG.test", "noreply@test.com", "Ubertool").Send(context.Background(), msg)
		require.NoError(t, err)
		assert.True(t, report.Success())
		assert.Equal(t, "Bearer SG.test", auth)
		assert.Contains(t, body, `"subject":"Due today"`)
		assert.Contains(t, body, `"email":"renter@test.com"`)
		assert.Equal(t, 1, httpmock.GetTotalCallCount())
	})

	t.Run("Rejected", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", "https://api.sendgrid.com/v3/mail/send",
			httpmock.NewStringResponder(400, `{"errors":[{"message":"invalid email"}]}`))

		report, err := NewSendGridMailer("SG.test", "noreply@test.com", "Ubertool").Send(context.Background(), msg)
		require.NoError(t, err)
		assert.False(t, report.Success())
		assert.Equal(t, []string{"renter@test.com"}, report.Rejected)
	})
}

func TestDeliveryReport_Success(t *testing.T) {
	var nilReport *DeliveryReport
	assert.False(t, nilReport.Success())
	assert.False(t, (&DeliveryReport{Rejected: []string{"x"}}).Success())
	assert.True(t, (&DeliveryReport{Accepted: []string{"x"}}).Success())
}
