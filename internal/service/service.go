package service

import (
	"context"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	To       []string
	Bcc      []string
	Subject  string
	TextBody string
	HTMLBody string
}

// DeliveryReport lists which addresses the provider accepted.
type DeliveryReport struct {
	Accepted []string
	Rejected []string
}

// Success reports whether at least one recipient was accepted.
func (r *DeliveryReport) Success() bool {
	return r != nil && len(r.Accepted) > 0
}

// MailDeliveryService delivers a rendered message. An error means the transport failed;
// a report with no accepted recipients means the provider refused every address.
type MailDeliveryService interface {
	Send(ctx context.Context, msg *Message) (*DeliveryReport, error)
}
