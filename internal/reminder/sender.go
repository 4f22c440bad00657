package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ubertool-reminder-dispatch/internal/logger"
	"ubertool-reminder-dispatch/internal/repository"
	"ubertool-reminder-dispatch/internal/service"
)

// SendResult is the outcome of one owned delivery attempt.
type SendResult struct {
	Sent   bool
	Reason string // set when Sent is false
}

// Sender delivers an owned reminder and records the outcome on its claim row.
type Sender struct {
	mailer service.MailDeliveryService
	logs   repository.ReminderLogRepository
	bcc    []string
	now    func() time.Time
}

func NewSender(mailer service.MailDeliveryService, logs repository.ReminderLogRepository, bcc []string, now func() time.Time) *Sender {
	return &Sender{mailer: mailer, logs: logs, bcc: bcc, now: now}
}

// Send never returns an error: failures are written to the claim row and reported
// in the result so the caller can move on to the next booking.
func (s *Sender) Send(ctx context.Context, claim ClaimOutcome, n Notice) SendResult {
	msg, err := Render(n, s.bcc)
	if err != nil {
		return s.fail(ctx, claim, err.Error())
	}

	report, err := s.mailer.Send(ctx, msg)
	if err != nil {
		return s.fail(ctx, claim, err.Error())
	}
	if !report.Success() {
		reason := "no recipients accepted"
		if len(report.Rejected) > 0 {
			reason = fmt.Sprintf("rejected: %s", strings.Join(report.Rejected, ", "))
		}
		return s.fail(ctx, claim, reason)
	}

	ok, err := s.logs.MarkSent(ctx, claim.ClaimID, s.now())
	if err != nil {
		// The mail went out; a later run will see the row as claimed and may resend
		// once the lease expires.
		logger.Error("Failed to record sent reminder", "claim_id", claim.ClaimID, "error", err)
	} else if !ok {
		logger.Warn("Reminder row was already marked sent", "claim_id", claim.ClaimID)
	}
	return SendResult{Sent: true}
}

func (s *Sender) fail(ctx context.Context, claim ClaimOutcome, reason string) SendResult {
	ok, err := s.logs.MarkFailed(ctx, claim.ClaimID, claim.Attempt, reason)
	if err != nil {
		logger.Error("Failed to record failed reminder", "claim_id", claim.ClaimID, "reason", reason, "error", err)
	} else if !ok {
		logger.Warn("Reminder claim was taken over before failure was recorded",
			"claim_id", claim.ClaimID, "attempt", claim.Attempt)
	}
	return SendResult{Reason: reason}
}
