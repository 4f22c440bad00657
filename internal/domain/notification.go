package domain

import (
	"fmt"
	"time"
)

type ReminderType string

const (
	ReminderTypeDueDay  ReminderType = "due_day"
	ReminderTypeOverdue ReminderType = "overdue"
)

type ClaimStatus string

const (
	ClaimStatusClaimed ClaimStatus = "claimed"
	ClaimStatusSent    ClaimStatus = "sent"
	ClaimStatusFailed  ClaimStatus = "failed"
)

// Scope selects which reminder types a run considers.
type Scope string

const (
	ScopeDueToday Scope = "due_today"
	ScopeOverdue  Scope = "overdue"
	ScopeAll      Scope = "all"
)

// ParseScope maps a query value to a Scope. The empty string means ScopeAll.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeDueToday:
		return ScopeDueToday, nil
	case ScopeOverdue:
		return ScopeOverdue, nil
	default:
		return "", fmt.Errorf("invalid scope %q: want due_today, overdue or all", s)
	}
}

func (s Scope) IncludesDueToday() bool { return s == ScopeDueToday || s == ScopeAll }
func (s Scope) IncludesOverdue() bool  { return s == ScopeOverdue || s == ScopeAll }

// DateLayout is the layout of reminder_date values.
const DateLayout = "2006-01-02"

// NaturalKey identifies one unit of reminder work. At most one reminder_logs row
// exists per key, and at most one notification is sent for it.
type NaturalKey struct {
	BookingID      int32
	RecipientEmail string
	ReminderDate   string // YYYY-MM-DD in the business timezone
	Type           ReminderType
}

// ReminderClaim is a row of reminder_logs.
type ReminderClaim struct {
	ID             int64        `json:"id"`
	BookingID      int32        `json:"booking_id"`
	RecipientEmail string       `json:"recipient_email"`
	ReminderDate   string       `json:"reminder_date"`
	Type           ReminderType `json:"type"`
	Status         ClaimStatus  `json:"status"`
	Attempt        int32        `json:"attempt"`
	ClaimedAt      time.Time    `json:"claimed_at"`
	SentAt         *time.Time   `json:"sent_at,omitempty"`
	Error          *string      `json:"error,omitempty"`
}

func (c *ReminderClaim) Key() NaturalKey {
	return NaturalKey{
		BookingID:      c.BookingID,
		RecipientEmail: c.RecipientEmail,
		ReminderDate:   c.ReminderDate,
		Type:           c.Type,
	}
}

// IsSent reports whether the claim has reached its terminal state.
func (c *ReminderClaim) IsSent() bool {
	return c.Status == ClaimStatusSent || c.SentAt != nil
}

// RunResult aggregates the counters of one dispatch invocation.
type RunResult struct {
	Date    string `json:"date"`
	Scope   Scope  `json:"scope"`
	Claimed int    `json:"claimed"`
	Adopted int    `json:"adopted"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}
