package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ubertool-reminder-dispatch/internal/domain"
	"ubertool-reminder-dispatch/internal/repository"
)

type ClaimKind int

const (
	ClaimSkip ClaimKind = iota
	ClaimOwned
)

const (
	skipAlreadySent = "already_sent"
	skipSentByPeer  = "sent_by_peer"
	skipInFlight    = "in_flight"
)

// ClaimOutcome is the result of trying to reserve one unit of work.
type ClaimOutcome struct {
	Kind    ClaimKind
	ClaimID int64
	Attempt int32
	// Fresh is true when this invocation inserted the row, false when it adopted one.
	Fresh      bool
	SkipReason string
}

func skip(reason string) ClaimOutcome {
	return ClaimOutcome{Kind: ClaimSkip, SkipReason: reason}
}

// SentSet holds the natural keys already sent today, loaded once per run.
type SentSet map[domain.NaturalKey]struct{}

func (s SentSet) Has(k domain.NaturalKey) bool {
	_, ok := s[k]
	return ok
}

type ClaimManager struct {
	logs  repository.ReminderLogRepository
	lease time.Duration
	now   func() time.Time
}

func NewClaimManager(logs repository.ReminderLogRepository, lease time.Duration, now func() time.Time) *ClaimManager {
	return &ClaimManager{logs: logs, lease: lease, now: now}
}

// Claim reserves key for this invocation. It only returns ClaimOwned when this caller
// created the row or won the compare-and-set that adopted it, so no two invocations
// hold the same attempt at once. A claimed row younger than the lease belongs to a
// live invocation and is skipped.
func (m *ClaimManager) Claim(ctx context.Context, key domain.NaturalKey, sent SentSet) (ClaimOutcome, error) {
	if sent.Has(key) {
		return skip(skipAlreadySent), nil
	}

	now := m.now()
	claim := &domain.ReminderClaim{
		BookingID:      key.BookingID,
		RecipientEmail: key.RecipientEmail,
		ReminderDate:   key.ReminderDate,
		Type:           key.Type,
		ClaimedAt:      now,
	}
	inserted, err := m.logs.InsertClaim(ctx, claim)
	if err != nil {
		return ClaimOutcome{}, fmt.Errorf("insert claim: %w", err)
	}
	if inserted {
		return ClaimOutcome{Kind: ClaimOwned, ClaimID: claim.ID, Attempt: claim.Attempt, Fresh: true}, nil
	}

	existing, err := m.logs.GetByKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return ClaimOutcome{}, fmt.Errorf("claim conflict for booking %d but no row found", key.BookingID)
	}
	if err != nil {
		return ClaimOutcome{}, fmt.Errorf("read claim: %w", err)
	}
	if existing.IsSent() {
		return skip(skipSentByPeer), nil
	}

	attempt, ok, err := m.logs.Adopt(ctx, existing.ID, existing.Attempt, now, now.Add(-m.lease))
	if err != nil {
		return ClaimOutcome{}, fmt.Errorf("adopt claim %d: %w", existing.ID, err)
	}
	if !ok {
		return skip(skipInFlight), nil
	}
	return ClaimOutcome{Kind: ClaimOwned, ClaimID: existing.ID, Attempt: attempt}, nil
}
