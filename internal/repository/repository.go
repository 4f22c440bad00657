package repository

import (
	"context"
	"errors"
	"time"

	"ubertool-reminder-dispatch/internal/domain"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

type RentalLineRepository interface {
	// ListBookingsDueBetween returns distinct booking ids with an active line ending in [start, end].
	ListBookingsDueBetween(ctx context.Context, start, end time.Time, statuses []domain.RentalStatus) ([]int32, error)
	// ListBookingsDueBefore returns distinct booking ids with an active line ending strictly before t.
	ListBookingsDueBefore(ctx context.Context, t time.Time, statuses []domain.RentalStatus) ([]int32, error)
	// EarliestActiveEndDate returns ErrNotFound when the booking has no active line.
	EarliestActiveEndDate(ctx context.Context, bookingID int32, statuses []domain.RentalStatus) (time.Time, error)
}

type BookingRecipientRepository interface {
	ListByBookingIDs(ctx context.Context, bookingIDs []int32) ([]domain.BookingRecipient, error)
}

type ReminderLogRepository interface {
	// ListSent returns the natural keys already sent on date for the given bookings.
	ListSent(ctx context.Context, date string, bookingIDs []int32) ([]domain.NaturalKey, error)
	// InsertClaim atomically inserts a claimed row unless the natural key exists.
	// inserted is false on conflict; the claim is only populated when inserted.
	InsertClaim(ctx context.Context, claim *domain.ReminderClaim) (inserted bool, err error)
	GetByKey(ctx context.Context, key domain.NaturalKey) (*domain.ReminderClaim, error)
	// Adopt re-claims a failed row, or a claimed row whose claimed_at is before staleBefore,
	// provided its attempt still equals observedAttempt. ok is false when another
	// invocation got there first or the row is not adoptable.
	Adopt(ctx context.Context, id int64, observedAttempt int32, now, staleBefore time.Time) (attempt int32, ok bool, err error)
	// MarkSent moves the row to sent. It is a no-op when the row is already sent.
	MarkSent(ctx context.Context, id int64, sentAt time.Time) (bool, error)
	// MarkFailed records a failed attempt, unless a newer attempt owns the row.
	MarkFailed(ctx context.Context, id int64, attempt int32, reason string) (bool, error)
}
