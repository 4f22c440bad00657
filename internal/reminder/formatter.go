package reminder

import (
	"context"
	"errors"
	"time"

	"ubertool-reminder-dispatch/internal/domain"
	"ubertool-reminder-dispatch/internal/logger"
	"ubertool-reminder-dispatch/internal/repository"
)

// DueDateFormatter renders the earliest outstanding due date of a booking.
type DueDateFormatter struct {
	lines    repository.RentalLineRepository
	statuses []domain.RentalStatus
	loc      *time.Location
	layout   string
}

func NewDueDateFormatter(lines repository.RentalLineRepository, statuses []domain.RentalStatus, loc *time.Location, layout string) *DueDateFormatter {
	return &DueDateFormatter{lines: lines, statuses: statuses, loc: loc, layout: layout}
}

// Format never fails: when the booking has no active line any more, or the lookup
// errors, today's date is used instead.
func (f *DueDateFormatter) Format(ctx context.Context, bookingID int32, today time.Time) string {
	due, err := f.lines.EarliestActiveEndDate(ctx, bookingID, f.statuses)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		logger.Warn("Data anomaly: booking has no active rental lines at send time",
			"booking_id", bookingID)
		return today.In(f.loc).Format(f.layout)
	case err != nil:
		logger.Error("Failed to look up due date, using today", "booking_id", bookingID, "error", err)
		return today.In(f.loc).Format(f.layout)
	}
	return due.In(f.loc).Format(f.layout)
}
