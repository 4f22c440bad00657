// Package reminder sends due-today and overdue rental reminders at most once per
// booking, recipient, business day and reminder type.
//
// The reminder_logs table is the only coordination point between invocations. A unit
// of work is owned either by inserting its row (ON CONFLICT DO NOTHING) or by adopting
// a failed or stale claimed row with a compare-and-set on its attempt counter.
package reminder

import (
	"fmt"
	"time"

	"ubertool-reminder-dispatch/internal/config"
	"ubertool-reminder-dispatch/internal/domain"
)

// Options configures a Dispatcher. Zero values are replaced with defaults.
type Options struct {
	Location       *time.Location
	ActiveStatuses []domain.RentalStatus
	ClaimLease     time.Duration
	Workers        int
	Bcc            []string
	DateFormat     string
	AppURL         string
	Now            func() time.Time
}

func OptionsFromConfig(cfg config.ReminderConfig) Options {
	return Options{
		Location:       cfg.Location(),
		ActiveStatuses: cfg.RentalStatuses(),
		ClaimLease:     cfg.ClaimLease(),
		Workers:        cfg.Workers,
		Bcc:            cfg.Bcc,
		DateFormat:     cfg.DateFormat,
		AppURL:         cfg.AppURL,
	}
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if len(o.ActiveStatuses) == 0 {
		o.ActiveStatuses = domain.DefaultActiveStatuses
	}
	if o.ClaimLease <= 0 {
		o.ClaimLease = 15 * time.Minute
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.DateFormat == "" {
		o.DateFormat = "Monday, January 2, 2006"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ResolutionError aborts a whole run: a candidate, recipient or already-sent lookup
// failed, so the set of bookings to remind is unknown.
type ResolutionError struct {
	Phase string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("reminder dispatch: %s failed: %v", e.Phase, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// businessDay returns the bounds of the calendar day containing now in loc.
// end is the last representable Postgres instant (microsecond precision) of the day.
func businessDay(now time.Time, loc *time.Location) (start, end time.Time, date string) {
	local := now.In(loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end = start.AddDate(0, 0, 1).Add(-time.Microsecond)
	return start, end, start.Format(domain.DateLayout)
}
