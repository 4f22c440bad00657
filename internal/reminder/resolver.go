package reminder

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"ubertool-reminder-dispatch/internal/domain"
)

type candidates struct {
	dueToday []int32
	overdue  []int32
}

func (c candidates) empty() bool {
	return len(c.dueToday) == 0 && len(c.overdue) == 0
}

// union returns the distinct booking ids of both sets, ascending.
func (c candidates) union() []int32 {
	seen := make(map[int32]struct{}, len(c.dueToday)+len(c.overdue))
	var ids []int32
	for _, set := range [][]int32{c.dueToday, c.overdue} {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func dedupe(ids []int32) []int32 {
	seen := make(map[int32]struct{}, len(ids))
	out := make([]int32, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// resolveCandidates runs the due-today and overdue lookups concurrently.
// The lookup for a type outside scope is not issued.
func (d *Dispatcher) resolveCandidates(ctx context.Context, scope domain.Scope, start, end time.Time) (candidates, error) {
	var c candidates
	g, gctx := errgroup.WithContext(ctx)

	if scope.IncludesDueToday() {
		g.Go(func() error {
			ids, err := d.lines.ListBookingsDueBetween(gctx, start, end, d.opts.ActiveStatuses)
			if err != nil {
				return &ResolutionError{Phase: "due-today lookup", Err: err}
			}
			c.dueToday = dedupe(ids)
			return nil
		})
	}
	if scope.IncludesOverdue() {
		g.Go(func() error {
			ids, err := d.lines.ListBookingsDueBefore(gctx, start, d.opts.ActiveStatuses)
			if err != nil {
				return &ResolutionError{Phase: "overdue lookup", Err: err}
			}
			c.overdue = dedupe(ids)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return candidates{}, err
	}
	return c, nil
}

// resolveRecipients maps booking ids to recipients. Bookings without a usable email
// are absent from the result.
func (d *Dispatcher) resolveRecipients(ctx context.Context, ids []int32) (map[int32]domain.BookingRecipient, error) {
	rows, err := d.recipients.ListByBookingIDs(ctx, ids)
	if err != nil {
		return nil, &ResolutionError{Phase: "recipient lookup", Err: err}
	}
	out := make(map[int32]domain.BookingRecipient, len(rows))
	for _, r := range rows {
		if r.Email == "" {
			continue
		}
		out[r.BookingID] = r
	}
	return out, nil
}

func (d *Dispatcher) loadSentKeys(ctx context.Context, date string, ids []int32) (SentSet, error) {
	keys, err := d.logs.ListSent(ctx, date, ids)
	if err != nil {
		return nil, &ResolutionError{Phase: "already-sent lookup", Err: err}
	}
	set := make(SentSet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}
