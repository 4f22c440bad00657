package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ubertool-reminder-dispatch/internal/domain"
	"ubertool-reminder-dispatch/internal/logger"
	"ubertool-reminder-dispatch/internal/repository"
	"ubertool-reminder-dispatch/internal/service"
)

// Dispatcher runs one reminder pass per call to Run. It is safe to call Run
// concurrently, from this process or from other replicas sharing the database.
type Dispatcher struct {
	lines      repository.RentalLineRepository
	recipients repository.BookingRecipientRepository
	logs       repository.ReminderLogRepository
	claims     *ClaimManager
	formatter  *DueDateFormatter
	sender     *Sender
	opts       Options
}

func NewDispatcher(
	lines repository.RentalLineRepository,
	recipients repository.BookingRecipientRepository,
	logs repository.ReminderLogRepository,
	mailer service.MailDeliveryService,
	opts Options,
) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		lines:      lines,
		recipients: recipients,
		logs:       logs,
		claims:     NewClaimManager(logs, opts.ClaimLease, opts.Now),
		formatter:  NewDueDateFormatter(lines, opts.ActiveStatuses, opts.Location, opts.DateFormat),
		sender:     NewSender(mailer, logs, opts.Bcc, opts.Now),
		opts:       opts,
	}
}

type workItem struct {
	key       domain.NaturalKey
	recipient domain.BookingRecipient
}

type tally struct {
	mu     sync.Mutex
	result *domain.RunResult
}

func (t *tally) add(fn func(r *domain.RunResult)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.result)
}

// Run resolves today's candidates for scope and attempts each reminder once.
// Only lookup failures are returned; per-booking failures are recorded on the
// booking's reminder_logs row and counted in the result.
func (d *Dispatcher) Run(ctx context.Context, scope domain.Scope) (*domain.RunResult, error) {
	log := logger.WithRun(uuid.NewString())
	now := d.opts.Now()
	start, end, date := businessDay(now, d.opts.Location)
	result := &domain.RunResult{Date: date, Scope: scope}

	log.Info("Reminder dispatch started", "date", date, "scope", scope)

	cands, err := d.resolveCandidates(ctx, scope, start, end)
	if err != nil {
		log.Error("Reminder dispatch aborted", "error", err)
		return nil, err
	}
	if cands.empty() {
		log.Info("No bookings due", "date", date, "scope", scope)
		return result, nil
	}

	ids := cands.union()
	recipients, err := d.resolveRecipients(ctx, ids)
	if err != nil {
		log.Error("Reminder dispatch aborted", "error", err)
		return nil, err
	}
	sent, err := d.loadSentKeys(ctx, date, ids)
	if err != nil {
		log.Error("Reminder dispatch aborted", "error", err)
		return nil, err
	}

	var items []workItem
	add := func(bookingIDs []int32, typ domain.ReminderType) {
		for _, id := range bookingIDs {
			r, ok := recipients[id]
			if !ok {
				log.Warn("No recipient for booking, skipping", "booking_id", id, "type", typ)
				result.Skipped++
				continue
			}
			items = append(items, workItem{
				key: domain.NaturalKey{
					BookingID:      id,
					RecipientEmail: r.Email,
					ReminderDate:   date,
					Type:           typ,
				},
				recipient: r,
			})
		}
	}
	add(cands.dueToday, domain.ReminderTypeDueDay)
	add(cands.overdue, domain.ReminderTypeOverdue)

	t := &tally{result: result}
	// With one worker, g.Go blocks until the previous item finishes, so items are
	// processed in order.
	var g errgroup.Group
	g.SetLimit(d.opts.Workers)
	for _, item := range items {
		item := item
		g.Go(func() error {
			d.process(ctx, log, item, sent, now, t)
			return nil
		})
	}
	_ = g.Wait()

	log.Info("Reminder dispatch finished",
		"date", date,
		"scope", scope,
		"claimed", result.Claimed,
		"adopted", result.Adopted,
		"sent", result.Sent,
		"failed", result.Failed,
		"skipped", result.Skipped)
	return result, nil
}

func (d *Dispatcher) process(ctx context.Context, log *slog.Logger, item workItem, sent SentSet, now time.Time, t *tally) {
	key := item.key
	outcome, err := d.claims.Claim(ctx, key, sent)
	if err != nil {
		log.Error("Failed to claim reminder", "booking_id", key.BookingID, "type", key.Type, "error", err)
		t.add(func(r *domain.RunResult) { r.Failed++ })
		return
	}
	if outcome.Kind == ClaimSkip {
		log.Debug("Reminder skipped", "booking_id", key.BookingID, "type", key.Type, "reason", outcome.SkipReason)
		t.add(func(r *domain.RunResult) { r.Skipped++ })
		return
	}

	notice := Notice{
		Email:         item.recipient.Email,
		BookingNumber: item.recipient.BookingNumber,
		Type:          key.Type,
		DueDate:       d.formatter.Format(ctx, key.BookingID, now),
		AppURL:        d.opts.AppURL,
	}
	res := d.sender.Send(ctx, outcome, notice)

	t.add(func(r *domain.RunResult) {
		if outcome.Fresh {
			r.Claimed++
		} else {
			r.Adopted++
		}
		if res.Sent {
			r.Sent++
		} else {
			r.Failed++
		}
	})

	if res.Sent {
		log.Info("Reminder sent",
			"booking_id", key.BookingID,
			"booking_number", item.recipient.BookingNumber,
			"type", key.Type,
			"claim_id", outcome.ClaimID,
			"adopted", !outcome.Fresh)
	} else {
		log.Warn("Reminder delivery failed",
			"booking_id", key.BookingID,
			"type", key.Type,
			"claim_id", outcome.ClaimID,
			"reason", res.Reason)
	}
}
