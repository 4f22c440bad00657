package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"ubertool-reminder-dispatch/internal/domain"
	"ubertool-reminder-dispatch/internal/logger"
	"ubertool-reminder-dispatch/internal/repository"
)

type reminderLogRepository struct {
	db *sql.DB
}

func NewReminderLogRepository(db *sql.DB) repository.ReminderLogRepository {
	return &reminderLogRepository{db: db}
}

func (r *reminderLogRepository) ListSent(ctx context.Context, date string, bookingIDs []int32) ([]domain.NaturalKey, error) {
	if len(bookingIDs) == 0 {
		return nil, nil
	}
	query := `SELECT booking_id, recipient_email, to_char(reminder_date, 'YYYY-MM-DD'), type
	          FROM reminder_logs
	          WHERE reminder_date = $1::date AND status = 'sent' AND booking_id = ANY($2)`
	logger.DatabaseCall("SELECT", "reminder_logs", "date", date, "count", len(bookingIDs))

	rows, err := r.db.QueryContext(ctx, query, date, pq.Array(bookingIDs))
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, err
	}
	defer rows.Close()

	var keys []domain.NaturalKey
	for rows.Next() {
		var k domain.NaturalKey
		if err := rows.Scan(&k.BookingID, &k.RecipientEmail, &k.ReminderDate, &k.Type); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	err = rows.Err()
	logger.DatabaseResult("SELECT", int64(len(keys)), err)
	return keys, err
}

func (r *reminderLogRepository) InsertClaim(ctx context.Context, c *domain.ReminderClaim) (bool, error) {
	logger.EnterMethod("reminderLogRepository.InsertClaim", "bookingID", c.BookingID, "type", c.Type, "date", c.ReminderDate)

	// ON CONFLICT DO NOTHING returns no row when the natural key already exists.
	query := `INSERT INTO reminder_logs (booking_id, recipient_email, reminder_date, type, status, attempt, claimed_at)
	          VALUES ($1, $2, $3::date, $4, 'claimed', 1, $5)
	          ON CONFLICT (booking_id, recipient_email, reminder_date, type) DO NOTHING
	          RETURNING id, attempt`
	err := r.db.QueryRowContext(ctx, query, c.BookingID, c.RecipientEmail, c.ReminderDate, c.Type, c.ClaimedAt).Scan(&c.ID, &c.Attempt)
	if errors.Is(err, sql.ErrNoRows) {
		logger.ExitMethod("reminderLogRepository.InsertClaim", "inserted", false)
		return false, nil
	}
	if err != nil {
		logger.ExitMethodWithError("reminderLogRepository.InsertClaim", err, "bookingID", c.BookingID)
		return false, err
	}
	c.Status = domain.ClaimStatusClaimed
	logger.ExitMethod("reminderLogRepository.InsertClaim", "inserted", true, "claimID", c.ID)
	return true, nil
}

func (r *reminderLogRepository) GetByKey(ctx context.Context, key domain.NaturalKey) (*domain.ReminderClaim, error) {
	query := `SELECT id, booking_id, recipient_email, to_char(reminder_date, 'YYYY-MM-DD'), type, status, attempt, claimed_at, sent_at, error
	          FROM reminder_logs
	          WHERE booking_id = $1 AND recipient_email = $2 AND reminder_date = $3::date AND type = $4`
	c := &domain.ReminderClaim{}
	var sentAt sql.NullTime
	var errMsg sql.NullString
	err := r.db.QueryRowContext(ctx, query, key.BookingID, key.RecipientEmail, key.ReminderDate, key.Type).Scan(
		&c.ID, &c.BookingID, &c.RecipientEmail, &c.ReminderDate, &c.Type, &c.Status, &c.Attempt, &c.ClaimedAt, &sentAt, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sentAt.Valid {
		t := sentAt.Time
		c.SentAt = &t
	}
	if errMsg.Valid {
		s := errMsg.String
		c.Error = &s
	}
	return c, nil
}

func (r *reminderLogRepository) Adopt(ctx context.Context, id int64, observedAttempt int32, now, staleBefore time.Time) (int32, bool, error) {
	query := `UPDATE reminder_logs
	          SET status = 'claimed', claimed_at = $2, attempt = attempt + 1, error = NULL
	          WHERE id = $1 AND attempt = $3 AND sent_at IS NULL
	            AND (status = 'failed' OR (status = 'claimed' AND claimed_at < $4))
	          RETURNING attempt`
	logger.DatabaseCall("UPDATE", "reminder_logs", "claimID", id, "observedAttempt", observedAttempt)

	var attempt int32
	err := r.db.QueryRowContext(ctx, query, id, now, observedAttempt, staleBefore).Scan(&attempt)
	if errors.Is(err, sql.ErrNoRows) {
		logger.DatabaseResult("UPDATE", 0, nil)
		return 0, false, nil
	}
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return 0, false, err
	}
	logger.DatabaseResult("UPDATE", 1, nil, "attempt", attempt)
	return attempt, true, nil
}

func (r *reminderLogRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) (bool, error) {
	query := `UPDATE reminder_logs SET status = 'sent', sent_at = $2, error = NULL WHERE id = $1 AND sent_at IS NULL`
	return r.execOne(ctx, query, id, sentAt)
}

func (r *reminderLogRepository) MarkFailed(ctx context.Context, id int64, attempt int32, reason string) (bool, error) {
	query := `UPDATE reminder_logs SET status = 'failed', error = $3 WHERE id = $1 AND attempt = $2 AND sent_at IS NULL`
	return r.execOne(ctx, query, id, attempt, reason)
}

func (r *reminderLogRepository) execOne(ctx context.Context, query string, args ...interface{}) (bool, error) {
	logger.DatabaseCall("UPDATE", "reminder_logs", "claimID", args[0])
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return false, err
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
