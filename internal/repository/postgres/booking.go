package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"ubertool-reminder-dispatch/internal/domain"
	"ubertool-reminder-dispatch/internal/logger"
	"ubertool-reminder-dispatch/internal/repository"
)

type bookingRecipientRepository struct {
	db *sql.DB
}

func NewBookingRecipientRepository(db *sql.DB) repository.BookingRecipientRepository {
	return &bookingRecipientRepository{db: db}
}

func (r *bookingRecipientRepository) ListByBookingIDs(ctx context.Context, bookingIDs []int32) ([]domain.BookingRecipient, error) {
	if len(bookingIDs) == 0 {
		return nil, nil
	}
	query := `SELECT booking_id, booking_number, email FROM booking_recipients WHERE booking_id = ANY($1)`
	logger.DatabaseCall("SELECT", "booking_recipients", "count", len(bookingIDs))

	rows, err := r.db.QueryContext(ctx, query, pq.Array(bookingIDs))
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.BookingRecipient
	for rows.Next() {
		var b domain.BookingRecipient
		var email sql.NullString
		if err := rows.Scan(&b.BookingID, &b.BookingNumber, &email); err != nil {
			return nil, err
		}
		b.Email = email.String
		out = append(out, b)
	}
	err = rows.Err()
	logger.DatabaseResult("SELECT", int64(len(out)), err)
	return out, err
}
