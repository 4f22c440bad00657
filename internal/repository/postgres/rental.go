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

type rentalLineRepository struct {
	db *sql.DB
}

func NewRentalLineRepository(db *sql.DB) repository.RentalLineRepository {
	return &rentalLineRepository{db: db}
}

func statusArray(statuses []domain.RentalStatus) interface{} {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}

func (r *rentalLineRepository) ListBookingsDueBetween(ctx context.Context, start, end time.Time, statuses []domain.RentalStatus) ([]int32, error) {
	query := `SELECT DISTINCT booking_id FROM rental_lines
	          WHERE status = ANY($1) AND end_date >= $2 AND end_date <= $3
	          ORDER BY booking_id`
	logger.DatabaseCall("SELECT", "rental_lines", "start", start, "end", end)
	ids, err := r.queryIDs(ctx, query, statusArray(statuses), start, end)
	logger.DatabaseResult("SELECT", int64(len(ids)), err)
	return ids, err
}

func (r *rentalLineRepository) ListBookingsDueBefore(ctx context.Context, t time.Time, statuses []domain.RentalStatus) ([]int32, error) {
	query := `SELECT DISTINCT booking_id FROM rental_lines
	          WHERE status = ANY($1) AND end_date < $2
	          ORDER BY booking_id`
	logger.DatabaseCall("SELECT", "rental_lines", "before", t)
	ids, err := r.queryIDs(ctx, query, statusArray(statuses), t)
	logger.DatabaseResult("SELECT", int64(len(ids)), err)
	return ids, err
}

func (r *rentalLineRepository) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int32, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *rentalLineRepository) EarliestActiveEndDate(ctx context.Context, bookingID int32, statuses []domain.RentalStatus) (time.Time, error) {
	query := `SELECT end_date FROM rental_lines
	          WHERE booking_id = $1 AND status = ANY($2)
	          ORDER BY end_date ASC LIMIT 1`
	var endDate time.Time
	err := r.db.QueryRowContext(ctx, query, bookingID, statusArray(statuses)).Scan(&endDate)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, repository.ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return endDate, nil
}
