package postgres

import (
	"database/sql"

	_ "github.com/lib/pq"

	"ubertool-reminder-dispatch/internal/repository"
)

type Store struct {
	db *sql.DB
	repository.RentalLineRepository
	repository.BookingRecipientRepository
	repository.ReminderLogRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                         db,
		RentalLineRepository:       NewRentalLineRepository(db),
		BookingRecipientRepository: NewBookingRecipientRepository(db),
		ReminderLogRepository:      NewReminderLogRepository(db),
	}
}

func (s *Store) DB() *sql.DB {
	return s.db
}
