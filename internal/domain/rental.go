package domain

import "time"

type RentalStatus string

const (
	RentalStatusPending   RentalStatus = "PENDING"
	RentalStatusConfirmed RentalStatus = "CONFIRMED"
	RentalStatusPickedUp  RentalStatus = "PICKED_UP"
	RentalStatusReturned  RentalStatus = "RETURNED"
	RentalStatusCancelled RentalStatus = "CANCELLED"
)

// DefaultActiveStatuses are the rental line statuses that still owe a return.
var DefaultActiveStatuses = []RentalStatus{RentalStatusConfirmed, RentalStatusPickedUp}

// RentalLine is one rented item of a booking. Owned by the booking service; read-only here.
type RentalLine struct {
	BookingID int32        `json:"booking_id"`
	ItemID    int32        `json:"item_id"`
	Status    RentalStatus `json:"status"`
	EndDate   time.Time    `json:"end_date"`
}

// BookingRecipient is a row of the booking_recipients view.
type BookingRecipient struct {
	BookingID     int32  `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	Email         string `json:"email"`
}
