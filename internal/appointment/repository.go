package appointment

import (
	"context"
	"errors"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrSlotOccupied    = errors.New("slot already booked")
)

// Repository is the appointment store. Implementations re-read their
// backing storage on every call so concurrent writers are observed.
type Repository interface {
	// Load returns the whole ledger.
	Load(ctx context.Context) (Ledger, error)
	// Day returns one dentist's bookings on one date.
	Day(ctx context.Context, dentist, date string) (Day, error)

	// Insert stores b under k, failing with ErrSlotOccupied if k exists.
	Insert(ctx context.Context, k SlotKey, b Booking) error
	// Remove deletes the booking at k and returns it, or ErrBookingNotFound.
	Remove(ctx context.Context, k SlotKey) (Booking, error)

	// RenameDentist moves every booking of oldName to newName.
	RenameDentist(ctx context.Context, oldName, newName string) error
}
