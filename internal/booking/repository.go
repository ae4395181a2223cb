package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrBookingNotFound = errors.New("booking not found")

	ErrSlotDoctorMismatch = errors.New("slot does not belong to this doctor")
	ErrSlotUnavailable    = errors.New("slot is not available")
	ErrDuplicateSlot      = errors.New("slot with this time window already exists for doctor")

	ErrBookingNotPending       = errors.New("booking is not in pending state")
	ErrBookingAlreadyCancelled = errors.New("booking is already cancelled")
	ErrBookingCancelled        = errors.New("cannot reschedule a cancelled booking")
	ErrCrossDoctorReschedule   = errors.New("reschedule allowed only within the same doctor")
)

// Store contains the DB reads and writes the service composes into
// operations. Methods named *ForUpdate take an exclusive row lock that
// lives until the enclosing transaction ends; they are only meaningful
// inside InTx.
type Store interface {
	CreateDoctor(ctx context.Context, d *Doctor) error
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)

	CreateSlot(ctx context.Context, s *Slot) error
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListAvailableSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error)
	SetSlotStatus(ctx context.Context, id uuid.UUID, status SlotStatus) error

	InsertBooking(ctx context.Context, b *Booking) error
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, status BookingStatus, payment PaymentStatus) (*Booking, error)
	RebindBookingSlot(ctx context.Context, id, slotID uuid.UUID, date time.Time, queueNumber int) (*Booking, error)

	// CountActiveBookings counts non-cancelled bookings for a doctor on a
	// given appointment date. exclude skips one booking ID (the one being
	// rescheduled) so it does not count itself.
	CountActiveBookings(ctx context.Context, doctorID uuid.UUID, date time.Time, exclude *uuid.UUID) (int, error)

	// ExpireStaleBookings fails every PENDING/PENDING booking created
	// before cutoff and frees its slot. Returns how many were expired.
	ExpireStaleBookings(ctx context.Context, cutoff time.Time) (int64, error)

	GetBookingDetail(ctx context.Context, id uuid.UUID) (*BookingDetail, error)
	ListBookingsByEmail(ctx context.Context, email string) ([]BookingDetail, error)
	ListBookingsForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Booking, error)
}

// Repository is a Store that can also run a function inside a single
// transaction. Every read-then-write sequence in the service goes through
// InTx so the row locks taken by *ForUpdate reads hold until commit.
type Repository interface {
	Store

	InTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}
