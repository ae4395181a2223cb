package booking

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotBooked    SlotStatus = "BOOKED"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusFailed    BookingStatus = "FAILED"
	StatusCancelled BookingStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

const (
	// DefaultTokenAmount is the fixed deposit charged when a booking is created.
	DefaultTokenAmount = 100.0

	// AvgConsultationMinutes drives the wait estimate per person ahead in the queue.
	AvgConsultationMinutes = 10
)

type Doctor struct {
	ID               uuid.UUID
	Name             string
	Specialization   string
	City             string
	ConsultationType string
	ConsultationFee  float64
	Rating           *float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Slot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Status    SlotStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Booking struct {
	ID              uuid.UUID
	SlotID          uuid.UUID
	PatientID       *uuid.UUID
	PatientName     string
	PatientEmail    string
	Reason          *string
	Status          BookingStatus
	PaymentStatus   PaymentStatus
	QueueNumber     int
	AppointmentDate time.Time
	TokenAmount     float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BookingDetail is the hydrated view returned by detail and history reads.
type BookingDetail struct {
	Booking
	Doctor *Doctor
	Slot   *Slot
}

// AppointmentDateOf derives the calendar date a slot's start time falls on.
// That date is the unit of queue partitioning, so it is computed once, in
// UTC, and frozen on the booking at create/reschedule time.
func AppointmentDateOf(start time.Time) time.Time {
	y, m, d := start.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
