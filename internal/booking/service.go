package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config carries the service's two policy knobs.
type Config struct {
	// Staleness is how long an unpaid PENDING booking may sit before the
	// sweep auto-fails it and frees its slot.
	Staleness time.Duration

	// TokenAmount is the fixed deposit recorded on every new booking.
	TokenAmount float64
}

const DefaultStaleness = 2 * time.Minute

// Service is the booking lifecycle engine. Every multi-step state change
// runs inside a single repository transaction with an exclusive lock on
// the row being read-then-written: the slot row when claiming a slot, the
// booking row when resolving, cancelling or rescheduling.
type Service struct {
	repo Repository
	cfg  Config
	log  zerolog.Logger
}

func NewService(repo Repository, cfg Config, log zerolog.Logger) *Service {
	if cfg.Staleness <= 0 {
		cfg.Staleness = DefaultStaleness
	}
	if cfg.TokenAmount <= 0 {
		cfg.TokenAmount = DefaultTokenAmount
	}
	return &Service{repo: repo, cfg: cfg, log: log}
}

// Doctors and slots

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := s.repo.CreateDoctor(ctx, d); err != nil {
		return fmt.Errorf("create doctor: %w", err)
	}
	s.log.Info().Str("doctor_id", d.ID.String()).Str("name", d.Name).Msg("doctor created")
	return nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	docs, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return docs, nil
}

func (s *Service) CreateSlot(ctx context.Context, slot *Slot) error {
	if _, err := s.repo.GetDoctorByID(ctx, slot.DoctorID); err != nil {
		return err
	}
	slot.Status = SlotAvailable
	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return err
	}
	return nil
}

// ListAvailableSlots sweeps stale pending bookings first so a caller never
// sees a slot still held by an abandoned booking.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	if _, err := s.SweepExpired(ctx); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListAvailableSlots(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// Booking lifecycle

type CreateBookingParams struct {
	DoctorID     uuid.UUID
	SlotID       uuid.UUID
	PatientID    *uuid.UUID
	PatientName  string
	PatientEmail string
	Reason       *string
}

// CreateBooking claims a slot for a patient. The slot row is locked for
// the duration of the transaction, so of any number of concurrent attempts
// on the same slot exactly one observes AVAILABLE; the rest see BOOKED and
// fail with ErrSlotUnavailable. Booking insert and slot flip commit
// together or not at all.
func (s *Service) CreateBooking(ctx context.Context, p CreateBookingParams) (*Booking, error) {
	var created *Booking

	err := s.repo.InTx(ctx, func(ctx context.Context, store Store) error {
		slot, err := store.GetSlotForUpdate(ctx, p.SlotID)
		if err != nil {
			return err
		}
		if slot.DoctorID != p.DoctorID {
			return ErrSlotDoctorMismatch
		}
		if slot.Status != SlotAvailable {
			return ErrSlotUnavailable
		}

		date := AppointmentDateOf(slot.StartTime)
		queueNumber, err := nextQueueNumber(ctx, store, p.DoctorID, date, nil)
		if err != nil {
			return err
		}

		b := &Booking{
			SlotID:          slot.ID,
			PatientID:       p.PatientID,
			PatientName:     p.PatientName,
			PatientEmail:    p.PatientEmail,
			Reason:          p.Reason,
			Status:          StatusPending,
			PaymentStatus:   PaymentPending,
			QueueNumber:     queueNumber,
			AppointmentDate: date,
			TokenAmount:     s.cfg.TokenAmount,
		}
		if err := store.InsertBooking(ctx, b); err != nil {
			return err
		}
		if err := store.SetSlotStatus(ctx, slot.ID, SlotBooked); err != nil {
			return err
		}

		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("booking_id", created.ID.String()).
		Str("slot_id", created.SlotID.String()).
		Int("queue_number", created.QueueNumber).
		Msg("booking created")
	return created, nil
}

// ResolvePayment settles the simulated payment for a PENDING/PENDING
// booking. Success confirms the booking and leaves the slot BOOKED;
// failure fails the booking and frees the slot. Anything already resolved
// is rejected.
func (s *Service) ResolvePayment(ctx context.Context, id uuid.UUID, success bool) (*Booking, error) {
	var updated *Booking

	err := s.repo.InTx(ctx, func(ctx context.Context, store Store) error {
		b, err := store.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != StatusPending || b.PaymentStatus != PaymentPending {
			return ErrBookingNotPending
		}

		if success {
			updated, err = store.UpdateBookingStatus(ctx, b.ID, StatusConfirmed, PaymentSuccess)
			return err
		}

		updated, err = store.UpdateBookingStatus(ctx, b.ID, StatusFailed, PaymentFailed)
		if err != nil {
			return err
		}
		return store.SetSlotStatus(ctx, b.SlotID, SlotAvailable)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("booking_id", updated.ID.String()).
		Bool("success", success).
		Msg("payment resolved")
	return updated, nil
}

// ConfirmBooking is the success path of ResolvePayment.
func (s *Service) ConfirmBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.ResolvePayment(ctx, id, true)
}

// CancelBooking cancels any not-yet-cancelled booking, keeping its payment
// status as is, and frees the bound slot. The booking row persists as
// history; cancellation is a status, not a deletion.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var updated *Booking

	err := s.repo.InTx(ctx, func(ctx context.Context, store Store) error {
		b, err := store.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status == StatusCancelled {
			return ErrBookingAlreadyCancelled
		}

		updated, err = store.UpdateBookingStatus(ctx, b.ID, StatusCancelled, b.PaymentStatus)
		if err != nil {
			return err
		}
		return store.SetSlotStatus(ctx, b.SlotID, SlotAvailable)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("booking_id", updated.ID.String()).Msg("booking cancelled")
	return updated, nil
}

// RescheduleBooking rebinds a PENDING or CONFIRMED booking to another
// AVAILABLE slot of the same doctor, recomputing its appointment date and
// queue position against the new slot. The old slot is freed and the new
// one booked inside the same transaction.
func (s *Service) RescheduleBooking(ctx context.Context, id, newSlotID uuid.UUID) (*Booking, error) {
	var updated *Booking

	err := s.repo.InTx(ctx, func(ctx context.Context, store Store) error {
		b, err := store.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status == StatusCancelled {
			return ErrBookingCancelled
		}

		oldSlot, err := store.GetSlotByID(ctx, b.SlotID)
		if err != nil {
			return err
		}

		newSlot, err := store.GetSlotForUpdate(ctx, newSlotID)
		if err != nil {
			return err
		}
		if newSlot.Status != SlotAvailable {
			return ErrSlotUnavailable
		}
		if newSlot.DoctorID != oldSlot.DoctorID {
			return ErrCrossDoctorReschedule
		}

		date := AppointmentDateOf(newSlot.StartTime)
		queueNumber, err := nextQueueNumber(ctx, store, newSlot.DoctorID, date, &b.ID)
		if err != nil {
			return err
		}

		updated, err = store.RebindBookingSlot(ctx, b.ID, newSlot.ID, date, queueNumber)
		if err != nil {
			return err
		}
		if err := store.SetSlotStatus(ctx, oldSlot.ID, SlotAvailable); err != nil {
			return err
		}
		return store.SetSlotStatus(ctx, newSlot.ID, SlotBooked)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("booking_id", updated.ID.String()).
		Str("new_slot_id", newSlotID.String()).
		Int("queue_number", updated.QueueNumber).
		Msg("booking rescheduled")
	return updated, nil
}

// SweepExpired fails every unpaid PENDING booking older than the staleness
// window and frees its slot. It runs at the start of availability and
// history reads rather than on a timer, so staleness becomes visible the
// moment someone looks; re-running it is a no-op once a booking has been
// resolved.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.Staleness)
	n, err := s.repo.ExpireStaleBookings(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep expired bookings: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("expired", n).Msg("expired stale pending bookings")
	}
	return n, nil
}

// Reads

func (s *Service) GetBookingDetail(ctx context.Context, id uuid.UUID) (*BookingDetail, error) {
	det, err := s.repo.GetBookingDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	return det, nil
}

// ListPatientBookings returns a patient's non-cancelled bookings, oldest
// appointment first, sweeping stale ones beforehand.
func (s *Service) ListPatientBookings(ctx context.Context, email string) ([]BookingDetail, error) {
	if _, err := s.SweepExpired(ctx); err != nil {
		return nil, err
	}
	dets, err := s.repo.ListBookingsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list patient bookings: %w", err)
	}
	return dets, nil
}

// ListDoctorBookings is the admin view of one doctor's queue for a date,
// ordered by queue number.
func (s *Service) ListDoctorBookings(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Booking, error) {
	bs, err := s.repo.ListBookingsForDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list doctor bookings: %w", err)
	}
	return bs, nil
}

// QueuePreview reports how many people would be ahead of a booking made
// now for the given doctor and date. Cancelled bookings do not count,
// matching the queue assigner.
func (s *Service) QueuePreview(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	count, err := s.repo.CountActiveBookings(ctx, doctorID, date, nil)
	if err != nil {
		return 0, fmt.Errorf("queue preview: %w", err)
	}
	return count, nil
}
