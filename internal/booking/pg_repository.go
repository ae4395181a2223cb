package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// query methods serve plain reads and transactional sequences.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, db: pool}
}

// InTx runs fn inside a single transaction. Row locks taken via the
// *ForUpdate reads hold until the transaction commits or rolls back, which
// is what closes the read-status/write-status race window.
func (r *PgRepository) InTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &PgRepository{pool: r.pool, db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialization,
		&d.City,
		&d.ConsultationType,
		&d.ConsultationFee,
		&d.Rating,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.SlotID,
		&b.PatientID,
		&b.PatientName,
		&b.PatientEmail,
		&b.Reason,
		&b.Status,
		&b.PaymentStatus,
		&b.QueueNumber,
		&b.AppointmentDate,
		&b.TokenAmount,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

const bookingColumns = `id, slot_id, patient_id, patient_name, patient_email, reason,
		status, payment_status, queue_number, appointment_date, token_amount,
		created_at, updated_at`

// Doctors

func (r *PgRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO doctors (id, name, specialization, city, consultation_type, consultation_fee, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING created_at, updated_at
	`, d.ID, d.Name, d.Specialization, d.City, d.ConsultationType, d.ConsultationFee, d.Rating)

	if err := row.Scan(&d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialization, city, consultation_type, consultation_fee, rating, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, specialization, city, consultation_type, consultation_fee, rating, created_at, updated_at
		FROM doctors
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// Slots

func (r *PgRepository) CreateSlot(ctx context.Context, s *Slot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SlotAvailable
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO slots (id, doctor_id, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at
	`, s.ID, s.DoctorID, s.StartTime, s.EndTime, s.Status)

	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, doctor_id, start_time, end_time, status, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, doctor_id, start_time, end_time, status, created_at, updated_at
		FROM slots
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, start_time, end_time, status, created_at, updated_at
		FROM slots
		WHERE doctor_id = $1 AND status = 'AVAILABLE'
		ORDER BY start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) SetSlotStatus(ctx context.Context, id uuid.UUID, status SlotStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE slots
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("set slot status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Bookings

func (r *PgRepository) InsertBooking(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO bookings (id, slot_id, patient_id, patient_name, patient_email, reason,
			status, payment_status, queue_number, appointment_date, token_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING created_at, updated_at
	`, b.ID, b.SlotID, b.PatientID, b.PatientName, b.PatientEmail, b.Reason,
		b.Status, b.PaymentStatus, b.QueueNumber, b.AppointmentDate, b.TokenAmount)

	if err := row.Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status BookingStatus, payment PaymentStatus) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2, payment_status = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns+`
	`, id, status, payment)
	return scanBooking(row)
}

func (r *PgRepository) RebindBookingSlot(ctx context.Context, id, slotID uuid.UUID, date time.Time, queueNumber int) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET slot_id = $2, appointment_date = $3, queue_number = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns+`
	`, id, slotID, date, queueNumber)
	return scanBooking(row)
}

func (r *PgRepository) CountActiveBookings(ctx context.Context, doctorID uuid.UUID, date time.Time, exclude *uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings b
		JOIN slots s ON b.slot_id = s.id
		WHERE s.doctor_id = $1
		  AND b.appointment_date = $2
		  AND b.status <> 'CANCELLED'
		  AND ($3::uuid IS NULL OR b.id <> $3)
	`, doctorID, date, exclude).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active bookings: %w", err)
	}
	return count, nil
}

// ExpireStaleBookings fails old unpaid pending bookings and frees their
// slots in one statement, so a concurrent sweep or payment cannot observe
// a half-expired pair. The predicate no longer matches once a booking has
// been resolved, which makes re-running the sweep a no-op.
func (r *PgRepository) ExpireStaleBookings(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		WITH expired AS (
			UPDATE bookings
			SET status = 'FAILED', payment_status = 'FAILED', updated_at = now()
			WHERE status = 'PENDING'
			  AND payment_status = 'PENDING'
			  AND created_at < $1
			RETURNING slot_id
		)
		UPDATE slots
		SET status = 'AVAILABLE', updated_at = now()
		WHERE id IN (SELECT slot_id FROM expired)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire stale bookings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Hydrated reads

func (r *PgRepository) GetBookingDetail(ctx context.Context, id uuid.UUID) (*BookingDetail, error) {
	row := r.db.QueryRow(ctx, `
		SELECT b.id, b.slot_id, b.patient_id, b.patient_name, b.patient_email, b.reason,
		       b.status, b.payment_status, b.queue_number, b.appointment_date, b.token_amount,
		       b.created_at, b.updated_at,
		       s.id, s.doctor_id, s.start_time, s.end_time, s.status, s.created_at, s.updated_at,
		       d.id, d.name, d.specialization, d.city, d.consultation_type, d.consultation_fee, d.rating,
		       d.created_at, d.updated_at
		FROM bookings b
		JOIN slots s   ON b.slot_id = s.id
		JOIN doctors d ON s.doctor_id = d.id
		WHERE b.id = $1
	`, id)
	return scanBookingDetail(row)
}

func (r *PgRepository) ListBookingsByEmail(ctx context.Context, email string) ([]BookingDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.slot_id, b.patient_id, b.patient_name, b.patient_email, b.reason,
		       b.status, b.payment_status, b.queue_number, b.appointment_date, b.token_amount,
		       b.created_at, b.updated_at,
		       s.id, s.doctor_id, s.start_time, s.end_time, s.status, s.created_at, s.updated_at,
		       d.id, d.name, d.specialization, d.city, d.consultation_type, d.consultation_fee, d.rating,
		       d.created_at, d.updated_at
		FROM bookings b
		JOIN slots s   ON b.slot_id = s.id
		JOIN doctors d ON s.doctor_id = d.id
		WHERE b.patient_email = $1
		  AND b.status <> 'CANCELLED'
		ORDER BY b.appointment_date, s.start_time
	`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BookingDetail
	for rows.Next() {
		det, err := scanBookingDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *det)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListBookingsForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.slot_id, b.patient_id, b.patient_name, b.patient_email, b.reason,
		       b.status, b.payment_status, b.queue_number, b.appointment_date, b.token_amount,
		       b.created_at, b.updated_at
		FROM bookings b
		JOIN slots s ON b.slot_id = s.id
		WHERE s.doctor_id = $1
		  AND b.appointment_date = $2
		ORDER BY b.queue_number ASC
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func scanBookingDetail(row pgx.Row) (*BookingDetail, error) {
	var det BookingDetail
	var s Slot
	var d Doctor

	err := row.Scan(
		&det.ID, &det.SlotID, &det.PatientID, &det.PatientName, &det.PatientEmail, &det.Reason,
		&det.Status, &det.PaymentStatus, &det.QueueNumber, &det.AppointmentDate, &det.TokenAmount,
		&det.CreatedAt, &det.UpdatedAt,
		&s.ID, &s.DoctorID, &s.StartTime, &s.EndTime, &s.Status, &s.CreatedAt, &s.UpdatedAt,
		&d.ID, &d.Name, &d.Specialization, &d.City, &d.ConsultationType, &d.ConsultationFee, &d.Rating,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	det.Slot = &s
	det.Doctor = &d
	return &det, nil
}
