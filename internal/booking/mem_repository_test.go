package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is a map-backed Store for tests. It does no locking of its
// own; memRepo.InTx serializes whole transactions the way row-lock
// queuing serializes them in Postgres.
type memStore struct {
	doctors  map[uuid.UUID]*Doctor
	slots    map[uuid.UUID]*Slot
	bookings map[uuid.UUID]*Booking
}

type memRepo struct {
	mu sync.Mutex
	memStore
}

func newMemRepo() *memRepo {
	return &memRepo{
		memStore: memStore{
			doctors:  make(map[uuid.UUID]*Doctor),
			slots:    make(map[uuid.UUID]*Slot),
			bookings: make(map[uuid.UUID]*Booking),
		},
	}
}

func (m *memRepo) InTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, &m.memStore)
}

func (s *memStore) CreateDoctor(_ context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	s.doctors[d.ID] = &cp
	return nil
}

func (s *memStore) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := s.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) ListDoctors(_ context.Context) ([]Doctor, error) {
	var result []Doctor
	for _, d := range s.doctors {
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *memStore) CreateSlot(_ context.Context, slot *Slot) error {
	for _, existing := range s.slots {
		if existing.DoctorID == slot.DoctorID &&
			existing.StartTime.Equal(slot.StartTime) &&
			existing.EndTime.Equal(slot.EndTime) {
			return ErrDuplicateSlot
		}
	}
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	if slot.Status == "" {
		slot.Status = SlotAvailable
	}
	slot.CreatedAt = time.Now()
	slot.UpdatedAt = slot.CreatedAt
	cp := *slot
	s.slots[slot.ID] = &cp
	return nil
}

func (s *memStore) GetSlotByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	slot, ok := s.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *slot
	return &cp, nil
}

func (s *memStore) GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.GetSlotByID(ctx, id)
}

func (s *memStore) ListAvailableSlots(_ context.Context, doctorID uuid.UUID) ([]Slot, error) {
	var result []Slot
	for _, slot := range s.slots {
		if slot.DoctorID == doctorID && slot.Status == SlotAvailable {
			result = append(result, *slot)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (s *memStore) SetSlotStatus(_ context.Context, id uuid.UUID, status SlotStatus) error {
	slot, ok := s.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	slot.Status = status
	slot.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) InsertBooking(_ context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.UpdatedAt = b.CreatedAt
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *memStore) GetBookingByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.GetBookingByID(ctx, id)
}

func (s *memStore) UpdateBookingStatus(_ context.Context, id uuid.UUID, status BookingStatus, payment PaymentStatus) (*Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b.Status = status
	b.PaymentStatus = payment
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (s *memStore) RebindBookingSlot(_ context.Context, id, slotID uuid.UUID, date time.Time, queueNumber int) (*Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b.SlotID = slotID
	b.AppointmentDate = date
	b.QueueNumber = queueNumber
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (s *memStore) CountActiveBookings(_ context.Context, doctorID uuid.UUID, date time.Time, exclude *uuid.UUID) (int, error) {
	count := 0
	for _, b := range s.bookings {
		if b.Status == StatusCancelled {
			continue
		}
		if !b.AppointmentDate.Equal(date) {
			continue
		}
		if exclude != nil && b.ID == *exclude {
			continue
		}
		slot, ok := s.slots[b.SlotID]
		if !ok || slot.DoctorID != doctorID {
			continue
		}
		count++
	}
	return count, nil
}

func (s *memStore) ExpireStaleBookings(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, b := range s.bookings {
		if b.Status != StatusPending || b.PaymentStatus != PaymentPending {
			continue
		}
		if !b.CreatedAt.Before(cutoff) {
			continue
		}
		b.Status = StatusFailed
		b.PaymentStatus = PaymentFailed
		b.UpdatedAt = time.Now()
		if slot, ok := s.slots[b.SlotID]; ok {
			slot.Status = SlotAvailable
		}
		n++
	}
	return n, nil
}

func (s *memStore) GetBookingDetail(ctx context.Context, id uuid.UUID) (*BookingDetail, error) {
	b, err := s.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	slot, ok := s.slots[b.SlotID]
	if !ok {
		return nil, ErrBookingNotFound
	}
	doc, ok := s.doctors[slot.DoctorID]
	if !ok {
		return nil, ErrBookingNotFound
	}
	slotCp := *slot
	docCp := *doc
	return &BookingDetail{Booking: *b, Slot: &slotCp, Doctor: &docCp}, nil
}

func (s *memStore) ListBookingsByEmail(ctx context.Context, email string) ([]BookingDetail, error) {
	var result []BookingDetail
	for id, b := range s.bookings {
		if b.PatientEmail != email || b.Status == StatusCancelled {
			continue
		}
		det, err := s.GetBookingDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, *det)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].AppointmentDate.Equal(result[j].AppointmentDate) {
			return result[i].AppointmentDate.Before(result[j].AppointmentDate)
		}
		return result[i].Slot.StartTime.Before(result[j].Slot.StartTime)
	})
	return result, nil
}

func (s *memStore) ListBookingsForDoctorDate(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Booking, error) {
	var result []Booking
	for _, b := range s.bookings {
		if !b.AppointmentDate.Equal(date) {
			continue
		}
		slot, ok := s.slots[b.SlotID]
		if !ok || slot.DoctorID != doctorID {
			continue
		}
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].QueueNumber < result[j].QueueNumber })
	return result, nil
}

// backdate rewrites a stored booking's created_at, for staleness tests.
func (m *memRepo) backdate(id uuid.UUID, age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		b.CreatedAt = time.Now().Add(-age)
	}
}

// slotStatus reads a slot's current status directly.
func (m *memRepo) slotStatus(id uuid.UUID) SlotStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[id]; ok {
		return s.Status
	}
	return ""
}
