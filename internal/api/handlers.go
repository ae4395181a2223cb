package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicqueue/booking-service/internal/auth"
	"github.com/clinicqueue/booking-service/internal/booking"
	"github.com/clinicqueue/booking-service/internal/cache"
)

type Handlers struct {
	bookings *booking.Service
	auth     *auth.Service
	doctors  *cache.DoctorCache // may be nil; caching is best-effort
	log      zerolog.Logger
}

func NewHandlers(bookings *booking.Service, authSvc *auth.Service, doctors *cache.DoctorCache, log zerolog.Logger) *Handlers {
	return &Handlers{bookings: bookings, auth: authSvc, doctors: doctors, log: log}
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error().
		Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// Auth

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "name, email and password are required")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password, req.Phone)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "email_taken", "email already registered")
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "email and password are required")
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: toUserResponse(user)})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"user_id": claims.UserID,
			"role":    claims.Role,
		},
	})
}

// Doctors and slots

func (h *Handlers) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Name == "" || req.Specialization == "" || req.City == "" || req.ConsultationType == "" || req.ConsultationFee <= 0 {
		writeError(w, http.StatusBadRequest, "missing_fields", "name, specialization, city, consultation_type and consultation_fee are required")
		return
	}

	doc := &booking.Doctor{
		Name:             req.Name,
		Specialization:   req.Specialization,
		City:             req.City,
		ConsultationType: req.ConsultationType,
		ConsultationFee:  req.ConsultationFee,
		Rating:           req.Rating,
	}
	if err := h.bookings.CreateDoctor(r.Context(), doc); err != nil {
		h.internalError(w, r, err)
		return
	}
	if h.doctors != nil {
		h.doctors.Invalidate(r.Context())
	}

	writeJSON(w, http.StatusCreated, toDoctorResponse(doc))
}

func (h *Handlers) CreateSlot(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return
	}

	var req CreateSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		writeError(w, http.StatusBadRequest, "missing_fields", "start_time and end_time are required")
		return
	}

	slot := &booking.Slot{
		DoctorID:  doctorID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := h.bookings.CreateSlot(r.Context(), slot); err != nil {
		switch {
		case errors.Is(err, booking.ErrDoctorNotFound):
			writeError(w, http.StatusNotFound, "doctor_not_found", "doctor not found")
		case errors.Is(err, booking.ErrDuplicateSlot):
			writeError(w, http.StatusConflict, "duplicate_slot", "slot at this time already exists for this doctor")
		default:
			h.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toSlotResponse(slot))
}

func (h *Handlers) ListDoctors(w http.ResponseWriter, r *http.Request) {
	if h.doctors != nil {
		if docs, ok := h.doctors.Get(r.Context()); ok {
			writeJSON(w, http.StatusOK, doctorResponses(docs))
			return
		}
	}

	docs, err := h.bookings.ListDoctors(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if h.doctors != nil {
		h.doctors.Set(r.Context(), docs)
	}

	writeJSON(w, http.StatusOK, doctorResponses(docs))
}

func doctorResponses(docs []booking.Doctor) []DoctorResponse {
	out := make([]DoctorResponse, 0, len(docs))
	for i := range docs {
		out = append(out, toDoctorResponse(&docs[i]))
	}
	return out
}

func (h *Handlers) ListAvailableSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return
	}

	slots, err := h.bookings.ListAvailableSlots(r.Context(), doctorID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	out := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, toSlotResponse(&slots[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// Booking lifecycle

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return
	}
	slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", "slotID must be a valid UUID")
		return
	}

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.PatientName == "" || req.PatientEmail == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "patient_name and patient_email are required")
		return
	}

	params := booking.CreateBookingParams{
		DoctorID:     doctorID,
		SlotID:       slotID,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		Reason:       req.Reason,
	}
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		id := claims.UserID
		params.PatientID = &id
	}

	created, err := h.bookings.CreateBooking(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrSlotNotFound),
			errors.Is(err, booking.ErrSlotDoctorMismatch):
			writeError(w, http.StatusNotFound, "slot_not_found", "slot not found for this doctor")
		case errors.Is(err, booking.ErrSlotUnavailable):
			writeError(w, http.StatusConflict, "slot_unavailable", "slot is not available")
		default:
			h.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(created))
}

func (h *Handlers) FakePayment(w http.ResponseWriter, r *http.Request) {
	var req FakePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.BookingID == "" || req.Success == nil {
		writeError(w, http.StatusBadRequest, "missing_fields", "booking_id and success (boolean) are required")
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "booking_id must be a valid UUID")
		return
	}

	updated, err := h.bookings.ResolvePayment(r.Context(), bookingID, *req.Success)
	if err != nil {
		h.writePaymentError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(updated))
}

func (h *Handlers) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "bookingID must be a valid UUID")
		return
	}

	updated, err := h.bookings.ConfirmBooking(r.Context(), bookingID)
	if err != nil {
		h.writePaymentError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(updated))
}

// writePaymentError maps payment-resolution failures. A missing booking
// and an already-resolved one both come back 400 here: the payment
// endpoint treats anything not PENDING/PENDING as a caller error.
func (h *Handlers) writePaymentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, booking.ErrBookingNotPending):
		writeError(w, http.StatusBadRequest, "booking_not_pending", "booking not found or not in pending state")
	default:
		h.internalError(w, r, err)
	}
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "bookingID must be a valid UUID")
		return
	}

	updated, err := h.bookings.CancelBooking(r.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrBookingNotFound):
			writeError(w, http.StatusNotFound, "booking_not_found", "booking not found")
		case errors.Is(err, booking.ErrBookingAlreadyCancelled):
			writeError(w, http.StatusBadRequest, "already_cancelled", "booking is already cancelled")
		default:
			h.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(updated))
}

func (h *Handlers) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "bookingID must be a valid UUID")
		return
	}

	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.NewSlotID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "new_slot_id is required")
		return
	}
	newSlotID, err := uuid.Parse(req.NewSlotID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", "new_slot_id must be a valid UUID")
		return
	}

	updated, err := h.bookings.RescheduleBooking(r.Context(), bookingID, newSlotID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrBookingNotFound):
			writeError(w, http.StatusNotFound, "booking_not_found", "booking not found")
		case errors.Is(err, booking.ErrSlotNotFound):
			writeError(w, http.StatusNotFound, "slot_not_found", "new slot not found")
		case errors.Is(err, booking.ErrBookingCancelled):
			writeError(w, http.StatusBadRequest, "booking_cancelled", "cannot reschedule a cancelled booking")
		case errors.Is(err, booking.ErrSlotUnavailable):
			writeError(w, http.StatusBadRequest, "slot_unavailable", "new slot is not available")
		case errors.Is(err, booking.ErrCrossDoctorReschedule):
			writeError(w, http.StatusBadRequest, "cross_doctor", "reschedule allowed only within the same doctor")
		default:
			h.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(updated))
}

// Reads

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "bookingID must be a valid UUID")
		return
	}

	det, err := h.bookings.GetBookingDetail(r.Context(), bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "booking_not_found", "booking not found")
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingDetailResponse(det))
}

func (h *Handlers) ListPatientBookings(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "missing_email", "email is required")
		return
	}

	dets, err := h.bookings.ListPatientBookings(r.Context(), email)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	out := make([]BookingDetailResponse, 0, len(dets))
	for i := range dets {
		out = append(out, toBookingDetailResponse(&dets[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) ListDoctorBookings(w http.ResponseWriter, r *http.Request) {
	doctorID, date, ok := h.doctorDateParams(w, r)
	if !ok {
		return
	}

	bs, err := h.bookings.ListDoctorBookings(r.Context(), doctorID, date)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	out := make([]AdminBookingResponse, 0, len(bs))
	for i := range bs {
		est := booking.Estimate(bs[i].QueueNumber)
		out = append(out, AdminBookingResponse{
			BookingResponse:      toBookingResponse(&bs[i]),
			PeopleAhead:          est.PeopleAhead,
			EstimatedWaitMinutes: est.EstimatedWaitMinutes,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) QueuePreview(w http.ResponseWriter, r *http.Request) {
	doctorID, date, ok := h.doctorDateParams(w, r)
	if !ok {
		return
	}

	count, err := h.bookings.QueuePreview(r.Context(), doctorID, date)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, QueuePreviewResponse{
		PeopleAheadNow:          count,
		EstimatedWaitMinutesNow: count * booking.AvgConsultationMinutes,
	})
}

func (h *Handlers) doctorDateParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, time.Time, bool) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return uuid.Nil, time.Time{}, false
	}

	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_date", "date (YYYY-MM-DD) is required")
		return uuid.Nil, time.Time{}, false
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return uuid.Nil, time.Time{}, false
	}

	return doctorID, date, true
}
