package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicqueue/booking-service/internal/auth"
	"github.com/clinicqueue/booking-service/internal/booking"
)

const dateLayout = "2006-01-02"

// Requests

type RegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`
	Password string  `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateDoctorRequest struct {
	Name             string   `json:"name"`
	Specialization   string   `json:"specialization"`
	City             string   `json:"city"`
	ConsultationType string   `json:"consultation_type"`
	ConsultationFee  float64  `json:"consultation_fee"`
	Rating           *float64 `json:"rating,omitempty"`
}

type CreateSlotRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type CreateBookingRequest struct {
	PatientName  string  `json:"patient_name"`
	PatientEmail string  `json:"patient_email"`
	Reason       *string `json:"reason,omitempty"`
}

type FakePaymentRequest struct {
	BookingID string `json:"booking_id"`
	Success   *bool  `json:"success"`
}

type RescheduleRequest struct {
	NewSlotID string `json:"new_slot_id"`
}

// Responses

type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone *string   `json:"phone,omitempty"`
	Role  auth.Role `json:"role"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type DoctorResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Specialization   string    `json:"specialization"`
	City             string    `json:"city"`
	ConsultationType string    `json:"consultation_type"`
	ConsultationFee  float64   `json:"consultation_fee"`
	Rating           *float64  `json:"rating,omitempty"`
}

type SlotResponse struct {
	ID        uuid.UUID          `json:"id"`
	DoctorID  uuid.UUID          `json:"doctor_id"`
	StartTime time.Time          `json:"start_time"`
	EndTime   time.Time          `json:"end_time"`
	Status    booking.SlotStatus `json:"status"`
}

type BookingResponse struct {
	ID              uuid.UUID             `json:"id"`
	SlotID          uuid.UUID             `json:"slot_id"`
	PatientID       *uuid.UUID            `json:"patient_id,omitempty"`
	PatientName     string                `json:"patient_name"`
	PatientEmail    string                `json:"patient_email"`
	Reason          *string               `json:"reason,omitempty"`
	Status          booking.BookingStatus `json:"status"`
	PaymentStatus   booking.PaymentStatus `json:"payment_status"`
	QueueNumber     int                   `json:"queue_number"`
	AppointmentDate string                `json:"appointment_date"`
	TokenAmount     float64               `json:"token_amount"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

type BookingDetailResponse struct {
	Booking              BookingResponse `json:"booking"`
	Doctor               DoctorResponse  `json:"doctor"`
	Slot                 SlotResponse    `json:"slot"`
	PeopleAhead          int             `json:"people_ahead"`
	EstimatedWaitMinutes int             `json:"estimated_wait_minutes"`
}

type AdminBookingResponse struct {
	BookingResponse
	PeopleAhead          int `json:"people_ahead"`
	EstimatedWaitMinutes int `json:"estimated_wait_minutes"`
}

type QueuePreviewResponse struct {
	PeopleAheadNow          int `json:"people_ahead_now"`
	EstimatedWaitMinutesNow int `json:"estimated_wait_minutes_now"`
}

// Mapping

func toUserResponse(u *auth.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: u.Role}
}

func toDoctorResponse(d *booking.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:               d.ID,
		Name:             d.Name,
		Specialization:   d.Specialization,
		City:             d.City,
		ConsultationType: d.ConsultationType,
		ConsultationFee:  d.ConsultationFee,
		Rating:           d.Rating,
	}
}

func toSlotResponse(s *booking.Slot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Status:    s.Status,
	}
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		SlotID:          b.SlotID,
		PatientID:       b.PatientID,
		PatientName:     b.PatientName,
		PatientEmail:    b.PatientEmail,
		Reason:          b.Reason,
		Status:          b.Status,
		PaymentStatus:   b.PaymentStatus,
		QueueNumber:     b.QueueNumber,
		AppointmentDate: b.AppointmentDate.Format(dateLayout),
		TokenAmount:     b.TokenAmount,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toBookingDetailResponse(det *booking.BookingDetail) BookingDetailResponse {
	est := booking.Estimate(det.QueueNumber)
	return BookingDetailResponse{
		Booking:              toBookingResponse(&det.Booking),
		Doctor:               toDoctorResponse(det.Doctor),
		Slot:                 toSlotResponse(det.Slot),
		PeopleAhead:          est.PeopleAhead,
		EstimatedWaitMinutes: est.EstimatedWaitMinutes,
	}
}
