package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicqueue/booking-service/internal/auth"
)

type RouterConfig struct {
	Handlers *Handlers
	Issuer   *auth.TokenIssuer
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := cfg.Handlers
	requireAuth := RequireAuth(cfg.Issuer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.With(requireAuth).Get("/me", h.Me)

		// Admin-only writes are gated before the core operations run.
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, RequireAdmin)
			r.Post("/doctors", h.CreateDoctor)
			r.Post("/doctors/{doctorID}/slots", h.CreateSlot)
			r.Get("/doctors/{doctorID}/bookings", h.ListDoctorBookings)
		})

		r.Get("/doctors", h.ListDoctors)
		r.Get("/doctors/{doctorID}/slots", h.ListAvailableSlots)
		r.Get("/doctors/{doctorID}/queue-preview", h.QueuePreview)
		r.With(requireAuth).Post("/doctors/{doctorID}/slots/{slotID}/bookings", h.CreateBooking)

		r.Post("/payments/fake", h.FakePayment)
		r.Patch("/bookings/{bookingID}/confirm", h.ConfirmBooking)
		r.Patch("/bookings/{bookingID}/cancel", h.CancelBooking)
		r.Patch("/bookings/{bookingID}/reschedule", h.RescheduleBooking)
		r.Get("/bookings/{bookingID}", h.GetBooking)
		r.Get("/patients/bookings", h.ListPatientBookings)
	})

	return r
}
