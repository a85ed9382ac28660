package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-practice-booking/internal/appointment"
	"github.com/hackgods/dental-practice-booking/internal/practice"
)

type RouterConfig struct {
	Bookings    *appointment.Service
	Practice    *practice.Service
	Health      *HealthHandler
	Metrics     http.Handler // served at /metrics when set
	RateLimiter *RateLimiter // guards booking writes when set
	CORSOrigins []string
	Logger      zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := cfg.Health
	if health == nil {
		health = NewHealthHandler("", "", nil)
	}
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	// Dentist endpoints
	r.Get("/dentists", listDentistsHandler(cfg.Practice))
	r.Post("/dentists", registerDentistHandler(cfg.Practice))
	r.Route("/dentists/{dentist}", func(r chi.Router) {
		r.Get("/slots", listSlotsHandler(cfg.Bookings))
		r.Get("/calendar", dentistCalendarHandler(cfg.Bookings))
		r.Get("/schedule", dentistScheduleHandler(cfg.Bookings))
		r.Put("/name", renameDentistHandler(cfg.Practice))
		r.Put("/insurance", updateAcceptedInsuranceHandler(cfg.Practice))
		r.Put("/hours", updateHoursHandler(cfg.Practice))
	})

	// Patient endpoints
	r.Post("/patients", registerPatientHandler(cfg.Practice))
	r.Route("/patients/{patient}", func(r chi.Router) {
		r.Get("/appointments", patientAppointmentsHandler(cfg.Bookings))
		r.Get("/costs", overviewCostsHandler(cfg.Bookings))
		r.Post("/problems", addProblemHandler(cfg.Practice))
		r.Put("/insurance", updatePatientInsuranceHandler(cfg.Practice))
	})

	r.Get("/costs/prebooking", preBookingCostsHandler(cfg.Bookings))

	// Booking endpoints
	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}
		r.Post("/bookings", createBookingHandler(cfg.Bookings))
		r.Delete("/bookings/{dentist}/{date}/{time}", cancelBookingHandler(cfg.Bookings))
	})

	if len(cfg.CORSOrigins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}).Handler(r)
}
