package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/hackgods/practitioner-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Core    *scheduling.Core
	Logger  *zap.Logger
	Checks  map[string]Pinger
	Env     string
	Version string

	// AllowedOrigins enables CORS for browser front desks. Empty disables it.
	AllowedOrigins []string

	// RateLimit caps requests per second per client IP. Zero disables it.
	RateLimit int
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	core := cfg.Core

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", ActorHeader},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Second))
	}
	r.Use(ActorMiddleware)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/availability", func(r chi.Router) {
		r.Post("/", createAvailabilityHandler(core))
		r.Get("/", listAvailabilityHandler(core))
		r.Get("/validate", validateAvailabilityHandler(core))
		r.Post("/generate/automatic", generateAutomaticHandler(core))
		r.Post("/generate/recurring", generateRecurringHandler(core))
		r.Get("/{id}", getAvailabilityHandler(core))
		r.Put("/{id}", updateAvailabilityHandler(core))
		r.Delete("/{id}", deleteAvailabilityHandler(core))
	})
	r.Get("/practitioners/{id}/availability", practitionerAvailabilityHandler(core))
	r.Get("/slots", slotsHandler(core))

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(core))
		r.Get("/", listAppointmentsHandler(core))
		r.Get("/overdue", overdueAppointmentsHandler(core))
		r.Get("/{id}", getAppointmentHandler(core))
		r.Put("/{id}", updateAppointmentHandler(core))
		r.Delete("/{id}", deleteAppointmentHandler(core))
		r.Post("/{id}/cancel", cancelAppointmentHandler(core))
		r.Post("/{id}/attended", markAttendedHandler(core))
		r.Post("/{id}/absent", markAbsentHandler(core))
		r.Post("/{id}/reschedule", rescheduleAppointmentHandler(core))
		r.Get("/{id}/notes", listNotesHandler(core))
		r.Post("/{id}/notes", addNoteHandler(core))
	})
	r.Get("/agenda", agendaHandler(core))

	r.Put("/notes/{id}", editNoteHandler(core))
	r.Delete("/notes/{id}", deleteNoteHandler(core))

	return r
}
