// Package httpapi exposes the reservation engine over JSON.
package httpapi

import (
	"context"
	"net/http"

	"github.com/Freeeeeet/advising_portal/internal/metrics"
	"github.com/Freeeeeet/advising_portal/internal/service"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Availability *service.AvailabilityService
	Reservations *service.ReservationService
	Projections  *service.ProjectionService
	Store        Pinger
	// Calendar streams live frames on /ws/calendar. Optional.
	Calendar    http.Handler
	Metrics     *metrics.Metrics
	JWTSecret   []byte
	CORSOrigins []string
	Logger      *zap.Logger
}

type Server struct {
	availability *service.AvailabilityService
	reservations *service.ReservationService
	projections  *service.ProjectionService
	store        Pinger
	calendar     http.Handler
	metrics      *metrics.Metrics
	secret       []byte
	origins      []string
	logger       *zap.Logger
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		availability: d.Availability,
		reservations: d.Reservations,
		projections:  d.Projections,
		store:        d.Store,
		calendar:     d.Calendar,
		metrics:      d.Metrics,
		secret:       d.JWTSecret,
		origins:      d.CORSOrigins,
		logger:       logger,
	}
}

// Handler builds the routed, logged, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.calendar != nil {
		mux.Handle("GET /ws/calendar", s.calendar)
	}

	mux.HandleFunc("GET /api/v1/advisors/{id}/calendar", s.authenticate(s.handleCalendar))
	mux.HandleFunc("POST /api/v1/availability/toggle", s.authenticate(s.handleToggle))
	mux.HandleFunc("POST /api/v1/reservations", s.authenticate(s.handleCreateReservation))
	mux.HandleFunc("GET /api/v1/reservations", s.authenticate(s.handleListReservations))
	mux.HandleFunc("GET /api/v1/slots", s.authenticate(s.handleDayBoard))
	mux.HandleFunc("GET /api/v1/slots/open", s.authenticate(s.handleOpenSlots))

	return s.observe(corsPolicy(s.origins).Handler(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.Warn("Readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
