package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/service"
	"go.uber.org/zap"
)

type toggleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type reservationRequest struct {
	AdvisorID int64  `json:"advisor_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Message   string `json:"message"`
}

// handleCalendar serves the dense month of one advisor.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	advisorID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || advisorID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "advisor id must be a positive integer")
		return
	}

	// Missing or malformed year/month fall back to the current month.
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))

	view, err := s.projections.AdvisorMonth(r.Context(), callerFrom(r.Context()), advisorID, year, month)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleToggle flips one of the caller's own slots.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ref, err := service.ParseSlotRef(callerFrom(r.Context()), req.Date, req.StartTime, req.EndTime)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.availability.ToggleOpen(r.Context(), ref)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ref, err := service.ParseSlotRef(req.AdvisorID, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.reservations.CreateReservation(r.Context(), service.CreateReservationInput{
		StudentID: callerFrom(r.Context()),
		Slot:      ref,
		Message:   req.Message,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.ReservationQuery{
		ViewerID: callerFrom(r.Context()),
		Order:    model.ListOrder(q.Get("order")),
	}

	var err error
	if query.From, err = optionalDate(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "from must be YYYY-MM-DD")
		return
	}
	if query.To, err = optionalDate(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "to must be YYYY-MM-DD")
		return
	}

	list, err := s.projections.Reservations(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*model.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

func (s *Server) handleDayBoard(w http.ResponseWriter, r *http.Request) {
	date, err := calendar.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "date must be YYYY-MM-DD")
		return
	}

	slots, err := s.projections.DayBoard(r.Context(), callerFrom(r.Context()), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if slots == nil {
		slots = []*model.SlotState{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": calendar.FormatDate(date), "slots": slots})
}

func (s *Server) handleOpenSlots(w http.ResponseWriter, r *http.Request) {
	date, err := calendar.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "date must be YYYY-MM-DD")
		return
	}

	groups, err := s.projections.OpenSlotsByTime(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": calendar.FormatDate(date), "times": groups})
}

func optionalDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return calendar.ParseDate(v)
}

// statusFor maps service errors onto HTTP responses.
func statusFor(err error) (int, string) {
	switch {
	case service.IsValidation(err):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, service.ErrRoleNotPermitted):
		return http.StatusForbidden, "role_not_permitted"
	case errors.Is(err, service.ErrOnboardingIncomplete):
		return http.StatusForbidden, "onboarding_incomplete"
	case errors.Is(err, service.ErrSlotNotAvailable):
		return http.StatusNotFound, "slot_not_available"
	case errors.Is(err, service.ErrAdvisorNotBookable):
		return http.StatusBadRequest, "advisor_not_bookable"
	case errors.Is(err, service.ErrTooSoon):
		return http.StatusBadRequest, "too_soon"
	case errors.Is(err, service.ErrDailyLimitExceeded):
		return http.StatusBadRequest, "daily_limit_exceeded"
	case errors.Is(err, service.ErrSlotAlreadyBooked):
		return http.StatusConflict, "slot_already_booked"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int64("user_id", callerFrom(r.Context())),
			zap.Error(err))
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}
