package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/app"
	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/controller/httpapi"
	"github.com/Freeeeeet/advising_portal/internal/leadtime"
	"github.com/Freeeeeet/advising_portal/internal/metrics"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/notify"
	"github.com/Freeeeeet/advising_portal/internal/repository"
	"github.com/Freeeeeet/advising_portal/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

type fixture struct {
	handler  http.Handler
	accounts *service.AccountService
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	migrator, err := app.NewSQLiteMigrator(store.DB(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrator.Run(context.Background()))

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	policy := leadtime.NewPolicy(leadtime.DefaultLead, time.UTC, leadtime.FixedClock(now))
	hours := calendar.DefaultWorkingHours()
	m := metrics.New()
	logger := zap.NewNop()

	availability := service.NewAvailabilityService(store, policy, hours, notify.Discard{}, m, logger)
	accounts := service.NewAccountService(store, logger)
	srv := httpapi.NewServer(httpapi.Deps{
		Availability: availability,
		Reservations: service.NewReservationService(store, policy, hours, notify.Discard{}, m, logger),
		Projections:  service.NewProjectionService(store, availability, logger),
		Store:        store,
		Metrics:      m,
		JWTSecret:    testSecret,
		Logger:       logger,
	})
	return &fixture{handler: srv.Handler(), accounts: accounts, now: now}
}

func (f *fixture) user(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	ctx := context.Background()
	u, err := f.accounts.RegisterUser(ctx, service.RegisterInput{Email: email, FirstName: "T", Role: role})
	require.NoError(t, err)
	switch role {
	case model.RoleTeacher:
		_, err = f.accounts.SetAdvisorCapabilities(ctx, model.Advisor{UserID: u.ID, ActiveAdvisor: true, CanHostOnline: true})
		require.NoError(t, err)
	case model.RoleStudent:
		require.NoError(t, f.accounts.CompleteOnboarding(ctx, u.ID))
	}
	return u
}

func (f *fixture) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != 0 {
		token, err := httpapi.IssueToken(testSecret, userID, time.Hour, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	_, err := uuid.Parse(rr.Header().Get("X-Request-ID"))
	assert.NoError(t, err)

	rr = f.do(t, http.MethodGet, "/readyz", 0, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/metrics", 0, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequiresBearerToken(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/api/v1/reservations", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations", nil)
	forged, err := httpapi.IssueToken([]byte("other-secret"), 1, time.Hour, time.Now())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+forged)
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBookingFlow(t *testing.T) {
	f := newFixture(t)
	advisor := f.user(t, "advisor@uni.test", model.RoleTeacher)
	alice := f.user(t, "alice@uni.test", model.RoleStudent)
	bob := f.user(t, "bob@uni.test", model.RoleStudent)
	pending, err := f.accounts.RegisterUser(context.Background(), service.RegisterInput{Email: "p@uni.test", Role: model.RoleStudent})
	require.NoError(t, err)

	rr := f.do(t, http.MethodPost, "/api/v1/availability/toggle", advisor.ID, map[string]any{"date": "2025-03-10", "start_time": "14:00"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var toggled service.ToggleResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &toggled))
	assert.True(t, toggled.Slot.IsOpen)
	assert.True(t, toggled.Month.Cells["2025-03-10,14:00:00"].IsOpen)

	booking := map[string]any{"advisor_id": advisor.ID, "date": "2025-03-10", "start_time": "14:00", "message": "hi"}

	rr = f.do(t, http.MethodPost, "/api/v1/reservations", pending.ID, booking)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "onboarding_incomplete", errorCode(t, rr))

	rr = f.do(t, http.MethodPost, "/api/v1/reservations", alice.ID, booking)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodPost, "/api/v1/reservations", bob.ID, booking)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "slot_already_booked", errorCode(t, rr))

	rr = f.do(t, http.MethodPost, "/api/v1/availability/toggle", advisor.ID, map[string]any{"date": "2025-03-10", "start_time": "14:00"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/v1/availability/toggle", alice.ID, map[string]any{"date": "2025-03-10", "start_time": "15:00"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/reservations?order=desc", advisor.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var listed struct {
		Reservations []model.Reservation `json:"reservations"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed.Reservations, 1)
	assert.Equal(t, alice.ID, listed.Reservations[0].StudentID)

	rr = f.do(t, http.MethodGet, "/api/v1/slots?date=2025-03-10", bob.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/advisors/%d/calendar?year=2025&month=3", advisor.ID), bob.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var month service.MonthView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &month))
	assert.True(t, month.Cells["2025-03-10,14:00:00"].HasReservation)
}

func TestRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	advisor := f.user(t, "advisor@uni.test", model.RoleTeacher)
	student := f.user(t, "s@uni.test", model.RoleStudent)

	rr := f.do(t, http.MethodPost, "/api/v1/reservations", student.ID, map[string]any{"advisor_id": advisor.ID, "date": "2025-03-08", "start_time": "14:00"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation", errorCode(t, rr))

	rr = f.do(t, http.MethodPost, "/api/v1/reservations", student.ID, map[string]any{"advisor_id": advisor.ID, "date": "2025-03-10", "start_time": "16:00"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "slot_not_available", errorCode(t, rr))

	rr = f.do(t, http.MethodPost, "/api/v1/availability/toggle", advisor.ID, map[string]any{"date": "2025-03-10", "start_time": "09:00", "extra": true})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_json", errorCode(t, rr))

	rr = f.do(t, http.MethodPost, "/api/v1/availability/toggle", advisor.ID, map[string]any{"date": "2025-03-10", "start_time": "09:30"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "too_soon", errorCode(t, rr))

	rr = f.do(t, http.MethodGet, "/api/v1/slots/open?date=tomorrow", student.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/reservations?from=03/01/2025", student.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBookingDetailsHiddenFromOtherStudents(t *testing.T) {
	f := newFixture(t)
	advisor := f.user(t, "advisor@uni.test", model.RoleTeacher)
	alice := f.user(t, "alice@uni.test", model.RoleStudent)
	bob := f.user(t, "bob@uni.test", model.RoleStudent)

	rr := f.do(t, http.MethodPost, "/api/v1/availability/toggle", advisor.ID, map[string]any{"date": "2025-03-10", "start_time": "14:00"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = f.do(t, http.MethodPost, "/api/v1/reservations", alice.ID, map[string]any{
		"advisor_id": advisor.ID, "date": "2025-03-10", "start_time": "14:00", "message": "my private health issue",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	calendarPath := fmt.Sprintf("/api/v1/advisors/%d/calendar?year=2025&month=3", advisor.ID)
	for _, path := range []string{calendarPath, "/api/v1/slots?date=2025-03-10"} {
		rr = f.do(t, http.MethodGet, path, bob.ID, nil)
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotContains(t, rr.Body.String(), "alice@uni.test", path)
		assert.NotContains(t, rr.Body.String(), "my private health issue", path)

		for _, viewer := range []int64{advisor.ID, alice.ID} {
			rr = f.do(t, http.MethodGet, path, viewer, nil)
			require.Equal(t, http.StatusOK, rr.Code, path)
			assert.Contains(t, rr.Body.String(), "alice@uni.test", path)
			assert.Contains(t, rr.Body.String(), "my private health issue", path)
		}
	}

	rr = f.do(t, http.MethodGet, calendarPath, bob.ID, nil)
	var month service.MonthView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &month))
	cell := month.Cells["2025-03-10,14:00:00"]
	assert.True(t, cell.HasReservation)
	assert.Nil(t, cell.Student)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/reservations", nil)
	req.Header.Set("Origin", "https://portal.uni.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
