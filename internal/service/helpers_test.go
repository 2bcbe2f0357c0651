package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/app"
	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/leadtime"
	"github.com/Freeeeeet/advising_portal/internal/metrics"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/notify"
	"github.com/Freeeeeet/advising_portal/internal/repository"
	"github.com/Freeeeeet/advising_portal/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Kinds(kind notify.Kind) []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []notify.Event
	for _, e := range p.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type env struct {
	store        repository.Store
	clock        *testClock
	published    *recordingPublisher
	accounts     *service.AccountService
	availability *service.AvailabilityService
	reservations *service.ReservationService
	projections  *service.ProjectionService
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newEnv(t *testing.T, now string) *env {
	t.Helper()
	ctx := context.Background()

	store, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	migrator, err := app.NewSQLiteMigrator(store.DB(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrator.Run(ctx))

	clock := &testClock{now: at(now)}
	policy := leadtime.NewPolicy(leadtime.DefaultLead, time.UTC, clock)
	hours := calendar.DefaultWorkingHours()
	pub := &recordingPublisher{}
	m := metrics.New()
	logger := zap.NewNop()

	availability := service.NewAvailabilityService(store, policy, hours, pub, m, logger)
	return &env{
		store:        store,
		clock:        clock,
		published:    pub,
		accounts:     service.NewAccountService(store, logger),
		availability: availability,
		reservations: service.NewReservationService(store, policy, hours, pub, m, logger),
		projections:  service.NewProjectionService(store, availability, logger),
	}
}

func (e *env) register(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	u, err := e.accounts.RegisterUser(context.Background(), service.RegisterInput{
		Email:     email,
		FirstName: "Test",
		LastName:  string(role),
		Role:      role,
	})
	require.NoError(t, err)
	return u
}

func (e *env) advisor(t *testing.T, email string) *model.User {
	t.Helper()
	u := e.register(t, email, model.RoleTeacher)
	_, err := e.accounts.SetAdvisorCapabilities(context.Background(), model.Advisor{
		UserID:        u.ID,
		ActiveAdvisor: true,
		CanHostOnline: true,
	})
	require.NoError(t, err)
	return u
}

func (e *env) student(t *testing.T, email string) *model.User {
	t.Helper()
	u := e.register(t, email, model.RoleStudent)
	require.NoError(t, e.accounts.CompleteOnboarding(context.Background(), u.ID))
	return u
}

func ref(t *testing.T, advisorID int64, date, start string) service.SlotRef {
	t.Helper()
	r, err := service.ParseSlotRef(advisorID, date, start, "")
	require.NoError(t, err)
	return r
}

func (e *env) open(t *testing.T, r service.SlotRef) {
	t.Helper()
	res, err := e.availability.ToggleOpen(context.Background(), r)
	require.NoError(t, err)
	require.True(t, res.Slot.IsOpen)
}

func (e *env) book(studentID int64, r service.SlotRef, msg string) (*model.Reservation, error) {
	return e.reservations.CreateReservation(context.Background(), service.CreateReservationInput{
		StudentID: studentID,
		Slot:      r,
		Message:   msg,
	})
}
