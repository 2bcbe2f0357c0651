package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the primary backend. Slot locks are real row locks.
type PostgresStore struct {
	pool         *pgxpool.Pool
	slots        *SlotRepository
	reservations *ReservationRepository
	users        *UserRepository
	advisors     *AdvisorRepository
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool:         pool,
		slots:        NewSlotRepository(pool),
		reservations: NewReservationRepository(pool),
		users:        NewUserRepository(pool),
		advisors:     NewAdvisorRepository(pool),
	}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(newPostgresTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if name, ok := base.UniqueViolation(err); ok {
			if mapped := translateConstraint(name); mapped != nil {
				return mapped
			}
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}

func (s *PostgresStore) ListAdvisorSlots(ctx context.Context, advisorID int64, from, to time.Time) ([]*model.SlotState, error) {
	return s.slots.ListByAdvisor(ctx, advisorID, from, to)
}

func (s *PostgresStore) ListDaySlots(ctx context.Context, date time.Time) ([]*model.SlotState, error) {
	return s.slots.ListOpenOrBookedOn(ctx, date)
}

func (s *PostgresStore) ListReservations(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error) {
	return s.reservations.List(ctx, filter)
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *PostgresStore) GetUsers(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	return s.users.GetByIDs(ctx, ids)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.users.GetByEmail(ctx, email)
}

func (s *PostgresStore) GetAdvisor(ctx context.Context, userID int64) (*model.Advisor, error) {
	return s.advisors.GetByUserID(ctx, userID)
}

func (s *PostgresStore) ListAdmins(ctx context.Context) ([]*model.User, error) {
	return s.users.ListByRole(ctx, model.RoleAdmin)
}

func (s *PostgresStore) ListBookableAdvisors(ctx context.Context) ([]*model.Advisor, error) {
	return s.advisors.ListBookable(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.users.Create(ctx, u)
}

func (s *PostgresStore) UpsertAdvisor(ctx context.Context, a *model.Advisor) error {
	return s.advisors.Upsert(ctx, a)
}

func (s *PostgresStore) SetOnboardingCompleted(ctx context.Context, userID int64, done bool) error {
	return s.users.SetOnboardingCompleted(ctx, userID, done)
}

func (s *PostgresStore) SetTelegramChatID(ctx context.Context, userID int64, chatID int64) error {
	return s.users.SetTelegramChatID(ctx, userID, chatID)
}

// postgresTx binds the table repositories to one pgx.Tx.
type postgresTx struct {
	slots        *SlotRepository
	reservations *ReservationRepository
	advisors     *AdvisorRepository
}

func newPostgresTx(tx pgx.Tx) *postgresTx {
	return &postgresTx{
		slots:        NewSlotRepository(tx),
		reservations: NewReservationRepository(tx),
		advisors:     NewAdvisorRepository(tx),
	}
}

func (t *postgresTx) EnsureSlot(ctx context.Context, key model.SlotKey, end calendar.TimeOfDay) error {
	return t.slots.EnsureKey(ctx, key, end)
}

func (t *postgresTx) LockSlot(ctx context.Context, key model.SlotKey) (*model.Slot, error) {
	return t.slots.LockByKey(ctx, key)
}

func (t *postgresTx) SetSlotOpen(ctx context.Context, slotID int64, open bool) error {
	return t.slots.SetOpen(ctx, slotID, open)
}

func (t *postgresTx) CloseSlot(ctx context.Context, slotID int64) error {
	return t.slots.CloseIfOpen(ctx, slotID)
}

func (t *postgresTx) SlotHasReservation(ctx context.Context, slotID int64) (bool, error) {
	return t.reservations.ExistsForSlot(ctx, slotID)
}

func (t *postgresTx) StudentHasReservationOn(ctx context.Context, studentID int64, date time.Time) (bool, error) {
	return t.reservations.ExistsForStudentOn(ctx, studentID, date)
}

func (t *postgresTx) AdvisorForShare(ctx context.Context, advisorID int64) (*model.Advisor, error) {
	return t.advisors.GetForShare(ctx, advisorID)
}

func (t *postgresTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	return t.reservations.Create(ctx, r)
}
