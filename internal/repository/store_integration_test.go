package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/app"
	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// backends yields every store available in this environment. Postgres runs
// only when PORTAL_TEST_DATABASE_URL points at a disposable database.
func backends(t *testing.T) map[string]repository.Store {
	t.Helper()
	ctx := context.Background()
	out := map[string]repository.Store{}

	sqliteStore, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })
	m, err := app.NewSQLiteMigrator(sqliteStore.DB(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx))
	out["sqlite"] = sqliteStore

	if dsn := os.Getenv("PORTAL_TEST_DATABASE_URL"); dsn != "" {
		pool, err := app.NewDBPool(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(pool.Close)

		_, err = pool.Exec(ctx, `DROP TABLE IF EXISTS reservations, slots, advisor_profiles, users, goose_db_version CASCADE`)
		require.NoError(t, err)

		pm, err := app.NewPostgresMigrator(pool, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = pm.Close() })
		require.NoError(t, pm.Run(ctx))
		out["postgres"] = repository.NewPostgresStore(pool)
	}
	return out
}

func seed(t *testing.T, s repository.Store) (advisor, student *model.User) {
	t.Helper()
	ctx := context.Background()

	advisor = &model.User{Email: "advisor@uni.test", FirstName: "Ada", LastName: "Lovelace", Role: model.RoleTeacher}
	require.NoError(t, s.CreateUser(ctx, advisor))
	require.NoError(t, s.UpsertAdvisor(ctx, &model.Advisor{UserID: advisor.ID, ActiveAdvisor: true, CanHostOnline: true}))

	student = &model.User{Email: "student@uni.test", FirstName: "Alan", Role: model.RoleStudent, OnboardingCompleted: true}
	require.NoError(t, s.CreateUser(ctx, student))
	return advisor, student
}

func TestStoreSlotLifecycle(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			advisor, student := seed(t, s)

			date, _ := calendar.ParseDate("2025-03-10")
			start := calendar.NewTimeOfDay(14, 0)
			key := model.SlotKey{AdvisorID: advisor.ID, Date: date, Start: start}

			var slotID int64
			err := s.InTx(ctx, func(tx repository.Tx) error {
				require.NoError(t, tx.EnsureSlot(ctx, key, start.Add(30*time.Minute)))
				require.NoError(t, tx.EnsureSlot(ctx, key, start.Add(30*time.Minute)))
				slot, err := tx.LockSlot(ctx, key)
				require.NoError(t, err)
				require.NotNil(t, slot)
				assert.False(t, slot.IsOpen)
				slotID = slot.ID
				return tx.SetSlotOpen(ctx, slot.ID, true)
			})
			require.NoError(t, err)

			err = s.InTx(ctx, func(tx repository.Tx) error {
				adv, err := tx.AdvisorForShare(ctx, advisor.ID)
				require.NoError(t, err)
				assert.True(t, adv.IsBookable())

				res := &model.Reservation{
					SlotID: slotID, StudentID: student.ID, AdvisorID: advisor.ID,
					Date: date, Start: start, End: start.Add(30 * time.Minute),
					Message: "hello", CreatedAt: time.Now(),
				}
				require.NoError(t, tx.CreateReservation(ctx, res))
				assert.NotZero(t, res.ID)
				return tx.CloseSlot(ctx, slotID)
			})
			require.NoError(t, err)

			err = s.InTx(ctx, func(tx repository.Tx) error {
				return tx.CloseSlot(ctx, slotID)
			})
			assert.ErrorIs(t, err, repository.ErrSlotTaken)

			states, err := s.ListAdvisorSlots(ctx, advisor.ID, date, date.AddDate(0, 0, 1))
			require.NoError(t, err)
			require.Len(t, states, 1)
			assert.True(t, states[0].HasReservation())
			assert.Equal(t, "hello", states[0].Message)

			day, err := s.ListDaySlots(ctx, date)
			require.NoError(t, err)
			require.Len(t, day, 1)
			require.NotNil(t, day[0].Advisor)
			assert.Equal(t, "Ada Lovelace", day[0].Advisor.Name)
		})
	}
}

func TestStoreUniqueConstraints(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			advisor, student := seed(t, s)
			other := &model.User{Email: "other@uni.test", Role: model.RoleStudent, OnboardingCompleted: true}
			require.NoError(t, s.CreateUser(ctx, other))

			date, _ := calendar.ParseDate("2025-03-10")
			slotIDs := make([]int64, 2)
			for i, start := range []calendar.TimeOfDay{calendar.NewTimeOfDay(10, 0), calendar.NewTimeOfDay(11, 0)} {
				key := model.SlotKey{AdvisorID: advisor.ID, Date: date, Start: start}
				require.NoError(t, s.InTx(ctx, func(tx repository.Tx) error {
					if err := tx.EnsureSlot(ctx, key, start.Add(30*time.Minute)); err != nil {
						return err
					}
					slot, err := tx.LockSlot(ctx, key)
					if err != nil {
						return err
					}
					slotIDs[i] = slot.ID
					return tx.SetSlotOpen(ctx, slot.ID, true)
				}))
			}

			book := func(slotID, studentID int64, start calendar.TimeOfDay) error {
				return s.InTx(ctx, func(tx repository.Tx) error {
					return tx.CreateReservation(ctx, &model.Reservation{
						SlotID: slotID, StudentID: studentID, AdvisorID: advisor.ID,
						Date: date, Start: start, End: start.Add(30 * time.Minute), CreatedAt: time.Now(),
					})
				})
			}

			require.NoError(t, book(slotIDs[0], student.ID, calendar.NewTimeOfDay(10, 0)))
			assert.ErrorIs(t, book(slotIDs[0], other.ID, calendar.NewTimeOfDay(10, 0)), repository.ErrSlotTaken)
			assert.ErrorIs(t, book(slotIDs[1], student.ID, calendar.NewTimeOfDay(11, 0)), repository.ErrStudentDayTaken)
		})
	}
}

func TestStoreConcurrentLockSerializes(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			advisor, _ := seed(t, s)
			date, _ := calendar.ParseDate("2025-03-12")
			start := calendar.NewTimeOfDay(9, 0)
			key := model.SlotKey{AdvisorID: advisor.ID, Date: date, Start: start}

			var wg sync.WaitGroup
			for i := 0; i < 6; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := s.InTx(ctx, func(tx repository.Tx) error {
						if err := tx.EnsureSlot(ctx, key, start.Add(30*time.Minute)); err != nil {
							return err
						}
						slot, err := tx.LockSlot(ctx, key)
						if err != nil {
							return err
						}
						return tx.SetSlotOpen(ctx, slot.ID, !slot.IsOpen)
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			states, err := s.ListAdvisorSlots(ctx, advisor.ID, date, date.AddDate(0, 0, 1))
			require.NoError(t, err)
			require.Len(t, states, 1)
			// Six serialized flips return the slot to closed.
			assert.False(t, states[0].IsOpen)
		})
	}
}
