package service_test

import (
	"context"
	"testing"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBoardAndOpenSlots(t *testing.T) {
	e := newEnv(t, "2025-03-10 09:00")
	ctx := context.Background()
	a := e.advisor(t, "a@uni.test")
	b := e.advisor(t, "b@uni.test")
	inactive := e.advisor(t, "c@uni.test")
	student := e.student(t, "student@uni.test")

	e.open(t, ref(t, a.ID, "2025-03-10", "14:00"))
	e.open(t, ref(t, b.ID, "2025-03-10", "14:00"))
	e.open(t, ref(t, b.ID, "2025-03-10", "11:00"))
	e.open(t, ref(t, inactive.ID, "2025-03-10", "11:00"))
	booked := ref(t, a.ID, "2025-03-10", "15:00")
	e.open(t, booked)
	_, err := e.book(student.ID, booked, "")
	require.NoError(t, err)

	_, err = e.accounts.SetAdvisorCapabilities(ctx, model.Advisor{UserID: inactive.ID})
	require.NoError(t, err)

	date, err := calendar.ParseDate("2025-03-10")
	require.NoError(t, err)

	board, err := e.projections.DayBoard(ctx, student.ID, date)
	require.NoError(t, err)
	assert.Len(t, board, 4)
	for _, st := range board {
		assert.NotEqual(t, inactive.ID, st.AdvisorID)
	}

	groups, err := e.projections.OpenSlotsByTime(ctx, date)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "11:00:00", groups[0].Start)
	assert.Len(t, groups[0].Slots, 1)
	assert.Equal(t, "14:00:00", groups[1].Start)
	require.Len(t, groups[1].Slots, 2)
	assert.Equal(t, a.ID, groups[1].Slots[0].AdvisorID)
	assert.Equal(t, b.ID, groups[1].Slots[1].AdvisorID)

	// Past the cutoff the 11:00 group disappears.
	e.clock.Set(at("2025-03-10 10:30"))
	groups, err = e.projections.OpenSlotsByTime(ctx, date)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "14:00:00", groups[0].Start)

	saturday, err := calendar.ParseDate("2025-03-08")
	require.NoError(t, err)
	_, err = e.projections.DayBoard(ctx, student.ID, saturday)
	assert.True(t, service.IsValidation(err))
}

func TestBookingDetailsHiddenFromOtherStudents(t *testing.T) {
	e := newEnv(t, "2025-03-10 09:00")
	ctx := context.Background()
	advisor := e.advisor(t, "advisor@uni.test")
	other := e.advisor(t, "other@uni.test")
	alice := e.student(t, "alice@uni.test")
	bob := e.student(t, "bob@uni.test")
	admin := e.register(t, "admin@uni.test", model.RoleAdmin)

	slot := ref(t, advisor.ID, "2025-03-10", "14:00")
	e.open(t, slot)
	_, err := e.book(alice.ID, slot, "my private health issue")
	require.NoError(t, err)

	date, err := calendar.ParseDate("2025-03-10")
	require.NoError(t, err)

	for _, tc := range []struct {
		name   string
		viewer int64
		sees   bool
	}{
		{"advisor", advisor.ID, true},
		{"admin", admin.ID, true},
		{"booking student", alice.ID, true},
		{"other student", bob.ID, false},
		{"other advisor", other.ID, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			month, err := e.projections.AdvisorMonth(ctx, tc.viewer, advisor.ID, 2025, 3)
			require.NoError(t, err)
			cell := month.Cell(date, slot.Start)
			assert.True(t, cell.HasReservation)

			board, err := e.projections.DayBoard(ctx, tc.viewer, date)
			require.NoError(t, err)
			require.Len(t, board, 1)
			assert.True(t, board[0].HasReservation())

			if tc.sees {
				require.NotNil(t, cell.Student)
				assert.Equal(t, alice.ID, cell.Student.ID)
				assert.Equal(t, "my private health issue", cell.Message)
				require.NotNil(t, board[0].Student)
				assert.Equal(t, "my private health issue", board[0].Message)
				return
			}
			assert.Nil(t, cell.Student)
			assert.Empty(t, cell.Message)
			assert.Nil(t, board[0].Student)
			assert.Empty(t, board[0].Message)
		})
	}

	_, err = e.projections.AdvisorMonth(ctx, 9999, advisor.ID, 2025, 3)
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestReservationsScopedByRole(t *testing.T) {
	e := newEnv(t, "2025-03-10 09:00")
	ctx := context.Background()
	a := e.advisor(t, "a@uni.test")
	b := e.advisor(t, "b@uni.test")
	s1 := e.student(t, "s1@uni.test")
	s2 := e.student(t, "s2@uni.test")
	admin := e.register(t, "admin@uni.test", model.RoleAdmin)

	for _, tc := range []struct {
		student *model.User
		slot    service.SlotRef
	}{
		{s1, ref(t, a.ID, "2025-03-10", "14:00")},
		{s1, ref(t, b.ID, "2025-03-11", "10:00")},
		{s2, ref(t, a.ID, "2025-03-12", "16:00")},
	} {
		e.open(t, tc.slot)
		_, err := e.book(tc.student.ID, tc.slot, "hello")
		require.NoError(t, err)
	}

	list, err := e.projections.Reservations(ctx, service.ReservationQuery{ViewerID: s1.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2025-03-10", calendar.FormatDate(list[0].Date))
	require.NotNil(t, list[0].Advisor)
	assert.Equal(t, a.ID, list[0].Advisor.ID)

	list, err = e.projections.Reservations(ctx, service.ReservationQuery{ViewerID: a.ID, Order: model.OrderDesc})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2025-03-12", calendar.FormatDate(list[0].Date))
	require.NotNil(t, list[0].Student)
	assert.Equal(t, s2.ID, list[0].Student.ID)

	from, _ := calendar.ParseDate("2025-03-11")
	list, err = e.projections.Reservations(ctx, service.ReservationQuery{ViewerID: admin.ID, From: from})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = e.projections.Reservations(ctx, service.ReservationQuery{ViewerID: admin.ID, Order: "sideways"})
	assert.True(t, service.IsValidation(err))

	_, err = e.projections.Reservations(ctx, service.ReservationQuery{ViewerID: 9999})
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}
