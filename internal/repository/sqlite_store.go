package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore is the embedded single-node backend. SQLite has no row locks,
// so every transaction starts IMMEDIATE and takes the database write lock;
// writers are serialized and the unique constraints back the invariants.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteDSN builds the connection string used by OpenSQLite.
func SQLiteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// OpenSQLite opens (creating if needed) the database at path. Migrations are
// applied separately.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

// DB exposes the handle for migrations.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if mapped := sqliteConstraint(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sqliteConstraint maps a UNIQUE failure on reservations to a sentinel.
func sqliteConstraint(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return nil
	}

	msg := se.Error()
	switch {
	case strings.Contains(msg, "reservations.slot_id"):
		return ErrSlotTaken
	case strings.Contains(msg, "reservations.student_id"):
		return ErrStudentDayTaken
	}
	return nil
}

const timestampLayout = time.RFC3339Nano

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

type sqlScanner interface {
	Scan(dest ...any) error
}

const sqliteSlotColumns = `s.id, s.advisor_id, s.slot_date, s.start_time, s.end_time, s.is_open, s.created_at`

func scanSQLiteSlot(row sqlScanner, slot *model.Slot, extra ...any) error {
	var date, start, end, created string
	dest := append([]any{&slot.ID, &slot.AdvisorID, &date, &start, &end, &slot.IsOpen, &created}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}

	d, err := calendar.ParseDate(date)
	if err != nil {
		return err
	}
	slot.Date = d
	if slot.CreatedAt, err = parseTimestamp(created); err != nil {
		return err
	}
	return parseSlotTimes(slot, start, end)
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) EnsureSlot(ctx context.Context, key model.SlotKey, end calendar.TimeOfDay) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO slots (advisor_id, slot_date, start_time, end_time, is_open, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT (advisor_id, slot_date, start_time) DO NOTHING
	`, key.AdvisorID, calendar.FormatDate(key.Date), key.Start.String(), end.String(), formatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("ensure slot: %w", err)
	}
	return nil
}

// LockSlot is a plain read: the IMMEDIATE transaction already holds the
// database write lock.
func (t *sqliteTx) LockSlot(ctx context.Context, key model.SlotKey) (*model.Slot, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+sqliteSlotColumns+`
		FROM slots s
		WHERE s.advisor_id = ? AND s.slot_date = ? AND s.start_time = ?
	`, key.AdvisorID, calendar.FormatDate(key.Date), key.Start.String())

	var slot model.Slot
	if err := scanSQLiteSlot(row, &slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	return &slot, nil
}

func (t *sqliteTx) SetSlotOpen(ctx context.Context, slotID int64, open bool) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE slots SET is_open = ? WHERE id = ?`, open, slotID)
	if err != nil {
		return fmt.Errorf("set slot open: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set slot open %d: %w", slotID, ErrNotFound)
	}
	return nil
}

func (t *sqliteTx) CloseSlot(ctx context.Context, slotID int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE slots SET is_open = 0 WHERE id = ? AND is_open = 1`, slotID)
	if err != nil {
		return fmt.Errorf("close slot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSlotTaken
	}
	return nil
}

func (t *sqliteTx) SlotHasReservation(ctx context.Context, slotID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE slot_id = ?)`, slotID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot reservation: %w", err)
	}
	return exists, nil
}

func (t *sqliteTx) StudentHasReservationOn(ctx context.Context, studentID int64, date time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reservations WHERE student_id = ? AND slot_date = ?)`,
		studentID, calendar.FormatDate(date),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check student reservation: %w", err)
	}
	return exists, nil
}

func (t *sqliteTx) AdvisorForShare(ctx context.Context, advisorID int64) (*model.Advisor, error) {
	return getSQLiteAdvisor(ctx, t.tx, advisorID)
}

func (t *sqliteTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO reservations (slot_id, student_id, slot_date, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.SlotID, r.StudentID, calendar.FormatDate(r.Date), r.Message, formatTimestamp(r.CreatedAt))
	if err != nil {
		if mapped := sqliteConstraint(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("create reservation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	r.ID = id
	return nil
}

type sqlQueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSQLiteAdvisor(ctx context.Context, q sqlQueryRower, userID int64) (*model.Advisor, error) {
	var a model.Advisor
	err := q.QueryRowContext(ctx, `
		SELECT user_id, active_advisor, can_host_online, can_host_in_person
		FROM advisor_profiles
		WHERE user_id = ?
	`, userID).Scan(&a.UserID, &a.ActiveAdvisor, &a.CanHostOnline, &a.CanHostInPerson)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get advisor: %w", err)
	}
	return &a, nil
}

func (s *SQLiteStore) ListAdvisorSlots(ctx context.Context, advisorID int64, from, to time.Time) ([]*model.SlotState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteSlotColumns+`, res.id, res.message, u.id, u.first_name, u.last_name, u.email
		FROM slots s
		LEFT JOIN reservations res ON res.slot_id = s.id
		LEFT JOIN users u ON u.id = res.student_id
		WHERE s.advisor_id = ? AND s.slot_date >= ? AND s.slot_date < ?
		ORDER BY s.slot_date, s.start_time
	`, advisorID, calendar.FormatDate(from), calendar.FormatDate(to))
	if err != nil {
		return nil, fmt.Errorf("list advisor slots: %w", err)
	}
	defer rows.Close()

	var states []*model.SlotState
	for rows.Next() {
		state, err := scanSQLiteSlotState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

func (s *SQLiteStore) ListDaySlots(ctx context.Context, date time.Time) ([]*model.SlotState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteSlotColumns+`, res.id, res.message, u.id, u.first_name, u.last_name, u.email,
		       a.id, a.first_name, a.last_name, a.email
		FROM slots s
		JOIN advisor_profiles ap ON ap.user_id = s.advisor_id
		JOIN users a ON a.id = s.advisor_id
		LEFT JOIN reservations res ON res.slot_id = s.id
		LEFT JOIN users u ON u.id = res.student_id
		WHERE s.slot_date = ?
		  AND (s.is_open = 1 OR res.id IS NOT NULL)
		  AND ap.active_advisor = 1
		  AND (ap.can_host_online = 1 OR ap.can_host_in_person = 1)
		ORDER BY a.last_name, a.first_name, s.start_time
	`, calendar.FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("list day slots: %w", err)
	}
	defer rows.Close()

	var states []*model.SlotState
	for rows.Next() {
		var (
			advisorID                 int64
			advisorFirst, advisorLast string
			advisorEmail              string
		)
		state, err := scanSQLiteSlotState(rows, &advisorID, &advisorFirst, &advisorLast, &advisorEmail)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		state.Advisor = model.ParticipantOf(&model.User{
			ID: advisorID, FirstName: advisorFirst, LastName: advisorLast, Email: advisorEmail,
		})
		states = append(states, state)
	}
	return states, rows.Err()
}

func scanSQLiteSlotState(row sqlScanner, extra ...any) (*model.SlotState, error) {
	var (
		state        model.SlotState
		resID        sql.NullInt64
		message      sql.NullString
		studentID    sql.NullInt64
		first, last  sql.NullString
		studentEmail sql.NullString
	)

	dest := append([]any{&resID, &message, &studentID, &first, &last, &studentEmail}, extra...)
	if err := scanSQLiteSlot(row, &state.Slot, dest...); err != nil {
		return nil, err
	}

	if resID.Valid {
		id := resID.Int64
		state.ReservationID = &id
		state.Message = message.String
	}
	if studentID.Valid {
		state.Student = model.ParticipantOf(&model.User{
			ID:        studentID.Int64,
			FirstName: first.String,
			LastName:  last.String,
			Email:     studentEmail.String,
		})
	}
	return &state, nil
}

func (s *SQLiteStore) ListReservations(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if filter.StudentID != 0 {
		where = append(where, "res.student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.AdvisorID != 0 {
		where = append(where, "s.advisor_id = ?")
		args = append(args, filter.AdvisorID)
	}
	if !filter.From.IsZero() {
		where = append(where, "res.slot_date >= ?")
		args = append(args, calendar.FormatDate(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "res.slot_date < ?")
		args = append(args, calendar.FormatDate(filter.To))
	}

	query := `
		SELECT res.id, res.slot_id, res.student_id, s.advisor_id, res.slot_date,
		       s.start_time, s.end_time, res.message, res.created_at,
		       st.first_name, st.last_name, st.email,
		       ad.first_name, ad.last_name, ad.email
		FROM reservations res
		JOIN slots s ON s.id = res.slot_id
		JOIN users st ON st.id = res.student_id
		JOIN users ad ON ad.id = s.advisor_id
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY res.slot_date " + orderSQL(filter.Order) + ", s.start_time " + orderSQL(filter.Order)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []*model.Reservation
	for rows.Next() {
		var (
			res                      model.Reservation
			date, start, end, when   string
			stFirst, stLast, stEmail string
			adFirst, adLast, adEmail string
		)
		err := rows.Scan(
			&res.ID, &res.SlotID, &res.StudentID, &res.AdvisorID, &date,
			&start, &end, &res.Message, &when,
			&stFirst, &stLast, &stEmail,
			&adFirst, &adLast, &adEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		if res.Date, err = calendar.ParseDate(date); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		if res.CreatedAt, err = parseTimestamp(when); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		if err := fillReservation(&res, start, end); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res.Student = model.ParticipantOf(&model.User{ID: res.StudentID, FirstName: stFirst, LastName: stLast, Email: stEmail})
		res.Advisor = model.ParticipantOf(&model.User{ID: res.AdvisorID, FirstName: adFirst, LastName: adLast, Email: adEmail})
		out = append(out, &res)
	}
	return out, rows.Err()
}

const sqliteUserColumns = `id, email, first_name, last_name, role, onboarding_completed, telegram_chat_id, created_at`

func scanSQLiteUser(row sqlScanner) (*model.User, error) {
	var (
		u       model.User
		chatID  sql.NullInt64
		created string
	)
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.OnboardingCompleted, &chatID, &created)
	if err != nil {
		return nil, err
	}
	if chatID.Valid {
		id := chatID.Int64
		u.TelegramChatID = &id
	}
	if u.CreatedAt, err = parseTimestamp(created); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	u, err := scanSQLiteUser(s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, "email = ? COLLATE NOCASE", email)
}

func (s *SQLiteStore) GetUsers(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	users := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users[u.ID] = u
	}
	return users, rows.Err()
}

func (s *SQLiteStore) ListAdmins(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE role = ? ORDER BY id`, model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) GetAdvisor(ctx context.Context, userID int64) (*model.Advisor, error) {
	return getSQLiteAdvisor(ctx, s.db, userID)
}

func (s *SQLiteStore) ListBookableAdvisors(ctx context.Context) ([]*model.Advisor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ap.user_id, ap.active_advisor, ap.can_host_online, ap.can_host_in_person,
		       u.id, u.email, u.first_name, u.last_name, u.role, u.onboarding_completed, u.telegram_chat_id, u.created_at
		FROM advisor_profiles ap
		JOIN users u ON u.id = ap.user_id
		WHERE ap.active_advisor = 1 AND (ap.can_host_online = 1 OR ap.can_host_in_person = 1)
		ORDER BY u.last_name, u.first_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list bookable advisors: %w", err)
	}
	defer rows.Close()

	var advisors []*model.Advisor
	for rows.Next() {
		var a model.Advisor
		u, err := scanSQLiteUser(advisorUserScanner{rows: rows, advisor: &a})
		if err != nil {
			return nil, fmt.Errorf("scan advisor: %w", err)
		}
		a.User = u
		advisors = append(advisors, &a)
	}
	return advisors, rows.Err()
}

// advisorUserScanner prepends the advisor flag columns to a user scan.
type advisorUserScanner struct {
	rows    *sql.Rows
	advisor *model.Advisor
}

func (s advisorUserScanner) Scan(dest ...any) error {
	a := s.advisor
	return s.rows.Scan(append([]any{&a.UserID, &a.ActiveAdvisor, &a.CanHostOnline, &a.CanHostInPerson}, dest...)...)
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, first_name, last_name, role, onboarding_completed, telegram_chat_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.Email, u.FirstName, u.LastName, u.Role, u.OnboardingCompleted, u.TelegramChatID, formatTimestamp(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertAdvisor(ctx context.Context, a *model.Advisor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO advisor_profiles (user_id, active_advisor, can_host_online, can_host_in_person)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET active_advisor = excluded.active_advisor,
		    can_host_online = excluded.can_host_online,
		    can_host_in_person = excluded.can_host_in_person
	`, a.UserID, a.ActiveAdvisor, a.CanHostOnline, a.CanHostInPerson)
	if err != nil {
		return fmt.Errorf("upsert advisor: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetOnboardingCompleted(ctx context.Context, userID int64, done bool) error {
	return s.updateUser(ctx, "onboarding_completed", done, userID)
}

func (s *SQLiteStore) SetTelegramChatID(ctx context.Context, userID int64, chatID int64) error {
	return s.updateUser(ctx, "telegram_chat_id", chatID, userID)
}

func (s *SQLiteStore) updateUser(ctx context.Context, column string, value any, userID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET `+column+` = ? WHERE id = ?`, value, userID)
	if err != nil {
		return fmt.Errorf("update user %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update user %d: %w", userID, ErrNotFound)
	}
	return nil
}
