package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	*base.Repository
}

func NewUserRepository(db base.Querier) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(db)}
}

const userColumns = `id, email, first_name, last_name, role, onboarding_completed, telegram_chat_id, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.OnboardingCompleted,
		&user.TelegramChatID,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts the user and fills ID and CreatedAt.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (email, first_name, last_name, role, onboarding_completed, telegram_chat_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.DB().QueryRow(
		ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Role,
		user.OnboardingCompleted,
		user.TelegramChatID,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := scanUser(r.DB().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.DB().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// GetByIDs returns the users found, keyed by ID.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	users := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	rows, err := r.DB().Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users[user.ID] = user
	}

	return users, rows.Err()
}

func (r *UserRepository) ListByRole(ctx context.Context, role model.Role) ([]*model.User, error) {
	rows, err := r.DB().Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY id`, role)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *UserRepository) SetOnboardingCompleted(ctx context.Context, id int64, done bool) error {
	n, err := r.ExecAffected(ctx, `UPDATE users SET onboarding_completed = $1 WHERE id = $2`, done, id)
	if err != nil {
		return fmt.Errorf("set onboarding: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set onboarding for user %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *UserRepository) SetTelegramChatID(ctx context.Context, id int64, chatID int64) error {
	n, err := r.ExecAffected(ctx, `UPDATE users SET telegram_chat_id = $1 WHERE id = $2`, chatID, id)
	if err != nil {
		return fmt.Errorf("set telegram chat: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set telegram chat for user %d: %w", id, ErrNotFound)
	}
	return nil
}
