package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/repository/base"
)

// AdvisorRepository owns advisor_profiles, the capability flags of teachers.
type AdvisorRepository struct {
	*base.Repository
}

func NewAdvisorRepository(db base.Querier) *AdvisorRepository {
	return &AdvisorRepository{Repository: base.NewRepository(db)}
}

func (r *AdvisorRepository) get(ctx context.Context, userID int64, lock string) (*model.Advisor, error) {
	query := `
		SELECT user_id, active_advisor, can_host_online, can_host_in_person
		FROM advisor_profiles
		WHERE user_id = $1
	` + lock

	var a model.Advisor
	err := r.DB().QueryRow(ctx, query, userID).Scan(
		&a.UserID,
		&a.ActiveAdvisor,
		&a.CanHostOnline,
		&a.CanHostInPerson,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get advisor: %w", err)
	}

	return &a, nil
}

func (r *AdvisorRepository) GetByUserID(ctx context.Context, userID int64) (*model.Advisor, error) {
	return r.get(ctx, userID, "")
}

// GetForShare blocks concurrent flag updates until the caller's transaction
// ends.
func (r *AdvisorRepository) GetForShare(ctx context.Context, userID int64) (*model.Advisor, error) {
	return r.get(ctx, userID, "FOR SHARE")
}

func (r *AdvisorRepository) Upsert(ctx context.Context, a *model.Advisor) error {
	query := `
		INSERT INTO advisor_profiles (user_id, active_advisor, can_host_online, can_host_in_person)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET active_advisor = EXCLUDED.active_advisor,
		    can_host_online = EXCLUDED.can_host_online,
		    can_host_in_person = EXCLUDED.can_host_in_person
	`

	_, err := r.DB().Exec(ctx, query, a.UserID, a.ActiveAdvisor, a.CanHostOnline, a.CanHostInPerson)
	if err != nil {
		return fmt.Errorf("upsert advisor: %w", err)
	}

	return nil
}

// ListBookable returns bookable advisors with their user record.
func (r *AdvisorRepository) ListBookable(ctx context.Context) ([]*model.Advisor, error) {
	query := `
		SELECT ap.user_id, ap.active_advisor, ap.can_host_online, ap.can_host_in_person,
		       u.id, u.email, u.first_name, u.last_name, u.role, u.onboarding_completed, u.telegram_chat_id, u.created_at
		FROM advisor_profiles ap
		JOIN users u ON u.id = ap.user_id
		WHERE ap.active_advisor AND (ap.can_host_online OR ap.can_host_in_person)
		ORDER BY u.last_name, u.first_name
	`

	rows, err := r.DB().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list bookable advisors: %w", err)
	}
	defer rows.Close()

	var advisors []*model.Advisor
	for rows.Next() {
		var (
			a model.Advisor
			u model.User
		)
		err := rows.Scan(
			&a.UserID, &a.ActiveAdvisor, &a.CanHostOnline, &a.CanHostInPerson,
			&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.OnboardingCompleted, &u.TelegramChatID, &u.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan advisor: %w", err)
		}
		a.User = &u
		advisors = append(advisors, &a)
	}

	return advisors, rows.Err()
}
