package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/repository"
	"go.uber.org/zap"
)

var ErrEmailTaken = errors.New("email already registered")

// AccountService is the thin account boundary the booking core consults:
// roles, onboarding, advisor capabilities, and notification channels.
type AccountService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewAccountService(store repository.Store, logger *zap.Logger) *AccountService {
	return &AccountService{store: store, logger: logger}
}

func (s *AccountService) Get(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *AccountService) Role(ctx context.Context, userID int64) (model.Role, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (s *AccountService) HasCompletedOnboarding(ctx context.Context, studentID int64) (bool, error) {
	u, err := s.Get(ctx, studentID)
	if err != nil {
		return false, err
	}
	return u.Role == model.RoleStudent && u.OnboardingCompleted, nil
}

// IsBookable reports whether the advisor currently accepts reservations.
// A user without an advisor profile is never bookable.
func (s *AccountService) IsBookable(ctx context.Context, advisorID int64) (bool, error) {
	a, err := s.store.GetAdvisor(ctx, advisorID)
	if err != nil {
		return false, fmt.Errorf("get advisor: %w", err)
	}
	return a != nil && a.IsBookable(), nil
}

func (s *AccountService) BookableAdvisors(ctx context.Context) ([]*model.Advisor, error) {
	return s.store.ListBookableAdvisors(ctx)
}

type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Role      model.Role
}

// RegisterUser is the admin registration path. Teachers get an inactive
// advisor profile so they can publish slots once activated.
func (s *AccountService) RegisterUser(ctx context.Context, in RegisterInput) (*model.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, invalid("email", "%q is not an address", in.Email)
	}
	if !in.Role.Valid() {
		return nil, invalid("role", "unknown role %q", in.Role)
	}

	existing, err := s.store.GetUserByEmail(ctx, addr.Address)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	user := &model.User{
		Email:     strings.ToLower(addr.Address),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      in.Role,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if user.Role == model.RoleTeacher {
		if err := s.store.UpsertAdvisor(ctx, &model.Advisor{UserID: user.ID}); err != nil {
			return nil, fmt.Errorf("create advisor profile: %w", err)
		}
	}

	s.logger.Info("User registered",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("role", string(user.Role)))

	return user, nil
}

// SetAdvisorCapabilities replaces the advisor's flags.
func (s *AccountService) SetAdvisorCapabilities(ctx context.Context, a model.Advisor) (*model.Advisor, error) {
	u, err := s.Get(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleTeacher {
		return nil, ErrRoleNotPermitted
	}
	if err := s.store.UpsertAdvisor(ctx, &a); err != nil {
		return nil, fmt.Errorf("upsert advisor: %w", err)
	}
	a.User = u

	s.logger.Info("Advisor capabilities updated",
		zap.Int64("user_id", a.UserID),
		zap.Bool("active", a.ActiveAdvisor),
		zap.Bool("online", a.CanHostOnline),
		zap.Bool("in_person", a.CanHostInPerson),
		zap.Bool("bookable", a.IsBookable()))

	return &a, nil
}

// CompleteOnboarding marks the student's questionnaire as submitted.
func (s *AccountService) CompleteOnboarding(ctx context.Context, studentID int64) error {
	u, err := s.Get(ctx, studentID)
	if err != nil {
		return err
	}
	if u.Role != model.RoleStudent {
		return ErrRoleNotPermitted
	}
	if err := s.store.SetOnboardingCompleted(ctx, studentID, true); err != nil {
		return fmt.Errorf("set onboarding: %w", err)
	}
	s.logger.Info("Onboarding completed", zap.Int64("student_id", studentID))
	return nil
}

// LinkTelegram stores the chat that receives this user's notifications.
func (s *AccountService) LinkTelegram(ctx context.Context, userID, chatID int64) error {
	if chatID == 0 {
		return invalid("chat_id", "required")
	}
	if err := s.store.SetTelegramChatID(ctx, userID, chatID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("set telegram chat: %w", err)
	}
	s.logger.Info("Telegram linked", zap.Int64("user_id", userID), zap.Int64("chat_id", chatID))
	return nil
}
