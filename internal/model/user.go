package model

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID                  int64     `json:"id"`
	Email               string    `json:"email"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	Role                Role      `json:"role"`
	OnboardingCompleted bool      `json:"onboarding_completed"` // questionnaire submitted
	TelegramChatID      *int64    `json:"telegram_chat_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// FullName returns "First Last", falling back to the e-mail.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return u.Email
}

// Advisor holds the capability flags of a teacher account.
type Advisor struct {
	UserID          int64 `json:"user_id"`
	ActiveAdvisor   bool  `json:"active_advisor"`
	CanHostOnline   bool  `json:"can_host_online"`
	CanHostInPerson bool  `json:"can_host_in_person"`

	User *User `json:"user,omitempty"`
}

// IsBookable reports whether students may reserve this advisor's slots.
func (a *Advisor) IsBookable() bool {
	return a.ActiveAdvisor && (a.CanHostOnline || a.CanHostInPerson)
}

// Participant is the public summary of a user attached to slot views.
type Participant struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func ParticipantOf(u *User) *Participant {
	if u == nil {
		return nil
	}
	return &Participant{ID: u.ID, Name: u.FullName(), Email: u.Email}
}
