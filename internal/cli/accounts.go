package cli

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/controller/httpapi"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/service"
)

type UserAddCmd struct {
	Email string `arg:"" help:"E-mail address, unique per user."`
	Role  string `required:"" enum:"student,teacher,admin" help:"One of student, teacher, admin."`
	First string `help:"First name."`
	Last  string `help:"Last name."`
}

func (c *UserAddCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	u, err := a.Accounts.RegisterUser(ctx.Ctx, service.RegisterInput{
		Email:     c.Email,
		FirstName: c.First,
		LastName:  c.Last,
		Role:      model.Role(c.Role),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created %s #%d <%s>\n", u.Role, u.ID, u.Email)
	return nil
}

type UserTelegramCmd struct {
	UserID int64 `arg:"" help:"Portal user id."`
	ChatID int64 `arg:"" help:"Telegram chat id shown by the bot's /start."`
}

func (c *UserTelegramCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if err := a.Accounts.LinkTelegram(ctx.Ctx, c.UserID, c.ChatID); err != nil {
		return err
	}
	fmt.Printf("User #%d now receives notifications in chat %d\n", c.UserID, c.ChatID)
	return nil
}

type UserTokenCmd struct {
	UserID int64         `arg:"" help:"Portal user id."`
	TTL    time.Duration `default:"24h" help:"Token lifetime."`
}

// Run prints a bearer token for local testing of the API.
func (c *UserTokenCmd) Run(ctx *Context) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if _, err := a.Accounts.Get(ctx.Ctx, c.UserID); err != nil {
		return err
	}
	token, err := httpapi.IssueToken([]byte(cfg.JWTSecret), c.UserID, c.TTL, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

type AdvisorSetCmd struct {
	UserID   int64 `arg:"" help:"Teacher user id."`
	Active   bool  `help:"Accept bookings." negatable:""`
	Online   bool  `help:"Can host online meetings." negatable:""`
	InPerson bool  `help:"Can host in-person meetings." negatable:""`
}

func (c *AdvisorSetCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	adv, err := a.Accounts.SetAdvisorCapabilities(ctx.Ctx, model.Advisor{
		UserID:          c.UserID,
		ActiveAdvisor:   c.Active,
		CanHostOnline:   c.Online,
		CanHostInPerson: c.InPerson,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Advisor #%d bookable: %t\n", adv.UserID, adv.IsBookable())
	return nil
}

type StudentOnboardCmd struct {
	UserID int64 `arg:"" help:"Student user id."`
}

func (c *StudentOnboardCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if err := a.Accounts.CompleteOnboarding(ctx.Ctx, c.UserID); err != nil {
		return err
	}
	fmt.Printf("Student #%d may now book.\n", c.UserID)
	return nil
}
