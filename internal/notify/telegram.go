package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MessageSender is the subset of *bot.Bot used for delivery.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier sends the student confirmation, the advisor alert and an
// admin copy for every new reservation. Recipients without a linked chat are
// skipped.
type TelegramNotifier struct {
	sender MessageSender
}

func NewTelegramNotifier(sender MessageSender) *TelegramNotifier {
	return &TelegramNotifier{sender: sender}
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) Notify(ctx context.Context, e Event) error {
	if e.Kind != KindReservationCreated || e.Reservation == nil {
		return nil
	}
	r := e.Reservation

	var errs []error
	send := func(c Contact, text string) {
		if c.TelegramChatID == nil {
			return
		}
		_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    *c.TelegramChatID,
			Text:      text,
			ParseMode: models.ParseModeHTML,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("send to user %d: %w", c.UserID, err))
		}
	}

	send(r.Student, StudentConfirmation(r))
	send(r.Advisor, AdvisorAlert(r))
	for _, admin := range r.Admins {
		send(admin, AdminCopy(r))
	}

	return errors.Join(errs...)
}

func when(r *ReservationCreated) string {
	return fmt.Sprintf("%s %s–%s", r.Date, short(r.Start), short(r.End))
}

// short cuts "HH:MM:SS" to "HH:MM".
func short(t string) string {
	if len(t) >= 5 {
		return t[:5]
	}
	return t
}

func firstNameOr(c Contact, fallback string) string {
	if name, _, _ := strings.Cut(c.Name, " "); name != "" && name != c.Email {
		return html.EscapeString(name)
	}
	return fallback
}

func quoted(label, msg string) string {
	if msg == "" {
		return ""
	}
	return fmt.Sprintf("\n<b>%s</b>\n%s\n", label, html.EscapeString(msg))
}

func StudentConfirmation(r *ReservationCreated) string {
	return fmt.Sprintf(
		"Hi %s,\n\nYour booking with %s is confirmed.\n<b>When:</b> %s\n%s",
		firstNameOr(r.Student, "there"),
		html.EscapeString(r.Advisor.Email),
		when(r),
		quoted("Your message to the advisor:", r.Message),
	)
}

func AdvisorAlert(r *ReservationCreated) string {
	return fmt.Sprintf(
		"Hi %s,\n\n%s booked a slot.\n<b>When:</b> %s\n%s",
		firstNameOr(r.Advisor, "there"),
		html.EscapeString(r.Student.Email),
		when(r),
		quoted("Message from student:", r.Message),
	)
}

func AdminCopy(r *ReservationCreated) string {
	return fmt.Sprintf(
		"New booking created.\n<b>Teacher:</b> %s\n<b>Student:</b> %s\n<b>When:</b> %s\n%s",
		html.EscapeString(r.Advisor.Email),
		html.EscapeString(r.Student.Email),
		when(r),
		quoted("Message:", r.Message),
	)
}
