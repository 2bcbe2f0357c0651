package controller

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/notify"
	"github.com/Freeeeeet/advising_portal/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// BotController answers the few commands the notification bot supports.
// Booking itself happens over HTTP; the bot only tells users their chat id
// and shows free slots.
type BotController struct {
	bot         *bot.Bot
	sender      notify.MessageSender
	projections *service.ProjectionService
	now         func() time.Time
	logger      *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	sender notify.MessageSender,
	projections *service.ProjectionService,
	now func() time.Time,
	logger *zap.Logger,
) *BotController {
	if sender == nil {
		sender = botInstance
	}
	return &BotController{
		bot:         botInstance,
		sender:      sender,
		projections: projections,
		now:         now,
		logger:      logger,
	}
}

// RegisterHandlers registers command handlers and the command menu.
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/slots", bot.MatchTypePrefix, c.HandleSlots)

	return c.setCommands(ctx)
}

func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "Show the chat id to link"},
		{Command: "help", Description: "Command reference"},
		{Command: "slots", Description: "Free advising slots for a date"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("Bot commands menu set")
	return nil
}

// Start blocks until ctx is cancelled.
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}

func (c *BotController) HandleStart(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	c.logger.Info("Bot /start", zap.Int64("chat_id", chatID))

	c.reply(ctx, chatID, fmt.Sprintf(
		"<b>Advising portal notifications</b>\n\n"+
			"Your chat id is <code>%d</code>.\n"+
			"Ask the department office to link it to your portal account to receive "+
			"booking confirmations here.", chatID))
}

func (c *BotController) HandleHelp(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	c.reply(ctx, update.Message.Chat.ID,
		"/start - show your chat id\n"+
			"/slots [YYYY-MM-DD] - free slots for a date, today by default")
}

// HandleSlots lists bookable slots for the requested date grouped by time.
func (c *BotController) HandleSlots(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	date := calendar.DateOf(c.now())
	if arg := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/slots")); arg != "" {
		d, err := calendar.ParseDate(arg)
		if err != nil {
			c.reply(ctx, chatID, "Use /slots YYYY-MM-DD")
			return
		}
		date = d
	}

	groups, err := c.projections.OpenSlotsByTime(ctx, date)
	if err != nil {
		if service.IsValidation(err) {
			c.reply(ctx, chatID, html.EscapeString(calendar.FormatDate(date))+" is not a business day.")
			return
		}
		c.logger.Error("Failed to list open slots", zap.Error(err))
		c.reply(ctx, chatID, "Something went wrong, please try again later.")
		return
	}

	c.reply(ctx, chatID, FormatOpenSlots(date, groups))
}

// FormatOpenSlots renders the /slots answer.
func FormatOpenSlots(date time.Time, groups []service.TimeGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Free slots on %s</b>\n", calendar.FormatDate(date))
	if len(groups) == 0 {
		b.WriteString("\nNothing open.")
		return b.String()
	}

	for _, g := range groups {
		start, _ := calendar.ParseTimeOfDay(g.Start)
		end, _ := calendar.ParseTimeOfDay(g.End)
		names := make([]string, 0, len(g.Slots))
		for _, s := range g.Slots {
			if s.Advisor != nil {
				names = append(names, html.EscapeString(s.Advisor.Name))
			}
		}
		fmt.Fprintf(&b, "\n%s–%s: %s", start.Short(), end.Short(), strings.Join(names, ", "))
	}
	return b.String()
}

func (c *BotController) reply(ctx context.Context, chatID int64, text string) {
	_, err := c.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		c.logger.Warn("Failed to send bot reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
