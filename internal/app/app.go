package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/config"
	"github.com/Freeeeeet/advising_portal/internal/controller"
	"github.com/Freeeeeet/advising_portal/internal/controller/httpapi"
	"github.com/Freeeeeet/advising_portal/internal/leadtime"
	"github.com/Freeeeeet/advising_portal/internal/metrics"
	"github.com/Freeeeeet/advising_portal/internal/notify"
	"github.com/Freeeeeet/advising_portal/internal/realtime"
	"github.com/Freeeeeet/advising_portal/internal/repository"
	"github.com/Freeeeeet/advising_portal/internal/service"
	"github.com/go-telegram/bot"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App owns every long-lived component of the portal process.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	Store    repository.Store
	Migrator *Migrator
	Policy   *leadtime.Policy
	Metrics  *metrics.Metrics

	Accounts     *service.AccountService
	Availability *service.AvailabilityService
	Reservations *service.ReservationService
	Projections  *service.ProjectionService

	hub        *realtime.Hub
	dispatcher *notify.Dispatcher
	amqp       *notify.AMQPPublisher
	bot        *controller.BotController
}

// New opens the store and wires services. Notification transports are
// attached only when configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, migrator, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		Store:    store,
		Migrator: migrator,
		Policy:   leadtime.NewPolicy(cfg.LeadTime, cfg.Location, leadtime.SystemClock{}),
		Metrics:  metrics.New(),
		hub:      realtime.NewHub(logger.Named("realtime")),
	}

	notifiers := []notify.Notifier{a.hub}

	var botInstance *bot.Bot
	if cfg.TelegramToken != "" {
		botInstance, err = bot.New(cfg.TelegramToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
		notifiers = append(notifiers, notify.NewTelegramNotifier(botInstance))
	}

	if cfg.AMQPURL != "" {
		a.amqp, err = notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			a.Close()
			return nil, err
		}
		notifiers = append(notifiers, a.amqp)
	}

	a.dispatcher = notify.NewDispatcher(cfg.NotifyQueueSize, a.Metrics, logger.Named("notify"), notifiers...)

	hours := calendar.DefaultWorkingHours()
	a.Accounts = service.NewAccountService(store, logger)
	a.Availability = service.NewAvailabilityService(store, a.Policy, hours, a.dispatcher, a.Metrics, logger)
	a.Reservations = service.NewReservationService(store, a.Policy, hours, a.dispatcher, a.Metrics, logger)
	a.Projections = service.NewProjectionService(store, a.Availability, logger)

	if botInstance != nil {
		a.bot = controller.NewBotController(botInstance, nil, a.Projections, a.Policy.Now, logger.Named("bot"))
	}

	return a, nil
}

// Handler returns the full HTTP surface.
func (a *App) Handler() http.Handler {
	return httpapi.NewServer(httpapi.Deps{
		Availability: a.Availability,
		Reservations: a.Reservations,
		Projections:  a.Projections,
		Store:        a.Store,
		Calendar:     realtime.NewGateway(a.hub, a.cfg.CORSAllowedOrigins, a.logger.Named("ws")),
		Metrics:      a.Metrics,
		JWTSecret:    []byte(a.cfg.JWTSecret),
		CORSOrigins:  a.cfg.CORSAllowedOrigins,
		Logger:       a.logger.Named("http"),
	}).Handler()
}

// Run serves HTTP, the notification dispatcher and the bot until ctx is
// cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to serve the API")
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.dispatcher.Start(ctx)
	defer a.dispatcher.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	if a.bot != nil {
		g.Go(func() error {
			if err := a.bot.RegisterHandlers(gctx); err != nil {
				a.logger.Warn("Bot command menu not set", zap.Error(err))
			}
			return a.bot.Start(gctx)
		})
	}

	err := g.Wait()
	a.logger.Info("Portal stopped")
	return err
}

// Close releases transports and the store.
func (a *App) Close() {
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Warn("Failed to close AMQP publisher", zap.Error(err))
		}
	}
	if a.Migrator != nil {
		_ = a.Migrator.Close()
	}
	if err := a.Store.Close(); err != nil {
		a.logger.Warn("Failed to close store", zap.Error(err))
	}
}
