package cli

import (
	"fmt"

	"github.com/Freeeeeet/advising_portal/internal/config"
	"go.uber.org/zap"
)

type ServeCmd struct {
	NoMigrate bool `help:"Skip applying pending migrations on startup."`
}

func (c *ServeCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}

	if !c.NoMigrate {
		if err := a.Migrator.Run(ctx.Ctx); err != nil {
			return err
		}
	}

	cfg, _ := ctx.Config()
	ctx.Logger().Info("Starting advising portal",
		zap.String("environment", cfg.Environment),
		zap.String("db_driver", cfg.DBDriver),
		zap.Duration("lead_time", cfg.LeadTime),
		zap.String("time_zone", cfg.Location.String()),
		zap.Bool("telegram", cfg.TelegramToken != ""),
		zap.Bool("amqp", cfg.AMQPURL != ""))

	return a.Run(ctx.Ctx)
}

type MigrateUpCmd struct{}

func (c *MigrateUpCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if err := a.Migrator.Run(ctx.Ctx); err != nil {
		return err
	}
	fmt.Println("Database is up to date.")
	return nil
}

type MigrateStatusCmd struct{}

func (c *MigrateStatusCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	version, err := a.Migrator.Version(ctx.Ctx)
	if err != nil {
		return err
	}
	pending, err := a.Migrator.Pending(ctx.Ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Schema version: %d\n", version)
	if pending {
		fmt.Println("Pending migrations: yes (run `portal migrate up`)")
	} else {
		fmt.Println("Pending migrations: none")
	}
	return nil
}

type KeyringSetDSNCmd struct {
	DSN string `arg:"" help:"Postgres connection string to store in the OS keyring."`
}

func (c *KeyringSetDSNCmd) Run(_ *Context) error {
	if err := config.SetDSN(c.DSN); err != nil {
		return err
	}
	fmt.Println("DSN stored in the OS keyring.")
	return nil
}

type KeyringDeleteDSNCmd struct{}

func (c *KeyringDeleteDSNCmd) Run(_ *Context) error {
	if err := config.DeleteDSN(); err != nil {
		return err
	}
	fmt.Println("DSN removed from the OS keyring.")
	return nil
}
