package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/advising_portal/internal/cli"
	"github.com/alecthomas/kong"
)

var CLI struct {
	Version kong.VersionFlag

	Serve   cli.ServeCmd `cmd:"" help:"Run the HTTP API, notifications and the bot." default:"1"`
	Migrate struct {
		Up     cli.MigrateUpCmd     `cmd:"" help:"Apply pending migrations." default:"1"`
		Status cli.MigrateStatusCmd `cmd:"" help:"Show the schema version."`
	} `cmd:"" help:"Manage the database schema."`
	Calendar cli.CalendarCmd `cmd:"" help:"Print an advisor's month."`
	User     struct {
		Add      cli.UserAddCmd      `cmd:"" help:"Register a user."`
		Telegram cli.UserTelegramCmd `cmd:"" help:"Link a Telegram chat for notifications."`
		Token    cli.UserTokenCmd    `cmd:"" help:"Print an API bearer token for a user."`
	} `cmd:"" help:"Manage users."`
	Advisor struct {
		Set cli.AdvisorSetCmd `cmd:"" help:"Set advisor capabilities."`
	} `cmd:"" help:"Manage advisors."`
	Student struct {
		Onboard cli.StudentOnboardCmd `cmd:"" help:"Mark the onboarding questionnaire as completed."`
	} `cmd:"" help:"Manage students."`
	Keyring struct {
		SetDSN    cli.KeyringSetDSNCmd    `cmd:"" name:"set-dsn" help:"Store the Postgres DSN in the OS keyring."`
		DeleteDSN cli.KeyringDeleteDSNCmd `cmd:"" name:"delete-dsn" help:"Remove the stored DSN."`
	} `cmd:"" help:"Manage stored credentials."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("portal"),
		kong.Description("University advising slot reservations"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": "v0.1.0"},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx := cli.NewContext(ctx)
	err := kctx.Run(appCtx)
	appCtx.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
