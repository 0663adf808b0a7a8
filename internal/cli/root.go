package cli

import (
	"context"
	"errors"
	"time"

	"github.com/jmhodges/clock"
	"github.com/spf13/cobra"

	"research-scheduler/internal/repository"
	"research-scheduler/internal/service"
)

// App holds references to everything CLI commands use.
type App struct {
	Activities *repository.ActivityRepository
	Settings   *repository.SettingsRepository
	Reminders  *service.ReminderService
	Notifier   *service.Notifier
	Clock      clock.Clock
	Location   *time.Location
	// Color enables urgency colours; main turns it off when stdout is not a terminal.
	Color bool
	// Serve runs the Telegram bot and the scheduler until ctx is done.
	Serve func(ctx context.Context) error
}

func (a *App) now() time.Time {
	clk := a.Clock
	if clk == nil {
		clk = clock.New()
	}
	loc := a.Location
	if loc == nil {
		loc = time.Local
	}
	return clk.Now().In(loc)
}

// NewRootCmd creates the top-level "researchscheduler" command and registers
// all subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "researchscheduler",
		Short:         "Scadenziario digitale dell'Ufficio Ricerca",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(app),
		newDashboardCmd(app),
		newCalendarCmd(app),
		newListCmd(app),
		newDigestCmd(app),
		newRemindCmd(app),
	)

	return root
}

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the notification scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Serve == nil {
				return errors.New("serve is not configured")
			}
			return app.Serve(cmd.Context())
		},
	}
}
