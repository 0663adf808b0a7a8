package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"research-scheduler/internal/service"
)

func newDigestCmd(app *App) *cobra.Command {
	var send bool

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print the weekly digest, or send it with --send",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !send {
				subject, body := app.Reminders.WeeklyDigest(app.now())
				fmt.Fprintf(out, "%s\n\n%s\n", subject, body)
				return nil
			}
			sent, err := app.Notifier.SendWeeklyDigest(cmd.Context())
			if err != nil {
				return err
			}
			if !sent {
				fmt.Fprintln(out, "Riepilogo non inviato: disattivato o senza destinatario.")
				return nil
			}
			fmt.Fprintln(out, "Riepilogo inviato.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&send, "send", false, "Deliver through the configured channels")

	return cmd
}

func newRemindCmd(app *App) *cobra.Command {
	var send bool

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Show today's lead-time reminders, or send them with --send",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if send {
				n, err := app.Notifier.SendReminders(cmd.Context())
				fmt.Fprintf(out, "%d promemoria inviati.\n", n)
				return err
			}
			due := app.Reminders.DueReminders(app.now())
			if len(due) == 0 {
				fmt.Fprintln(out, "Nessun promemoria per oggi.")
				return nil
			}
			p := palette{color: app.Color}
			for _, r := range due {
				subject, _ := service.FormatReminder(r)
				fmt.Fprintln(out, p.urgency(service.UrgencyForDays(r.DaysLeft), subject))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&send, "send", false, "Deliver through the configured channels")

	return cmd
}
