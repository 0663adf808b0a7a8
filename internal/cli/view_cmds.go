package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"research-scheduler/internal/model"
	"research-scheduler/internal/service"
)

func newDashboardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show counters and pending deadlines grouped by month",
		RunE: func(cmd *cobra.Command, args []string) error {
			writeDashboard(cmd.OutOrStdout(), palette{color: app.Color}, app.Activities.List(), app.now())
			return nil
		},
	}
}

func newCalendarCmd(app *App) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show a month grid with its pending deadlines",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := app.now()
			year, m := now.Year(), now.Month()
			if month != "" {
				t, err := time.Parse("2006-01", month)
				if err != nil {
					return fmt.Errorf("invalid --month %q, expected YYYY-MM", month)
				}
				year, m = t.Year(), t.Month()
			}
			cal := service.MonthIndex(year, m, app.Activities.List())
			writeCalendar(cmd.OutOrStdout(), palette{color: app.Color}, cal, now)
			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "Month to show (YYYY-MM), default current")

	return cmd
}

func newListCmd(app *App) *cobra.Command {
	filter := service.Filter{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities filtered by category, status and text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter.Category != service.FilterAll && !model.Category(filter.Category).Valid() {
				return fmt.Errorf("unknown category %q", filter.Category)
			}
			switch filter.Status {
			case service.FilterAll, string(model.StatusPending), string(model.StatusCompleted):
			default:
				return fmt.Errorf("unknown status %q", filter.Status)
			}
			list := service.FilterActivities(app.Activities.List(), filter)
			writeList(cmd.OutOrStdout(), palette{color: app.Color}, list, app.now())
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Category, "category", service.FilterAll, "Macrofunction id or \"all\"")
	cmd.Flags().StringVar(&filter.Status, "status", service.FilterAll, "pending, completed or \"all\"")
	cmd.Flags().StringVar(&filter.Search, "search", "", "Case-insensitive text in title or description")

	return cmd
}

func writeDashboard(w io.Writer, p palette, list []model.Activity, now time.Time) {
	s := service.AggregateStats(list, now)
	fmt.Fprintln(w, p.header("Scadenziario Ufficio Ricerca"))
	fmt.Fprintf(w, "Totali %d · In corso %d · Completate %d · Urgenti %s\n",
		s.Total, s.Pending, s.Completed, p.urgency(service.UrgencyUrgent, fmt.Sprint(s.Urgent)))

	upcoming := service.SortUpcoming(list, now)
	if len(upcoming) == 0 {
		fmt.Fprintln(w, "\nNessuna scadenza in corso.")
		return
	}
	for _, g := range service.GroupByMonth(upcoming, now.Location()) {
		fmt.Fprintf(w, "\n%s\n", g.Label)
		for _, a := range g.Activities {
			writeRow(w, p, a, now)
		}
	}
}

func writeRow(w io.Writer, p palette, a model.Activity, now time.Time) {
	days, ok := service.DaysLeft(a, now)
	var badge string
	switch {
	case !a.IsPending():
		badge = p.dim(fmt.Sprintf("%-9s", "fatta"))
	case !ok:
		badge = p.dim(fmt.Sprintf("%-9s", "data?"))
	default:
		u := service.UrgencyForDays(days)
		badge = p.urgency(u, fmt.Sprintf("%-9s", u.Label()))
	}
	fmt.Fprintf(w, "  %s  %s  %s %s\n", a.Deadline, badge, a.Title, p.dim("["+a.Category.Label()+"]"))
}

func writeCalendar(w io.Writer, p palette, cal service.CalendarMonth, now time.Time) {
	fmt.Fprintln(w, p.header(cal.Label))
	fmt.Fprintln(w, "Lu  Ma  Me  Gi  Ve  Sa  Do")

	var line strings.Builder
	col := 0
	for i := 0; i < cal.FirstWeekday; i++ {
		line.WriteString("    ")
		col++
	}
	for day := 1; day <= cal.DaysInMonth; day++ {
		cell := fmt.Sprintf("%2d", day)
		switch {
		case len(cal.On(day)) > 0:
			line.WriteString(p.urgency(urgencyOfDay(cal, day, now), cell+"*"))
		case now.Year() == cal.Year && now.Month() == cal.Month && now.Day() == day:
			line.WriteString(cell + "·")
		default:
			line.WriteString(cell + " ")
		}
		col++
		if col == 7 {
			fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
			line.Reset()
			col = 0
			continue
		}
		line.WriteString(" ")
	}
	if line.Len() > 0 {
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}

	var listed bool
	for day := 1; day <= cal.DaysInMonth; day++ {
		for _, a := range cal.On(day) {
			if !listed {
				fmt.Fprintln(w)
				listed = true
			}
			fmt.Fprintf(w, "%2d  %s %s\n", day, a.Title, p.dim("["+a.Category.Label()+"]"))
		}
	}
	if !listed {
		fmt.Fprintln(w, "\nNessuna scadenza in questo mese.")
	}
}

func urgencyOfDay(cal service.CalendarMonth, day int, now time.Time) service.Urgency {
	date := time.Date(cal.Year, cal.Month, day, 0, 0, 0, 0, now.Location())
	return service.UrgencyOf(date, now)
}

func writeList(w io.Writer, p palette, list []model.Activity, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, "Nessuna attività trovata.")
		return
	}
	for _, a := range list {
		fmt.Fprintf(w, "%s ", p.dim(fmt.Sprintf("#%d", a.ID)))
		writeRow(w, p, a, now)
	}
	fmt.Fprintln(w, p.dim(fmt.Sprintf("%d attività", len(list))))
}
