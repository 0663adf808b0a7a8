package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"research-scheduler/internal/model"
	"research-scheduler/internal/service"
)

const (
	iconOverdue   = "⚠️"
	iconUrgent    = "⏳"
	iconUpcoming  = "🟡"
	iconFuture    = "🟢"
	iconCompleted = "✔️"
	iconRecurring = "♻️"
	iconNoDate    = "❔"

	maxDashboardItems = 20
	maxListItems      = 25

	// Telegram rejects messages over 4096 characters; the footer needs room.
	maxMessageRunes     = 3800
	maxDescriptionRunes = 600
)

var weekdayHeader = []string{"Lu", "Ma", "Me", "Gi", "Ve", "Sa", "Do"}

func urgencyIcon(u service.Urgency) string {
	switch u {
	case service.UrgencyOverdue:
		return iconOverdue
	case service.UrgencyUrgent:
		return iconUrgent
	case service.UrgencyUpcoming:
		return iconUpcoming
	default:
		return iconFuture
	}
}

func renderStats(s service.Stats) string {
	return fmt.Sprintf("📌 Totali: <b>%d</b> · In corso: <b>%d</b> · Completate: <b>%d</b> · Urgenti: <b>%d</b>",
		s.Total, s.Pending, s.Completed, s.Urgent)
}

// renderDashboard shows the counters and the pending deadlines grouped by month.
func renderDashboard(list []model.Activity, now time.Time) string {
	var b strings.Builder
	b.WriteString("📊 <b>Scadenziario Ufficio Ricerca</b>\n")
	b.WriteString(renderStats(service.AggregateStats(list, now)))
	b.WriteString("\n")

	upcoming := service.SortUpcoming(list, now)
	if len(upcoming) == 0 {
		b.WriteString("\nNessuna scadenza in corso. 🎉")
		return b.String()
	}

	total := len(upcoming)
	if len(upcoming) > maxDashboardItems {
		upcoming = upcoming[:maxDashboardItems]
	}
	shown := 0
	size := utf8.RuneCountInString(b.String())
groups:
	for _, g := range service.GroupByMonth(upcoming, now.Location()) {
		header := fmt.Sprintf("\n<b>%s</b>\n", escape(capitalize(g.Label)))
		for i, a := range g.Activities {
			line := deadlineLine(a, now)
			if i == 0 {
				line = header + line
			}
			n := utf8.RuneCountInString(line)
			if shown > 0 && size+n > maxMessageRunes {
				break groups
			}
			b.WriteString(line)
			size += n
			shown++
		}
	}
	if hidden := total - shown; hidden > 0 {
		b.WriteString(fmt.Sprintf("\n… e altre %d scadenze. Usa /attivita per l'elenco completo.", hidden))
	}
	return strings.TrimRight(b.String(), "\n")
}

func deadlineLine(a model.Activity, now time.Time) string {
	days, ok := service.DaysLeft(a, now)
	if !ok {
		return fmt.Sprintf("%s %s · %s <i>(%s, data non valida)</i>\n",
			iconNoDate, escape(a.Deadline), escape(a.Title), escape(a.Category.Label()))
	}
	u := service.UrgencyForDays(days)
	return fmt.Sprintf("%s %s · %s <i>(%s, %s)</i>\n",
		urgencyIcon(u), displayDate(a.Deadline), escape(a.Title), escape(a.Category.Label()), relativeDays(days))
}

func relativeDays(days int) string {
	switch {
	case days < -1:
		return fmt.Sprintf("scaduta da %d giorni", -days)
	case days == -1:
		return "scaduta ieri"
	case days == 0:
		return "oggi"
	case days == 1:
		return "domani"
	default:
		return fmt.Sprintf("tra %d giorni", days)
	}
}

// renderCalendar draws a Monday-first grid and lists the deadlines below it.
// Days with pending deadlines are marked with an asterisk.
func renderCalendar(cal service.CalendarMonth, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>%s</b>\n<pre>", escape(capitalize(cal.Label))))
	b.WriteString(strings.Join(weekdayHeader, " "))
	b.WriteString("\n")

	col := 0
	for i := 0; i < cal.FirstWeekday; i++ {
		b.WriteString("   ")
		col++
	}
	today := 0
	if now.Year() == cal.Year && now.Month() == cal.Month {
		today = now.Day()
	}
	for day := 1; day <= cal.DaysInMonth; day++ {
		mark := " "
		switch {
		case len(cal.On(day)) > 0:
			mark = "*"
		case day == today:
			mark = "·"
		}
		b.WriteString(fmt.Sprintf("%2d%s", day, mark))
		col++
		if col == 7 {
			b.WriteString("\n")
			col = 0
		}
	}
	out := strings.TrimRight(b.String(), " \n") + "</pre>\n"

	var list strings.Builder
	for day := 1; day <= cal.DaysInMonth; day++ {
		for _, a := range cal.On(day) {
			list.WriteString(fmt.Sprintf("• <b>%d</b> · %s <i>(%s)</i>\n", day, escape(a.Title), escape(a.Category.Label())))
		}
	}
	if list.Len() == 0 {
		return out + "Nessuna scadenza in questo mese."
	}
	return out + strings.TrimRight(list.String(), "\n")
}

// renderList renders the filtered activities and returns the ones shown,
// which get inline action buttons.
func renderList(list []model.Activity, filter service.Filter, now time.Time) (string, []model.Activity) {
	var b strings.Builder
	b.WriteString("📋 <b>Attività</b>")
	if desc := describeFilter(filter); desc != "" {
		b.WriteString(" · " + escape(desc))
	}
	b.WriteString("\n")

	if len(list) == 0 {
		b.WriteString("\nNessuna attività trovata.")
		return b.String(), nil
	}

	limit := list
	if len(limit) > maxListItems {
		limit = limit[:maxListItems]
	}
	size := utf8.RuneCountInString(b.String())
	var shown []model.Activity
	for _, a := range limit {
		card := "\n" + renderActivity(a, now) + "\n"
		n := utf8.RuneCountInString(card)
		if len(shown) > 0 && size+n > maxMessageRunes {
			break
		}
		b.WriteString(card)
		size += n
		shown = append(shown, a)
	}
	if len(list) > len(shown) {
		b.WriteString(fmt.Sprintf("\n… e altre %d. Restringi la ricerca con /attivita.", len(list)-len(shown)))
	}
	return strings.TrimRight(b.String(), "\n"), shown
}

func describeFilter(f service.Filter) string {
	var parts []string
	if f.Category != "" && f.Category != service.FilterAll {
		parts = append(parts, model.Category(f.Category).Label())
	}
	switch model.Status(f.Status) {
	case model.StatusPending:
		parts = append(parts, "in corso")
	case model.StatusCompleted:
		parts = append(parts, "completate")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		parts = append(parts, fmt.Sprintf("«%s»", s))
	}
	return strings.Join(parts, ", ")
}

// renderActivity is the detail card of one activity.
func renderActivity(a model.Activity, now time.Time) string {
	var b strings.Builder
	icon := iconCompleted
	if a.IsPending() {
		icon = iconNoDate
		if days, ok := service.DaysLeft(a, now); ok {
			icon = urgencyIcon(service.UrgencyForDays(days))
		}
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b> <code>#%d</code>\n", icon, escape(a.Title), a.ID))
	b.WriteString(fmt.Sprintf("   🏷 %s\n", escape(a.Category.Label())))

	due := displayDate(a.Deadline)
	if a.IsPending() {
		if days, ok := service.DaysLeft(a, now); ok {
			due += " · " + relativeDays(days)
		}
	} else if a.CompletedAt != nil {
		due += " · completata il " + a.CompletedAt.In(now.Location()).Format("02/01/2006")
	}
	b.WriteString(fmt.Sprintf("   ⏰ %s\n", due))

	if a.Recurring {
		b.WriteString(fmt.Sprintf("   %s %s\n", iconRecurring, recurrenceLabels[a.RecurringType]))
	}
	if a.Responsible != "" {
		b.WriteString(fmt.Sprintf("   👤 %s\n", escape(a.Responsible)))
	}
	if a.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(truncateRunes(a.Description, maxDescriptionRunes))))
	}
	var channels []string
	if a.NotifyEmail {
		channels = append(channels, "email")
	}
	if a.NotifyPush {
		channels = append(channels, "chat")
	}
	if len(channels) > 0 {
		b.WriteString(fmt.Sprintf("   🔔 %d giorni prima via %s\n", a.NotifyDays, strings.Join(channels, " e ")))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSettings(s model.EmailSettings) string {
	if !s.Enabled {
		return "Notifiche email: <b>disattivate</b>"
	}
	lines := []string{
		"Notifiche email: <b>attive</b>",
		fmt.Sprintf("Destinatario: %s", escape(s.Email)),
	}
	if s.WeeklyDigest {
		day, _ := s.Weekday()
		lines = append(lines, fmt.Sprintf("Riepilogo settimanale: %s", strings.ToLower(weekdayLabels[day])))
	} else {
		lines = append(lines, "Riepilogo settimanale: disattivato")
	}
	return strings.Join(lines, "\n")
}

// displayDate turns 2026-10-22 into 22/10/2026, leaving unreadable values as-is.
func displayDate(value string) string {
	t, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return escape(value)
	}
	return t.Format("02/01/2006")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-1]) + "…"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
