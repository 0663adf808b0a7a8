package service

import (
	"fmt"
	"strings"
	"time"

	"research-scheduler/internal/model"
)

// ActivitySource exposes the current activity list.
type ActivitySource interface {
	List() []model.Activity
}

// Reminder is a pending activity whose notification lead time has come.
type Reminder struct {
	Activity model.Activity
	DaysLeft int
}

// ReminderService builds human-readable reminders and digests.
type ReminderService struct {
	activities ActivitySource
}

func NewReminderService(activities ActivitySource) *ReminderService {
	return &ReminderService{activities: activities}
}

// DueReminders returns pending activities that are exactly notifyDays away,
// or due today.
func (s *ReminderService) DueReminders(now time.Time) []Reminder {
	var out []Reminder
	for _, a := range SortUpcoming(s.activities.List(), now) {
		days, ok := DaysLeft(a, now)
		if !ok {
			continue
		}
		if days == 0 || days == int(a.NotifyDays) {
			out = append(out, Reminder{Activity: a, DaysLeft: days})
		}
	}
	return out
}

// FormatReminder renders the subject and body of one reminder.
func FormatReminder(r Reminder) (string, string) {
	a := r.Activity
	var when string
	switch r.DaysLeft {
	case 0:
		when = "scade oggi"
	case 1:
		when = "scade domani"
	default:
		when = fmt.Sprintf("scade tra %d giorni", r.DaysLeft)
	}
	subject := fmt.Sprintf("[Scadenziario] %s %s", strings.TrimSpace(a.Title), when)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s (%s)\n", strings.TrimSpace(a.Title), a.Category.Label()))
	b.WriteString(fmt.Sprintf("Scadenza: %s, %s\n", a.Deadline, when))
	if a.Responsible != "" {
		b.WriteString(fmt.Sprintf("Responsabile: %s\n", a.Responsible))
	}
	if a.Description != "" {
		b.WriteString(fmt.Sprintf("Note: %s\n", strings.TrimSpace(a.Description)))
	}
	return subject, strings.TrimSpace(b.String())
}

// WeeklyDigest summarises overdue items and the next 30 days.
func (s *ReminderService) WeeklyDigest(now time.Time) (string, string) {
	list := s.activities.List()
	stats := AggregateStats(list, now)
	overdue := Overdue(list, now)

	var upcoming []model.Activity
	for _, a := range SortUpcoming(list, now) {
		if days, ok := DaysLeft(a, now); ok && days >= 0 && days <= upcomingWithinDays {
			upcoming = append(upcoming, a)
		}
	}

	subject := fmt.Sprintf("[Scadenziario] Riepilogo settimanale %s", now.Format("02/01/2006"))

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Attività: %d totali, %d in corso, %d completate, %d urgenti\n",
		stats.Total, stats.Pending, stats.Completed, stats.Urgent))

	b.WriteString("\nScadute:\n")
	if len(overdue) == 0 {
		b.WriteString("- nessuna\n")
	}
	for _, a := range overdue {
		days, _ := DaysLeft(a, now)
		b.WriteString(fmt.Sprintf("- %s · %s (%s, %d giorni fa)\n", a.Deadline, a.Title, a.Category.Label(), -days))
	}

	b.WriteString("\nProssimi 30 giorni:\n")
	if len(upcoming) == 0 {
		b.WriteString("- nessuna scadenza\n")
	}
	for _, g := range GroupByMonth(upcoming, now.Location()) {
		b.WriteString(fmt.Sprintf("%s\n", g.Label))
		for _, a := range g.Activities {
			days, _ := DaysLeft(a, now)
			b.WriteString(fmt.Sprintf("- %s · %s (%s, %s)\n", a.Deadline, a.Title, a.Category.Label(), UrgencyForDays(days).Label()))
		}
	}
	return subject, strings.TrimSpace(b.String())
}
