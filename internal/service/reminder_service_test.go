package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-scheduler/internal/model"
)

type staticActivities []model.Activity

func (s staticActivities) List() []model.Activity { return s }

func TestDueReminders(t *testing.T) {
	lead3 := pending(1, "Three days", model.CategoryAudit, day(3))
	lead3.NotifyDays = 3
	week := pending(2, "Week", model.CategoryCall, day(7))
	today := pending(3, "Today", model.CategoryBudget, day(0))
	today.NotifyDays = 30
	notYet := pending(4, "Not yet", model.CategoryAudit, day(5))
	done := completed(5, "Done", day(7))

	svc := NewReminderService(staticActivities{notYet, week, done, lead3, today})
	due := svc.DueReminders(now)
	require.Len(t, due, 3)
	assert.Equal(t, int64(3), due[0].Activity.ID)
	assert.Equal(t, 0, due[0].DaysLeft)
	assert.Equal(t, int64(1), due[1].Activity.ID)
	assert.Equal(t, int64(2), due[2].Activity.ID)
}

func TestFormatReminder(t *testing.T) {
	a := pending(1, "Rendiconto PRIN", model.CategoryReporting, day(1))
	a.Responsible = "Anna"
	subject, body := FormatReminder(Reminder{Activity: a, DaysLeft: 1})
	assert.Equal(t, "[Scadenziario] Rendiconto PRIN scade domani", subject)
	assert.Contains(t, body, "Rendicontazione")
	assert.Contains(t, body, "Responsabile: Anna")
	assert.Contains(t, body, day(1))
}

func TestWeeklyDigest(t *testing.T) {
	svc := NewReminderService(staticActivities{
		pending(1, "Audit interno", model.CategoryAudit, day(-2)),
		pending(2, "Bando ERC", model.CategoryCall, day(4)),
		pending(3, "Convenzione", model.CategoryAgreements, day(60)),
		completed(4, "Chiuso", day(1)),
	})
	subject, body := svc.WeeklyDigest(now)
	assert.Contains(t, subject, "19/10/2026")
	assert.Contains(t, body, "4 totali, 3 in corso, 1 completate, 1 urgenti")
	assert.Contains(t, body, "Audit interno (Audit, 2 giorni fa)")
	assert.Contains(t, body, "Bando ERC (Bando, urgente)")
	assert.Contains(t, body, "ottobre 2026")
	assert.NotContains(t, body, "Convenzione")
	assert.NotContains(t, body, "Chiuso")
}

func TestWeeklyDigest_Empty(t *testing.T) {
	_, body := NewReminderService(staticActivities{}).WeeklyDigest(now)
	assert.Contains(t, body, "- nessuna\n")
	assert.Contains(t, body, "nessuna scadenza")
}
