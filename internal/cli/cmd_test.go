package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-scheduler/internal/model"
	"research-scheduler/internal/repository"
	"research-scheduler/internal/service"
	"research-scheduler/internal/store"
	"research-scheduler/internal/testutil"
)

// Monday.
var testNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type recordingSender struct {
	mu   sync.Mutex
	sent []service.Notification
}

func (r *recordingSender) Send(_ context.Context, n service.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// testApp wires an App over an in-memory store for CLI tests.
func testApp(t *testing.T) (*App, *recordingSender) {
	t.Helper()
	adapter := store.NewAdapter(testutil.NewMemoryKV())
	clk := clock.NewFake()
	clk.Set(testNow)

	activities := repository.NewActivityRepository(adapter, clk, "")
	settings := repository.NewSettingsRepository(adapter)
	reminders := service.NewReminderService(activities)
	email := &recordingSender{}

	return &App{
		Activities: activities,
		Settings:   settings,
		Reminders:  reminders,
		Notifier:   service.NewNotifier(reminders, settings, email, nil, clk, time.UTC),
		Clock:      clk,
		Location:   time.UTC,
	}, email
}

func seed(t *testing.T, app *App, title string, category model.Category, deadline string, notifyDays model.LeadDays) model.Activity {
	t.Helper()
	d := model.NewActivityDraft()
	d.Title = title
	d.Category = category
	d.Deadline = deadline
	d.NotifyDays = notifyDays
	a, err := app.Activities.Add(context.Background(), d, "Segreteria")
	require.NoError(t, err)
	return a
}

func seedDefault(t *testing.T, app *App) {
	t.Helper()
	seed(t, app, "Report X", model.CategoryAudit, "2026-10-22", 3)
	seed(t, app, "Bando ERC", model.CategoryCall, "2026-11-08", 7)
	done := seed(t, app, "Chiusura esercizio", model.CategoryBudget, "2026-10-01", 7)
	_, err := app.Activities.ToggleStatus(context.Background(), done.ID)
	require.NoError(t, err)
}

// executeCmd runs a cobra command and captures stdout/stderr.
func executeCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestDashboardCmd(t *testing.T) {
	app, _ := testApp(t)
	seedDefault(t, app)

	out, err := executeCmd(t, app, "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "SCADENZIARIO UFFICIO RICERCA")
	assert.Contains(t, out, "Totali 3 · In corso 2 · Completate 1 · Urgenti 1")
	assert.Contains(t, out, "ottobre 2026")
	assert.Contains(t, out, "2026-10-22  urgente    Report X [Audit]")
	assert.Contains(t, out, "2026-11-08  prossima   Bando ERC [Bando]")
	assert.NotContains(t, out, "Chiusura esercizio")
}

func TestDashboardCmd_Empty(t *testing.T) {
	app, _ := testApp(t)
	out, err := executeCmd(t, app, "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "Totali 0")
	assert.Contains(t, out, "Nessuna scadenza in corso.")
}

func TestCalendarCmd(t *testing.T) {
	app, _ := testApp(t)
	seedDefault(t, app)

	out, err := executeCmd(t, app, "calendar", "--month", "2026-11")
	require.NoError(t, err)
	assert.Contains(t, out, "NOVEMBRE 2026")
	assert.Contains(t, out, "Lu  Ma  Me  Gi  Ve  Sa  Do")
	assert.Contains(t, out, " 8*")
	assert.Contains(t, out, " 8  Bando ERC [Bando]")

	out, err = executeCmd(t, app, "calendar")
	require.NoError(t, err)
	assert.Contains(t, out, "OTTOBRE 2026")
	assert.Contains(t, out, "19·")
	assert.Contains(t, out, "22  Report X [Audit]")
	assert.NotContains(t, out, "Chiusura esercizio")
}

func TestCalendarCmd_InvalidMonth(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "calendar", "--month", "novembre")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected YYYY-MM")
}

func TestListCmd_Filters(t *testing.T) {
	app, _ := testApp(t)
	seedDefault(t, app)

	out, err := executeCmd(t, app, "list", "--category", "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "Report X")
	assert.NotContains(t, out, "Bando ERC")
	assert.Contains(t, out, "1 attività")

	out, err = executeCmd(t, app, "list", "--status", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, "fatta")
	assert.Contains(t, out, "Chiusura esercizio")

	out, err = executeCmd(t, app, "list", "--search", "erc")
	require.NoError(t, err)
	assert.Contains(t, out, "Bando ERC")
	assert.NotContains(t, out, "Report X")

	out, err = executeCmd(t, app, "list", "--search", "inesistente")
	require.NoError(t, err)
	assert.Contains(t, out, "Nessuna attività trovata.")
}

func TestListCmd_RejectsUnknownValues(t *testing.T) {
	app, _ := testApp(t)

	_, err := executeCmd(t, app, "list", "--category", "astronomia")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")

	_, err = executeCmd(t, app, "list", "--status", "archived")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestDigestCmd(t *testing.T) {
	app, email := testApp(t)
	seedDefault(t, app)

	out, err := executeCmd(t, app, "digest")
	require.NoError(t, err)
	assert.Contains(t, out, "[Scadenziario] Riepilogo settimanale 19/10/2026")
	assert.Contains(t, out, "Report X")

	out, err = executeCmd(t, app, "digest", "--send")
	require.NoError(t, err)
	assert.Contains(t, out, "Riepilogo non inviato")
	assert.Empty(t, email.sent)

	_, err = app.Settings.Save(context.Background(), model.EmailSettings{
		Enabled: true, WeeklyDigest: true, Email: "ricerca@ateneo.it", DigestDay: "monday",
	})
	require.NoError(t, err)

	out, err = executeCmd(t, app, "digest", "--send")
	require.NoError(t, err)
	assert.Contains(t, out, "Riepilogo inviato.")
	require.Len(t, email.sent, 1)
	assert.Equal(t, "ricerca@ateneo.it", email.sent[0].To)
}

func TestRemindCmd(t *testing.T) {
	app, email := testApp(t)
	seedDefault(t, app)

	out, err := executeCmd(t, app, "remind")
	require.NoError(t, err)
	assert.Contains(t, out, "[Scadenziario] Report X scade tra 3 giorni")
	assert.NotContains(t, out, "Bando ERC")

	_, err = app.Settings.Save(context.Background(), model.EmailSettings{
		Enabled: true, WeeklyDigest: true, Email: "ricerca@ateneo.it", DigestDay: "monday",
	})
	require.NoError(t, err)

	out, err = executeCmd(t, app, "remind", "--send")
	require.NoError(t, err)
	assert.Contains(t, out, "1 promemoria inviati.")
	require.Len(t, email.sent, 1)
}

func TestRemindCmd_CountsOnlyDeliveredChannels(t *testing.T) {
	app, email := testApp(t)
	d := model.NewActivityDraft()
	d.Title = "Report Y"
	d.Category = model.CategoryAudit
	d.Deadline = "2026-10-22"
	d.NotifyDays = 3
	d.NotifyPush = true
	_, err := app.Activities.Add(context.Background(), d, "Segreteria")
	require.NoError(t, err)
	_, err = app.Settings.Save(context.Background(), model.EmailSettings{
		Enabled: true, Email: "ricerca@ateneo.it", DigestDay: "monday",
	})
	require.NoError(t, err)

	out, err := executeCmd(t, app, "remind", "--send")
	require.NoError(t, err)
	assert.Contains(t, out, "1 promemoria inviati.")
	assert.NotContains(t, out, "2 promemoria inviati.")
	assert.Len(t, email.sent, 1)
}

func TestRemindCmd_NothingDue(t *testing.T) {
	app, _ := testApp(t)
	out, err := executeCmd(t, app, "remind")
	require.NoError(t, err)
	assert.Contains(t, out, "Nessun promemoria per oggi.")
}

func TestServeCmd(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "serve")
	require.Error(t, err)

	called := false
	app.Serve = func(ctx context.Context) error {
		called = true
		return errors.New("stopped")
	}
	_, err = executeCmd(t, app, "serve")
	assert.EqualError(t, err, "stopped")
	assert.True(t, called)
}

func TestPaletteWithoutColor(t *testing.T) {
	p := palette{}
	assert.Equal(t, "urgente", p.urgency(service.UrgencyUrgent, "urgente"))
	assert.Equal(t, "ABC\n───", p.header("abc"))
}

func TestWriteRow_UnreadableDeadlineIsNeutral(t *testing.T) {
	a := model.Activity{ID: 1, Title: "Senza data", Category: model.CategoryOffice, Deadline: "31/12/2026", Status: model.StatusPending}
	var buf bytes.Buffer
	writeRow(&buf, palette{}, a, testNow)
	assert.Contains(t, buf.String(), "31/12/2026  data?      Senza data [Ufficio]")
	assert.NotContains(t, buf.String(), "urgente")

	a.Status = model.StatusCompleted
	buf.Reset()
	writeRow(&buf, palette{}, a, testNow)
	assert.Contains(t, buf.String(), "fatta")
}
