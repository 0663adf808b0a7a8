package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmhodges/clock"

	"research-scheduler/internal/model"
)

// Notification is one message for a delivery channel.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// NotificationSender delivers notifications over one channel.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender stands in for email delivery: it only logs what would be sent.
type LogSender struct {
	Logger *log.Logger
}

func (s LogSender) Send(_ context.Context, n Notification) error {
	logf := log.Printf
	if s.Logger != nil {
		logf = s.Logger.Printf
	}
	logf("[info] email to=%s subject=%q (%d bytes, not delivered)", n.To, n.Subject, len(n.Body))
	return nil
}

// SettingsSource exposes the current email settings.
type SettingsSource interface {
	Get() model.EmailSettings
}

// Notifier sends reminders and the weekly digest through the configured
// channels. A nil sender is an unconfigured channel: nothing is sent or
// counted on it.
type Notifier struct {
	reminders *ReminderService
	settings  SettingsSource
	email     NotificationSender
	push      NotificationSender
	clock     clock.Clock
	loc       *time.Location
}

func NewNotifier(reminders *ReminderService, settings SettingsSource, email, push NotificationSender, clk clock.Clock, loc *time.Location) *Notifier {
	if clk == nil {
		clk = clock.New()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Notifier{reminders: reminders, settings: settings, email: email, push: push, clock: clk, loc: loc}
}

func (n *Notifier) now() time.Time {
	return n.clock.Now().In(n.loc)
}

// SendReminders delivers today's lead-time reminders and returns how many
// notifications went out.
func (n *Notifier) SendReminders(ctx context.Context) (int, error) {
	settings := n.settings.Get()
	var sent int
	var errs []error
	for _, r := range n.reminders.DueReminders(n.now()) {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		subject, body := FormatReminder(r)
		if r.Activity.NotifyEmail && n.email != nil && settings.CanDeliver() {
			if err := n.email.Send(ctx, Notification{To: settings.Email, Subject: subject, Body: body}); err != nil {
				errs = append(errs, fmt.Errorf("email reminder %d: %w", r.Activity.ID, err))
			} else {
				sent++
			}
		}
		if r.Activity.NotifyPush && n.push != nil {
			if err := n.push.Send(ctx, Notification{Subject: subject, Body: body}); err != nil {
				errs = append(errs, fmt.Errorf("push reminder %d: %w", r.Activity.ID, err))
			} else {
				sent++
			}
		}
	}
	return sent, errors.Join(errs...)
}

// IsDigestDay reports whether t falls on the configured digest weekday.
func (n *Notifier) IsDigestDay(t time.Time) bool {
	day, ok := n.settings.Get().Weekday()
	return ok && t.In(n.loc).Weekday() == day
}

// SendWeeklyDigest sends the digest when it is enabled. It reports whether
// anything was sent.
func (n *Notifier) SendWeeklyDigest(ctx context.Context) (bool, error) {
	settings := n.settings.Get()
	if !settings.WeeklyDigest || !settings.CanDeliver() {
		return false, nil
	}
	subject, body := n.reminders.WeeklyDigest(n.now())
	var delivered bool
	var errs []error
	if n.email != nil {
		if err := n.email.Send(ctx, Notification{To: settings.Email, Subject: subject, Body: body}); err != nil {
			errs = append(errs, fmt.Errorf("email digest: %w", err))
		} else {
			delivered = true
		}
	}
	if n.push != nil {
		if err := n.push.Send(ctx, Notification{Subject: subject, Body: body}); err != nil {
			errs = append(errs, fmt.Errorf("push digest: %w", err))
		} else {
			delivered = true
		}
	}
	return delivered, errors.Join(errs...)
}

// RunDigestIfDue is the daily cron job body for the weekly digest.
func (n *Notifier) RunDigestIfDue(ctx context.Context) (bool, error) {
	if !n.IsDigestDay(n.now()) {
		return false, nil
	}
	return n.SendWeeklyDigest(ctx)
}
