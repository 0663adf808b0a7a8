package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for deadlines.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

type Recurrence string

const (
	RecurrenceWeekly    Recurrence = "weekly"
	RecurrenceMonthly   Recurrence = "monthly"
	RecurrenceQuarterly Recurrence = "quarterly"
	RecurrenceYearly    Recurrence = "yearly"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceWeekly, RecurrenceMonthly, RecurrenceQuarterly, RecurrenceYearly:
		return true
	}
	return false
}

// LeadTimes are the accepted reminder lead times, in days.
var LeadTimes = []LeadDays{1, 3, 7, 15, 30}

// LeadDays is how many days before the deadline a reminder goes out.
// Older documents stored it as a string, so both forms decode.
type LeadDays int

func (d LeadDays) Valid() bool {
	for _, v := range LeadTimes {
		if d == v {
			return true
		}
	}
	return false
}

func (d *LeadDays) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*d = 0
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("notifyDays %q: %w", raw, err)
	}
	*d = LeadDays(n)
	return nil
}

// Activity is a tracked deadline.
type Activity struct {
	ID             int64             `json:"id"`
	Category       Category          `json:"macrofunction"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Deadline       string            `json:"deadline"`
	Recurring      bool              `json:"recurring"`
	RecurringType  Recurrence        `json:"recurringType"`
	Responsible    string            `json:"responsible"`
	NotifyDays     LeadDays          `json:"notifyDays"`
	NotifyEmail    bool              `json:"notifyEmail"`
	NotifyPush     bool              `json:"notifyPush"`
	SubActivities  []json.RawMessage `json:"subactivities"`
	Status         Status            `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	CreatedBy      string            `json:"createdBy"`
	LastModified   *time.Time        `json:"lastModified,omitempty"`
	LastModifiedBy string            `json:"lastModifiedBy,omitempty"`
	CompletedAt    *time.Time        `json:"completedAt"`
}

func (a Activity) IsPending() bool {
	return a.Status == StatusPending
}

// DeadlineIn parses the deadline as midnight in loc.
func (a Activity) DeadlineIn(loc *time.Location) (time.Time, error) {
	return ParseDate(a.Deadline, loc)
}

// Clone returns a copy that shares no pointers with a.
func (a Activity) Clone() Activity {
	out := a
	if a.LastModified != nil {
		t := *a.LastModified
		out.LastModified = &t
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	if a.SubActivities != nil {
		out.SubActivities = make([]json.RawMessage, len(a.SubActivities))
		copy(out.SubActivities, a.SubActivities)
	}
	return out
}

// ActivityDraft holds the editable fields of an activity, as filled in by a form.
type ActivityDraft struct {
	Category      Category
	Title         string
	Description   string
	Deadline      string
	Recurring     bool
	RecurringType Recurrence
	Responsible   string
	NotifyDays    LeadDays
	NotifyEmail   bool
	NotifyPush    bool
	SubActivities []json.RawMessage
}

// NewActivityDraft returns a draft with the form defaults.
func NewActivityDraft() ActivityDraft {
	return ActivityDraft{
		RecurringType: RecurrenceYearly,
		NotifyDays:    7,
		NotifyEmail:   true,
		SubActivities: []json.RawMessage{},
	}
}

// DraftFrom pre-fills a draft for editing an existing activity.
func DraftFrom(a Activity) ActivityDraft {
	c := a.Clone()
	return ActivityDraft{
		Category:      c.Category,
		Title:         c.Title,
		Description:   c.Description,
		Deadline:      c.Deadline,
		Recurring:     c.Recurring,
		RecurringType: c.RecurringType,
		Responsible:   c.Responsible,
		NotifyDays:    c.NotifyDays,
		NotifyEmail:   c.NotifyEmail,
		NotifyPush:    c.NotifyPush,
		SubActivities: c.SubActivities,
	}
}

// ParseDate parses a YYYY-MM-DD string as midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
