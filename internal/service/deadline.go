package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"research-scheduler/internal/model"
)

// Urgency classifies a deadline by the days left. Lower values sort first.
type Urgency int

const (
	UrgencyOverdue Urgency = iota
	UrgencyUrgent
	UrgencyUpcoming
	UrgencyFuture
)

const (
	urgentWithinDays   = 7
	upcomingWithinDays = 30
)

func (u Urgency) Priority() int {
	return int(u)
}

func (u Urgency) String() string {
	switch u {
	case UrgencyOverdue:
		return "overdue"
	case UrgencyUrgent:
		return "urgent"
	case UrgencyUpcoming:
		return "upcoming"
	default:
		return "future"
	}
}

// Label is the Italian badge shown next to a deadline.
func (u Urgency) Label() string {
	switch u {
	case UrgencyOverdue:
		return "scaduta"
	case UrgencyUrgent:
		return "urgente"
	case UrgencyUpcoming:
		return "prossima"
	default:
		return "futura"
	}
}

// DaysUntil counts calendar days from now to deadline, ignoring time of day.
func DaysUntil(deadline, now time.Time) int {
	dy, dm, dd := deadline.Date()
	ny, nm, nd := now.Date()
	d := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	n := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(d.Sub(n).Hours() / 24)
}

func UrgencyForDays(days int) Urgency {
	switch {
	case days < 0:
		return UrgencyOverdue
	case days <= urgentWithinDays:
		return UrgencyUrgent
	case days <= upcomingWithinDays:
		return UrgencyUpcoming
	default:
		return UrgencyFuture
	}
}

func UrgencyOf(deadline, now time.Time) Urgency {
	return UrgencyForDays(DaysUntil(deadline, now))
}

// DaysLeft parses the activity deadline in now's location.
func DaysLeft(a model.Activity, now time.Time) (int, bool) {
	deadline, err := a.DeadlineIn(now.Location())
	if err != nil {
		return 0, false
	}
	return DaysUntil(deadline, now), true
}

type scheduled struct {
	activity model.Activity
	deadline time.Time
	urgency  Urgency
}

// SortUpcoming keeps pending activities and orders them by urgency, then by
// deadline. Overdue items come first. Activities with an unreadable deadline
// are dropped.
func SortUpcoming(list []model.Activity, now time.Time) []model.Activity {
	items := make([]scheduled, 0, len(list))
	for _, a := range list {
		if !a.IsPending() {
			continue
		}
		deadline, err := a.DeadlineIn(now.Location())
		if err != nil {
			continue
		}
		items = append(items, scheduled{activity: a, deadline: deadline, urgency: UrgencyOf(deadline, now)})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].urgency != items[j].urgency {
			return items[i].urgency < items[j].urgency
		}
		return items[i].deadline.Before(items[j].deadline)
	})

	out := make([]model.Activity, len(items))
	for i, it := range items {
		out[i] = it.activity
	}
	return out
}

// MonthGroup is one dashboard bucket.
type MonthGroup struct {
	Year       int
	Month      time.Month
	Label      string
	Activities []model.Activity
}

// Key is the YYYY-MM bucket identifier.
func (g MonthGroup) Key() string {
	return fmt.Sprintf("%04d-%02d", g.Year, int(g.Month))
}

// GroupByMonth buckets activities by the month of their deadline. Buckets
// appear in the order their first activity appears in list, and keep the
// input order inside.
func GroupByMonth(list []model.Activity, loc *time.Location) []MonthGroup {
	var groups []MonthGroup
	index := make(map[string]int)
	for _, a := range list {
		deadline, err := a.DeadlineIn(loc)
		if err != nil {
			continue
		}
		key := deadline.Format("2006-01")
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, MonthGroup{
				Year:  deadline.Year(),
				Month: deadline.Month(),
				Label: MonthLabel(deadline.Year(), deadline.Month()),
			})
		}
		groups[i].Activities = append(groups[i].Activities, a)
	}
	return groups
}

var italianMonths = [...]string{
	"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno",
	"luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre",
}

// MonthLabel renders "ottobre 2026".
func MonthLabel(year int, month time.Month) string {
	if month < time.January || month > time.December {
		return fmt.Sprintf("%d-%02d", year, int(month))
	}
	return fmt.Sprintf("%s %d", italianMonths[month-1], year)
}

// FilterAll disables a category or status filter.
const FilterAll = "all"

// Filter is the list view's query.
type Filter struct {
	Category string
	Status   string
	Search   string
}

func (f Filter) matches(a model.Activity) bool {
	if f.Category != "" && f.Category != FilterAll && string(a.Category) != f.Category {
		return false
	}
	if f.Status != "" && f.Status != FilterAll && string(a.Status) != f.Status {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(a.Title), term) ||
		strings.Contains(strings.ToLower(a.Description), term)
}

// FilterActivities keeps the activities matching every filter, in order.
func FilterActivities(list []model.Activity, f Filter) []model.Activity {
	out := make([]model.Activity, 0, len(list))
	for _, a := range list {
		if f.matches(a) {
			out = append(out, a)
		}
	}
	return out
}

type Stats struct {
	Total     int
	Pending   int
	Completed int
	Urgent    int
}

// AggregateStats counts activities. Urgent means pending and due within a week.
func AggregateStats(list []model.Activity, now time.Time) Stats {
	var s Stats
	s.Total = len(list)
	for _, a := range list {
		switch a.Status {
		case model.StatusPending:
			s.Pending++
			if days, ok := DaysLeft(a, now); ok && days >= 0 && days <= urgentWithinDays {
				s.Urgent++
			}
		case model.StatusCompleted:
			s.Completed++
		}
	}
	return s
}

// Overdue returns pending activities whose deadline has passed, oldest first.
func Overdue(list []model.Activity, now time.Time) []model.Activity {
	var out []model.Activity
	for _, a := range SortUpcoming(list, now) {
		if days, ok := DaysLeft(a, now); ok && days < 0 {
			out = append(out, a)
		}
	}
	return out
}
