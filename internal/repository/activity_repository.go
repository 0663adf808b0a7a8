package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	"research-scheduler/internal/model"
	"research-scheduler/internal/store"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("activity not found")
)

// DefaultActor stamps createdBy/lastModifiedBy when nobody is known.
const DefaultActor = "Utente"

// DocumentStore persists JSON documents by key.
type DocumentStore interface {
	Load(ctx context.Context, key string, dst any) bool
	Save(ctx context.Context, key string, v any) error
}

// ActivityRepository holds the ordered activity list. Every mutation writes
// the whole list to the store first and only then replaces the in-memory
// copy, so a failed write leaves the repository untouched.
type ActivityRepository struct {
	mu           sync.Mutex
	docs         DocumentStore
	clock        clock.Clock
	defaultActor string
	activities   []model.Activity
}

func NewActivityRepository(docs DocumentStore, clk clock.Clock, defaultActor string) *ActivityRepository {
	if clk == nil {
		clk = clock.New()
	}
	if strings.TrimSpace(defaultActor) == "" {
		defaultActor = DefaultActor
	}
	return &ActivityRepository{docs: docs, clock: clk, defaultActor: defaultActor}
}

// Load replaces the in-memory list with the stored document. A missing or
// unreadable document yields an empty list.
func (r *ActivityRepository) Load(ctx context.Context) int {
	var loaded []model.Activity
	if !r.docs.Load(ctx, store.KeyActivities, &loaded) {
		loaded = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = loaded
	return len(loaded)
}

// Refresh re-reads the stored document and replaces the in-memory list only
// when the read succeeded, so a transient store failure keeps the last known
// state visible.
func (r *ActivityRepository) Refresh(ctx context.Context) bool {
	var loaded []model.Activity
	if !r.docs.Load(ctx, store.KeyActivities, &loaded) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = loaded
	return true
}

// List returns a copy of every activity in insertion order.
func (r *ActivityRepository) List() []model.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAll(r.activities)
}

func (r *ActivityRepository) Get(id int64) (model.Activity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(id); i >= 0 {
		return r.activities[i].Clone(), true
	}
	return model.Activity{}, false
}

// Add validates draft and appends a new pending activity.
func (r *ActivityRepository) Add(ctx context.Context, draft model.ActivityDraft, actor string) (model.Activity, error) {
	draft, err := NormalizeDraft(draft)
	if err != nil {
		return model.Activity{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	activity := fromDraft(draft)
	activity.ID = r.nextID(now)
	activity.Status = model.StatusPending
	activity.CreatedAt = now
	activity.CreatedBy = r.actorName(actor, draft.Responsible)

	next := append(cloneAll(r.activities), activity)
	if err := r.commit(ctx, next); err != nil {
		return model.Activity{}, err
	}
	return activity.Clone(), nil
}

// Update replaces the editable fields of an existing activity. Identity,
// creation stamps, status and completion time are preserved.
func (r *ActivityRepository) Update(ctx context.Context, id int64, draft model.ActivityDraft, actor string) (model.Activity, error) {
	draft, err := NormalizeDraft(draft)
	if err != nil {
		return model.Activity{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return model.Activity{}, fmt.Errorf("update %d: %w", id, ErrNotFound)
	}

	prev := r.activities[i]
	now := r.clock.Now().UTC()
	updated := fromDraft(draft)
	updated.ID = prev.ID
	updated.Status = prev.Status
	updated.CreatedAt = prev.CreatedAt
	updated.CreatedBy = prev.CreatedBy
	updated.CompletedAt = prev.Clone().CompletedAt
	updated.LastModified = &now
	updated.LastModifiedBy = r.actorName(actor, draft.Responsible)

	next := cloneAll(r.activities)
	next[i] = updated
	if err := r.commit(ctx, next); err != nil {
		return model.Activity{}, err
	}
	return updated.Clone(), nil
}

// Remove deletes the activity with id. An unknown id is a no-op and does
// not touch the store.
func (r *ActivityRepository) Remove(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}

	next := make([]model.Activity, 0, len(r.activities)-1)
	next = append(next, cloneAll(r.activities[:i])...)
	next = append(next, cloneAll(r.activities[i+1:])...)
	if err := r.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// ToggleStatus flips pending and completed, stamping or clearing completedAt.
func (r *ActivityRepository) ToggleStatus(ctx context.Context, id int64) (model.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return model.Activity{}, fmt.Errorf("toggle %d: %w", id, ErrNotFound)
	}

	toggled := r.activities[i].Clone()
	if toggled.Status == model.StatusCompleted {
		toggled.Status = model.StatusPending
		toggled.CompletedAt = nil
	} else {
		now := r.clock.Now().UTC()
		toggled.Status = model.StatusCompleted
		toggled.CompletedAt = &now
	}

	next := cloneAll(r.activities)
	next[i] = toggled
	if err := r.commit(ctx, next); err != nil {
		return model.Activity{}, err
	}
	return toggled.Clone(), nil
}

// commit must be called with r.mu held.
func (r *ActivityRepository) commit(ctx context.Context, next []model.Activity) error {
	if err := r.docs.Save(ctx, store.KeyActivities, next); err != nil {
		return fmt.Errorf("save activities: %w", err)
	}
	r.activities = next
	return nil
}

func (r *ActivityRepository) indexOf(id int64) int {
	for i := range r.activities {
		if r.activities[i].ID == id {
			return i
		}
	}
	return -1
}

// nextID is the creation time in milliseconds, bumped past every existing id.
func (r *ActivityRepository) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	for _, a := range r.activities {
		if a.ID >= id {
			id = a.ID + 1
		}
	}
	return id
}

func (r *ActivityRepository) actorName(actor, responsible string) string {
	if name := strings.TrimSpace(actor); name != "" {
		return name
	}
	if name := strings.TrimSpace(responsible); name != "" {
		return name
	}
	return r.defaultActor
}

// NormalizeDraft trims the draft, fills form defaults and validates it.
func NormalizeDraft(d model.ActivityDraft) (model.ActivityDraft, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Deadline = strings.TrimSpace(d.Deadline)
	d.Responsible = strings.TrimSpace(d.Responsible)

	var missing []string
	if d.Title == "" {
		missing = append(missing, "title")
	}
	if d.Deadline == "" {
		missing = append(missing, "deadline")
	}
	if d.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return d, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}

	if !d.Category.Valid() {
		return d, fmt.Errorf("%w: unknown category %q", ErrValidation, d.Category)
	}
	if _, err := model.ParseDate(d.Deadline, time.UTC); err != nil {
		return d, fmt.Errorf("%w: deadline %q is not a YYYY-MM-DD date", ErrValidation, d.Deadline)
	}

	if d.NotifyDays == 0 {
		d.NotifyDays = 7
	}
	if !d.NotifyDays.Valid() {
		return d, fmt.Errorf("%w: notify lead time %d not in %v", ErrValidation, d.NotifyDays, model.LeadTimes)
	}
	if d.RecurringType == "" {
		d.RecurringType = model.RecurrenceYearly
	}
	if !d.RecurringType.Valid() {
		return d, fmt.Errorf("%w: unknown recurrence %q", ErrValidation, d.RecurringType)
	}
	if d.SubActivities == nil {
		d.SubActivities = model.NewActivityDraft().SubActivities
	}
	return d, nil
}

func fromDraft(d model.ActivityDraft) model.Activity {
	a := model.Activity{
		Category:      d.Category,
		Title:         d.Title,
		Description:   d.Description,
		Deadline:      d.Deadline,
		Recurring:     d.Recurring,
		RecurringType: d.RecurringType,
		Responsible:   d.Responsible,
		NotifyDays:    d.NotifyDays,
		NotifyEmail:   d.NotifyEmail,
		NotifyPush:    d.NotifyPush,
		SubActivities: d.SubActivities,
	}
	return a.Clone()
}

func cloneAll(list []model.Activity) []model.Activity {
	out := make([]model.Activity, len(list))
	for i := range list {
		out[i] = list[i].Clone()
	}
	return out
}
