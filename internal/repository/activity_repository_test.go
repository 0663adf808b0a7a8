package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-scheduler/internal/model"
	"research-scheduler/internal/store"
	"research-scheduler/internal/testutil"
)

var testNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newTestActivityRepo(t *testing.T) (*ActivityRepository, *testutil.MemoryKV, clock.FakeClock) {
	t.Helper()
	kv := testutil.NewMemoryKV()
	clk := clock.NewFake()
	clk.Set(testNow)
	return NewActivityRepository(store.NewAdapter(kv), clk, ""), kv, clk
}

func draft(title string, category model.Category, deadline string) model.ActivityDraft {
	d := model.NewActivityDraft()
	d.Title = title
	d.Category = category
	d.Deadline = deadline
	return d
}

func TestActivityRepo_LateSaveKeepsMemoryInStep(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.SetDelay = 50 * time.Millisecond
	clk := clock.NewFake()
	clk.Set(testNow)
	repo := NewActivityRepository(store.NewAdapter(kv, store.WithTimeout(10*time.Millisecond)), clk, "")

	a, err := repo.Add(context.Background(), draft("Report X", model.CategoryAudit, "2026-10-22"), "Anna")
	require.NoError(t, err)
	require.Len(t, repo.List(), 1)

	var persisted []model.Activity
	require.True(t, store.NewAdapter(kv).Load(context.Background(), store.KeyActivities, &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, a.ID, persisted[0].ID)
}

func TestActivityRepo_AddStampsAndPersists(t *testing.T) {
	repo, kv, _ := newTestActivityRepo(t)
	ctx := context.Background()

	d := draft("  Report X ", model.CategoryAudit, "2026-10-22")
	d.Responsible = "Anna"
	a, err := repo.Add(ctx, d, "")
	require.NoError(t, err)

	assert.Equal(t, testNow.UnixMilli(), a.ID)
	assert.Equal(t, "Report X", a.Title)
	assert.Equal(t, model.StatusPending, a.Status)
	assert.Equal(t, testNow, a.CreatedAt)
	assert.Equal(t, "Anna", a.CreatedBy)
	assert.Nil(t, a.CompletedAt)
	assert.Equal(t, model.LeadDays(7), a.NotifyDays)

	raw, ok := kv.Raw(store.KeyActivities)
	require.True(t, ok)
	assert.Contains(t, raw, `"title":"Report X"`)
	assert.Contains(t, raw, `"macrofunction":"audit"`)
	assert.Len(t, repo.List(), 1)
}

func TestActivityRepo_AddActorPrecedence(t *testing.T) {
	repo, _, _ := newTestActivityRepo(t)
	ctx := context.Background()

	d := draft("Bando PRIN", model.CategoryCall, "2026-11-30")
	d.Responsible = "Anna"
	a, err := repo.Add(ctx, d, "Marco")
	require.NoError(t, err)
	assert.Equal(t, "Marco", a.CreatedBy)

	b, err := repo.Add(ctx, draft("Audit", model.CategoryAudit, "2026-11-30"), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultActor, b.CreatedBy)
}

func TestActivityRepo_AddRejectsMissingFields(t *testing.T) {
	cases := map[string]model.ActivityDraft{
		"title":    draft("  ", model.CategoryAudit, "2026-10-22"),
		"deadline": draft("Report", model.CategoryAudit, ""),
		"category": draft("Report", "", "2026-10-22"),
		"unknown":  draft("Report", "marketing", "2026-10-22"),
		"bad date": draft("Report", model.CategoryAudit, "22/10/2026"),
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			repo, kv, _ := newTestActivityRepo(t)
			_, err := repo.Add(context.Background(), d, "")
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, repo.List())
			assert.Zero(t, kv.SetCount())
		})
	}
}

func TestActivityRepo_AddRejectsBadLeadTime(t *testing.T) {
	repo, _, _ := newTestActivityRepo(t)
	d := draft("Report", model.CategoryAudit, "2026-10-22")
	d.NotifyDays = 2
	_, err := repo.Add(context.Background(), d, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestActivityRepo_IDsUniqueWithinSameMillisecond(t *testing.T) {
	repo, _, _ := newTestActivityRepo(t)
	ctx := context.Background()

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		a, err := repo.Add(ctx, draft("Item", model.CategoryOffice, "2026-12-01"), "")
		require.NoError(t, err)
		assert.False(t, seen[a.ID], "duplicate id %d", a.ID)
		seen[a.ID] = true
	}
	first := repo.List()[0]
	_, err := repo.Update(ctx, first.ID, draft("Renamed", model.CategoryOffice, "2026-12-02"), "")
	require.NoError(t, err)

	ids := map[int64]bool{}
	for _, a := range repo.List() {
		ids[a.ID] = true
	}
	assert.Len(t, ids, 5)
}

func TestActivityRepo_UpdatePreservesIdentity(t *testing.T) {
	repo, _, clk := newTestActivityRepo(t)
	ctx := context.Background()

	orig, err := repo.Add(ctx, draft("Report", model.CategoryAudit, "2026-10-22"), "Anna")
	require.NoError(t, err)
	_, err = repo.ToggleStatus(ctx, orig.ID)
	require.NoError(t, err)

	clk.Add(time.Hour)
	d := draft("Report v2", model.CategoryBudget, "2026-10-25")
	d.Description = "bilancio consuntivo"
	updated, err := repo.Update(ctx, orig.ID, d, "Marco")
	require.NoError(t, err)

	assert.Equal(t, orig.ID, updated.ID)
	assert.Equal(t, orig.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Anna", updated.CreatedBy)
	assert.Equal(t, "Report v2", updated.Title)
	assert.Equal(t, model.CategoryBudget, updated.Category)
	assert.Equal(t, model.StatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	require.NotNil(t, updated.LastModified)
	assert.Equal(t, testNow.Add(time.Hour), *updated.LastModified)
	assert.Equal(t, "Marco", updated.LastModifiedBy)
}

func TestActivityRepo_UpdateUnknownID(t *testing.T) {
	repo, kv, _ := newTestActivityRepo(t)
	_, err := repo.Update(context.Background(), 42, draft("X", model.CategoryAudit, "2026-10-22"), "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, kv.SetCount())
}

func TestActivityRepo_RemoveUnknownIDIsNoop(t *testing.T) {
	repo, kv, _ := newTestActivityRepo(t)
	ctx := context.Background()
	_, err := repo.Add(ctx, draft("Keep", model.CategoryAudit, "2026-10-22"), "")
	require.NoError(t, err)
	before := repo.List()
	writes := kv.SetCount()

	removed, err := repo.Remove(ctx, 1)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, before, repo.List())
	assert.Equal(t, writes, kv.SetCount())
}

func TestActivityRepo_Remove(t *testing.T) {
	repo, _, clk := newTestActivityRepo(t)
	ctx := context.Background()
	a, err := repo.Add(ctx, draft("A", model.CategoryAudit, "2026-10-22"), "")
	require.NoError(t, err)
	clk.Add(time.Second)
	b, err := repo.Add(ctx, draft("B", model.CategoryAudit, "2026-10-23"), "")
	require.NoError(t, err)

	removed, err := repo.Remove(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	list := repo.List()
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
	_, ok := repo.Get(a.ID)
	assert.False(t, ok)
}

func TestActivityRepo_ToggleIsItsOwnInverse(t *testing.T) {
	repo, _, clk := newTestActivityRepo(t)
	ctx := context.Background()
	a, err := repo.Add(ctx, draft("A", model.CategoryAudit, "2026-10-22"), "")
	require.NoError(t, err)

	clk.Add(time.Minute)
	done, err := repo.ToggleStatus(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, testNow.Add(time.Minute), *done.CompletedAt)

	reopened, err := repo.ToggleStatus(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, reopened.Status)
	assert.Nil(t, reopened.CompletedAt)

	clk.Add(time.Minute)
	again, err := repo.ToggleStatus(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, again.CompletedAt)
	assert.Equal(t, testNow.Add(2*time.Minute), *again.CompletedAt)
}

func TestActivityRepo_ToggleUnknownID(t *testing.T) {
	repo, _, _ := newTestActivityRepo(t)
	_, err := repo.ToggleStatus(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivityRepo_StorageFailureKeepsState(t *testing.T) {
	repo, kv, _ := newTestActivityRepo(t)
	ctx := context.Background()
	a, err := repo.Add(ctx, draft("A", model.CategoryAudit, "2026-10-22"), "")
	require.NoError(t, err)
	before := repo.List()

	kv.FailSet = errors.New("quota exceeded")

	_, err = repo.Add(ctx, draft("B", model.CategoryAudit, "2026-10-23"), "")
	var serr *store.StorageError
	require.ErrorAs(t, err, &serr)

	_, err = repo.Update(ctx, a.ID, draft("A2", model.CategoryAudit, "2026-10-23"), "")
	require.ErrorAs(t, err, &serr)

	_, err = repo.ToggleStatus(ctx, a.ID)
	require.ErrorAs(t, err, &serr)

	removed, err := repo.Remove(ctx, a.ID)
	require.ErrorAs(t, err, &serr)
	assert.False(t, removed)

	assert.Equal(t, before, repo.List())
}

func TestActivityRepo_LoadStoredDocument(t *testing.T) {
	repo, kv, _ := newTestActivityRepo(t)
	kv.Put(store.KeyActivities, `[
		{"id": 1, "macrofunction": "bando", "title": "PRIN", "description": "", "deadline": "2026-11-30",
		 "notifyDays": 7, "status": "pending", "createdAt": "2026-01-01T00:00:00Z", "createdBy": "Utente", "completedAt": null},
		{"id": 2, "macrofunction": "audit", "title": "Audit", "description": "", "deadline": "2026-10-01",
		 "notifyDays": 3, "status": "completed", "createdAt": "2026-01-01T00:00:00Z", "createdBy": "Utente", "completedAt": "2026-09-30T10:00:00Z"}
	]`)

	assert.Equal(t, 2, repo.Load(context.Background()))
	list := repo.List()
	require.Len(t, list, 2)
	assert.Equal(t, "PRIN", list[0].Title)
	assert.Equal(t, model.StatusCompleted, list[1].Status)

	kv.Put(store.KeyActivities, "garbage")
	assert.Zero(t, repo.Load(context.Background()))
	assert.Empty(t, repo.List())
}

func TestActivityRepo_RefreshKeepsStateOnFailure(t *testing.T) {
	repo, kv, _ := newTestActivityRepo(t)
	ctx := context.Background()
	_, err := repo.Add(ctx, draft("Report X", model.CategoryAudit, "2026-10-22"), "")
	require.NoError(t, err)

	kv.FailGet = errors.New("offline")
	assert.False(t, repo.Refresh(ctx))
	assert.Len(t, repo.List(), 1)

	kv.FailGet = nil
	kv.Put(store.KeyActivities, `[]`)
	assert.True(t, repo.Refresh(ctx))
	assert.Empty(t, repo.List())
}
