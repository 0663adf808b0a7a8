package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-scheduler/internal/testutil"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestAdapter_LoadAbsentKeyKeepsDefaults(t *testing.T) {
	a := NewAdapter(testutil.NewMemoryKV())
	d := doc{Name: "default"}
	assert.False(t, a.Load(context.Background(), "missing", &d))
	assert.Equal(t, "default", d.Name)
}

func TestAdapter_SaveThenLoad(t *testing.T) {
	kv := testutil.NewMemoryKV()
	a := NewAdapter(kv, WithPrefix("univda-"))
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "doc", doc{Name: "x", Count: 2}))
	raw, ok := kv.Raw("univda-doc")
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"x","count":2}`, raw)

	var got doc
	require.True(t, a.Load(ctx, "doc", &got))
	assert.Equal(t, doc{Name: "x", Count: 2}, got)
}

func TestAdapter_LoadSwallowsBackendAndDecodeErrors(t *testing.T) {
	kv := testutil.NewMemoryKV()
	a := NewAdapter(kv)
	ctx := context.Background()

	kv.Put("broken", "{not json")
	var d doc
	assert.False(t, a.Load(ctx, "broken", &d))

	kv.FailGet = errors.New("backend down")
	assert.False(t, a.Load(ctx, "broken", &d))
}

func TestAdapter_SaveFailureIsStorageError(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.FailSet = errors.New("disk full")
	a := NewAdapter(kv)

	err := a.Save(context.Background(), KeyActivities, []doc{})
	require.Error(t, err)

	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, KeyActivities, serr.Key)
	assert.Equal(t, "save", serr.Op)
	assert.False(t, serr.Timeout())
	assert.ErrorIs(t, err, kv.FailSet)
}

func TestAdapter_SaveTimesOut(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.Block = true
	a := NewAdapter(kv, WithTimeout(20*time.Millisecond))

	err := a.Save(context.Background(), KeyEmailSettings, doc{})
	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Timeout())
}

func TestAdapter_SaveLateSuccessIsNotAnError(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.SetDelay = 50 * time.Millisecond
	a := NewAdapter(kv, WithTimeout(10*time.Millisecond))

	require.NoError(t, a.Save(context.Background(), KeyActivities, []doc{{Name: "late"}}))
	raw, ok := kv.Raw(KeyActivities)
	require.True(t, ok)
	assert.JSONEq(t, `[{"name":"late","count":0}]`, raw)
}

func TestAdapter_KeyNameOverridesPrefix(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.Put("univda-research-activities", `[{"name":"legacy","count":1}]`)
	a := NewAdapter(kv,
		WithPrefix("lab-"),
		WithKeyName(KeyActivities, "univda-research-activities"),
		WithKeyName(KeyEmailSettings, ""),
	)
	ctx := context.Background()

	var got []doc
	require.True(t, a.Load(ctx, KeyActivities, &got))
	assert.Equal(t, []doc{{Name: "legacy", Count: 1}}, got)

	require.NoError(t, a.Save(ctx, KeyActivities, []doc{}))
	raw, _ := kv.Raw("univda-research-activities")
	assert.JSONEq(t, `[]`, raw)

	// An empty override falls back to the prefixed key.
	require.NoError(t, a.Save(ctx, KeyEmailSettings, doc{Name: "s"}))
	_, ok := kv.Raw("lab-" + KeyEmailSettings)
	assert.True(t, ok)
}

type pingKV struct {
	*testutil.MemoryKV
	err error
}

func (p pingKV) Ping(context.Context) error { return p.err }

func TestSelect(t *testing.T) {
	ctx := context.Background()
	local := testutil.NewMemoryKV()

	assert.Same(t, local, Select(ctx, nil, local).(*testutil.MemoryKV))

	down := pingKV{MemoryKV: testutil.NewMemoryKV(), err: errors.New("refused")}
	assert.Same(t, local, Select(ctx, down, local).(*testutil.MemoryKV))

	up := pingKV{MemoryKV: testutil.NewMemoryKV()}
	got, ok := Select(ctx, up, local).(pingKV)
	require.True(t, ok)
	assert.Same(t, up.MemoryKV, got.MemoryKV)
}
