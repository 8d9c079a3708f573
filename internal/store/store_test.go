package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"recordings", "recording_frames", "bindings", "settings", "schema_migrations"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q should exist", table)
	}

	version, dirty, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Settings().Set("k", "v"))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Settings().Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNew_Memory(t *testing.T) {
	s, err := New(MemoryPath)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Recordings().Create(&Recording{ID: "r", Name: "mem", Provider: "mock"}))
	recs, err := s.Recordings().List()
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var enabled int
	require.NoError(t, s.DB().QueryRow("PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.DB().Exec("SELECT 1")
	assert.Error(t, err, "queries must fail after Close")
}

func TestRecordingRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Recordings()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := &Recording{ID: "rec-1", Name: "pinch drill", Provider: "mock", StartedAt: start}
	require.NoError(t, repo.Create(rec))

	got, err := repo.GetByID("rec-1")
	require.NoError(t, err)
	assert.Equal(t, "pinch drill", got.Name)
	assert.True(t, got.StartedAt.Equal(start), "started_at = %v", got.StartedAt)
	assert.True(t, got.Active())

	frames := []Frame{
		{Seq: 0, Time: start, Payload: json.RawMessage(`{"n":0}`)},
		{Seq: 1, Time: start.Add(33 * time.Millisecond), Payload: json.RawMessage(`{"n":1}`)},
	}
	require.NoError(t, repo.AppendFrames("rec-1", frames))
	require.NoError(t, repo.AppendFrames("rec-1", []Frame{
		{Seq: 2, Time: start.Add(66 * time.Millisecond), Payload: json.RawMessage(`{"n":2}`)},
	}))

	stored, err := repo.Frames("rec-1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, f := range stored {
		assert.Equal(t, i, f.Seq)
		assert.Equal(t, "rec-1", f.RecordingID)
	}
	assert.True(t, stored[1].Time.Equal(start.Add(33*time.Millisecond)))
	assert.JSONEq(t, `{"n":2}`, string(stored[2].Payload))

	end := start.Add(time.Second)
	require.NoError(t, repo.Finish("rec-1", end))
	require.NoError(t, repo.Rename("rec-1", "renamed"))

	got, err = repo.GetByID("rec-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.FrameCount)
	assert.Equal(t, "renamed", got.Name)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(end))

	require.NoError(t, repo.Delete("rec-1"))
	_, err = repo.GetByID("rec-1")
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err = repo.Frames("rec-1")
	require.NoError(t, err)
	assert.Empty(t, stored, "frames must cascade with the recording")
}

func TestRecordingRepository_NotFound(t *testing.T) {
	repo := newTestStore(t).Recordings()

	assert.ErrorIs(t, repo.Finish("missing", time.Now()), ErrNotFound)
	assert.ErrorIs(t, repo.Rename("missing", "x"), ErrNotFound)
	assert.ErrorIs(t, repo.Delete("missing"), ErrNotFound)
	assert.Error(t, repo.AppendFrames("missing", []Frame{{Seq: 0, Time: time.Now(), Payload: json.RawMessage(`{}`)}}))
}

func TestRecordingRepository_ListNewestFirst(t *testing.T) {
	repo := newTestStore(t).Recordings()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(&Recording{ID: id, Provider: "mock", StartedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	recs, err := repo.List()
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestBindingRepository(t *testing.T) {
	repo := newTestStore(t).Bindings()

	both := &Binding{ID: "b1", Event: "select_down", PluginName: "keyboard", ActionName: "press", Enabled: true,
		Config: json.RawMessage(`{"key":"space"}`)}
	left := &Binding{ID: "b2", Event: "select_down", Handedness: "left", PluginName: "system-control", ActionName: "volume_up", Enabled: true}
	off := &Binding{ID: "b3", Event: "select_down", PluginName: "keyboard", ActionName: "press", Enabled: false}
	other := &Binding{ID: "b4", Event: "grip_down", PluginName: "keyboard", ActionName: "press", Enabled: true}
	for _, b := range []*Binding{both, left, off, other} {
		require.NoError(t, repo.Create(b))
		assert.False(t, b.CreatedAt.IsZero())
	}

	got, err := repo.GetByID("b1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"space"}`, string(got.Config))
	assert.True(t, got.Enabled)

	got, err = repo.GetByID("b2")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got.Config), "missing config defaults to an empty object")

	ids := func(bs []*Binding) []string {
		out := make([]string, len(bs))
		for i, b := range bs {
			out[i] = b.ID
		}
		return out
	}

	right, err := repo.ForEvent("select_down", "right")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b1"}, ids(right))

	leftHand, err := repo.ForEvent("select_down", "left")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b1", "b2"}, ids(leftHand))

	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 4)

	off.Enabled = true
	off.Handedness = "right"
	require.NoError(t, repo.Update(off))
	right, err = repo.ForEvent("select_down", "right")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b1", "b3"}, ids(right))

	require.NoError(t, repo.Delete("b4"))
	assert.ErrorIs(t, repo.Delete("b4"), ErrNotFound)
	assert.ErrorIs(t, repo.Update(&Binding{ID: "missing"}), ErrNotFound)
	_, err = repo.GetByID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettingsRepository(t *testing.T) {
	repo := newTestStore(t).Settings()

	_, err := repo.Get("absent")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Set("theme", "dark"))
	require.NoError(t, repo.Set("theme", "light"))
	got, err := repo.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, "light", got)

	type doc struct {
		Threshold float64 `json:"threshold"`
	}
	require.NoError(t, repo.SetJSON(SettingConfig, doc{Threshold: 0.85}))
	var out doc
	require.NoError(t, repo.GetJSON(SettingConfig, &out))
	assert.Equal(t, 0.85, out.Threshold)

	require.NoError(t, repo.Set("broken", "{"))
	assert.Error(t, repo.GetJSON("broken", &out))

	require.NoError(t, repo.Delete("theme"))
	assert.ErrorIs(t, repo.Delete("theme"), ErrNotFound)
}
