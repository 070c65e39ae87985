package persist

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
	"github.com/AryanRai/AriesUI-sub001/internal/grid"
	"github.com/AryanRai/AriesUI-sub001/internal/history"
)

// memStore is an in-memory Store with injectable failures.
type memStore struct {
	data     map[string][]byte
	failSave error
	corrupt  bool // read back different bytes than written
	saves    int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Load(_ context.Context, key string) ([]byte, error) {
	d, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if s.corrupt {
		return append([]byte("x"), d...), nil
	}
	return d, nil
}

func (s *memStore) Save(_ context.Context, key string, data []byte) error {
	s.saves++
	if s.failSave != nil {
		return s.failSave
	}
	s.data[key] = data
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func newTestManager(store Store) (*Manager, *grid.Store) {
	gs := grid.NewStore()
	gs.SetClock(func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) })
	h := history.New(0)
	m := NewManager(store, gs, h, time.Second)
	m.now = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) }
	return m, gs
}

func TestManager_SaveNowAndLoad(t *testing.T) {
	store := newMemStore()
	m, gs := newTestManager(store)

	_, err := gs.AddWidget(document.Widget{ID: "widget_a", X: 40, Y: 40, W: 100, H: 100})
	require.NoError(t, err)

	require.NoError(t, m.SaveNow(context.Background()))

	doc, err := m.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.MainItems, 1)
	assert.Equal(t, "widget_a", doc.MainItems[0].ID)
	assert.Equal(t, "2026-01-15T12:00:00Z", doc.LastSaved)
}

func TestManager_SaveNow_WritesActiveProfile(t *testing.T) {
	store := newMemStore()
	m, gs := newTestManager(store)
	m.SetActiveProfile("bench-rig")

	_, err := gs.AddWidget(document.Widget{ID: "widget_a", W: 100, H: 100})
	require.NoError(t, err)
	require.NoError(t, m.SaveNow(context.Background()))

	doc, err := m.LoadProfile(context.Background(), "bench-rig")
	require.NoError(t, err)
	assert.Len(t, doc.MainItems, 1)
}

func TestManager_SaveNow_VerificationFailure(t *testing.T) {
	store := newMemStore()
	store.corrupt = true
	m, _ := newTestManager(store)

	err := m.SaveNow(context.Background())
	assert.True(t, IsVerification(err), "read-back mismatch must surface as VerificationError, got %v", err)
}

func TestManager_AutoSave_BackoffThenDisable(t *testing.T) {
	store := newMemStore()
	store.failSave = errors.New("disk full")
	m, gs := newTestManager(store)

	var slept []time.Duration
	m.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	var events []grid.EventType
	gs.Subscribe(func(e grid.Event) {
		if e.Type == grid.EventAutoSaveFailed || e.Type == grid.EventAutoSaveDisabled {
			events = append(events, e.Type)
		}
	})

	_, err := gs.AddWidget(document.Widget{ID: "widget_a", W: 100, H: 100})
	require.NoError(t, err)

	m.autoSaveTick(context.Background())

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, slept)
	assert.False(t, m.AutoSaveEnabled(), "auto-save disables itself after exhausting retries")
	assert.Equal(t, []grid.EventType{
		grid.EventAutoSaveFailed,
		grid.EventAutoSaveFailed,
		grid.EventAutoSaveFailed,
		grid.EventAutoSaveDisabled,
	}, events)

	// Further ticks are inert until re-enabled.
	saves := store.saves
	m.autoSaveTick(context.Background())
	assert.Equal(t, saves, store.saves)

	m.EnableAutoSave()
	store.failSave = nil
	m.autoSaveTick(context.Background())
	assert.Greater(t, store.saves, saves, "re-enabled auto-save runs again")
}

func TestManager_AutoSave_SkipsWhenClean(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)

	m.autoSaveTick(context.Background())
	assert.Zero(t, store.saves, "clean state must not be saved")
}

func TestManager_AutoSave_RecoversMidRetry(t *testing.T) {
	store := newMemStore()
	store.failSave = errors.New("transient")
	m, gs := newTestManager(store)

	retries := 0
	m.sleep = func(_ context.Context, _ time.Duration) error {
		retries++
		if retries == 2 {
			store.failSave = nil
		}
		return nil
	}

	_, err := gs.AddWidget(document.Widget{ID: "widget_a", W: 100, H: 100})
	require.NoError(t, err)

	m.autoSaveTick(context.Background())
	assert.True(t, m.AutoSaveEnabled(), "recovery keeps auto-save armed")
}

func TestManager_ExportImportRoundTrip(t *testing.T) {
	store := newMemStore()
	m, gs := newTestManager(store)

	_, err := gs.AddNest(document.NestContainer{ID: "nest_a", X: 300, Y: 300, W: 400, H: 300})
	require.NoError(t, err)
	_, err = gs.AddWidget(document.Widget{ID: "widget_a", X: 0, Y: 0, W: 100, H: 100})
	require.NoError(t, err)
	_, err = gs.AddWidget(document.Widget{ID: "widget_b", NestID: "nest_a", X: 20, Y: 20, W: 80, H: 80})
	require.NoError(t, err)

	exported, err := m.Export()
	require.NoError(t, err)

	var doc document.Document
	require.NoError(t, json.Unmarshal(exported, &doc))
	assert.NotEmpty(t, doc.ExportedAt)

	m2, gs2 := newTestManager(newMemStore())
	require.NoError(t, m2.Import(exported))

	reExported, err := m2.Export()
	require.NoError(t, err)
	assert.JSONEq(t, string(exported), string(reExported), "item collections survive the round trip byte-identically (timestamps fixed by the test clock)")

	assert.Equal(t, gs.State().Main, gs2.State().Main)
	assert.Equal(t, gs.State().Nested, gs2.State().Nested)
}

func TestManager_Import_ResetsHistory(t *testing.T) {
	store := newMemStore()
	gs := grid.NewStore()
	h := history.New(0)
	m := NewManager(store, gs, h, time.Second)

	h.Push(history.Entry{State: grid.NewState()})
	h.Push(history.Entry{State: grid.NewState()})
	require.True(t, h.CanUndo())

	doc := document.NewEmptyDocument()
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	require.NoError(t, m.Import(data))
	assert.Equal(t, 1, h.Len())
	assert.False(t, h.CanUndo())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = fs.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, fs.Save(ctx, "grid-state", []byte(`{"gridSize":20}`)))
	data, err := fs.Load(ctx, "grid-state")
	require.NoError(t, err)
	assert.JSONEq(t, `{"gridSize":20}`, string(data))

	fs.SetQuota(4)
	err = fs.Save(ctx, "grid-state", []byte("too large"))
	assert.True(t, IsQuota(err), "oversized write must fail with QuotaError, got %v", err)

	require.NoError(t, fs.Delete(ctx, "grid-state"))
	_, err = fs.Load(ctx, "grid-state")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
