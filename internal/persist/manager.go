package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
	"github.com/AryanRai/AriesUI-sub001/internal/grid"
	"github.com/AryanRai/AriesUI-sub001/internal/history"
)

const (
	// DefaultKey is the durable key explicit and auto saves write to.
	DefaultKey = "grid-state"

	// DefaultAutoSaveInterval is how often the auto-save loop checks the
	// dirty flag.
	DefaultAutoSaveInterval = 30 * time.Second

	// autoSaveRetries is how many backoff retries follow a failed
	// auto-save before it disables itself.
	autoSaveRetries = 3

	// autoSaveBackoffBase is the first retry delay; each retry doubles it.
	autoSaveBackoffBase = time.Second
)

// Manager serializes grid state to a Store. It tracks its own dirty flag by
// subscribing to store events, so gesture-transient data pushes never
// trigger a save.
type Manager struct {
	store   Store
	grid    *grid.Store
	history *history.History
	key     string

	mu            sync.Mutex
	activeProfile string
	needsSave     bool
	autoEnabled   bool
	interval      time.Duration

	// Injected for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager wires a manager to the grid store and history. Auto-save starts
// enabled but idle until RunAutoSave is called.
func NewManager(store Store, gridStore *grid.Store, hist *history.History, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = DefaultAutoSaveInterval
	}
	m := &Manager{
		store:       store,
		grid:        gridStore,
		history:     hist,
		key:         DefaultKey,
		autoEnabled: true,
		interval:    interval,
		now:         time.Now,
		sleep:       sleepCtx,
	}

	gridStore.Subscribe(func(e grid.Event) {
		switch e.Type {
		case grid.EventDataUpdated, grid.EventAutoSaveFailed, grid.EventAutoSaveDisabled, grid.EventProfileChanged:
			return
		}
		m.mu.Lock()
		m.needsSave = true
		m.mu.Unlock()
	})

	return m
}

// SetActiveProfile records the named profile explicit saves also write to.
// Empty clears it.
func (m *Manager) SetActiveProfile(name string) {
	m.mu.Lock()
	m.activeProfile = name
	m.mu.Unlock()

	m.grid.Emit(grid.Event{Type: grid.EventProfileChanged, Detail: name})
}

// ActiveProfile returns the currently active profile name.
func (m *Manager) ActiveProfile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeProfile
}

// SaveNow serializes state plus viewport to the durable key, verifies the
// write by reading it back, and also writes the active profile if one is
// set. Explicit saves fail loudly; callers surface the error to the user.
func (m *Manager) SaveNow(ctx context.Context) error {
	data, err := m.marshalCurrent(true)
	if err != nil {
		return err
	}

	if err := m.writeVerified(ctx, m.key, data); err != nil {
		return err
	}

	m.mu.Lock()
	profile := m.activeProfile
	m.needsSave = false
	m.mu.Unlock()

	if profile != "" {
		if err := m.writeVerified(ctx, profileKey(profile), data); err != nil {
			return fmt.Errorf("save active profile %q: %w", profile, err)
		}
	}
	return nil
}

// Load reads the durable key and returns the stored document.
func (m *Manager) Load(ctx context.Context) (document.Document, error) {
	data, err := m.store.Load(ctx, m.key)
	if err != nil {
		return document.Document{}, err
	}
	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document.Document{}, fmt.Errorf("decode stored document: %w", err)
	}
	return doc, nil
}

// LoadProfile reads a named profile's document.
func (m *Manager) LoadProfile(ctx context.Context, name string) (document.Document, error) {
	data, err := m.store.Load(ctx, profileKey(name))
	if err != nil {
		return document.Document{}, err
	}
	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document.Document{}, fmt.Errorf("decode profile %q: %w", name, err)
	}
	return doc, nil
}

// Export produces a self-contained document with an export timestamp.
func (m *Manager) Export() ([]byte, error) {
	return m.marshalCurrent(false)
}

// Import fully replaces in-memory state from an exported document and resets
// history to a single entry.
func (m *Manager) Import(data []byte) error {
	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode imported document: %w", err)
	}

	state := grid.StateFromDocument(doc)
	m.grid.Restore(state)
	m.history.Reset(history.Entry{State: state, Viewport: state.Viewport})

	m.mu.Lock()
	m.needsSave = true
	m.mu.Unlock()
	return nil
}

// AutoSaveEnabled reports whether the auto-save loop is still armed.
func (m *Manager) AutoSaveEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoEnabled
}

// EnableAutoSave re-arms auto-save after it disabled itself.
func (m *Manager) EnableAutoSave() {
	m.mu.Lock()
	m.autoEnabled = true
	m.mu.Unlock()
}

// RunAutoSave periodically saves while the dirty flag is set. It blocks
// until ctx is cancelled; run it in its own goroutine.
func (m *Manager) RunAutoSave(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.autoSaveTick(ctx)
		}
	}
}

// autoSaveTick runs one auto-save cycle: skip when clean or disabled, save
// with backoff retries on failure, and disable auto-save for the session
// when the retries are exhausted.
func (m *Manager) autoSaveTick(ctx context.Context) {
	m.mu.Lock()
	runnable := m.autoEnabled && m.needsSave
	m.mu.Unlock()
	if !runnable {
		return
	}

	err := m.SaveNow(ctx)
	if err == nil {
		slog.Debug("auto-save complete")
		return
	}

	for attempt := 1; attempt <= autoSaveRetries; attempt++ {
		backoff := autoSaveBackoffBase << (attempt - 1)
		slog.Warn("auto-save failed", "error", err, "attempt", attempt, "retry_in", backoff)
		m.grid.Emit(grid.Event{Type: grid.EventAutoSaveFailed, Detail: err.Error()})

		if serr := m.sleep(ctx, backoff); serr != nil {
			return
		}
		if err = m.SaveNow(ctx); err == nil {
			slog.Info("auto-save recovered", "attempts", attempt)
			return
		}
	}

	// Retries exhausted: stop retrying for the rest of the session rather
	// than looping forever. The user has to re-enable explicitly.
	m.mu.Lock()
	m.autoEnabled = false
	m.mu.Unlock()
	slog.Error("auto-save disabled after exhausting retries", "error", err)
	m.grid.Emit(grid.Event{Type: grid.EventAutoSaveDisabled, Detail: err.Error()})
}

// writeVerified writes data then reads it back and byte-compares.
func (m *Manager) writeVerified(ctx context.Context, key string, data []byte) error {
	if err := m.store.Save(ctx, key, data); err != nil {
		return err
	}
	stored, err := m.store.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("verify %q: %w", key, err)
	}
	if !bytes.Equal(stored, data) {
		return &VerificationError{Key: key}
	}
	return nil
}

func (m *Manager) marshalCurrent(saved bool) ([]byte, error) {
	doc := m.grid.State().ToDocument()
	stamp := document.Timestamp(m.now())
	if saved {
		doc.LastSaved = stamp
	} else {
		doc.ExportedAt = stamp
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

func profileKey(name string) string {
	return "profile-" + name
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsQuota reports whether err is a quota failure.
func IsQuota(err error) bool {
	var qerr *QuotaError
	return errors.As(err, &qerr)
}

// IsVerification reports whether err is a read-back mismatch.
func IsVerification(err error) bool {
	var verr *VerificationError
	return errors.As(err, &verr)
}
