package grid

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
)

// Store is the single source of truth for grid state. Every mutation goes
// through one of its atomic updaters; each updater validates invariants,
// refreshes the item's updatedAt, marks the store dirty and emits a typed
// event. Nothing else is permitted to hold a second mutable copy.
type Store struct {
	mu        sync.RWMutex
	state     State
	dirty     bool
	subs      map[int]func(Event)
	nextSubID int
	now       func() time.Time
}

// NewStore creates a store with an empty state.
func NewStore() *Store {
	return &Store{
		state: NewState(),
		subs:  make(map[int]func(Event)),
		now:   time.Now,
	}
}

// SetClock overrides the store's time source. Tests use this to get stable
// createdAt/updatedAt values.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Viewport returns the current viewport.
func (s *Store) Viewport() document.Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Viewport
}

// GridSize returns the snapping increment.
func (s *Store) GridSize() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GridSize
}

// Counts returns the number of widgets (main plus nested) and nests, the
// signal consumed by the external status bar.
func (s *Store) Counts() (widgets, nests int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Main) + len(s.state.Nested), len(s.state.Nests)
}

// ConsumeDirty reports whether the state changed since the last call and
// clears the flag. The scheduler tick polls this instead of re-render cycles.
func (s *Store) ConsumeDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dirty
	s.dirty = false
	return d
}

// Restore replaces the whole state, used by undo/redo and import.
func (s *Store) Restore(state State) {
	s.mu.Lock()
	s.state = state.Clone()
	s.dirty = true
	s.mu.Unlock()

	s.Emit(Event{Type: EventStateReplaced})
}

// WidgetPatch is a partial widget update. Nil fields are left unchanged.
type WidgetPatch struct {
	X        *float64
	Y        *float64
	W        *float64
	H        *float64
	Title    *string
	StreamID *string
	Config   json.RawMessage
	Data     json.RawMessage
}

// NestPatch is a partial nest update. Nil fields are left unchanged.
type NestPatch struct {
	X     *float64
	Y     *float64
	W     *float64
	H     *float64
	Title *string
}

// AddWidget inserts a widget. The widget's NestID, if set, must reference an
// existing nest. Non-positive sizes are rejected with a GeometryError.
func (s *Store) AddWidget(w document.Widget) (document.Widget, error) {
	s.mu.Lock()
	if w.W <= 0 || w.H <= 0 {
		s.mu.Unlock()
		return document.Widget{}, &GeometryError{ID: w.ID, Rect: w.Rect()}
	}
	if w.NestID != "" {
		if _, ok := s.state.Nests[w.NestID]; !ok {
			s.mu.Unlock()
			return document.Widget{}, fmt.Errorf("add widget %q to nest %q: %w", w.ID, w.NestID, ErrNotFound)
		}
	}

	now := document.Timestamp(s.now())
	if w.CreatedAt == "" {
		w.CreatedAt = now
	}
	w.UpdatedAt = now

	grew := false
	if w.NestID == "" {
		s.state.Main[w.ID] = w
	} else {
		s.state.Nested[w.ID] = w
		grew = s.autoSizeNestLocked(w.NestID)
	}
	s.dirty = true
	s.mu.Unlock()

	s.Emit(Event{Type: EventItemCreated, ItemID: w.ID})
	if grew {
		s.Emit(Event{Type: EventItemUpdated, ItemID: w.NestID})
	}
	return w, nil
}

// AddNest inserts a nest container. ParentNestID, if set, must exist.
func (s *Store) AddNest(n document.NestContainer) (document.NestContainer, error) {
	s.mu.Lock()
	if n.W <= 0 || n.H <= 0 {
		s.mu.Unlock()
		return document.NestContainer{}, &GeometryError{ID: n.ID, Rect: n.Rect()}
	}
	if n.ParentNestID != "" {
		if _, ok := s.state.Nests[n.ParentNestID]; !ok {
			s.mu.Unlock()
			return document.NestContainer{}, fmt.Errorf("add nest %q under %q: %w", n.ID, n.ParentNestID, ErrNotFound)
		}
	}

	now := document.Timestamp(s.now())
	if n.CreatedAt == "" {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	s.state.Nests[n.ID] = n
	s.dirty = true
	s.mu.Unlock()

	s.Emit(Event{Type: EventNestAdded, ItemID: n.ID})
	return n, nil
}

// UpdateWidget applies a partial update to a widget in either container.
func (s *Store) UpdateWidget(id string, p WidgetPatch) (document.Widget, error) {
	s.mu.Lock()
	w, inNest, ok := s.lookupWidgetLocked(id)
	if !ok {
		s.mu.Unlock()
		return document.Widget{}, fmt.Errorf("update widget %q: %w", id, ErrNotFound)
	}

	if p.X != nil {
		w.X = *p.X
	}
	if p.Y != nil {
		w.Y = *p.Y
	}
	if p.W != nil {
		w.W = *p.W
	}
	if p.H != nil {
		w.H = *p.H
	}
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.StreamID != nil {
		w.StreamID = *p.StreamID
	}
	if p.Config != nil {
		w.Config = p.Config
	}
	if p.Data != nil {
		w.Data = p.Data
	}

	if w.W <= 0 || w.H <= 0 {
		s.mu.Unlock()
		return document.Widget{}, &GeometryError{ID: id, Rect: w.Rect()}
	}

	w.UpdatedAt = document.Timestamp(s.now())
	if inNest {
		s.state.Nested[id] = w
	} else {
		s.state.Main[id] = w
	}
	s.dirty = true
	s.mu.Unlock()

	s.Emit(Event{Type: EventItemUpdated, ItemID: id})
	return w, nil
}

// UpdateNest applies a partial update to a nest container.
func (s *Store) UpdateNest(id string, p NestPatch) (document.NestContainer, error) {
	s.mu.Lock()
	n, ok := s.state.Nests[id]
	if !ok {
		s.mu.Unlock()
		return document.NestContainer{}, fmt.Errorf("update nest %q: %w", id, ErrNotFound)
	}

	if p.X != nil {
		n.X = *p.X
	}
	if p.Y != nil {
		n.Y = *p.Y
	}
	if p.W != nil {
		n.W = *p.W
	}
	if p.H != nil {
		n.H = *p.H
	}
	if p.Title != nil {
		n.Title = *p.Title
	}

	if n.W <= 0 || n.H <= 0 {
		s.mu.Unlock()
		return document.NestContainer{}, &GeometryError{ID: id, Rect: n.Rect()}
	}

	n.UpdatedAt = document.Timestamp(s.now())
	s.state.Nests[id] = n
	s.dirty = true
	s.mu.Unlock()

	s.Emit(Event{Type: EventItemUpdated, ItemID: id})
	return n, nil
}

// UpdateWidgetData replaces a widget's live data blob. Data pushes arrive
// continuously from streaming backends, so they do not mark the layout dirty
// and never trigger auto-save on their own.
func (s *Store) UpdateWidgetData(id string, data json.RawMessage) error {
	s.mu.Lock()
	w, inNest, ok := s.lookupWidgetLocked(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update widget data %q: %w", id, ErrNotFound)
	}
	w.Data = data
	if inNest {
		s.state.Nested[id] = w
	} else {
		s.state.Main[id] = w
	}
	s.mu.Unlock()

	s.Emit(Event{Type: EventDataUpdated, ItemID: id})
	return nil
}

// RemoveWidget deletes a widget from whichever container holds it.
func (s *Store) RemoveWidget(id string) error {
	s.mu.Lock()
	if _, ok := s.state.Main[id]; ok {
		delete(s.state.Main, id)
	} else if _, ok := s.state.Nested[id]; ok {
		delete(s.state.Nested, id)
	} else {
		s.mu.Unlock()
		return fmt.Errorf("remove widget %q: %w", id, ErrNotFound)
	}
	s.dirty = true
	s.mu.Unlock()

	s.Emit(Event{Type: EventItemRemoved, ItemID: id})
	return nil
}

// RemoveNest deletes a nest container. Its child widgets are promoted to the
// main grid at their absolute positions and child nests are detached from the
// parent relation, so no dangling references remain.
func (s *Store) RemoveNest(id string) error {
	s.mu.Lock()
	nest, ok := s.state.Nests[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("remove nest %q: %w", id, ErrNotFound)
	}

	now := document.Timestamp(s.now())
	origin := nest.ContentOrigin()
	for wid, w := range s.state.Nested {
		if w.NestID != id {
			continue
		}
		delete(s.state.Nested, wid)
		w.NestID = ""
		w.X += origin.X
		w.Y += origin.Y
		w.UpdatedAt = now
		s.state.Main[wid] = w
	}
	for nid, child := range s.state.Nests {
		if child.ParentNestID == id {
			child.ParentNestID = ""
			child.UpdatedAt = now
			s.state.Nests[nid] = child
		}
	}

	delete(s.state.Nests, id)
	s.dirty = true
	s.mu.Unlock()

	s.Emit(Event{Type: EventNestRemoved, ItemID: id})
	return nil
}

// MoveWidget transfers a widget between containers, recomputing its
// coordinates for the destination space so the absolute world position is
// preserved. An empty toNestID targets the main grid.
func (s *Store) MoveWidget(id, toNestID string) (document.Widget, error) {
	s.mu.Lock()
	w, inNest, ok := s.lookupWidgetLocked(id)
	if !ok {
		s.mu.Unlock()
		return document.Widget{}, fmt.Errorf("move widget %q: %w", id, ErrNotFound)
	}

	// To absolute world coordinates first.
	abs := geometry.Point{X: w.X, Y: w.Y}
	if inNest {
		src, ok := s.state.Nests[w.NestID]
		if !ok {
			s.mu.Unlock()
			return document.Widget{}, fmt.Errorf("move widget %q: source nest %q: %w", id, w.NestID, ErrNotFound)
		}
		origin := src.ContentOrigin()
		abs.X += origin.X
		abs.Y += origin.Y
	}

	if toNestID == "" {
		w.NestID = ""
		w.X, w.Y = abs.X, abs.Y
	} else {
		dst, ok := s.state.Nests[toNestID]
		if !ok {
			s.mu.Unlock()
			return document.Widget{}, fmt.Errorf("move widget %q: destination nest %q: %w", id, toNestID, ErrNotFound)
		}
		origin := dst.ContentOrigin()
		w.NestID = toNestID
		w.X = abs.X - origin.X
		w.Y = abs.Y - origin.Y
	}

	if inNest {
		delete(s.state.Nested, id)
	} else {
		delete(s.state.Main, id)
	}
	w.UpdatedAt = document.Timestamp(s.now())
	grew := false
	if w.NestID == "" {
		s.state.Main[id] = w
	} else {
		s.state.Nested[id] = w
		grew = s.autoSizeNestLocked(w.NestID)
	}
	s.dirty = true
	s.mu.Unlock()

	s.Emit(Event{Type: EventItemMoved, ItemID: id, Detail: toNestID})
	if grew {
		s.Emit(Event{Type: EventItemUpdated, ItemID: w.NestID})
	}
	return w, nil
}

// SetNestParent reparents a nest. Reparenting under the nest itself or any
// of its descendants is rejected with a CycleError.
func (s *Store) SetNestParent(nestID, parentID string) error {
	s.mu.Lock()
	n, ok := s.state.Nests[nestID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("reparent nest %q: %w", nestID, ErrNotFound)
	}
	if parentID != "" {
		if _, ok := s.state.Nests[parentID]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("reparent nest %q under %q: %w", nestID, parentID, ErrNotFound)
		}
		if s.wouldCycleLocked(nestID, parentID) {
			s.mu.Unlock()
			return &CycleError{NestID: nestID, ParentID: parentID}
		}
	}

	n.ParentNestID = parentID
	n.UpdatedAt = document.Timestamp(s.now())
	s.state.Nests[nestID] = n
	s.dirty = true
	s.mu.Unlock()

	s.Emit(Event{Type: EventItemMoved, ItemID: nestID, Detail: parentID})
	return nil
}

// SetViewport stores a new viewport. Zoom clamping happens in the viewport
// controller before this call.
func (s *Store) SetViewport(v document.Viewport) {
	s.mu.Lock()
	changed := s.state.Viewport != v
	s.state.Viewport = v
	if changed {
		s.dirty = true
	}
	s.mu.Unlock()

	if changed {
		s.Emit(Event{Type: EventViewportChanged})
	}
}

// ApplyPush commits push-resolution results for a container in one update.
// nestID selects the container scope; empty means the main grid. Unknown ids
// and unpushed entries are skipped.
func (s *Store) ApplyPush(nestID string, results []geometry.PushResult) {
	s.mu.Lock()
	now := document.Timestamp(s.now())
	moved := make([]string, 0, len(results))
	for _, r := range results {
		if !r.Pushed {
			continue
		}
		if nestID == "" {
			if w, ok := s.state.Main[r.ID]; ok {
				w.X, w.Y = r.X, r.Y
				w.UpdatedAt = now
				s.state.Main[r.ID] = w
				moved = append(moved, r.ID)
				continue
			}
			if n, ok := s.state.Nests[r.ID]; ok {
				n.X, n.Y = r.X, r.Y
				n.UpdatedAt = now
				s.state.Nests[r.ID] = n
				moved = append(moved, r.ID)
			}
			continue
		}
		if w, ok := s.state.Nested[r.ID]; ok && w.NestID == nestID {
			w.X, w.Y = r.X, r.Y
			w.UpdatedAt = now
			s.state.Nested[r.ID] = w
			moved = append(moved, r.ID)
		}
	}
	if len(moved) > 0 {
		s.dirty = true
	}
	s.mu.Unlock()

	for _, id := range moved {
		s.Emit(Event{Type: EventItemUpdated, ItemID: id})
	}
}

// CommitFrame commits one gesture frame atomically: the moved item's new
// position plus every pushed sibling land in a single state update, so a
// frame produces one notification rather than one per pushed item.
func (s *Store) CommitFrame(id, nestID string, pos geometry.Point, results []geometry.PushResult) error {
	s.mu.Lock()
	now := document.Timestamp(s.now())

	if w, inNest, ok := s.lookupWidgetLocked(id); ok {
		w.X, w.Y = pos.X, pos.Y
		w.UpdatedAt = now
		if inNest {
			s.state.Nested[id] = w
		} else {
			s.state.Main[id] = w
		}
	} else if n, ok := s.state.Nests[id]; ok {
		n.X, n.Y = pos.X, pos.Y
		n.UpdatedAt = now
		s.state.Nests[id] = n
	} else {
		s.mu.Unlock()
		return fmt.Errorf("commit frame for %q: %w", id, ErrNotFound)
	}

	for _, r := range results {
		if !r.Pushed {
			continue
		}
		if nestID == "" {
			if w, ok := s.state.Main[r.ID]; ok {
				w.X, w.Y = r.X, r.Y
				w.UpdatedAt = now
				s.state.Main[r.ID] = w
			} else if n, ok := s.state.Nests[r.ID]; ok {
				n.X, n.Y = r.X, r.Y
				n.UpdatedAt = now
				s.state.Nests[r.ID] = n
			}
			continue
		}
		if w, ok := s.state.Nested[r.ID]; ok && w.NestID == nestID {
			w.X, w.Y = r.X, r.Y
			w.UpdatedAt = now
			s.state.Nested[r.ID] = w
		}
	}

	grew := nestID != "" && s.autoSizeNestLocked(nestID)
	s.dirty = true
	s.mu.Unlock()

	s.Emit(Event{Type: EventItemUpdated, ItemID: id})
	if grew {
		s.Emit(Event{Type: EventItemUpdated, ItemID: nestID})
	}
	return nil
}

// autoSizeNestLocked grows a nest to the smallest grid-aligned size that
// contains its children. It never shrinks, so a manual resize sticks.
func (s *Store) autoSizeNestLocked(nestID string) bool {
	n, ok := s.state.Nests[nestID]
	if !ok {
		return false
	}

	children := make([]geometry.Rect, 0, len(s.state.Nested))
	for _, w := range s.state.Nested {
		if w.NestID == nestID {
			children = append(children, w.Rect())
		}
	}

	size := geometry.NestAutoSize(children, s.state.GridSize)
	if size.W <= n.W && size.H <= n.H {
		return false
	}
	n.W = max(size.W, n.W)
	n.H = max(size.H, n.H)
	n.UpdatedAt = document.Timestamp(s.now())
	s.state.Nests[nestID] = n
	return true
}

// SiblingBoxes returns the push-solver view of a container's contents,
// excluding the given id. Widgets on the main grid share the space with nest
// containers; nested widgets only see siblings of the same nest.
func (s *Store) SiblingBoxes(nestID, excludeID string) []geometry.Box {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var boxes []geometry.Box
	if nestID == "" {
		for id, w := range s.state.Main {
			if id != excludeID {
				boxes = append(boxes, geometry.Box{ID: id, Rect: w.Rect()})
			}
		}
		for id, n := range s.state.Nests {
			if id != excludeID && n.ParentNestID == "" {
				boxes = append(boxes, geometry.Box{ID: id, Rect: n.Rect()})
			}
		}
		return boxes
	}
	for id, w := range s.state.Nested {
		if id != excludeID && w.NestID == nestID {
			boxes = append(boxes, geometry.Box{ID: id, Rect: w.Rect()})
		}
	}
	return boxes
}

// Widget looks up a widget in either container.
func (s *Store) Widget(id string) (document.Widget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, _, ok := s.lookupWidgetLocked(id)
	return w, ok
}

// Nest looks up a nest container.
func (s *Store) Nest(id string) (document.NestContainer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.state.Nests[id]
	return n, ok
}

// NestAt returns the topmost nest whose bounds contain the given world
// point, preferring the most recently updated on overlap.
func (s *Store) NestAt(p geometry.Point) (document.NestContainer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best document.NestContainer
	found := false
	for _, n := range s.state.Nests {
		if !n.Rect().Contains(p) {
			continue
		}
		if !found || n.UpdatedAt > best.UpdatedAt || (n.UpdatedAt == best.UpdatedAt && n.ID > best.ID) {
			best = n
			found = true
		}
	}
	return best, found
}

func (s *Store) lookupWidgetLocked(id string) (document.Widget, bool, bool) {
	if w, ok := s.state.Main[id]; ok {
		return w, false, true
	}
	if w, ok := s.state.Nested[id]; ok {
		return w, true, true
	}
	return document.Widget{}, false, false
}

// wouldCycleLocked walks up from parentID; if it reaches nestID the
// reparent would create a cycle.
func (s *Store) wouldCycleLocked(nestID, parentID string) bool {
	seen := make(map[string]bool)
	for cur := parentID; cur != ""; {
		if cur == nestID {
			return true
		}
		if seen[cur] {
			return true
		}
		seen[cur] = true
		n, ok := s.state.Nests[cur]
		if !ok {
			return false
		}
		cur = n.ParentNestID
	}
	return false
}
