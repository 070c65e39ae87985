// Package engine is the single facade over the grid store, gesture
// controller, viewport, history and culling. The frontend (wasm bindings or
// HTTP handlers) drives it through commands and reads query results back as
// JSON strings.
package engine

import (
	"encoding/json"
	"fmt"

	"github.com/AryanRai/AriesUI-sub001/internal/cull"
	"github.com/AryanRai/AriesUI-sub001/internal/document"
	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
	"github.com/AryanRai/AriesUI-sub001/internal/grid"
	"github.com/AryanRai/AriesUI-sub001/internal/history"
	"github.com/AryanRai/AriesUI-sub001/internal/interact"
	"github.com/AryanRai/AriesUI-sub001/internal/typeid"
	"github.com/AryanRai/AriesUI-sub001/internal/viewport"
)

// Engine owns the grid document state and every controller that mutates it.
type Engine struct {
	store    *grid.Store
	view     *viewport.Controller
	input    *interact.Controller
	history  *history.History
	recorder *history.Recorder

	// Screen size in CSS pixels, set by the frontend on mount/resize.
	screenW float64
	screenH float64

	// Selection state (backend owns this)
	selection []string
}

// NewEngine creates an engine over an empty grid, with the current (empty)
// state seeded as the undo baseline.
func NewEngine() *Engine {
	store := grid.NewStore()
	view := viewport.New(store)
	hist := history.New(history.DefaultCapacity)

	e := &Engine{
		store:    store,
		view:     view,
		input:    interact.New(store, view),
		history:  hist,
		recorder: history.NewRecorder(hist, history.DefaultDebounce),
	}
	e.seedHistory()
	return e
}

// Store exposes the underlying grid store for server-side wiring (stream
// data pushes, persistence). Wasm callers never need it.
func (e *Engine) Store() *grid.Store { return e.store }

// History exposes the undo history for persistence wiring.
func (e *Engine) History() *history.History { return e.history }

// --- Commands (frontend → backend) ---

// LoadDocument replaces the grid state with a document decoded from JSON and
// resets undo history to it.
func (e *Engine) LoadDocument(jsonData string) error {
	var doc document.Document
	if err := json.Unmarshal([]byte(jsonData), &doc); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	e.store.Restore(grid.StateFromDocument(doc))
	e.store.ConsumeDirty()
	e.selection = nil
	e.seedHistory()
	return nil
}

// LoadSampleDocument loads the built-in sample layout.
func (e *Engine) LoadSampleDocument() {
	doc := document.NewSampleDocument(typeid.NewWidgetID, typeid.NewNestID)
	e.store.Restore(grid.StateFromDocument(*doc))
	e.store.ConsumeDirty()
	e.selection = nil
	e.seedHistory()
}

// SetScreenSize records the render surface size used for culling.
func (e *Engine) SetScreenSize(w, h float64) {
	e.screenW = w
	e.screenH = h
}

// AddWidget decodes a widget from JSON, assigns it an id when missing and
// inserts it. Returns the stored widget as JSON.
func (e *Engine) AddWidget(jsonData string) (string, error) {
	var w document.Widget
	if err := json.Unmarshal([]byte(jsonData), &w); err != nil {
		return "", fmt.Errorf("decode widget: %w", err)
	}
	if w.ID == "" {
		w.ID = typeid.NewWidgetID()
	}
	w.X, w.Y = e.placeClear(w)
	stored, err := e.store.AddWidget(w)
	if err != nil {
		return "", err
	}
	out, _ := json.Marshal(stored)
	return string(out), nil
}

// placeClear returns the position for an explicitly added widget. When the
// requested rect overlaps a sibling the ring search supplies the nearest free
// grid-aligned spot instead of stacking the new widget on top.
func (e *Engine) placeClear(w document.Widget) (float64, float64) {
	rect := geometry.Rect{X: w.X, Y: w.Y, W: w.W, H: w.H}
	siblings := e.store.SiblingBoxes(w.NestID, w.ID)
	for _, b := range siblings {
		if geometry.Collides(rect, b.Rect) {
			taken := make([]geometry.Rect, len(siblings))
			for i, s := range siblings {
				taken[i] = s.Rect
			}
			p := geometry.FindNonCollidingPosition(rect, taken, e.store.GridSize())
			return p.X, p.Y
		}
	}
	return w.X, w.Y
}

// AddNest decodes a nest container from JSON, assigns it an id when missing
// and inserts it. Returns the stored nest as JSON.
func (e *Engine) AddNest(jsonData string) (string, error) {
	var n document.NestContainer
	if err := json.Unmarshal([]byte(jsonData), &n); err != nil {
		return "", fmt.Errorf("decode nest: %w", err)
	}
	if n.ID == "" {
		n.ID = typeid.NewNestID()
	}
	stored, err := e.store.AddNest(n)
	if err != nil {
		return "", err
	}
	out, _ := json.Marshal(stored)
	return string(out), nil
}

// RemoveWidget deletes a widget by id.
func (e *Engine) RemoveWidget(id string) error {
	e.dropSelection(id)
	return e.store.RemoveWidget(id)
}

// RemoveNest deletes a nest container, promoting its children to the main
// grid.
func (e *Engine) RemoveNest(id string) error {
	e.dropSelection(id)
	return e.store.RemoveNest(id)
}

// PushWidgetData replaces a widget's live data blob. Live telemetry is not
// a layout edit, so this never creates an undo entry.
func (e *Engine) PushWidgetData(id string, jsonData string) error {
	return e.store.UpdateWidgetData(id, json.RawMessage(jsonData))
}

// SetSelection sets the selected item ids.
func (e *Engine) SetSelection(ids []string) {
	e.selection = ids
}

// BeginDrag starts dragging the item under the screen-space pointer.
func (e *Engine) BeginDrag(id string, x, y float64) {
	e.input.BeginDrag(id, geometry.Point{X: x, Y: y})
}

// BeginResize starts resizing via a compass handle ("n", "ne", ... "nw").
func (e *Engine) BeginResize(id, handle string, x, y float64) {
	e.input.BeginResize(id, interact.Handle(handle), geometry.Point{X: x, Y: y})
}

// BeginPan starts a viewport pan, reporting whether the button combination
// activates one.
func (e *Engine) BeginPan(x, y float64, button int, ctrlKey bool) bool {
	return e.input.BeginPan(geometry.Point{X: x, Y: y}, button, ctrlKey)
}

// PointerMove advances the active gesture.
func (e *Engine) PointerMove(x, y float64) {
	e.input.UpdatePointer(geometry.Point{X: x, Y: y})
}

// PointerUp settles the active gesture.
func (e *Engine) PointerUp() {
	e.input.EndGesture()
}

// CancelGesture aborts the active gesture without the commit step.
func (e *Engine) CancelGesture() {
	e.input.Cancel()
}

// Drop materializes a palette payload as a new widget at the screen-space
// pointer. Returns the created widget as JSON.
func (e *Engine) Drop(payload string, x, y float64) (string, error) {
	w, err := e.input.DropTemplate([]byte(payload), geometry.Point{X: x, Y: y})
	if err != nil {
		return "", err
	}
	out, _ := json.Marshal(w)
	return string(out), nil
}

// Wheel routes a wheel event: pinch and mouse-wheel zoom, trackpad pans.
func (e *Engine) Wheel(deltaX, deltaY float64, ctrlKey, lineDelta bool, x, y float64) {
	e.view.HandleWheel(viewport.WheelEvent{
		DeltaX:    deltaX,
		DeltaY:    deltaY,
		CtrlKey:   ctrlKey,
		LineDelta: lineDelta,
	}, geometry.Point{X: x, Y: y})
}

// ZoomIn zooms one keyboard step in, anchored at the screen point.
func (e *Engine) ZoomIn(x, y float64) {
	e.view.ZoomIn(geometry.Point{X: x, Y: y})
}

// ZoomOut zooms one keyboard step out, anchored at the screen point.
func (e *Engine) ZoomOut(x, y float64) {
	e.view.ZoomOut(geometry.Point{X: x, Y: y})
}

// ResetViewport restores the origin pan and identity zoom.
func (e *Engine) ResetViewport() {
	e.view.Reset()
}

// Undo steps back one settled mutation. Returns false at the oldest entry.
func (e *Engine) Undo() bool {
	e.input.Cancel()
	e.recorder.Flush()
	entry, ok := e.history.Undo()
	if !ok {
		return false
	}
	e.restoreEntry(entry)
	return true
}

// Redo steps forward one undone mutation. Returns false at the newest entry.
func (e *Engine) Redo() bool {
	e.input.Cancel()
	e.recorder.Flush()
	entry, ok := e.history.Redo()
	if !ok {
		return false
	}
	e.restoreEntry(entry)
	return true
}

// Tick is called once per animation frame. When mutations settled since the
// last frame it hands a snapshot to the debounced history recorder.
func (e *Engine) Tick() {
	if e.store.ConsumeDirty() {
		e.recorder.Record(history.Entry{
			State:    e.store.State(),
			Viewport: e.store.Viewport(),
		})
	}
}

// --- Queries (frontend ← backend) ---

// sceneView is the per-frame render payload: the full item lists plus the
// visibility verdict for each, so the frontend renders only what survived
// culling without diffing state itself.
type sceneView struct {
	Viewport document.Viewport        `json:"viewport"`
	GridSize float64                  `json:"gridSize"`
	Main     []document.Widget        `json:"main"`
	Nests    []document.NestContainer `json:"nests"`
	Nested   []document.Widget        `json:"nested"`
	Visible  visibleSets              `json:"visible"`
	Stats    cullStats                `json:"stats"`
}

type visibleSets struct {
	Main   map[string]bool `json:"main"`
	Nests  map[string]bool `json:"nests"`
	Nested map[string]bool `json:"nested"`
}

type cullStats struct {
	Total     int     `json:"total"`
	Rendered  int     `json:"rendered"`
	Culled    int     `json:"culled"`
	CullRatio float64 `json:"cullRatio"`
}

// RenderScene computes the culled scene for the current viewport and screen
// size and returns it as JSON.
func (e *Engine) RenderScene() string {
	state := e.store.State()
	res := cull.Compute(state, e.screenW, e.screenH, cull.ActiveSet{
		DraggedID: e.input.ActiveDragID(),
		ResizedID: e.input.ActiveResizeID(),
	})

	doc := state.ToDocument()
	view := sceneView{
		Viewport: state.Viewport,
		GridSize: state.GridSize,
		Main:     doc.MainItems,
		Nests:    doc.NestContainers,
		Nested:   doc.NestedItems,
		Visible: visibleSets{
			Main:   res.Main,
			Nests:  res.Nests,
			Nested: res.Nested,
		},
		Stats: cullStats{
			Total:     res.Stats.Total,
			Rendered:  res.Stats.Rendered,
			Culled:    res.Stats.Culled,
			CullRatio: res.Stats.CullRatio,
		},
	}
	out, _ := json.Marshal(view)
	return string(out)
}

// GetDocument returns the full document as JSON.
func (e *Engine) GetDocument() string {
	doc := e.store.State().ToDocument()
	out, _ := json.Marshal(doc)
	return string(out)
}

// GetViewport returns the current viewport as JSON.
func (e *Engine) GetViewport() string {
	out, _ := json.Marshal(e.store.Viewport())
	return string(out)
}

// GetHistoryState returns undo/redo availability as JSON.
func (e *Engine) GetHistoryState() string {
	out, _ := json.Marshal(map[string]any{
		"canUndo": e.history.CanUndo(),
		"canRedo": e.history.CanRedo(),
		"entries": e.history.Len(),
	})
	return string(out)
}

// GetGestureState returns the active gesture for cursor/overlay rendering.
func (e *Engine) GetGestureState() string {
	drag := e.input.Drag()
	out, _ := json.Marshal(map[string]any{
		"mode":       gestureModeName(e.input.Mode()),
		"dragId":     e.input.ActiveDragID(),
		"resizeId":   e.input.ActiveResizeID(),
		"overNestId": drag.OverNestID,
	})
	return string(out)
}

// GetSelection returns the current selection as JSON.
func (e *Engine) GetSelection() string {
	out, _ := json.Marshal(e.selection)
	return string(out)
}

// ScreenToWorld converts a screen point through the current viewport.
func (e *Engine) ScreenToWorld(x, y float64) (float64, float64) {
	p := e.view.ScreenToWorld(geometry.Point{X: x, Y: y})
	return p.X, p.Y
}

func (e *Engine) seedHistory() {
	e.history.Reset(history.Entry{
		State:    e.store.State(),
		Viewport: e.store.Viewport(),
	})
}

// restoreEntry swaps the store to a history snapshot without re-recording
// it: the restore marks the store dirty, which is swallowed here so the next
// Tick does not push the snapshot back as a new entry.
func (e *Engine) restoreEntry(entry history.Entry) {
	state := entry.State.Clone()
	state.Viewport = entry.Viewport
	e.store.Restore(state)
	e.store.ConsumeDirty()
}

func (e *Engine) dropSelection(id string) {
	for i, sel := range e.selection {
		if sel == id {
			e.selection = append(e.selection[:i], e.selection[i+1:]...)
			return
		}
	}
}

func gestureModeName(m interact.Mode) string {
	switch m {
	case interact.Dragging:
		return "dragging"
	case interact.Resizing:
		return "resizing"
	case interact.Panning:
		return "panning"
	default:
		return "idle"
	}
}
