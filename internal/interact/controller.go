// Package interact owns the pointer gesture lifecycles: drag, resize, pan
// and palette drops. It is the only producer of item mutations; the
// rendering layer drives it through a narrow command interface (BeginDrag,
// UpdatePointer, EndGesture) and never owns gesture state itself.
package interact

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
	"github.com/AryanRai/AriesUI-sub001/internal/grid"
	"github.com/AryanRai/AriesUI-sub001/internal/typeid"
	"github.com/AryanRai/AriesUI-sub001/internal/viewport"
)

// Mode is the gesture the controller is currently tracking. Gestures are
// mutually exclusive per pointer device.
type Mode int

const (
	Idle Mode = iota
	Dragging
	Resizing
	Panning
)

// ItemType distinguishes widgets from nest containers in gesture state.
type ItemType string

const (
	TypeWidget ItemType = "widget"
	TypeNest   ItemType = "nest"
)

// Pointer buttons, matching the browser convention.
const (
	ButtonPrimary = 0
	ButtonMiddle  = 1
)

// DefaultMoveThrottle bounds how often pointer-move frames are processed.
const DefaultMoveThrottle = 8 * time.Millisecond

// DragState is the transient state of an in-progress drag.
type DragState struct {
	Active        bool
	ID            string
	Type          ItemType
	SourceNestID  string // "" when dragging from the main grid
	PointerOffset geometry.Point
	StartPosition geometry.Point
	OverNestID    string // nest-entry preview target, "" when none
}

// ResizeState is the transient state of an in-progress resize.
type ResizeState struct {
	Active       bool
	ID           string
	Type         ItemType
	Handle       Handle
	StartPointer geometry.Point
	StartRect    geometry.Rect
}

// Controller is the pointer interaction state machine.
type Controller struct {
	store *grid.Store
	view  *viewport.Controller

	clock    func() time.Time
	throttle time.Duration
	lastMove time.Time
	pending  *geometry.Point

	mode    Mode
	drag    DragState
	resize  ResizeState
	panLast geometry.Point
}

// New creates an idle controller.
func New(store *grid.Store, view *viewport.Controller) *Controller {
	return &Controller{
		store:    store,
		view:     view,
		clock:    time.Now,
		throttle: DefaultMoveThrottle,
	}
}

// SetClock overrides the throttle time source for tests.
func (c *Controller) SetClock(now func() time.Time) { c.clock = now }

// SetMoveThrottle overrides the pointer-move throttle. Non-positive disables
// throttling.
func (c *Controller) SetMoveThrottle(d time.Duration) { c.throttle = d }

// Mode returns the current gesture mode.
func (c *Controller) Mode() Mode { return c.mode }

// Drag returns the transient drag state.
func (c *Controller) Drag() DragState { return c.drag }

// Resize returns the transient resize state.
func (c *Controller) Resize() ResizeState { return c.resize }

// ActiveDragID returns the dragged item id, or "" when no drag is active.
func (c *Controller) ActiveDragID() string {
	if c.mode == Dragging {
		return c.drag.ID
	}
	return ""
}

// ActiveResizeID returns the resized item id, or "" when no resize is
// active.
func (c *Controller) ActiveResizeID() string {
	if c.mode == Resizing {
		return c.resize.ID
	}
	return ""
}

// BeginDrag starts dragging a widget or nest under the given screen-space
// pointer. An unknown id leaves the controller idle.
func (c *Controller) BeginDrag(id string, pointer geometry.Point) {
	if c.mode != Idle {
		return
	}

	pw := c.view.ScreenToWorld(pointer)

	if w, ok := c.store.Widget(id); ok {
		abs := c.widgetAbsOrigin(w)
		c.drag = DragState{
			Active:        true,
			ID:            id,
			Type:          TypeWidget,
			SourceNestID:  w.NestID,
			PointerOffset: geometry.Point{X: pw.X - abs.X, Y: pw.Y - abs.Y},
			StartPosition: abs,
		}
		c.mode = Dragging
		return
	}
	if n, ok := c.store.Nest(id); ok {
		c.drag = DragState{
			Active:        true,
			ID:            id,
			Type:          TypeNest,
			PointerOffset: geometry.Point{X: pw.X - n.X, Y: pw.Y - n.Y},
			StartPosition: geometry.Point{X: n.X, Y: n.Y},
		}
		c.mode = Dragging
		return
	}

	slog.Debug("drag ignored, unknown item", "id", id)
}

// BeginResize starts resizing via one of the eight compass handles.
func (c *Controller) BeginResize(id string, handle Handle, pointer geometry.Point) {
	if c.mode != Idle || !handle.valid() {
		return
	}

	pw := c.view.ScreenToWorld(pointer)

	if w, ok := c.store.Widget(id); ok {
		c.resize = ResizeState{
			Active:       true,
			ID:           id,
			Type:         TypeWidget,
			Handle:       handle,
			StartPointer: pw,
			StartRect:    w.Rect(),
		}
		c.mode = Resizing
		return
	}
	if n, ok := c.store.Nest(id); ok {
		c.resize = ResizeState{
			Active:       true,
			ID:           id,
			Type:         TypeNest,
			Handle:       handle,
			StartPointer: pw,
			StartRect:    n.Rect(),
		}
		c.mode = Resizing
	}
}

// BeginPan starts a viewport pan. Only middle-button or ctrl+primary
// activates it; other buttons are ignored.
func (c *Controller) BeginPan(pointer geometry.Point, button int, ctrlKey bool) bool {
	if c.mode != Idle {
		return false
	}
	if button != ButtonMiddle && !(button == ButtonPrimary && ctrlKey) {
		return false
	}
	c.panLast = pointer
	c.mode = Panning
	return true
}

// UpdatePointer advances the active gesture with a new screen-space pointer
// position. Moves are throttled; the final frame is never dropped because
// EndGesture drains the pending pointer first.
func (c *Controller) UpdatePointer(pointer geometry.Point) {
	if c.mode == Idle {
		return
	}

	now := c.clock()
	if c.throttle > 0 && now.Sub(c.lastMove) < c.throttle {
		p := pointer
		c.pending = &p
		return
	}
	c.lastMove = now
	c.pending = nil
	c.applyMove(pointer)
}

// EndGesture settles the active gesture: drags snap to grid and resolve
// cross-container transfers, resizes and pans just clear their state.
func (c *Controller) EndGesture() {
	if c.pending != nil {
		p := *c.pending
		c.pending = nil
		c.applyMove(p)
	}

	switch c.mode {
	case Dragging:
		c.endDrag()
	case Resizing, Panning:
	}
	c.reset()
}

// Cancel aborts the gesture without the commit step, for focus loss. State
// already committed frame-by-frame stays; transient gesture state clears.
func (c *Controller) Cancel() {
	c.reset()
}

func (c *Controller) reset() {
	c.mode = Idle
	c.drag = DragState{}
	c.resize = ResizeState{}
	c.pending = nil
}

// abort silently resolves a gesture whose required context disappeared
// mid-flight (item deleted, nest removed). No partial commits.
func (c *Controller) abort(reason string) {
	slog.Debug("gesture aborted", "reason", reason)
	c.reset()
}

func (c *Controller) applyMove(pointer geometry.Point) {
	switch c.mode {
	case Dragging:
		c.dragMove(pointer)
	case Resizing:
		c.resizeMove(pointer)
	case Panning:
		c.view.Pan(pointer.X-c.panLast.X, pointer.Y-c.panLast.Y)
		c.panLast = pointer
	}
}

// dragMove computes the smooth (unsnapped) candidate position and commits
// it together with any pushed siblings. Grid rounding happens only at
// commit time, on pointer-up, to avoid visual jitter during the gesture.
func (c *Controller) dragMove(pointer geometry.Point) {
	pw := c.view.ScreenToWorld(pointer)
	abs := geometry.Point{X: pw.X - c.drag.PointerOffset.X, Y: pw.Y - c.drag.PointerOffset.Y}

	if c.drag.Type == TypeNest {
		n, ok := c.store.Nest(c.drag.ID)
		if !ok {
			c.abort("dragged nest vanished")
			return
		}
		moving := geometry.Box{ID: c.drag.ID, Rect: geometry.Rect{X: abs.X, Y: abs.Y, W: n.W, H: n.H}}
		results := geometry.ResolvePush(moving, c.store.SiblingBoxes("", c.drag.ID), c.store.GridSize())
		if err := c.store.CommitFrame(c.drag.ID, "", abs, results); err != nil {
			c.abort("commit failed")
		}
		return
	}

	w, ok := c.store.Widget(c.drag.ID)
	if !ok {
		c.abort("dragged widget vanished")
		return
	}

	center := geometry.Point{X: abs.X + w.W/2, Y: abs.Y + w.H/2}
	if nest, ok := c.store.NestAt(center); ok && nest.ID != c.drag.SourceNestID {
		// Entering-nest preview: move smoothly, no push physics.
		c.drag.OverNestID = nest.ID
		local := c.toLocal(abs, c.drag.SourceNestID)
		if local == nil {
			c.abort("source nest vanished")
			return
		}
		if err := c.store.CommitFrame(c.drag.ID, c.drag.SourceNestID, *local, nil); err != nil {
			c.abort("commit failed")
		}
		return
	}
	c.drag.OverNestID = ""

	local := c.toLocal(abs, c.drag.SourceNestID)
	if local == nil {
		c.abort("source nest vanished")
		return
	}
	moving := geometry.Box{ID: c.drag.ID, Rect: geometry.Rect{X: local.X, Y: local.Y, W: w.W, H: w.H}}
	results := geometry.ResolvePush(moving, c.store.SiblingBoxes(c.drag.SourceNestID, c.drag.ID), c.store.GridSize())
	if err := c.store.CommitFrame(c.drag.ID, c.drag.SourceNestID, *local, results); err != nil {
		c.abort("commit failed")
	}
}

// endDrag snaps the final position to the grid and resolves a
// cross-container transfer when the item's center settled inside a
// different container.
func (c *Controller) endDrag() {
	gridSize := c.store.GridSize()

	if c.drag.Type == TypeNest {
		n, ok := c.store.Nest(c.drag.ID)
		if !ok {
			return
		}
		snapped := geometry.SnapPoint(geometry.Point{X: n.X, Y: n.Y}, gridSize)
		x, y := snapped.X, snapped.Y
		if _, err := c.store.UpdateNest(c.drag.ID, grid.NestPatch{X: &x, Y: &y}); err != nil {
			slog.Debug("drag settle failed", "id", c.drag.ID, "error", err)
		}
		return
	}

	w, ok := c.store.Widget(c.drag.ID)
	if !ok {
		return
	}

	snapped := geometry.SnapPoint(geometry.Point{X: w.X, Y: w.Y}, gridSize)
	x, y := snapped.X, snapped.Y
	if _, err := c.store.UpdateWidget(c.drag.ID, grid.WidgetPatch{X: &x, Y: &y}); err != nil {
		slog.Debug("drag settle failed", "id", c.drag.ID, "error", err)
		return
	}

	// Cross-container transfer when the center settled in another nest (or
	// left the source nest entirely).
	w, _ = c.store.Widget(c.drag.ID)
	abs := c.widgetAbsOrigin(w)
	center := geometry.Point{X: abs.X + w.W/2, Y: abs.Y + w.H/2}

	target := ""
	if nest, ok := c.store.NestAt(center); ok {
		target = nest.ID
	}
	if target != c.drag.SourceNestID {
		if _, err := c.store.MoveWidget(c.drag.ID, target); err != nil {
			slog.Debug("container transfer failed", "id", c.drag.ID, "error", err)
		}
	}
}

// resizeMove derives the candidate rect from the handle and commits it.
// Unlike drag, resize snaps continuously: all four coordinates are rounded
// on every move.
func (c *Controller) resizeMove(pointer geometry.Point) {
	pw := c.view.ScreenToWorld(pointer)
	dx := pw.X - c.resize.StartPointer.X
	dy := pw.Y - c.resize.StartPointer.Y

	minW, minH := geometry.MinWidgetWidth, geometry.MinWidgetHeight
	if c.resize.Type == TypeNest {
		minW, minH = geometry.MinNestWidth, geometry.MinNestHeight
	}

	rect := c.resize.Handle.apply(c.resize.StartRect, dx, dy, minW, minH)
	rect = geometry.SnapRect(rect, c.store.GridSize())
	if rect.W < minW {
		rect.W = geometry.SnapUp(minW, c.store.GridSize())
	}
	if rect.H < minH {
		rect.H = geometry.SnapUp(minH, c.store.GridSize())
	}

	x, y, w, h := rect.X, rect.Y, rect.W, rect.H
	var err error
	if c.resize.Type == TypeNest {
		_, err = c.store.UpdateNest(c.resize.ID, grid.NestPatch{X: &x, Y: &y, W: &w, H: &h})
	} else {
		_, err = c.store.UpdateWidget(c.resize.ID, grid.WidgetPatch{X: &x, Y: &y, W: &w, H: &h})
	}
	if err != nil {
		c.abort("resize commit failed")
	}
}

// DropTemplate converts a serialized palette payload into a new widget at
// the pointer's world position (treated as the widget center, grid-rounded)
// and pushes the destination container's existing children out of the way
// before insertion.
func (c *Controller) DropTemplate(payload []byte, pointer geometry.Point) (document.Widget, error) {
	var p document.DropPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return document.Widget{}, fmt.Errorf("decode drop payload: %w", err)
	}
	if p.DefaultSize.W <= 0 || p.DefaultSize.H <= 0 {
		p.DefaultSize = geometry.Size{W: 200, H: 150}
	}

	gridSize := c.store.GridSize()
	pw := c.view.ScreenToWorld(pointer)

	nestID := ""
	origin := geometry.Point{}
	if nest, ok := c.store.NestAt(pw); ok {
		nestID = nest.ID
		origin = nest.ContentOrigin()
	}

	pos := geometry.SnapPoint(geometry.Point{
		X: pw.X - origin.X - p.DefaultSize.W/2,
		Y: pw.Y - origin.Y - p.DefaultSize.H/2,
	}, gridSize)

	box := geometry.Box{ID: "", Rect: geometry.Rect{X: pos.X, Y: pos.Y, W: p.DefaultSize.W, H: p.DefaultSize.H}}
	results := geometry.ResolvePush(box, c.store.SiblingBoxes(nestID, ""), gridSize)
	c.store.ApplyPush(nestID, results)

	w := document.Widget{
		ID:     typeid.NewWidgetID(),
		Type:   p.Type,
		Title:  p.Title,
		X:      pos.X,
		Y:      pos.Y,
		W:      p.DefaultSize.W,
		H:      p.DefaultSize.H,
		NestID: nestID,
	}
	if p.AriesModType != "" {
		cfg, _ := json.Marshal(map[string]string{"ariesModType": p.AriesModType})
		w.Config = cfg
	}
	return c.store.AddWidget(w)
}

// widgetAbsOrigin returns the widget's top-left in world coordinates,
// resolving nested widgets through their container.
func (c *Controller) widgetAbsOrigin(w document.Widget) geometry.Point {
	if w.NestID == "" {
		return geometry.Point{X: w.X, Y: w.Y}
	}
	nest, ok := c.store.Nest(w.NestID)
	if !ok {
		return geometry.Point{X: w.X, Y: w.Y}
	}
	origin := nest.ContentOrigin()
	return geometry.Point{X: origin.X + w.X, Y: origin.Y + w.Y}
}

// toLocal converts an absolute world position into the coordinate space of
// the given container. Returns nil if the container is gone.
func (c *Controller) toLocal(abs geometry.Point, nestID string) *geometry.Point {
	if nestID == "" {
		return &abs
	}
	nest, ok := c.store.Nest(nestID)
	if !ok {
		return nil
	}
	origin := nest.ContentOrigin()
	return &geometry.Point{X: abs.X - origin.X, Y: abs.Y - origin.Y}
}
