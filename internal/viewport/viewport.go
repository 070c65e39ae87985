// Package viewport owns pan/zoom arithmetic for the infinite canvas. The
// mapping is screen = (world - pan) * zoom; pan is in world units.
package viewport

import (
	"math"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
	"github.com/AryanRai/AriesUI-sub001/internal/grid"
)

const (
	ZoomMin = 0.1
	ZoomMax = 3.0

	// KeyZoomStep is the multiplier applied per keyboard zoom shortcut.
	KeyZoomStep = 1.2

	// wheelZoomRate converts wheel deltaY into a zoom factor exponent.
	wheelZoomRate = 0.0015

	// mouseWheelMinDelta separates discrete mouse-wheel notches from
	// trackpad pixel deltas: wheels report large, whole-number steps.
	mouseWheelMinDelta = 40.0
)

// WheelEvent is the engine's view of a wheel/scroll input.
type WheelEvent struct {
	DeltaX    float64
	DeltaY    float64
	CtrlKey   bool // set for trackpad pinch gestures
	LineDelta bool // deltaMode reported lines instead of pixels
}

// Controller mutates the store's viewport. It is one of the two permitted
// producers of grid state mutations (the other is the interaction
// controller).
type Controller struct {
	store *grid.Store
}

func New(store *grid.Store) *Controller {
	return &Controller{store: store}
}

// Viewport returns the current viewport.
func (c *Controller) Viewport() document.Viewport {
	return c.store.Viewport()
}

// ScreenToWorld converts a screen point to world coordinates.
func (c *Controller) ScreenToWorld(p geometry.Point) geometry.Point {
	vp := c.store.Viewport()
	return geometry.Point{X: vp.X + p.X/vp.Zoom, Y: vp.Y + p.Y/vp.Zoom}
}

// WorldToScreen converts a world point to screen coordinates.
func (c *Controller) WorldToScreen(p geometry.Point) geometry.Point {
	vp := c.store.Viewport()
	return geometry.Point{X: (p.X - vp.X) * vp.Zoom, Y: (p.Y - vp.Y) * vp.Zoom}
}

// Pan shifts the viewport by a screen-space delta.
func (c *Controller) Pan(dxScreen, dyScreen float64) {
	vp := c.store.Viewport()
	vp.X -= dxScreen / vp.Zoom
	vp.Y -= dyScreen / vp.Zoom
	c.store.SetViewport(vp)
}

// ZoomAt multiplies the zoom by factor, clamped to [ZoomMin, ZoomMax],
// keeping the world point under the given screen anchor fixed.
func (c *Controller) ZoomAt(anchor geometry.Point, factor float64) {
	vp := c.store.Viewport()
	newZoom := clampZoom(vp.Zoom * factor)
	if newZoom == vp.Zoom {
		return
	}

	// The world point under the anchor must map to the same screen point
	// after the zoom change.
	worldX := vp.X + anchor.X/vp.Zoom
	worldY := vp.Y + anchor.Y/vp.Zoom
	vp.X = worldX - anchor.X/newZoom
	vp.Y = worldY - anchor.Y/newZoom
	vp.Zoom = newZoom
	c.store.SetViewport(vp)
}

// ZoomIn applies one keyboard zoom step anchored at the given screen point
// (typically the screen center).
func (c *Controller) ZoomIn(anchor geometry.Point) {
	c.ZoomAt(anchor, KeyZoomStep)
}

// ZoomOut applies one inverse keyboard zoom step.
func (c *Controller) ZoomOut(anchor geometry.Point) {
	c.ZoomAt(anchor, 1/KeyZoomStep)
}

// Reset restores the identity viewport.
func (c *Controller) Reset() {
	c.store.SetViewport(document.Viewport{X: 0, Y: 0, Zoom: 1})
}

// HandleWheel routes a wheel event: pinch (ctrl) and mouse-wheel notches
// zoom at the pointer, trackpad two-finger scrolls pan.
func (c *Controller) HandleWheel(ev WheelEvent, pointer geometry.Point) {
	if ev.CtrlKey {
		c.ZoomAt(pointer, math.Exp(-ev.DeltaY*wheelZoomRate*4))
		return
	}
	if IsMouseWheel(ev) {
		c.ZoomAt(pointer, math.Exp(-ev.DeltaY*wheelZoomRate))
		return
	}
	c.Pan(-ev.DeltaX, -ev.DeltaY)
}

// IsMouseWheel discriminates a discrete mouse wheel from a trackpad:
// wheels report line-mode deltas or large whole-number vertical steps with
// no horizontal component.
func IsMouseWheel(ev WheelEvent) bool {
	if ev.LineDelta {
		return true
	}
	return ev.DeltaX == 0 &&
		math.Abs(ev.DeltaY) >= mouseWheelMinDelta &&
		ev.DeltaY == math.Trunc(ev.DeltaY)
}

func clampZoom(z float64) float64 {
	return min(max(z, ZoomMin), ZoomMax)
}
