package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
	"github.com/AryanRai/AriesUI-sub001/internal/grid"
)

func newController() (*Controller, *grid.Store) {
	s := grid.NewStore()
	return New(s), s
}

func TestZoomAt_Clamps(t *testing.T) {
	c, _ := newController()

	c.ZoomAt(geometry.Point{}, 100)
	assert.Equal(t, ZoomMax, c.Viewport().Zoom)

	c.ZoomAt(geometry.Point{}, 0.0001)
	assert.Equal(t, ZoomMin, c.Viewport().Zoom)
}

func TestZoomAt_KeepsAnchorFixed(t *testing.T) {
	c, _ := newController()
	anchor := geometry.Point{X: 640, Y: 360}

	before := c.ScreenToWorld(anchor)
	c.ZoomAt(anchor, 1.5)
	after := c.ScreenToWorld(anchor)

	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
	assert.InDelta(t, 1.5, c.Viewport().Zoom, 1e-9)
}

func TestPan(t *testing.T) {
	c, _ := newController()

	c.Pan(100, -50)
	vp := c.Viewport()
	assert.Equal(t, -100.0, vp.X)
	assert.Equal(t, 50.0, vp.Y)

	// At 2x zoom the same screen delta moves half the world distance.
	c.Reset()
	c.ZoomAt(geometry.Point{}, 2)
	c.Pan(100, 0)
	assert.InDelta(t, -50.0, c.Viewport().X, 1e-9)
}

func TestScreenWorldRoundTrip(t *testing.T) {
	c, _ := newController()
	c.Pan(-200, 80)
	c.ZoomAt(geometry.Point{X: 300, Y: 300}, 1.7)

	p := geometry.Point{X: 123, Y: 456}
	back := c.WorldToScreen(c.ScreenToWorld(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
}

func TestIsMouseWheel(t *testing.T) {
	tests := []struct {
		name string
		ev   WheelEvent
		want bool
	}{
		{"wheel notch", WheelEvent{DeltaY: 120}, true},
		{"wheel notch down", WheelEvent{DeltaY: -120}, true},
		{"line-mode delta", WheelEvent{DeltaY: 3, LineDelta: true}, true},
		{"trackpad small delta", WheelEvent{DeltaY: 12}, false},
		{"trackpad fractional delta", WheelEvent{DeltaY: 87.5}, false},
		{"trackpad diagonal scroll", WheelEvent{DeltaX: 30, DeltaY: 120}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMouseWheel(tt.ev))
		})
	}
}

func TestHandleWheel(t *testing.T) {
	t.Run("trackpad scroll pans", func(t *testing.T) {
		c, _ := newController()
		c.HandleWheel(WheelEvent{DeltaX: 10, DeltaY: 20}, geometry.Point{})
		vp := c.Viewport()
		assert.Equal(t, 10.0, vp.X)
		assert.Equal(t, 20.0, vp.Y)
		assert.Equal(t, 1.0, vp.Zoom)
	})

	t.Run("mouse wheel zooms", func(t *testing.T) {
		c, _ := newController()
		c.HandleWheel(WheelEvent{DeltaY: -120}, geometry.Point{X: 640, Y: 360})
		assert.Greater(t, c.Viewport().Zoom, 1.0)
	})

	t.Run("pinch zooms harder than wheel", func(t *testing.T) {
		c1, _ := newController()
		c1.HandleWheel(WheelEvent{DeltaY: -120}, geometry.Point{})
		c2, _ := newController()
		c2.HandleWheel(WheelEvent{DeltaY: -120, CtrlKey: true}, geometry.Point{})
		assert.Greater(t, c2.Viewport().Zoom, c1.Viewport().Zoom)
	})
}
