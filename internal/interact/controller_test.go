package interact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
	"github.com/AryanRai/AriesUI-sub001/internal/grid"
	"github.com/AryanRai/AriesUI-sub001/internal/viewport"
)

func newTestController() (*Controller, *grid.Store) {
	s := grid.NewStore()
	s.SetClock(func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) })
	c := New(s, viewport.New(s))
	c.SetMoveThrottle(0)
	return c, s
}

func TestDrag_SmoothDuringGestureSnappedAtCommit(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddWidget(document.Widget{ID: "widget_a", X: 100, Y: 100, W: 100, H: 100})
	require.NoError(t, err)

	c.BeginDrag("widget_a", geometry.Point{X: 110, Y: 110})
	require.Equal(t, Dragging, c.Mode())

	c.UpdatePointer(geometry.Point{X: 163, Y: 177})
	w, _ := s.Widget("widget_a")
	assert.Equal(t, 153.0, w.X, "mid-gesture positions are unsnapped")
	assert.Equal(t, 167.0, w.Y)

	c.EndGesture()
	assert.Equal(t, Idle, c.Mode())

	w, _ = s.Widget("widget_a")
	assert.Equal(t, 160.0, w.X, "commit snaps to the nearest grid multiple")
	assert.Equal(t, 160.0, w.Y)
}

func TestDrag_PushesSiblings(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddWidget(document.Widget{ID: "widget_a", X: 0, Y: 0, W: 100, H: 100})
	require.NoError(t, err)
	_, err = s.AddWidget(document.Widget{ID: "widget_b", X: 200, Y: 0, W: 100, H: 100})
	require.NoError(t, err)

	c.BeginDrag("widget_a", geometry.Point{X: 0, Y: 0})
	c.UpdatePointer(geometry.Point{X: 160, Y: 0})
	c.EndGesture()

	a, _ := s.Widget("widget_a")
	b, _ := s.Widget("widget_b")
	assert.False(t, geometry.Collides(a.Rect(), b.Rect()), "sibling must be pushed clear")
	assert.NotEqual(t, 200.0, b.X, "sibling actually moved")
}

func TestDrag_IntoNestTransfersWithHeaderOffset(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddNest(document.NestContainer{ID: "nest_a", X: 300, Y: 300, W: 400, H: 300})
	require.NoError(t, err)
	_, err = s.AddWidget(document.Widget{ID: "widget_a", X: 100, Y: 100, W: 100, H: 100})
	require.NoError(t, err)

	// Grab the widget at its origin and carry it so it settles at (400, 400):
	// its center (450, 450) lies inside the nest bounds.
	c.BeginDrag("widget_a", geometry.Point{X: 100, Y: 100})
	c.UpdatePointer(geometry.Point{X: 400, Y: 400})
	assert.Equal(t, "nest_a", c.Drag().OverNestID, "entering-nest preview is flagged")
	c.EndGesture()

	w, ok := s.Widget("widget_a")
	require.True(t, ok)
	assert.Equal(t, "nest_a", w.NestID)
	assert.Equal(t, 100.0, w.X, "relative to nest origin x=300")
	assert.Equal(t, 60.0, w.Y, "relative to nest content origin y=300+40")
}

func TestDrag_OutOfNestPromotesToMain(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddNest(document.NestContainer{ID: "nest_a", X: 300, Y: 300, W: 400, H: 300})
	require.NoError(t, err)
	_, err = s.AddWidget(document.Widget{ID: "widget_a", NestID: "nest_a", X: 20, Y: 20, W: 100, H: 100})
	require.NoError(t, err)

	// Absolute origin is (320, 360); drag far outside the nest.
	c.BeginDrag("widget_a", geometry.Point{X: 320, Y: 360})
	c.UpdatePointer(geometry.Point{X: 40, Y: 40})
	c.EndGesture()

	w, _ := s.Widget("widget_a")
	assert.Empty(t, w.NestID)
	assert.Equal(t, 40.0, w.X)
	assert.Equal(t, 40.0, w.Y)
}

func TestDrag_WithinOwnNestKeepsPushPhysics(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddNest(document.NestContainer{ID: "nest_a", X: 0, Y: 0, W: 600, H: 600})
	require.NoError(t, err)
	_, err = s.AddWidget(document.Widget{ID: "widget_a", NestID: "nest_a", X: 20, Y: 20, W: 100, H: 100})
	require.NoError(t, err)
	_, err = s.AddWidget(document.Widget{ID: "widget_b", NestID: "nest_a", X: 200, Y: 20, W: 100, H: 100})
	require.NoError(t, err)

	// widget_a's absolute origin is (20, 60). Drag it onto widget_b.
	c.BeginDrag("widget_a", geometry.Point{X: 20, Y: 60})
	c.UpdatePointer(geometry.Point{X: 180, Y: 60})
	c.EndGesture()

	a, _ := s.Widget("widget_a")
	b, _ := s.Widget("widget_b")
	assert.Equal(t, "nest_a", a.NestID, "no transfer within the same nest")
	assert.False(t, geometry.Collides(a.Rect(), b.Rect()))
}

func TestDrag_AbortsWhenItemVanishes(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddWidget(document.Widget{ID: "widget_a", X: 0, Y: 0, W: 100, H: 100})
	require.NoError(t, err)

	c.BeginDrag("widget_a", geometry.Point{})
	require.NoError(t, s.RemoveWidget("widget_a"))

	c.UpdatePointer(geometry.Point{X: 50, Y: 50})
	assert.Equal(t, Idle, c.Mode(), "missing context aborts silently to idle")
}

func TestDrag_UnknownItemStaysIdle(t *testing.T) {
	c, _ := newTestController()
	c.BeginDrag("widget_missing", geometry.Point{})
	assert.Equal(t, Idle, c.Mode())
}

func TestGesturesAreMutuallyExclusive(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddWidget(document.Widget{ID: "widget_a", X: 0, Y: 0, W: 100, H: 100})
	require.NoError(t, err)

	c.BeginDrag("widget_a", geometry.Point{})
	c.BeginResize("widget_a", HandleSE, geometry.Point{})
	assert.Equal(t, Dragging, c.Mode(), "resize cannot start mid-drag")
	assert.False(t, c.BeginPan(geometry.Point{}, ButtonMiddle, false))
}

func TestResize_SnapsContinuously(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddWidget(document.Widget{ID: "widget_a", X: 100, Y: 100, W: 100, H: 100})
	require.NoError(t, err)

	c.BeginResize("widget_a", HandleSE, geometry.Point{X: 200, Y: 200})
	c.UpdatePointer(geometry.Point{X: 225, Y: 207})

	w, _ := s.Widget("widget_a")
	assert.Equal(t, 120.0, w.W, "resize rounds on every move, not just at commit")
	assert.Equal(t, 100.0, w.H)

	c.EndGesture()
	assert.Equal(t, Idle, c.Mode())
}

func TestResize_MinimumSizeAnchorsOppositeEdge(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddWidget(document.Widget{ID: "widget_a", X: 100, Y: 100, W: 100, H: 100})
	require.NoError(t, err)

	c.BeginResize("widget_a", HandleNW, geometry.Point{X: 100, Y: 100})
	c.UpdatePointer(geometry.Point{X: 500, Y: 500})

	w, _ := s.Widget("widget_a")
	assert.Equal(t, geometry.MinWidgetWidth, w.W)
	assert.Equal(t, geometry.MinWidgetHeight, w.H)
	assert.Equal(t, 160.0, w.X, "right edge stays anchored at 200")
	assert.Equal(t, 160.0, w.Y, "bottom edge stays anchored at 200")
}

func TestResize_NestHasLargerMinimum(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddNest(document.NestContainer{ID: "nest_a", X: 0, Y: 0, W: 400, H: 300})
	require.NoError(t, err)

	c.BeginResize("nest_a", HandleSE, geometry.Point{X: 400, Y: 300})
	c.UpdatePointer(geometry.Point{X: 10, Y: 10})

	n, _ := s.Nest("nest_a")
	assert.Equal(t, geometry.MinNestWidth, n.W)
	assert.Equal(t, geometry.MinNestHeight, n.H)
}

func TestPan(t *testing.T) {
	c, s := newTestController()

	assert.False(t, c.BeginPan(geometry.Point{}, ButtonPrimary, false), "plain primary click never pans")
	assert.True(t, c.BeginPan(geometry.Point{X: 100, Y: 100}, ButtonMiddle, false))

	c.UpdatePointer(geometry.Point{X: 150, Y: 120})
	vp := s.Viewport()
	assert.Equal(t, -50.0, vp.X)
	assert.Equal(t, -20.0, vp.Y)

	c.EndGesture()
	assert.Equal(t, Idle, c.Mode())

	assert.True(t, c.BeginPan(geometry.Point{}, ButtonPrimary, true), "ctrl+primary pans")
	c.Cancel()
	assert.Equal(t, Idle, c.Mode())
}

func TestThrottle_FinalFrameNeverDropped(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddWidget(document.Widget{ID: "widget_a", X: 0, Y: 0, W: 100, H: 100})
	require.NoError(t, err)

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })
	c.SetMoveThrottle(8 * time.Millisecond)

	c.BeginDrag("widget_a", geometry.Point{})
	c.UpdatePointer(geometry.Point{X: 50, Y: 0})

	// Same instant: throttled, held as pending.
	c.UpdatePointer(geometry.Point{X: 93, Y: 0})
	w, _ := s.Widget("widget_a")
	assert.Equal(t, 50.0, w.X, "throttled frame is not applied immediately")

	c.EndGesture()
	w, _ = s.Widget("widget_a")
	assert.Equal(t, 100.0, w.X, "pending frame is drained and snapped at gesture end")
}

func TestDropTemplate_PushScenario(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddWidget(document.Widget{ID: "widget_a", X: 100, Y: 100, W: 200, H: 150})
	require.NoError(t, err)

	payload := []byte(`{"type":"sensor-value","title":"B","defaultSize":{"w":40,"h":40},"ariesModType":"hw_mod_1"}`)
	b, err := c.DropTemplate(payload, geometry.Point{X: 150, Y: 120})
	require.NoError(t, err)

	assert.Equal(t, 140.0, b.X, "drop point adjusted for center offset, snapped to 20")
	assert.Equal(t, 100.0, b.Y)
	assert.JSONEq(t, `{"ariesModType":"hw_mod_1"}`, string(b.Config))

	a, _ := s.Widget("widget_a")
	assert.False(t, geometry.Collides(a.Rect(), b.Rect()), "existing widget pushed clear before insertion")
	assert.Zero(t, mod(a.X, 20))
	assert.Zero(t, mod(a.Y, 20))
}

func TestDropTemplate_IntoNest(t *testing.T) {
	c, s := newTestController()
	_, err := s.AddNest(document.NestContainer{ID: "nest_a", X: 300, Y: 300, W: 400, H: 300})
	require.NoError(t, err)

	payload := []byte(`{"type":"line-chart","title":"Chart","defaultSize":{"w":80,"h":80}}`)
	w, err := c.DropTemplate(payload, geometry.Point{X: 500, Y: 500})
	require.NoError(t, err)

	assert.Equal(t, "nest_a", w.NestID)
	// World (500,500) relative to content origin (300,340) minus half size,
	// snapped: (160, 120).
	assert.Equal(t, 160.0, w.X)
	assert.Equal(t, 120.0, w.Y)
}

func TestDropTemplate_BadPayload(t *testing.T) {
	c, _ := newTestController()
	_, err := c.DropTemplate([]byte("not json"), geometry.Point{})
	assert.Error(t, err)
}

func mod(v, m float64) float64 {
	n := v / m
	return v - float64(int(n))*m
}
