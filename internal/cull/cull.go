// Package cull computes the visible subset of grid items for a viewport so
// the render path can skip off-screen work. Culling never removes anything
// from state.
package cull

import (
	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
	"github.com/AryanRai/AriesUI-sub001/internal/grid"
)

// BufferMargin expands the viewport bounds in world units so items scroll
// into view fully rendered instead of popping in at the edge.
const BufferMargin = 100.0

// ActiveSet names items that must stay visible regardless of geometry: an
// item mid-drag or mid-resize disappearing under the pointer would break the
// gesture.
type ActiveSet struct {
	DraggedID string
	ResizedID string
}

func (a ActiveSet) contains(id string) bool {
	return id != "" && (id == a.DraggedID || id == a.ResizedID)
}

// Stats summarizes one culling pass for diagnostics.
type Stats struct {
	Total     int
	Rendered  int
	Culled    int
	CullRatio float64 // percentage of items culled
}

// Result holds per-collection visible id sets plus pass statistics.
type Result struct {
	Main   map[string]bool
	Nests  map[string]bool
	Nested map[string]bool
	Stats  Stats
}

// Compute classifies every item against the viewport's world bounds expanded
// by BufferMargin. Nested widgets inherit visibility from their parent nest:
// a culled container gates all of its children.
func Compute(state grid.State, screenW, screenH float64, active ActiveSet) Result {
	zoom := state.Viewport.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	bounds := geometry.Rect{
		X: state.Viewport.X - BufferMargin,
		Y: state.Viewport.Y - BufferMargin,
		W: screenW/zoom + 2*BufferMargin,
		H: screenH/zoom + 2*BufferMargin,
	}

	res := Result{
		Main:   make(map[string]bool, len(state.Main)),
		Nests:  make(map[string]bool, len(state.Nests)),
		Nested: make(map[string]bool, len(state.Nested)),
	}

	for id, w := range state.Main {
		res.Main[id] = active.contains(id) || geometry.Collides(w.Rect(), bounds)
	}
	for id, n := range state.Nests {
		res.Nests[id] = active.contains(id) || geometry.Collides(n.Rect(), bounds)
	}
	for id, w := range state.Nested {
		if active.contains(id) {
			res.Nested[id] = true
			continue
		}
		res.Nested[id] = res.Nests[w.NestID]
	}

	total := len(res.Main) + len(res.Nests) + len(res.Nested)
	rendered := 0
	for _, v := range res.Main {
		if v {
			rendered++
		}
	}
	for _, v := range res.Nests {
		if v {
			rendered++
		}
	}
	for _, v := range res.Nested {
		if v {
			rendered++
		}
	}

	res.Stats = Stats{Total: total, Rendered: rendered, Culled: total - rendered}
	if total > 0 {
		res.Stats.CullRatio = float64(res.Stats.Culled) / float64(total) * 100
	}
	return res
}
