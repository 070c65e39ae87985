package interact

import "github.com/AryanRai/AriesUI-sub001/internal/geometry"

// Handle names one of the eight compass resize grips.
type Handle string

const (
	HandleN  Handle = "n"
	HandleNE Handle = "ne"
	HandleE  Handle = "e"
	HandleSE Handle = "se"
	HandleS  Handle = "s"
	HandleSW Handle = "sw"
	HandleW  Handle = "w"
	HandleNW Handle = "nw"
)

func (h Handle) valid() bool {
	switch h {
	case HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW, HandleNW:
		return true
	}
	return false
}

// edges reports which sides of the rect this handle drags.
func (h Handle) edges() (north, east, south, west bool) {
	switch h {
	case HandleN:
		north = true
	case HandleNE:
		north, east = true, true
	case HandleE:
		east = true
	case HandleSE:
		south, east = true, true
	case HandleS:
		south = true
	case HandleSW:
		south, west = true, true
	case HandleW:
		west = true
	case HandleNW:
		north, west = true, true
	}
	return
}

// apply derives the candidate rect for a pointer delta. Handles on the
// north or west edge move the origin while the opposite edge stays
// anchored; minimum-size clamping re-anchors so the fixed edge never
// drifts.
func (h Handle) apply(start geometry.Rect, dx, dy, minW, minH float64) geometry.Rect {
	north, east, south, west := h.edges()
	r := start

	if east {
		r.W = start.W + dx
	}
	if south {
		r.H = start.H + dy
	}
	if west {
		r.X = start.X + dx
		r.W = start.W - dx
	}
	if north {
		r.Y = start.Y + dy
		r.H = start.H - dy
	}

	if r.W < minW {
		if west {
			r.X = start.Right() - minW
		}
		r.W = minW
	}
	if r.H < minH {
		if north {
			r.Y = start.Bottom() - minH
		}
		r.H = minH
	}
	return r
}
