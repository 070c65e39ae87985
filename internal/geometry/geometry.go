package geometry

import (
	"math"
	"sort"
)

// Grid layout constants shared by the store and the interaction controller.
const (
	// DefaultGridSize is the snapping increment in world units.
	DefaultGridSize = 20.0

	// NestHeaderHeight is the fixed header strip at the top of a nest
	// container. Child coordinates are relative to the point just below it.
	NestHeaderHeight = 40.0

	// NestContentMargin pads auto-sized nests around their children.
	NestContentMargin = 20.0

	// MinWidgetWidth / MinWidgetHeight bound widget resizing.
	MinWidgetWidth  = 40.0
	MinWidgetHeight = 40.0

	// MinNestWidth / MinNestHeight bound nest resizing. Nests need room for
	// their header and at least one child cell.
	MinNestWidth  = 160.0
	MinNestHeight = 120.0

	// maxPlacementRings bounds the outward search in FindNonCollidingPosition.
	maxPlacementRings = 50
)

// Point is a position in world units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in world units.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Rect is an axis-aligned rectangle, top-left anchored.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Center returns the center point of the rect.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.W <= 0 || r.H <= 0
}

// Contains checks if a point is inside the rect (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}

	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.Right(), other.Right())
	maxY := max(r.Bottom(), other.Bottom())

	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Collides reports whether a and b share interior area. Edges that merely
// touch do not collide, so all four comparisons are strict.
func Collides(a, b Rect) bool {
	return a.X < b.Right() &&
		a.Right() > b.X &&
		a.Y < b.Bottom() &&
		a.Bottom() > b.Y
}

// Snap rounds v to the nearest multiple of grid. A non-positive grid leaves
// v unchanged.
func Snap(v, grid float64) float64 {
	if grid <= 0 {
		return v
	}
	return math.Round(v/grid) * grid
}

// SnapUp rounds v up to the next multiple of grid.
func SnapUp(v, grid float64) float64 {
	if grid <= 0 {
		return v
	}
	return math.Ceil(v/grid) * grid
}

// SnapPoint snaps both coordinates to the grid.
func SnapPoint(p Point, grid float64) Point {
	return Point{X: Snap(p.X, grid), Y: Snap(p.Y, grid)}
}

// SnapRect snaps position and size to the grid. Used by resize, which rounds
// continuously; drag only snaps position at commit via SnapPoint.
func SnapRect(r Rect, grid float64) Rect {
	return Rect{
		X: Snap(r.X, grid),
		Y: Snap(r.Y, grid),
		W: Snap(r.W, grid),
		H: Snap(r.H, grid),
	}
}

// Box is a rect with an identity, the unit the push solver works on.
type Box struct {
	ID string
	Rect
}

// PushResult is a Box after push resolution. Pushed is true for exactly the
// boxes whose position changed.
type PushResult struct {
	Box
	Pushed bool
}

// ResolvePush displaces every box that collides with moving by the minimal
// axial distance: the axis with the smaller overlap wins (horizontal on
// ties), and the box moves away from moving's center along it. Displaced
// positions are snapped to the nearest grid multiple. Boxes are processed in
// ascending id order so the result is deterministic for a given input set.
func ResolvePush(moving Box, others []Box, gridSize float64) []PushResult {
	sorted := make([]Box, len(others))
	copy(sorted, others)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	results := make([]PushResult, 0, len(sorted))
	for _, other := range sorted {
		if other.ID == moving.ID || !Collides(moving.Rect, other.Rect) {
			results = append(results, PushResult{Box: other})
			continue
		}

		overlapX := min(moving.Right(), other.Right()) - max(moving.X, other.X)
		overlapY := min(moving.Bottom(), other.Bottom()) - max(moving.Y, other.Y)

		pushed := other
		if overlapX <= overlapY {
			if other.Center().X >= moving.Center().X {
				pushed.X = moving.Right()
			} else {
				pushed.X = moving.X - other.W
			}
			pushed.X = Snap(pushed.X, gridSize)
		} else {
			if other.Center().Y >= moving.Center().Y {
				pushed.Y = moving.Bottom()
			} else {
				pushed.Y = moving.Y - other.H
			}
			pushed.Y = Snap(pushed.Y, gridSize)
		}

		results = append(results, PushResult{
			Box:    pushed,
			Pushed: pushed.X != other.X || pushed.Y != other.Y,
		})
	}

	return results
}

// FindNonCollidingPosition searches outward from candidate in gridSize steps
// for a position free of collisions against existing. The search walks
// square rings of increasing radius and gives up after a bounded number of
// rings, falling back to the original candidate.
func FindNonCollidingPosition(candidate Rect, existing []Rect, gridSize float64) Point {
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}

	for ring := 0; ring <= maxPlacementRings; ring++ {
		for dy := -ring; dy <= ring; dy++ {
			for dx := -ring; dx <= ring; dx++ {
				if max(abs(dx), abs(dy)) != ring {
					continue
				}
				probe := candidate
				probe.X = candidate.X + float64(dx)*gridSize
				probe.Y = candidate.Y + float64(dy)*gridSize
				if !collidesAny(probe, existing) {
					return Point{X: probe.X, Y: probe.Y}
				}
			}
		}
	}

	return Point{X: candidate.X, Y: candidate.Y}
}

// NestAutoSize returns the smallest grid-aligned size that contains all
// children (in nest-local coordinates) plus the header strip and content
// margin. Empty input yields the minimum nest size.
func NestAutoSize(children []Rect, gridSize float64) Size {
	if len(children) == 0 {
		return Size{W: MinNestWidth, H: MinNestHeight}
	}

	var bounds Rect
	for i, child := range children {
		if i == 0 {
			bounds = child
		} else {
			bounds = bounds.Union(child)
		}
	}

	w := SnapUp(bounds.Right()+NestContentMargin, gridSize)
	h := SnapUp(bounds.Bottom()+NestContentMargin+NestHeaderHeight, gridSize)

	return Size{
		W: max(w, MinNestWidth),
		H: max(h, MinNestHeight),
	}
}

func collidesAny(r Rect, existing []Rect) bool {
	for _, e := range existing {
		if Collides(r, e) {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
