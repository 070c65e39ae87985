package grid

import (
	"errors"
	"fmt"

	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
)

// ErrNotFound is returned when an updater references an unknown item id.
var ErrNotFound = errors.New("grid: item not found")

// GeometryError rejects a mutation that would leave an item with invalid
// geometry. Raised at the updater boundary, never after commit.
type GeometryError struct {
	ID   string
	Rect geometry.Rect
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("grid: invalid geometry for %q: %gx%g at (%g, %g)", e.ID, e.Rect.W, e.Rect.H, e.Rect.X, e.Rect.Y)
}

// CycleError rejects a reparent that would make a nest its own ancestor.
type CycleError struct {
	NestID   string
	ParentID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("grid: nesting %q under %q would create a cycle", e.NestID, e.ParentID)
}
