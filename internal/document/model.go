package document

import (
	"encoding/json"
	"sort"

	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
)

// Viewport is the pan offset and zoom multiplier of the main grid.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Widget is a dashboard item: a sensor display, chart or simulation panel.
// It lives either on the main grid (NestID empty, absolute world coordinates)
// or inside a nest container (coordinates relative to the nest's content
// origin, just below its header).
type Widget struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	Title    string  `json:"title"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	W        float64 `json:"w"`
	H        float64 `json:"h"`
	NestID   string  `json:"nestId,omitempty"`
	StreamID string  `json:"streamId,omitempty"`

	// Config holds widget-specific configuration; Data holds the latest
	// live value pushed by a streaming backend. Both are opaque here.
	Config json.RawMessage `json:"config,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`

	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Rect returns the widget's bounds in its container's coordinate space.
func (w Widget) Rect() geometry.Rect {
	return geometry.Rect{X: w.X, Y: w.Y, W: w.W, H: w.H}
}

// NestContainer is a movable, resizable box owning a local coordinate space
// for child widgets. Nests may themselves be nested via ParentNestID; the
// parent relation forms a tree, never a cycle.
type NestContainer struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	W            float64 `json:"w"`
	H            float64 `json:"h"`
	ParentNestID string  `json:"parentNestId,omitempty"`

	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Rect returns the nest's bounds in its container's coordinate space.
func (n NestContainer) Rect() geometry.Rect {
	return geometry.Rect{X: n.X, Y: n.Y, W: n.W, H: n.H}
}

// ContentOrigin returns the point child coordinates are relative to: the
// nest's top-left offset by its header strip.
func (n NestContainer) ContentOrigin() geometry.Point {
	return geometry.Point{X: n.X, Y: n.Y + geometry.NestHeaderHeight}
}

// Document is the persisted shape of a dashboard: the same structure backs
// durable saves, named profile snapshots and export files.
type Document struct {
	MainItems      []Widget        `json:"mainItems"`
	NestContainers []NestContainer `json:"nestContainers"`
	NestedItems    []Widget        `json:"nestedItems"`
	GridSize       float64         `json:"gridSize"`
	Viewport       Viewport        `json:"viewport"`
	LastSaved      string          `json:"lastSaved,omitempty"`
	ExportedAt     string          `json:"exportedAt,omitempty"`
}

// Normalize sorts all collections ascending by id so that serializing the
// same logical document always yields identical bytes.
func (d *Document) Normalize() {
	sort.Slice(d.MainItems, func(i, j int) bool { return d.MainItems[i].ID < d.MainItems[j].ID })
	sort.Slice(d.NestContainers, func(i, j int) bool { return d.NestContainers[i].ID < d.NestContainers[j].ID })
	sort.Slice(d.NestedItems, func(i, j int) bool { return d.NestedItems[i].ID < d.NestedItems[j].ID })
}

// DropPayload is the serialized transfer payload carried by a drag from the
// external widget palette.
type DropPayload struct {
	Type         string        `json:"type"`
	Title        string        `json:"title"`
	DefaultSize  geometry.Size `json:"defaultSize"`
	AriesModType string        `json:"ariesModType,omitempty"`
}
