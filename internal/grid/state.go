package grid

import (
	"github.com/AryanRai/AriesUI-sub001/internal/document"
	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
)

// State is the canonical grid data model: viewport, free-standing widgets,
// nest containers and nested widgets. Values returned by the store are deep
// copies; only the store's updaters mutate the live state.
type State struct {
	GridSize float64
	Viewport document.Viewport
	Main     map[string]document.Widget
	Nests    map[string]document.NestContainer
	Nested   map[string]document.Widget
}

// NewState returns an empty state with default grid size and identity zoom.
func NewState() State {
	return State{
		GridSize: geometry.DefaultGridSize,
		Viewport: document.Viewport{Zoom: 1},
		Main:     make(map[string]document.Widget),
		Nests:    make(map[string]document.NestContainer),
		Nested:   make(map[string]document.Widget),
	}
}

// Clone deep-copies the state. Widget Config/Data blobs are shared; updaters
// replace them wholesale, never mutate in place.
func (s State) Clone() State {
	out := State{
		GridSize: s.GridSize,
		Viewport: s.Viewport,
		Main:     make(map[string]document.Widget, len(s.Main)),
		Nests:    make(map[string]document.NestContainer, len(s.Nests)),
		Nested:   make(map[string]document.Widget, len(s.Nested)),
	}
	for id, w := range s.Main {
		out.Main[id] = w
	}
	for id, n := range s.Nests {
		out.Nests[id] = n
	}
	for id, w := range s.Nested {
		out.Nested[id] = w
	}
	return out
}

// ToDocument converts the state to its persisted shape with collections in
// normalized (id-ascending) order.
func (s State) ToDocument() document.Document {
	doc := document.Document{
		MainItems:      make([]document.Widget, 0, len(s.Main)),
		NestContainers: make([]document.NestContainer, 0, len(s.Nests)),
		NestedItems:    make([]document.Widget, 0, len(s.Nested)),
		GridSize:       s.GridSize,
		Viewport:       s.Viewport,
	}
	for _, w := range s.Main {
		doc.MainItems = append(doc.MainItems, w)
	}
	for _, n := range s.Nests {
		doc.NestContainers = append(doc.NestContainers, n)
	}
	for _, w := range s.Nested {
		doc.NestedItems = append(doc.NestedItems, w)
	}
	doc.Normalize()
	return doc
}

// StateFromDocument builds a state from a persisted document.
func StateFromDocument(doc document.Document) State {
	s := NewState()
	if doc.GridSize > 0 {
		s.GridSize = doc.GridSize
	}
	if doc.Viewport.Zoom > 0 {
		s.Viewport = doc.Viewport
	}
	for _, w := range doc.MainItems {
		w.NestID = ""
		s.Main[w.ID] = w
	}
	for _, n := range doc.NestContainers {
		s.Nests[n.ID] = n
	}
	for _, w := range doc.NestedItems {
		if _, ok := s.Nests[w.NestID]; !ok {
			// Orphaned nested item: promote to main rather than keep a
			// dangling container reference.
			w.NestID = ""
			s.Main[w.ID] = w
			continue
		}
		s.Nested[w.ID] = w
	}
	return s
}
