package stream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
)

// Operation type constants for op.submit.
const (
	OpItemMove       = "item.move"
	OpItemResize     = "item.resize"
	OpItemCreate     = "item.create"
	OpItemDelete     = "item.delete"
	OpItemReparent   = "item.reparent"
	OpViewportUpdate = "viewport.update"
)

// Operation is one grid edit submitted by a collaborating client. Each type
// reads its own subset of fields.
type Operation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
	ItemID    string `json:"itemId,omitempty"`

	// For item.move: {"x":..,"y":..} in the item's container space
	Position json.RawMessage `json:"position,omitempty"`

	// For item.resize: any of w/h/x/y (x,y when the anchor edge moved)
	Size json.RawMessage `json:"size,omitempty"`

	// For item.create
	Kind string          `json:"kind,omitempty"` // "widget" or "nest"
	Item json.RawMessage `json:"item,omitempty"`

	// For item.reparent; empty means the main grid
	NewNestID string `json:"newNestId,omitempty"`

	// For viewport.update
	Viewport *document.Viewport `json:"viewport,omitempty"`
}

// DocState holds a room's authoritative layout document. Operations apply
// under its own lock so hub routing never blocks on an edit.
type DocState struct {
	mu        sync.RWMutex
	doc       document.Document
	serverSeq int64
	opLog     []Operation
}

func NewDocState(doc document.Document) *DocState {
	return &DocState{doc: doc}
}

// MarshalDocument returns the current document as JSON.
func (ds *DocState) MarshalDocument() json.RawMessage {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	out, _ := json.Marshal(ds.doc)
	return out
}

// Replace swaps in a full document, as sent by doc.update.
func (ds *DocState) Replace(doc document.Document) {
	ds.mu.Lock()
	ds.doc = doc
	ds.mu.Unlock()
}

// ServerSeq returns the sequence of the last applied operation.
func (ds *DocState) ServerSeq() int64 {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.serverSeq
}

// Apply validates and applies one operation, returning the server sequence
// assigned to it. Rejected operations do not advance the sequence.
func (ds *DocState) Apply(op Operation) (int64, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.applyLocked(op); err != nil {
		return 0, err
	}
	ds.serverSeq++
	ds.opLog = append(ds.opLog, op)
	return ds.serverSeq, nil
}

func (ds *DocState) applyLocked(op Operation) error {
	switch op.Type {
	case OpItemMove:
		return ds.applyMove(op)
	case OpItemResize:
		return ds.applyResize(op)
	case OpItemCreate:
		return ds.applyCreate(op)
	case OpItemDelete:
		return ds.applyDelete(op)
	case OpItemReparent:
		return ds.applyReparent(op)
	case OpViewportUpdate:
		return ds.applyViewport(op)
	default:
		return fmt.Errorf("unknown operation type: %s", op.Type)
	}
}

func (ds *DocState) findWidget(id string) *document.Widget {
	for i := range ds.doc.MainItems {
		if ds.doc.MainItems[i].ID == id {
			return &ds.doc.MainItems[i]
		}
	}
	for i := range ds.doc.NestedItems {
		if ds.doc.NestedItems[i].ID == id {
			return &ds.doc.NestedItems[i]
		}
	}
	return nil
}

func (ds *DocState) findNest(id string) *document.NestContainer {
	for i := range ds.doc.NestContainers {
		if ds.doc.NestContainers[i].ID == id {
			return &ds.doc.NestContainers[i]
		}
	}
	return nil
}

func (ds *DocState) applyMove(op Operation) error {
	var pos struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(op.Position, &pos); err != nil {
		return fmt.Errorf("invalid position: %w", err)
	}

	now := document.Timestamp(time.Now().UTC())
	if w := ds.findWidget(op.ItemID); w != nil {
		w.X, w.Y = pos.X, pos.Y
		w.UpdatedAt = now
		return nil
	}
	if n := ds.findNest(op.ItemID); n != nil {
		n.X, n.Y = pos.X, pos.Y
		n.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("item not found: %s", op.ItemID)
}

func (ds *DocState) applyResize(op Operation) error {
	var changes map[string]float64
	if err := json.Unmarshal(op.Size, &changes); err != nil {
		return fmt.Errorf("invalid size: %w", err)
	}
	if v, ok := changes["w"]; ok && v <= 0 {
		return fmt.Errorf("invalid width: %v", v)
	}
	if v, ok := changes["h"]; ok && v <= 0 {
		return fmt.Errorf("invalid height: %v", v)
	}

	now := document.Timestamp(time.Now().UTC())
	if w := ds.findWidget(op.ItemID); w != nil {
		applyDims(&w.X, &w.Y, &w.W, &w.H, changes)
		w.UpdatedAt = now
		return nil
	}
	if n := ds.findNest(op.ItemID); n != nil {
		applyDims(&n.X, &n.Y, &n.W, &n.H, changes)
		n.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("item not found: %s", op.ItemID)
}

func applyDims(x, y, w, h *float64, changes map[string]float64) {
	if v, ok := changes["x"]; ok {
		*x = v
	}
	if v, ok := changes["y"]; ok {
		*y = v
	}
	if v, ok := changes["w"]; ok {
		*w = v
	}
	if v, ok := changes["h"]; ok {
		*h = v
	}
}

func (ds *DocState) applyCreate(op Operation) error {
	now := document.Timestamp(time.Now().UTC())

	switch op.Kind {
	case "widget":
		var w document.Widget
		if err := json.Unmarshal(op.Item, &w); err != nil {
			return fmt.Errorf("invalid widget: %w", err)
		}
		if w.ID == "" {
			return fmt.Errorf("widget missing id")
		}
		if ds.findWidget(w.ID) != nil {
			return fmt.Errorf("duplicate item id: %s", w.ID)
		}
		if w.NestID != "" && ds.findNest(w.NestID) == nil {
			return fmt.Errorf("nest not found: %s", w.NestID)
		}
		if w.CreatedAt == "" {
			w.CreatedAt = now
		}
		w.UpdatedAt = now
		if w.NestID == "" {
			ds.doc.MainItems = append(ds.doc.MainItems, w)
		} else {
			ds.doc.NestedItems = append(ds.doc.NestedItems, w)
		}
		return nil

	case "nest":
		var n document.NestContainer
		if err := json.Unmarshal(op.Item, &n); err != nil {
			return fmt.Errorf("invalid nest: %w", err)
		}
		if n.ID == "" {
			return fmt.Errorf("nest missing id")
		}
		if ds.findNest(n.ID) != nil {
			return fmt.Errorf("duplicate item id: %s", n.ID)
		}
		if n.CreatedAt == "" {
			n.CreatedAt = now
		}
		n.UpdatedAt = now
		ds.doc.NestContainers = append(ds.doc.NestContainers, n)
		return nil

	default:
		return fmt.Errorf("unknown item kind: %s", op.Kind)
	}
}

func (ds *DocState) applyDelete(op Operation) error {
	for i := range ds.doc.MainItems {
		if ds.doc.MainItems[i].ID == op.ItemID {
			ds.doc.MainItems = append(ds.doc.MainItems[:i], ds.doc.MainItems[i+1:]...)
			return nil
		}
	}
	for i := range ds.doc.NestedItems {
		if ds.doc.NestedItems[i].ID == op.ItemID {
			ds.doc.NestedItems = append(ds.doc.NestedItems[:i], ds.doc.NestedItems[i+1:]...)
			return nil
		}
	}
	for i := range ds.doc.NestContainers {
		if ds.doc.NestContainers[i].ID != op.ItemID {
			continue
		}
		nest := ds.doc.NestContainers[i]
		ds.doc.NestContainers = append(ds.doc.NestContainers[:i], ds.doc.NestContainers[i+1:]...)
		ds.promoteOrphans(nest)
		return nil
	}
	return fmt.Errorf("item not found: %s", op.ItemID)
}

// promoteOrphans moves a deleted nest's widgets onto the main grid at their
// absolute world position and detaches its child nests.
func (ds *DocState) promoteOrphans(nest document.NestContainer) {
	now := document.Timestamp(time.Now().UTC())
	origin := nest.ContentOrigin()

	kept := ds.doc.NestedItems[:0]
	for _, w := range ds.doc.NestedItems {
		if w.NestID != nest.ID {
			kept = append(kept, w)
			continue
		}
		w.NestID = ""
		w.X += origin.X
		w.Y += origin.Y
		w.UpdatedAt = now
		ds.doc.MainItems = append(ds.doc.MainItems, w)
	}
	ds.doc.NestedItems = kept

	for i := range ds.doc.NestContainers {
		if ds.doc.NestContainers[i].ParentNestID == nest.ID {
			ds.doc.NestContainers[i].ParentNestID = ""
			ds.doc.NestContainers[i].UpdatedAt = now
		}
	}
}

// applyReparent transfers a widget between containers, recomputing its
// coordinates so the absolute world position is unchanged.
func (ds *DocState) applyReparent(op Operation) error {
	w := ds.findWidget(op.ItemID)
	if w == nil {
		return fmt.Errorf("item not found: %s", op.ItemID)
	}

	abs := struct{ X, Y float64 }{w.X, w.Y}
	if w.NestID != "" {
		src := ds.findNest(w.NestID)
		if src == nil {
			return fmt.Errorf("source nest not found: %s", w.NestID)
		}
		origin := src.ContentOrigin()
		abs.X += origin.X
		abs.Y += origin.Y
	}

	moved := *w
	if op.NewNestID == "" {
		moved.NestID = ""
		moved.X, moved.Y = abs.X, abs.Y
	} else {
		dst := ds.findNest(op.NewNestID)
		if dst == nil {
			return fmt.Errorf("destination nest not found: %s", op.NewNestID)
		}
		origin := dst.ContentOrigin()
		moved.NestID = op.NewNestID
		moved.X = abs.X - origin.X
		moved.Y = abs.Y - origin.Y
	}
	moved.UpdatedAt = document.Timestamp(time.Now().UTC())

	ds.removeWidget(op.ItemID)
	if moved.NestID == "" {
		ds.doc.MainItems = append(ds.doc.MainItems, moved)
	} else {
		ds.doc.NestedItems = append(ds.doc.NestedItems, moved)
	}
	return nil
}

func (ds *DocState) removeWidget(id string) {
	for i := range ds.doc.MainItems {
		if ds.doc.MainItems[i].ID == id {
			ds.doc.MainItems = append(ds.doc.MainItems[:i], ds.doc.MainItems[i+1:]...)
			return
		}
	}
	for i := range ds.doc.NestedItems {
		if ds.doc.NestedItems[i].ID == id {
			ds.doc.NestedItems = append(ds.doc.NestedItems[:i], ds.doc.NestedItems[i+1:]...)
			return
		}
	}
}

func (ds *DocState) applyViewport(op Operation) error {
	if op.Viewport == nil {
		return fmt.Errorf("missing viewport")
	}
	if op.Viewport.Zoom <= 0 {
		return fmt.Errorf("invalid zoom: %v", op.Viewport.Zoom)
	}
	ds.doc.Viewport = *op.Viewport
	return nil
}
