package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
)

func testDoc() document.Document {
	return document.Document{
		MainItems: []document.Widget{
			{ID: "widget_a", Type: "sensor-value", X: 400, Y: 400, W: 100, H: 100},
		},
		NestContainers: []document.NestContainer{
			{ID: "nest_a", X: 300, Y: 300, W: 400, H: 300},
		},
		NestedItems: []document.Widget{
			{ID: "widget_b", NestID: "nest_a", X: 20, Y: 20, W: 40, H: 40},
		},
		GridSize: 20,
		Viewport: document.Viewport{Zoom: 1},
	}
}

func TestDocState_MoveAdvancesSequence(t *testing.T) {
	ds := NewDocState(testDoc())

	seq, err := ds.Apply(Operation{
		ID:       "op_1",
		Type:     OpItemMove,
		ItemID:   "widget_a",
		Position: json.RawMessage(`{"x":160,"y":200}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	var doc document.Document
	require.NoError(t, json.Unmarshal(ds.MarshalDocument(), &doc))
	assert.Equal(t, 160.0, doc.MainItems[0].X)
	assert.Equal(t, 200.0, doc.MainItems[0].Y)
	assert.NotEmpty(t, doc.MainItems[0].UpdatedAt)
}

func TestDocState_ResizeAppliesPartialDims(t *testing.T) {
	ds := NewDocState(testDoc())

	_, err := ds.Apply(Operation{
		Type:   OpItemResize,
		ItemID: "nest_a",
		Size:   json.RawMessage(`{"w":480,"h":360}`),
	})
	require.NoError(t, err)

	var doc document.Document
	require.NoError(t, json.Unmarshal(ds.MarshalDocument(), &doc))
	assert.Equal(t, 480.0, doc.NestContainers[0].W)
	assert.Equal(t, 360.0, doc.NestContainers[0].H)
	assert.Equal(t, 300.0, doc.NestContainers[0].X, "unmentioned dims are untouched")

	_, err = ds.Apply(Operation{
		Type:   OpItemResize,
		ItemID: "nest_a",
		Size:   json.RawMessage(`{"w":-10}`),
	})
	assert.Error(t, err)
}

func TestDocState_CreateAndDelete(t *testing.T) {
	ds := NewDocState(testDoc())

	_, err := ds.Apply(Operation{
		Type: OpItemCreate,
		Kind: "widget",
		Item: json.RawMessage(`{"id":"widget_c","x":0,"y":0,"w":40,"h":40}`),
	})
	require.NoError(t, err)

	_, err = ds.Apply(Operation{
		Type: OpItemCreate,
		Kind: "widget",
		Item: json.RawMessage(`{"id":"widget_c","x":0,"y":0,"w":40,"h":40}`),
	})
	assert.Error(t, err, "duplicate id is rejected")

	_, err = ds.Apply(Operation{Type: OpItemDelete, ItemID: "widget_c"})
	require.NoError(t, err)

	var doc document.Document
	require.NoError(t, json.Unmarshal(ds.MarshalDocument(), &doc))
	assert.Len(t, doc.MainItems, 1)
}

func TestDocState_ReparentPreservesWorldPosition(t *testing.T) {
	ds := NewDocState(testDoc())

	_, err := ds.Apply(Operation{
		Type:      OpItemReparent,
		ItemID:    "widget_a",
		NewNestID: "nest_a",
	})
	require.NoError(t, err)

	var doc document.Document
	require.NoError(t, json.Unmarshal(ds.MarshalDocument(), &doc))
	assert.Empty(t, doc.MainItems)
	require.Len(t, doc.NestedItems, 2)

	var moved document.Widget
	for _, w := range doc.NestedItems {
		if w.ID == "widget_a" {
			moved = w
		}
	}
	assert.Equal(t, "nest_a", moved.NestID)
	assert.Equal(t, 100.0, moved.X, "world (400,400) relative to the content origin (300,340)")
	assert.Equal(t, 60.0, moved.Y)
}

func TestDocState_DeleteNestPromotesChildren(t *testing.T) {
	ds := NewDocState(testDoc())

	_, err := ds.Apply(Operation{Type: OpItemDelete, ItemID: "nest_a"})
	require.NoError(t, err)

	var doc document.Document
	require.NoError(t, json.Unmarshal(ds.MarshalDocument(), &doc))
	assert.Empty(t, doc.NestContainers)
	assert.Empty(t, doc.NestedItems)
	require.Len(t, doc.MainItems, 2)

	var promoted document.Widget
	for _, w := range doc.MainItems {
		if w.ID == "widget_b" {
			promoted = w
		}
	}
	assert.Empty(t, promoted.NestID)
	assert.Equal(t, 320.0, promoted.X, "local (20,20) plus the content origin (300,340)")
	assert.Equal(t, 360.0, promoted.Y)
}

func TestDocState_ViewportUpdate(t *testing.T) {
	ds := NewDocState(testDoc())

	_, err := ds.Apply(Operation{
		Type:     OpViewportUpdate,
		Viewport: &document.Viewport{X: -50, Y: 10, Zoom: 1.5},
	})
	require.NoError(t, err)

	var doc document.Document
	require.NoError(t, json.Unmarshal(ds.MarshalDocument(), &doc))
	assert.Equal(t, 1.5, doc.Viewport.Zoom)

	_, err = ds.Apply(Operation{
		Type:     OpViewportUpdate,
		Viewport: &document.Viewport{Zoom: 0},
	})
	assert.Error(t, err)
}

func TestDocState_RejectedOpsDoNotAdvanceSequence(t *testing.T) {
	ds := NewDocState(testDoc())

	_, err := ds.Apply(Operation{Type: "item.explode", ItemID: "widget_a"})
	assert.Error(t, err)

	_, err = ds.Apply(Operation{
		Type:     OpItemMove,
		ItemID:   "widget_missing",
		Position: json.RawMessage(`{"x":0,"y":0}`),
	})
	assert.Error(t, err)

	assert.Zero(t, ds.ServerSeq())
}
