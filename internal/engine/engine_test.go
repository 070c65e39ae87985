package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addWidget(t *testing.T, e *Engine, id string, x, y, w, h float64) {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{"id": id, "x": x, "y": y, "w": w, "h": h})
	_, err := e.AddWidget(string(payload))
	require.NoError(t, err)
}

func TestEngine_UndoRedoRoundTrip(t *testing.T) {
	e := NewEngine()
	assert.False(t, e.Undo(), "empty engine has nothing to undo")

	addWidget(t, e, "widget_a", 0, 0, 100, 100)
	e.Tick()

	require.True(t, e.Undo())
	widgets, _ := e.Store().Counts()
	assert.Zero(t, widgets)

	require.True(t, e.Redo())
	widgets, _ = e.Store().Counts()
	assert.Equal(t, 1, widgets)

	assert.False(t, e.Redo(), "at the newest entry")
}

func TestEngine_UndoDoesNotRerecord(t *testing.T) {
	e := NewEngine()
	addWidget(t, e, "widget_a", 0, 0, 100, 100)
	e.Tick()

	require.True(t, e.Undo())
	e.Tick()
	assert.True(t, e.Redo(), "the restore itself must not become a new entry")
}

func TestEngine_DataPushIsNotUndoable(t *testing.T) {
	e := NewEngine()
	addWidget(t, e, "widget_a", 0, 0, 100, 100)
	e.Tick()
	require.True(t, e.Undo())
	require.True(t, e.Redo())

	require.NoError(t, e.PushWidgetData("widget_a", `{"value":42}`))
	e.Tick()
	assert.False(t, e.Redo())
	require.True(t, e.Undo(), "only the layout edit is in history")

	widgets, _ := e.Store().Counts()
	assert.Zero(t, widgets)
}

func TestEngine_LoadDocumentResetsHistory(t *testing.T) {
	e := NewEngine()
	addWidget(t, e, "widget_a", 0, 0, 100, 100)
	e.Tick()

	doc := e.GetDocument()
	require.NoError(t, e.LoadDocument(doc))
	assert.False(t, e.Undo(), "loaded document is the new undo baseline")

	var st struct {
		CanUndo bool `json:"canUndo"`
		CanRedo bool `json:"canRedo"`
		Entries int  `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(e.GetHistoryState()), &st))
	assert.False(t, st.CanUndo)
	assert.False(t, st.CanRedo)
	assert.Equal(t, 1, st.Entries)
}

func TestEngine_LoadDocumentBadJSON(t *testing.T) {
	e := NewEngine()
	assert.Error(t, e.LoadDocument("not json"))
}

func TestEngine_RenderSceneCullsOffscreen(t *testing.T) {
	e := NewEngine()
	e.SetScreenSize(800, 600)
	addWidget(t, e, "widget_near", 100, 100, 100, 100)
	addWidget(t, e, "widget_far", 5000, 5000, 100, 100)

	var view struct {
		GridSize float64 `json:"gridSize"`
		Visible  struct {
			Main map[string]bool `json:"main"`
		} `json:"visible"`
		Stats struct {
			Total    int `json:"total"`
			Rendered int `json:"rendered"`
			Culled   int `json:"culled"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(e.RenderScene()), &view))

	assert.Equal(t, 20.0, view.GridSize)
	assert.True(t, view.Visible.Main["widget_near"])
	assert.False(t, view.Visible.Main["widget_far"])
	assert.Equal(t, 2, view.Stats.Total)
	assert.Equal(t, 1, view.Stats.Rendered)
	assert.Equal(t, 1, view.Stats.Culled)
}

func TestEngine_DragGestureEndToEnd(t *testing.T) {
	e := NewEngine()
	addWidget(t, e, "widget_a", 100, 100, 100, 100)

	e.BeginDrag("widget_a", 110, 110)
	e.PointerMove(163, 177)
	e.PointerUp()
	e.Tick()

	var doc struct {
		MainItems []struct {
			ID string  `json:"id"`
			X  float64 `json:"x"`
			Y  float64 `json:"y"`
		} `json:"mainItems"`
	}
	require.NoError(t, json.Unmarshal([]byte(e.GetDocument()), &doc))
	require.Len(t, doc.MainItems, 1)
	assert.Equal(t, 160.0, doc.MainItems[0].X)
	assert.Equal(t, 160.0, doc.MainItems[0].Y)

	require.True(t, e.Undo(), "the settled drag is one undo step")
}

func TestEngine_DropCreatesWidget(t *testing.T) {
	e := NewEngine()
	out, err := e.Drop(`{"type":"sensor-value","title":"Temp","defaultSize":{"w":40,"h":40}}`, 150, 120)
	require.NoError(t, err)

	var w struct {
		ID string  `json:"id"`
		X  float64 `json:"x"`
		Y  float64 `json:"y"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, 140.0, w.X)
	assert.Equal(t, 100.0, w.Y)
}

func TestEngine_WheelZoomAndPan(t *testing.T) {
	e := NewEngine()

	// Discrete mouse wheel zooms.
	e.Wheel(0, -120, false, false, 400, 300)
	var vp struct {
		Zoom float64 `json:"zoom"`
	}
	require.NoError(t, json.Unmarshal([]byte(e.GetViewport()), &vp))
	assert.Greater(t, vp.Zoom, 1.0)

	e.ResetViewport()
	require.NoError(t, json.Unmarshal([]byte(e.GetViewport()), &vp))
	assert.Equal(t, 1.0, vp.Zoom)

	// Trackpad scroll pans, zoom unchanged.
	e.Wheel(13.5, -7.25, false, false, 400, 300)
	var full struct {
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		Zoom float64 `json:"zoom"`
	}
	require.NoError(t, json.Unmarshal([]byte(e.GetViewport()), &full))
	assert.Equal(t, 1.0, full.Zoom)
	assert.NotZero(t, full.X)
}

func TestEngine_SelectionFollowsRemoval(t *testing.T) {
	e := NewEngine()
	addWidget(t, e, "widget_a", 0, 0, 100, 100)
	addWidget(t, e, "widget_b", 200, 0, 100, 100)

	e.SetSelection([]string{"widget_a", "widget_b"})
	require.NoError(t, e.RemoveWidget("widget_a"))

	var sel []string
	require.NoError(t, json.Unmarshal([]byte(e.GetSelection()), &sel))
	assert.Equal(t, []string{"widget_b"}, sel)
}

func TestEngine_SampleDocumentLoads(t *testing.T) {
	e := NewEngine()
	e.LoadSampleDocument()

	widgets, nests := e.Store().Counts()
	assert.NotZero(t, widgets)
	assert.NotZero(t, nests)
	assert.False(t, e.Undo())
}

func TestEngine_AddWidgetRelocatesWhenOccupied(t *testing.T) {
	e := NewEngine()
	addWidget(t, e, "widget_a", 0, 0, 100, 100)

	payload := `{"id":"widget_b","x":0,"y":0,"w":100,"h":100}`
	out, err := e.AddWidget(payload)
	require.NoError(t, err)

	var b struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	assert.Equal(t, -100.0, b.X, "search walks outward to the first free ring")
	assert.Equal(t, -100.0, b.Y)
}
