package document

import (
	"encoding/json"
	"time"

	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
)

// TimeFormat is the timestamp layout used across persisted documents.
const TimeFormat = "2006-01-02T15:04:05Z"

// Timestamp formats t in the persisted document layout (UTC).
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// NewEmptyDocument creates an empty dashboard document.
func NewEmptyDocument() *Document {
	return &Document{
		MainItems:      []Widget{},
		NestContainers: []NestContainer{},
		NestedItems:    []Widget{},
		GridSize:       geometry.DefaultGridSize,
		Viewport:       Viewport{X: 0, Y: 0, Zoom: 1},
	}
}

// NewSampleDocument builds a small demo dashboard: two sensor widgets on the
// main grid and a nest holding a chart. Used by the playground profile and
// by tests that need a populated document.
func NewSampleDocument(widgetID func() string, nestID func() string) *Document {
	now := Timestamp(time.Now())

	temp := Widget{
		ID:        widgetID(),
		Type:      "sensor-value",
		Title:     "Temperature",
		X:         40, Y: 40, W: 200, H: 120,
		StreamID:  "hw.module1.temp",
		Config:    json.RawMessage(`{"unit":"°C","precision":1}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
	pressure := Widget{
		ID:        widgetID(),
		Type:      "sensor-gauge",
		Title:     "Pressure",
		X:         260, Y: 40, W: 200, H: 120,
		StreamID:  "hw.module1.pressure",
		Config:    json.RawMessage(`{"unit":"kPa","min":0,"max":500}`),
		CreatedAt: now,
		UpdatedAt: now,
	}

	nest := NestContainer{
		ID:        nestID(),
		Title:     "Telemetry",
		X:         40, Y: 200, W: 420, H: 300,
		CreatedAt: now,
		UpdatedAt: now,
	}
	chart := Widget{
		ID:        widgetID(),
		Type:      "line-chart",
		Title:     "Temp History",
		X:         20, Y: 20, W: 380, H: 200,
		NestID:    nest.ID,
		StreamID:  "hw.module1.temp",
		Config:    json.RawMessage(`{"window":"5m"}`),
		CreatedAt: now,
		UpdatedAt: now,
	}

	doc := &Document{
		MainItems:      []Widget{temp, pressure},
		NestContainers: []NestContainer{nest},
		NestedItems:    []Widget{chart},
		GridSize:       geometry.DefaultGridSize,
		Viewport:       Viewport{X: 0, Y: 0, Zoom: 1},
	}
	doc.Normalize()
	return doc
}
