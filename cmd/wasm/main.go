//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/AryanRai/AriesUI-sub001/internal/engine"
	"github.com/AryanRai/AriesUI-sub001/internal/persist"
)

var (
	eng *engine.Engine
	mgr *persist.Manager
)

func main() {
	eng = engine.NewEngine()
	mgr = persist.NewManager(newLocalStorageStore(), eng.Store(), eng.History(), persist.DefaultAutoSaveInterval)
	go mgr.RunAutoSave(context.Background())

	gridEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	gridEngine.Set("loadDocument", js.FuncOf(loadDocument))
	gridEngine.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	gridEngine.Set("setScreenSize", js.FuncOf(setScreenSize))
	gridEngine.Set("addWidget", js.FuncOf(addWidget))
	gridEngine.Set("addNest", js.FuncOf(addNest))
	gridEngine.Set("removeWidget", js.FuncOf(removeWidget))
	gridEngine.Set("removeNest", js.FuncOf(removeNest))
	gridEngine.Set("pushWidgetData", js.FuncOf(pushWidgetData))
	gridEngine.Set("setSelection", js.FuncOf(setSelection))
	gridEngine.Set("beginDrag", js.FuncOf(beginDrag))
	gridEngine.Set("beginResize", js.FuncOf(beginResize))
	gridEngine.Set("beginPan", js.FuncOf(beginPan))
	gridEngine.Set("pointerMove", js.FuncOf(pointerMove))
	gridEngine.Set("pointerUp", js.FuncOf(pointerUp))
	gridEngine.Set("cancelGesture", js.FuncOf(cancelGesture))
	gridEngine.Set("drop", js.FuncOf(drop))
	gridEngine.Set("wheel", js.FuncOf(wheel))
	gridEngine.Set("zoomIn", js.FuncOf(zoomIn))
	gridEngine.Set("zoomOut", js.FuncOf(zoomOut))
	gridEngine.Set("resetViewport", js.FuncOf(resetViewport))
	gridEngine.Set("undo", js.FuncOf(undo))
	gridEngine.Set("redo", js.FuncOf(redo))
	gridEngine.Set("tick", js.FuncOf(tick))

	// --- Persistence ---
	gridEngine.Set("saveNow", js.FuncOf(saveNow))
	gridEngine.Set("loadSaved", js.FuncOf(loadSaved))
	gridEngine.Set("loadProfile", js.FuncOf(loadProfile))
	gridEngine.Set("setActiveProfile", js.FuncOf(setActiveProfile))
	gridEngine.Set("enableAutoSave", js.FuncOf(enableAutoSave))
	gridEngine.Set("exportDocument", js.FuncOf(exportDocument))
	gridEngine.Set("importDocument", js.FuncOf(importDocument))

	// --- Queries (frontend ← backend) ---
	gridEngine.Set("renderScene", js.FuncOf(renderScene))
	gridEngine.Set("getDocument", js.FuncOf(getDocument))
	gridEngine.Set("getViewport", js.FuncOf(getViewport))
	gridEngine.Set("getHistoryState", js.FuncOf(getHistoryState))
	gridEngine.Set("getGestureState", js.FuncOf(getGestureState))
	gridEngine.Set("getSelection", js.FuncOf(getSelection))
	gridEngine.Set("getPersistState", js.FuncOf(getPersistState))
	gridEngine.Set("screenToWorld", js.FuncOf(screenToWorld))

	// Register on global scope
	js.Global().Set("gridEngine", gridEngine)

	// Signal that WASM is ready
	js.Global().Set("gridWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func fail(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

// --- Command Handlers ---

func loadDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing document JSON"})
	}
	if err := eng.LoadDocument(args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func loadSampleDocument(this js.Value, args []js.Value) interface{} {
	eng.LoadSampleDocument()
	return ok()
}

func setScreenSize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.SetScreenSize(args[0].Float(), args[1].Float())
	return nil
}

func addWidget(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing widget JSON"})
	}
	out, err := eng.AddWidget(args[0].String())
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(out)
}

func addNest(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing nest JSON"})
	}
	out, err := eng.AddNest(args[0].String())
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(out)
}

func removeWidget(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	if err := eng.RemoveWidget(args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func removeNest(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	if err := eng.RemoveNest(args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func pushWidgetData(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	if err := eng.PushWidgetData(args[0].String(), args[1].String()); err != nil {
		return fail(err)
	}
	return nil
}

func setSelection(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		eng.SetSelection(nil)
		return nil
	}

	arr := args[0]
	length := arr.Length()
	ids := make([]string, length)
	for i := 0; i < length; i++ {
		ids[i] = arr.Index(i).String()
	}
	eng.SetSelection(ids)
	return nil
}

func beginDrag(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	eng.BeginDrag(args[0].String(), args[1].Float(), args[2].Float())
	return nil
}

func beginResize(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return nil
	}
	eng.BeginResize(args[0].String(), args[1].String(), args[2].Float(), args[3].Float())
	return nil
}

func beginPan(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return js.ValueOf(false)
	}
	started := eng.BeginPan(args[0].Float(), args[1].Float(), args[2].Int(), args[3].Bool())
	return js.ValueOf(started)
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.PointerMove(args[0].Float(), args[1].Float())
	return nil
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	eng.PointerUp()
	return nil
}

func cancelGesture(this js.Value, args []js.Value) interface{} {
	eng.CancelGesture()
	return nil
}

func drop(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return js.ValueOf(map[string]interface{}{"error": "missing drop arguments"})
	}
	out, err := eng.Drop(args[0].String(), args[1].Float(), args[2].Float())
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(out)
}

func wheel(this js.Value, args []js.Value) interface{} {
	if len(args) < 6 {
		return nil
	}
	eng.Wheel(args[0].Float(), args[1].Float(), args[2].Bool(), args[3].Bool(), args[4].Float(), args[5].Float())
	return nil
}

func zoomIn(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.ZoomIn(args[0].Float(), args[1].Float())
	return nil
}

func zoomOut(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.ZoomOut(args[0].Float(), args[1].Float())
	return nil
}

func resetViewport(this js.Value, args []js.Value) interface{} {
	eng.ResetViewport()
	return nil
}

func undo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Undo())
}

func redo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Redo())
}

func tick(this js.Value, args []js.Value) interface{} {
	eng.Tick()
	return nil
}

// --- Persistence Handlers ---

func saveNow(this js.Value, args []js.Value) interface{} {
	if err := mgr.SaveNow(context.Background()); err != nil {
		return fail(err)
	}
	return ok()
}

func loadSaved(this js.Value, args []js.Value) interface{} {
	doc, err := mgr.Load(context.Background())
	if err != nil {
		return fail(err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fail(err)
	}
	if err := eng.LoadDocument(string(data)); err != nil {
		return fail(err)
	}
	return ok()
}

func loadProfile(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing profile name"})
	}
	doc, err := mgr.LoadProfile(context.Background(), args[0].String())
	if err != nil {
		return fail(err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fail(err)
	}
	if err := eng.LoadDocument(string(data)); err != nil {
		return fail(err)
	}
	mgr.SetActiveProfile(args[0].String())
	return ok()
}

func setActiveProfile(this js.Value, args []js.Value) interface{} {
	name := ""
	if len(args) > 0 {
		name = args[0].String()
	}
	mgr.SetActiveProfile(name)
	return nil
}

func enableAutoSave(this js.Value, args []js.Value) interface{} {
	mgr.EnableAutoSave()
	return nil
}

func exportDocument(this js.Value, args []js.Value) interface{} {
	data, err := mgr.Export()
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(string(data))
}

func importDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing document JSON"})
	}
	if err := mgr.Import([]byte(args[0].String())); err != nil {
		return fail(err)
	}
	return ok()
}

// --- Query Handlers ---

func renderScene(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.RenderScene())
}

func getDocument(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetDocument())
}

func getViewport(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetViewport())
}

func getHistoryState(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetHistoryState())
}

func getGestureState(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetGestureState())
}

func getSelection(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSelection())
}

func getPersistState(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(map[string]interface{}{
		"autoSaveEnabled": mgr.AutoSaveEnabled(),
		"activeProfile":   mgr.ActiveProfile(),
	})
}

func screenToWorld(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	x, y := eng.ScreenToWorld(args[0].Float(), args[1].Float())
	return js.ValueOf(map[string]interface{}{"x": x, "y": y})
}
