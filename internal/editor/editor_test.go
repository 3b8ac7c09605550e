/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"designeditor/internal/debounce"
	apperr "designeditor/internal/errors"
	"designeditor/internal/history"
	"designeditor/internal/scene"
	"designeditor/internal/selection"
	"designeditor/internal/vector"
)

func newEditor(t *testing.T, opts ...func(*Options)) *Editor {
	t.Helper()
	n := 0
	o := Options{
		Workspace:   scene.Workspace{Width: 800, Height: 600, Background: "#ffffff"},
		IDGenerator: func() string { n++; return fmt.Sprintf("id-%d", n) },
	}
	for _, fn := range opts {
		fn(&o)
	}
	e, err := New(o)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func entries(e *Editor) int {
	_, n, _ := e.History().Stats()
	return n
}

func mustJSON(t *testing.T, e *Editor) []byte {
	t.Helper()
	b, err := e.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	return b
}

func TestAddUndoRedo(t *testing.T) {
	e := newEditor(t)
	empty := mustJSON(t, e)

	id, err := e.AddRectangle()
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sel := e.Selected(); len(sel) != 1 || sel[0] != id {
		t.Fatalf("new object should be selected, got %v", sel)
	}
	withRect := mustJSON(t, e)
	if entries(e) != 2 {
		t.Fatalf("expected 2 history entries, got %d", entries(e))
	}

	if ok, err := e.Undo(); !ok || err != nil {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	if len(e.Objects()) != 0 || !bytes.Equal(mustJSON(t, e), empty) {
		t.Fatalf("undo should restore the empty scene")
	}
	if ok, err := e.Redo(); !ok || err != nil {
		t.Fatalf("redo: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(mustJSON(t, e), withRect) {
		t.Fatalf("redo should restore the identical rectangle")
	}
	if entries(e) != 2 {
		t.Fatalf("undo/redo must not record, got %d entries", entries(e))
	}
}

func TestClearSelectionResetsTool(t *testing.T) {
	e := newEditor(t)
	_, _ = e.AddRectangle()
	if err := e.SetActiveTool(selection.ToolFill); err != nil {
		t.Fatalf("set tool: %v", err)
	}
	e.ClearSelection()
	if e.ActiveTool() != selection.ToolSelect {
		t.Fatalf("expected select tool after clearing, got %s", e.ActiveTool())
	}
	if err := e.SetActiveTool("lasso"); !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown tool must be rejected, got %v", err)
	}
}

func TestUndoRestoresOriginalFill(t *testing.T) {
	e := newEditor(t)
	id, err := e.AddRectangle()
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.ChangeFillColor("#FF0000"); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if o, _ := e.Object(id); o.Fill != "#FF0000" {
		t.Fatalf("fill not applied: %s", o.Fill)
	}
	if ok, err := e.Undo(); !ok || err != nil {
		t.Fatalf("undo fill: ok=%v err=%v", ok, err)
	}
	o, ok := e.Object(id)
	if !ok || o.Fill != scene.DefaultFill {
		t.Fatalf("undo should restore the original fill, got %+v", o)
	}
	if ok, err := e.Undo(); !ok || err != nil {
		t.Fatalf("undo add: ok=%v err=%v", ok, err)
	}
	if n := len(e.Objects()); n != 0 {
		t.Fatalf("expected empty scene, got %d objects", n)
	}
}

func TestClearSelectionKeepsIndependentTool(t *testing.T) {
	e := newEditor(t)
	_, _ = e.AddRectangle()
	if err := e.SetActiveTool(selection.ToolShapes); err != nil {
		t.Fatalf("set tool: %v", err)
	}
	e.ClearSelection()
	if e.ActiveTool() != selection.ToolShapes {
		t.Fatalf("shapes tool must survive clearing, got %s", e.ActiveTool())
	}
}

func TestUndoAbandonsStrokeInProgress(t *testing.T) {
	e := newEditor(t)
	_, _ = e.AddRectangle()
	_ = e.SetActiveTool(selection.ToolDraw)
	if err := e.BeginStroke(scene.Point{X: 1, Y: 1}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	e.ExtendStroke(scene.Point{X: 5, Y: 5})
	if ok, err := e.Undo(); !ok || err != nil {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	e.ExtendStroke(scene.Point{X: 50, Y: 50})
	e.ExtendStroke(scene.Point{X: 60, Y: 70})
	id, err := e.EndStroke()
	if err != nil || id != "" {
		t.Fatalf("stroke spanning an undo must not commit, got id=%q err=%v", id, err)
	}
	if n := len(e.Objects()); n != 0 {
		t.Fatalf("expected empty scene, got %d objects", n)
	}
}

func TestChangeWithEmptySelectionIsNoop(t *testing.T) {
	e := newEditor(t)
	id, _ := e.AddRectangle()
	e.ClearSelection()
	before := entries(e)
	if err := e.ChangeFillColor("#ff0000"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if entries(e) != before {
		t.Fatalf("no-op change must not add history")
	}
	if o, _ := e.Object(id); o.Fill != scene.DefaultFill {
		t.Fatalf("fill changed without selection: %s", o.Fill)
	}
	if e.FillColor() != scene.DefaultFill || e.StrokeWidth() != scene.DefaultStrokeWidth || e.FontSize() != scene.DefaultFontSize {
		t.Fatalf("getters must report defaults with an empty selection")
	}
}

func TestInvalidOpacityRejected(t *testing.T) {
	e := newEditor(t)
	id, _ := e.AddRectangle()
	before := mustJSON(t, e)
	err := e.ChangeOpacity(1.5)
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !bytes.Equal(before, mustJSON(t, e)) {
		t.Fatalf("scene changed on rejected input")
	}
	if o, _ := e.Object(id); o.Opacity != 1 {
		t.Fatalf("opacity changed: %v", o.Opacity)
	}
}

func TestMultiSelectChangeIsOneEntry(t *testing.T) {
	e := newEditor(t)
	a, _ := e.AddRectangle()
	b, _ := e.AddCircle()
	e.Select(a, b)
	before := entries(e)
	if err := e.ChangeStrokeWidth(7); err != nil {
		t.Fatalf("change: %v", err)
	}
	if entries(e) != before+1 {
		t.Fatalf("one change call must add exactly one entry")
	}
	for _, id := range []string{a, b} {
		if o, _ := e.Object(id); o.StrokeWidth != 7 {
			t.Fatalf("%s stroke width = %v", id, o.StrokeWidth)
		}
	}
	if e.StrokeWidth() != 7 {
		t.Fatalf("getter should read the primary selection")
	}
}

func TestHistoryTruncatesOnNewMutation(t *testing.T) {
	e := newEditor(t)
	for i := 0; i < 4; i++ {
		if _, err := e.AddRectangle(); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if entries(e) != 5 {
		t.Fatalf("k mutations should give k+1 entries, got %d", entries(e))
	}
	_, _ = e.Undo()
	_, _ = e.Undo()
	if !e.CanRedo() {
		t.Fatalf("expected redo to be available")
	}
	if _, err := e.AddTriangle(); err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.CanRedo() {
		t.Fatalf("new mutation must drop the redo branch")
	}
	if _, n, cur := e.History().Stats(); n != 4 || cur != 3 {
		t.Fatalf("expected 4 entries at cursor 3, got n=%d cursor=%d", n, cur)
	}
}

func TestRoundTripJSON(t *testing.T) {
	e := newEditor(t)
	_, _ = e.AddRectangle()
	_, _ = e.AddText("Lunch menu")
	_ = e.ChangeFontWeight(700)
	_, _ = e.AddImage("data:image/png;base64,iVBORw0KGgo=")
	_ = e.ChangeImageFilter("sepia")
	_ = e.ChangeBackground("#fafafa")
	src := mustJSON(t, e)

	other := newEditor(t)
	if err := other.LoadJSON(src); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if !bytes.Equal(src, mustJSON(t, other)) {
		t.Fatalf("round trip mismatch")
	}
	if other.CanUndo() {
		t.Fatalf("loading must restart history")
	}
}

func TestCorruptSnapshotFailsClosed(t *testing.T) {
	e := newEditor(t)
	_, _ = e.AddRectangle()
	e.History().Push(history.Entry{Blob: []byte(`{"version":"1","workspace":`), TS: time.Now()})
	_, _ = e.AddCircle()
	before := mustJSON(t, e)
	_, _, cursor := e.History().Stats()

	ok, err := e.Undo()
	if ok || !apperr.Is(err, apperr.ErrSerialization) {
		t.Fatalf("expected serialization error, got ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(before, mustJSON(t, e)) {
		t.Fatalf("scene changed after failed undo")
	}
	if _, _, c := e.History().Stats(); c != cursor {
		t.Fatalf("cursor moved after failed undo: %d -> %d", cursor, c)
	}
}

func TestSelectRemovedObject(t *testing.T) {
	e := newEditor(t)
	id, _ := e.AddRectangle()
	if !e.RemoveObject(id) {
		t.Fatalf("remove failed")
	}
	if len(e.Selected()) != 0 {
		t.Fatalf("removed object must leave the selection")
	}
	e.Select(id)
	if len(e.Selected()) != 0 {
		t.Fatalf("selecting a removed id must select nothing")
	}
	if e.RemoveObject(id) {
		t.Fatalf("second remove must be a no-op")
	}
}

func TestFontChangesOnlyTouchText(t *testing.T) {
	e := newEditor(t)
	r, _ := e.AddRectangle()
	txt, _ := e.AddText("Hello")
	e.Select(r, txt)
	if err := e.ChangeFontSize(48); err != nil {
		t.Fatalf("change font size: %v", err)
	}
	size := 48.0
	o, _ := e.Object(txt)
	if o.Text.FontSize != size || o.Height != size*scene.LineHeight {
		t.Fatalf("text not resized: size=%v height=%v", o.Text.FontSize, o.Height)
	}
	if rect, _ := e.Object(r); rect.Text != nil {
		t.Fatalf("rect gained a text payload")
	}
	if e.FontSize() != scene.DefaultFontSize {
		t.Fatalf("primary is the rect, getter should report default, got %v", e.FontSize())
	}
	if err := e.ChangeTextAlign("diagonal"); !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad align must be rejected, got %v", err)
	}
	if err := e.ChangeFontStyle("italic"); err != nil {
		t.Fatalf("font style: %v", err)
	}
	if o, _ := e.Object(txt); !o.Text.Italic {
		t.Fatalf("italic not applied")
	}
}

func TestImageFilterNoneClears(t *testing.T) {
	e := newEditor(t)
	id, _ := e.AddImage("https://cdn.example.com/dish.png")
	_ = e.ChangeImageFilter("greyscale")
	if e.ImageFilter() != "greyscale" {
		t.Fatalf("filter not applied")
	}
	_ = e.ChangeImageFilter(scene.FilterNone)
	if o, _ := e.Object(id); len(o.Image.Filters) != 0 {
		t.Fatalf("none should clear filters: %v", o.Image.Filters)
	}
	if err := e.ChangeImageFilter("warp"); !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown filter must be rejected")
	}
}

func TestWorkspaceValidation(t *testing.T) {
	e := newEditor(t)
	if err := e.ChangeSize(0, 600); !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("zero width must be rejected, got %v", err)
	}
	if err := e.ChangeSize(1080, 1080); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if ws := e.Workspace(); ws.Width != 1080 || ws.Background != "#ffffff" {
		t.Fatalf("unexpected workspace: %+v", ws)
	}
}

func TestSelectAtAndReorder(t *testing.T) {
	e := newEditor(t)
	a, _ := e.AddObject(scene.KindRect, func(o *scene.Object) { o.Left, o.Top, o.Width, o.Height = 0, 0, 100, 100 })
	b, _ := e.AddObject(scene.KindRect, func(o *scene.Object) { o.Left, o.Top, o.Width, o.Height = 50, 50, 100, 100 })
	if id, ok := e.SelectAt(vector.Pt{X: 75, Y: 75}); !ok || id != b {
		t.Fatalf("expected top object, got %q", id)
	}
	e.SendBackwards()
	if id, _ := e.SelectAt(vector.Pt{X: 75, Y: 75}); id != a {
		t.Fatalf("after send backwards the other rect is on top, got %q", id)
	}
	if _, ok := e.SelectAt(vector.Pt{X: 700, Y: 500}); ok || len(e.Selected()) != 0 {
		t.Fatalf("clicking empty space should clear the selection")
	}
}

func TestCopyPasteCascades(t *testing.T) {
	e := newEditor(t)
	id, _ := e.AddRectangle()
	if e.Copy() != 1 {
		t.Fatalf("copy should capture the selection")
	}
	first, err := e.Paste()
	if err != nil || len(first) != 1 {
		t.Fatalf("paste: %v %v", first, err)
	}
	second, _ := e.Paste()
	orig, _ := e.Object(id)
	p1, _ := e.Object(first[0])
	p2, _ := e.Object(second[0])
	if p1.Left != orig.Left+10 || p2.Left != orig.Left+20 {
		t.Fatalf("pastes should cascade: %v %v %v", orig.Left, p1.Left, p2.Left)
	}
	if sel := e.Selected(); len(sel) != 1 || sel[0] != second[0] {
		t.Fatalf("pasted object should be selected, got %v", sel)
	}
}

func TestFreeDrawThroughTool(t *testing.T) {
	e := newEditor(t)
	if err := e.BeginStroke(scene.Point{X: 1, Y: 1}); err == nil {
		t.Fatalf("stroke without draw tool must fail")
	}
	_ = e.SetActiveTool(selection.ToolDraw)
	_ = e.ChangeStrokeColor("#00ff00")
	if err := e.BeginStroke(scene.Point{X: 10, Y: 10}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	e.ExtendStroke(scene.Point{X: 20, Y: 30})
	id, err := e.EndStroke()
	if err != nil || id == "" {
		t.Fatalf("end: %q %v", id, err)
	}
	o, _ := e.Object(id)
	if o.Kind != scene.KindPath || o.Stroke != "#00ff00" {
		t.Fatalf("unexpected stroke object: %+v", o)
	}
	_ = e.SetActiveTool(selection.ToolDraw)
	if err := e.BeginStroke(scene.Point{X: 1, Y: 1}); err == nil {
		t.Fatalf("toggling draw off must stop capture")
	}
}

type stepClock struct {
	mu  sync.Mutex
	fns []func()
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func (c *stepClock) after(_ time.Duration, f func()) debounce.Timer {
	c.mu.Lock()
	c.fns = append(c.fns, f)
	c.mu.Unlock()
	return noopTimer{}
}

func (c *stepClock) settle() {
	c.mu.Lock()
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func TestDragIsOneEntry(t *testing.T) {
	clk := &stepClock{}
	e := newEditor(t, func(o *Options) {
		o.Debounce = 300 * time.Millisecond
		o.RecorderOptions = []history.RecorderOption{history.WithAfterFunc(clk.after)}
	})
	id, _ := e.AddRectangle()
	clk.settle()
	before := entries(e)

	var commits int
	e.Subscribe(func(c history.Commit) {
		if !c.Replay {
			commits++
		}
	})
	for i := 0; i < 20; i++ {
		if err := e.MoveObject(id, 1, 1); err != nil {
			t.Fatalf("move: %v", err)
		}
	}
	clk.settle()
	if entries(e) != before+1 {
		t.Fatalf("a drag should be one entry, got %d new", entries(e)-before)
	}
	if commits != 1 {
		t.Fatalf("save subscribers should see one commit, got %d", commits)
	}
	if o, _ := e.Object(id); o.Left != 120 {
		t.Fatalf("final position lost: %v", o.Left)
	}
}

func TestSeedDocument(t *testing.T) {
	seed := []byte(`{"version":"1","workspace":{"width":500,"height":400,"fill":"#000000"},"objects":[{"id":"logo","type":"ellipse"}]}`)
	e := newEditor(t, func(o *Options) { o.Seed = seed })
	if ws := e.Workspace(); ws.Width != 500 {
		t.Fatalf("seed workspace ignored: %+v", ws)
	}
	if _, ok := e.Object("logo"); !ok {
		t.Fatalf("seed object missing")
	}
	if _, err := New(Options{Seed: []byte(`{"nope":true}`)}); !apperr.Is(err, apperr.ErrSerialization) {
		t.Fatalf("malformed seed must fail with serialization error, got %v", err)
	}
}
