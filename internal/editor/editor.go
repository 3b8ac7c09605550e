/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor is one editing session: it owns the scene, the selection, the property
// commands and the history recorder, and serialises every access to them.
package editor

import (
	"log/slog"
	"sync"
	"time"

	apperr "designeditor/internal/errors"
	"designeditor/internal/history"
	applog "designeditor/internal/log"
	"designeditor/internal/scene"
	"designeditor/internal/selection"
	"designeditor/internal/vector"
)

// Options configures a session. Seed, when set, is the document to open; otherwise an
// empty Workspace (DefaultWorkspace when zero) is used.
type Options struct {
	Seed      []byte
	Workspace scene.Workspace
	History   history.Config
	// Debounce is how long mutations must settle before a history entry is taken.
	// Zero commits synchronously.
	Debounce time.Duration

	// IDGenerator overrides UUID object ids.
	IDGenerator func() string
	// RecorderOptions are passed to the history recorder (fake clocks in tests).
	RecorderOptions []history.RecorderOption
}

type Editor struct {
	mu    sync.Mutex
	scene *scene.Scene
	sel   *selection.Coordinator
	rec   *history.Recorder
	log   *slog.Logger

	dirty     bool
	clipboard []scene.Object
	closed    bool
}

// New opens a session. A malformed seed is a SERIALIZATION error.
func New(opts Options) (*Editor, error) {
	ws := opts.Workspace
	if ws == (scene.Workspace{}) {
		ws = scene.DefaultWorkspace()
	}
	var doc *scene.Document
	if len(opts.Seed) > 0 {
		d, err := scene.ParseDocument(opts.Seed)
		if err != nil {
			return nil, err
		}
		doc = &d
		ws = d.Workspace
	}
	var sopts []scene.Option
	if opts.IDGenerator != nil {
		sopts = append(sopts, scene.WithIDGenerator(opts.IDGenerator))
	}
	sc, err := scene.New(ws, sopts...)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		if err := sc.Load(*doc); err != nil {
			return nil, apperr.NewSerialization("openSeed", err)
		}
	}
	e := &Editor{scene: sc, log: applog.WithComponent("editor")}
	e.sel = selection.New(sc)
	sc.Subscribe(e.onSceneEvent)

	initial, err := scene.EncodeDocument(sc.Document())
	if err != nil {
		return nil, err
	}
	hist := history.NewManager(opts.History, history.Entry{Blob: initial, TS: time.Now()})
	e.rec = history.NewRecorder(hist, e.capture, opts.Debounce, opts.RecorderOptions...)
	return e, nil
}

// onSceneEvent runs under e.mu, synchronously inside the scene mutation.
func (e *Editor) onSceneEvent(ev scene.Event) {
	e.dirty = true
	if ev.Kind == scene.EventRemoved || ev.Kind == scene.EventLoaded {
		e.sel.Prune()
	}
}

func (e *Editor) capture() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return scene.EncodeDocument(e.scene.Document())
}

// mutate runs fn under the session lock and notifies the recorder afterwards if the
// scene changed. The recorder may capture synchronously, so it must run unlocked.
func (e *Editor) mutate(fn func() error) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return apperr.Validationf("mutate", "session is closed")
	}
	err := fn()
	dirty := e.dirty
	e.dirty = false
	e.mu.Unlock()
	if dirty {
		e.rec.Notify()
	}
	return err
}

func (e *Editor) locked(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// Subscribe registers fn for settled history boundaries (user commits and undo/redo restores).
func (e *Editor) Subscribe(fn func(history.Commit)) (unsubscribe func()) { return e.rec.Subscribe(fn) }

// History exposes the timeline for inspection.
func (e *Editor) History() *history.Manager { return e.rec.History() }

// Close stops the recorder; later mutations fail.
func (e *Editor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.rec.Close()
}

// ---- scene operations ----

// AddObject inserts an object of kind with the kind defaults overlaid by init, and
// selects it. init may be nil.
func (e *Editor) AddObject(kind scene.Kind, init func(*scene.Object)) (string, error) {
	var id string
	err := e.mutate(func() error {
		if !kind.Valid() {
			return apperr.Validationf("addObject", "unknown object type %q", kind)
		}
		o := scene.NewObject(kind)
		if init != nil {
			init(&o)
		}
		o.Kind = kind
		var err error
		id, err = e.scene.Add(o)
		if err != nil {
			return err
		}
		e.sel.Select(id)
		return nil
	})
	return id, err
}

func (e *Editor) AddRectangle() (string, error) { return e.AddObject(scene.KindRect, nil) }
func (e *Editor) AddCircle() (string, error)    { return e.AddObject(scene.KindEllipse, nil) }
func (e *Editor) AddTriangle() (string, error)  { return e.AddObject(scene.KindTriangle, nil) }
func (e *Editor) AddDiamond() (string, error)   { return e.AddObject(scene.KindPolygon, nil) }

// AddText adds a text box with the given content.
func (e *Editor) AddText(text string) (string, error) {
	return e.AddObject(scene.KindText, func(o *scene.Object) { o.Text.Text = text })
}

// AddImage adds an image referencing src (URL, path or data URL).
func (e *Editor) AddImage(src string) (string, error) {
	return e.AddObject(scene.KindImage, func(o *scene.Object) { o.Image.Src = src })
}

// RemoveObject deletes id and drops it from the selection. Absent ids are a no-op.
func (e *Editor) RemoveObject(id string) bool {
	var removed bool
	_ = e.mutate(func() error {
		removed = e.scene.Remove(id)
		return nil
	})
	return removed
}

// Delete removes every selected object.
func (e *Editor) Delete() int {
	var n int
	_ = e.mutate(func() error {
		for _, id := range e.sel.Selected() {
			if e.scene.Remove(id) {
				n++
			}
		}
		return nil
	})
	return n
}

// Reorder moves one object in the stack; clamped at the ends.
func (e *Editor) Reorder(id string, dir scene.Direction) bool {
	var moved bool
	_ = e.mutate(func() error {
		moved = e.scene.Reorder(id, dir)
		return nil
	})
	return moved
}

// BringForward moves every selected object one step up.
func (e *Editor) BringForward() { e.reorderSelection(scene.Forward) }

// SendBackwards moves every selected object one step down.
func (e *Editor) SendBackwards() { e.reorderSelection(scene.Backward) }

func (e *Editor) reorderSelection(dir scene.Direction) {
	_ = e.mutate(func() error {
		for _, id := range e.sel.Selected() {
			e.scene.Reorder(id, dir)
		}
		return nil
	})
}

// SetWorkspace resizes and recolours the artboard.
func (e *Editor) SetWorkspace(width, height int, background string) error {
	return e.mutate(func() error { return e.scene.SetWorkspace(width, height, background) })
}

// ChangeSize keeps the background and resizes the artboard.
func (e *Editor) ChangeSize(width, height int) error {
	return e.mutate(func() error {
		return e.scene.SetWorkspace(width, height, e.scene.Workspace().Background)
	})
}

// ChangeBackground keeps the size and recolours the artboard.
func (e *Editor) ChangeBackground(color string) error {
	return e.mutate(func() error {
		ws := e.scene.Workspace()
		return e.scene.SetWorkspace(ws.Width, ws.Height, color)
	})
}

func (e *Editor) Workspace() scene.Workspace {
	var ws scene.Workspace
	e.locked(func() { ws = e.scene.Workspace() })
	return ws
}

// Objects returns copies of all objects bottom to top.
func (e *Editor) Objects() []scene.Object {
	var out []scene.Object
	e.locked(func() { out = e.scene.Objects() })
	return out
}

// Object returns a copy of one object.
func (e *Editor) Object(id string) (scene.Object, bool) {
	var o scene.Object
	var ok bool
	e.locked(func() { o, ok = e.scene.Get(id) })
	return o, ok
}

// SetTransform replaces the placement of id (a drag, resize or rotate gesture).
func (e *Editor) SetTransform(id string, t scene.Transform) error {
	return e.mutate(func() error {
		if !e.scene.Has(id) {
			return apperr.NewNotFound("setTransform", id)
		}
		_, err := e.scene.Update([]string{id}, func(o *scene.Object) { o.Transform = t })
		return err
	})
}

// MoveObject offsets id by dx, dy.
func (e *Editor) MoveObject(id string, dx, dy float64) error {
	return e.mutate(func() error {
		if !e.scene.Has(id) {
			return apperr.NewNotFound("moveObject", id)
		}
		_, err := e.scene.Update([]string{id}, func(o *scene.Object) {
			o.Left += dx
			o.Top += dy
		})
		return err
	})
}

// Copy places clones of the selection on the session clipboard.
func (e *Editor) Copy() int {
	var n int
	e.locked(func() {
		e.clipboard = e.clipboard[:0]
		for _, id := range e.sel.Selected() {
			if o, ok := e.scene.Get(id); ok {
				e.clipboard = append(e.clipboard, o)
			}
		}
		n = len(e.clipboard)
	})
	return n
}

// Paste inserts the clipboard offset by 10 units, selects the pasted objects and shifts
// the clipboard so repeated pastes cascade.
func (e *Editor) Paste() ([]string, error) {
	var ids []string
	err := e.mutate(func() error {
		for i := range e.clipboard {
			c := e.clipboard[i].Clone()
			c.ID = ""
			c.Left += 10
			c.Top += 10
			id, err := e.scene.Add(c)
			if err != nil {
				return err
			}
			e.clipboard[i].Left, e.clipboard[i].Top = c.Left, c.Top
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			e.sel.Select(ids...)
		}
		return nil
	})
	return ids, err
}

// ---- selection & tools ----

func (e *Editor) Select(ids ...string) { e.locked(func() { e.sel.Select(ids...) }) }

func (e *Editor) ClearSelection() { e.locked(func() { e.sel.Clear() }) }

func (e *Editor) Selected() []string {
	var ids []string
	e.locked(func() { ids = e.sel.Selected() })
	return ids
}

// SelectAt selects the top-most visible, selectable object under p, or clears.
func (e *Editor) SelectAt(p vector.Pt) (string, bool) {
	var id string
	var ok bool
	e.locked(func() {
		id, ok = e.scene.TopmostAt(p)
		if ok {
			e.sel.Select(id)
		} else {
			e.sel.Clear()
		}
	})
	return id, ok
}

func (e *Editor) ActiveTool() selection.Tool {
	var t selection.Tool
	e.locked(func() { t = e.sel.ActiveTool() })
	return t
}

// SetActiveTool switches tools; requesting the active tool returns to select.
func (e *Editor) SetActiveTool(t selection.Tool) error {
	if !t.Valid() {
		return apperr.Validationf("setActiveTool", "unknown tool %q", t)
	}
	e.locked(func() { e.sel.SetActiveTool(t) })
	return nil
}

// OnSelectionChange registers fn for selection and tool changes. fn runs under the session lock
// and must not call back into the editor.
func (e *Editor) OnSelectionChange(fn func(selection.Change)) {
	e.locked(func() { e.sel.OnChange(fn) })
}

// ---- free draw ----

// BeginStroke starts a freehand stroke; the draw tool must be active.
func (e *Editor) BeginStroke(p scene.Point) error {
	var err error
	e.locked(func() { err = e.scene.BeginStroke(p) })
	return err
}

func (e *Editor) ExtendStroke(p scene.Point) { e.locked(func() { e.scene.ExtendStroke(p) }) }

// EndStroke commits the stroke as a path object.
func (e *Editor) EndStroke() (string, error) {
	var id string
	err := e.mutate(func() error {
		var err error
		id, err = e.scene.EndStroke()
		return err
	})
	return id, err
}

// ---- history ----

// Undo restores the previous snapshot. A corrupt snapshot is reported as a SERIALIZATION
// error and leaves scene and history untouched.
func (e *Editor) Undo() (bool, error) { return e.step("undo", e.rec.Undo) }

// Redo restores the next snapshot.
func (e *Editor) Redo() (bool, error) { return e.step("redo", e.rec.Redo) }

func (e *Editor) step(op string, run func(func([]byte) error) (bool, error)) (bool, error) {
	ok, err := run(e.restore)
	if err != nil {
		applog.WithOperation(e.log, op).Error("restore snapshot failed", slog.Any("err", err))
	}
	return ok, err
}

func (e *Editor) restore(blob []byte) error {
	doc, err := scene.ParseDocument(blob)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.scene.Load(doc); err != nil {
		return apperr.NewSerialization("restore", err)
	}
	e.sel.Clear()
	e.dirty = false
	return nil
}

func (e *Editor) CanUndo() bool { return e.rec.History().CanUndo() || e.rec.Pending() }

func (e *Editor) CanRedo() bool { return e.rec.History().CanRedo() && !e.rec.Pending() }

// Flush commits a pending mutation now instead of waiting for the debounce.
func (e *Editor) Flush() bool { return e.rec.Flush() }

// ---- serialization ----

// Document snapshots the scene.
func (e *Editor) Document() scene.Document {
	var d scene.Document
	e.locked(func() { d = e.scene.Document() })
	return d
}

// ToJSON serialises the scene.
func (e *Editor) ToJSON() ([]byte, error) { return e.capture() }

// LoadJSON replaces the scene wholesale, restarts history from the loaded state and
// resets selection and tool. The scene is untouched when b is malformed.
func (e *Editor) LoadJSON(b []byte) error {
	doc, err := scene.ParseDocument(b)
	if err != nil {
		return err
	}
	return e.rec.Rebase(func() ([]byte, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := e.scene.Load(doc); err != nil {
			return nil, apperr.NewSerialization("loadJSON", err)
		}
		e.sel.Reset()
		e.dirty = false
		return scene.EncodeDocument(e.scene.Document())
	})
}
