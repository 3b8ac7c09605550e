/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"testing"

	apperr "designeditor/internal/errors"
	"designeditor/internal/vector"
)

func newTestScene(t *testing.T) *Scene {
	t.Helper()
	n := 0
	s, err := New(Workspace{Width: 800, Height: 600, Background: "#ffffff"}, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("obj-%d", n)
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func assertDenseZ(t *testing.T, s *Scene) {
	t.Helper()
	for i, o := range s.Objects() {
		if o.Z != i {
			t.Fatalf("object %s has z=%d at index %d", o.ID, o.Z, i)
		}
	}
}

func TestAddAssignsIDAndZ(t *testing.T) {
	s := newTestScene(t)
	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })

	a, err := s.Add(NewObject(KindRect))
	if err != nil {
		t.Fatalf("add rect: %v", err)
	}
	b, err := s.Add(NewObject(KindEllipse))
	if err != nil {
		t.Fatalf("add ellipse: %v", err)
	}
	if a != "obj-1" || b != "obj-2" {
		t.Fatalf("unexpected ids %q %q", a, b)
	}
	if s.Len() != 2 || len(events) != 2 || events[0].Kind != EventAdded {
		t.Fatalf("unexpected state: len=%d events=%v", s.Len(), events)
	}
	got, _ := s.Get(b)
	if got.Z != 1 {
		t.Fatalf("second object should be on top, z=%d", got.Z)
	}
	assertDenseZ(t, s)
}

func TestAddRejectsInvalidObjects(t *testing.T) {
	s := newTestScene(t)
	cases := map[string]func(*Object){
		"negative scale": func(o *Object) { o.ScaleX = -1 },
		"opacity":        func(o *Object) { o.Opacity = 1.2 },
		"colour":         func(o *Object) { o.Fill = "not-a-colour" },
		"payload":        func(o *Object) { o.Text = &TextData{} },
		"kind":           func(o *Object) { o.Kind = "hexagon" },
	}
	for name, mutate := range cases {
		o := NewObject(KindRect)
		mutate(&o)
		if _, err := s.Add(o); !apperr.Is(err, apperr.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if s.Len() != 0 {
		t.Fatalf("rejected objects must not be inserted")
	}
	o := NewObject(KindRect)
	o.ID = "fixed"
	if _, err := s.Add(o); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.Add(o); !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("duplicate id must be rejected, got %v", err)
	}
}

func TestRemoveRenumbers(t *testing.T) {
	s := newTestScene(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Add(NewObject(KindRect)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if !s.Remove("obj-2") {
		t.Fatalf("remove existing should report true")
	}
	if s.Remove("obj-2") {
		t.Fatalf("second remove should be a no-op")
	}
	if ids := s.IDs(); len(ids) != 2 || ids[0] != "obj-1" || ids[1] != "obj-3" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	assertDenseZ(t, s)
}

func TestReorderClampsAtEnds(t *testing.T) {
	s := newTestScene(t)
	for i := 0; i < 3; i++ {
		_, _ = s.Add(NewObject(KindRect))
	}
	if s.Reorder("obj-3", Forward) {
		t.Fatalf("top object cannot move forward")
	}
	if s.Reorder("obj-1", Backward) {
		t.Fatalf("bottom object cannot move backward")
	}
	if !s.Reorder("obj-1", Forward) {
		t.Fatalf("expected move")
	}
	if ids := s.IDs(); ids[0] != "obj-2" || ids[1] != "obj-1" {
		t.Fatalf("unexpected order after forward: %v", ids)
	}
	if !s.Reorder("obj-3", ToBack) {
		t.Fatalf("expected move to back")
	}
	if ids := s.IDs(); ids[0] != "obj-3" || ids[2] != "obj-1" {
		t.Fatalf("unexpected order after to-back: %v", ids)
	}
	if s.Reorder("missing", Forward) {
		t.Fatalf("missing id must not reorder")
	}
	assertDenseZ(t, s)
}

func TestUpdateIsAtomic(t *testing.T) {
	s := newTestScene(t)
	a, _ := s.Add(NewObject(KindRect))
	b, _ := s.Add(NewObject(KindEllipse))
	var modified int
	s.Subscribe(func(ev Event) {
		if ev.Kind == EventModified {
			modified++
		}
	})

	_, err := s.Update([]string{a, b}, func(o *Object) {
		if o.ID == b {
			o.Opacity = -0.5
		} else {
			o.Opacity = 0.5
		}
	})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got, _ := s.Get(a); got.Opacity != 1 {
		t.Fatalf("partial update leaked: %v", got.Opacity)
	}

	n, err := s.Update([]string{a, b, "missing"}, func(o *Object) { o.Fill = "#ff0000" })
	if err != nil || n != 2 {
		t.Fatalf("update: n=%d err=%v", n, err)
	}
	if modified != 1 {
		t.Fatalf("expected exactly one modified event, got %d", modified)
	}
}

func TestSetWorkspaceValidation(t *testing.T) {
	s := newTestScene(t)
	id, _ := s.Add(NewObject(KindRect))
	for _, dims := range [][2]int{{0, 600}, {800, -1}, {50, 600}, {800, 5001}} {
		if err := s.SetWorkspace(dims[0], dims[1], "#fff"); !apperr.Is(err, apperr.ErrValidation) {
			t.Fatalf("dims %v: expected validation error, got %v", dims, err)
		}
	}
	if ws := s.Workspace(); ws.Width != 800 || ws.Height != 600 {
		t.Fatalf("workspace changed on error: %+v", ws)
	}
	if err := s.SetWorkspace(1024, 768, "#eeeeee"); err != nil {
		t.Fatalf("set workspace: %v", err)
	}
	if o, _ := s.Get(id); o.Left != 100 || o.Top != 100 {
		t.Fatalf("objects must not move on resize: %+v", o.Transform)
	}
}

func TestTopmostAt(t *testing.T) {
	s := newTestScene(t)
	bottom := NewObject(KindRect)
	bottom.Left, bottom.Top, bottom.Width, bottom.Height = 0, 0, 200, 200
	top := bottom
	top.Left, top.Top = 100, 100
	a, _ := s.Add(bottom)
	b, _ := s.Add(top)

	if id, ok := s.TopmostAt(vector.Pt{X: 150, Y: 150}); !ok || id != b {
		t.Fatalf("expected top object, got %q", id)
	}
	if id, ok := s.TopmostAt(vector.Pt{X: 50, Y: 50}); !ok || id != a {
		t.Fatalf("expected bottom object, got %q", id)
	}
	_, _ = s.Update([]string{b}, func(o *Object) { o.Visible = false })
	if id, _ := s.TopmostAt(vector.Pt{X: 150, Y: 150}); id != a {
		t.Fatalf("hidden objects must be skipped, got %q", id)
	}
	if _, ok := s.TopmostAt(vector.Pt{X: 700, Y: 500}); ok {
		t.Fatalf("empty area must not hit")
	}
}

func TestFreeDrawStroke(t *testing.T) {
	s := newTestScene(t)
	if err := s.BeginStroke(Point{1, 1}); !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("stroke outside draw mode must fail, got %v", err)
	}
	s.SetDrawMode(true)
	if err := s.SetBrush(Brush{Color: "#ff0000", Width: 5}); err != nil {
		t.Fatalf("set brush: %v", err)
	}
	_ = s.BeginStroke(Point{10, 20})
	s.ExtendStroke(Point{30, 25})
	s.ExtendStroke(Point{50, 60})
	id, err := s.EndStroke()
	if err != nil || id == "" {
		t.Fatalf("end stroke: id=%q err=%v", id, err)
	}
	o, _ := s.Get(id)
	if o.Kind != KindPath || o.Left != 10 || o.Top != 20 || o.Width != 40 || o.Height != 40 {
		t.Fatalf("unexpected path geometry: %+v", o)
	}
	if o.Stroke != "#ff0000" || o.StrokeWidth != 5 || o.Points[0] != (Point{0, 0}) {
		t.Fatalf("unexpected path paint or points: %+v", o)
	}

	_ = s.BeginStroke(Point{5, 5})
	if id, _ := s.EndStroke(); id != "" {
		t.Fatalf("single-point stroke must be dropped")
	}
	s.SetDrawMode(false)
	if s.DrawMode() {
		t.Fatalf("draw mode should be off")
	}
}

func TestLoadDropsStrokeInProgress(t *testing.T) {
	s := newTestScene(t)
	s.SetDrawMode(true)
	_ = s.BeginStroke(Point{1, 1})
	s.ExtendStroke(Point{5, 5})
	if err := s.Load(s.Document()); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.ExtendStroke(Point{50, 50})
	s.ExtendStroke(Point{60, 70})
	id, err := s.EndStroke()
	if err != nil || id != "" {
		t.Fatalf("stroke interrupted by load must not commit, got id=%q err=%v", id, err)
	}
	if !s.DrawMode() {
		t.Fatalf("load must keep draw mode")
	}
}
