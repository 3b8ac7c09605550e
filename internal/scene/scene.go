/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene owns the editable document: the workspace and the z-ordered objects on it.
// A Scene is not safe for concurrent use; the editor serialises access to it.
package scene

import (
	"fmt"

	apperr "designeditor/internal/errors"
	"designeditor/internal/vector"

	"github.com/google/uuid"
)

type EventKind uint8

const (
	EventAdded EventKind = iota + 1
	EventRemoved
	EventModified
	EventReordered
	EventWorkspace
	EventLoaded
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventModified:
		return "modified"
	case EventReordered:
		return "reordered"
	case EventWorkspace:
		return "workspace"
	case EventLoaded:
		return "loaded"
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// Event describes one committed mutation.
type Event struct {
	Kind EventKind
	IDs  []string
}

type Listener func(Event)

// Direction for Reorder.
type Direction int

const (
	Forward Direction = iota
	Backward
	ToFront
	ToBack
)

type Scene struct {
	ws   Workspace
	objs []*Object // index is Z
	byID map[string]*Object

	listeners map[int]Listener
	nextL     int

	draw  drawState
	newID func() string
}

type Option func(*Scene)

// WithIDGenerator replaces the UUID generator, mostly for tests.
func WithIDGenerator(fn func() string) Option { return func(s *Scene) { s.newID = fn } }

// New creates an empty scene on ws.
func New(ws Workspace, opts ...Option) (*Scene, error) {
	if err := ws.Validate("newScene"); err != nil {
		return nil, err
	}
	s := &Scene{
		ws:        ws,
		byID:      map[string]*Object{},
		listeners: map[int]Listener{},
		newID:     uuid.NewString,
		draw:      drawState{brush: Brush{Color: DefaultStroke, Width: DefaultStrokeWidth}},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Validate checks the workspace bounds and background colour.
func (w Workspace) Validate(op string) error {
	for name, v := range map[string]int{"width": w.Width, "height": w.Height} {
		if v < MinWorkspaceSize || v > MaxWorkspaceSize {
			return apperr.NewValidation(op, fmt.Sprintf("workspace %s must be within [%d,%d]", name, MinWorkspaceSize, MaxWorkspaceSize),
				map[string]any{"field": name, "value": v})
		}
	}
	if _, err := vector.ParseColor(w.Background); err != nil {
		return apperr.NewValidation(op, "invalid workspace background", map[string]any{"value": w.Background})
	}
	return nil
}

// Bounds is the workspace frame in scene coordinates.
func (w Workspace) Bounds() vector.Rect {
	return vector.R(0, 0, float64(w.Width), float64(w.Height))
}

// Subscribe registers l for every committed mutation and returns its removal func.
func (s *Scene) Subscribe(l Listener) (unsubscribe func()) {
	id := s.nextL
	s.nextL++
	s.listeners[id] = l
	return func() { delete(s.listeners, id) }
}

func (s *Scene) emit(ev Event) {
	for i := 0; i < s.nextL; i++ {
		if l, ok := s.listeners[i]; ok {
			l(ev)
		}
	}
}

func (s *Scene) Workspace() Workspace { return s.ws }

func (s *Scene) Len() int { return len(s.objs) }

func (s *Scene) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Get returns a copy of the object with id.
func (s *Scene) Get(id string) (Object, bool) {
	o, ok := s.byID[id]
	if !ok {
		return Object{}, false
	}
	return o.Clone(), true
}

// Objects returns copies of all objects bottom to top.
func (s *Scene) Objects() []Object {
	out := make([]Object, len(s.objs))
	for i, o := range s.objs {
		out[i] = o.Clone()
	}
	return out
}

// IDs returns object ids bottom to top.
func (s *Scene) IDs() []string {
	out := make([]string, len(s.objs))
	for i, o := range s.objs {
		out[i] = o.ID
	}
	return out
}

// Add inserts o on top of the stack. An empty ID gets a fresh UUID.
func (s *Scene) Add(o Object) (string, error) {
	obj := o.Clone()
	if obj.ID == "" {
		obj.ID = s.newID()
	} else if s.Has(obj.ID) {
		return "", apperr.NewValidation("add", "duplicate object id", map[string]any{"id": obj.ID})
	}
	obj.fitText()
	if err := obj.Validate("add"); err != nil {
		return "", err
	}
	obj.Z = len(s.objs)
	s.objs = append(s.objs, &obj)
	s.byID[obj.ID] = &obj
	s.emit(Event{Kind: EventAdded, IDs: []string{obj.ID}})
	return obj.ID, nil
}

// Remove deletes id; absent ids are a no-op returning false.
func (s *Scene) Remove(id string) bool {
	o, ok := s.byID[id]
	if !ok {
		return false
	}
	s.objs = append(s.objs[:o.Z], s.objs[o.Z+1:]...)
	delete(s.byID, id)
	s.renumber()
	s.emit(Event{Kind: EventRemoved, IDs: []string{id}})
	return true
}

// Reorder moves id one step or to an end of the stack. Moves past an end are clamped;
// the result reports whether the order changed.
func (s *Scene) Reorder(id string, dir Direction) bool {
	o, ok := s.byID[id]
	if !ok {
		return false
	}
	from, to := o.Z, o.Z
	switch dir {
	case Forward:
		to = from + 1
	case Backward:
		to = from - 1
	case ToFront:
		to = len(s.objs) - 1
	case ToBack:
		to = 0
	}
	if to < 0 {
		to = 0
	}
	if to > len(s.objs)-1 {
		to = len(s.objs) - 1
	}
	if to == from {
		return false
	}
	s.objs = append(s.objs[:from], s.objs[from+1:]...)
	s.objs = append(s.objs[:to], append([]*Object{o}, s.objs[to:]...)...)
	s.renumber()
	s.emit(Event{Kind: EventReordered, IDs: []string{id}})
	return true
}

func (s *Scene) renumber() {
	for i, o := range s.objs {
		o.Z = i
	}
}

// Update applies fn to copies of the listed objects, validates every copy and commits
// all of them or none. Unknown ids are skipped. One EventModified is emitted per call
// that touches at least one object.
func (s *Scene) Update(ids []string, fn func(*Object)) (int, error) {
	type pending struct {
		at  int
		obj Object
	}
	var staged []pending
	seen := map[string]bool{}
	for _, id := range ids {
		cur, ok := s.byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		c := cur.Clone()
		fn(&c)
		c.ID, c.Kind, c.Z = cur.ID, cur.Kind, cur.Z
		c.fitText()
		if err := c.Validate("update"); err != nil {
			return 0, err
		}
		staged = append(staged, pending{at: cur.Z, obj: c})
	}
	if len(staged) == 0 {
		return 0, nil
	}
	changed := make([]string, 0, len(staged))
	for _, p := range staged {
		obj := p.obj
		s.objs[p.at] = &obj
		s.byID[obj.ID] = &obj
		changed = append(changed, obj.ID)
	}
	s.emit(Event{Kind: EventModified, IDs: changed})
	return len(staged), nil
}

// SetWorkspace resizes or recolours the artboard. Objects keep their positions.
func (s *Scene) SetWorkspace(width, height int, background string) error {
	ws := Workspace{Width: width, Height: height, Background: background}
	if err := ws.Validate("setWorkspace"); err != nil {
		return err
	}
	if ws == s.ws {
		return nil
	}
	s.ws = ws
	s.emit(Event{Kind: EventWorkspace})
	return nil
}

// TopmostAt returns the highest visible, selectable object under p.
func (s *Scene) TopmostAt(p vector.Pt) (string, bool) {
	for i := len(s.objs) - 1; i >= 0; i-- {
		o := s.objs[i]
		if !o.Visible || !o.Selectable {
			continue
		}
		if o.Shape().Hit(p) {
			return o.ID, true
		}
	}
	return "", false
}

// Document snapshots the scene.
func (s *Scene) Document() Document {
	return Document{Version: DocumentVersion, Workspace: s.ws, Objects: s.Objects()}
}

// Load replaces the whole scene with doc. Objects keep their array order as z-order;
// objects without an id get a fresh one. Nothing changes on error.
func (s *Scene) Load(doc Document) error {
	if err := doc.Workspace.Validate("load"); err != nil {
		return err
	}
	objs := make([]*Object, 0, len(doc.Objects))
	byID := make(map[string]*Object, len(doc.Objects))
	for i := range doc.Objects {
		o := doc.Objects[i].Clone()
		if o.ID == "" {
			o.ID = s.newID()
		}
		if _, dup := byID[o.ID]; dup {
			return apperr.NewValidation("load", "duplicate object id", map[string]any{"id": o.ID})
		}
		if err := o.Validate("load"); err != nil {
			return err
		}
		o.Z = len(objs)
		objs = append(objs, &o)
		byID[o.ID] = &o
	}
	s.ws = doc.Workspace
	s.objs = objs
	s.byID = byID
	s.draw.active = false
	s.draw.stroke = nil
	s.emit(Event{Kind: EventLoaded, IDs: s.IDs()})
	return nil
}
