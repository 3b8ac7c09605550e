/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package selection tracks which objects are selected and which editing tool is active.
// It is not safe for concurrent use; the editor serialises access.
package selection

// Tool names an editing mode shown by the sidebar.
type Tool string

const (
	ToolSelect      Tool = "select"
	ToolDraw        Tool = "draw"
	ToolTemplates   Tool = "templates"
	ToolImages      Tool = "images"
	ToolText        Tool = "text"
	ToolShapes      Tool = "shapes"
	ToolFill        Tool = "fill"
	ToolStrokeColor Tool = "stroke-color"
	ToolStrokeWidth Tool = "stroke-width"
	ToolStrokeDash  Tool = "stroke-dash"
	ToolOpacity     Tool = "opacity"
	ToolFont        Tool = "font"
	ToolFilter      Tool = "filter"
	ToolAI          Tool = "ai"
	ToolRemoveBg    Tool = "remove-bg"
	ToolSettings    Tool = "settings"
)

// Tools lists every tool.
var Tools = []Tool{
	ToolSelect, ToolDraw, ToolTemplates, ToolImages, ToolText, ToolShapes, ToolFill, ToolStrokeColor,
	ToolStrokeWidth, ToolStrokeDash, ToolOpacity, ToolFont, ToolFilter, ToolAI, ToolRemoveBg, ToolSettings,
}

// SelectionDependent reports whether the tool edits the current selection and is
// meaningless without one.
func (t Tool) SelectionDependent() bool {
	switch t {
	case ToolFill, ToolStrokeColor, ToolStrokeWidth, ToolStrokeDash, ToolOpacity, ToolFont, ToolFilter:
		return true
	}
	return false
}

// Valid reports whether t is a known tool.
func (t Tool) Valid() bool {
	for _, k := range Tools {
		if k == t {
			return true
		}
	}
	return false
}

// Scene is what the coordinator needs from the scene.
type Scene interface {
	Has(id string) bool
	SetDrawMode(on bool)
}

// Change is passed to OnChange listeners.
type Change struct {
	Selected []string
	Tool     Tool
}

type Coordinator struct {
	scene     Scene
	ids       []string
	tool      Tool
	listeners []func(Change)
}

func New(s Scene) *Coordinator { return &Coordinator{scene: s, tool: ToolSelect} }

// OnChange registers fn for selection and tool changes.
func (c *Coordinator) OnChange(fn func(Change)) { c.listeners = append(c.listeners, fn) }

func (c *Coordinator) notify() {
	ch := Change{Selected: c.Selected(), Tool: c.tool}
	for _, fn := range c.listeners {
		fn(ch)
	}
}

// Selected returns the selected ids; the first one is the primary.
func (c *Coordinator) Selected() []string { return append([]string(nil), c.ids...) }

// Primary returns the first selected id.
func (c *Coordinator) Primary() (string, bool) {
	if len(c.ids) == 0 {
		return "", false
	}
	return c.ids[0], true
}

func (c *Coordinator) IsSelected(id string) bool {
	for _, s := range c.ids {
		if s == id {
			return true
		}
	}
	return false
}

func (c *Coordinator) Empty() bool { return len(c.ids) == 0 }

// Select replaces the selection. Ids that are not in the scene are dropped; selecting
// nothing that exists behaves like Clear.
func (c *Coordinator) Select(ids ...string) {
	kept := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] || !c.scene.Has(id) {
			continue
		}
		seen[id] = true
		kept = append(kept, id)
	}
	if len(kept) == 0 {
		c.Clear()
		return
	}
	c.ids = kept
	c.notify()
}

// Clear empties the selection and leaves a selection-dependent tool for select.
func (c *Coordinator) Clear() {
	c.ids = nil
	if c.tool.SelectionDependent() {
		c.tool = ToolSelect
	}
	c.notify()
}

// Prune drops ids that no longer exist in the scene. It reports whether anything changed.
func (c *Coordinator) Prune() bool {
	kept := c.ids[:0:0]
	for _, id := range c.ids {
		if c.scene.Has(id) {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(c.ids) {
		return false
	}
	if len(kept) == 0 {
		c.Clear()
		return true
	}
	c.ids = kept
	c.notify()
	return true
}

func (c *Coordinator) ActiveTool() Tool { return c.tool }

// SetActiveTool switches tools. Requesting the active tool toggles back to select.
// Entering draw enables free-draw capture on the scene; leaving it disables capture.
func (c *Coordinator) SetActiveTool(t Tool) {
	if t == c.tool {
		t = ToolSelect
	}
	if c.tool == ToolDraw && t != ToolDraw {
		c.scene.SetDrawMode(false)
	}
	if t == ToolDraw {
		c.scene.SetDrawMode(true)
	}
	c.tool = t
	c.notify()
}

// Reset clears the selection and returns to the select tool (after a document load).
func (c *Coordinator) Reset() {
	if c.tool == ToolDraw {
		c.scene.SetDrawMode(false)
	}
	c.ids = nil
	c.tool = ToolSelect
	c.notify()
}
