/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package selection

import "testing"

type fakeScene struct {
	ids  map[string]bool
	draw bool
}

func (f *fakeScene) Has(id string) bool  { return f.ids[id] }
func (f *fakeScene) SetDrawMode(on bool) { f.draw = on }

func newFake(ids ...string) *fakeScene {
	f := &fakeScene{ids: map[string]bool{}}
	for _, id := range ids {
		f.ids[id] = true
	}
	return f
}

func TestSelectDropsStaleIDs(t *testing.T) {
	c := New(newFake("a", "b"))
	c.Select("b", "ghost", "a", "b")
	if got := c.Selected(); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("unexpected selection: %v", got)
	}
	if p, _ := c.Primary(); p != "b" {
		t.Fatalf("primary should be first selected, got %q", p)
	}
}

func TestSelectingOnlyStaleIDsClears(t *testing.T) {
	c := New(newFake("a"))
	c.Select("a")
	c.SetActiveTool(ToolOpacity)
	c.Select("ghost")
	if !c.Empty() || c.ActiveTool() != ToolSelect {
		t.Fatalf("stale-only select must behave like clear: sel=%v tool=%s", c.Selected(), c.ActiveTool())
	}
}

func TestClearResetsSelectionDependentTools(t *testing.T) {
	for _, tool := range Tools {
		c := New(newFake("a"))
		c.Select("a")
		c.SetActiveTool(tool)
		c.Clear()
		want := tool
		if tool.SelectionDependent() {
			want = ToolSelect
		}
		if tool == ToolSelect {
			want = ToolSelect
		}
		if c.ActiveTool() != want {
			t.Fatalf("after clear with %s active: got %s, want %s", tool, c.ActiveTool(), want)
		}
	}
}

func TestSetActiveToolToggles(t *testing.T) {
	c := New(newFake())
	c.SetActiveTool(ToolShapes)
	c.SetActiveTool(ToolShapes)
	if c.ActiveTool() != ToolSelect {
		t.Fatalf("requesting the active tool should toggle back to select, got %s", c.ActiveTool())
	}
}

func TestDrawModeFollowsTool(t *testing.T) {
	f := newFake()
	c := New(f)
	c.SetActiveTool(ToolDraw)
	if !f.draw {
		t.Fatalf("entering draw must enable draw mode")
	}
	c.SetActiveTool(ToolText)
	if f.draw {
		t.Fatalf("leaving draw must disable draw mode")
	}
	c.SetActiveTool(ToolDraw)
	c.SetActiveTool(ToolDraw)
	if f.draw || c.ActiveTool() != ToolSelect {
		t.Fatalf("toggling draw off must disable draw mode")
	}
}

func TestPrune(t *testing.T) {
	f := newFake("a", "b")
	c := New(f)
	c.Select("a", "b")
	c.SetActiveTool(ToolFill)
	var changes int
	c.OnChange(func(Change) { changes++ })

	delete(f.ids, "a")
	if !c.Prune() || len(c.Selected()) != 1 {
		t.Fatalf("prune should drop a: %v", c.Selected())
	}
	if c.ActiveTool() != ToolFill {
		t.Fatalf("tool must survive while something is selected")
	}
	delete(f.ids, "b")
	c.Prune()
	if !c.Empty() || c.ActiveTool() != ToolSelect {
		t.Fatalf("pruning to empty must behave like clear")
	}
	if c.Prune() {
		t.Fatalf("nothing left to prune")
	}
	if changes != 2 {
		t.Fatalf("expected 2 change notifications, got %d", changes)
	}
}
