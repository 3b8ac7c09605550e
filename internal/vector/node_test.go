/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "testing"

func TestShapeHitFillAndStroke(t *testing.T) {
	s := &Shape{
		Path: RectPath(R(0, 0, 100, 50)),
		Xf:   Translate(10, 20),
		Fill: Fill{Enabled: true, Color: White},
	}
	if !s.Hit(Pt{60, 45}) {
		t.Fatalf("expected hit inside translated rect")
	}
	if s.Hit(Pt{5, 5}) {
		t.Fatalf("expected miss outside")
	}

	outline := &Shape{Path: EllipsePath(R(0, 0, 100, 100)), Xf: Identity, Stroke: Stroke{Enabled: true, Width: 4}}
	if outline.Hit(Pt{50, 50}) {
		t.Fatalf("unfilled ellipse centre must not hit")
	}
	if !outline.Hit(Pt{100, 50}) {
		t.Fatalf("stroke edge should hit")
	}
}

func TestShapeBoundsIncludeStroke(t *testing.T) {
	s := &Shape{Path: RectPath(R(0, 0, 10, 10)), Xf: Identity, Stroke: Stroke{Enabled: true, Width: 2}}
	b := s.Bounds()
	if b.X != -1 || b.W != 12 {
		t.Fatalf("unexpected bounds: %+v", b)
	}
}

func TestShapeBoxHit(t *testing.T) {
	s := &Shape{Path: RectPath(R(0, 0, 10, 10)), Xf: Scale(2, 2), Box: true}
	if !s.Hit(Pt{19, 19}) || s.Hit(Pt{21, 5}) {
		t.Fatalf("box hit mismatch")
	}
}
