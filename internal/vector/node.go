/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Node is a drawable item that can report its bounds and answer hit-tests.
type Node interface {
	Bounds() Rect
	Transform() Affine2D
	Hit(p Pt) bool
}

// Shape is a path in local coordinates placed by an affine transform.
type Shape struct {
	Path   *Path
	Xf     Affine2D
	Fill   Fill
	Stroke Stroke
	// Box hit-tests against the local bounding box instead of the outline (text, images).
	Box bool
}

var _ Node = (*Shape)(nil)

func (s *Shape) Transform() Affine2D { return s.Xf }

// Bounds is the transformed outline bounds grown by half the stroke width.
func (s *Shape) Bounds() Rect {
	b := s.Xf.ApplyRect(s.Path.Bounds())
	if s.Stroke.Enabled && s.Stroke.Width > 0 {
		hw := s.Stroke.Width * s.Xf.MeanScale() / 2
		b = b.Inset(-hw, -hw)
	}
	return b
}

// Hit reports whether p (scene coordinates) touches the filled area or the stroke.
func (s *Shape) Hit(p Pt) bool {
	inv, ok := s.Xf.Invert()
	if !ok {
		return false
	}
	q := inv.Apply(p)
	if s.Box {
		return s.Path.Bounds().Contains(q)
	}
	lines := s.Path.Flatten(0.5)
	if s.Fill.Enabled {
		for _, pl := range lines {
			if pl.Closed || len(pl.Pts) > 2 {
				if pointInPolygon(q, pl.Pts) {
					return true
				}
			}
		}
	}
	if s.Stroke.Enabled {
		hw := s.Stroke.Width / 2
		if hw < 1 {
			hw = 1
		}
		for _, pl := range lines {
			pts := pl.Pts
			if pl.Closed && len(pts) > 0 {
				pts = append(append([]Pt(nil), pts...), pts[0])
			}
			for i := 1; i < len(pts); i++ {
				if segDist(q, pts[i-1], pts[i]) <= hw {
					return true
				}
			}
		}
	}
	return false
}

// pointInPolygon uses the even-odd rule.
func pointInPolygon(p Pt, poly []Pt) bool {
	in := false
	j := len(poly) - 1
	for i := range poly {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				in = !in
			}
		}
		j = i
	}
	return in
}

func segDist(p, a, b Pt) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return dist(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return dist(p, Pt{a.X + t*dx, a.Y + t*dy})
}
