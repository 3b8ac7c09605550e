/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"math"

	apperr "designeditor/internal/errors"
	"designeditor/internal/vector"
)

// Brush is the paint used for freehand strokes.
type Brush struct {
	Color string
	Width float64
}

type drawState struct {
	enabled bool
	brush   Brush
	stroke  []Point // workspace coordinates of the stroke in progress
	active  bool
}

// SetDrawMode turns continuous free-draw capture on or off. Turning it off drops an
// unfinished stroke.
func (s *Scene) SetDrawMode(on bool) {
	s.draw.enabled = on
	if !on {
		s.draw.active = false
		s.draw.stroke = nil
	}
}

func (s *Scene) DrawMode() bool { return s.draw.enabled }

func (s *Scene) Brush() Brush { return s.draw.brush }

// SetBrush changes the paint of future strokes.
func (s *Scene) SetBrush(b Brush) error {
	if _, err := vector.ParseColor(b.Color); err != nil {
		return apperr.NewValidation("setBrush", "invalid brush colour", map[string]any{"value": b.Color})
	}
	if b.Width <= 0 || math.IsNaN(b.Width) || math.IsInf(b.Width, 0) {
		return apperr.NewValidation("setBrush", "brush width must be positive", map[string]any{"value": b.Width})
	}
	s.draw.brush = b
	return nil
}

// BeginStroke starts capturing at p. It fails outside draw mode.
func (s *Scene) BeginStroke(p Point) error {
	if !s.draw.enabled {
		return apperr.Validationf("beginStroke", "draw mode is off")
	}
	s.draw.active = true
	s.draw.stroke = []Point{p}
	return nil
}

// ExtendStroke appends p to the stroke in progress; ignored when none is active.
func (s *Scene) ExtendStroke(p Point) {
	if !s.draw.active {
		return
	}
	if n := len(s.draw.stroke); n > 0 && s.draw.stroke[n-1] == p {
		return
	}
	s.draw.stroke = append(s.draw.stroke, p)
}

// EndStroke turns the captured stroke into a path object and returns its id.
// Strokes with fewer than two distinct points are dropped and return "".
func (s *Scene) EndStroke() (string, error) {
	pts := s.draw.stroke
	s.draw.active = false
	s.draw.stroke = nil
	if len(pts) < 2 {
		return "", nil
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	o := NewObject(KindPath)
	o.Left, o.Top = minX, minY
	o.Width, o.Height = maxX-minX, maxY-minY
	o.Stroke = s.draw.brush.Color
	o.StrokeWidth = s.draw.brush.Width
	o.Points = make([]Point, len(pts))
	for i, p := range pts {
		o.Points[i] = Point{X: p.X - minX, Y: p.Y - minY}
	}
	return s.Add(o)
}
