/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// Defaults reported by the property getters when nothing is selected and used for new objects.
const (
	DefaultFill        = "#000000"
	DefaultStroke      = "#000000"
	DefaultStrokeWidth = 2.0
	DefaultOpacity     = 1.0
	DefaultFontFamily  = "Arial"
	DefaultFontSize    = 32.0
	DefaultFontWeight  = 400
	DefaultTextAlign   = "left"

	DefaultWorkspaceWidth  = 900
	DefaultWorkspaceHeight = 1200
	DefaultBackground      = "#ffffff"

	MinWorkspaceSize = 100
	MaxWorkspaceSize = 5000

	// LineHeight is the text line box relative to the font size.
	LineHeight = 1.16
)

// DefaultStrokeDash is the solid-line dash pattern.
var DefaultStrokeDash = []float64{}

// NewObject returns an object of kind k with the default geometry and paint for that kind.
func NewObject(k Kind) Object {
	o := Object{
		Kind:        k,
		Transform:   Transform{Left: 100, Top: 100, ScaleX: 1, ScaleY: 1},
		Fill:        DefaultFill,
		Stroke:      DefaultStroke,
		StrokeWidth: DefaultStrokeWidth,
		Opacity:     DefaultOpacity,
		Visible:     true,
		Selectable:  true,
	}
	switch k {
	case KindRect, KindTriangle:
		o.Width, o.Height = 400, 400
	case KindEllipse:
		o.Width, o.Height = 450, 450
	case KindPolygon:
		o.Width, o.Height = 600, 600
		o.Points = []Point{{300, 0}, {600, 300}, {300, 600}, {0, 300}}
	case KindText:
		o.Width = 400
		o.StrokeWidth = 0
		o.Text = &TextData{
			Text:       "Text",
			FontFamily: DefaultFontFamily,
			FontSize:   DefaultFontSize,
			FontWeight: DefaultFontWeight,
			TextAlign:  DefaultTextAlign,
		}
		o.fitText()
	case KindImage:
		o.Width, o.Height = 400, 400
		o.StrokeWidth = 0
		o.Image = &ImageData{}
	case KindPath:
		o.Fill = ""
	}
	return o
}

// Workspace is the fixed-size artboard; only content inside it is exported.
type Workspace struct {
	Width      int
	Height     int
	Background string
}

// DefaultWorkspace is the artboard used when no seed document is given.
func DefaultWorkspace() Workspace {
	return Workspace{Width: DefaultWorkspaceWidth, Height: DefaultWorkspaceHeight, Background: DefaultBackground}
}
