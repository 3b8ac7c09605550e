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
	"strings"

	apperr "designeditor/internal/errors"
	"designeditor/internal/vector"
)

// Kind tags the variant of an Object.
type Kind string

const (
	KindRect     Kind = "rect"
	KindEllipse  Kind = "ellipse"
	KindTriangle Kind = "triangle"
	KindPolygon  Kind = "polygon" // diamond and other closed point lists
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindPath     Kind = "path" // freehand stroke
)

// Kinds lists every variant in declaration order.
var Kinds = []Kind{KindRect, KindEllipse, KindTriangle, KindPolygon, KindText, KindImage, KindPath}

func (k Kind) Valid() bool {
	switch k {
	case KindRect, KindEllipse, KindTriangle, KindPolygon, KindText, KindImage, KindPath:
		return true
	}
	return false
}

// Transform places an object's local box (0,0)-(Width,Height) in workspace coordinates.
// Angle and skews are degrees.
type Transform struct {
	Left, Top      float64
	ScaleX, ScaleY float64
	Angle          float64
	SkewX, SkewY   float64
}

// Matrix composes the transform.
func (t Transform) Matrix() vector.Affine2D {
	return vector.Compose(t.Left, t.Top, t.ScaleX, t.ScaleY, t.Angle, t.SkewX, t.SkewY)
}

// Point is a local-coordinate vertex of a polygon or freehand path.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TextData is the payload of KindText.
type TextData struct {
	Text        string
	FontFamily  string
	FontSize    float64
	FontWeight  int
	Italic      bool
	Underline   bool
	Linethrough bool
	TextAlign   string
}

// ImageData is the payload of KindImage. Src is a URL, a file path or a data: URL.
type ImageData struct {
	Src     string
	Filters []string
}

// Object is one visual element of the scene. Exactly one of Text, Image, Points
// is meaningful, selected by Kind.
type Object struct {
	ID   string
	Kind Kind
	Transform
	Width, Height float64

	Fill        string
	Stroke      string
	StrokeWidth float64
	StrokeDash  []float64
	Opacity     float64
	Visible     bool
	Selectable  bool

	// Z is the dense stacking index maintained by Scene; 0 is the bottom.
	Z int

	Text   *TextData
	Image  *ImageData
	Points []Point
}

// Clone returns a deep copy.
func (o Object) Clone() Object {
	c := o
	if o.StrokeDash != nil {
		c.StrokeDash = append([]float64(nil), o.StrokeDash...)
	}
	if o.Text != nil {
		t := *o.Text
		c.Text = &t
	}
	if o.Image != nil {
		im := *o.Image
		im.Filters = append([]string(nil), o.Image.Filters...)
		c.Image = &im
	}
	if o.Points != nil {
		c.Points = append([]Point(nil), o.Points...)
	}
	return c
}

// IsText reports whether the property set of text applies.
func (o *Object) IsText() bool { return o.Kind == KindText && o.Text != nil }

// IsImage reports whether image filters apply.
func (o *Object) IsImage() bool { return o.Kind == KindImage && o.Image != nil }

var textAligns = map[string]bool{"left": true, "center": true, "right": true, "justify": true}

// ValidTextAlign reports whether a is a supported alignment.
func ValidTextAlign(a string) bool { return textAligns[a] }

// Validate checks numeric sanity, colours and the variant payload.
func (o *Object) Validate(op string) error {
	if !o.Kind.Valid() {
		return apperr.Validationf(op, "unknown object type %q", o.Kind)
	}
	nums := map[string]float64{
		"left": o.Left, "top": o.Top, "scaleX": o.ScaleX, "scaleY": o.ScaleY,
		"angle": o.Angle, "skewX": o.SkewX, "skewY": o.SkewY,
		"width": o.Width, "height": o.Height, "strokeWidth": o.StrokeWidth, "opacity": o.Opacity,
	}
	for name, v := range nums {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.NewValidation(op, name+" must be a finite number", map[string]any{"id": o.ID, "field": name})
		}
	}
	if o.ScaleX <= 0 || o.ScaleY <= 0 {
		return apperr.NewValidation(op, "scale must be positive", map[string]any{"id": o.ID, "scaleX": o.ScaleX, "scaleY": o.ScaleY})
	}
	if o.Width < 0 || o.Height < 0 {
		return apperr.NewValidation(op, "size must not be negative", map[string]any{"id": o.ID})
	}
	if o.StrokeWidth < 0 {
		return apperr.NewValidation(op, "strokeWidth must not be negative", map[string]any{"id": o.ID, "value": o.StrokeWidth})
	}
	if o.Opacity < 0 || o.Opacity > 1 {
		return apperr.NewValidation(op, "opacity must be within [0,1]", map[string]any{"id": o.ID, "value": o.Opacity})
	}
	for _, d := range o.StrokeDash {
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return apperr.NewValidation(op, "strokeDashArray entries must be finite and non-negative", map[string]any{"id": o.ID})
		}
	}
	if _, err := vector.ParseColor(o.Fill); err != nil {
		return apperr.NewValidation(op, "invalid fill colour", map[string]any{"id": o.ID, "value": o.Fill})
	}
	if _, err := vector.ParseColor(o.Stroke); err != nil {
		return apperr.NewValidation(op, "invalid stroke colour", map[string]any{"id": o.ID, "value": o.Stroke})
	}
	return o.validatePayload(op)
}

func (o *Object) validatePayload(op string) error {
	mismatch := func() error {
		return apperr.NewValidation(op, "payload does not match object type", map[string]any{"id": o.ID, "type": string(o.Kind)})
	}
	switch o.Kind {
	case KindText:
		if o.Text == nil || o.Image != nil || o.Points != nil {
			return mismatch()
		}
		return ValidateText(op, o.Text)
	case KindImage:
		if o.Image == nil || o.Text != nil || o.Points != nil {
			return mismatch()
		}
		if strings.TrimSpace(o.Image.Src) == "" {
			return apperr.NewValidation(op, "image source is required", map[string]any{"id": o.ID})
		}
		for _, f := range o.Image.Filters {
			if !ValidFilter(f) {
				return apperr.NewValidation(op, "unknown image filter", map[string]any{"id": o.ID, "filter": f})
			}
		}
	case KindPolygon, KindPath:
		if o.Text != nil || o.Image != nil {
			return mismatch()
		}
		minPts := 3
		if o.Kind == KindPath {
			minPts = 2
		}
		if len(o.Points) < minPts {
			return apperr.NewValidation(op, "not enough points", map[string]any{"id": o.ID, "points": len(o.Points)})
		}
		for _, p := range o.Points {
			if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
				return apperr.NewValidation(op, "points must be finite", map[string]any{"id": o.ID})
			}
		}
	default:
		if o.Text != nil || o.Image != nil || o.Points != nil {
			return mismatch()
		}
	}
	return nil
}

// ValidateText checks the font properties shared by text objects and font commands.
func ValidateText(op string, t *TextData) error {
	if t.FontSize <= 0 || math.IsNaN(t.FontSize) || math.IsInf(t.FontSize, 0) {
		return apperr.NewValidation(op, "fontSize must be positive", map[string]any{"value": t.FontSize})
	}
	if t.FontWeight < 100 || t.FontWeight > 900 {
		return apperr.NewValidation(op, "fontWeight must be within [100,900]", map[string]any{"value": t.FontWeight})
	}
	if strings.TrimSpace(t.FontFamily) == "" {
		return apperr.NewValidation(op, "fontFamily is required", nil)
	}
	if !ValidTextAlign(t.TextAlign) {
		return apperr.NewValidation(op, "unsupported textAlign", map[string]any{"value": t.TextAlign})
	}
	return nil
}

// fitText derives the text box height from the line count and font size.
func (o *Object) fitText() {
	if !o.IsText() {
		return
	}
	lines := strings.Count(o.Text.Text, "\n") + 1
	o.Height = float64(lines) * o.Text.FontSize * LineHeight
}

// LocalPath is the outline of the object in its local box.
func (o *Object) LocalPath() *vector.Path {
	w, h := o.Width, o.Height
	switch o.Kind {
	case KindEllipse:
		return vector.EllipsePath(vector.R(0, 0, w, h))
	case KindTriangle:
		return vector.PolygonPath([]vector.Pt{{X: w / 2, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}, true)
	case KindPolygon:
		return vector.PolygonPath(toPts(o.Points), true)
	case KindPath:
		return vector.PolygonPath(toPts(o.Points), false)
	default:
		return vector.RectPath(vector.R(0, 0, w, h))
	}
}

func toPts(ps []Point) []vector.Pt {
	out := make([]vector.Pt, len(ps))
	for i, p := range ps {
		out[i] = vector.Pt{X: p.X, Y: p.Y}
	}
	return out
}

// Shape is the hit-testable geometry of the object in workspace coordinates.
func (o *Object) Shape() *vector.Shape {
	s := &vector.Shape{Path: o.LocalPath(), Xf: o.Matrix()}
	switch o.Kind {
	case KindText, KindImage:
		s.Box = true
		return s
	}
	if fill, err := vector.ParseColor(o.Fill); err == nil && fill.A > 0 && o.Kind != KindPath {
		s.Fill = vector.Fill{Color: fill, Enabled: true}
	}
	if stroke, err := vector.ParseColor(o.Stroke); err == nil && stroke.A > 0 && o.StrokeWidth > 0 {
		s.Stroke = vector.Stroke{Color: stroke, Width: o.StrokeWidth, Dash: o.StrokeDash, Enabled: true}
	}
	return s
}

// Bounds is the axis-aligned box of the object in workspace coordinates.
func (o *Object) Bounds() vector.Rect { return o.Shape().Bounds() }
