/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"math"
	"strings"

	apperr "designeditor/internal/errors"
	"designeditor/internal/scene"
	"designeditor/internal/vector"
)

// primary returns the first selected object; callers hold e.mu.
func (e *Editor) primary() (scene.Object, bool) {
	id, ok := e.sel.Primary()
	if !ok {
		return scene.Object{}, false
	}
	return e.scene.Get(id)
}

// get reads one property of the primary selection, falling back to def.
func get[T any](e *Editor, def T, pick func(o *scene.Object) (T, bool)) T {
	v := def
	e.locked(func() {
		o, ok := e.primary()
		if !ok {
			return
		}
		if got, applies := pick(&o); applies {
			v = got
		}
	})
	return v
}

// change applies fn to every selected object for which applies is true, as one scene
// update and therefore one history entry. No-op on an empty selection.
func (e *Editor) change(applies func(*scene.Object) bool, fn func(*scene.Object)) error {
	return e.mutate(func() error {
		var ids []string
		for _, id := range e.sel.Selected() {
			o, ok := e.scene.Get(id)
			if ok && (applies == nil || applies(&o)) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		_, err := e.scene.Update(ids, fn)
		return err
	})
}

func isText(o *scene.Object) bool  { return o.IsText() }
func isImage(o *scene.Object) bool { return o.IsImage() }

func validColor(op, v string) error {
	if _, err := vector.ParseColor(v); err != nil {
		return apperr.NewValidation(op, "invalid colour", map[string]any{"value": v})
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// FillColor of the primary selection, or DefaultFill.
func (e *Editor) FillColor() string {
	return get(e, scene.DefaultFill, func(o *scene.Object) (string, bool) { return o.Fill, true })
}

// ChangeFillColor sets the fill of every selected object.
func (e *Editor) ChangeFillColor(v string) error {
	if err := validColor("changeFillColor", v); err != nil {
		return err
	}
	return e.change(nil, func(o *scene.Object) { o.Fill = v })
}

func (e *Editor) StrokeColor() string {
	return get(e, scene.DefaultStroke, func(o *scene.Object) (string, bool) { return o.Stroke, true })
}

// ChangeStrokeColor sets the stroke of every selected object and the free-draw brush colour.
func (e *Editor) ChangeStrokeColor(v string) error {
	if err := validColor("changeStrokeColor", v); err != nil {
		return err
	}
	e.locked(func() {
		b := e.scene.Brush()
		b.Color = v
		_ = e.scene.SetBrush(b)
	})
	return e.change(nil, func(o *scene.Object) { o.Stroke = v })
}

func (e *Editor) StrokeWidth() float64 {
	return get(e, scene.DefaultStrokeWidth, func(o *scene.Object) (float64, bool) { return o.StrokeWidth, true })
}

// ChangeStrokeWidth sets the stroke width of every selected object and the brush width.
func (e *Editor) ChangeStrokeWidth(v float64) error {
	if !finite(v) || v < 0 {
		return apperr.NewValidation("changeStrokeWidth", "strokeWidth must be a non-negative number", map[string]any{"value": v})
	}
	if v > 0 {
		e.locked(func() {
			b := e.scene.Brush()
			b.Width = v
			_ = e.scene.SetBrush(b)
		})
	}
	return e.change(nil, func(o *scene.Object) { o.StrokeWidth = v })
}

func (e *Editor) StrokeDashArray() []float64 {
	return get(e, scene.DefaultStrokeDash, func(o *scene.Object) ([]float64, bool) {
		return append([]float64{}, o.StrokeDash...), true
	})
}

// ChangeStrokeDashArray sets the dash pattern; an empty slice means a solid line.
func (e *Editor) ChangeStrokeDashArray(v []float64) error {
	for _, d := range v {
		if !finite(d) || d < 0 {
			return apperr.NewValidation("changeStrokeDashArray", "dash entries must be non-negative numbers", map[string]any{"value": v})
		}
	}
	dash := append([]float64{}, v...)
	return e.change(nil, func(o *scene.Object) { o.StrokeDash = append([]float64{}, dash...) })
}

func (e *Editor) Opacity() float64 {
	return get(e, scene.DefaultOpacity, func(o *scene.Object) (float64, bool) { return o.Opacity, true })
}

// ChangeOpacity sets opacity in [0,1] on every selected object.
func (e *Editor) ChangeOpacity(v float64) error {
	if !finite(v) || v < 0 || v > 1 {
		return apperr.NewValidation("changeOpacity", "opacity must be within [0,1]", map[string]any{"value": v})
	}
	return e.change(nil, func(o *scene.Object) { o.Opacity = v })
}

func (e *Editor) FontFamily() string {
	return get(e, scene.DefaultFontFamily, func(o *scene.Object) (string, bool) {
		if !o.IsText() {
			return "", false
		}
		return o.Text.FontFamily, true
	})
}

// ChangeFontFamily applies to selected text objects only.
func (e *Editor) ChangeFontFamily(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return apperr.Validationf("changeFontFamily", "fontFamily is required")
	}
	return e.change(isText, func(o *scene.Object) { o.Text.FontFamily = v })
}

func (e *Editor) FontSize() float64 {
	return get(e, scene.DefaultFontSize, func(o *scene.Object) (float64, bool) {
		if !o.IsText() {
			return 0, false
		}
		return o.Text.FontSize, true
	})
}

// ChangeFontSize applies to selected text objects only; the text box height follows.
func (e *Editor) ChangeFontSize(v float64) error {
	if !finite(v) || v <= 0 {
		return apperr.NewValidation("changeFontSize", "fontSize must be positive", map[string]any{"value": v})
	}
	return e.change(isText, func(o *scene.Object) { o.Text.FontSize = v })
}

func (e *Editor) FontWeight() int {
	return get(e, scene.DefaultFontWeight, func(o *scene.Object) (int, bool) {
		if !o.IsText() {
			return 0, false
		}
		return o.Text.FontWeight, true
	})
}

// ChangeFontWeight accepts 100..900.
func (e *Editor) ChangeFontWeight(v int) error {
	if v < 100 || v > 900 {
		return apperr.NewValidation("changeFontWeight", "fontWeight must be within [100,900]", map[string]any{"value": v})
	}
	return e.change(isText, func(o *scene.Object) { o.Text.FontWeight = v })
}

// FontStyle is "italic" or "normal".
func (e *Editor) FontStyle() string {
	return get(e, "normal", func(o *scene.Object) (string, bool) {
		if !o.IsText() {
			return "", false
		}
		if o.Text.Italic {
			return "italic", true
		}
		return "normal", true
	})
}

func (e *Editor) ChangeFontStyle(v string) error {
	var italic bool
	switch v {
	case "italic":
		italic = true
	case "normal":
	default:
		return apperr.NewValidation("changeFontStyle", "fontStyle must be normal or italic", map[string]any{"value": v})
	}
	return e.change(isText, func(o *scene.Object) { o.Text.Italic = italic })
}

func (e *Editor) FontUnderline() bool {
	return get(e, false, func(o *scene.Object) (bool, bool) {
		return o.IsText() && o.Text.Underline, o.IsText()
	})
}

func (e *Editor) ChangeFontUnderline(v bool) error {
	return e.change(isText, func(o *scene.Object) { o.Text.Underline = v })
}

func (e *Editor) FontLinethrough() bool {
	return get(e, false, func(o *scene.Object) (bool, bool) {
		return o.IsText() && o.Text.Linethrough, o.IsText()
	})
}

func (e *Editor) ChangeFontLinethrough(v bool) error {
	return e.change(isText, func(o *scene.Object) { o.Text.Linethrough = v })
}

func (e *Editor) TextAlign() string {
	return get(e, scene.DefaultTextAlign, func(o *scene.Object) (string, bool) {
		if !o.IsText() {
			return "", false
		}
		return o.Text.TextAlign, true
	})
}

// ChangeTextAlign accepts left, center, right or justify.
func (e *Editor) ChangeTextAlign(v string) error {
	if !scene.ValidTextAlign(v) {
		return apperr.NewValidation("changeTextAlign", "unsupported textAlign", map[string]any{"value": v})
	}
	return e.change(isText, func(o *scene.Object) { o.Text.TextAlign = v })
}

// ImageFilter is the first filter of the primary image, or "none".
func (e *Editor) ImageFilter() string {
	return get(e, scene.FilterNone, func(o *scene.Object) (string, bool) {
		if !o.IsImage() || len(o.Image.Filters) == 0 {
			return "", false
		}
		return o.Image.Filters[0], true
	})
}

// ChangeImageFilter replaces the filters of selected images with name; "none" clears them.
func (e *Editor) ChangeImageFilter(name string) error {
	if name != scene.FilterNone && !scene.ValidFilter(name) {
		return apperr.NewValidation("changeImageFilter", "unknown image filter", map[string]any{"value": name})
	}
	return e.change(isImage, func(o *scene.Object) {
		if name == scene.FilterNone {
			o.Image.Filters = nil
			return
		}
		o.Image.Filters = []string{name}
	})
}
