/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	apperr "designeditor/internal/errors"

	"github.com/xeipuuv/gojsonschema"
)

// DocumentVersion is the format version written into every document.
const DocumentVersion = "1"

// Document is the serialisable form of a scene: workspace plus objects bottom to top.
type Document struct {
	Version   string
	Workspace Workspace
	Objects   []Object
}

var commonKeys = []string{
	"id", "type", "left", "top", "width", "height", "scaleX", "scaleY", "angle", "skewX", "skewY",
	"fill", "stroke", "strokeWidth", "strokeDashArray", "opacity", "visible", "selectable",
}

var variantKeys = map[Kind][]string{
	KindText:    {"text", "fontFamily", "fontSize", "fontWeight", "fontStyle", "underline", "linethrough", "textAlign"},
	KindImage:   {"src", "filters"},
	KindPolygon: {"points"},
	KindPath:    {"points"},
}

// AllowedKeys returns the JSON keys persisted for kind k.
func AllowedKeys(k Kind) map[string]bool {
	m := make(map[string]bool, len(commonKeys)+8)
	for _, key := range commonKeys {
		m[key] = true
	}
	for _, key := range variantKeys[k] {
		m[key] = true
	}
	return m
}

type workspaceJSON struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Fill   string `json:"fill"`
}

type documentJSON struct {
	Version   string                       `json:"version"`
	Workspace workspaceJSON                `json:"workspace"`
	Objects   []map[string]json.RawMessage `json:"objects"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	objs := make([]map[string]any, len(d.Objects))
	for i := range d.Objects {
		objs[i] = encodeObject(&d.Objects[i])
	}
	v := d.Version
	if v == "" {
		v = DocumentVersion
	}
	return json.Marshal(struct {
		Version   string           `json:"version"`
		Workspace workspaceJSON    `json:"workspace"`
		Objects   []map[string]any `json:"objects"`
	}{v, workspaceJSON{d.Workspace.Width, d.Workspace.Height, d.Workspace.Background}, objs})
}

func encodeObject(o *Object) map[string]any {
	dash := o.StrokeDash
	if dash == nil {
		dash = []float64{}
	}
	m := map[string]any{
		"id": o.ID, "type": string(o.Kind),
		"left": o.Left, "top": o.Top, "width": o.Width, "height": o.Height,
		"scaleX": o.ScaleX, "scaleY": o.ScaleY, "angle": o.Angle, "skewX": o.SkewX, "skewY": o.SkewY,
		"fill": o.Fill, "stroke": o.Stroke, "strokeWidth": o.StrokeWidth, "strokeDashArray": dash,
		"opacity": o.Opacity, "visible": o.Visible, "selectable": o.Selectable,
	}
	switch o.Kind {
	case KindText:
		if t := o.Text; t != nil {
			style := "normal"
			if t.Italic {
				style = "italic"
			}
			m["text"], m["fontFamily"], m["fontSize"], m["fontWeight"] = t.Text, t.FontFamily, t.FontSize, t.FontWeight
			m["fontStyle"], m["underline"], m["linethrough"], m["textAlign"] = style, t.Underline, t.Linethrough, t.TextAlign
		}
	case KindImage:
		if im := o.Image; im != nil {
			filters := im.Filters
			if filters == nil {
				filters = []string{}
			}
			m["src"], m["filters"] = im.Src, filters
		}
	case KindPolygon, KindPath:
		m["points"] = o.Points
	}
	allowed := AllowedKeys(o.Kind)
	for k := range m {
		if !allowed[k] {
			delete(m, k)
		}
	}
	return m
}

func (d *Document) UnmarshalJSON(b []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	doc := Document{
		Version:   raw.Version,
		Workspace: Workspace{Width: raw.Workspace.Width, Height: raw.Workspace.Height, Background: raw.Workspace.Fill},
		Objects:   make([]Object, 0, len(raw.Objects)),
	}
	if doc.Workspace.Background == "" {
		doc.Workspace.Background = DefaultBackground
	}
	for i, ro := range raw.Objects {
		o, err := decodeObject(ro)
		if err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
		doc.Objects = append(doc.Objects, o)
	}
	*d = doc
	return nil
}

// decodeObject starts from the kind defaults and overlays the allowed keys; others are dropped.
func decodeObject(raw map[string]json.RawMessage) (Object, error) {
	var kind string
	if err := json.Unmarshal(raw["type"], &kind); err != nil {
		return Object{}, fmt.Errorf("type: %w", err)
	}
	k := Kind(kind)
	if !k.Valid() {
		return Object{}, fmt.Errorf("unknown object type %q", kind)
	}
	o := NewObject(k)
	allowed := AllowedKeys(k)
	for key, v := range raw {
		if !allowed[key] {
			continue
		}
		var err error
		switch key {
		case "type":
		case "id":
			err = json.Unmarshal(v, &o.ID)
		case "left":
			err = json.Unmarshal(v, &o.Left)
		case "top":
			err = json.Unmarshal(v, &o.Top)
		case "width":
			err = json.Unmarshal(v, &o.Width)
		case "height":
			err = json.Unmarshal(v, &o.Height)
		case "scaleX":
			err = json.Unmarshal(v, &o.ScaleX)
		case "scaleY":
			err = json.Unmarshal(v, &o.ScaleY)
		case "angle":
			err = json.Unmarshal(v, &o.Angle)
		case "skewX":
			err = json.Unmarshal(v, &o.SkewX)
		case "skewY":
			err = json.Unmarshal(v, &o.SkewY)
		case "fill":
			err = json.Unmarshal(v, &o.Fill)
		case "stroke":
			err = json.Unmarshal(v, &o.Stroke)
		case "strokeWidth":
			err = json.Unmarshal(v, &o.StrokeWidth)
		case "strokeDashArray":
			err = json.Unmarshal(v, &o.StrokeDash)
		case "opacity":
			err = json.Unmarshal(v, &o.Opacity)
		case "visible":
			err = json.Unmarshal(v, &o.Visible)
		case "selectable":
			err = json.Unmarshal(v, &o.Selectable)
		case "text":
			err = json.Unmarshal(v, &o.Text.Text)
		case "fontFamily":
			err = json.Unmarshal(v, &o.Text.FontFamily)
		case "fontSize":
			err = json.Unmarshal(v, &o.Text.FontSize)
		case "fontWeight":
			err = json.Unmarshal(v, &o.Text.FontWeight)
		case "fontStyle":
			var s string
			err = json.Unmarshal(v, &s)
			o.Text.Italic = strings.EqualFold(s, "italic")
		case "underline":
			err = json.Unmarshal(v, &o.Text.Underline)
		case "linethrough":
			err = json.Unmarshal(v, &o.Text.Linethrough)
		case "textAlign":
			err = json.Unmarshal(v, &o.Text.TextAlign)
		case "src":
			err = json.Unmarshal(v, &o.Image.Src)
		case "filters":
			err = json.Unmarshal(v, &o.Image.Filters)
		case "points":
			err = json.Unmarshal(v, &o.Points)
		}
		if err != nil {
			return Object{}, fmt.Errorf("%s: %w", key, err)
		}
	}
	return o, nil
}

//go:embed document.schema.json
var documentSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func documentSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(documentSchemaJSON))
	})
	return schema, schemaErr
}

// ValidateJSON checks b against the document schema and returns the violations.
func ValidateJSON(b []byte) ([]string, error) {
	s, err := documentSchema()
	if err != nil {
		return nil, apperr.NewInternal("loadSchema", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, apperr.NewSerialization("validateJSON", err)
	}
	if res.Valid() {
		return nil, nil
	}
	out := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		out = append(out, e.String())
	}
	return out, nil
}

// ParseDocument validates b against the schema, decodes it and validates every object.
// Every failure is a SERIALIZATION error.
func ParseDocument(b []byte) (Document, error) {
	problems, err := ValidateJSON(b)
	if err != nil {
		return Document{}, err
	}
	if len(problems) > 0 {
		e := apperr.NewSerialization("parseDocument", fmt.Errorf("schema: %s", strings.Join(problems, "; ")))
		e.Details = map[string]any{"errors": problems}
		return Document{}, e
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Document{}, apperr.NewSerialization("parseDocument", err)
	}
	if err := doc.Workspace.Validate("parseDocument"); err != nil {
		return Document{}, apperr.NewSerialization("parseDocument", err)
	}
	ids := map[string]bool{}
	for i := range doc.Objects {
		o := &doc.Objects[i]
		if err := o.Validate("parseDocument"); err != nil {
			return Document{}, apperr.NewSerialization("parseDocument", err)
		}
		if o.ID != "" && ids[o.ID] {
			return Document{}, apperr.NewSerialization("parseDocument", fmt.Errorf("duplicate object id %q", o.ID))
		}
		ids[o.ID] = true
		o.Z = i
	}
	return doc, nil
}

// EncodeDocument serialises doc deterministically (map keys are sorted by encoding/json).
func EncodeDocument(doc Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, apperr.NewSerialization("encodeDocument", err)
	}
	return b, nil
}
