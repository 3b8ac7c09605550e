/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"designeditor/internal/editor"
	apperr "designeditor/internal/errors"
	"designeditor/internal/export"
	"designeditor/internal/pipeline"
	"designeditor/internal/scene"
	"designeditor/internal/selection"
	"designeditor/internal/vector"
)

// Session is the editing session the tools drive.
type Session struct {
	Editor *editor.Editor
	// Pipeline is optional; without it design_save fails.
	Pipeline *pipeline.Pipeline
	Loader   export.ImageLoader
	Fonts    *export.FontLibrary
	OutDir   string
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	s *Session
}

func NewHandlers(s *Session) *Handlers { return &Handlers{s: s} }

// Request types for each tool

type AddObjectRequest struct {
	Type   string   `json:"type"`
	Text   *string  `json:"text,omitempty"`
	Src    *string  `json:"src,omitempty"`
	Left   *float64 `json:"left,omitempty"`
	Top    *float64 `json:"top,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	Fill   *string  `json:"fill,omitempty"`
}

type IDRequest struct {
	ID string `json:"id"`
}

type SelectRequest struct {
	IDs []string `json:"ids"`
}

type PointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ToolRequest struct {
	Tool string `json:"tool"`
}

type SetPropertyRequest struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

type ReorderRequest struct {
	ID        string `json:"id"`
	Direction string `json:"direction"`
}

type WorkspaceRequest struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background,omitempty"`
}

type LoadDocumentRequest struct {
	Document string `json:"document"`
}

type ExportRequest struct {
	Format  string  `json:"format"`
	Scale   float64 `json:"scale,omitempty"`
	Quality int     `json:"quality,omitempty"`
	Path    string  `json:"path,omitempty"`
}

// Responses

type ObjectSummary struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Z       int     `json:"z"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Visible bool    `json:"visible"`
}

type Properties struct {
	Selected        []string  `json:"selected"`
	Tool            string    `json:"tool"`
	Fill            string    `json:"fill"`
	Stroke          string    `json:"stroke"`
	StrokeWidth     float64   `json:"strokeWidth"`
	StrokeDashArray []float64 `json:"strokeDashArray"`
	Opacity         float64   `json:"opacity"`
	FontFamily      string    `json:"fontFamily"`
	FontSize        float64   `json:"fontSize"`
	FontWeight      int       `json:"fontWeight"`
	FontStyle       string    `json:"fontStyle"`
	Underline       bool      `json:"underline"`
	Linethrough     bool      `json:"linethrough"`
	TextAlign       string    `json:"textAlign"`
	Filter          string    `json:"filter"`
}

type HistoryState struct {
	Changed bool `json:"changed"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

var kindAliases = map[string]scene.Kind{
	"rect": scene.KindRect, "rectangle": scene.KindRect,
	"ellipse": scene.KindEllipse, "circle": scene.KindEllipse,
	"triangle": scene.KindTriangle,
	"polygon":  scene.KindPolygon, "diamond": scene.KindPolygon,
	"text":  scene.KindText,
	"image": scene.KindImage,
}

var directions = map[string]scene.Direction{
	"forward": scene.Forward, "backward": scene.Backward, "front": scene.ToFront, "back": scene.ToBack,
}

// HandleAddObject handles the design_add_object tool call.
func (h *Handlers) HandleAddObject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[AddObjectRequest](req)
	if err != nil {
		return errorResult(apperr.NewValidation("addObject", err.Error(), nil)), nil
	}
	kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(in.Type))]
	if !ok {
		return errorResult(apperr.Validationf("addObject", "unknown object type %q", in.Type)), nil
	}
	id, err := h.s.Editor.AddObject(kind, func(o *scene.Object) {
		if in.Text != nil && o.Text != nil {
			o.Text.Text = *in.Text
		}
		if in.Src != nil && o.Image != nil {
			o.Image.Src = *in.Src
		}
		if in.Left != nil {
			o.Left = *in.Left
		}
		if in.Top != nil {
			o.Top = *in.Top
		}
		if in.Width != nil {
			o.Width = *in.Width
		}
		if in.Height != nil {
			o.Height = *in.Height
		}
		if in.Fill != nil {
			o.Fill = *in.Fill
		}
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"id": id, "type": string(kind)})
}

// HandleRemoveObject handles the design_remove_object tool call.
func (h *Handlers) HandleRemoveObject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(apperr.NewValidation("removeObject", err.Error(), nil)), nil
	}
	return successResult(map[string]any{"removed": h.s.Editor.RemoveObject(in.ID)})
}

// HandleListObjects handles the design_list_objects tool call.
func (h *Handlers) HandleListObjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	objs := h.s.Editor.Objects()
	out := make([]ObjectSummary, 0, len(objs))
	for _, o := range objs {
		out = append(out, ObjectSummary{
			ID: o.ID, Type: string(o.Kind), Z: o.Z,
			Left: o.Left, Top: o.Top, Width: o.Width, Height: o.Height, Visible: o.Visible,
		})
	}
	return successResult(map[string]any{"workspace": h.s.Editor.Workspace(), "objects": out})
}

// HandleSelect handles the design_select tool call.
func (h *Handlers) HandleSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[SelectRequest](req)
	if err != nil {
		return errorResult(apperr.NewValidation("select", err.Error(), nil)), nil
	}
	if len(in.IDs) == 0 {
		h.s.Editor.ClearSelection()
	} else {
		h.s.Editor.Select(in.IDs...)
	}
	return successResult(map[string]any{"selected": h.s.Editor.Selected(), "tool": h.s.Editor.ActiveTool()})
}

// HandleSelectAt handles the design_select_at tool call.
func (h *Handlers) HandleSelectAt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[PointRequest](req)
	if err != nil {
		return errorResult(apperr.NewValidation("selectAt", err.Error(), nil)), nil
	}
	id, ok := h.s.Editor.SelectAt(vector.Pt{X: in.X, Y: in.Y})
	return successResult(map[string]any{"hit": ok, "id": id})
}

// HandleSetTool handles the design_set_tool tool call.
func (h *Handlers) HandleSetTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[ToolRequest](req)
	if err != nil {
		return errorResult(apperr.NewValidation("setActiveTool", err.Error(), nil)), nil
	}
	if err := h.s.Editor.SetActiveTool(selection.Tool(in.Tool)); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"tool": h.s.Editor.ActiveTool()})
}

// HandleGetProperties handles the design_get_properties tool call.
func (h *Handlers) HandleGetProperties(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.properties())
}

func (h *Handlers) properties() Properties {
	e := h.s.Editor
	return Properties{
		Selected: e.Selected(), Tool: string(e.ActiveTool()),
		Fill: e.FillColor(), Stroke: e.StrokeColor(), StrokeWidth: e.StrokeWidth(),
		StrokeDashArray: e.StrokeDashArray(), Opacity: e.Opacity(),
		FontFamily: e.FontFamily(), FontSize: e.FontSize(), FontWeight: e.FontWeight(), FontStyle: e.FontStyle(),
		Underline: e.FontUnderline(), Linethrough: e.FontLinethrough(), TextAlign: e.TextAlign(),
		Filter: e.ImageFilter(),
	}
}

// HandleSetProperty handles the design_set_property tool call.
func (h *Handlers) HandleSetProperty(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[SetPropertyRequest](req)
	if err != nil {
		return errorResult(apperr.NewValidation("setProperty", err.Error(), nil)), nil
	}
	set, ok := propertySetters[in.Property]
	if !ok {
		return errorResult(apperr.Validationf("setProperty", "unknown property %q", in.Property)), nil
	}
	if err := set(h.s.Editor, in.Value); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.properties())
}

// HandleReorder handles the design_reorder tool call.
func (h *Handlers) HandleReorder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[ReorderRequest](req)
	if err != nil {
		return errorResult(apperr.NewValidation("reorder", err.Error(), nil)), nil
	}
	dir, ok := directions[in.Direction]
	if !ok {
		return errorResult(apperr.Validationf("reorder", "unknown direction %q", in.Direction)), nil
	}
	if _, found := h.s.Editor.Object(in.ID); !found {
		return errorResult(apperr.NewNotFound("reorder", in.ID)), nil
	}
	return successResult(map[string]any{"moved": h.s.Editor.Reorder(in.ID, dir)})
}

// HandleSetWorkspace handles the design_set_workspace tool call.
func (h *Handlers) HandleSetWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[WorkspaceRequest](req)
	if err != nil {
		return errorResult(apperr.NewValidation("setWorkspace", err.Error(), nil)), nil
	}
	bg := in.Background
	if bg == "" {
		bg = h.s.Editor.Workspace().Background
	}
	if err := h.s.Editor.SetWorkspace(in.Width, in.Height, bg); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.s.Editor.Workspace())
}

// HandleUndo handles the design_undo tool call.
func (h *Handlers) HandleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.step(h.s.Editor.Undo)
}

// HandleRedo handles the design_redo tool call.
func (h *Handlers) HandleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.step(h.s.Editor.Redo)
}

func (h *Handlers) step(fn func() (bool, error)) (*mcp.CallToolResult, error) {
	changed, err := fn()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(HistoryState{Changed: changed, CanUndo: h.s.Editor.CanUndo(), CanRedo: h.s.Editor.CanRedo()})
}

// HandleGetDocument handles the design_get_document tool call.
func (h *Handlers) HandleGetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := h.s.Editor.ToJSON()
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// HandleLoadDocument handles the design_load_document tool call.
func (h *Handlers) HandleLoadDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[LoadDocumentRequest](req)
	if err != nil {
		return errorResult(apperr.NewValidation("loadJSON", err.Error(), nil)), nil
	}
	if err := h.s.Editor.LoadJSON([]byte(in.Document)); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"objects": len(h.s.Editor.Objects()), "workspace": h.s.Editor.Workspace()})
}

// HandleExport handles the design_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(apperr.NewValidation("export", err.Error(), nil)), nil
	}
	format := strings.ToLower(in.Format)
	if format == "jpg" {
		format = export.KindJPEG
	}
	b, mime, err := export.Encode(ctx, h.s.Editor.Document(), format, export.EncodeOptions{
		Scale: in.Scale, Quality: in.Quality, Loader: h.s.Loader, Fonts: h.s.Fonts,
	})
	if err != nil {
		return errorResult(err), nil
	}
	if in.Path == "" {
		out := map[string]any{"mime": mime, "size": len(b)}
		if format == export.KindSVG {
			out["svg"] = string(b)
		} else {
			out["dataUrl"] = export.DataURL(mime, b)
		}
		return successResult(out)
	}
	path := in.Path
	if !filepath.IsAbs(path) && h.s.OutDir != "" {
		path = filepath.Join(h.s.OutDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errorResult(apperr.NewInternal("export", err)), nil
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errorResult(apperr.NewInternal("export", err)), nil
	}
	return successResult(map[string]any{"mime": mime, "size": len(b), "path": path})
}

// HandleSave handles the design_save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.s.Pipeline == nil {
		return errorResult(apperr.NewInternal("save", errors.New("no save pipeline configured"))), nil
	}
	h.s.Editor.Flush()
	blob, err := h.s.Editor.ToJSON()
	if err != nil {
		return errorResult(err), nil
	}
	pl, err := h.s.Pipeline.Save(ctx, blob)
	if err != nil {
		return errorResult(err), nil
	}
	out := map[string]any{"kind": pl.Kind, "uploaded": pl.Uploaded, "key": pl.Key, "width": pl.Width, "height": pl.Height}
	if pl.Uploaded {
		out["url"] = pl.Preview
	}
	if pl.Warning != nil {
		out["warning"] = pl.Warning.Error()
	}
	return successResult(out)
}

// errorResult renders err as a tool error. Details of internal errors are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	errorObj := map[string]any{"code": string(apperr.ErrInternal), "message": "an internal error occurred"}
	var ee *apperr.EditorError
	if errors.As(err, &ee) {
		errorObj["code"] = string(ee.Code)
		errorObj["message"] = ee.Message
		errorObj["op"] = ee.Op
		if ee.Code != apperr.ErrInternal && ee.Details != nil {
			errorObj["details"] = ee.Details
		}
	} else if err != nil {
		errorObj["message"] = err.Error()
	}
	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

// propertySetters parse a JSON (or bare string) value and apply it to the selection.
var propertySetters = map[string]func(e *editor.Editor, raw string) error{
	"fill":            str((*editor.Editor).ChangeFillColor),
	"stroke":          str((*editor.Editor).ChangeStrokeColor),
	"strokeWidth":     typed((*editor.Editor).ChangeStrokeWidth),
	"strokeDashArray": typed((*editor.Editor).ChangeStrokeDashArray),
	"opacity":         typed((*editor.Editor).ChangeOpacity),
	"fontFamily":      str((*editor.Editor).ChangeFontFamily),
	"fontSize":        typed((*editor.Editor).ChangeFontSize),
	"fontWeight":      typed((*editor.Editor).ChangeFontWeight),
	"fontStyle":       str((*editor.Editor).ChangeFontStyle),
	"underline":       typed((*editor.Editor).ChangeFontUnderline),
	"linethrough":     typed((*editor.Editor).ChangeFontLinethrough),
	"textAlign":       str((*editor.Editor).ChangeTextAlign),
	"filter":          str((*editor.Editor).ChangeImageFilter),
}

var propertyNames = []string{
	"fill", "stroke", "strokeWidth", "strokeDashArray", "opacity", "fontFamily", "fontSize",
	"fontWeight", "fontStyle", "underline", "linethrough", "textAlign", "filter",
}

func typed[T any](set func(*editor.Editor, T) error) func(*editor.Editor, string) error {
	return func(e *editor.Editor, raw string) error {
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return apperr.NewValidation("setProperty", fmt.Sprintf("bad value %q: %v", raw, err), nil)
		}
		return set(e, v)
	}
}

func str(set func(*editor.Editor, string) error) func(*editor.Editor, string) error {
	return func(e *editor.Editor, raw string) error {
		var v string
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		return set(e, v)
	}
}
