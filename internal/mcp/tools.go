/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package mcp

import "github.com/mark3labs/mcp-go/mcp"

func boolPtr(b bool) *bool { return &b }

var addObjectToolDef = mcp.NewTool("design_add_object",
	mcp.WithDescription("Add a shape, text or image to the design and select it"),
	mcp.WithString("type", mcp.Description("Object type"), mcp.Required(),
		mcp.Enum("rect", "ellipse", "circle", "triangle", "polygon", "diamond", "text", "image")),
	mcp.WithString("text", mcp.Description("Text content (text objects)")),
	mcp.WithString("src", mcp.Description("Image URL, file path or data URL (image objects)")),
	mcp.WithNumber("left", mcp.Description("X position in workspace pixels")),
	mcp.WithNumber("top", mcp.Description("Y position in workspace pixels")),
	mcp.WithNumber("width", mcp.Description("Width")),
	mcp.WithNumber("height", mcp.Description("Height")),
	mcp.WithString("fill", mcp.Description("Fill color hex, e.g. #3b82f6")),
)

var removeObjectToolDef = mcp.NewTool("design_remove_object",
	mcp.WithDescription("Remove an object by id. Unknown ids are ignored."),
	mcp.WithString("id", mcp.Description("Object id"), mcp.Required()),
	mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
)

var listObjectsToolDef = mcp.NewTool("design_list_objects",
	mcp.WithDescription("List objects bottom to top with their ids, types and positions"),
	mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
)

var selectToolDef = mcp.NewTool("design_select",
	mcp.WithDescription("Replace the selection. An empty list clears it."),
	mcp.WithArray("ids", mcp.Description("Object ids; the first is the primary"), mcp.WithStringItems()),
)

var selectAtToolDef = mcp.NewTool("design_select_at",
	mcp.WithDescription("Select the top-most selectable object under a workspace point"),
	mcp.WithNumber("x", mcp.Required()),
	mcp.WithNumber("y", mcp.Required()),
)

var setToolToolDef = mcp.NewTool("design_set_tool",
	mcp.WithDescription("Activate an editing tool; activating the current tool returns to select"),
	mcp.WithString("tool", mcp.Description("Tool name, e.g. select, draw, fill, font"), mcp.Required()),
)

var getPropertiesToolDef = mcp.NewTool("design_get_properties",
	mcp.WithDescription("Read the active property values of the primary selected object"),
	mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
)

var setPropertyToolDef = mcp.NewTool("design_set_property",
	mcp.WithDescription("Change one property on every selected object as a single undo step"),
	mcp.WithString("property", mcp.Required(), mcp.Enum(propertyNames...)),
	mcp.WithString("value", mcp.Description("New value as JSON: \"#ff0000\", 2, true, [5,5]"), mcp.Required()),
)

var reorderToolDef = mcp.NewTool("design_reorder",
	mcp.WithDescription("Move an object in the stacking order"),
	mcp.WithString("id", mcp.Required()),
	mcp.WithString("direction", mcp.Required(), mcp.Enum("forward", "backward", "front", "back")),
)

var setWorkspaceToolDef = mcp.NewTool("design_set_workspace",
	mcp.WithDescription("Resize the export frame and set its background"),
	mcp.WithNumber("width", mcp.Required()),
	mcp.WithNumber("height", mcp.Required()),
	mcp.WithString("background", mcp.Description("Background color hex")),
)

var undoToolDef = mcp.NewTool("design_undo", mcp.WithDescription("Undo the last change"))

var redoToolDef = mcp.NewTool("design_redo", mcp.WithDescription("Redo the last undone change"))

var getDocumentToolDef = mcp.NewTool("design_get_document",
	mcp.WithDescription("Return the design as a versioned JSON document"),
	mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
)

var loadDocumentToolDef = mcp.NewTool("design_load_document",
	mcp.WithDescription("Replace the design with a JSON document; clears history and selection"),
	mcp.WithString("document", mcp.Description("Document JSON"), mcp.Required()),
	mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
)

var exportToolDef = mcp.NewTool("design_export",
	mcp.WithDescription("Render the workspace as png, jpeg, svg or pdf, to a file or inline"),
	mcp.WithString("format", mcp.Required(), mcp.Enum("png", "jpeg", "jpg", "svg", "pdf")),
	mcp.WithNumber("scale", mcp.Description("Raster scale multiplier (default 1)")),
	mcp.WithNumber("quality", mcp.Description("JPEG quality 1-100")),
	mcp.WithString("path", mcp.Description("Output file; relative paths resolve against the session output dir")),
)

var saveToolDef = mcp.NewTool("design_save",
	mcp.WithDescription("Save the design; the first save of a session uploads a preview"),
)
