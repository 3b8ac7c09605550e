/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package mcp exposes an editing session as MCP tools over stdio.
package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = map[string]toolEntry{
	"design_add_object": {
		def:     addObjectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAddObject },
	},
	"design_remove_object": {
		def:     removeObjectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRemoveObject },
	},
	"design_list_objects": {
		def:     listObjectsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListObjects },
	},
	"design_select": {
		def:     selectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSelect },
	},
	"design_select_at": {
		def:     selectAtToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSelectAt },
	},
	"design_set_tool": {
		def:     setToolToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetTool },
	},
	"design_get_properties": {
		def:     getPropertiesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetProperties },
	},
	"design_set_property": {
		def:     setPropertyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetProperty },
	},
	"design_reorder": {
		def:     reorderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReorder },
	},
	"design_set_workspace": {
		def:     setWorkspaceToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetWorkspace },
	},
	"design_undo": {
		def:     undoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUndo },
	},
	"design_redo": {
		def:     redoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRedo },
	},
	"design_get_document": {
		def:     getDocumentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetDocument },
	},
	"design_load_document": {
		def:     loadDocumentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLoadDocument },
	},
	"design_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"design_save": {
		def:     saveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSave },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownTools returns the names not in the registry.
func UnknownTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the design tools registered, except those in disabled.
func NewServer(sess *Session, version string, disabled ...string) *server.MCPServer {
	s := server.NewMCPServer(
		"designeditor",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(sess)
	skip := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		skip[name] = true
	}
	for name, entry := range toolRegistry {
		if skip[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves sess over stdio until the client disconnects.
func Run(sess *Session, version string, disabled ...string) error {
	return server.ServeStdio(NewServer(sess, version, disabled...))
}
