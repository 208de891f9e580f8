package mcp

import (
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Runemoro/knit/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"mapping_show": {
		def:     showToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleShow },
	},
	"mapping_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"mapping_rename": {
		def:     renameToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRename },
	},
	"mapping_package": {
		def:     packageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePackage },
	},
	"mapping_undo": {
		def:     undoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUndo },
	},
	"mapping_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"mapping_comment": {
		def:     commentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleComment },
	},
	"mapping_describe": {
		def:     describeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDescribe },
	},
	"mapping_method": {
		def:     methodToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMethod },
	},
	"mapping_check": {
		def:     checkToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCheck },
	},
	"mapping_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the mapping tools registered.
// Tools listed in env.Config.DisabledTools are excluded from registration.
func NewServer(env *ops.Env, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"knit",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(env)

	disabled := make(map[string]bool)
	if env.Config != nil {
		for _, name := range ValidateDisabledTools(env.Config.DisabledTools) {
			log.Printf("warning: unknown tool in disabled_tools: %s", name)
		}
		for _, name := range env.Config.DisabledTools {
			disabled[name] = true
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(env *ops.Env, version string) error {
	s := NewServer(env, version)
	return server.ServeStdio(s)
}
