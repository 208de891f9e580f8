package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// refOptions are the parameters shared by every tool that addresses a
// single entity.
func refOptions(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append([]mcp.ToolOption{
		mcp.WithString("kind",
			mcp.Enum("class", "field", "method", "local"),
			mcp.Description("Kind of entity (default: class)"),
		),
		mcp.WithString("class",
			mcp.Required(),
			mcp.Description("Current name of the root class, e.g. net/world/Block. A $ suffix addresses nested classes"),
		),
		mcp.WithArray("nested",
			mcp.WithStringItems(),
			mcp.Description("Current simple names of nested classes, outermost first"),
		),
		mcp.WithString("member",
			mcp.Description("Current name of the field or method"),
		),
		mcp.WithString("descriptor",
			mcp.Description("Obfuscated descriptor of the field or method, e.g. (La;I)V"),
		),
		mcp.WithString("type",
			mcp.Description("Field type in current names, e.g. int[] or net/world/Block. Used when descriptor is empty"),
		),
		mcp.WithArray("params",
			mcp.WithStringItems(),
			mcp.Description("Method parameter types in current names. Used when descriptor is empty"),
		),
		mcp.WithString("return",
			mcp.Description("Method return type in current names (default: void)"),
		),
		mcp.WithNumber("index",
			mcp.Description("Local variable slot"),
		),
		mcp.WithNumber("param",
			mcp.Description("Zero-based parameter position, converted to a local variable slot"),
		),
		mcp.WithBoolean("static",
			mcp.Description("Method is static, so slot 0 is not this (default: false)"),
		),
	}, opts...)
}

var showToolDef = mcp.NewTool("mapping_show",
	mcp.WithDescription("Show the mapping of a class with its fields, methods, locals, comments and nested classes."),
	mcp.WithString("class",
		mcp.Required(),
		mcp.Description("Current name of the root class, dots or slashes"),
	),
)

var listToolDef = mcp.NewTool("mapping_list",
	mcp.WithDescription("List mapped root classes, sorted by current name."),
	mcp.WithString("pattern",
		mcp.Description("Glob over current or obfuscated names, e.g. net/**/class_*"),
	),
	mcp.WithBoolean("unmapped_only",
		mcp.Description("Only classes whose current name still looks obfuscated"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum results (default: 100, max: 500)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Pagination offset"),
	),
)

var renameToolDef = mcp.NewTool("mapping_rename",
	refOptions(
		mcp.WithDescription("Rename a class, field, method or local variable and journal the change."),
		mcp.WithString("new_name",
			mcp.Required(),
			mcp.Description("New name. For root classes the fully qualified name"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Only return the unified diff of the mapping file"),
		),
	)...,
)

var packageToolDef = mcp.NewTool("mapping_package",
	mcp.WithDescription("Move every root class of a package to another package. Undo reverts the whole move."),
	mcp.WithString("from",
		mcp.Required(),
		mcp.Description("Current package, e.g. net/world"),
	),
	mcp.WithString("to",
		mcp.Description("Target package (empty: default package)"),
	),
)

var undoToolDef = mcp.NewTool("mapping_undo",
	mcp.WithDescription("Revert the most recent rename or package move that is still active."),
)

var historyToolDef = mcp.NewTool("mapping_history",
	mcp.WithDescription("List journaled renames, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum results (default: history_limit, max: 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Pagination offset"),
	),
)

var commentToolDef = mcp.NewTool("mapping_comment",
	refOptions(
		mcp.WithDescription("Replace the documentation comment of an entity. Empty text clears it."),
		mcp.WithString("text",
			mcp.Description("Comment text, one line per line of documentation"),
		),
	)...,
)

var describeToolDef = mcp.NewTool("mapping_describe",
	mcp.WithDescription("Compute the obfuscated descriptor of a type given in current names."),
	mcp.WithString("type",
		mcp.Required(),
		mcp.Description("Type expression, e.g. int, long[][], net/world/Block"),
	),
)

var methodToolDef = mcp.NewTool("mapping_method",
	mcp.WithDescription("Compute the obfuscated descriptor of a method signature and the local variable slot of each parameter."),
	mcp.WithArray("params",
		mcp.WithStringItems(),
		mcp.Description("Parameter types in current names"),
	),
	mcp.WithString("return",
		mcp.Description("Return type in current names (default: void)"),
	),
	mcp.WithBoolean("static",
		mcp.Description("Method is static"),
	),
	mcp.WithBoolean("constructor",
		mcp.Description("Method is a constructor (void, instance)"),
	),
)

var checkToolDef = mcp.NewTool("mapping_check",
	mcp.WithDescription("Parse every mapping file below a directory and report malformed or misplaced files."),
	mcp.WithString("dir",
		mcp.Description("Directory to check (default: the mapping directory)"),
	),
)

var exportToolDef = mcp.NewTool("mapping_export",
	mcp.WithDescription("Write a copy of all mapping files into another directory."),
	mcp.WithString("path",
		mcp.Description("Target directory (default: ~/.knit/exports/mappings-<timestamp>)"),
	),
	mcp.WithBoolean("overwrite",
		mcp.Description("Replace an existing directory that holds only mapping files"),
	),
)
