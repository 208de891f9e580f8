package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Runemoro/knit/internal/errors"
	"github.com/Runemoro/knit/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// ShowRequest represents the arguments for mapping_show.
type ShowRequest struct {
	Class string `json:"class"`
}

// ListRequest represents the arguments for mapping_list.
type ListRequest struct {
	Pattern      string `json:"pattern,omitempty"`
	UnmappedOnly bool   `json:"unmapped_only,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// RenameRequest represents the arguments for mapping_rename.
type RenameRequest struct {
	ops.RefInput
	NewName string `json:"new_name"`
	DryRun  bool   `json:"dry_run,omitempty"`
}

// PackageRequest represents the arguments for mapping_package.
type PackageRequest struct {
	From string `json:"from"`
	To   string `json:"to,omitempty"`
}

// HistoryRequest represents the arguments for mapping_history.
type HistoryRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// CommentRequest represents the arguments for mapping_comment.
type CommentRequest struct {
	ops.RefInput
	Text string `json:"text,omitempty"`
}

// DescribeRequest represents the arguments for mapping_describe.
type DescribeRequest struct {
	Type string `json:"type"`
}

// MethodRequest represents the arguments for mapping_method.
type MethodRequest struct {
	Params      []string `json:"params,omitempty"`
	Return      string   `json:"return,omitempty"`
	Static      bool     `json:"static,omitempty"`
	Constructor bool     `json:"constructor,omitempty"`
}

// CheckRequest represents the arguments for mapping_check.
type CheckRequest struct {
	Dir string `json:"dir,omitempty"`
}

// ExportRequest represents the arguments for mapping_export.
type ExportRequest struct {
	Path      string `json:"path,omitempty"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// HandleShow handles the mapping_show tool call.
func (h *Handlers) HandleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ShowRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Show(h.env, ops.ShowInput{Class: input.Class})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the mapping_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.List(h.env, ops.ListInput{
		Pattern:      input.Pattern,
		UnmappedOnly: input.UnmappedOnly,
		Limit:        input.Limit,
		Offset:       input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRename handles the mapping_rename tool call.
func (h *Handlers) HandleRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RenameRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Rename(h.env, ops.RenameInput{
		Ref:     input.RefInput,
		NewName: input.NewName,
		DryRun:  input.DryRun,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePackage handles the mapping_package tool call.
func (h *Handlers) HandlePackage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PackageRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.RenamePackage(h.env, ops.RenamePackageInput{From: input.From, To: input.To})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleUndo handles the mapping_undo tool call.
func (h *Handlers) HandleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Undo(h.env)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the mapping_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.History(h.env, ops.HistoryInput{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleComment handles the mapping_comment tool call.
func (h *Handlers) HandleComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CommentRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Comment(h.env, ops.CommentInput{
		Ref:   input.RefInput,
		Lines: ops.SplitComment(input.Text),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDescribe handles the mapping_describe tool call.
func (h *Handlers) HandleDescribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DescribeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Describe(h.env, ops.DescribeInput{Type: input.Type})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleMethod handles the mapping_method tool call.
func (h *Handlers) HandleMethod(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MethodRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Method(h.env, ops.MethodInput{
		Params:      input.Params,
		Return:      input.Return,
		Static:      input.Static,
		Constructor: input.Constructor,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCheck handles the mapping_check tool call.
func (h *Handlers) HandleCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CheckRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Check(ctx, h.env, ops.CheckInput{Dir: input.Dir})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the mapping_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Export(ctx, h.env, ops.ExportInput{
		Path:      input.Path,
		Overwrite: input.Overwrite,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var knitErr *errors.KnitError
	if stderrors.As(err, &knitErr) {
		message := knitErr.Message
		// keep wrapper context such as "renamed[2]: ..." on non-internal errors
		if err != error(knitErr) && knitErr.Code != errors.ErrInternal {
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    knitErr.Code,
			"message": message,
			"status":  knitErr.Status,
		}
		if knitErr.Code != errors.ErrInternal && knitErr.Details != nil {
			errorObj["details"] = knitErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
