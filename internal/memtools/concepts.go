package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/softdev/internal/softdev"
)

// ─── AddConceptTool ──────────────────────────────────────────────────────────

// AddConceptTool handles the softdev_add_concept MCP tool.
type AddConceptTool struct {
	svc *softdev.Service
}

// NewAddConceptTool creates an AddConceptTool.
func NewAddConceptTool(svc *softdev.Service) *AddConceptTool {
	return &AddConceptTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_add_concept.
func (t *AddConceptTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_add_concept",
		mcp.WithDescription(
			"Add a concept: an abstract area of the codebase that code implements. "+
				"Link code to it afterwards with softdev_link_to_concept.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Concept name (e.g. 'Memory Management'); the ID becomes 'concept:<name>'"),
		),
		mcp.WithString("purpose",
			mcp.Description("What this part of the system is for"),
		),
		mcp.WithString("tasks",
			mcp.Description("Comma-separated typical tasks (e.g. 'fix a leak, add an allocator')"),
		),
		mcp.WithString("parent_id",
			mcp.Description("Existing concept this one refines (e.g. 'concept:Storage')"),
		),
	)
}

// Handle processes the softdev_add_concept tool call.
func (t *AddConceptTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	name := req.GetString("name", "")
	if projectID == "" || name == "" {
		return mcp.NewToolResultError("'project_id' and 'name' are required"), nil
	}

	n, err := t.svc.AddConcept(ctx, projectID, softdev.ConceptInput{
		Name:     name,
		Purpose:  req.GetString("purpose", ""),
		Tasks:    listArg(req, "tasks"),
		ParentID: req.GetString("parent_id", ""),
	})
	if err != nil {
		return failure("add concept", err), nil
	}
	return jsonResult(map[string]string{"status": "created", "id": n.ID})
}

// ─── LinkToConceptTool ───────────────────────────────────────────────────────

// LinkToConceptTool handles the softdev_link_to_concept MCP tool.
type LinkToConceptTool struct {
	svc *softdev.Service
}

// NewLinkToConceptTool creates a LinkToConceptTool.
func NewLinkToConceptTool(svc *softdev.Service) *LinkToConceptTool {
	return &LinkToConceptTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_link_to_concept.
func (t *LinkToConceptTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_link_to_concept",
		mcp.WithDescription(
			"Record that a function, struct, file or directory implements a concept. "+
				"Both directions are written together, so softdev_what_implements sees it at once.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
		mcp.WithString("code_id",
			mcp.Required(),
			mcp.Description("Code or component node ID (e.g. 'func:alloc_page')"),
		),
		mcp.WithString("concept_id",
			mcp.Required(),
			mcp.Description("Concept node ID (e.g. 'concept:Memory Management')"),
		),
	)
}

// Handle processes the softdev_link_to_concept tool call.
func (t *LinkToConceptTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	codeID := req.GetString("code_id", "")
	conceptID := req.GetString("concept_id", "")
	if projectID == "" || codeID == "" || conceptID == "" {
		return mcp.NewToolResultError("'project_id', 'code_id' and 'concept_id' are required"), nil
	}
	if err := t.svc.LinkToConcept(ctx, projectID, codeID, conceptID); err != nil {
		return failure("link", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Linked: %s implements %s", codeID, conceptID)), nil
}

// ─── CurateTool ──────────────────────────────────────────────────────────────

// CurateTool handles the softdev_curate MCP tool.
type CurateTool struct {
	svc *softdev.Service
}

// NewCurateTool creates a CurateTool.
func NewCurateTool(svc *softdev.Service) *CurateTool {
	return &CurateTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_curate.
func (t *CurateTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_curate",
		mcp.WithDescription(
			"Record what a node is for after reading its code. Sets the purpose and notes and marks the node "+
				"as curated so later sessions can trust it.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
		mcp.WithString("node_id",
			mcp.Required(),
			mcp.Description("Node ID"),
		),
		mcp.WithString("purpose",
			mcp.Description("One-sentence purpose (kept unchanged when empty)"),
		),
		mcp.WithString("notes",
			mcp.Description("Free-form notes: gotchas, invariants, history (kept unchanged when empty)"),
		),
	)
}

// Handle processes the softdev_curate tool call.
func (t *CurateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	nodeID := req.GetString("node_id", "")
	if projectID == "" || nodeID == "" {
		return mcp.NewToolResultError("'project_id' and 'node_id' are required"), nil
	}
	purpose := req.GetString("purpose", "")
	notes := req.GetString("notes", "")
	if purpose == "" && notes == "" {
		return mcp.NewToolResultError("provide 'purpose', 'notes' or both"), nil
	}

	n, err := t.svc.Curate(ctx, projectID, nodeID, purpose, notes)
	if err != nil {
		return failure("curate", err), nil
	}
	return jsonResult(n)
}
