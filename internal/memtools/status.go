package memtools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/softdev/internal/softdev"
)

// ─── StatusTool ──────────────────────────────────────────────────────────────

// StatusTool handles the softdev_status MCP tool.
type StatusTool struct {
	svc *softdev.Service
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(svc *softdev.Service) *StatusTool {
	return &StatusTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_status",
		mcp.WithDescription(
			"Show node counts for a project and whether its graph is stale. "+
				"When needs_refresh is true, call softdev_refresh before trusting query results.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
	)
}

// Handle processes the softdev_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	if projectID == "" {
		return mcp.NewToolResultError("'project_id' is required"), nil
	}
	st, err := t.svc.Status(ctx, projectID)
	if err != nil {
		return failure("status", err), nil
	}
	return jsonResult(st)
}

// ─── ListProjectsTool ────────────────────────────────────────────────────────

// ListProjectsTool handles the softdev_list_projects MCP tool.
type ListProjectsTool struct {
	svc *softdev.Service
}

// NewListProjectsTool creates a ListProjectsTool.
func NewListProjectsTool(svc *softdev.Service) *ListProjectsTool {
	return &ListProjectsTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_list_projects.
func (t *ListProjectsTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_list_projects",
		mcp.WithDescription("List every project that has a knowledge graph."),
	)
}

type projectList struct {
	Projects []softdev.ProjectInfo `json:"projects"`
	Count    int                   `json:"count"`
}

// Handle processes the softdev_list_projects tool call.
func (t *ListProjectsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := t.svc.ListProjects()
	if err != nil {
		return failure("list projects", err), nil
	}
	if projects == nil {
		projects = []softdev.ProjectInfo{}
	}
	return jsonResult(projectList{Projects: projects, Count: len(projects)})
}
