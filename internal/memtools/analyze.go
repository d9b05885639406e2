package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/softdev/internal/softdev"
)

// ─── AnalyzeTool ─────────────────────────────────────────────────────────────

// AnalyzeTool handles the softdev_analyze_project MCP tool.
type AnalyzeTool struct {
	svc *softdev.Service
}

// NewAnalyzeTool creates an AnalyzeTool.
func NewAnalyzeTool(svc *softdev.Service) *AnalyzeTool {
	return &AnalyzeTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_analyze_project.
func (t *AnalyzeTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_analyze_project",
		mcp.WithDescription(
			"Scan a C codebase and build its knowledge graph: directories, files, functions, structs, "+
				"call and type relationships, and one concept per top-level directory. "+
				"Only files whose content changed since the last run are parsed again.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier (letters, digits, '.', '_' and '-')"),
		),
		mcp.WithString("root_path",
			mcp.Required(),
			mcp.Description("Absolute path of the project root directory"),
		),
		mcp.WithString("depth",
			mcp.Description("How much to build (default: full)"),
			mcp.Enum(softdev.DepthValues()...),
		),
		mcp.WithString("exclude_dirs",
			mcp.Description("Comma-separated directory names to skip in addition to the defaults"),
		),
		mcp.WithString("exclude_patterns",
			mcp.Description("Comma-separated glob patterns of files to skip (e.g. '*_test.c, gen/**')"),
		),
		mcp.WithBoolean("respect_gitignore",
			mcp.Description("Also skip paths ignored by the root .gitignore (default: false)"),
		),
	)
}

// Handle processes the softdev_analyze_project tool call.
func (t *AnalyzeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	rootPath := req.GetString("root_path", "")
	if projectID == "" || rootPath == "" {
		return mcp.NewToolResultError("'project_id' and 'root_path' are required"), nil
	}
	depth, err := softdev.ParseDepth(req.GetString("depth", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.svc.AnalyzeProject(ctx, softdev.ProjectConfig{
		ProjectID:        projectID,
		RootPath:         rootPath,
		Depth:            depth,
		ExcludeDirs:      listArg(req, "exclude_dirs"),
		ExcludePatterns:  listArg(req, "exclude_patterns"),
		RespectGitignore: boolArg(req, "respect_gitignore", false),
	})
	if err != nil {
		return failure("analysis", err), nil
	}
	return jsonResult(res)
}

// ─── RefreshTool ─────────────────────────────────────────────────────────────

// RefreshTool handles the softdev_refresh MCP tool.
type RefreshTool struct {
	svc *softdev.Service
}

// NewRefreshTool creates a RefreshTool.
func NewRefreshTool(svc *softdev.Service) *RefreshTool {
	return &RefreshTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_refresh.
func (t *RefreshTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_refresh",
		mcp.WithDescription(
			"Re-run the last analysis of a project with its stored settings. "+
				"Changed files are re-indexed and files deleted from disk are removed from the graph.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
	)
}

// refreshResult puts the refresh counts in front of the full
// analysis counts.
type refreshResult struct {
	ProjectID    string                  `json:"project_id"`
	FilesUpdated int                     `json:"files_updated"`
	FilesRemoved int                     `json:"files_removed"`
	Analysis     *softdev.AnalysisResult `json:"analysis"`
}

// Handle processes the softdev_refresh tool call.
func (t *RefreshTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	if projectID == "" {
		return mcp.NewToolResultError("'project_id' is required"), nil
	}

	res, err := t.svc.Refresh(ctx, projectID)
	if err != nil {
		return failure(fmt.Sprintf("refresh of %s", projectID), err), nil
	}
	return jsonResult(refreshResult{
		ProjectID:    projectID,
		FilesUpdated: res.FilesIndexed,
		FilesRemoved: res.FilesRemoved,
		Analysis:     res,
	})
}
