package memtools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/softdev/internal/metamemory"
	"github.com/HendryAvila/softdev/internal/softdev"
)

// ─── FindConceptTool ─────────────────────────────────────────────────────────

// FindConceptTool handles the softdev_find_concept MCP tool.
type FindConceptTool struct {
	svc *softdev.Service
}

// NewFindConceptTool creates a FindConceptTool.
func NewFindConceptTool(svc *softdev.Service) *FindConceptTool {
	return &FindConceptTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_find_concept.
func (t *FindConceptTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_find_concept",
		mcp.WithDescription(
			"Find concepts (abstract areas of the codebase such as 'memory management') whose name or purpose "+
				"contains the query, case-insensitively. An empty query lists every concept.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
		mcp.WithString("query",
			mcp.Description("Text to look for in concept names and purposes"),
		),
	)
}

// Handle processes the softdev_find_concept tool call.
func (t *FindConceptTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	if projectID == "" {
		return mcp.NewToolResultError("'project_id' is required"), nil
	}
	nodes, err := t.svc.FindConcept(ctx, projectID, req.GetString("query", ""))
	if err != nil {
		return failure("concept search", err), nil
	}
	return nodesResult(nodes)
}

// ─── FindCodeTool ────────────────────────────────────────────────────────────

// FindCodeTool handles the softdev_find_code MCP tool.
type FindCodeTool struct {
	svc *softdev.Service
}

// NewFindCodeTool creates a FindCodeTool.
func NewFindCodeTool(svc *softdev.Service) *FindCodeTool {
	return &FindCodeTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_find_code.
func (t *FindCodeTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_find_code",
		mcp.WithDescription(
			"Find functions and structs whose name or signature contains the query, case-insensitively. "+
				"Returns node IDs to use with softdev_impact, softdev_get_node and softdev_link_to_concept.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to look for in names and signatures"),
		),
		mcp.WithString("types",
			mcp.Description("Comma-separated node types to search (default: 'function, struct'). Valid: "+
				strings.Join(metamemory.TypeValues(), ", ")),
		),
	)
}

// Handle processes the softdev_find_code tool call.
func (t *FindCodeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	query := req.GetString("query", "")
	if projectID == "" || query == "" {
		return mcp.NewToolResultError("'project_id' and 'query' are required"), nil
	}
	var types []metamemory.Type
	for _, s := range listArg(req, "types") {
		typ, err := metamemory.ParseType(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		types = append(types, typ)
	}

	nodes, err := t.svc.FindCode(ctx, projectID, query, types...)
	if err != nil {
		return failure("code search", err), nil
	}
	return nodesResult(nodes)
}

// ─── SearchTool ──────────────────────────────────────────────────────────────

// SearchTool handles the softdev_search MCP tool.
type SearchTool struct {
	svc *softdev.Service
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(svc *softdev.Service) *SearchTool {
	return &SearchTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_search",
		mcp.WithDescription(
			"Ranked full-text search over the names, purposes and typical tasks of every node, concepts and code alike. "+
				"Use it for natural-language questions such as 'where are buffers freed'.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search words"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
	)
}

// Handle processes the softdev_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	query := req.GetString("query", "")
	if projectID == "" || query == "" {
		return mcp.NewToolResultError("'project_id' and 'query' are required"), nil
	}
	nodes, err := t.svc.Search(ctx, projectID, query, intArg(req, "limit", 0))
	if err != nil {
		return failure("search", err), nil
	}
	return nodesResult(nodes)
}

// ─── WhatImplementsTool ──────────────────────────────────────────────────────

// WhatImplementsTool handles the softdev_what_implements MCP tool.
type WhatImplementsTool struct {
	svc *softdev.Service
}

// NewWhatImplementsTool creates a WhatImplementsTool.
func NewWhatImplementsTool(svc *softdev.Service) *WhatImplementsTool {
	return &WhatImplementsTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_what_implements.
func (t *WhatImplementsTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_what_implements",
		mcp.WithDescription("List the directories, files and code elements that implement a concept."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
		mcp.WithString("concept_id",
			mcp.Required(),
			mcp.Description("Concept node ID (e.g. 'concept:memory')"),
		),
	)
}

// Handle processes the softdev_what_implements tool call.
func (t *WhatImplementsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	conceptID := req.GetString("concept_id", "")
	if projectID == "" || conceptID == "" {
		return mcp.NewToolResultError("'project_id' and 'concept_id' are required"), nil
	}
	nodes, err := t.svc.WhatImplements(ctx, projectID, conceptID)
	if err != nil {
		return failure("what_implements", err), nil
	}
	return nodesResult(nodes)
}

// ─── ImpactTool ──────────────────────────────────────────────────────────────

// ImpactTool handles the softdev_impact MCP tool.
type ImpactTool struct {
	svc *softdev.Service
}

// NewImpactTool creates an ImpactTool.
func NewImpactTool(svc *softdev.Service) *ImpactTool {
	return &ImpactTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_impact.
func (t *ImpactTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_impact",
		mcp.WithDescription(
			"Estimate what breaks if a function or struct changes: its direct callers (and, for structs, "+
				"the functions using it) with the files they live in. Only one hop is followed.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
		mcp.WithString("node_id",
			mcp.Required(),
			mcp.Description("Node ID (e.g. 'func:parse_header', 'struct:config')"),
		),
	)
}

// Handle processes the softdev_impact tool call.
func (t *ImpactTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	nodeID := req.GetString("node_id", "")
	if projectID == "" || nodeID == "" {
		return mcp.NewToolResultError("'project_id' and 'node_id' are required"), nil
	}
	res, err := t.svc.Impact(ctx, projectID, nodeID)
	if err != nil {
		return failure("impact analysis", err), nil
	}
	return jsonResult(res)
}

// ─── GetNodeTool ─────────────────────────────────────────────────────────────

// GetNodeTool handles the softdev_get_node MCP tool.
type GetNodeTool struct {
	svc *softdev.Service
}

// NewGetNodeTool creates a GetNodeTool.
func NewGetNodeTool(svc *softdev.Service) *GetNodeTool {
	return &GetNodeTool{svc: svc}
}

// Definition returns the MCP tool definition for softdev_get_node.
func (t *GetNodeTool) Definition() mcp.Tool {
	return mcp.NewTool("softdev_get_node",
		mcp.WithDescription(
			"Get one node with everything known about it: location, signature, parameters, fields, "+
				"typical tasks, curation notes and every link.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
		mcp.WithString("node_id",
			mcp.Required(),
			mcp.Description("Node ID"),
		),
	)
}

// Handle processes the softdev_get_node tool call.
func (t *GetNodeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	nodeID := req.GetString("node_id", "")
	if projectID == "" || nodeID == "" {
		return mcp.NewToolResultError("'project_id' and 'node_id' are required"), nil
	}
	n, err := t.svc.GetNode(ctx, projectID, nodeID)
	if err != nil {
		return failure("get node", err), nil
	}
	return jsonResult(n)
}
