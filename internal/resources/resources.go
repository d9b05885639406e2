// Package resources implements MCP resource handlers for the knowledge graph.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (softdev://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/softdev/internal/softdev"
)

// ProjectsURI addresses the list of indexed projects.
const ProjectsURI = "softdev://projects"

// ProjectLister is the part of softdev.Service the handler reads.
type ProjectLister interface {
	ListProjects() ([]softdev.ProjectInfo, error)
}

// Handler manages softdev resource endpoints.
type Handler struct {
	projects ProjectLister
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(projects ProjectLister) *Handler {
	return &Handler{projects: projects}
}

// ProjectsResource returns the MCP resource definition for the project list.
func (h *Handler) ProjectsResource() mcp.Resource {
	return mcp.NewResource(
		ProjectsURI,
		"Indexed Projects",
		mcp.WithResourceDescription("Every project with a knowledge graph, with its database path and last update"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleProjects returns the project list as JSON.
func (h *Handler) HandleProjects(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	projects, err := h.projects.ListProjects()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	if projects == nil {
		projects = []softdev.ProjectInfo{}
	}

	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling projects: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
