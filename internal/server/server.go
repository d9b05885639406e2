// Package server wires all MCP components and creates the server instance.
//
// This is the composition root for the MCP surface: it takes the graph
// service and injects it into the tools, prompts and resources.
// No business logic lives here, only wiring.
package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/softdev/internal/memtools"
	"github.com/HendryAvila/softdev/internal/prompts"
	"github.com/HendryAvila/softdev/internal/resources"
	"github.com/HendryAvila/softdev/internal/softdev"
)

// Version is set at build time via ldflags.
var Version = "dev"

// tool is what every memtools handler provides.
type tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered against svc. The caller owns svc and closes
// it on shutdown.
func New(svc *softdev.Service) *server.MCPServer {
	s := server.NewMCPServer(
		"softdev",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register graph tools ---

	for _, t := range []tool{
		memtools.NewAnalyzeTool(svc),
		memtools.NewRefreshTool(svc),
		memtools.NewStatusTool(svc),
		memtools.NewListProjectsTool(svc),
		memtools.NewFindConceptTool(svc),
		memtools.NewFindCodeTool(svc),
		memtools.NewSearchTool(svc),
		memtools.NewWhatImplementsTool(svc),
		memtools.NewImpactTool(svc),
		memtools.NewGetNodeTool(svc),
		memtools.NewAddConceptTool(svc),
		memtools.NewLinkToConceptTool(svc),
		memtools.NewCurateTool(svc),
	} {
		s.AddTool(t.Definition(), t.Handle)
	}

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	impactPrompt := prompts.NewImpactPrompt()
	s.AddPrompt(impactPrompt.Definition(), impactPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(svc)
	s.AddResource(resourceHandler.ProjectsResource(), resourceHandler.HandleProjects)

	return s
}

// serverInstructions returns the system instructions that tell the AI
// how to use the knowledge graph effectively.
func serverInstructions() string {
	return `You have access to softdev, a persistent knowledge graph of C codebases.

## WHAT IT HOLDS

Every analyzed project is a graph of nodes in three layers:
- Concepts: abstract areas ("memory management"), with purpose and typical tasks
- Components: directories and files
- Code: functions and structs, with signatures, parameters, fields and locations

Nodes are linked: calls / called_by, uses_types / used_by, includes,
implements / implemented_by, parent_concept / child_concept, related.
Node IDs look like func:name, struct:name, file:src/x.c, dir:src, concept:Name.

## WHEN TO USE IT

- Before reading a large codebase: softdev_analyze_project, then softdev_find_concept
- Before changing a function or struct: softdev_impact lists the direct callers and their files
- To answer "where is X handled": softdev_search, then softdev_get_node
- At the start of a session: softdev_list_projects and softdev_status; if needs_refresh
  is true, call softdev_refresh before trusting results

## KEEPING IT USEFUL

The graph only knows structure until you teach it meaning:
- When you learn what a node is for, call softdev_curate with a one-sentence purpose
- When a feature area emerges, create it with softdev_add_concept and attach code
  with softdev_link_to_concept
- Curated nodes persist across sessions; a code node is rebuilt from source,
  and loses its curation, when its file changes

## LIMITS

- Only C sources (.c, .h) are parsed, with a lightweight recognizer, not a compiler
- softdev_impact follows one hop; walk further with softdev_get_node when it matters
- Same-named static functions in different files share one node`
}
