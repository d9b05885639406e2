// Package prompts implements MCP prompt handlers for the knowledge graph.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the softdev-start MCP prompt.
// It guides the AI to analyze a codebase and then explore its graph.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("softdev-start",
		mcp.WithPromptDescription(
			"Analyze a C codebase and get oriented in it. "+
				"Builds the knowledge graph, then walks through its concepts and main entry points.",
		),
		mcp.WithArgument("project_id",
			mcp.ArgumentDescription("Project identifier (default: derived from the root path)"),
		),
		mcp.WithArgument("root_path",
			mcp.ArgumentDescription("Absolute path of the project root"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("depth",
			mcp.ArgumentDescription("Analysis depth: structure, signatures, relationships or full. Default: full"),
		),
	)
}

// Handle processes the softdev-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	rootPath := args["root_path"]
	if rootPath == "" {
		return nil, fmt.Errorf("prompts: softdev-start needs 'root_path'")
	}
	projectID := args["project_id"]
	if projectID == "" {
		projectID = projectFromRoot(rootPath)
	}
	depth := args["depth"]
	if depth == "" {
		depth = "full"
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Analyze and explore %s", projectID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to understand the codebase at %s.\n\n"+
						"Please:\n"+
						"1. Run `softdev_analyze_project` with project_id='%s', root_path='%s' and depth='%s'\n"+
						"2. Report the counts and any error_summary in two or three lines\n"+
						"3. Run `softdev_find_concept` with project_id='%s' and an empty query to list the concepts\n"+
						"4. For the two or three most central concepts, run `softdev_what_implements` and tell me what lives there\n"+
						"5. Find the entry points with `softdev_find_code` (query 'main') and summarize what they call\n\n"+
						"When you learn what a function or concept is for, record it with `softdev_curate` "+
						"so the next session starts from your notes.",
					rootPath, projectID, rootPath, depth, projectID,
				)),
			},
		},
	}, nil
}
