package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ImpactPrompt handles the softdev-impact MCP prompt.
// It instructs the AI to assess what a change to one node would break.
type ImpactPrompt struct{}

// NewImpactPrompt creates an ImpactPrompt.
func NewImpactPrompt() *ImpactPrompt {
	return &ImpactPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ImpactPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("softdev-impact",
		mcp.WithPromptDescription(
			"Assess a planned change before making it: who calls the code, "+
				"which files are touched and whether the graph is current.",
		),
		mcp.WithArgument("project_id",
			mcp.ArgumentDescription("Project identifier"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("target",
			mcp.ArgumentDescription("Node ID or name of the function or struct to change (e.g. 'func:parse_header')"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("change",
			mcp.ArgumentDescription("Short description of the planned change"),
		),
	)
}

// Handle processes the softdev-impact prompt request.
func (p *ImpactPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	projectID, target := args["project_id"], args["target"]
	if projectID == "" || target == "" {
		return nil, fmt.Errorf("prompts: softdev-impact needs 'project_id' and 'target'")
	}
	change := args["change"]
	if change == "" {
		change = "an unspecified change"
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Impact of changing %s", target),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I plan to make this change to %s in project '%s': %s.\n\n"+
						"Please:\n"+
						"1. Run `softdev_status` for '%s'; if needs_refresh is true, run `softdev_refresh` first\n"+
						"2. If '%s' is not a node ID, resolve it with `softdev_find_code`\n"+
						"3. Run `softdev_impact` on the node and list the directly affected callers by file\n"+
						"4. Run `softdev_get_node` on the node and on each caller whose use of it could break\n"+
						"5. Tell me which call sites need edits for this change and which are safe\n\n"+
						"Only direct callers are reported. Say so if a caller is itself widely used.",
					target, projectID, change, projectID, target,
				)),
			},
		},
	}, nil
}
