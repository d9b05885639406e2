// Package memtools provides MCP tool handlers for the metamemory graph.
//
// Each tool follows the same pattern:
// - A struct with the softdev.Service injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() validates arguments, runs one service operation and returns
//   its result as JSON text
//
// User mistakes are reported with mcp.NewToolResultError, never as Go errors.
package memtools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/softdev/internal/metamemory"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// listArg splits a comma-separated string argument, dropping blanks.
func listArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	for _, s := range strings.Split(req.GetString(key, ""), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// failure turns a service error into a tool error with a hint for the
// common categories.
func failure(action string, err error) *mcp.CallToolResult {
	hint := ""
	switch {
	case errors.Is(err, metamemory.ErrNotFound):
		hint = " (run softdev_analyze_project first or check the ID with softdev_find_code)"
	case errors.Is(err, metamemory.ErrDuplicate):
		hint = " (use softdev_find_concept to see the existing concept)"
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v%s", action, err, hint))
}

// nodeSummary is the compact form of a node in list results.
type nodeSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Purpose   string `json:"purpose,omitempty"`
	Signature string `json:"signature,omitempty"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

func summarize(nodes []*metamemory.Node) []nodeSummary {
	out := make([]nodeSummary, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeSummary{
			ID:        n.ID,
			Name:      n.Name,
			Type:      n.Type.String(),
			Purpose:   n.Purpose,
			Signature: n.Signature,
			File:      n.Location.FilePath,
			Line:      n.Location.LineStart,
		})
	}
	return out
}

// listResult is the payload of every search-like tool.
type listResult struct {
	Results []nodeSummary `json:"results"`
	Count   int           `json:"count"`
}

func nodesResult(nodes []*metamemory.Node) (*mcp.CallToolResult, error) {
	s := summarize(nodes)
	return jsonResult(listResult{Results: s, Count: len(s)})
}
