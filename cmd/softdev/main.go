// softdev: a persistent knowledge graph of C codebases.
//
// It scans a source tree into concepts, components and code nodes,
// stores them in one SQLite database per project and serves the graph
// to AI coding tools over MCP.
//
// Usage:
//
//	softdev serve [--watch project]   # Start MCP server (stdio transport)
//	softdev analyze <root>            # Build or update a project's graph
//	softdev refresh <project>         # Re-run the stored analysis
//	softdev status <project>          # Counts and staleness
//	softdev projects                  # List indexed projects
//	softdev watch <project>           # Re-index files as they change
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
