// Package memtools provides the MCP tool handlers for the memory
// engine.
//
// Each tool handler follows the same pattern:
// - A struct with dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Handlers validate arguments, delegate to the engine packages, and
// render Markdown responses; no memory semantics live here.
package memtools

import (
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
	"github.com/LuciformResearch/ragforge-sub003/internal/retrieval"
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

// semanticEligible evaluates the code-semantic-search gate for one
// request: a registered project must exist, the advisory locks must be
// free, and workdir must relate to a project root. workdir defaults to
// the process working directory.
func semanticEligible(store *memory.Store, locks *retrieval.Locks, workdir string) bool {
	if workdir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return false
		}
		workdir = wd
	}

	projects, err := store.Projects()
	if err != nil || len(projects) == 0 {
		return false
	}

	// A workdir inside any registered root counts as "inside the
	// loaded project"; containment the other way around is the
	// workdir-has-projects fallback. Both are separator-boundary
	// checks, never bare prefixes.
	elig := retrieval.Eligibility{
		ProjectLoaded: true,
		ProjectRoot:   projects[0].Root, // most recently ingested
		WorkDir:       workdir,
	}
	for _, p := range projects {
		if retrieval.IsSubdir(p.Root, workdir) {
			elig.ProjectRoot = p.Root
			break
		}
		if retrieval.IsSubdir(workdir, p.Root) {
			elig.WorkDirHasProjects = true
		}
	}
	return retrieval.CanRunSemanticSearch(elig, locks)
}
