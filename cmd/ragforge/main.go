// RagForge: persistent-memory MCP server for coding agents.
//
// It records conversation messages, folds old content into layered
// summaries, and serves budgeted context enrichment over MCP stdio to
// any AI coding tool (Claude Code, OpenCode, Gemini CLI, Cursor).
//
// Usage:
//
//	ragforge serve             # Start MCP server (stdio transport)
//	ragforge serve -config F   # Start with an explicit config file
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	memserver "github.com/LuciformResearch/ragforge-sub003/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("ragforge v%s\n", memserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to config file (default: $HOME/.ragforge/config.yaml)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	s, cleanup, err := memserver.New(*configPath)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// ServeStdio handles SIGINT/SIGTERM itself and returns when the
	// client closes the transport.
	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Println(`RagForge - persistent memory for coding agents

Usage:
  ragforge serve [-config FILE]   Start MCP server (stdio transport)
  ragforge version                Show version
  ragforge help                   Show this help

Add to your MCP client configuration:
  {
    "mcpServers": {
      "ragforge": {
        "command": "ragforge",
        "args": ["serve"]
      }
    }
  }`)
}
