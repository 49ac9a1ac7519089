// Package server wires the memory engine and creates the MCP server
// instance.
//
// This is the composition root: it creates the concrete store,
// embedder, summarizer, retriever, and assembler, and injects them
// into the tool handlers. No memory semantics live here — only wiring.
package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/LuciformResearch/ragforge-sub003/internal/compaction"
	"github.com/LuciformResearch/ragforge-sub003/internal/config"
	"github.com/LuciformResearch/ragforge-sub003/internal/enrich"
	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
	"github.com/LuciformResearch/ragforge-sub003/internal/memtools"
	"github.com/LuciformResearch/ragforge-sub003/internal/retrieval"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all memory tools
// registered. configPath may be empty, in which case defaults apply.
//
// The returned cleanup function closes the memory store's database
// connection and must be called on shutdown (typically via defer). It
// is always non-nil and safe to call.
func New(configPath string) (*server.MCPServer, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, noop, fmt.Errorf("loading config: %w", err)
	}

	// MCP stdio owns stdout, so operational logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store, err := memory.New(memory.Config{DataDir: cfg.DataDir})
	if err != nil {
		return nil, noop, fmt.Errorf("opening memory store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn("memory store close", "error", err)
		}
	}

	embedder := memory.NewHashEmbedder(cfg.EmbeddingDim)
	summarizer := compaction.NewExtractiveSummarizer()
	compactor := compaction.NewCompactor(store, summarizer, embedder, compaction.PolicyFromConfig(cfg), log)

	projectRoot := cfg.ProjectRoot
	if projectRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			projectRoot = wd
		}
	}

	locks := &retrieval.Locks{}
	fileTools := &retrieval.OSFileTools{}
	searcher := retrieval.NewStoreSearcher(store, embedder, cfg.SemanticMinScore, cfg.CodeSearchInitialLimit)
	fuzzy := retrieval.NewFuzzySearcher(fileTools, projectRoot, cfg.CodeSearchInitialLimit, log)
	retriever := retrieval.NewRetriever(searcher, searcher, fuzzy, cfg.RetrievalTimeout, cfg.CodeSearchInitialLimit, log)
	assembler := enrich.NewAssembler(store, retriever, cfg.MaxContextChars, log)

	s := server.NewMCPServer(
		"ragforge",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	recordTool := memtools.NewRecordTool(store, embedder)
	s.AddTool(recordTool.Definition(), recordTool.Handle)

	enrichTool := memtools.NewEnrichTool(store, assembler, locks)
	s.AddTool(enrichTool.Definition(), enrichTool.Handle)

	compactTool := memtools.NewCompactTool(compactor)
	s.AddTool(compactTool.Definition(), compactTool.Handle)

	searchTool := memtools.NewSearchTool(store, retriever, locks)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	ingestTool := memtools.NewIngestTool(store, embedder, fileTools, locks)
	s.AddTool(ingestTool.Definition(), ingestTool.Handle)

	forgetTool := memtools.NewForgetTool(store)
	s.AddTool(forgetTool.Definition(), forgetTool.Handle)

	statsTool := memtools.NewStatsTool(store)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	return s, cleanup, nil
}

// noop is the cleanup returned before the store is opened.
func noop() {}

func serverInstructions() string {
	return `You have access to RagForge, a persistent-memory MCP server for coding sessions.

## HOW TO USE IT

- Call mem_record after EVERY user message and EVERY assistant reply, with the
  same conversation_id for the whole session. Attach tool calls to the
  assistant message that made them.
- Before answering a non-trivial question, call mem_enrich_context with the
  user's query and splice the returned block into your context. It contains
  recent questions, raw recent turns, relevant past conversation, relevant
  code, and pending summaries.
- Call mem_compact occasionally (for example at session end). It is safe to
  call at any time: it only writes summaries when enough uncompacted content
  has accumulated, and retries are idempotent.
- Call mem_ingest_code once per project to enable code semantic search;
  re-ingest after large refactors.
- Use mem_search for explicit lookups, mem_stats to inspect the store, and
  mem_forget (with confirm=true) to erase a conversation on request.

## WHAT IT REMEMBERS

Raw messages are kept verbatim. Older content is folded into L1 summaries,
and accumulated L1 summaries into broader L2 summaries, so context stays
bounded while older sessions remain searchable.`
}
