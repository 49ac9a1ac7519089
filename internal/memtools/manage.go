package memtools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
	"github.com/LuciformResearch/ragforge-sub003/internal/retrieval"
)

// ─── ForgetTool ─────────────────────────────────────────────────────

// ForgetTool handles the mem_forget MCP tool: cascade-delete one
// conversation and everything hanging off it.
type ForgetTool struct {
	store *memory.Store
}

// NewForgetTool creates a ForgetTool.
func NewForgetTool(store *memory.Store) *ForgetTool {
	return &ForgetTool{store: store}
}

// Definition returns the MCP tool definition for mem_forget.
func (t *ForgetTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_forget",
		mcp.WithDescription(
			"Permanently delete a conversation from memory: its messages, tool calls, "+
				"summaries, embeddings, and edges. This cannot be undone.",
		),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Conversation to delete"),
		),
		mcp.WithBoolean("confirm",
			mcp.Description("Must be true to actually delete"),
		),
	)
}

// Handle processes the mem_forget tool call.
func (t *ForgetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID := req.GetString("conversation_id", "")
	if conversationID == "" {
		return mcp.NewToolResultError("'conversation_id' is required"), nil
	}
	if !boolArg(req, "confirm", false) {
		return mcp.NewToolResultError("set 'confirm' to true to delete the conversation"), nil
	}

	if err := t.store.DeleteConversation(conversationID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete conversation: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Conversation %s deleted.", conversationID)), nil
}

// ─── IngestTool ─────────────────────────────────────────────────────

// codeExtensions are the file patterns ingestion indexes.
var codeExtensions = []string{"*.go", "*.ts", "*.tsx", "*.js", "*.py", "*.rs", "*.java", "*.md"}

// chunkLines is the window size, in lines, of one indexed code chunk.
const chunkLines = 40

// IngestTool handles the mem_ingest_code MCP tool: it registers a
// project root and indexes its source files into embedded code chunks
// for semantic search. The ingestion lock is held for the duration, so
// semantic search skips itself rather than reading a half-built index.
type IngestTool struct {
	store    *memory.Store
	embedder memory.Embedder
	tools    retrieval.FileTools
	locks    *retrieval.Locks
}

// NewIngestTool creates an IngestTool.
func NewIngestTool(store *memory.Store, embedder memory.Embedder, tools retrieval.FileTools, locks *retrieval.Locks) *IngestTool {
	return &IngestTool{store: store, embedder: embedder, tools: tools, locks: locks}
}

// Definition returns the MCP tool definition for mem_ingest_code.
func (t *IngestTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_ingest_code",
		mcp.WithDescription(
			"Register a project and index its source files for code semantic search. "+
				"Re-ingesting the same root refreshes existing chunks in place.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Project name"),
		),
		mcp.WithString("root",
			mcp.Required(),
			mcp.Description("Absolute path of the project root"),
		),
	)
}

// Handle processes the mem_ingest_code tool call.
func (t *IngestTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	root := req.GetString("root", "")

	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}
	if root == "" {
		return mcp.NewToolResultError("'root' is required"), nil
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return mcp.NewToolResultError(fmt.Sprintf("'root' is not a readable directory: %s", root)), nil
	}

	t.locks.SetIngestion(true)
	defer t.locks.SetIngestion(false)

	files, err := t.collectFiles(ctx, root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to scan %s: %v", root, err)), nil
	}

	chunks := 0
	for _, path := range files {
		n, err := t.indexFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to index %s: %v", path, err)), nil
		}
		chunks += n
	}

	if err := t.store.RegisterProject(name, root); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to register project: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Ingested project %q: %d files, %d chunks indexed.",
		name, len(files), chunks)), nil
}

func (t *IngestTool) collectFiles(ctx context.Context, root string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range codeExtensions {
		paths, err := t.tools.Glob(ctx, root, pattern)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
		}
	}
	return files, nil
}

// indexFile splits one file into fixed-line windows and upserts an
// embedded chunk per window.
func (t *IngestTool) indexFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	lines := strings.Split(string(data), "\n")

	chunks := 0
	for start := 0; start < len(lines); start += chunkLines {
		end := start + chunkLines
		if end > len(lines) {
			end = len(lines)
		}
		content := strings.TrimSpace(strings.Join(lines[start:end], "\n"))
		if content == "" {
			continue
		}

		chunk := memory.CodeChunk{
			ID:        memory.ChunkID(path, start+1, end),
			Path:      path,
			StartLine: start + 1,
			EndLine:   end,
			Content:   content,
		}
		vector, err := t.embedder.Embed(path + "\n" + content)
		if err != nil {
			return chunks, err
		}
		if err := t.store.IndexCodeChunk(chunk, vector); err != nil {
			return chunks, err
		}
		chunks++
	}
	return chunks, nil
}
