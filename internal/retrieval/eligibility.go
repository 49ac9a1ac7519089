package retrieval

import (
	"path/filepath"
	"strings"
	"sync"
)

// Locks tracks the two advisory write locks that gate code semantic
// search: one held while embeddings are being regenerated, one held
// while a project is being ingested. Retrieval only ever checks them;
// the writers set and clear them.
type Locks struct {
	mu        sync.RWMutex
	embedding bool
	ingestion bool
}

// SetEmbedding marks the embedding lock held or released.
func (l *Locks) SetEmbedding(held bool) {
	l.mu.Lock()
	l.embedding = held
	l.mu.Unlock()
}

// SetIngestion marks the ingestion lock held or released.
func (l *Locks) SetIngestion(held bool) {
	l.mu.Lock()
	l.ingestion = held
	l.mu.Unlock()
}

// Held reports whether either lock is currently held.
func (l *Locks) Held() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.embedding || l.ingestion
}

// Eligibility carries the facts the semantic-search gate is evaluated
// against for one query.
type Eligibility struct {
	// ProjectLoaded is true when a codebase has been registered and
	// its chunks indexed.
	ProjectLoaded bool
	// ProjectRoot is the root directory of the loaded project.
	ProjectRoot string
	// WorkDir is the caller's current working directory.
	WorkDir string
	// WorkDirHasProjects is true when WorkDir itself contains one or
	// more registered project roots.
	WorkDirHasProjects bool
}

// CanRunSemanticSearch decides whether code semantic search may run.
// It requires a loaded project, both advisory locks free, and the
// working directory to be related to the loaded project: either inside
// its root, or itself containing registered projects. Any single false
// condition skips semantic search for the query; fuzzy search runs
// regardless.
func CanRunSemanticSearch(e Eligibility, locks *Locks) bool {
	if !e.ProjectLoaded {
		return false
	}
	if locks != nil && locks.Held() {
		return false
	}
	if IsSubdir(e.ProjectRoot, e.WorkDir) {
		return true
	}
	return e.WorkDirHasProjects
}

// IsSubdir reports whether dir is root or lies under it, on a path
// separator boundary: /home/a does not contain /home/ab.
func IsSubdir(root, dir string) bool {
	if root == "" || dir == "" {
		return false
	}
	root = filepath.Clean(root)
	dir = filepath.Clean(dir)
	if root == dir {
		return true
	}
	return strings.HasPrefix(dir, root+string(filepath.Separator))
}
