package retrieval

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// GrepMatch is one line hit from a content search.
type GrepMatch struct {
	Path string
	Line int // 1-based
	Text string
}

// FileTools is the black-box filesystem surface fuzzy code search is
// composed from. Implementations must be safe for concurrent use.
type FileTools interface {
	// Grep returns lines under root containing term, case-insensitive.
	Grep(ctx context.Context, term, root string) ([]GrepMatch, error)
	// Glob returns file paths under root whose base name matches the
	// shell pattern.
	Glob(ctx context.Context, root, pattern string) ([]string, error)
	// ListDirectory returns the entry names of a directory.
	ListDirectory(path string) ([]string, error)
}

// OSFileTools implements FileTools against the local filesystem.
type OSFileTools struct {
	// MaxMatches caps hits per Grep call. Zero means the default.
	MaxMatches int
	// MaxFileSize skips files larger than this many bytes. Zero means
	// the default of 1 MiB.
	MaxFileSize int64
}

const (
	defaultMaxMatches  = 500
	defaultMaxFileSize = 1 << 20
)

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"target":       true,
	"__pycache__":  true,
}

// Grep implements FileTools.
func (t *OSFileTools) Grep(ctx context.Context, term, root string) ([]GrepMatch, error) {
	term = strings.ToLower(term)
	if term == "" {
		return nil, nil
	}
	maxMatches := t.MaxMatches
	if maxMatches <= 0 {
		maxMatches = defaultMaxMatches
	}

	var matches []GrepMatch
	err := t.walk(ctx, root, func(path string, info fs.DirEntry) error {
		hits, err := grepFile(path, term, maxMatches-len(matches))
		if err != nil {
			// Unreadable files are skipped, not fatal.
			return nil
		}
		matches = append(matches, hits...)
		if len(matches) >= maxMatches {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// Glob implements FileTools.
func (t *OSFileTools) Glob(ctx context.Context, root, pattern string) ([]string, error) {
	var paths []string
	err := t.walk(ctx, root, func(path string, info fs.DirEntry) error {
		ok, err := filepath.Match(pattern, info.Name())
		if err != nil {
			return err
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// ListDirectory implements FileTools.
func (t *OSFileTools) ListDirectory(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// walk visits regular files under root, pruning ignored and hidden
// directories and oversized files.
func (t *OSFileTools) walk(ctx context.Context, root string, visit func(path string, info fs.DirEntry) error) error {
	maxSize := t.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxSize {
			return nil
		}
		return visit(path, d)
	})
}

func grepFile(path, term string, limit int) ([]GrepMatch, error) {
	if limit <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var hits []GrepMatch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 256*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.Contains(text, "\x00") {
			// Binary file; stop scanning it.
			return hits, nil
		}
		if strings.Contains(strings.ToLower(text), term) {
			hits = append(hits, GrepMatch{Path: path, Line: line, Text: text})
			if len(hits) >= limit {
				return hits, nil
			}
		}
	}
	return hits, scanner.Err()
}
