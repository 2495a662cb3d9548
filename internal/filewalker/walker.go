package filewalker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SourceExtensions lists file types handled by the tool.
var SourceExtensions = map[string]bool{
	".cxx": true,
}

// Walker discovers C++ translation units under a directory.
type Walker struct {
	extensions map[string]bool
	recursive  bool
	since      time.Time
}

// Option configures a Walker.
type Option func(*Walker)

// Recursive makes the walker descend into subdirectories.
func Recursive() Option {
	return func(w *Walker) { w.recursive = true }
}

// ModifiedAfter keeps only files modified strictly after t.
func ModifiedAfter(t time.Time) Option {
	return func(w *Walker) { w.since = t }
}

// WithExtensions replaces the recognised extensions.
func WithExtensions(exts ...string) Option {
	return func(w *Walker) {
		w.extensions = make(map[string]bool, len(exts))
		for _, e := range exts {
			w.extensions[strings.ToLower(e)] = true
		}
	}
}

// NewWalker creates a Walker for .cxx files in a single directory.
func NewWalker(opts ...Option) *Walker {
	w := &Walker{extensions: SourceExtensions}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FileEntry represents a discovered file ready for processing.
type FileEntry struct {
	Path    string
	ModTime time.Time
}

// Walk discovers all matching files under root, sorted by path.
func (w *Walker) Walk(root string) ([]FileEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	var entries []FileEntry
	skipped := 0

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}

		if info.IsDir() {
			if path != root && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if !w.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if !info.ModTime().After(w.since) {
			skipped++
			return nil
		}

		entries = append(entries, FileEntry{
			Path:    filepath.Clean(path),
			ModTime: info.ModTime(),
		})
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	log.Info().Int("count", len(entries)).Int("up_to_date", skipped).Str("root", root).Msg("Discovered files")
	return entries, nil
}

// StampTime returns the modification time of a timestamp file, or the zero
// time when it does not exist.
func StampTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Touch rewrites a timestamp file so that its modification time is now.
func Touch(path string) error {
	if err := os.WriteFile(path, []byte("//foo"), 0644); err != nil {
		return fmt.Errorf("write timestamp file: %w", err)
	}
	return nil
}
