// Package discover enumerates the files of a binding library's source tree.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/bindcheck/internal/lang"
)

// Kind classifies a discovered file.
type Kind int

const (
	// Other files are yielded but neither parsed nor scanned for directives.
	Other Kind = iota
	// Text files are scanned for directives only.
	Text
	// Source files are parsed for declarations and scanned for directives.
	Source
)

func (k Kind) String() string {
	switch k {
	case Source:
		return "source"
	case Text:
		return "text"
	}
	return "other"
}

// FileEntry represents a discovered file.
type FileEntry struct {
	Path     string // Relative to root, slash separated
	Kind     Kind
	Language string // Set for Source files
}

// ErrRootNotDir is returned when the walk root is not a directory.
var ErrRootNotDir = errors.New("not a directory")

// DefaultSkipDirs are build and tooling directories excluded by exact name at
// any depth.
var DefaultSkipDirs = []string{
	".git",
	".hg",
	".svn",
	".vs",
	".vscode",
	".idea",
	"target",
	"node_modules",
}

var textExtensions = map[string]struct{}{
	".md":  {},
	".txt": {},
}

// Options controls a walk.
type Options struct {
	// SkipDirs replaces DefaultSkipDirs when non-nil.
	SkipDirs []string
	// NoGitignore disables the root .gitignore.
	NoGitignore bool
}

// Walk returns a lazy sequence of the files under root. Each range over the
// sequence walks the tree again. A directory that cannot be read ends the
// sequence with a non-nil error; no further entries follow it.
func Walk(root string, opts Options) iter.Seq2[FileEntry, error] {
	skip := opts.SkipDirs
	if skip == nil {
		skip = DefaultSkipDirs
	}
	skipDirs := make(map[string]struct{}, len(skip))
	for _, name := range skip {
		skipDirs[name] = struct{}{}
	}

	return func(yield func(FileEntry, error) bool) {
		info, err := os.Stat(root)
		if err != nil {
			yield(FileEntry{}, fmt.Errorf("root path: %w", err))
			return
		}
		if !info.IsDir() {
			yield(FileEntry{}, fmt.Errorf("%s: %w", root, ErrRootNotDir))
			return
		}

		var gi *ignore.GitIgnore
		if !opts.NoGitignore {
			gi = loadGitignore(root)
		}

		stopped := false
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d == nil || d.IsDir() {
					return fmt.Errorf("reading directory %s: %w", path, err)
				}
				// Unreadable files surface when their contents are read.
			}

			if path == root {
				return nil
			}

			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if _, ok := skipDirs[d.Name()]; ok {
					return filepath.SkipDir
				}
				if gi != nil && gi.MatchesPath(rel+"/") {
					return filepath.SkipDir
				}
				return nil
			}

			// Skip symlinks
			if d.Type()&os.ModeSymlink != 0 {
				return nil
			}

			if gi != nil && gi.MatchesPath(rel) {
				return nil
			}

			if !yield(classify(rel), nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			yield(FileEntry{}, err)
		}
	}
}

// Files walks root and returns every entry sorted by path.
func Files(root string, opts Options) ([]FileEntry, error) {
	var results []FileEntry
	for entry, err := range Walk(root, opts) {
		if err != nil {
			return nil, err
		}
		results = append(results, entry)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

func classify(rel string) FileEntry {
	ext := filepath.Ext(rel)
	if name := lang.ForExtension(ext); name != "" {
		return FileEntry{Path: rel, Kind: Source, Language: name}
	}
	if _, ok := textExtensions[ext]; ok {
		return FileEntry{Path: rel, Kind: Text}
	}
	return FileEntry{Path: rel, Kind: Other}
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
