package catalog

import (
	"fmt"
	"os"
	"path"
	"strings"
)

// Header is one entry of the header list. Ordinal is its zero-based position,
// which fixes processing and report order.
type Header struct {
	Display string
	Path    string
	Ordinal int
}

// Matches reports whether a catalog owning-header path names h. Separators
// are normalized and a `/`-bounded suffix match is accepted, so `um/d3d9.h`
// matches a header listed as `d3d9.h`.
func (h Header) Matches(owning string) bool {
	owning = normalize(owning)
	if owning == h.Path {
		return true
	}
	return strings.HasSuffix(owning, "/"+h.Path)
}

func normalize(p string) string {
	return strings.TrimPrefix(strings.ReplaceAll(p, `\`, "/"), "./")
}

// ParseHeaders reads a header list: one relative path per non-blank line,
// with `#` comments stripped. Duplicate entries are an error.
func ParseHeaders(text string) ([]Header, error) {
	var headers []Header
	seen := make(map[string]int)
	for i, line := range strings.Split(text, "\n") {
		line, _, _ = strings.Cut(line, "#")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		p := normalize(line)
		if first, dup := seen[p]; dup {
			return nil, fmt.Errorf("line %d: header %q already listed on line %d", i+1, line, first)
		}
		seen[p] = i + 1

		headers = append(headers, Header{
			Display: path.Base(p),
			Path:    p,
			Ordinal: len(headers),
		})
	}
	return headers, nil
}

// LoadHeaders reads and parses the header list file at filename.
func LoadHeaders(filename string) ([]Header, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading header list: %w", err)
	}
	headers, err := ParseHeaders(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return headers, nil
}
