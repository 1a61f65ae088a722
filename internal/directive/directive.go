// Package directive collects native-symbol mapping directives from source
// comments and dedicated mapping files.
//
// Three directive families exist, each with its own marker:
//
//	//#cpp2ignore D3DFMT_FORCE_DWORD
//	//#cpp2rust   D3DERR_NOTFOUND = errors::D3DERR_NOTFOUND
//	//#cpp2url    D3DERR_NOTFOUND = https://learn.microsoft.com/...
//
// The dedicated files cpp2ignore.txt, cpp2rust.txt and cpp2url.txt accept the
// same right-hand side without the marker. cpp2url.md accepts markdown
// link-reference definitions (`[KEY]: URL`).
package directive

import (
	"path"
	"strings"
	"unicode"

	"github.com/phobologic/bindcheck/internal/model"
)

// Markers that introduce a directive inside an ordinary source comment.
const (
	IgnoreMarker = "//#cpp2ignore"
	SymbolMarker = "//#cpp2rust"
	URLMarker    = "//#cpp2url"
)

var markers = []struct {
	token string
	kind  model.DirectiveKind
}{
	{IgnoreMarker, model.Ignore},
	{SymbolMarker, model.MapSymbol},
	{URLMarker, model.MapURL},
}

// dedicated maps the base name of a plain mapping file to its family.
var dedicated = map[string]model.DirectiveKind{
	"cpp2ignore.txt": model.Ignore,
	"cpp2rust.txt":   model.MapSymbol,
	"cpp2url.txt":    model.MapURL,
}

// urlReferences is the markdown form of the url mapping file.
const urlReferences = "cpp2url.md"

// Collect scans one file's text and returns its directives in line order,
// along with a diagnostic for every malformed directive line. Malformed lines
// contribute no directive.
func Collect(filePath, text string) ([]model.Directive, []model.Diagnostic) {
	c := &collector{path: filePath}

	base := path.Base(filePath)
	kind, isDedicated := dedicated[base]

	for i, raw := range strings.Split(text, "\n") {
		line := i + 1
		trimmed := strings.TrimSpace(raw)
		switch {
		case base == urlReferences:
			c.reference(line, trimmed)
		case isDedicated:
			if rhs := stripComment(trimmed); rhs != "" {
				c.assignment(kind, line, rhs)
			}
		default:
			c.marked(line, trimmed)
		}
	}

	return c.directives, c.diags
}

type collector struct {
	path       string
	directives []model.Directive
	diags      []model.Diagnostic
	inComment  bool
}

func (c *collector) errorf(line int, format string, args ...any) {
	c.diags = append(c.diags, model.Errorf(c.path, line, format, args...))
}

func (c *collector) add(kind model.DirectiveKind, line int, key, value string) {
	c.directives = append(c.directives, model.Directive{
		Kind:  kind,
		File:  c.path,
		Line:  line,
		Key:   key,
		Value: value,
	})
}

// marked handles a line that may begin with a directive marker.
func (c *collector) marked(line int, trimmed string) {
	for _, m := range markers {
		rest, ok := strings.CutPrefix(trimmed, m.token)
		if !ok || (rest != "" && !unicode.IsSpace(rune(rest[0]))) {
			continue
		}
		rhs := stripComment(strings.TrimSpace(rest))
		if rhs == "" {
			c.errorf(line, "expected symbol after %s", m.token)
			return
		}
		c.assignment(m.kind, line, rhs)
		return
	}
}

// assignment parses the right-hand side of a directive of the given kind.
func (c *collector) assignment(kind model.DirectiveKind, line int, rhs string) {
	switch kind {
	case model.Ignore:
		if strings.Contains(rhs, "=") {
			c.errorf(line, "malformed ignore directive: unexpected `=`")
			return
		}
		if len(strings.Fields(rhs)) != 1 {
			c.errorf(line, "malformed ignore directive: expected a single symbol, got %q", rhs)
			return
		}
		c.add(kind, line, rhs, "")

	case model.MapSymbol:
		parts := strings.Split(rhs, "=")
		switch {
		case len(parts) < 2:
			c.errorf(line, "malformed %s directive: expected `KEY = VALUE`, missing `=`", kind)
			return
		case len(parts) > 2:
			c.errorf(line, "malformed %s directive: expected exactly one `=`", kind)
			return
		}
		c.pair(kind, line, parts[0], parts[1])

	case model.MapURL:
		// URLs may legitimately contain `=` in their query strings.
		key, value, ok := strings.Cut(rhs, "=")
		if !ok {
			c.errorf(line, "malformed %s directive: expected `KEY = URL`, missing `=`", kind)
			return
		}
		c.pair(kind, line, key, value)
	}
}

func (c *collector) pair(kind model.DirectiveKind, line int, key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	switch {
	case key == "":
		c.errorf(line, "malformed %s directive: empty key", kind)
	case value == "":
		c.errorf(line, "malformed %s directive: empty value for `%s`", kind, key)
	default:
		c.add(kind, line, key, value)
	}
}

// reference handles one line of cpp2url.md. Markdown headings and
// `<!-- -->` comments are skipped; every other non-blank line must be a
// link-reference definition.
func (c *collector) reference(line int, trimmed string) {
	if c.inComment {
		if strings.Contains(trimmed, "-->") {
			c.inComment = false
		}
		return
	}
	if before, comment, ok := strings.Cut(trimmed, "<!--"); ok {
		if !strings.Contains(comment, "-->") {
			c.inComment = true
		}
		trimmed = strings.TrimSpace(before)
	}
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return
	}

	rest, ok := strings.CutPrefix(trimmed, "[")
	if !ok {
		c.errorf(line, "malformed url reference: expected `[KEY]: URL`")
		return
	}
	key, value, ok := strings.Cut(rest, "]:")
	if !ok {
		c.errorf(line, "malformed url reference: expected `[KEY]: URL`")
		return
	}
	c.pair(model.MapURL, line, key, value)
}

// stripComment removes a `#` comment. A `#` only starts a comment at the
// beginning of the text or after whitespace, so URL fragments survive.
func stripComment(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] != '#' {
			continue
		}
		if i == 0 || s[i-1] == ' ' || s[i-1] == '\t' {
			return strings.TrimSpace(s[:i])
		}
	}
	return s
}
