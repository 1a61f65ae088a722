// Package doccheck validates doc comments against the section convention and
// checks documented arguments against real function signatures.
package doccheck

import (
	"strings"

	"github.com/phobologic/bindcheck/internal/model"
)

// MaxUndocumentedParams is the largest parameter count a function may have
// without an Arguments section.
const MaxUndocumentedParams = 10

// AllowMissingArgumentDocs is the pragma (`//#allow_missing_argument_docs`)
// that lifts the Arguments section requirement for wide functions.
const AllowMissingArgumentDocs = "allow_missing_argument_docs"

// ArgDoc is one documented argument: a top-level bullet under `### Arguments`.
type ArgDoc struct {
	Line int
	Name string
}

// Block is the classified form of one doc block.
type Block struct {
	Sections    []Section
	Args        []ArgDoc
	Diagnostics []model.Diagnostic
}

// Has reports whether a section with tag appeared anywhere in the block.
func (b *Block) Has(tag Tag) bool {
	for _, s := range b.Sections {
		if s.Tag == tag {
			return true
		}
	}
	return false
}

type mode int

const (
	normal mode = iota
	inFence
	inStyle
)

// Classify splits a doc block into sections and enforces the per-line
// structural rules. Code fences and style blocks suspend classification.
func Classify(path string, doc []model.DocLine) Block {
	var b Block
	errorf := func(line int, format string, args ...any) {
		b.Diagnostics = append(b.Diagnostics, model.Errorf(path, line, format, args...))
	}
	warnf := func(line int, format string, args ...any) {
		b.Diagnostics = append(b.Diagnostics, model.Warnf(path, line, format, args...))
	}

	var (
		m         = normal
		current   Tag
		previous  Tag
		pending   *Section
		fence     string
		blockLine int
	)

	for _, line := range doc {
		text := line.Text
		blank := strings.TrimSpace(text) == ""
		if !blank && !strings.HasPrefix(text, " ") {
			errorf(line.Line, "expected a space after the doc comment marker")
		}
		body := strings.TrimPrefix(text, " ")

		switch m {
		case inFence:
			if closesFence(body, fence) {
				m = normal
			}
			continue
		case inStyle:
			if strings.TrimSpace(body) == "</style>" {
				m = normal
			}
			continue
		}

		if blank {
			if pending != nil {
				errorf(line.Line, "expected non-blank line after `### %s`", pending.Tag)
				pending = nil
			}
			continue
		}

		after := pending
		pending = nil

		if f, ok := opensFence(body); ok {
			m, fence, blockLine, current = inFence, f, line.Line, 0
			continue
		}
		if strings.TrimSpace(body) == "<style>" {
			m, blockLine, current = inStyle, line.Line, 0
			continue
		}

		if phrase, ok := header(body); ok {
			if after != nil {
				errorf(line.Line, "unexpected header `### %s`: expected content after `### %s` first", phrase, after.Tag)
			}
			tag, outcome := Lookup(phrase)
			switch outcome {
			case Known:
				if previous != 0 && tag <= previous {
					warnf(line.Line, "expected `### %s` to come before `### %s`", tag, previous)
				}
				previous, current = tag, tag
				b.Sections = append(b.Sections, Section{Tag: tag, Line: line.Line})
				pending = &b.Sections[len(b.Sections)-1]
			case Misspelled:
				errorf(line.Line, "`### %s` should be marked `### %s`", phrase, SafetyHeader)
				current = 0
			default:
				current = 0
			}
			continue
		}

		if strings.HasPrefix(body, "#") {
			current = 0
			continue
		}

		if current == Arguments {
			if arg, d, ok := argument(path, line.Line, body); ok {
				b.Args = append(b.Args, arg)
			} else if d != nil {
				b.Diagnostics = append(b.Diagnostics, *d)
			}
		}
	}

	if pending != nil {
		errorf(pending.Line, "expected non-blank line after `### %s`", pending.Tag)
	}
	switch m {
	case inFence:
		warnf(blockLine, "unterminated code block")
	case inStyle:
		warnf(blockLine, "unterminated style block")
	}

	return b
}

// argument parses a top-level bullet of an Arguments section. Lines that are
// not top-level bullets are continuation text: ok is false and d is nil.
func argument(path string, line int, body string) (arg ArgDoc, d *model.Diagnostic, ok bool) {
	if len(body) < 2 || (body[0] != '*' && body[0] != '-') || body[1] != ' ' {
		return ArgDoc{}, nil, false
	}
	item := body[2:]

	open := strings.IndexByte(item, '`')
	if open < 0 {
		w := model.Warnf(path, line, "quote argument names with `backticks`")
		return ArgDoc{}, &w, false
	}
	end := strings.IndexByte(item[open+1:], '`')
	if end < 0 {
		w := model.Warnf(path, line, "argument name missing closing backtick")
		return ArgDoc{}, &w, false
	}
	name := item[open+1 : open+1+end]
	if name == "" {
		w := model.Warnf(path, line, "empty argument name")
		return ArgDoc{}, &w, false
	}
	return ArgDoc{Line: line, Name: name}, nil, true
}

// opensFence reports whether body opens a code fence and returns the fence.
func opensFence(body string) (string, bool) {
	trimmed := strings.TrimSpace(body)
	n := countBackticks(trimmed)
	if n < 3 || strings.Contains(trimmed[n:], "`") {
		return "", false
	}
	return trimmed[:n], true
}

func closesFence(body, fence string) bool {
	trimmed := strings.TrimSpace(body)
	n := countBackticks(trimmed)
	return n >= len(fence) && n == len(trimmed)
}

func countBackticks(s string) int {
	n := 0
	for n < len(s) && s[n] == '`' {
		n++
	}
	return n
}

// Check validates one declaration's doc block, including the Safety and
// Arguments requirements and the documented argument list. Malformed
// declarations are skipped; they were reported during extraction.
func Check(path string, d *model.Declaration) []model.Diagnostic {
	if d.Malformed {
		return nil
	}

	b := Classify(path, d.Doc)
	diags := b.Diagnostics

	if d.Unsafe && !b.Has(Safety) {
		diags = append(diags, model.Errorf(path, d.Line, "doc comment for `%s` missing `### %s` section", d.Name, SafetyHeader))
	}

	allow := d.HasPragma(AllowMissingArgumentDocs)
	if len(d.Params) > MaxUndocumentedParams && !b.Has(Arguments) && !allow {
		diags = append(diags, model.Errorf(path, d.Line, "`%s` takes %d arguments but has no `### Arguments` section", d.Name, len(d.Params)))
	}
	if allow && len(b.Args) > 0 {
		diags = append(diags, model.Warnf(path, d.Line, "//#%s used but argument docs provided", AllowMissingArgumentDocs))
	}

	if len(b.Args) > 0 {
		diags = append(diags, Signature(path, b.Args, d.Params)...)
	}
	return diags
}

// CheckAll validates every declaration in decls and their children.
func CheckAll(path string, decls []model.Declaration) []model.Diagnostic {
	var diags []model.Diagnostic
	model.Walk(decls, func(d *model.Declaration) bool {
		diags = append(diags, Check(path, d)...)
		return true
	})
	return diags
}
