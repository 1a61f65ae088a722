// Package parse extracts documentable declarations from source files using
// tree-sitter.
package parse

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/bindcheck/internal/lang"
	"github.com/phobologic/bindcheck/internal/model"
)

// ErrUnparseable is returned when a file cannot be parsed at all.
var ErrUnparseable = errors.New("failed to parse file")

// Result holds the declarations of one file and the diagnostics raised while
// extracting them.
type Result struct {
	Decls       []model.Declaration
	Diagnostics []model.Diagnostic
}

// Declarations parses a source file and returns its declaration tree. The
// single top-level declaration is the file's own module, carrying the file's
// leading inner doc comments; every item in the file is nested under it.
// The parser must be created for the correct language.
// filePath is used for diagnostics and should be the repo-relative path.
func Declarations(ctx context.Context, l *lang.Language, parser *sitter.Parser, source []byte, filePath string) (Result, error) {
	if !utf8.Valid(source) {
		return Result{}, fmt.Errorf("%w: not valid UTF-8", ErrUnparseable)
	}

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	defer tree.Close()

	x := &extractor{
		lang:   l,
		source: source,
		lines:  splitLines(source),
		path:   filePath,
	}

	root := tree.RootNode()
	if root.Type() == "ERROR" {
		return Result{}, ErrUnparseable
	}

	children := x.items(root)
	if root.HasError() && x.clean == 0 {
		return Result{}, ErrUnparseable
	}

	file := model.Declaration{
		Kind:     model.Module,
		Name:     strings.TrimSuffix(path.Base(filePath), path.Ext(filePath)),
		Line:     1,
		Doc:      x.innerDocs(root),
		Children: children,
	}

	return Result{Decls: []model.Declaration{file}, Diagnostics: x.diags}, nil
}

type extractor struct {
	lang   *lang.Language
	source []byte
	lines  []string
	path   string
	diags  []model.Diagnostic
	clean  int
}

func (x *extractor) warnf(line int, format string, args ...any) {
	x.diags = append(x.diags, model.Warnf(x.path, line, format, args...))
}

// items extracts every recognized item directly inside container.
func (x *extractor) items(container *sitter.Node) []model.Declaration {
	var decls []model.Declaration
	for i := 0; i < int(container.NamedChildCount()); i++ {
		child := container.NamedChild(i)
		typ := child.Type()

		if typ == "ERROR" {
			x.warnf(lang.Line(child), "failed to parse item")
			continue
		}

		kind, ok := x.lang.ItemKinds[typ]
		if !ok {
			// Blocks such as `extern "C" { ... }` are transparent.
			if field, isContainer := x.lang.Containers[typ]; isContainer {
				if body := child.ChildByFieldName(field); body != nil {
					decls = append(decls, x.items(body)...)
				}
			}
			continue
		}

		decls = append(decls, x.declaration(child, kind, container.Parent()))
	}
	return decls
}

func (x *extractor) declaration(node *sitter.Node, kind model.Kind, owner *sitter.Node) model.Declaration {
	if kind == model.Function && owner != nil {
		switch owner.Type() {
		case "impl_item", "trait_item":
			kind = model.Method
		}
	}

	d := model.Declaration{
		Kind:   kind,
		Name:   x.lang.ExtractName(node, x.source),
		Line:   lang.Line(node),
		Unsafe: x.lang.IsUnsafe(node),
	}
	d.Doc, d.Pragmas = x.outerDocs(node)

	field, isContainer := x.lang.Containers[node.Type()]
	if !isContainer {
		field = x.lang.Bodies[node.Type()]
	}
	var body *sitter.Node
	if field != "" {
		body = node.ChildByFieldName(field)
	}

	if headerHasError(node, body) {
		d.Malformed = true
		x.warnf(d.Line, "failed to parse item %s", describe(d))
		return d
	}
	x.clean++

	if body != nil && body.HasError() && !isContainer {
		x.warnf(d.Line, "failed to parse item %s: syntax error in body", describe(d))
	}

	if kind.IsFunc() {
		params, ok := x.lang.ExtractParams(node, x.source)
		d.Params = params
		if !ok {
			d.Malformed = true
			x.warnf(d.Line, "failed to parse item %s: unrecognized parameter list", describe(d))
		}
	}

	if isContainer && body != nil {
		before := len(x.diags)
		d.Children = x.items(body)
		if kind == model.Module {
			d.Doc = append(d.Doc, x.innerDocs(body)...)
		}
		// An error outside every nested item still gets reported once.
		if body.HasError() && len(x.diags) == before {
			x.warnf(d.Line, "failed to parse item %s: syntax error in body", describe(d))
		}
	}

	return d
}

// headerHasError reports whether node has a syntax error outside body: in its
// name, modifiers, parameters or other parts of its signature.
func headerHasError(node, body *sitter.Node) bool {
	if node.IsMissing() {
		return true
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if body != nil && child.Equal(body) {
			continue
		}
		if child.Type() == "ERROR" || child.IsMissing() || child.HasError() {
			return true
		}
	}
	return false
}

func describe(d model.Declaration) string {
	if d.Name == "" {
		return string(d.Kind)
	}
	return fmt.Sprintf("%s `%s`", d.Kind, d.Name)
}

// outerDocs collects the `///` lines attached to node by walking its
// preceding siblings. Attributes and plain comments may sit between the doc
// comment and the item; a blank line may not.
func (x *extractor) outerDocs(node *sitter.Node) ([]model.DocLine, []string) {
	var docs []model.DocLine
	var pragmas []string

	next := int(node.StartPoint().Row)
	for s := node.PrevSibling(); s != nil; s = s.PrevSibling() {
		typ := s.Type()
		if typ != "attribute_item" && typ != "line_comment" {
			break
		}

		start := int(s.StartPoint().Row)
		end := int(s.EndPoint().Row)
		if typ == "line_comment" {
			end = start
		}

		if end < next-1 {
			if typ == "line_comment" && isOuterDoc(x.trimmedLine(start)) {
				x.diags = append(x.diags, model.Errorf(x.path, end+2, "unexpected blank line between doc comment and item"))
			}
			break
		}

		if typ == "line_comment" {
			text := x.trimmedLine(start)
			switch {
			case isOuterDoc(text):
				docs = append(docs, model.DocLine{Line: start + 1, Text: strings.TrimPrefix(text, "///")})
			case strings.HasPrefix(text, "//#"):
				if fields := strings.Fields(text[3:]); len(fields) > 0 {
					pragmas = append(pragmas, fields[0])
				}
			case strings.HasPrefix(text, "//!"), !strings.HasPrefix(text, "//"):
				// Inner docs belong to the enclosing module; a comment
				// trailing code belongs to that code.
				return reverse(docs), pragmas
			}
		}
		next = start
	}

	return reverse(docs), pragmas
}

// innerDocs collects the leading run of `//!` lines inside container.
func (x *extractor) innerDocs(container *sitter.Node) []model.DocLine {
	var docs []model.DocLine
	last := -1
	for i := 0; i < int(container.ChildCount()); i++ {
		child := container.Child(i)
		switch child.Type() {
		case "{", "inner_attribute_item":
			continue
		case "line_comment":
		default:
			return docs
		}

		row := int(child.StartPoint().Row)
		text := x.trimmedLine(row)
		switch {
		case strings.HasPrefix(text, "//!"):
			if len(docs) > 0 && row > last+1 {
				return docs
			}
			docs = append(docs, model.DocLine{Line: row + 1, Text: strings.TrimPrefix(text, "//!")})
			last = row
		case isOuterDoc(text):
			return docs
		}
	}
	return docs
}

func (x *extractor) trimmedLine(row int) string {
	if row < 0 || row >= len(x.lines) {
		return ""
	}
	return strings.TrimLeft(x.lines[row], " \t")
}

func isOuterDoc(text string) bool {
	return strings.HasPrefix(text, "///") && !strings.HasPrefix(text, "////")
}

func splitLines(source []byte) []string {
	lines := strings.Split(string(source), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func reverse(docs []model.DocLine) []model.DocLine {
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	return docs
}
