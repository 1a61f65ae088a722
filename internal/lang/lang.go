// Package lang provides a language registry mapping file extensions to
// tree-sitter languages and their declaration helpers.
package lang

import (
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/bindcheck/internal/model"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language

	// ItemKinds maps grammar node types to the declaration kind they produce.
	ItemKinds map[string]model.Kind

	// Containers lists node types whose body holds nested items. The value is
	// the field name of the body node.
	Containers map[string]string

	// Bodies lists node types with a body that holds no items, such as a
	// function's block. A syntax error confined to it leaves the item's
	// signature intact.
	Bodies map[string]string

	// ExtractParams returns the parameter names of a function-like node,
	// excluding any receiver. ok is false when a parameter's shape is not
	// recognized.
	ExtractParams func(node *sitter.Node, source []byte) (params []model.Param, ok bool)

	// IsUnsafe reports whether a declaration node is marked as operating
	// outside normal safety guarantees.
	IsUnsafe func(node *sitter.Node) bool

	// ExtractName returns the declared name of an item node.
	ExtractName func(node *sitter.Node, source []byte) string
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Line returns the 1-based line a node starts on.
func Line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}
