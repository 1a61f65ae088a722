// Package model defines core data structures for bindcheck.
package model

import (
	"fmt"
)

// Kind is the syntactic kind of a documentable declaration.
type Kind string

const (
	Function Kind = "function"
	Method   Kind = "method"
	Module   Kind = "module"
	Type     Kind = "type"
	Field    Kind = "field"
	Union    Kind = "union"
	Impl     Kind = "impl"
	Constant Kind = "constant"
	Macro    Kind = "macro"
)

// IsFunc reports whether declarations of this kind carry a parameter list.
func (k Kind) IsFunc() bool {
	return k == Function || k == Method
}

// DocLine is one documentation comment line with its comment marker removed.
type DocLine struct {
	Line int
	Text string
}

// Param is one parameter of a function-like declaration. Receivers are not
// recorded.
type Param struct {
	Name string
	Line int
}

// Declaration is a documentable unit of source. Children holds nested
// declarations for modules, impl blocks, traits, structs, enums and unions.
type Declaration struct {
	Kind     Kind
	Name     string
	Line     int
	Params   []Param
	Unsafe   bool
	Doc      []DocLine
	Pragmas  []string
	Children []Declaration

	// Malformed is set when the extractor could not recognize the
	// declaration's shape. Malformed declarations are reported once and
	// otherwise left unvalidated.
	Malformed bool
}

// HasPragma reports whether a `//#name` pragma was attached to d.
func (d *Declaration) HasPragma(name string) bool {
	for _, p := range d.Pragmas {
		if p == name {
			return true
		}
	}
	return false
}

// Walk calls fn for every declaration in decls, depth first, in source order.
// Returning false from fn skips that declaration's children.
func Walk(decls []Declaration, fn func(*Declaration) bool) {
	for i := range decls {
		d := &decls[i]
		if fn(d) {
			Walk(d.Children, fn)
		}
	}
}

// DirectiveKind identifies one of the three mapping directive families.
type DirectiveKind string

const (
	Ignore    DirectiveKind = "ignore"
	MapSymbol DirectiveKind = "map-symbol"
	MapURL    DirectiveKind = "map-url"
)

// Directive is one mapping instruction found in a text file. Value is empty
// for Ignore directives.
type Directive struct {
	Kind  DirectiveKind
	File  string
	Line  int
	Key   string
	Value string
}

// Severity of a diagnostic.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
)

// Diagnostic is a file/line anchored finding. Line 0 means the whole file.
type Diagnostic struct {
	Severity Severity
	File     string
	Line     int
	Message  string
}

// String formats d as `path:line: severity: message`. File-level diagnostics
// print line 0.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.File, max(d.Line, 0), d.Severity, d.Message)
}

// Errorf returns an error-severity diagnostic.
func Errorf(file string, line int, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Error, File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}

// Warnf returns a warning-severity diagnostic.
func Warnf(file string, line int, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Warning, File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}
