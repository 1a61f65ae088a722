package directive

import (
	"slices"
	"sort"

	"github.com/phobologic/bindcheck/internal/model"
)

// Table is the run-wide mapping table built by folding every directive. It is
// not modified after Fold returns.
type Table struct {
	ignore  map[string]struct{}
	symbols multimap
	urls    multimap
}

// multimap is an ordered key to values map. Keys keep first-insertion order
// and each key's values are deduplicated, keeping first-insertion order.
type multimap struct {
	keys   []string
	values map[string][]string
}

func (m *multimap) add(key, value string) {
	if m.values == nil {
		m.values = make(map[string][]string)
	}
	vs, seen := m.values[key]
	if !seen {
		m.keys = append(m.keys, key)
	}
	if slices.Contains(vs, value) {
		return
	}
	m.values[key] = append(vs, value)
}

// Fold builds a Table from per-file directive lists. Callers pass the lists
// in file-path order; directives within a list are applied in order.
func Fold(perFile [][]model.Directive) *Table {
	t := &Table{ignore: make(map[string]struct{})}
	for _, ds := range perFile {
		for _, d := range ds {
			switch d.Kind {
			case model.Ignore:
				t.ignore[d.Key] = struct{}{}
			case model.MapSymbol:
				t.symbols.add(d.Key, d.Value)
			case model.MapURL:
				t.urls.add(d.Key, d.Value)
			}
		}
	}
	return t
}

// Ignored reports whether key has an ignore directive.
func (t *Table) Ignored(key string) bool {
	_, ok := t.ignore[key]
	return ok
}

// Symbols returns the binding paths mapped to key, in insertion order.
func (t *Table) Symbols(key string) []string {
	return slices.Clone(t.symbols.values[key])
}

// Mapped reports whether key has at least one binding path.
func (t *Table) Mapped(key string) bool {
	return len(t.symbols.values[key]) > 0
}

// URL returns the first documentation URL mapped to key.
func (t *Table) URL(key string) (string, bool) {
	vs := t.urls.values[key]
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// IgnoredKeys returns the ignore set, sorted.
func (t *Table) IgnoredKeys() []string {
	keys := make([]string, 0, len(t.ignore))
	for k := range t.ignore {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SymbolKeys returns every mapped key in first-insertion order.
func (t *Table) SymbolKeys() []string {
	return slices.Clone(t.symbols.keys)
}

// URLKeys returns every key with a URL in first-insertion order.
func (t *Table) URLKeys() []string {
	return slices.Clone(t.urls.keys)
}
