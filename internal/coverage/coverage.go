// Package coverage cross-references the symbol catalog against the mapping
// table and computes per-header, per-category coverage.
package coverage

import (
	"fmt"
	"strings"

	"github.com/phobologic/bindcheck/internal/catalog"
	"github.com/phobologic/bindcheck/internal/directive"
)

// DefaultIgnoreSuffixes are symbol suffixes excluded from coverage. Native
// enumerations use `_FORCE_DWORD` constants purely for padding.
var DefaultIgnoreSuffixes = []string{"_FORCE_DWORD"}

// State is the badge state of a Cell.
type State int

const (
	Empty State = iota
	None
	Partial
	Full
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case None:
		return "none"
	case Partial:
		return "partial"
	case Full:
		return "full"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Cell counts mapped and total symbols for one header and category.
type Cell struct {
	Mapped int
	Total  int
}

// State returns the badge state for c.
func (c Cell) State() State {
	switch {
	case c.Total == 0:
		return Empty
	case c.Mapped == 0:
		return None
	case c.Mapped == c.Total:
		return Full
	default:
		return Partial
	}
}

// Badge renders c for a markdown table. An empty category renders as a
// neutral placeholder so it does not read as a coverage failure.
func (c Cell) Badge() string {
	switch c.State() {
	case Empty:
		return " "
	case None:
		return fmt.Sprintf("❌ 0 of %d", c.Total)
	case Full:
		return fmt.Sprintf("✔️ %d of %d", c.Mapped, c.Total)
	default:
		return fmt.Sprintf("⚠️ %d of %d", c.Mapped, c.Total)
	}
}

func (c *Cell) add(mapped bool) {
	c.Total++
	if mapped {
		c.Mapped++
	}
}

// Entry is one counted symbol. Member entries are interface methods or
// enumeration constants listed under the preceding parent entry.
type Entry struct {
	Key    string
	Member bool
	Values []string
	URL    string
}

// Mapped reports whether the entry has at least one binding path.
func (e Entry) Mapped() bool {
	return len(e.Values) > 0
}

// Section holds one category of one header.
type Section struct {
	Category catalog.Category
	Cell     Cell
	Entries  []Entry
}

// Header is the coverage of one header. Sections follow
// catalog.Categories order.
type Header struct {
	Header   catalog.Header
	Sections []Section
}

// Cell returns the cell for category c.
func (h Header) Cell(c catalog.Category) Cell {
	for _, s := range h.Sections {
		if s.Category == c {
			return s.Cell
		}
	}
	return Cell{}
}

// Options tunes aggregation.
type Options struct {
	// IgnoreSuffixes excludes keys ending with any of these suffixes.
	IgnoreSuffixes []string
}

// Aggregate computes coverage for every header, in header order. Symbols
// whose key is in the table's ignore set are excluded from both the counts
// and the entry lists, even when they are also mapped.
func Aggregate(headers []catalog.Header, cat *catalog.Catalog, table *directive.Table, opts Options) []Header {
	a := aggregator{table: table, suffixes: opts.IgnoreSuffixes}

	out := make([]Header, 0, len(headers))
	for _, h := range headers {
		sections := make([]Section, len(catalog.Categories))
		index := make(map[catalog.Category]int, len(catalog.Categories))
		for i, c := range catalog.Categories {
			sections[i].Category = c
			index[c] = i
		}

		for _, sym := range cat.ForHeader(h) {
			if a.excluded(sym.ID) {
				continue
			}
			s := &sections[index[sym.Category]]
			a.add(s, sym.ID, false)
			for _, m := range sym.Members {
				a.add(s, memberKey(sym, m), true)
			}
		}

		out = append(out, Header{Header: h, Sections: sections})
	}
	return out
}

// Totals sums every header's cells per category.
func Totals(hs []Header) map[catalog.Category]Cell {
	totals := make(map[catalog.Category]Cell, len(catalog.Categories))
	for _, h := range hs {
		for _, s := range h.Sections {
			t := totals[s.Category]
			t.Mapped += s.Cell.Mapped
			t.Total += s.Cell.Total
			totals[s.Category] = t
		}
	}
	return totals
}

type aggregator struct {
	table    *directive.Table
	suffixes []string
}

func (a *aggregator) excluded(key string) bool {
	if a.table.Ignored(key) {
		return true
	}
	for _, suffix := range a.suffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

func (a *aggregator) add(s *Section, key string, member bool) {
	if member && a.excluded(key) {
		return
	}
	e := Entry{Key: key, Member: member, Values: a.table.Symbols(key)}
	e.URL, _ = a.table.URL(key)
	s.Entries = append(s.Entries, e)
	s.Cell.add(e.Mapped())
}

// memberKey is the mapping key of a member: `Interface::Method` for
// interfaces and scoped enumerations, the bare constant otherwise.
func memberKey(sym catalog.Symbol, member string) string {
	if sym.Category == catalog.Interface || sym.Scoped {
		return sym.ID + "::" + member
	}
	return member
}
