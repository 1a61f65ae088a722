// Package report renders the coverage report document.
package report

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/bindcheck/internal/catalog"
	"github.com/phobologic/bindcheck/internal/coverage"
)

// Format selects how the report is embedded in its output file.
type Format string

const (
	// Markdown is a standalone markdown document.
	Markdown Format = "markdown"
	// Rustdoc prefixes every line with `//!` so the report can live in a
	// Rust module as its inner documentation.
	Rustdoc Format = "rustdoc"
)

// Sentinels delimit the generated region when the report is embedded in a
// hand-written file.
const (
	SentinelStart = "<!-- bindcheck:coverage:start -->"
	SentinelEnd   = "<!-- bindcheck:coverage:end -->"
)

// ErrUnbalancedSentinels is returned when a file holds one sentinel without
// the other, or holds them out of order.
var ErrUnbalancedSentinels = errors.New("unbalanced coverage sentinels")

var (
	anchorStrip = regexp.MustCompile(`[^a-z0-9_-]+`)
	columnTitle = map[catalog.Category]string{
		catalog.Interface:   "Interfaces",
		catalog.TypeDef:     "Types",
		catalog.Enumeration: "Enumerations",
		catalog.Function:    "Functions",
	}
)

// Renderer renders coverage into a report document. Output depends only on
// its inputs: header order, catalog order and mapping insertion order.
type Renderer struct {
	Format Format
	// Version is the catalog version named in the preamble, if any.
	Version string
}

// Render returns a complete standalone report.
func (r Renderer) Render(cov []coverage.Header) string {
	var lines []string
	if r.format() == Rustdoc {
		lines = append(lines, "// This file is generated by `bindcheck update-coverage`. Do not edit.", "")
	} else {
		lines = append(lines, "<!-- This file is generated by `bindcheck update-coverage`. Do not edit. -->", "")
	}
	lines = append(lines, r.embed(r.body(cov))...)
	return strings.Join(lines, "\n") + "\n"
}

// Update returns existing with its sentinel-delimited region replaced by the
// rendered body. Without any sentinel, Update returns a standalone report.
// A lone or misordered sentinel is an error, so hand-written content is never
// replaced.
func (r Renderer) Update(existing string, cov []coverage.Header) (string, error) {
	start := strings.Index(existing, SentinelStart)
	end := strings.Index(existing, SentinelEnd)
	switch {
	case start < 0 && end < 0:
		return r.Render(cov), nil
	case start < 0:
		return "", fmt.Errorf("%w: %s without %s", ErrUnbalancedSentinels, SentinelEnd, SentinelStart)
	case end < 0:
		return "", fmt.Errorf("%w: %s without %s", ErrUnbalancedSentinels, SentinelStart, SentinelEnd)
	case end < start:
		return "", fmt.Errorf("%w: %s before %s", ErrUnbalancedSentinels, SentinelEnd, SentinelStart)
	}

	// Replace whole lines so the comment prefix of the sentinel lines is
	// regenerated along with the region.
	lineStart := strings.LastIndexByte(existing[:start], '\n') + 1
	lineEnd := end + len(SentinelEnd)
	if nl := strings.IndexByte(existing[lineEnd:], '\n'); nl >= 0 {
		lineEnd += nl + 1
	} else {
		lineEnd = len(existing)
	}

	region := append([]string{SentinelStart}, r.body(cov)...)
	region = append(region, SentinelEnd)
	return existing[:lineStart] + strings.Join(r.embed(region), "\n") + "\n" + existing[lineEnd:], nil
}

func (r Renderer) format() Format {
	if r.Format == "" {
		return Markdown
	}
	return r.Format
}

// embed applies the format's line prefix.
func (r Renderer) embed(lines []string) []string {
	if r.format() != Rustdoc {
		return lines
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if l == "" {
			out[i] = "//!"
		} else {
			out[i] = "//! " + l
		}
	}
	return out
}

// body renders the summary table followed by one section per header.
func (r Renderer) body(cov []coverage.Header) []string {
	var lines []string
	lines = append(lines, "Native ⮀ Rust coverage information.")
	if r.Version != "" {
		lines = append(lines, "", fmt.Sprintf("Based on symbol catalog version %s.", r.Version))
	}
	lines = append(lines, "", "# Headers", "")
	lines = append(lines, summaryTable(cov)...)

	for _, h := range cov {
		lines = append(lines, "", "<br>", "", "# "+h.Header.Display)
		for _, s := range h.Sections {
			if s.Cell.Total == 0 {
				continue
			}
			lines = append(lines, "", "### "+columnTitle[s.Category], "")
			lines = append(lines, r.entries(s)...)
		}
	}
	return lines
}

func summaryTable(cov []coverage.Header) []string {
	columns := []string{"Native header"}
	for _, c := range catalog.Categories {
		columns = append(columns, columnTitle[c])
	}

	rows := make([][]string, 0, len(cov))
	for _, h := range cov {
		row := []string{fmt.Sprintf("[%s](#%s)", h.Header.Display, anchor(h.Header.Display))}
		for _, c := range catalog.Categories {
			row = append(row, h.Cell(c).Badge())
		}
		rows = append(rows, row)
	}

	totals := coverage.Totals(cov)
	row := []string{"**Total**"}
	for _, c := range catalog.Categories {
		row = append(row, totals[c].Badge())
	}
	rows = append(rows, row)

	return formatTable(columns, rows)
}

func formatTable(columns []string, rows [][]string) []string {
	rules := make([]string, len(columns))
	for i, c := range columns {
		rules[i] = strings.Repeat("-", len(c))
	}
	lines := []string{
		"| " + strings.Join(columns, " | ") + " |",
		"| " + strings.Join(rules, " | ") + " |",
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = escapeCell(cell)
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
	}
	return lines
}

// entries renders one symbol per line. In interface and enumeration sections
// each parent starts a new paragraph, with its members listed beneath it.
func (r Renderer) entries(s coverage.Section) []string {
	var lines []string
	grouped := s.Category == catalog.Interface || s.Category == catalog.Enumeration
	for i, e := range s.Entries {
		if grouped && !e.Member && i > 0 {
			lines = append(lines, "")
		}
		line := r.symbol(e) + r.values(e) + " <br>"
		if e.Member {
			line = "* " + line
		}
		lines = append(lines, line)
	}
	return lines
}

func (r Renderer) symbol(e coverage.Entry) string {
	if e.URL != "" {
		return fmt.Sprintf("[`%s`](%s)", e.Key, e.URL)
	}
	return fmt.Sprintf("`%s`", e.Key)
}

func (r Renderer) values(e coverage.Entry) string {
	if !e.Mapped() {
		return " →&nbsp;❌"
	}
	rendered := make([]string, len(e.Values))
	for i, v := range e.Values {
		if r.format() == Rustdoc {
			// Intra-doc links, checked by rustdoc.
			rendered[i] = fmt.Sprintf("[`%s`]", v)
		} else {
			rendered[i] = fmt.Sprintf("`%s`", v)
		}
	}
	return "&nbsp;→ " + strings.Join(rendered, ", ")
}

// anchor returns the markdown heading anchor for text: lower-cased, with
// everything but letters, digits, `_` and `-` removed.
func anchor(text string) string {
	return anchorStrip.ReplaceAllString(strings.ToLower(text), "")
}

func escapeCell(cell string) string {
	return strings.ReplaceAll(cell, "|", `\|`)
}
