// Package diag accumulates diagnostics for a run and decides its exit status.
package diag

import (
	"fmt"
	"io"
	"sort"

	"github.com/phobologic/bindcheck/internal/model"
)

// List is the run-wide diagnostic list. It is owned by the reduction phase
// and is not safe for concurrent use.
type List struct {
	items []model.Diagnostic
	order map[string]int
}

// Add appends diagnostics in the order given.
func (l *List) Add(ds ...model.Diagnostic) {
	if l.order == nil {
		l.order = make(map[string]int)
	}
	for _, d := range ds {
		if _, ok := l.order[d.File]; !ok {
			l.order[d.File] = len(l.order)
		}
		l.items = append(l.items, d)
	}
}

// Len returns the number of diagnostics.
func (l *List) Len() int {
	return len(l.items)
}

// Sort orders diagnostics by the order their files were first added, then by
// line. Diagnostics on the same line keep their insertion order.
func (l *List) Sort() {
	sort.SliceStable(l.items, func(i, j int) bool {
		a, b := l.items[i], l.items[j]
		if a.File != b.File {
			return l.order[a.File] < l.order[b.File]
		}
		return a.Line < b.Line
	})
}

// HasErrors reports whether any error-severity diagnostic was added.
func (l *List) HasErrors() bool {
	for _, d := range l.items {
		if d.Severity == model.Error {
			return true
		}
	}
	return false
}

// Counts returns the number of errors and warnings.
func (l *List) Counts() (errors, warnings int) {
	for _, d := range l.items {
		switch d.Severity {
		case model.Error:
			errors++
		case model.Warning:
			warnings++
		}
	}
	return errors, warnings
}

// Print writes every diagnostic, one per line, in `path:line: severity:
// message` form.
func (l *List) Print(w io.Writer) error {
	for _, d := range l.items {
		if _, err := fmt.Fprintln(w, d.String()); err != nil {
			return err
		}
	}
	return nil
}
