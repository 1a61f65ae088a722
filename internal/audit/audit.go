// Package audit runs the documentation and coverage pipeline over a binding
// library's source tree.
//
// Files are processed independently on a worker pool. Their results are then
// reduced in path order, so output never depends on scheduling.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/bindcheck/internal/catalog"
	"github.com/phobologic/bindcheck/internal/coverage"
	"github.com/phobologic/bindcheck/internal/diag"
	"github.com/phobologic/bindcheck/internal/directive"
	"github.com/phobologic/bindcheck/internal/discover"
	"github.com/phobologic/bindcheck/internal/doccheck"
	"github.com/phobologic/bindcheck/internal/lang"
	"github.com/phobologic/bindcheck/internal/model"
	"github.com/phobologic/bindcheck/internal/parse"
	"github.com/phobologic/bindcheck/internal/report"
)

// DefaultExempt lists the base names of generated aggregation files. Their
// doc comments are never checked.
var DefaultExempt = []string{"_examples.rs", "_headers.rs", "_lib.rs"}

// DefaultMaxFileSize is the size above which files are skipped.
const DefaultMaxFileSize = 4_000_000

type (
	// Options configures a Runner.
	Options struct {
		// Root is the source tree to audit.
		Root string
		// Walk controls file discovery.
		Walk discover.Options
		// Workers bounds the per-file worker pool. Zero means GOMAXPROCS.
		Workers int
		// Exempt replaces DefaultExempt when non-nil.
		Exempt []string
		// MaxFileSize replaces DefaultMaxFileSize when positive.
		MaxFileSize int64

		// Headers is the header list file.
		Headers string
		// Catalog is the symbol catalog path or http(s) URL.
		Catalog string
		// Report is the report file to write.
		Report string
		// Format is the report format.
		Format report.Format
		// IgnoreSuffixes replaces coverage.DefaultIgnoreSuffixes when non-nil.
		IgnoreSuffixes []string

		// Verbose turns on progress output on the error writer.
		Verbose bool
	}

	// Runner runs the pipeline and prints diagnostics and a summary.
	Runner struct {
		writer    io.Writer
		errWriter io.Writer
		opts      Options

		// Fetcher loads the symbol catalog.
		Fetcher *catalog.Fetcher
	}

	// FileResult is the self-contained output of processing one file.
	FileResult struct {
		Path        string
		Decls       []model.Declaration
		Directives  []model.Directive
		Diagnostics []model.Diagnostic
	}

	// Result summarizes a run.
	Result struct {
		Files       int
		Diagnostics *diag.List

		// Set by UpdateCoverage only.
		Table         *directive.Table
		Coverage      []coverage.Header
		ReportChanged bool
	}
)

// New creates a Runner writing its summary to writer and diagnostics and
// progress to errWriter.
func New(writer, errWriter io.Writer, opts Options) *Runner {
	r := &Runner{
		writer:    writer,
		errWriter: errWriter,
		opts:      opts,
		Fetcher:   catalog.NewFetcher(),
	}
	r.Fetcher.Logger = r.writeDebug
	return r
}

func (r *Runner) writeStderr(format string, args ...any) {
	fmt.Fprintf(r.errWriter, strings.TrimSuffix(format, "\n")+"\n", args...)
}

func (r *Runner) writeDebug(format string, args ...any) {
	if r.opts.Verbose {
		r.writeStderr(format, args...)
	}
}

// Scan walks the tree, extracts declarations and validates their doc
// comments. The catalog and report are not touched.
func (r *Runner) Scan(ctx context.Context) (*Result, error) {
	results, err := r.collect(ctx, false)
	if err != nil {
		return nil, err
	}

	res := &Result{Files: len(results), Diagnostics: reduce(results, nil)}
	if err := r.finish(res); err != nil {
		return nil, err
	}
	errs, warns := res.Diagnostics.Counts()
	_, _ = fmt.Fprintf(r.writer, "scanned %d files: %d errors, %d warnings\n", res.Files, errs, warns)
	return res, nil
}

// UpdateCoverage runs the whole pipeline and rewrites the report if its
// content changed.
func (r *Runner) UpdateCoverage(ctx context.Context) (*Result, error) {
	headers, err := catalog.LoadHeaders(r.opts.Headers)
	if err != nil {
		return nil, err
	}
	r.writeDebug("loaded %d headers from %s", len(headers), r.opts.Headers)

	cat, err := r.Fetcher.Load(ctx, r.opts.Catalog)
	if err != nil {
		return nil, err
	}

	results, err := r.collect(ctx, true)
	if err != nil {
		return nil, err
	}

	var perFile [][]model.Directive
	res := &Result{Files: len(results), Diagnostics: reduce(results, &perFile)}
	res.Table = directive.Fold(perFile)
	r.writeDebug("mapping table: %d ignored, %d mapped, %d with urls",
		len(res.Table.IgnoredKeys()), len(res.Table.SymbolKeys()), len(res.Table.URLKeys()))

	suffixes := r.opts.IgnoreSuffixes
	if suffixes == nil {
		suffixes = coverage.DefaultIgnoreSuffixes
	}
	res.Coverage = coverage.Aggregate(headers, cat, res.Table, coverage.Options{IgnoreSuffixes: suffixes})

	renderer := report.Renderer{Format: r.opts.Format, Version: cat.Version}
	res.ReportChanged, err = report.Write(r.opts.Report, renderer, res.Coverage)
	if err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}

	if err := r.finish(res); err != nil {
		return nil, err
	}
	if res.ReportChanged {
		_, _ = fmt.Fprintf(r.writer, "report written: %s\n", r.opts.Report)
	} else {
		_, _ = fmt.Fprintf(r.writer, "report up to date: %s\n", r.opts.Report)
	}
	errs, warns := res.Diagnostics.Counts()
	_, _ = fmt.Fprintf(r.writer, "scanned %d files: %d errors, %d warnings\n", res.Files, errs, warns)
	return res, nil
}

// finish prints every diagnostic, in full, to the error writer.
func (r *Runner) finish(res *Result) error {
	if err := res.Diagnostics.Print(r.errWriter); err != nil {
		return fmt.Errorf("printing diagnostics: %w", err)
	}
	return nil
}

// reduce folds per-file results, already in path order, into one diagnostic
// list. When perFile is non-nil each file's directives are appended to it.
func reduce(results []FileResult, perFile *[][]model.Directive) *diag.List {
	var diags diag.List
	for _, fr := range results {
		diags.Add(fr.Diagnostics...)
		if perFile != nil && len(fr.Directives) > 0 {
			*perFile = append(*perFile, fr.Directives)
		}
	}
	diags.Sort()
	return &diags
}

// collect discovers files and processes them concurrently. Results are
// returned in path order. withDirectives also selects text files and scans
// every file for mapping directives.
func (r *Runner) collect(ctx context.Context, withDirectives bool) ([]FileResult, error) {
	root, err := filepath.Abs(r.opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	entries, err := discover.Files(root, r.opts.Walk)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}

	var files []discover.FileEntry
	for _, e := range entries {
		if e.Kind == discover.Source || (withDirectives && e.Kind == discover.Text) {
			files = append(files, e)
		}
	}
	r.writeDebug("discovered %d files under %s, processing %d", len(entries), root, len(files))

	results := r.processConcurrent(ctx, root, files, withDirectives)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) processConcurrent(ctx context.Context, root string, files []discover.FileEntry, withDirectives bool) []FileResult {
	numWorkers := r.opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	numWorkers = min(numWorkers, len(files))

	type result struct {
		index int
		res   FileResult
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own parsers
			parsers := make(map[string]*sitter.Parser)

			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				f := files[idx]

				var parser *sitter.Parser
				if f.Kind == discover.Source {
					p, ok := parsers[f.Language]
					if !ok {
						p = lang.Languages[f.Language].NewParser()
						parsers[f.Language] = p
					}
					parser = p
				}

				results <- result{index: idx, res: r.processFile(ctx, root, f, parser, withDirectives)}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in path order
	indexed := make([]FileResult, len(files))
	for res := range results {
		indexed[res.index] = res.res
	}
	return indexed
}

// processFile produces one file's partial result. It never fails: problems
// become diagnostics for that file.
func (r *Runner) processFile(ctx context.Context, root string, f discover.FileEntry, parser *sitter.Parser, withDirectives bool) FileResult {
	fr := FileResult{Path: f.Path}

	absPath := filepath.Join(root, filepath.FromSlash(f.Path))
	info, err := os.Stat(absPath)
	if err != nil {
		fr.Diagnostics = append(fr.Diagnostics, model.Errorf(f.Path, 0, "failed to read file: %v", err))
		return fr
	}
	if maxSize := r.maxFileSize(); info.Size() > maxSize {
		fr.Diagnostics = append(fr.Diagnostics, model.Warnf(f.Path, 0, "skipped (>%d bytes)", maxSize))
		return fr
	}

	source, err := os.ReadFile(absPath)
	if err != nil {
		fr.Diagnostics = append(fr.Diagnostics, model.Errorf(f.Path, 0, "failed to read file: %v", err))
		return fr
	}

	if f.Kind == discover.Source && !r.exempt(f.Path) {
		res, err := parse.Declarations(ctx, lang.Languages[f.Language], parser, source, f.Path)
		if err != nil {
			fr.Diagnostics = append(fr.Diagnostics, model.Errorf(f.Path, 0, "%v", err))
		} else {
			fr.Decls = res.Decls
			fr.Diagnostics = append(fr.Diagnostics, res.Diagnostics...)
			fr.Diagnostics = append(fr.Diagnostics, doccheck.CheckAll(f.Path, res.Decls)...)
		}
	}

	if withDirectives {
		ds, diags := directive.Collect(f.Path, string(source))
		fr.Directives = ds
		fr.Diagnostics = append(fr.Diagnostics, diags...)
	}

	return fr
}

func (r *Runner) exempt(rel string) bool {
	exempt := r.opts.Exempt
	if exempt == nil {
		exempt = DefaultExempt
	}
	return slices.Contains(exempt, path.Base(rel))
}

func (r *Runner) maxFileSize() int64 {
	if r.opts.MaxFileSize > 0 {
		return r.opts.MaxFileSize
	}
	return DefaultMaxFileSize
}
