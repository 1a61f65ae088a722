package audit_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/phobologic/bindcheck/internal/audit"
	"github.com/phobologic/bindcheck/internal/catalog"
	"github.com/phobologic/bindcheck/internal/doccheck"
	"github.com/phobologic/bindcheck/internal/report"
)

const surfaceRS = `//! Surfaces.

/// Creates a surface.
///
/// ### Arguments
/// *   ` + "`width`" + ` - in pixels
pub unsafe fn create_surface(width: u32, height: u32) {}
`

const deviceRS = `//! Devices.

//#cpp2rust IDirect3D9 = Direct3D
//#cpp2ignore D3DFMT_FORCE_DWORD

/// Opens a device.
pub fn open() {}
`

const catalogYAML = `version: "1.0"
symbols:
  - {category: interface, id: IDirect3D9, header: um/d3d9.h, members: [CreateDevice]}
  - {category: enumeration, id: D3DFORMAT, header: um/d3d9.h, members: [D3DFMT_UNKNOWN, D3DFMT_FORCE_DWORD]}
  - {category: function, id: Direct3DCreate9, header: um/d3d9.h}
`

func writeFile(root, rel, content string) {
	GinkgoHelper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
}

var _ = Describe("Runner", func() {
	var (
		root   string
		work   string
		stdout *bytes.Buffer
		stderr *bytes.Buffer
		opts   audit.Options
	)

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		work = GinkgoT().TempDir()
		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}

		writeFile(root, "src/surface.rs", surfaceRS)
		writeFile(root, "src/device.rs", deviceRS)
		writeFile(work, "headers.txt", "# Direct3D 9\nd3d9.h\nd3d11shader.h\n")
		writeFile(work, "catalog.yml", catalogYAML)

		opts = audit.Options{
			Root:    root,
			Headers: filepath.Join(work, "headers.txt"),
			Catalog: filepath.Join(work, "catalog.yml"),
			Report:  filepath.Join(work, "coverage.md"),
			Format:  report.Markdown,
		}
	})

	Describe("Scan", func() {
		It("reports doc comment problems at their declarations", func() {
			res, err := audit.New(stdout, stderr, opts).Scan(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Files).To(Equal(2))
			Expect(res.Diagnostics.HasErrors()).To(BeTrue())
			Expect(stderr.String()).To(ContainSubstring(
				"src/surface.rs:7: error: doc comment for `create_surface` missing `### " + doccheck.SafetyHeader + "` section\n"))
			Expect(stderr.String()).To(ContainSubstring(
				"src/surface.rs:7: error: argument 2 is undocumented (`height`)\n"))
			Expect(stderr.String()).NotTo(ContainSubstring("src/device.rs"))
			Expect(stdout.String()).To(Equal("scanned 2 files: 2 errors, 0 warnings\n"))
		})

		It("does not touch the report", func() {
			_, err := audit.New(stdout, stderr, opts).Scan(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.Report).NotTo(BeAnExistingFile())
		})

		It("isolates files that cannot be parsed", func() {
			writeFile(root, "src/broken.rs", "pub fn \xff\xfe() {}\n")

			res, err := audit.New(stdout, stderr, opts).Scan(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Files).To(Equal(3))
			Expect(stderr.String()).To(ContainSubstring("src/broken.rs:0: error: failed to parse file: not valid UTF-8\n"))
			Expect(stderr.String()).To(ContainSubstring("src/surface.rs:7: error: argument 2 is undocumented"))
		})

		It("keeps checking the items around a syntax error", func() {
			writeFile(root, "src/mixed.rs", `impl S {
    /// Good.
    pub unsafe fn a(&self, x: u32) {}

    /// Broken.
    pub fn b(&self) { let = ; }
}

mod m {
    pub unsafe fn c() {}
    pub fn d() { let = ; }
}
`)

			res, err := audit.New(stdout, stderr, opts).Scan(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Diagnostics.HasErrors()).To(BeTrue())

			out := stderr.String()
			Expect(out).To(ContainSubstring("src/mixed.rs:3: error: doc comment for `a` missing"))
			Expect(out).To(ContainSubstring("src/mixed.rs:10: error: doc comment for `c` missing"))
			Expect(out).To(ContainSubstring("src/mixed.rs:6: warning: failed to parse item"))
			Expect(out).To(ContainSubstring("src/mixed.rs:11: warning: failed to parse item"))
			Expect(out).NotTo(ContainSubstring("failed to parse item impl"))
			Expect(out).NotTo(ContainSubstring("failed to parse item module"))
		})

		It("skips doc checks for exempt aggregation files", func() {
			writeFile(root, "src/_lib.rs", "pub unsafe fn raw() {}\n")
			writeFile(root, "src/generated.rs", "pub unsafe fn raw() {}\n")
			opts.Exempt = append([]string{"generated.rs"}, audit.DefaultExempt...)

			_, err := audit.New(stdout, stderr, opts).Scan(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stderr.String()).NotTo(ContainSubstring("_lib.rs"))
			Expect(stderr.String()).NotTo(ContainSubstring("generated.rs"))
		})

		It("is clean when every declaration is documented", func() {
			Expect(os.Remove(filepath.Join(root, "src", "surface.rs"))).To(Succeed())

			res, err := audit.New(stdout, stderr, opts).Scan(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Diagnostics.Len()).To(BeZero())
			Expect(stderr.String()).To(BeEmpty())
		})

		It("fails when the root is not a directory", func() {
			opts.Root = filepath.Join(work, "headers.txt")

			_, err := audit.New(stdout, stderr, opts).Scan(context.Background())
			Expect(err).To(HaveOccurred())
		})

		It("stops when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := audit.New(stdout, stderr, opts).Scan(ctx)
			Expect(err).To(MatchError(context.Canceled))
		})

		It("logs progress only when verbose", func() {
			opts.Verbose = true
			_, err := audit.New(stdout, stderr, opts).Scan(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stderr.String()).To(ContainSubstring("discovered "))
		})

		DescribeTable("produces the same output for any worker count",
			func(workers int) {
				baseline := &bytes.Buffer{}
				_, err := audit.New(&bytes.Buffer{}, baseline, opts).Scan(context.Background())
				Expect(err).NotTo(HaveOccurred())

				opts.Workers = workers
				_, err = audit.New(stdout, stderr, opts).Scan(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(stderr.String()).To(Equal(baseline.String()))
			},
			Entry("one worker", 1),
			Entry("two workers", 2),
			Entry("more workers than files", 16),
		)
	})

	Describe("UpdateCoverage", func() {
		It("writes the report from the folded directives", func() {
			writeFile(root, "maps/cpp2url.txt", "Direct3DCreate9 = https://example.com/create\n")

			res, err := audit.New(stdout, stderr, opts).UpdateCoverage(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ReportChanged).To(BeTrue())
			Expect(res.Table.Ignored("D3DFMT_FORCE_DWORD")).To(BeTrue())

			data, err := os.ReadFile(opts.Report)
			Expect(err).NotTo(HaveOccurred())
			text := string(data)

			By("rendering mapped and unmapped symbols")
			Expect(text).To(ContainSubstring("`IDirect3D9`&nbsp;→ `Direct3D` <br>\n"))
			Expect(text).To(ContainSubstring("* `IDirect3D9::CreateDevice` →&nbsp;❌ <br>\n"))
			Expect(text).To(ContainSubstring("[`Direct3DCreate9`](https://example.com/create) →&nbsp;❌ <br>\n"))

			By("excluding the ignored enumeration member")
			Expect(text).NotTo(ContainSubstring("D3DFMT_FORCE_DWORD"))

			By("keeping catalog-less headers in the summary")
			Expect(text).To(ContainSubstring("| [d3d11shader.h](#d3d11shaderh) |   |   |   |   |\n"))

			Expect(stdout.String()).To(HavePrefix("report written: " + opts.Report + "\n"))
		})

		It("does not rewrite an unchanged report", func() {
			_, err := audit.New(stdout, stderr, opts).UpdateCoverage(context.Background())
			Expect(err).NotTo(HaveOccurred())
			first, err := os.ReadFile(opts.Report)
			Expect(err).NotTo(HaveOccurred())

			stdout.Reset()
			res, err := audit.New(stdout, stderr, opts).UpdateCoverage(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ReportChanged).To(BeFalse())
			Expect(stdout.String()).To(HavePrefix("report up to date: "))

			second, err := os.ReadFile(opts.Report)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("still checks doc comments", func() {
			res, err := audit.New(stdout, stderr, opts).UpdateCoverage(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Diagnostics.HasErrors()).To(BeTrue())
			Expect(stderr.String()).To(ContainSubstring("src/surface.rs:7: error: argument 2 is undocumented"))
		})

		It("reports malformed directives and keeps the rest", func() {
			writeFile(root, "maps/cpp2rust.txt", "IDirect3D9\nD3DFORMAT = Format\n")

			res, err := audit.New(stdout, stderr, opts).UpdateCoverage(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stderr.String()).To(ContainSubstring(
				"maps/cpp2rust.txt:1: error: malformed map-symbol directive: expected `KEY = VALUE`, missing `=`\n"))
			Expect(res.Table.Mapped("D3DFORMAT")).To(BeTrue())
		})

		It("scans exempt files for directives", func() {
			writeFile(root, "src/_headers.rs", "//#cpp2rust Direct3DCreate9 = create\npub unsafe fn raw() {}\n")

			res, err := audit.New(stdout, stderr, opts).UpdateCoverage(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Table.Mapped("Direct3DCreate9")).To(BeTrue())
			Expect(stderr.String()).NotTo(ContainSubstring("_headers.rs"))
		})

		It("renders rustdoc", func() {
			opts.Format = report.Rustdoc
			opts.Report = filepath.Join(root, "src", "_headers.rs")

			_, err := audit.New(stdout, stderr, opts).UpdateCoverage(context.Background())
			Expect(err).NotTo(HaveOccurred())

			data, err := os.ReadFile(opts.Report)
			Expect(err).NotTo(HaveOccurred())
			for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")[2:] {
				Expect(line).To(HavePrefix("//!"))
			}
		})

		It("logs the mapping table size when verbose", func() {
			opts.Verbose = true

			_, err := audit.New(stdout, stderr, opts).UpdateCoverage(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stderr.String()).To(ContainSubstring("mapping table: 1 ignored, 1 mapped, 0 with urls\n"))
		})

		It("refuses to overwrite a report with one sentinel", func() {
			writeFile(work, "coverage.md", "# Coverage\n\n"+report.SentinelStart+"\nHand-written.\n")

			_, err := audit.New(stdout, stderr, opts).UpdateCoverage(context.Background())
			Expect(err).To(MatchError(report.ErrUnbalancedSentinels))

			data, err := os.ReadFile(opts.Report)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("Hand-written."))
		})

		It("fails without writing when the catalog is unavailable", func() {
			opts.Catalog = filepath.Join(work, "missing.yml")

			_, err := audit.New(stdout, stderr, opts).UpdateCoverage(context.Background())
			Expect(err).To(MatchError(catalog.ErrUnavailable))
			Expect(opts.Report).NotTo(BeAnExistingFile())
		})

		It("fails when the header list is missing", func() {
			opts.Headers = filepath.Join(work, "missing.txt")

			_, err := audit.New(stdout, stderr, opts).UpdateCoverage(context.Background())
			Expect(err).To(MatchError(os.ErrNotExist))
		})
	})
})
