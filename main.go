// bindcheck checks doc comment structure and native API coverage in a Rust
// binding library.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/phobologic/bindcheck/internal/audit"
	"github.com/phobologic/bindcheck/internal/diag"
	"github.com/phobologic/bindcheck/internal/report"
)

var version = "dev"

// errCheckFailed is returned when the run completed but reported errors.
var errCheckFailed = errors.New("check failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cfg := &config{Root: ".", Format: string(report.Markdown)}
	var configPath string

	root := &cobra.Command{
		Use:           "bindcheck",
		Short:         "Check doc comments and native API coverage of a Rust binding library",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A positional root counts as an explicit --root.
			if len(args) > 0 && !cmd.Flags().Changed("root") {
				if err := cmd.Flags().Set("root", args[0]); err != nil {
					return err
				}
			}
			return loadConfigFile(cfg, configPath, cmd.Flags())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("bindcheck {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.Root, "root", ".", "source tree to check")
	pf.StringVar(&configPath, "config", "", "config file (default <root>/"+defaultConfigName+")")
	pf.BoolVarP(&cfg.Verbose, "verbose", "v", false, "print progress to stderr")
	pf.IntVar(&cfg.Workers, "workers", 0, "number of files processed in parallel (0 = GOMAXPROCS)")
	pf.BoolVar(&cfg.NoGitignore, "no-gitignore", false, "do not honor the root .gitignore")

	root.AddCommand(newScanCommand(cfg, stdout, stderr))
	root.AddCommand(newUpdateCoverageCommand(cfg, stdout, stderr))
	return root
}

func newScanCommand(cfg *config, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [root]",
		Short: "Validate doc comments and documented arguments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := audit.New(stdout, stderr, cfg.auditOptions()).Scan(cmd.Context())
			if err != nil {
				return err
			}
			return failOnErrors(res.Diagnostics)
		},
	}
}

func newUpdateCoverageCommand(cfg *config, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-coverage [root]",
		Short: "Regenerate the native API coverage report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateCoverageInputs(cfg); err != nil {
				return err
			}
			res, err := audit.New(stdout, stderr, cfg.auditOptions()).UpdateCoverage(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.Strict {
				return failOnErrors(res.Diagnostics)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Headers, "headers", "", "header list file, one native header per line")
	cmd.Flags().StringVar(&cfg.Catalog, "catalog", "", "symbol catalog file or http(s) URL")
	cmd.Flags().StringVar(&cfg.Report, "report", "", "report file to write")
	cmd.Flags().StringVar(&cfg.Format, "format", string(report.Markdown), "report format: markdown or rustdoc")
	cmd.Flags().BoolVar(&cfg.Strict, "strict", false, "exit non-zero when any error diagnostic was reported")

	return cmd
}

func failOnErrors(diags *diag.List) error {
	if !diags.HasErrors() {
		return nil
	}
	errs, _ := diags.Counts()
	return fmt.Errorf("%w: %d errors", errCheckFailed, errs)
}
