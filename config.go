package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/bindcheck/internal/audit"
	"github.com/phobologic/bindcheck/internal/catalog"
	"github.com/phobologic/bindcheck/internal/discover"
	"github.com/phobologic/bindcheck/internal/report"
)

const defaultConfigName = ".bindcheck.yml"

var (
	validatorOnce     sync.Once
	validatorInstance *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInstance = validator.New()
	})
	return validatorInstance
}

// config holds every setting that can come from .bindcheck.yml or a flag.
type config struct {
	Root           string   `yaml:"root"`
	Headers        string   `yaml:"headers"`
	Catalog        string   `yaml:"catalog"`
	Report         string   `yaml:"report"`
	Format         string   `yaml:"format" validate:"omitempty,oneof=markdown rustdoc"`
	Exempt         []string `yaml:"exempt"`
	SkipDirs       []string `yaml:"skip_dirs"`
	IgnoreSuffixes []string `yaml:"ignore_suffixes"`
	Workers        int      `yaml:"workers" validate:"min=0"`

	NoGitignore bool `yaml:"no_gitignore"`
	Verbose     bool `yaml:"-"`
	Strict      bool `yaml:"strict"`
}

// coverageInputs are the settings update-coverage cannot run without.
type coverageInputs struct {
	Headers string `validate:"required"`
	Catalog string `validate:"required"`
	Report  string `validate:"required"`
}

// loadConfigFile reads the config file at path and applies every value whose
// flag was not set explicitly. An empty path looks for .bindcheck.yml in the
// root and is not an error when that file is missing.
func loadConfigFile(cfg *config, path string, flags *pflag.FlagSet) error {
	if path == "" {
		path = filepath.Join(cfg.Root, defaultConfigName)
		if _, err := os.Stat(path); err != nil {
			return validateConfig(cfg)
		}
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var file config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	// Relative paths in the file are relative to the file.
	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) || catalog.IsURL(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	// Apply config values if flags weren't set
	if !flags.Changed("root") && file.Root != "" {
		cfg.Root = resolve(file.Root)
	}
	if !flags.Changed("headers") && file.Headers != "" {
		cfg.Headers = resolve(file.Headers)
	}
	if !flags.Changed("catalog") && file.Catalog != "" {
		cfg.Catalog = resolve(file.Catalog)
	}
	if !flags.Changed("report") && file.Report != "" {
		cfg.Report = resolve(file.Report)
	}
	if !flags.Changed("format") && file.Format != "" {
		cfg.Format = file.Format
	}
	if !flags.Changed("workers") && file.Workers != 0 {
		cfg.Workers = file.Workers
	}
	if !flags.Changed("no-gitignore") && file.NoGitignore {
		cfg.NoGitignore = true
	}
	if !flags.Changed("strict") && file.Strict {
		cfg.Strict = true
	}
	if file.Exempt != nil {
		cfg.Exempt = file.Exempt
	}
	if file.SkipDirs != nil {
		cfg.SkipDirs = file.SkipDirs
	}
	if file.IgnoreSuffixes != nil {
		cfg.IgnoreSuffixes = file.IgnoreSuffixes
	}

	return validateConfig(cfg)
}

func validateConfig(cfg *config) error {
	if err := getValidator().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func validateCoverageInputs(cfg *config) error {
	in := coverageInputs{Headers: cfg.Headers, Catalog: cfg.Catalog, Report: cfg.Report}
	if err := getValidator().Struct(&in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("update-coverage needs --%s (or %q in %s)", flagName(verrs[0].Field()), flagName(verrs[0].Field()), defaultConfigName)
		}
		return err
	}
	return nil
}

func flagName(field string) string {
	switch field {
	case "Headers":
		return "headers"
	case "Catalog":
		return "catalog"
	default:
		return "report"
	}
}

func (c *config) auditOptions() audit.Options {
	return audit.Options{
		Root:           c.Root,
		Walk:           discover.Options{SkipDirs: c.SkipDirs, NoGitignore: c.NoGitignore},
		Workers:        c.Workers,
		Exempt:         c.Exempt,
		Headers:        c.Headers,
		Catalog:        c.Catalog,
		Report:         c.Report,
		Format:         report.Format(c.Format),
		IgnoreSuffixes: c.IgnoreSuffixes,
		Verbose:        c.Verbose,
	}
}
