// Package catalog loads the external catalog of native symbols and the list
// of native headers that fixes report order.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrUnavailable is returned when the catalog cannot be read, fetched or
// decoded. It is fatal for a coverage run.
var ErrUnavailable = errors.New("symbol catalog unavailable")

const (
	httpTimeoutSeconds = 30
	maxResponseSize    = 32 * 1024 * 1024
	userAgent          = "bindcheck"
)

// Category partitions catalog symbols for coverage accounting.
type Category string

const (
	Interface   Category = "interface"
	TypeDef     Category = "type"
	Enumeration Category = "enumeration"
	Function    Category = "function"
)

// Categories lists every category in report column order.
var Categories = []Category{Interface, TypeDef, Enumeration, Function}

// Symbol is one native symbol. Members holds method names for interfaces
// and constant names for enumerations.
type Symbol struct {
	Category Category `yaml:"category" validate:"required,oneof=interface type enumeration function"`
	ID       string   `yaml:"id" validate:"required"`
	Header   string   `yaml:"header" validate:"required"`
	Members  []string `yaml:"members" validate:"omitempty,dive,required"`

	// Scoped enumerations key their constants as `Enum::Const`.
	Scoped bool `yaml:"scoped"`
}

// Catalog is a snapshot of the native symbols, in the collaborator's order.
type Catalog struct {
	Source  string   `yaml:"-"`
	Version string   `yaml:"version"`
	Symbols []Symbol `yaml:"symbols" validate:"dive"`
}

var (
	validatorInstance *validator.Validate
	validatorOnce     sync.Once
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInstance = validator.New()
	})
	return validatorInstance
}

// Parse decodes a YAML or JSON catalog snapshot and validates it.
func Parse(data []byte, source string) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, source, err)
	}
	if err := getValidator().Struct(&c); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, source, err)
	}
	for i, s := range c.Symbols {
		if len(s.Members) > 0 && s.Category != Interface && s.Category != Enumeration {
			return nil, fmt.Errorf("%w: %s: symbol %d (%s): %s symbols have no members", ErrUnavailable, source, i, s.ID, s.Category)
		}
	}
	c.Source = source
	return &c, nil
}

// ForHeader returns the symbols owned by h, in catalog order.
func (c *Catalog) ForHeader(h Header) []Symbol {
	var out []Symbol
	for _, s := range c.Symbols {
		if h.Matches(s.Header) {
			out = append(out, s)
		}
	}
	return out
}

// Fetcher loads a catalog from a local path or an http(s) URL.
type Fetcher struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     func(format string, args ...any)
}

// NewFetcher creates a Fetcher with default settings and a silent logger.
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{},
		Timeout:    time.Duration(httpTimeoutSeconds) * time.Second,
		Logger:     func(string, ...any) {},
	}
}

// Load reads and parses the catalog at location. Every failure wraps
// ErrUnavailable.
func (f *Fetcher) Load(ctx context.Context, location string) (*Catalog, error) {
	var (
		data []byte
		err  error
	)
	if IsURL(location) {
		data, err = f.fetch(ctx, location)
	} else {
		f.Logger("reading catalog %s\n", location)
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, location, err)
	}

	c, err := Parse(data, location)
	if err != nil {
		return nil, err
	}
	f.Logger("catalog %s: version %q, %d symbols\n", location, c.Version, len(c.Symbols))
	return c, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	f.Logger("fetching catalog %s\n", url)

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/yaml, application/json, */*")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.Logger("warning: failed to close response body: %v\n", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseSize)
	}
	return data, nil
}

// IsURL reports whether location is fetched over HTTP.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
