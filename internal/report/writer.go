package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nao1215/ndireport/internal/model"
)

// ErrUnknownFormat is returned by ParseFormat for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Format is a report output format.
type Format string

// Supported report formats.
const (
	FormatXLSX     Format = "xlsx"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat converts a format name into a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatXLSX, FormatMarkdown, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Extension returns the file extension of the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	default:
		return ".xlsx"
	}
}

// Writer defines the interface for report output.
type Writer interface {
	// Write renders the table to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(table *model.Table) (int, error)
}

// Option configures the report metadata shared by all writers.
type Option func(*metadata)

// metadata is the context of a report that is not part of the table itself.
type metadata struct {
	siteName    string
	generatedAt time.Time
}

// WithSiteName sets the site the report was exported for.
func WithSiteName(site string) Option {
	return func(m *metadata) {
		m.siteName = site
	}
}

// WithGeneratedAt sets the report generation time.
func WithGeneratedAt(t time.Time) Option {
	return func(m *metadata) {
		m.generatedAt = t
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
	meta   metadata
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer, opts []Option) baseWriter {
	b := baseWriter{output: output}
	for _, opt := range opts {
		opt(&b.meta)
	}
	return b
}

// NewWriter creates the writer for format.
func NewWriter(format Format, output io.Writer, opts ...Option) (Writer, error) {
	switch format {
	case FormatXLSX:
		return NewXLSXWriter(output, opts...), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output, opts...), nil
	case FormatJSON:
		return NewJSONWriter(output, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}
