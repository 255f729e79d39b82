package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nao1215/ndireport/internal/model"
	"github.com/nao1215/ndireport/internal/report"
)

// Step names.
const (
	StepLogin = "login"
	StepFetch = "fetch"
	StepBuild = "build"
	StepWrite = "write"
)

// ErrNoCollection is returned by BuildStep when no collection was fetched.
var ErrNoCollection = errors.New("no endpoint collection to build a table from")

// ErrNoTable is returned by WriteStep when no table was built.
var ErrNoTable = errors.New("no endpoint table to write")

// Controller is the part of the controller API client used by the steps.
// *ndi.Client implements it.
type Controller interface {
	// Login opens an authenticated session.
	Login(ctx context.Context, creds model.Credentials) error

	// FetchAll returns the complete endpoint collection of a site.
	FetchAll(ctx context.Context, siteName string) (*model.Collection, error)
}

// LoginStep authenticates against the controller.
type LoginStep struct {
	client Controller
	creds  model.Credentials
	logger *slog.Logger
}

// LoginStepOption configures a LoginStep.
type LoginStepOption func(*LoginStep)

// WithLoginLogger sets a custom logger for the login step.
func WithLoginLogger(logger *slog.Logger) LoginStepOption {
	return func(s *LoginStep) {
		s.logger = logger
	}
}

// NewLoginStep creates a new login step.
func NewLoginStep(client Controller, creds model.Credentials, opts ...LoginStepOption) *LoginStep {
	s := &LoginStep{
		client: client,
		creds:  creds,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *LoginStep) Name() string {
	return StepLogin
}

// Do executes the login step.
func (s *LoginStep) Do(ctx context.Context, _ *model.ExportRun) error {
	if err := s.client.Login(ctx, s.creds); err != nil {
		return err
	}
	s.logger.Debug("logged in", "account", s.creds.String())
	return nil
}

// FetchStep retrieves the complete endpoint collection of the run's site.
// An empty collection marks the run as having no data.
type FetchStep struct {
	client Controller
	logger *slog.Logger
}

// FetchStepOption configures a FetchStep.
type FetchStepOption func(*FetchStep)

// WithFetchLogger sets a custom logger for the fetch step.
func WithFetchLogger(logger *slog.Logger) FetchStepOption {
	return func(s *FetchStep) {
		s.logger = logger
	}
}

// NewFetchStep creates a new fetch step.
func NewFetchStep(client Controller, opts ...FetchStepOption) *FetchStep {
	s := &FetchStep{
		client: client,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return StepFetch
}

// Do executes the fetch step.
func (s *FetchStep) Do(ctx context.Context, run *model.ExportRun) error {
	collection, err := s.client.FetchAll(ctx, run.SiteName)
	if err != nil {
		return err
	}
	if collection == nil {
		collection = model.NewEmptyCollection()
	}

	run.Collection = collection
	run.NoData = collection.IsEmpty()

	s.logger.Debug("fetched endpoints",
		"site", run.SiteName,
		"total", collection.TotalItemsCount,
		"entries", collection.Len(),
	)
	return nil
}

// BuildStep flattens the fetched collection into the report table.
type BuildStep struct{}

// NewBuildStep creates a new build step.
func NewBuildStep() *BuildStep {
	return &BuildStep{}
}

// Name returns the step name.
func (s *BuildStep) Name() string {
	return StepBuild
}

// Do executes the build step.
func (s *BuildStep) Do(_ context.Context, run *model.ExportRun) error {
	if run.Collection == nil {
		return ErrNoCollection
	}
	run.Table = model.BuildTable(run.Collection.Entries)
	return nil
}

// WriteStep writes the table to a timestamped report file.
type WriteStep struct {
	outputDir string
	format    report.Format
	now       func() time.Time
	logger    *slog.Logger
}

// WriteStepOption configures a WriteStep.
type WriteStepOption func(*WriteStep)

// WithOutputDir sets the directory the report is written to.
func WithOutputDir(dir string) WriteStepOption {
	return func(s *WriteStep) {
		s.outputDir = dir
	}
}

// WithFormat sets the report format.
func WithFormat(format report.Format) WriteStepOption {
	return func(s *WriteStep) {
		s.format = format
	}
}

// WithClock sets the time source used to name the report file.
func WithClock(now func() time.Time) WriteStepOption {
	return func(s *WriteStep) {
		s.now = now
	}
}

// WithWriteLogger sets a custom logger for the write step.
func WithWriteLogger(logger *slog.Logger) WriteStepOption {
	return func(s *WriteStep) {
		s.logger = logger
	}
}

// NewWriteStep creates a new write step. By default it writes an xlsx
// report into the current directory.
func NewWriteStep(opts ...WriteStepOption) *WriteStep {
	s := &WriteStep{
		outputDir: ".",
		format:    report.FormatXLSX,
		now:       time.Now,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return StepWrite
}

// Do executes the write step and records the report path in the run.
func (s *WriteStep) Do(_ context.Context, run *model.ExportRun) error {
	if run.Table == nil {
		return ErrNoTable
	}
	if _, err := report.ParseFormat(string(s.format)); err != nil {
		return err
	}

	generatedAt := s.now()
	path := filepath.Join(s.outputDir, report.Filename(generatedAt, s.format))

	// Two exports within the same second share a file name.
	if report.Exists(path) {
		s.logger.Warn("report file exists and will be replaced", "path", path)
	}

	newWriter := func(output io.Writer) (report.Writer, error) {
		return report.NewWriter(s.format, output,
			report.WithSiteName(run.SiteName),
			report.WithGeneratedAt(generatedAt),
		)
	}

	if err := report.WriteFile(path, run.Table, newWriter); err != nil {
		return err
	}

	run.ReportFile = path
	s.logger.Debug("report written",
		"path", path,
		"format", string(s.format),
		"rows", run.Table.RowCount(),
		"columns", run.Table.ColumnCount(),
	)
	return nil
}
