package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/ndireport/internal/model"
)

// FilenamePrefix is the common prefix of report file names.
const FilenamePrefix = "endpoints_report_"

// filenameTimeLayout is the timestamp part of a report file name.
const filenameTimeLayout = "20060102_150405"

// IOError is returned when the report file cannot be written.
type IOError struct {
	// Path is the report file path.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("write report %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// Filename returns the report file name for an export started at now,
// for example endpoints_report_20240131_142509.xlsx. The local time of now
// is used.
func Filename(now time.Time, format Format) string {
	return FilenamePrefix + now.Format(filenameTimeLayout) + format.Extension()
}

// WriterFactory creates a report writer for the given destination.
type WriterFactory func(output io.Writer) (Writer, error)

// WriteFile renders table into path. The report is written to a temporary
// file in the same directory and renamed over path once it is complete, so
// a failed write never leaves a partial report behind. An existing file at
// path is replaced.
//
// Any failure is returned as *IOError.
func WriteFile(path string, table *model.Table, newWriter WriterFactory) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w, err := newWriter(tmp)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	if _, err = w.Write(table); err != nil {
		return &IOError{Path: path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &IOError{Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &IOError{Path: path, Err: err}
	}
	// CreateTemp uses 0600; reports are shared like any other output file.
	if err = os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // report files are not secret
		return &IOError{Path: path, Err: err}
	}
	if err = os.Rename(tmpName, path); err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}

// Exists reports whether a file already exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
