package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/ndireport/internal/model"
)

// JSONWriter outputs the table as {"columns": [...], "rows": [[...]]}.
// Columns are the raw field names so that the output can be joined back to
// the controller's API.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...Option) *JSONWriter {
	return &JSONWriter{
		baseWriter: newBaseWriter(output, opts),
	}
}

// Write outputs the table in pretty-printed JSON format.
func (w *JSONWriter) Write(table *model.Table) (int, error) {
	if table == nil {
		table = model.BuildTable(nil)
	}

	// Cell values are written as the controller sent them, so "<" and "&"
	// in descriptions stay readable.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(table); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}
