package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/nao1215/ndireport/internal/model"
)

// MarkdownWriter outputs the table as a GitHub-flavored Markdown document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...Option) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output, opts),
	}
}

// Write outputs the table in Markdown format.
func (w *MarkdownWriter) Write(table *model.Table) (int, error) {
	if table == nil {
		table = model.BuildTable(nil)
	}

	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, table)
	w.writeEndpoints(md, table)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and export summary.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, table *model.Table) {
	md.H1("Endpoint Report")
	md.PlainText("")

	rows := make([][]string, 0, 4)
	if w.meta.siteName != "" {
		rows = append(rows, []string{"Site", "`" + w.meta.siteName + "`"})
	}
	if !w.meta.generatedAt.IsZero() {
		rows = append(rows, []string{"Generated", w.meta.generatedAt.Format("2006-01-02 15:04:05 MST")})
	}
	rows = append(rows,
		[]string{"Endpoints", strconv.Itoa(table.RowCount())},
		[]string{"Columns", strconv.Itoa(table.ColumnCount())},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeEndpoints writes one table row per endpoint.
func (w *MarkdownWriter) writeEndpoints(md *markdown.Markdown, table *model.Table) {
	md.H2("Endpoints")
	md.PlainText("")

	if table.RowCount() == 0 || table.ColumnCount() == 0 {
		md.PlainText("No endpoints found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = escapeCell(cell)
		}
		rows = append(rows, cells)
	}

	md.Table(markdown.TableSet{
		Header: table.Headers(),
		Rows:   rows,
	})
	md.PlainText("")
}

// cellReplacer keeps a cell value inside its table cell.
var cellReplacer = strings.NewReplacer(
	"|", `\|`,
	"\r\n", "<br>",
	"\n", "<br>",
)

func escapeCell(s string) string {
	return cellReplacer.Replace(s)
}
