// Package report renders an endpoint table into a report file.
//
// This package contains writers for different output formats:
//   - XLSXWriter: styled spreadsheet, the default report
//   - MarkdownWriter: GitHub-flavored Markdown for sharing in tickets and wikis
//   - JSONWriter: {"columns": [...], "rows": [[...]]} for tool integration
//
// Writers implement the Writer interface. WriteFile renders a writer into a
// file atomically, and Filename names the file after the export time.
package report
