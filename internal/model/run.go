package model

import "time"

// ExportRun is the state of one export, filled in step by step by the pipeline.
type ExportRun struct {
	// SiteName is the site whose endpoints are exported.
	SiteName string `json:"site_name"`

	// StartedAt is when the run began. The report file name uses this time.
	StartedAt time.Time `json:"started_at"`

	// Collection is the fetched endpoint collection.
	Collection *Collection `json:"-"`

	// Table is the collection flattened for the report.
	Table *Table `json:"-"`

	// ReportFile is the path of the written report, empty until it is written.
	ReportFile string `json:"report_file,omitempty"`

	// NoData is set when the site has no endpoints. The pipeline stops
	// without writing a report.
	NoData bool `json:"no_data"`

	// PerformedSteps lists the names of the steps that completed.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error is the error that stopped the run, if any.
	Error error `json:"-"`
}

// NewExportRun creates a run for the given site.
func NewExportRun(siteName string, startedAt time.Time) *ExportRun {
	return &ExportRun{
		SiteName:       siteName,
		StartedAt:      startedAt,
		PerformedSteps: make([]string, 0),
	}
}

// EntryCount returns the number of fetched entries.
func (r *ExportRun) EntryCount() int {
	return r.Collection.Len()
}
