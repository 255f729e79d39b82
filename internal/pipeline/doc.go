// Package pipeline runs an endpoint export as a sequence of steps.
//
// An export logs in to the controller, fetches the site's endpoint
// collection, flattens it into a table and writes the report. Each stage is
// a Step that receives the shared model.ExportRun and fills in its part.
// The pipeline stops at the first failing step, or cleanly when a step
// finds there is nothing to report.
package pipeline
