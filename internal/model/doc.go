// Package model defines the data structures shared by every stage of an
// endpoint export.
//
// This package contains the following main types:
//   - Credentials: The login body sent to the controller
//   - Record: One endpoint as returned by the controller, with key order kept
//   - Collection: The endpoint collection of a site
//   - Table: Records flattened into a rectangular grid of display strings
//   - ExportRun: The state threaded through the export pipeline
//
// The types live in their own package because the ndi client, the report
// writers, the pipeline and the history database all use them.
package model
