// Package database records the history of endpoint exports in SQLite.
//
// History is opt-in. Each successful export stores the site, time, entry and
// column counts, the report path and a SHA3-256 digest of the fetched
// entries, so that `ndireport history` can show when a site's endpoint
// inventory changed between runs. The database lives in ndireport.db under
// the XDG data directory.
package database
