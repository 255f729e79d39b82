package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/ndireport/internal/model"
)

// DBFileName is the name of the history database file.
const DBFileName = "ndireport.db"

// storedTimeLayout is fixed width so that timestamps sort as text.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryDB provides SQLite-based storage for the export history.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error
// wrapping os.ErrNotExist is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("history database %s: %w", dbPath, err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite reads the open mode from the DSN: rw refuses to
	// create a missing file, rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per successful export
	CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site_name TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		total_items INTEGER NOT NULL,
		entries INTEGER NOT NULL,
		columns INTEGER NOT NULL,
		report_file TEXT NOT NULL,
		digest TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exports_site ON exports(site_name);
	CREATE INDEX IF NOT EXISTS idx_exports_timestamp ON exports(timestamp);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// ExportRecord is one recorded export.
type ExportRecord struct {
	// ID is the unique identifier of the export in the database.
	ID int64

	// SiteName is the exported site.
	SiteName string

	// Timestamp is when the export started.
	Timestamp time.Time

	// TotalItems is the totalItemsCount the controller reported.
	TotalItems int

	// Entries is the number of endpoints fetched.
	Entries int

	// Columns is the number of report columns.
	Columns int

	// ReportFile is the path of the written report.
	ReportFile string

	// Digest is the hex SHA3-256 of the fetched entries.
	Digest string

	// Changed is set by ListExports when the digest differs from the
	// previous export of the same site.
	Changed bool
}

// ErrIncompleteRun is returned by NewExportRecord for a run without a
// collection, table or report file.
var ErrIncompleteRun = errors.New("export run has not written a report")

// NewExportRecord creates the history record of a completed run.
func NewExportRecord(run *model.ExportRun) (*ExportRecord, error) {
	if run == nil || run.Collection == nil || run.Table == nil || run.ReportFile == "" {
		return nil, ErrIncompleteRun
	}

	digest, err := Digest(run.Collection.Entries)
	if err != nil {
		return nil, err
	}

	return &ExportRecord{
		SiteName:   run.SiteName,
		Timestamp:  run.StartedAt,
		TotalItems: run.Collection.TotalItemsCount,
		Entries:    run.Collection.Len(),
		Columns:    run.Table.ColumnCount(),
		ReportFile: run.ReportFile,
		Digest:     digest,
	}, nil
}

// Digest returns the hex SHA3-256 of the JSON encoding of entries.
// Records encode with their source key order, so the same inventory
// returned in the same shape gives the same digest.
func Digest(entries []*model.Record) (string, error) {
	if entries == nil {
		entries = []*model.Record{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode entries: %w", err)
	}
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SaveExport stores an export record and returns its ID.
func (hdb *HistoryDB) SaveExport(ctx context.Context, record *ExportRecord) (int64, error) {
	query := `
	INSERT INTO exports (site_name, timestamp, total_items, entries, columns, report_file, digest)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := hdb.db.ExecContext(ctx, query,
		record.SiteName,
		record.Timestamp.UTC().Format(storedTimeLayout),
		record.TotalItems,
		record.Entries,
		record.Columns,
		record.ReportFile,
		record.Digest,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save export: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get export id: %w", err)
	}
	record.ID = id
	return id, nil
}

// ListExports returns the exports of a site, newest first, with Changed
// set on every export whose digest differs from the export before it.
func (hdb *HistoryDB) ListExports(ctx context.Context, siteName string) ([]ExportRecord, error) {
	query := `
	SELECT id, site_name, timestamp, total_items, entries, columns, report_file, digest
	FROM exports
	WHERE site_name = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, siteName)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	var records []ExportRecord
	for rows.Next() {
		var rec ExportRecord
		var timestamp string
		if err := rows.Scan(
			&rec.ID,
			&rec.SiteName,
			&timestamp,
			&rec.TotalItems,
			&rec.Entries,
			&rec.Columns,
			&rec.ReportFile,
			&rec.Digest,
		); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		rec.Timestamp = parseTimestamp(timestamp)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The oldest export has nothing to compare against.
	for i := 0; i+1 < len(records); i++ {
		records[i].Changed = records[i].Digest != records[i+1].Digest
	}

	return records, nil
}

// LatestExport returns the most recent export of a site, or nil if the site
// has never been exported.
func (hdb *HistoryDB) LatestExport(ctx context.Context, siteName string) (*ExportRecord, error) {
	records, err := hdb.ListExports(ctx, siteName)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	return &records[0], nil
}

// ListSites returns all sites with at least one recorded export.
func (hdb *HistoryDB) ListSites(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT site_name FROM exports
	ORDER BY site_name
	`

	rows, err := hdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
