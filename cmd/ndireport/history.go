package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/ndireport/internal/config"
	"github.com/nao1215/ndireport/internal/database"
)

// historyDateLayout is the timestamp layout of the history listing.
const historyDateLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "Show recorded exports of a site",
		Long: `History lists the exports recorded with --history, newest first.

An export is marked as changed when its endpoint inventory differs from the
export before it.

Examples:
  # List the exports of a site
  ndireport history fabric-1

  # List every site with recorded exports
  ndireport history --list-sites

  # Print the exports as JSON
  ndireport history --json fabric-1`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-sites", "L", false,
		"List all sites with recorded exports")
	cmd.Flags().BoolP("json", "j", false,
		"Output the history in JSON format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listSites, err := cmd.Flags().GetBool("list-sites")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database
	var site string
	if !listSites {
		if len(args) == 0 {
			return errors.New("site name is required (use --list-sites to see recorded sites)")
		}
		site = strings.TrimSpace(args[0])
	}

	out := cmd.OutOrStdout()

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(out, "No export history recorded yet.")
			fmt.Fprintln(out, "\nUse 'ndireport export --history' to record exports.")
			return nil
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if listSites {
		return listRecordedSites(ctx, db, out)
	}
	return listExportHistory(ctx, db, site, out, jsonOutput)
}

// listRecordedSites prints every site with at least one recorded export.
func listRecordedSites(ctx context.Context, db *database.HistoryDB, out io.Writer) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return err
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No exported sites found in the database.")
		return nil
	}

	fmt.Fprintf(out, "Exported sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(out, "  • %s\n", site)
	}
	fmt.Fprintln(out, "\nUse 'ndireport history <site>' to see the exports of a site.")
	return nil
}

// historyEntry is the JSON form of one recorded export.
type historyEntry struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"timestamp"`
	TotalItems int    `json:"totalItems"`
	Entries    int    `json:"entries"`
	Columns    int    `json:"columns"`
	ReportFile string `json:"reportFile"`
	Digest     string `json:"digest"`
	Changed    bool   `json:"changed"`
}

// listExportHistory prints the exports of site, newest first.
func listExportHistory(ctx context.Context, db *database.HistoryDB, site string, out io.Writer, jsonOutput bool) error {
	records, err := db.ListExports(ctx, site)
	if err != nil {
		return err
	}

	if jsonOutput {
		entries := make([]historyEntry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, historyEntry{
				ID:         rec.ID,
				Timestamp:  rec.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
				TotalItems: rec.TotalItems,
				Entries:    rec.Entries,
				Columns:    rec.Columns,
				ReportFile: rec.ReportFile,
				Digest:     rec.Digest,
				Changed:    rec.Changed,
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No export history found for %s\n", site)
		return nil
	}

	fmt.Fprintf(out, "Export history for %s (%d exports):\n\n", site, len(records))
	fmt.Fprintf(out, "  %-6s  %-20s  %-9s  %-8s  %s\n", "ID", "Date", "Endpoints", "Changed", "Report")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))
	for _, rec := range records {
		changed := ""
		if rec.Changed {
			changed = "yes"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-9d  %-8s  %s\n",
			rec.ID,
			rec.Timestamp.Local().Format(historyDateLayout),
			rec.Entries,
			changed,
			rec.ReportFile,
		)
	}
	return nil
}
