package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/ndireport/internal/database"
)

// seedHistory records exports of fabric-1 in dir, oldest first.
func seedHistory(t *testing.T, dir string, digests ...string) {
	t.Helper()

	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	start := time.Date(2024, 1, 31, 14, 0, 0, 0, time.UTC)
	for i, digest := range digests {
		rec := &database.ExportRecord{
			SiteName:   "fabric-1",
			Timestamp:  start.Add(time.Duration(i) * time.Hour),
			TotalItems: 2,
			Entries:    2,
			Columns:    4,
			ReportFile: "endpoints_report_x.xlsx",
			Digest:     digest,
		}
		if _, err := db.SaveExport(context.Background(), rec); err != nil {
			t.Fatalf("failed to save export: %v", err)
		}
	}
}

func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewHistoryCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	if cmd.Use != "history [site]" {
		t.Errorf("expected use 'history [site]', got %q", cmd.Use)
	}
	flag := cmd.Flags().Lookup("list-sites")
	if flag == nil {
		t.Fatal("expected list-sites flag")
	}
	if flag.Shorthand != "L" {
		t.Errorf("expected shorthand 'L', got %q", flag.Shorthand)
	}
	if cmd.Flags().Lookup("db-dir") == nil {
		t.Error("expected db-dir flag")
	}
}

func TestRunHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("requires a site", func(t *testing.T) {
		t.Parallel()

		_, err := runHistory(t, "--db-dir", t.TempDir())
		if err == nil {
			t.Fatal("expected error without site")
		}
		if !strings.Contains(err.Error(), "site name is required") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing database", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", t.TempDir(), "fabric-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No export history recorded yet.") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("lists exports with change marker", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		seedHistory(t, dir, "aaa", "aaa", "bbb")

		out, err := runHistory(t, "--db-dir", dir, "fabric-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Export history for fabric-1 (3 exports)") {
			t.Errorf("unexpected header:\n%s", out)
		}
		if got := strings.Count(out, " yes "); got != 1 {
			t.Errorf("expected one changed export, got %d:\n%s", got, out)
		}
	})

	t.Run("unknown site", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		seedHistory(t, dir, "aaa")

		out, err := runHistory(t, "--db-dir", dir, "fabric-9")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No export history found for fabric-9") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		seedHistory(t, dir, "aaa", "bbb")

		out, err := runHistory(t, "--db-dir", dir, "--json", "fabric-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var entries []historyEntry
		if err := json.Unmarshal([]byte(out), &entries); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Digest != "bbb" || !entries[0].Changed {
			t.Errorf("expected newest export first and changed, got %+v", entries[0])
		}
		if entries[1].Changed {
			t.Error("oldest export has nothing to compare against")
		}
	})

	t.Run("list sites", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		seedHistory(t, dir, "aaa")

		out, err := runHistory(t, "--db-dir", dir, "--list-sites")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Exported sites (1):") || !strings.Contains(out, "fabric-1") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}
