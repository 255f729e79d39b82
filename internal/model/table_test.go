package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

// decodeRecords decodes a JSON array of objects into records.
func decodeRecords(t *testing.T, text string) []*Record {
	t.Helper()

	var records []*Record
	if err := json.Unmarshal([]byte(text), &records); err != nil {
		t.Fatalf("failed to decode records: %v", err)
	}
	return records
}

// TestBuildTable tests flattening records into a table.
func TestBuildTable(t *testing.T) {
	t.Parallel()

	t.Run("flattens tags example", func(t *testing.T) {
		t.Parallel()

		records := decodeRecords(t, `[{"id":1,"tags":[{"name":"a"},{"name":"b"}]},{"id":2,"tags":[]}]`)
		table := BuildTable(records)

		if want := []string{"id", "tags"}; !reflect.DeepEqual(table.Columns, want) {
			t.Errorf("Columns = %v, expected %v", table.Columns, want)
		}
		want := [][]string{{"1", "a, b"}, {"2", ""}}
		if !reflect.DeepEqual(table.Rows, want) {
			t.Errorf("Rows = %v, expected %v", table.Rows, want)
		}
	})

	t.Run("columns are the union in first-seen order", func(t *testing.T) {
		t.Parallel()

		records := decodeRecords(t, `[{"b":1,"a":2},{"c":3,"a":4},{"d":5}]`)
		table := BuildTable(records)

		if want := []string{"b", "a", "c", "d"}; !reflect.DeepEqual(table.Columns, want) {
			t.Errorf("Columns = %v, expected %v", table.Columns, want)
		}
		if table.RowCount() != 3 || table.ColumnCount() != 4 {
			t.Fatalf("got %dx%d table, expected 3x4", table.RowCount(), table.ColumnCount())
		}
		want := [][]string{
			{"1", "2", "", ""},
			{"", "4", "3", ""},
			{"", "", "", "5"},
		}
		if !reflect.DeepEqual(table.Rows, want) {
			t.Errorf("Rows = %v, expected %v", table.Rows, want)
		}
	})

	t.Run("every row is rectangular", func(t *testing.T) {
		t.Parallel()

		records := decodeRecords(t, `[{"a":1},{"a":1,"b":2,"c":3},{}]`)
		table := BuildTable(records)

		for i, row := range table.Rows {
			if len(row) != len(table.Columns) {
				t.Errorf("row %d has %d cells, expected %d", i, len(row), len(table.Columns))
			}
		}
	})

	t.Run("zero entries", func(t *testing.T) {
		t.Parallel()

		table := BuildTable(nil)
		if table.RowCount() != 0 || table.ColumnCount() != 0 {
			t.Errorf("got %dx%d table, expected empty", table.RowCount(), table.ColumnCount())
		}
	})

	t.Run("nil records are skipped", func(t *testing.T) {
		t.Parallel()

		table := BuildTable([]*Record{nil, NewRecord().Set("a", "x"), nil})
		if table.RowCount() != 1 {
			t.Fatalf("RowCount() = %d, expected 1", table.RowCount())
		}
		if table.Rows[0][0] != "x" {
			t.Errorf("cell = %q, expected %q", table.Rows[0][0], "x")
		}
	})

	t.Run("headers are title cased", func(t *testing.T) {
		t.Parallel()

		table := BuildTable([]*Record{NewRecord().Set("mac_address", "x").Set("ip", "y")})
		if want := []string{"Mac Address", "Ip"}; !reflect.DeepEqual(table.Headers(), want) {
			t.Errorf("Headers() = %v, expected %v", table.Headers(), want)
		}
	})
}

// TestHeaderTitle tests the column title transform and its reverse.
func TestHeaderTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		column string
		want   string
	}{
		{"mac_address", "Mac Address"},
		{"ip", "Ip"},
		{"node_name", "Node Name"},
		{"vlan", "Vlan"},
		{"ipv4_addr", "Ipv4 Addr"},
		{"macAddress", "Macaddress"},
		{"ipv4Address", "Ipv4Address"},
		{"l2vni_id", "L2Vni Id"},
		{"vrf2name", "Vrf2Name"},
		{"MAC_ADDRESS", "Mac Address"},
		{"802_1q_tag", "802 1Q Tag"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			t.Parallel()

			if got := HeaderTitle(tt.column); got != tt.want {
				t.Errorf("HeaderTitle(%q) = %q, expected %q", tt.column, got, tt.want)
			}
		})
	}

	t.Run("HeaderKey reverses snake_case titles", func(t *testing.T) {
		t.Parallel()

		for _, column := range []string{"mac_address", "ip", "node_name", "ipv4_addr", "bridge_domain_name"} {
			if got := HeaderKey(HeaderTitle(column)); got != column {
				t.Errorf("HeaderKey(HeaderTitle(%q)) = %q", column, got)
			}
		}
	})
}
