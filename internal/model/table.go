package model

// Table is a collection flattened into a rectangular grid of display strings.
// Every row has exactly len(Columns) cells.
type Table struct {
	// Columns holds the raw field names, in first-seen order across the records.
	Columns []string `json:"columns"`

	// Rows holds one row per record, one formatted cell per column.
	Rows [][]string `json:"rows"`
}

// BuildTable flattens records into a Table.
//
// The column set is the union of the record keys in the order they are first
// seen scanning the records in order. A record without a given key gets the
// empty placeholder in that column. Nil records are skipped.
func BuildTable(entries []*Record) *Table {
	table := &Table{
		Columns: make([]string, 0),
		Rows:    make([][]string, 0, len(entries)),
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		for _, key := range entry.Keys() {
			if !seen[key] {
				seen[key] = true
				table.Columns = append(table.Columns, key)
			}
		}
	}

	for _, entry := range entries {
		if entry == nil {
			continue
		}
		row := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			row[i] = FormatValue(entry.Get(col))
		}
		table.Rows = append(table.Rows, row)
	}

	return table
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// Headers returns the display titles of the columns.
func (t *Table) Headers() []string {
	if t == nil {
		return nil
	}
	headers := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		headers[i] = HeaderTitle(col)
	}
	return headers
}
