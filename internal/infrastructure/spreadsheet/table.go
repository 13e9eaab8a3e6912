package spreadsheet

// ColumnType is the inferred type of a column's values
type ColumnType string

const (
	ColumnString  ColumnType = "string"
	ColumnInteger ColumnType = "integer"
	ColumnDecimal ColumnType = "decimal"
	ColumnDate    ColumnType = "date"
	ColumnBoolean ColumnType = "boolean"
)

// Row is one data row of a loaded table. LineNumber follows spreadsheet
// conventions: the header occupies line 1, the first data row is line 2.
type Row struct {
	LineNumber int
	Cells      map[string]string
}

// Get returns the cell value for a column, or "" when absent
func (r *Row) Get(column string) string {
	return r.Cells[column]
}

// IsEmpty reports whether every cell in the row is empty
func (r *Row) IsEmpty() bool {
	for _, v := range r.Cells {
		if v != "" {
			return false
		}
	}
	return true
}

// Table is an in-memory parsed spreadsheet: an ordered column set and the
// data rows keyed by cleaned column name. Every row carries the full column
// set; missing trailing cells are filled during load.
type Table struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the table contains the named column
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// RowCount returns the number of data rows
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// Metadata describes a loaded table. The quality metrics are informational
// only and never gate the pipeline.
type Metadata struct {
	Filename          string                `json:"filename"`
	RowCount          int                   `json:"row_count"`
	ColumnCount       int                   `json:"column_count"`
	Columns           []string              `json:"columns"`
	ColumnTypes       map[string]ColumnType `json:"column_types"`
	EmptyRowsRemoved  int                   `json:"empty_rows_removed"`
	DuplicatesRemoved int                   `json:"duplicates_removed"`
	NullCellPercent   float64               `json:"null_cell_percent"`
	CompletenessScore float64               `json:"completeness_score"`
}
