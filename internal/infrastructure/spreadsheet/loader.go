package spreadsheet

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxFileSize is the default upload ceiling in bytes (50MB)
	DefaultMaxFileSize = 50 * 1024 * 1024
	// DefaultMaxRows is the default row-count ceiling
	DefaultMaxRows = 100000
)

// Loader turns raw uploaded bytes into a cleaned Table. The filename is used
// only to pick the parser by extension.
type Loader struct {
	maxFileSize int64
	maxRows     int
	logger      *zap.Logger
}

// LoaderOption is a functional option for Loader configuration
type LoaderOption func(*Loader)

// WithMaxFileSize sets the byte ceiling for uploads
func WithMaxFileSize(size int64) LoaderOption {
	return func(l *Loader) {
		l.maxFileSize = size
	}
}

// WithMaxRows sets the row-count ceiling
func WithMaxRows(rows int) LoaderOption {
	return func(l *Loader) {
		l.maxRows = rows
	}
}

// WithLogger sets the logger used for data-quality reporting
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader with the given options
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		maxFileSize: DefaultMaxFileSize,
		maxRows:     DefaultMaxRows,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses, cleans and deduplicates an uploaded spreadsheet. The returned
// metadata is informational; only the errors gate the pipeline.
func (l *Loader) Load(data []byte, filename string) (*Table, *Metadata, error) {
	if int64(len(data)) > l.maxFileSize {
		return nil, nil, NewFormatError(filename, ErrCodeFileTooLarge,
			fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, len(data), l.maxFileSize))
	}

	var (
		header  []string
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		header, records, err = parseCSV(data)
	case ".xlsx", ".xls":
		header, records, err = parseExcel(data)
	default:
		return nil, nil, NewFormatError(filename, ErrCodeUnsupportedFormat, ErrUnsupportedFormat)
	}
	if err != nil {
		code := ErrCodeParse
		if err == ErrEmptyFile {
			code = ErrCodeEmptyFile
		}
		return nil, nil, NewFormatError(filename, code, err)
	}

	if len(records) > l.maxRows {
		return nil, nil, NewFormatError(filename, ErrCodeTooManyRows,
			fmt.Errorf("%w: %d rows (limit %d)", ErrTooManyRows, len(records), l.maxRows))
	}

	columns := cleanColumnNames(header)
	columns, records = dropArtifactColumns(columns, records)
	if len(columns) == 0 {
		return nil, nil, NewFormatError(filename, ErrCodeEmptyFile, ErrEmptyFile)
	}

	table, meta := l.buildTable(columns, records)
	if table.RowCount() == 0 {
		return nil, nil, NewFormatError(filename, ErrCodeEmptyFile, ErrEmptyFile)
	}

	meta.Filename = filename
	if meta.DuplicatesRemoved > 0 || meta.EmptyRowsRemoved > 0 {
		l.logger.Info("dropped rows during load",
			zap.String("filename", filename),
			zap.Int("duplicates", meta.DuplicatesRemoved),
			zap.Int("empty", meta.EmptyRowsRemoved),
		)
	}

	return table, meta, nil
}

// buildTable assembles the cleaned rows, drops empty and duplicate rows,
// fills absent cells and computes quality metrics.
func (l *Loader) buildTable(columns []string, records [][]string) (*Table, *Metadata) {
	table := &Table{Columns: columns}
	meta := &Metadata{
		ColumnCount: len(columns),
		Columns:     columns,
	}

	seen := make(map[string]bool, len(records))
	nullCells := 0
	totalCells := 0

	for i, record := range records {
		row := Row{
			// header is line 1, first data row is line 2
			LineNumber: i + 2,
			Cells:      make(map[string]string, len(columns)),
		}
		for j, col := range columns {
			if j < len(record) {
				row.Cells[col] = strings.TrimSpace(record[j])
			} else {
				row.Cells[col] = ""
			}
		}

		if row.IsEmpty() {
			meta.EmptyRowsRemoved++
			continue
		}

		key := rowKey(columns, row.Cells)
		if seen[key] {
			meta.DuplicatesRemoved++
			continue
		}
		seen[key] = true

		for _, col := range columns {
			totalCells++
			if row.Cells[col] == "" {
				nullCells++
			}
		}
		table.Rows = append(table.Rows, row)
	}

	meta.ColumnTypes = inferColumnTypes(table)
	fillEmptyCells(table, meta.ColumnTypes)

	meta.RowCount = table.RowCount()
	if totalCells > 0 {
		meta.NullCellPercent = float64(nullCells) / float64(totalCells) * 100
		meta.CompletenessScore = 100 - meta.NullCellPercent
	}

	return table, meta
}

// cleanColumnNames lowercases headers, collapses non-alphanumeric runs to
// single underscores, and substitutes placeholders for blank or duplicate
// names so every column is uniquely addressable.
func cleanColumnNames(header []string) []string {
	cleaned := make([]string, len(header))
	used := make(map[string]int, len(header))

	for i, raw := range header {
		name := normalizeColumnName(raw)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n, ok := used[name]; ok {
			used[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		used[name] = 1
		cleaned[i] = name
	}

	return cleaned
}

// normalizeColumnName lowercases and collapses non-alphanumeric runs
func normalizeColumnName(raw string) string {
	var sb strings.Builder
	lastUnderscore := true // suppress leading underscore
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			sb.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(sb.String(), "_")
}

// dropArtifactColumns removes parser artifacts: unnamed index columns that
// carry no data. Placeholder-named columns are kept when they hold values.
func dropArtifactColumns(columns []string, records [][]string) ([]string, [][]string) {
	keep := make([]int, 0, len(columns))
	for i, col := range columns {
		if strings.HasPrefix(col, "column_") || strings.HasPrefix(col, "unnamed") {
			empty := true
			for _, record := range records {
				if i < len(record) && strings.TrimSpace(record[i]) != "" {
					empty = false
					break
				}
			}
			if empty {
				continue
			}
		}
		keep = append(keep, i)
	}

	if len(keep) == len(columns) {
		return columns, records
	}

	newColumns := make([]string, len(keep))
	for n, i := range keep {
		newColumns[n] = columns[i]
	}
	newRecords := make([][]string, len(records))
	for r, record := range records {
		newRecord := make([]string, len(keep))
		for n, i := range keep {
			if i < len(record) {
				newRecord[n] = record[i]
			}
		}
		newRecords[r] = newRecord
	}
	return newColumns, newRecords
}

// rowKey builds a deduplication key over the full cell set in column order
func rowKey(columns []string, cells map[string]string) string {
	var sb strings.Builder
	for _, col := range columns {
		sb.WriteString(cells[col])
		sb.WriteByte('\x1f')
	}
	return sb.String()
}

// fillEmptyCells substitutes type-appropriate defaults for empty cells:
// "0" for numeric columns, "" (already present) for everything else.
func fillEmptyCells(table *Table, types map[string]ColumnType) {
	for _, col := range table.Columns {
		t := types[col]
		if t != ColumnInteger && t != ColumnDecimal {
			continue
		}
		for i := range table.Rows {
			if table.Rows[i].Cells[col] == "" {
				table.Rows[i].Cells[col] = "0"
			}
		}
	}
}

// inferenceDateLayouts are the layouts tried during column type inference
var inferenceDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
}

// inferColumnTypes infers a type per column from its non-empty cells. A
// column only gets a non-string type when every populated cell agrees.
func inferColumnTypes(table *Table) map[string]ColumnType {
	types := make(map[string]ColumnType, len(table.Columns))

	for _, col := range table.Columns {
		inferred := ColumnType("")
		for _, row := range table.Rows {
			v := row.Cells[col]
			if v == "" {
				continue
			}
			t := inferCellType(v)
			if inferred == "" {
				inferred = t
				continue
			}
			if inferred == t {
				continue
			}
			// integer cells inside a decimal column stay decimal
			if (inferred == ColumnInteger && t == ColumnDecimal) ||
				(inferred == ColumnDecimal && t == ColumnInteger) {
				inferred = ColumnDecimal
				continue
			}
			inferred = ColumnString
			break
		}
		if inferred == "" {
			inferred = ColumnString
		}
		types[col] = inferred
	}

	return types
}

// inferCellType classifies a single non-empty cell value
func inferCellType(v string) ColumnType {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return ColumnInteger
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return ColumnDecimal
	}
	switch strings.ToLower(v) {
	case "true", "false", "yes", "no":
		return ColumnBoolean
	}
	for _, layout := range inferenceDateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return ColumnDate
		}
	}
	return ColumnString
}
