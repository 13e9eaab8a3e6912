package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// decodeText converts raw CSV bytes to UTF-8. Detection is heuristic:
// UTF-16 byte order marks win, then valid UTF-8 is passed through, and
// anything else is decoded as Latin-1, which cannot fail. A CSV upload is
// never rejected on encoding alone.
func decodeText(data []byte) ([]byte, error) {
	if len(data) >= 2 {
		switch {
		case data[0] == 0xFF && data[1] == 0xFE:
			return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		case data[0] == 0xFE && data[1] == 0xFF:
			return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		}
	}

	// Strip UTF-8 BOM: 0xEF, 0xBB, 0xBF
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}

	if utf8.Valid(data) {
		return data, nil
	}

	return charmap.ISO8859_1.NewDecoder().Bytes(data)
}

// parseCSV parses CSV bytes into a header slice and raw records
func parseCSV(data []byte) ([]string, [][]string, error) {
	decoded, err := decodeText(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode file: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // allow ragged rows

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyFile
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read row %d: %w", len(records)+2, err)
		}
		records = append(records, record)
	}

	return header, records, nil
}
