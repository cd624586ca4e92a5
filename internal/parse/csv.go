package parse

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

func init() {
	Register(FormatCSV, ParserFunc(parseCSV))
}

// parseCSV reads a header row followed by data rows.
//
// Quoting follows RFC 4180 via encoding/csv. Rows shorter than the header
// are padded with empty values; cells beyond the header are ignored; blank
// rows are skipped without consuming a record index. A row that breaks the
// quoting rules becomes a record-local error and reading continues with the
// next physical line, even when an unterminated quote ran on to the end of
// the file.
func parseCSV(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, malformed(FormatCSV, "read file", err)
	}

	data, err = checkUTF8(FormatCSV, data)
	if err != nil {
		return nil, err
	}

	cr := newCSVReader(data)

	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	var records []Record
	index := 0
	// base is the number of physical lines before cr's first line.
	base := 0

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var parseErr *csv.ParseError
		if err != nil && !errors.As(err, &parseErr) {
			return nil, malformed(FormatCSV, "read row", err)
		}

		if parseErr == nil && isEmptyRow(row) {
			continue
		}

		index++
		if parseErr != nil {
			start := base + parseErr.StartLine
			b := newRecordBuilder(index, start)
			b.rec.Err = fmt.Errorf("line %d: %w", start, parseErr.Err)
			records = append(records, b.build())

			// An open quote swallowed the lines after its row. Blame the row
			// alone and read on from the line below it with the same header.
			if parseErr.Line > parseErr.StartLine {
				cr = newCSVReader(skipLines(data, start))
				base = start
			}
			continue
		}

		line, _ := cr.FieldPos(0)
		b := newRecordBuilder(index, base+line)

		for col, name := range header {
			if name == "" {
				continue
			}
			value := ""
			if col < len(row) {
				value = CleanCell(row[col])
			}
			b.set(name, value)
		}
		records = append(records, b.build())
	}

	return records, nil
}

func newCSVReader(data []byte) *csv.Reader {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	return cr
}

// skipLines returns data after its first n lines.
func skipLines(data []byte, n int) []byte {
	for ; n > 0; n-- {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return nil
		}
		data = data[i+1:]
	}
	return data
}

// readHeader reads the first non-blank row and normalizes its names. At
// least one name must be a known field, otherwise the first row is data
// and the header is missing.
func readHeader(cr *csv.Reader) ([]string, error) {
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, malformed(FormatCSV, "missing header row", nil)
		}
		if err != nil {
			return nil, malformed(FormatCSV, "unreadable header row", err)
		}
		if isEmptyRow(row) {
			continue
		}

		header := make([]string, len(row))
		known := false
		for i, cell := range row {
			header[i] = NormalizeName(CleanCell(cell))
			if isKnownField(header[i]) {
				known = true
			}
		}
		if !known {
			return nil, malformed(FormatCSV, "missing header row", fmt.Errorf("no recognised column names in %q", row))
		}
		return header, nil
	}
}
