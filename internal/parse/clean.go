package parse

// clean.go removes spreadsheet export artifacts from raw values.
//
// Exports from Excel and similar tools commonly carry a UTF-8 byte order
// mark on the first cell and wrap values as ="value" to stop the
// spreadsheet from reformatting them. Neither is part of the data.

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

const utf8BOM = "\uFEFF"

// CleanCell trims whitespace and strips a leading BOM and the Excel
// formula wrapper (="...") from a value.
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, utf8BOM)
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return s
}

// checkUTF8 returns the data without a leading BOM, or an error naming
// the byte offset of the first invalid sequence.
func checkUTF8(format Format, data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	if utf8.Valid(data) {
		return data, nil
	}

	offset := 0
	for offset < len(data) {
		r, size := utf8.DecodeRune(data[offset:])
		if r == utf8.RuneError && size == 1 {
			break
		}
		offset += size
	}
	return nil, malformed(format, "file is not valid UTF-8", fmt.Errorf("invalid byte at offset %d", offset))
}

// isEmptyRow reports whether every cell is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
