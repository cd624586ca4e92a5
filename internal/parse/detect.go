package parse

import (
	"path/filepath"
	"sort"
	"strings"
)

// Format identifies an import file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

// formatHints maps each format to its file extension and the content-type
// substring that identifies it.
var formatHints = []struct {
	format      Format
	extension   string
	contentType string
}{
	{FormatCSV, ".csv", "csv"},
	{FormatJSON, ".json", "json"},
	{FormatXML, ".xml", "xml"},
}

// Detect selects a format from the file name, falling back to the
// declared content type. The content itself is never inspected: a wrong
// extension is the caller's error.
func Detect(fileName, contentType string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if ext != "" {
		for _, h := range formatHints {
			if ext == h.extension {
				return h.format, nil
			}
		}
	}

	ct := strings.ToLower(contentType)
	if ct != "" {
		for _, h := range formatHints {
			if strings.Contains(ct, h.contentType) {
				return h.format, nil
			}
		}
	}

	return "", &UnsupportedFormatError{FileName: fileName, ContentType: contentType}
}

// SupportedExtension reports whether name carries one of the supported
// extensions.
func SupportedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, h := range formatHints {
		if ext == h.extension {
			return true
		}
	}
	return false
}

func extensionList() []string {
	out := make([]string, 0, len(formatHints))
	for _, h := range formatHints {
		out = append(out, h.extension)
	}
	sort.Strings(out)
	return out
}
