package parse

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Parser decodes one file format into candidate records.
type Parser interface {
	Parse(r io.Reader) ([]Record, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(r io.Reader) ([]Record, error)

// Parse calls f(r).
func (f ParserFunc) Parse(r io.Reader) ([]Record, error) {
	return f(r)
}

var (
	registry   = make(map[Format]Parser)
	registryMu sync.RWMutex
)

// Register adds a parser for a format.
// Panics if a parser for the format is already registered.
func Register(format Format, p Parser) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[format]; exists {
		panic(fmt.Sprintf("parser already registered: %s", format))
	}
	registry[format] = p
}

// For returns the parser registered for a format.
func For(format Format) (Parser, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := registry[format]
	return p, ok
}

// Formats returns all registered formats, sorted.
func Formats() []Format {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Format, 0, len(registry))
	for f := range registry {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Parse decodes r with the parser registered for format.
func Parse(format Format, r io.Reader) ([]Record, error) {
	p, ok := For(format)
	if !ok {
		return nil, &UnsupportedFormatError{FileName: "*." + string(format)}
	}
	return p.Parse(r)
}
