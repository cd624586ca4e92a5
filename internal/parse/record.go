// Package parse turns raw import files into ordered candidate records.
//
// A file is first mapped to a [Format] by [Detect], then decoded by the
// [Parser] registered for that format. Parsers fail the whole call with a
// [*MalformedFileError] only when the envelope itself cannot be decoded
// (bad encoding, broken JSON or XML syntax, missing CSV header). Bad values
// inside an otherwise well-formed record are passed through untouched as raw
// strings so that field validation can reject that record alone.
package parse

import (
	"strings"
	"unicode"
)

// TagDelimiter separates list items inside a single cell or text value.
const TagDelimiter = ";"

// Canonical field names produced by every parser.
const (
	FieldCustomerID    = "customer_id"
	FieldCustomerEmail = "customer_email"
	FieldCustomerName  = "customer_name"
	FieldSubject       = "subject"
	FieldDescription   = "description"
	FieldCategory      = "category"
	FieldPriority      = "priority"
	FieldStatus        = "status"
	FieldSource        = "source"
	FieldDeviceType    = "device_type"
	FieldBrowser       = "browser"
	FieldTags          = "tags"
)

// KnownFields lists the canonical names the validator reads.
var KnownFields = []string{
	FieldCustomerID, FieldCustomerEmail, FieldCustomerName, FieldSubject,
	FieldDescription, FieldCategory, FieldPriority, FieldStatus, FieldSource,
	FieldDeviceType, FieldBrowser, FieldTags,
}

// listFields are collapsed into lists when repeated.
var listFields = map[string]bool{FieldTags: true}

// fieldAliases maps singular element names onto their list field.
var fieldAliases = map[string]string{"tag": FieldTags}

// Field is a single named value of a Record. Value is nil when the source
// explicitly carried no value (JSON null). List is set for list-valued
// fields built from repeated elements or arrays.
type Field struct {
	Name  string
	Value *string
	List  []string
}

// Record is one candidate record: an ordered mapping from canonical field
// name to raw value, tagged with its 1-based position in the source file.
// Records are read-only once a parser returns them.
//
// Err is set when the file envelope was fine but this element could not be
// read as a record at all (for example a JSON array element that is not an
// object). Such records carry no fields.
type Record struct {
	Index int
	Line  int
	Err   error

	fields []Field
	pos    map[string]int
}

// Get returns the value of a scalar field. ok is false when the field is
// absent or null. List-valued fields are joined with TagDelimiter.
func (r Record) Get(name string) (string, bool) {
	i, ok := r.pos[name]
	if !ok {
		return "", false
	}
	f := r.fields[i]
	if f.List != nil {
		return strings.Join(f.List, TagDelimiter), true
	}
	if f.Value == nil {
		return "", false
	}
	return *f.Value, true
}

// List returns the items of a list-valued field. Every item, and a scalar
// value, is split on TagDelimiter; items are trimmed and empty ones dropped.
func (r Record) List(name string) []string {
	i, ok := r.pos[name]
	if !ok {
		return nil
	}
	f := r.fields[i]
	raw := f.List
	if raw == nil && f.Value != nil {
		raw = []string{*f.Value}
	}

	var out []string
	for _, item := range raw {
		for _, part := range strings.Split(item, TagDelimiter) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Fields returns a copy of the record's fields in source order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	for i, f := range r.fields {
		out[i] = Field{Name: f.Name, Value: f.Value}
		if f.List != nil {
			out[i].List = append([]string(nil), f.List...)
		}
	}
	return out
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// recordBuilder assembles a Record. Only parsers use it.
type recordBuilder struct {
	rec Record
}

func newRecordBuilder(index, line int) *recordBuilder {
	return &recordBuilder{rec: Record{Index: index, Line: line, pos: make(map[string]int)}}
}

func (b *recordBuilder) slot(name string) *Field {
	if i, ok := b.rec.pos[name]; ok {
		return &b.rec.fields[i]
	}
	b.rec.pos[name] = len(b.rec.fields)
	b.rec.fields = append(b.rec.fields, Field{Name: name})
	return &b.rec.fields[len(b.rec.fields)-1]
}

// set stores a scalar value. List fields accumulate instead.
func (b *recordBuilder) set(name, value string) {
	if name == "" {
		return
	}
	if listFields[name] {
		b.appendItem(name, value)
		return
	}
	f := b.slot(name)
	v := value
	f.Value = &v
}

func (b *recordBuilder) setNull(name string) {
	if name == "" {
		return
	}
	f := b.slot(name)
	f.Value = nil
	f.List = nil
}

func (b *recordBuilder) appendItem(name, value string) {
	if name == "" {
		return
	}
	f := b.slot(name)
	if f.Value != nil {
		f.List = append(f.List, *f.Value)
		f.Value = nil
	}
	f.List = append(f.List, value)
}

func (b *recordBuilder) build() Record {
	return b.rec
}

// NormalizeName converts a header, JSON key or XML tag into canonical
// lower snake_case: "customerEmail", "Customer Email", "customer-email" and
// "CUSTOMER_EMAIL" all become "customer_email".
func NormalizeName(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(s, utf8BOM))
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	lastUnderscore := true

	for i, r := range runes {
		switch {
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case unicode.IsUpper(r):
			if i > 0 && !lastUnderscore {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		}
	}

	name := strings.TrimSuffix(b.String(), "_")
	if alias, ok := fieldAliases[name]; ok {
		return alias
	}
	return name
}

// isKnownField reports whether name is one of KnownFields.
func isKnownField(name string) bool {
	for _, f := range KnownFields {
		if f == name {
			return true
		}
	}
	return false
}
