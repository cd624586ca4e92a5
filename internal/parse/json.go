package parse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

func init() {
	Register(FormatJSON, ParserFunc(parseJSON))
}

// parseJSON accepts a single object or an array of objects. Keys are
// normalized to snake_case; values keep their raw text (numbers and
// booleans are stringified, null means absent). An array element that is
// not an object becomes a record-local error.
func parseJSON(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, malformed(FormatJSON, "read file", err)
	}

	data, err = checkUTF8(FormatJSON, data)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, malformed(FormatJSON, "file is empty", nil)
	}
	if !json.Valid(data) {
		return nil, malformed(FormatJSON, "invalid JSON syntax", syntaxDetail(data))
	}

	switch data[0] {
	case '{':
		rec, err := decodeObject(data, 1)
		if err != nil {
			return nil, malformed(FormatJSON, "decode object", err)
		}
		return []Record{rec}, nil

	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, malformed(FormatJSON, "decode array", err)
		}

		records := make([]Record, 0, len(elems))
		for i, elem := range elems {
			index := i + 1
			elem = bytes.TrimSpace(elem)
			if len(elem) == 0 || elem[0] != '{' {
				b := newRecordBuilder(index, 0)
				b.rec.Err = fmt.Errorf("element %d is %s, not an object", index, jsonKind(elem))
				records = append(records, b.build())
				continue
			}

			rec, err := decodeObject(elem, index)
			if err != nil {
				b := newRecordBuilder(index, 0)
				b.rec.Err = fmt.Errorf("element %d: %w", index, err)
				records = append(records, b.build())
				continue
			}
			records = append(records, rec)
		}
		return records, nil

	default:
		return nil, malformed(FormatJSON, "top-level value must be an object or an array of objects", nil)
	}
}

// decodeObject walks an object token by token so field order is kept.
func decodeObject(data []byte, index int) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil {
		return Record{}, err
	}

	b := newRecordBuilder(index, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Record{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Record{}, fmt.Errorf("unexpected key token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Record{}, err
		}

		name := NormalizeName(key)
		if err := setJSONValue(b, name, raw); err != nil {
			return Record{}, fmt.Errorf("key %q: %w", key, err)
		}
	}

	return b.build(), nil
}

func setJSONValue(b *recordBuilder, name string, raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	if name == "" || len(raw) == 0 {
		return nil
	}

	switch raw[0] {
	case 'n':
		b.setNull(name)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
		if len(items) == 0 {
			// Keep an explicit empty list distinct from an absent field.
			b.slot(name).List = []string{}
			return nil
		}
		for _, item := range items {
			s, isNull, err := scalarText(item)
			if err != nil {
				return err
			}
			if !isNull {
				b.appendItem(name, s)
			}
		}
	default:
		s, _, err := scalarText(raw)
		if err != nil {
			return err
		}
		b.set(name, s)
	}
	return nil
}

// scalarText renders a JSON value as the raw string a CSV cell would hold.
// Nested objects and arrays keep their compact JSON text.
func scalarText(raw json.RawMessage) (string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", true, nil
	}
	switch raw[0] {
	case 'n':
		return "", true, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, err
		}
		return s, false, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", false, err
		}
		return buf.String(), false, nil
	default:
		return string(raw), false, nil
	}
}

func jsonKind(raw []byte) string {
	if len(raw) == 0 {
		return "empty"
	}
	switch raw[0] {
	case '"':
		return "a string"
	case '[':
		return "an array"
	case 'n':
		return "null"
	case 't', 'f':
		return "a boolean"
	default:
		return "a number"
	}
}

// syntaxDetail locates the first syntax error for the error message.
func syntaxDetail(data []byte) error {
	var v any
	err := json.Unmarshal(data, &v)
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return fmt.Errorf("%v (offset %d)", se, se.Offset)
	}
	return err
}
