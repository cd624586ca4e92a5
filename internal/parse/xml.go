package parse

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

func init() {
	Register(FormatXML, ParserFunc(parseXML))
}

// parseXML reads a root wrapper element whose children are records:
//
//	<tickets>
//	  <ticket>
//	    <customerEmail>a@example.com</customerEmail>
//	    <tag>login</tag>
//	    <tag>mobile</tag>
//	  </ticket>
//	</tickets>
//
// Each child element of a record becomes a field; attributes on the record
// element are fields too. Inline markup in a text field is flattened
// (<description>app <b>crashes</b></description> reads "app crashes"). A list
// field with children (<tags><tag>a</tag></tags>), or any element holding only
// child elements, becomes a list of its children's text, and repeated tag
// elements collapse into the tags list.
//
// DOCTYPE declarations are rejected outright and the decoder runs in strict
// mode with no entity map, so only the five predefined entities resolve and
// no external or recursive entity is ever expanded.
func parseXML(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, malformed(FormatXML, "read file", err)
	}

	data, err = checkUTF8(FormatXML, data)
	if err != nil {
		return nil, err
	}

	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = true
	d.Entity = nil
	d.CharsetReader = nil

	var (
		records  []Record
		rootSeen bool
		rootDone bool
	)

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(FormatXML, "invalid XML", err)
		}

		switch t := tok.(type) {
		case xml.Directive:
			if isDoctype(t) {
				return nil, malformed(FormatXML, "DOCTYPE declarations are not allowed", nil)
			}
			return nil, malformed(FormatXML, "unexpected directive", fmt.Errorf("<!%s>", firstWord(t)))

		case xml.StartElement:
			if rootSeen {
				return nil, malformed(FormatXML, "multiple root elements", fmt.Errorf("<%s>", t.Name.Local))
			}
			rootSeen = true

			records, err = readRecords(d)
			if err != nil {
				return nil, malformed(FormatXML, "invalid XML", err)
			}
			rootDone = true

		case xml.CharData:
			if rootSeen && len(bytes.TrimSpace(t)) > 0 {
				return nil, malformed(FormatXML, "text after root element", nil)
			}
		}
	}

	if !rootSeen || !rootDone {
		return nil, malformed(FormatXML, "missing root element", nil)
	}
	return records, nil
}

// readRecords consumes the root element's content up to its end tag.
func readRecords(d *xml.Decoder) ([]Record, error) {
	var records []Record
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, unexpectedEOF(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			line, _ := d.InputPos()
			b := newRecordBuilder(len(records)+1, line)
			for _, attr := range t.Attr {
				b.set(NormalizeName(attr.Name.Local), CleanCell(attr.Value))
			}
			if err := readFields(d, b); err != nil {
				return nil, err
			}
			records = append(records, b.build())

		case xml.EndElement:
			return records, nil

		case xml.Directive:
			if isDoctype(t) {
				return nil, errors.New("DOCTYPE declarations are not allowed")
			}
		}
	}
}

// readFields consumes one record element's children.
func readFields(d *xml.Decoder, b *recordBuilder) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return unexpectedEOF(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := NormalizeName(t.Name.Local)
			text, items, err := readField(d, listFields[name])
			if err != nil {
				return err
			}
			if items != nil {
				for _, item := range items {
					b.appendItem(name, item)
				}
				continue
			}
			b.set(name, text)

		case xml.EndElement:
			return nil
		}
	}
}

// readField returns the full text of a field element, markup inside it
// dropped. The texts of its child elements come back as a list instead when
// the field is a list field or the element has no text of its own.
func readField(d *xml.Decoder, list bool) (string, []string, error) {
	var own, all strings.Builder
	var items []string

	for {
		tok, err := d.Token()
		if err != nil {
			return "", nil, unexpectedEOF(err)
		}

		switch t := tok.(type) {
		case xml.CharData:
			own.Write(t)
			all.Write(t)
		case xml.StartElement:
			item, err := readText(d)
			if err != nil {
				return "", nil, err
			}
			all.WriteString(item)
			items = append(items, CleanCell(item))
		case xml.EndElement:
			if items != nil && (list || strings.TrimSpace(own.String()) == "") {
				return "", items, nil
			}
			return CleanCell(all.String()), nil, nil
		}
	}
}

// readText concatenates all character data up to the matching end tag.
func readText(d *xml.Decoder) (string, error) {
	var text strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return "", unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return text.String(), nil
}

func isDoctype(d xml.Directive) bool {
	word := strings.ToUpper(firstWord(d))
	return word == "DOCTYPE" || word == "ENTITY"
}

func firstWord(d xml.Directive) string {
	fields := strings.Fields(string(d))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// unexpectedEOF turns a bare EOF inside an element into a syntax error.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
