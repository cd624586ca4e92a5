package parse

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

// ============================================================================
// Parser Benchmarks
// ============================================================================

const benchRecords = 1000

func benchCSV() []byte {
	var b strings.Builder
	b.WriteString("customer_email,customer_name,subject,description,tags\n")
	for i := 0; i < benchRecords; i++ {
		fmt.Fprintf(&b, "user%d@example.com,User %d,\"Cannot login, again\",Password reset link %d is broken,\"login,web\"\n", i, i, i)
	}
	return []byte(b.String())
}

func benchJSON() []byte {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < benchRecords; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"customerEmail":"user%d@example.com","customerName":"User %d","subject":"Cannot login","description":"Password reset link %d is broken","tags":["login","web"]}`, i, i, i)
	}
	b.WriteString("]")
	return []byte(b.String())
}

func benchXML() []byte {
	var b strings.Builder
	b.WriteString("<tickets>")
	for i := 0; i < benchRecords; i++ {
		fmt.Fprintf(&b, "<ticket><customerEmail>user%d@example.com</customerEmail><customerName>User %d</customerName><subject>Cannot login</subject><description>Password reset link %d is broken</description><tags><tag>login</tag><tag>web</tag></tags></ticket>", i, i, i)
	}
	b.WriteString("</tickets>")
	return []byte(b.String())
}

func benchmarkParse(b *testing.B, format Format, data []byte) {
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		recs, err := Parse(format, bytes.NewReader(data))
		if err != nil {
			b.Fatal(err)
		}
		if len(recs) != benchRecords {
			b.Fatalf("got %d records", len(recs))
		}
	}
}

func BenchmarkParseCSV(b *testing.B)  { benchmarkParse(b, FormatCSV, benchCSV()) }
func BenchmarkParseJSON(b *testing.B) { benchmarkParse(b, FormatJSON, benchJSON()) }
func BenchmarkParseXML(b *testing.B)  { benchmarkParse(b, FormatXML, benchXML()) }

// BenchmarkNormalizeName covers header normalization, run once per column
// per file.
func BenchmarkNormalizeName(b *testing.B) {
	names := []string{"customerEmail", "Customer Email", "CUSTOMER_EMAIL", "deviceType", "\uFEFFsubject"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, n := range names {
			NormalizeName(n)
		}
	}
}
