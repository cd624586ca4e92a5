package classify

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

// ============================================================================
// Engine Tests
// ============================================================================

func TestClassify_UrgentProductionOutage(t *testing.T) {
	e := New(DefaultTable())

	got := e.Classify("Critical issue", "Production is down")

	if got.Priority != ticket.PriorityUrgent {
		t.Errorf("Priority = %q, want urgent", got.Priority)
	}
	if got.Confidence <= 0 {
		t.Errorf("Confidence = %v, want > 0", got.Confidence)
	}
	if !contains(got.Keywords, "critical") {
		t.Errorf("Keywords = %v, want to include critical", got.Keywords)
	}
	if got.Keywords[0] != "critical" {
		t.Errorf("Keywords[0] = %q, want critical (first occurrence)", got.Keywords[0])
	}
}

func TestClassify_NoMatches(t *testing.T) {
	e := New(DefaultTable())

	got := e.Classify("Hello", "Just checking in")

	if got.Category != ticket.CategoryOther {
		t.Errorf("Category = %q, want other", got.Category)
	}
	if got.Priority != ticket.PriorityMedium {
		t.Errorf("Priority = %q, want medium", got.Priority)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", got.Confidence)
	}
	if got.Keywords == nil || len(got.Keywords) != 0 {
		t.Errorf("Keywords = %#v, want empty non-nil list", got.Keywords)
	}
	if !strings.Contains(got.Reasoning, "no keywords matched") {
		t.Errorf("Reasoning = %q", got.Reasoning)
	}
}

func TestClassify_EmptyText(t *testing.T) {
	got := New(DefaultTable()).Classify("", "")
	if got.Category != ticket.DefaultCategory || got.Priority != ticket.DefaultPriority || got.Confidence != 0 {
		t.Errorf("Classify(\"\", \"\") = %+v, want defaults with zero confidence", got)
	}
}

func TestClassify_Category(t *testing.T) {
	e := New(DefaultTable())

	tests := []struct {
		name        string
		subject     string
		description string
		want        ticket.Category
	}{
		{"account access", "Cannot login", "I forgot my password and I'm locked out", ticket.CategoryAccountAccess},
		{"billing", "Refund please", "I was charged twice on my invoice", ticket.CategoryBillingQuestion},
		{"feature request", "Suggestion", "We would like dark mode as a feature", ticket.CategoryFeatureRequest},
		{"bug report", "Bug in export", "I can reproduce this regression every time", ticket.CategoryBugReport},
		{"case insensitive", "APP CRASH", "Everything is BROKEN with an ERROR", ticket.CategoryTechnicalIssue},
		{"tie falls back to other", "Refund", "The bug", ticket.CategoryOther},
		{"nothing matched", "Hello", "Thanks for the help", ticket.CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Classify(tt.subject, tt.description)
			if got.Category != tt.want {
				t.Errorf("Classify(%q, %q).Category = %q, want %q (keywords %v)",
					tt.subject, tt.description, got.Category, tt.want, got.Keywords)
			}
		})
	}
}

func TestClassify_PriorityPrecedence(t *testing.T) {
	e := New(DefaultTable())

	tests := []struct {
		name string
		text string
		want ticket.Priority
	}{
		{"urgent beats high", "important and blocking: this is an emergency", ticket.PriorityUrgent},
		{"urgent beats low", "minor cosmetic glitch, but security related", ticket.PriorityUrgent},
		{"high beats low", "minor thing but blocking us", ticket.PriorityHigh},
		{"low alone", "a cosmetic detail", ticket.PriorityLow},
		{"none", "hello there", ticket.PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Classify("", tt.text).Priority; got != tt.want {
				t.Errorf("Classify(%q).Priority = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassify_KeywordOrder(t *testing.T) {
	e := New(DefaultTable())

	got := e.Classify("Refund for login error", "")
	// "log in" is a keyword too but does not occur inside "login".
	want := []string{"refund", "login", "error"}
	if !reflect.DeepEqual(got.Keywords, want) {
		t.Errorf("Keywords = %v, want %v", got.Keywords, want)
	}
}

func TestClassify_SharedKeywordCountedOnce(t *testing.T) {
	e := New(DefaultTable())

	// "suggestion" is both a feature_request and a low-priority keyword.
	got := e.Classify("Suggestion", "")
	if !reflect.DeepEqual(got.Keywords, []string{"suggestion"}) {
		t.Errorf("Keywords = %v, want [suggestion]", got.Keywords)
	}
	if got.Category != ticket.CategoryFeatureRequest || got.Priority != ticket.PriorityLow {
		t.Errorf("got %s/%s, want feature_request/low", got.Category, got.Priority)
	}
	if want := 1.0 / 3.0; got.Confidence != want {
		t.Errorf("Confidence = %v, want %v", got.Confidence, want)
	}
}

func TestClassify_ConfidenceMonotonic(t *testing.T) {
	e := New(DefaultTable())

	texts := []string{
		"hello",
		"hello refund",
		"hello refund invoice",
		"hello refund invoice billing",
		"hello refund invoice billing payment",
	}

	prev := -1.0
	for _, text := range texts {
		got := e.Classify("", text).Confidence
		if got < prev {
			t.Errorf("Confidence(%q) = %v, dropped below %v", text, got, prev)
		}
		if got < 0 || got > 1 {
			t.Errorf("Confidence(%q) = %v, out of [0,1]", text, got)
		}
		prev = got
	}
	if prev != 1 {
		t.Errorf("final confidence = %v, want capped at 1", prev)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	e := New(DefaultTable())
	first := e.Classify("Payment error", "Critical: invoice page shows an error after login")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := e.Classify("Payment error", "Critical: invoice page shows an error after login")
			if !reflect.DeepEqual(got, first) {
				t.Errorf("concurrent Classify = %+v, want %+v", got, first)
			}
		}()
	}
	wg.Wait()
}

func TestClassify_Reasoning(t *testing.T) {
	got := New(DefaultTable()).Classify("Refund", "invoice")
	want := "matched keywords: refund, invoice; category: billing_question; priority: medium; confidence: 0.67"
	if got.Reasoning != want {
		t.Errorf("Reasoning = %q, want %q", got.Reasoning, want)
	}
}

// ============================================================================
// Table Tests
// ============================================================================

func TestNewTable_Validation(t *testing.T) {
	okPriority := PriorityKeywords{Urgent: []string{"a"}, High: []string{"b"}, Low: []string{"c"}}

	tests := []struct {
		name       string
		categories []CategoryKeywords
		priority   PriorityKeywords
		wantErr    string
	}{
		{
			name:       "valid",
			categories: []CategoryKeywords{{Category: "billing_question", Keywords: []string{" Refund ", "refund"}}},
			priority:   okPriority,
		},
		{
			name:       "unknown category",
			categories: []CategoryKeywords{{Category: "shipping", Keywords: []string{"parcel"}}},
			priority:   okPriority,
			wantErr:    "unknown category",
		},
		{
			name:       "empty keyword set",
			categories: []CategoryKeywords{{Category: "bug_report", Keywords: []string{" ", ""}}},
			priority:   okPriority,
			wantErr:    "empty keyword set",
		},
		{
			name: "duplicate category",
			categories: []CategoryKeywords{
				{Category: "bug_report", Keywords: []string{"bug"}},
				{Category: "Bug Report", Keywords: []string{"defect"}},
			},
			priority: okPriority,
			wantErr:  "duplicate category",
		},
		{
			name:       "empty priority set",
			categories: []CategoryKeywords{{Category: "bug_report", Keywords: []string{"bug"}}},
			priority:   PriorityKeywords{Urgent: []string{"a"}, High: []string{"b"}},
			wantErr:    "priority.low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewTable(tt.categories, tt.priority)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("NewTable() error = %v", err)
				}
				cats := table.Categories()
				if !reflect.DeepEqual(cats[0].Keywords, []string{"refund"}) {
					t.Errorf("keywords = %v, want cleaned [refund]", cats[0].Keywords)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewTable() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestTable_Immutable(t *testing.T) {
	table := DefaultTable()
	cats := table.Categories()
	cats[0].Keywords[0] = "mutated"
	p := table.Priority()
	p.Urgent[0] = "mutated"

	if table.Categories()[0].Keywords[0] == "mutated" || table.Priority().Urgent[0] == "mutated" {
		t.Error("Table exposed its internal keyword slices")
	}
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "keywords.yaml")
	writeFile(t, yamlPath, `
categories:
  - category: billing_question
    keywords: [refund, chargeback]
  - category: account_access
    keywords: [sso]
priority:
  urgent: [sev1]
  high: [sev2]
  low: [sev4]
`)

	jsoncPath := filepath.Join(dir, "keywords.jsonc")
	writeFile(t, jsoncPath, `{
  // comments and trailing commas are allowed
  "categories": [
    {"category": "billing_question", "keywords": ["refund", "chargeback"]},
    {"category": "account_access", "keywords": ["sso"]},
  ],
  "priority": {"urgent": ["sev1"], "high": ["sev2"], "low": ["sev4"]},
}`)

	for _, path := range []string{yamlPath, jsoncPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			table, err := LoadTable(path)
			if err != nil {
				t.Fatalf("LoadTable(%s) error = %v", path, err)
			}
			got := New(table).Classify("Chargeback", "sev1 on our SSO")
			if got.Category != ticket.CategoryOther {
				t.Errorf("Category = %q, want other on a 1-1 tie", got.Category)
			}
			if got.Priority != ticket.PriorityUrgent {
				t.Errorf("Priority = %q, want urgent", got.Priority)
			}
			if !reflect.DeepEqual(got.Keywords, []string{"chargeback", "sev1", "sso"}) {
				t.Errorf("Keywords = %v", got.Keywords)
			}
		})
	}
}

func TestLoadTable_Errors(t *testing.T) {
	dir := t.TempDir()

	badCategory := filepath.Join(dir, "bad.yml")
	writeFile(t, badCategory, "categories:\n  - category: shipping\n    keywords: [parcel]\npriority:\n  urgent: [a]\n  high: [b]\n  low: [c]\n")

	badExt := filepath.Join(dir, "keywords.toml")
	writeFile(t, badExt, "x = 1")

	badSyntax := filepath.Join(dir, "broken.json")
	writeFile(t, badSyntax, `{"categories": [`)

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.yaml")},
		{"unknown category", badCategory},
		{"unsupported extension", badExt},
		{"broken json", badSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadTable(tt.path); err == nil {
				t.Errorf("LoadTable(%s) error = nil, want error", tt.path)
			}
		})
	}
}

// ============================================================================
// Helpers
// ============================================================================

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
