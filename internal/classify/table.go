// Package classify suggests a category and priority for a ticket from
// keyword matches in its subject and description.
//
// Keyword sets live in a Table, an immutable value built once at startup
// (DefaultTable or LoadTable) and handed to New. An Engine holds no mutable
// state and is safe for concurrent use.
package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

// CategoryKeywords pairs a category with the keywords that suggest it.
type CategoryKeywords struct {
	Category ticket.Category `yaml:"category" json:"category"`
	Keywords []string        `yaml:"keywords" json:"keywords"`
}

// PriorityKeywords holds the keyword sets checked in precedence order:
// urgent, then high, then low.
type PriorityKeywords struct {
	Urgent []string `yaml:"urgent" json:"urgent"`
	High   []string `yaml:"high" json:"high"`
	Low    []string `yaml:"low" json:"low"`
}

// tableFile is the on-disk layout shared by the YAML and JSONC forms.
type tableFile struct {
	Categories []CategoryKeywords `yaml:"categories" json:"categories"`
	Priority   PriorityKeywords   `yaml:"priority" json:"priority"`
}

// Table is a validated, read-only set of keyword lists. Keywords are stored
// lower-cased and trimmed. The zero Table matches nothing.
type Table struct {
	categories []CategoryKeywords
	priority   PriorityKeywords
}

// NewTable validates and copies the given keyword sets.
//
// Category names must belong to the ticket category enumeration and appear
// once; every keyword set must contain at least one non-blank keyword.
func NewTable(categories []CategoryKeywords, priority PriorityKeywords) (Table, error) {
	var errs []error
	seen := make(map[ticket.Category]bool, len(categories))

	t := Table{categories: make([]CategoryKeywords, 0, len(categories))}
	for i, ck := range categories {
		cat, ok := ticket.ParseCategory(string(ck.Category))
		if !ok {
			errs = append(errs, fmt.Errorf("categories[%d]: unknown category %q", i, ck.Category))
			continue
		}
		if seen[cat] {
			errs = append(errs, fmt.Errorf("categories[%d]: duplicate category %q", i, cat))
			continue
		}
		seen[cat] = true

		kws, err := cleanKeywords(ck.Keywords)
		if err != nil {
			errs = append(errs, fmt.Errorf("categories[%d] (%s): %w", i, cat, err))
			continue
		}
		t.categories = append(t.categories, CategoryKeywords{Category: cat, Keywords: kws})
	}

	var err error
	if t.priority.Urgent, err = cleanKeywords(priority.Urgent); err != nil {
		errs = append(errs, fmt.Errorf("priority.urgent: %w", err))
	}
	if t.priority.High, err = cleanKeywords(priority.High); err != nil {
		errs = append(errs, fmt.Errorf("priority.high: %w", err))
	}
	if t.priority.Low, err = cleanKeywords(priority.Low); err != nil {
		errs = append(errs, fmt.Errorf("priority.low: %w", err))
	}

	if len(errs) > 0 {
		return Table{}, fmt.Errorf("invalid keyword table: %w", errors.Join(errs...))
	}
	return t, nil
}

// cleanKeywords lower-cases, trims and de-duplicates a keyword set.
func cleanKeywords(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	if len(out) == 0 {
		return nil, errors.New("empty keyword set")
	}
	return out, nil
}

// Categories returns a copy of the category keyword sets in table order.
func (t Table) Categories() []CategoryKeywords {
	out := make([]CategoryKeywords, len(t.categories))
	for i, ck := range t.categories {
		out[i] = CategoryKeywords{Category: ck.Category, Keywords: append([]string(nil), ck.Keywords...)}
	}
	return out
}

// Priority returns a copy of the priority keyword sets.
func (t Table) Priority() PriorityKeywords {
	return PriorityKeywords{
		Urgent: append([]string(nil), t.priority.Urgent...),
		High:   append([]string(nil), t.priority.High...),
		Low:    append([]string(nil), t.priority.Low...),
	}
}

// DefaultTable returns the built-in keyword sets.
func DefaultTable() Table {
	t, err := NewTable(
		[]CategoryKeywords{
			{ticket.CategoryAccountAccess, []string{
				"login", "log in", "password", "2fa", "two-factor", "locked out",
				"sign in", "authentication", "access",
			}},
			{ticket.CategoryTechnicalIssue, []string{
				"error", "crash", "not working", "broken", "timeout", "slow",
				"outage", "issue",
			}},
			{ticket.CategoryBillingQuestion, []string{
				"payment", "invoice", "refund", "billing", "charge", "subscription",
			}},
			{ticket.CategoryFeatureRequest, []string{
				"feature", "enhancement", "suggestion", "would like", "add support",
			}},
			{ticket.CategoryBugReport, []string{
				"bug", "defect", "reproduce", "unexpected behavior", "regression",
			}},
		},
		PriorityKeywords{
			Urgent: []string{
				"critical", "production down", "is down", "security", "urgent",
				"emergency", "can't access", "outage",
			},
			High: []string{"important", "blocking", "asap", "high priority"},
			Low:  []string{"minor", "cosmetic", "nice to have", "low priority", "suggestion"},
		},
	)
	if err != nil {
		panic(fmt.Sprintf("default keyword table: %v", err))
	}
	return t
}

// LoadTable reads a keyword table from a YAML (.yaml, .yml) or
// JSON-with-comments (.json, .jsonc) file.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read keyword table: %w", err)
	}

	var f tableFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return Table{}, fmt.Errorf("parse keyword table yaml: %w", err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
			return Table{}, fmt.Errorf("parse keyword table json: %w", err)
		}
	default:
		return Table{}, fmt.Errorf("keyword table %s: unsupported extension %q", path, ext)
	}

	t, err := NewTable(f.Categories, f.Priority)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
