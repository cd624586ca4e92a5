package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

// matchesForFullConfidence is the number of distinct keyword matches at
// which confidence reaches 1.0.
const matchesForFullConfidence = 3.0

// Engine classifies ticket text against a keyword Table.
type Engine struct {
	table Table
}

// New returns an Engine bound to table.
func New(table Table) *Engine {
	return &Engine{table: table}
}

// Table returns the engine's keyword table.
func (e *Engine) Table() Table {
	return e.table
}

// match is one keyword found in the text.
type match struct {
	keyword string
	pos     int // byte offset of first occurrence
	order   int // position in table order
}

// Classify suggests a category and priority for the given text.
//
// The category with strictly the most distinct keyword hits wins; a tie or
// no hits at all yields ticket.DefaultCategory. Priority takes the first of
// urgent, high and low with any hit, else ticket.DefaultPriority.
// Confidence is the number of distinct matched keywords over three, capped
// at 1.
func (e *Engine) Classify(subject, description string) ticket.Classification {
	text := strings.ToLower(subject + " " + description)

	var (
		found = make(map[string]match)
		order int
	)
	hits := func(keywords []string) int {
		n := 0
		for _, kw := range keywords {
			pos := strings.Index(text, kw)
			if pos < 0 {
				continue
			}
			n++
			if _, ok := found[kw]; !ok {
				found[kw] = match{keyword: kw, pos: pos, order: order}
			}
			order++
		}
		return n
	}

	category := ticket.DefaultCategory
	best, tied := 0, false
	for _, ck := range e.table.categories {
		n := hits(ck.Keywords)
		switch {
		case n > best:
			best, tied = n, false
			category = ck.Category
		case n == best && n > 0:
			tied = true
		}
	}
	if tied || best == 0 {
		category = ticket.DefaultCategory
	}

	priority := ticket.DefaultPriority
	urgent := hits(e.table.priority.Urgent)
	high := hits(e.table.priority.High)
	low := hits(e.table.priority.Low)
	switch {
	case urgent > 0:
		priority = ticket.PriorityUrgent
	case high > 0:
		priority = ticket.PriorityHigh
	case low > 0:
		priority = ticket.PriorityLow
	}

	keywords := orderedKeywords(found)
	confidence := float64(len(keywords)) / matchesForFullConfidence
	if confidence > 1 {
		confidence = 1
	}

	return ticket.Classification{
		Category:   category,
		Priority:   priority,
		Confidence: confidence,
		Reasoning:  reasoning(keywords, category, priority, confidence),
		Keywords:   keywords,
	}
}

// orderedKeywords sorts matches by first occurrence in the text, table
// order breaking ties. The result is never nil.
func orderedKeywords(found map[string]match) []string {
	matches := make([]match, 0, len(found))
	for _, m := range found {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].pos != matches[j].pos {
			return matches[i].pos < matches[j].pos
		}
		return matches[i].order < matches[j].order
	})

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.keyword
	}
	return out
}

func reasoning(keywords []string, category ticket.Category, priority ticket.Priority, confidence float64) string {
	var b strings.Builder
	if len(keywords) == 0 {
		b.WriteString("no keywords matched")
	} else {
		fmt.Fprintf(&b, "matched keywords: %s", strings.Join(keywords, ", "))
	}
	fmt.Fprintf(&b, "; category: %s; priority: %s; confidence: %.2f", category, priority, confidence)
	return b.String()
}
