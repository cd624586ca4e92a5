// Package ticket defines the support-ticket domain model shared by the
// import pipeline, the classifier and the stores.
package ticket

import "time"

// Ticket is the normalized, typed form of an imported record once
// validation succeeds. It carries no identity; stores assign one on Save.
type Ticket struct {
	CustomerID     string          `json:"customerId,omitempty"`
	CustomerName   string          `json:"customerName"`
	CustomerEmail  string          `json:"customerEmail"`
	Subject        string          `json:"subject"`
	Description    string          `json:"description"`
	Category       Category        `json:"category,omitempty"`
	Priority       Priority        `json:"priority,omitempty"`
	Status         Status          `json:"status,omitempty"`
	Source         Source          `json:"source,omitempty"`
	DeviceType     DeviceType      `json:"deviceType,omitempty"`
	Browser        string          `json:"browser,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
}

// Classification is the output of the keyword classifier. It is attached
// to a Ticket only when auto-classification was requested.
type Classification struct {
	Category   Category `json:"category"`
	Priority   Priority `json:"priority"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Keywords   []string `json:"keywords"`
}

// Persisted is a Ticket after the store has assigned its identity and
// timestamps.
type Persisted struct {
	ID string `json:"id"`
	Ticket
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Filter narrows FindByFilters results. Zero-valued fields match anything;
// set fields are combined with AND.
type Filter struct {
	Category   Category
	Priority   Priority
	Status     Status
	CustomerID string
}

// IsZero reports whether the filter matches every ticket.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Match reports whether t satisfies every set field of the filter.
func (f Filter) Match(t Persisted) bool {
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.CustomerID != "" && t.CustomerID != f.CustomerID {
		return false
	}
	return true
}

// Patch holds the mutable fields of a stored ticket. Nil fields are left
// unchanged.
type Patch struct {
	Category *Category `json:"category,omitempty"`
	Priority *Priority `json:"priority,omitempty"`
	Status   *Status   `json:"status,omitempty"`
}

// Apply returns a copy of t with the patch applied.
func (p Patch) Apply(t Persisted) Persisted {
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	return t
}
