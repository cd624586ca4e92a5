package ticket

import (
	"testing"
	"time"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input  string
		want   Category
		wantOK bool
	}{
		{"technical_issue", CategoryTechnicalIssue, true},
		{"TECHNICAL_ISSUE", CategoryTechnicalIssue, true},
		{"  Billing Question ", CategoryBillingQuestion, true},
		{"feature-request", CategoryFeatureRequest, true},
		{"other", CategoryOther, true},
		{"hardware", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseCategory(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseCategory(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseOtherEnums(t *testing.T) {
	if p, ok := ParsePriority("Urgent"); !ok || p != PriorityUrgent {
		t.Errorf("ParsePriority(Urgent) = (%q, %v)", p, ok)
	}
	if _, ok := ParsePriority("p1"); ok {
		t.Error("ParsePriority(p1) should fail")
	}
	if s, ok := ParseStatus("In Progress"); !ok || s != StatusInProgress {
		t.Errorf("ParseStatus(In Progress) = (%q, %v)", s, ok)
	}
	if s, ok := ParseSource("WEB_FORM"); !ok || s != SourceWebForm {
		t.Errorf("ParseSource(WEB_FORM) = (%q, %v)", s, ok)
	}
	if d, ok := ParseDeviceType("tablet"); !ok || d != DeviceTablet {
		t.Errorf("ParseDeviceType(tablet) = (%q, %v)", d, ok)
	}
	if _, ok := ParseDeviceType("watch"); ok {
		t.Error("ParseDeviceType(watch) should fail")
	}
}

func TestFilterMatch(t *testing.T) {
	stored := Persisted{
		ID: "1",
		Ticket: Ticket{
			CustomerID: "c-1",
			Category:   CategoryBillingQuestion,
			Priority:   PriorityHigh,
			Status:     StatusNew,
		},
		CreatedAt: time.Now(),
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"zero filter matches", Filter{}, true},
		{"category match", Filter{Category: CategoryBillingQuestion}, true},
		{"category mismatch", Filter{Category: CategoryOther}, false},
		{"all fields match", Filter{Category: CategoryBillingQuestion, Priority: PriorityHigh, Status: StatusNew, CustomerID: "c-1"}, true},
		{"customer mismatch", Filter{CustomerID: "c-2"}, false},
		{"status mismatch", Filter{Status: StatusClosed}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(stored); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPatchApply(t *testing.T) {
	status := StatusResolved
	orig := Persisted{ID: "1", Ticket: Ticket{Status: StatusNew, Priority: PriorityLow}}

	got := Patch{Status: &status}.Apply(orig)
	if got.Status != StatusResolved {
		t.Errorf("Status = %q, want %q", got.Status, StatusResolved)
	}
	if got.Priority != PriorityLow {
		t.Errorf("Priority changed to %q", got.Priority)
	}
	if orig.Status != StatusNew {
		t.Error("Apply mutated the original")
	}
}
