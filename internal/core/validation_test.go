package core

import (
	"reflect"
	"strings"
	"testing"

	"github.com/JonMunkholm/ticketimport/internal/parse"
	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

// recordFrom parses a single JSON object into a record.
func recordFrom(t *testing.T, obj string) parse.Record {
	t.Helper()
	recs, err := parse.Parse(parse.FormatJSON, strings.NewReader(obj))
	if err != nil {
		t.Fatalf("parse %s: %v", obj, err)
	}
	if len(recs) != 1 {
		t.Fatalf("parse %s: got %d records, want 1", obj, len(recs))
	}
	return recs[0]
}

const validRecord = `{
	"customerId": "cust-42",
	"customerName": "Ann Example",
	"customerEmail": "ann@example.com",
	"subject": "Cannot log in",
	"description": "Password reset email never arrives"
}`

func fieldsOf(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}

// ============================================================================
// Validate Tests
// ============================================================================

func TestValidate_ValidRecord(t *testing.T) {
	v := NewValidator(EnumStrict)
	got, errs := v.Validate(recordFrom(t, validRecord))
	if len(errs) != 0 {
		t.Fatalf("Validate() errors = %v, want none", errs)
	}

	want := ticket.Ticket{
		CustomerID:    "cust-42",
		CustomerName:  "Ann Example",
		CustomerEmail: "ann@example.com",
		Subject:       "Cannot log in",
		Description:   "Password reset email never arrives",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Validate() = %+v\nwant %+v", got, want)
	}
}

func TestValidate_FieldRules(t *testing.T) {
	long := func(n int) string { return strings.Repeat("x", n) }

	tests := []struct {
		name      string
		record    string
		wantField []string
		wantMsg   string
	}{
		{
			name:      "missing required fields",
			record:    `{"customerId": "c"}`,
			wantField: []string{"customer_name", "customer_email", "subject", "description"},
			wantMsg:   "required field is empty",
		},
		{
			name:      "blank values count as missing",
			record:    `{"customerName": "  ", "customerEmail": "a@b.co", "subject": "Hi", "description": "0123456789"}`,
			wantField: []string{"customer_name"},
			wantMsg:   "required field is empty",
		},
		{
			name:      "bad email",
			record:    `{"customerName": "A", "customerEmail": "not-an-email", "subject": "Hi", "description": "0123456789"}`,
			wantField: []string{"customer_email"},
			wantMsg:   "invalid email format",
		},
		{
			name:      "email without tld",
			record:    `{"customerName": "A", "customerEmail": "a@localhost", "subject": "Hi", "description": "0123456789"}`,
			wantField: []string{"customer_email"},
		},
		{
			name:      "short description",
			record:    `{"customerName": "A", "customerEmail": "a@b.co", "subject": "Hi", "description": "short"}`,
			wantField: []string{"description"},
			wantMsg:   "must be between 10 and 2000 characters (got 5)",
		},
		{
			name:      "long subject",
			record:    `{"customerName": "A", "customerEmail": "a@b.co", "subject": "` + long(201) + `", "description": "0123456789"}`,
			wantField: []string{"subject"},
			wantMsg:   "must be between 1 and 200",
		},
		{
			name:      "long customer id and browser",
			record:    `{"customerId": "` + long(101) + `", "customerName": "A", "customerEmail": "a@b.co", "subject": "Hi", "description": "0123456789", "browser": "` + long(201) + `"}`,
			wantField: []string{"customer_id", "browser"},
			wantMsg:   "must be at most",
		},
		{
			name:      "long tag",
			record:    `{"customerName": "A", "customerEmail": "a@b.co", "subject": "Hi", "description": "0123456789", "tags": ["ok", "` + long(51) + `"]}`,
			wantField: []string{"tags"},
			wantMsg:   "tag must be at most 50 characters",
		},
		{
			name:      "errors reported in rule order",
			record:    `{"customerEmail": "bad", "subject": "", "description": "tiny", "priority": "whenever"}`,
			wantField: []string{"customer_name", "customer_email", "subject", "description", "priority"},
		},
	}

	v := NewValidator(EnumStrict)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := v.Validate(recordFrom(t, tt.record))
			if got := fieldsOf(errs); !reflect.DeepEqual(got, tt.wantField) {
				t.Fatalf("fields = %v, want %v (errors: %v)", got, tt.wantField, errs)
			}
			if tt.wantMsg != "" && !strings.Contains(errs[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", errs[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestValidate_LengthCountsRunes(t *testing.T) {
	// Ten two-byte runes.
	rec := recordFrom(t, `{"customerName": "A", "customerEmail": "a@b.co", "subject": "Hi", "description": "éééééééééé"}`)
	if _, errs := NewValidator(EnumStrict).Validate(rec); len(errs) != 0 {
		t.Errorf("Validate() errors = %v, want none", errs)
	}
}

func TestValidate_TagsDeduplicated(t *testing.T) {
	rec := recordFrom(t, `{"customerName": "A", "customerEmail": "a@b.co", "subject": "Hi", "description": "0123456789", "tags": "vip; billing;;vip ; "}`)
	got, errs := NewValidator(EnumStrict).Validate(rec)
	if len(errs) != 0 {
		t.Fatalf("Validate() errors = %v", errs)
	}
	if want := []string{"vip", "billing"}; !reflect.DeepEqual(got.Tags, want) {
		t.Errorf("Tags = %v, want %v", got.Tags, want)
	}
}

// ============================================================================
// Enum policy
// ============================================================================

func TestValidate_EnumsCaseInsensitive(t *testing.T) {
	rec := recordFrom(t, `{
		"customerName": "A", "customerEmail": "a@b.co", "subject": "Hi", "description": "0123456789",
		"category": "Billing_Question", "priority": "URGENT", "status": "In_Progress",
		"source": "Email", "deviceType": "MOBILE"
	}`)
	got, errs := NewValidator(EnumStrict).Validate(rec)
	if len(errs) != 0 {
		t.Fatalf("Validate() errors = %v", errs)
	}
	if got.Category != ticket.CategoryBillingQuestion || got.Priority != ticket.PriorityUrgent ||
		got.Status != ticket.StatusInProgress || got.Source != ticket.SourceEmail || got.DeviceType != ticket.DeviceMobile {
		t.Errorf("enums = %s/%s/%s/%s/%s", got.Category, got.Priority, got.Status, got.Source, got.DeviceType)
	}
}

func TestValidate_EnumPolicy(t *testing.T) {
	rec := recordFrom(t, `{
		"customerName": "A", "customerEmail": "a@b.co", "subject": "Hi", "description": "0123456789",
		"category": "complaint", "priority": "p0", "status": "open", "source": "fax", "deviceType": "watch"
	}`)

	_, errs := NewValidator(EnumStrict).Validate(rec)
	wantFields := []string{"category", "priority", "status", "source", "device_type"}
	if got := fieldsOf(errs); !reflect.DeepEqual(got, wantFields) {
		t.Fatalf("strict fields = %v, want %v", got, wantFields)
	}
	if !strings.Contains(errs[0].Message, "invalid enum value") || errs[0].Value != "complaint" {
		t.Errorf("strict error = %+v", errs[0])
	}

	got, errs := NewValidator(EnumLenient).Validate(rec)
	if len(errs) != 0 {
		t.Fatalf("lenient errors = %v, want none", errs)
	}
	if got.Category != ticket.CategoryOther || got.Priority != ticket.PriorityMedium || got.Status != ticket.StatusNew {
		t.Errorf("lenient defaults = %s/%s/%s", got.Category, got.Priority, got.Status)
	}
	if got.Source != "" || got.DeviceType != "" {
		t.Errorf("lenient source/device = %q/%q, want dropped", got.Source, got.DeviceType)
	}
}

func TestParseEnumPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    EnumPolicy
		wantErr bool
	}{
		{"", EnumStrict, false},
		{"strict", EnumStrict, false},
		{"LENIENT", EnumLenient, false},
		{" lenient ", EnumLenient, false},
		{"loose", "", true},
	}
	for _, tt := range tests {
		got, err := ParseEnumPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEnumPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEnumPolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidationError_Error(t *testing.T) {
	e := ValidationError{Field: "description", Value: "short", Message: "too short"}
	if got := e.Error(); got != "description: too short" {
		t.Errorf("Error() = %q", got)
	}
}
