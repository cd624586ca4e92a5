package core

// validation.go turns a parsed record into a ticket.
//
// Rules run in a fixed order and every rule runs even after an earlier one
// failed, so a rejected record reports all of its problems at once. A rule
// both checks its field and, when the value is good, copies the normalized
// value onto the ticket being built.

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/ticketimport/internal/parse"
	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

// Field limits, in runes after trimming.
const (
	MaxCustomerIDLength  = 100
	MinSubjectLength     = 1
	MaxSubjectLength     = 200
	MinDescriptionLength = 10
	MaxDescriptionLength = 2000
	MaxBrowserLength     = 200
	MaxTagLength         = 50
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@.]+(\.[^\s@.]+)+$`)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Canonical field name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// EnumPolicy decides what happens to a value outside a closed enumeration.
type EnumPolicy string

const (
	// EnumStrict rejects the record with a field error.
	EnumStrict EnumPolicy = "strict"
	// EnumLenient replaces the value with the enumeration's default, or
	// drops it when the enumeration has none.
	EnumLenient EnumPolicy = "lenient"
)

// ParseEnumPolicy parses a policy name. The empty string means strict.
func ParseEnumPolicy(s string) (EnumPolicy, error) {
	switch EnumPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", EnumStrict:
		return EnumStrict, nil
	case EnumLenient:
		return EnumLenient, nil
	default:
		return "", fmt.Errorf("unknown enum policy %q (want strict or lenient)", s)
	}
}

// rule checks one aspect of a record and fills the ticket on success.
type rule func(v *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError

// rules is the fixed evaluation order.
var rules = []rule{
	ruleCustomerID,
	ruleCustomerName,
	ruleCustomerEmail,
	ruleSubject,
	ruleDescription,
	ruleCategory,
	rulePriority,
	ruleStatus,
	ruleSource,
	ruleDeviceType,
	ruleBrowser,
	ruleTags,
}

// Validator checks parsed records and builds tickets from them. It is
// stateless apart from its policy and safe for concurrent use.
type Validator struct {
	policy EnumPolicy
}

// NewValidator creates a validator with the given enum policy. An empty
// policy means strict.
func NewValidator(policy EnumPolicy) *Validator {
	if policy == "" {
		policy = EnumStrict
	}
	return &Validator{policy: policy}
}

// Policy returns the validator's enum policy.
func (v *Validator) Policy() EnumPolicy {
	return v.policy
}

// Validate applies every rule to rec. The ticket is only meaningful when
// the returned slice is empty.
func (v *Validator) Validate(rec parse.Record) (ticket.Ticket, []ValidationError) {
	var (
		t    ticket.Ticket
		errs []ValidationError
	)
	for _, r := range rules {
		errs = append(errs, r(v, rec, &t)...)
	}
	return t, errs
}

// ============================================================================
// Rule helpers
// ============================================================================

func value(rec parse.Record, field string) string {
	s, _ := rec.Get(field)
	return strings.TrimSpace(s)
}

func required(rec parse.Record, field string) (string, []ValidationError) {
	s := value(rec, field)
	if s == "" {
		return "", []ValidationError{{Field: field, Message: "required field is empty"}}
	}
	return s, nil
}

func lengthBetween(field, s string, min, max int) []ValidationError {
	n := utf8.RuneCountInString(s)
	if n < min || n > max {
		return []ValidationError{{
			Field:   field,
			Value:   truncate(s, 60),
			Message: fmt.Sprintf("must be between %d and %d characters (got %d)", min, max, n),
		}}
	}
	return nil
}

func maxLength(field, s string, max int) []ValidationError {
	if n := utf8.RuneCountInString(s); n > max {
		return []ValidationError{{
			Field:   field,
			Value:   truncate(s, 60),
			Message: fmt.Sprintf("must be at most %d characters (got %d)", max, n),
		}}
	}
	return nil
}

// enumValue validates an optional enumerated field. Under the lenient
// policy an unknown value yields fallback with no error.
func enumValue[T ~string](v *Validator, rec parse.Record, field string, parseFn func(string) (T, bool), allowed []T, fallback T) (T, []ValidationError) {
	var zero T
	s := value(rec, field)
	if s == "" {
		return zero, nil
	}
	if e, ok := parseFn(s); ok {
		return e, nil
	}
	if v.policy == EnumLenient {
		return fallback, nil
	}
	return zero, []ValidationError{{
		Field:   field,
		Value:   s,
		Message: fmt.Sprintf("invalid enum value, must be one of: %s", strings.Join(ticket.Names(allowed), ", ")),
	}}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// ============================================================================
// Rules
// ============================================================================

func ruleCustomerID(_ *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	s := value(rec, parse.FieldCustomerID)
	if errs := maxLength(parse.FieldCustomerID, s, MaxCustomerIDLength); errs != nil {
		return errs
	}
	t.CustomerID = s
	return nil
}

func ruleCustomerName(_ *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	s, errs := required(rec, parse.FieldCustomerName)
	t.CustomerName = s
	return errs
}

func ruleCustomerEmail(_ *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	s, errs := required(rec, parse.FieldCustomerEmail)
	if errs != nil {
		return errs
	}
	if !emailPattern.MatchString(s) {
		return []ValidationError{{Field: parse.FieldCustomerEmail, Value: s, Message: "invalid email format"}}
	}
	t.CustomerEmail = s
	return nil
}

func ruleSubject(_ *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	s, errs := required(rec, parse.FieldSubject)
	if errs != nil {
		return errs
	}
	if errs := lengthBetween(parse.FieldSubject, s, MinSubjectLength, MaxSubjectLength); errs != nil {
		return errs
	}
	t.Subject = s
	return nil
}

func ruleDescription(_ *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	s, errs := required(rec, parse.FieldDescription)
	if errs != nil {
		return errs
	}
	if errs := lengthBetween(parse.FieldDescription, s, MinDescriptionLength, MaxDescriptionLength); errs != nil {
		return errs
	}
	t.Description = s
	return nil
}

func ruleCategory(v *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	c, errs := enumValue(v, rec, parse.FieldCategory, ticket.ParseCategory, ticket.Categories, ticket.DefaultCategory)
	t.Category = c
	return errs
}

func rulePriority(v *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	p, errs := enumValue(v, rec, parse.FieldPriority, ticket.ParsePriority, ticket.Priorities, ticket.DefaultPriority)
	t.Priority = p
	return errs
}

func ruleStatus(v *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	s, errs := enumValue(v, rec, parse.FieldStatus, ticket.ParseStatus, ticket.Statuses, ticket.DefaultStatus)
	t.Status = s
	return errs
}

func ruleSource(v *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	s, errs := enumValue(v, rec, parse.FieldSource, ticket.ParseSource, ticket.Sources, "")
	t.Source = s
	return errs
}

func ruleDeviceType(v *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	d, errs := enumValue(v, rec, parse.FieldDeviceType, ticket.ParseDeviceType, ticket.DeviceTypes, "")
	t.DeviceType = d
	return errs
}

func ruleBrowser(_ *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	s := value(rec, parse.FieldBrowser)
	if errs := maxLength(parse.FieldBrowser, s, MaxBrowserLength); errs != nil {
		return errs
	}
	t.Browser = s
	return nil
}

func ruleTags(_ *Validator, rec parse.Record, t *ticket.Ticket) []ValidationError {
	var (
		tags []string
		errs []ValidationError
	)
	seen := make(map[string]bool)
	for _, tag := range rec.List(parse.FieldTags) {
		if utf8.RuneCountInString(tag) > MaxTagLength {
			errs = append(errs, ValidationError{
				Field:   parse.FieldTags,
				Value:   truncate(tag, 60),
				Message: fmt.Sprintf("tag must be at most %d characters", MaxTagLength),
			})
			continue
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	if errs != nil {
		return errs
	}
	t.Tags = tags
	return nil
}
