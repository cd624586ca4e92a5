package ticket

import "strings"

// Category groups tickets by the kind of problem reported.
type Category string

const (
	CategoryAccountAccess   Category = "account_access"
	CategoryTechnicalIssue  Category = "technical_issue"
	CategoryBillingQuestion Category = "billing_question"
	CategoryFeatureRequest  Category = "feature_request"
	CategoryBugReport       Category = "bug_report"
	CategoryOther           Category = "other"
)

// DefaultCategory is used when nothing more specific applies.
const DefaultCategory = CategoryOther

// Priority orders tickets by urgency.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// DefaultPriority is used when nothing more specific applies.
const DefaultPriority = PriorityMedium

// Status tracks a ticket through its lifecycle.
type Status string

const (
	StatusNew             Status = "new"
	StatusInProgress      Status = "in_progress"
	StatusWaitingCustomer Status = "waiting_customer"
	StatusResolved        Status = "resolved"
	StatusClosed          Status = "closed"
)

// DefaultStatus is assigned by stores to tickets saved without a status.
const DefaultStatus = StatusNew

// Source records the channel a ticket arrived through.
type Source string

const (
	SourceWebForm Source = "web_form"
	SourceEmail   Source = "email"
	SourceAPI     Source = "api"
	SourceChat    Source = "chat"
	SourcePhone   Source = "phone"
)

// DeviceType records the kind of device the customer reported from.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

// Value lists for each enumeration, in canonical order.
var (
	Categories  = []Category{CategoryAccountAccess, CategoryTechnicalIssue, CategoryBillingQuestion, CategoryFeatureRequest, CategoryBugReport, CategoryOther}
	Priorities  = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}
	Statuses    = []Status{StatusNew, StatusInProgress, StatusWaitingCustomer, StatusResolved, StatusClosed}
	Sources     = []Source{SourceWebForm, SourceEmail, SourceAPI, SourceChat, SourcePhone}
	DeviceTypes = []DeviceType{DeviceDesktop, DeviceMobile, DeviceTablet}
)

// ParseCategory matches s case-insensitively against the known categories.
func ParseCategory(s string) (Category, bool) { return parseEnum(s, Categories) }

// ParsePriority matches s case-insensitively against the known priorities.
func ParsePriority(s string) (Priority, bool) { return parseEnum(s, Priorities) }

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, bool) { return parseEnum(s, Statuses) }

// ParseSource matches s case-insensitively against the known sources.
func ParseSource(s string) (Source, bool) { return parseEnum(s, Sources) }

// ParseDeviceType matches s case-insensitively against the known device types.
func ParseDeviceType(s string) (DeviceType, bool) { return parseEnum(s, DeviceTypes) }

// parseEnum accepts "In Progress", "in-progress" and "IN_PROGRESS" alike.
func parseEnum[T ~string](s string, values []T) (T, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for _, v := range values {
		if string(v) == key {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Names returns the string form of each value, for error messages.
func Names[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
