package domain

import "strings"

// Severity classifies how urgent a generated issue is.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// ParseSeverity matches a raw severity label case-insensitively.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return SeverityLow, true
	case "medium":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	}
	return "", false
}

// SeverityOrDefault falls back to Medium when the label is absent or unknown.
func SeverityOrDefault(raw string) Severity {
	if sev, ok := ParseSeverity(raw); ok {
		return sev
	}
	return SeverityMedium
}

// Group is one of the fixed role columns a card can belong to.
type Group string

const (
	GroupDev    Group = "Dev"
	GroupPM     Group = "PM"
	GroupDesign Group = "Design"
)

// Groups returns every group in display order. The set is closed; callers
// iterate this instead of ranging over board maps so column order is stable.
func Groups() []Group {
	return []Group{GroupDev, GroupPM, GroupDesign}
}

// ParseGroup matches a raw group label against the closed set.
func ParseGroup(raw string) (Group, bool) {
	switch Group(raw) {
	case GroupDev, GroupPM, GroupDesign:
		return Group(raw), true
	}
	return "", false
}

// Card is a single board item. Cards are immutable values; moving a card
// produces a new board state referencing the same value.
type Card struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`
}
