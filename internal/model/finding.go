// Package model defines the data structures shared by the rule engine,
// the aggregator and the oracle comparator.
package model

import (
	"fmt"
	"strings"
)

// Category groups rules by the kind of defect they detect.
type Category string

const (
	// CategorySecurity covers injection, secrets and unsafe primitives.
	CategorySecurity Category = "security"
	// CategoryCorrectness covers logic errors.
	CategoryCorrectness Category = "correctness"
	// CategoryPerformance covers avoidable work.
	CategoryPerformance Category = "performance"
	// CategoryReliability covers leaks, races and swallowed failures.
	CategoryReliability Category = "reliability"
	// CategoryStyle covers anti-patterns that are not defects on their own.
	CategoryStyle Category = "style"
	// CategoryInternal is reserved for findings produced by the engine itself.
	CategoryInternal Category = "internal"
)

// Categories lists the rule categories in reporting order.
var Categories = []Category{
	CategorySecurity,
	CategoryCorrectness,
	CategoryPerformance,
	CategoryReliability,
	CategoryStyle,
	CategoryInternal,
}

// ParseCategory accepts the lowercase name, the capitalized name used in
// fixture metadata ("Security", "StyleAntiPattern") or any case variant.
func ParseCategory(value string) (Category, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "styleantipattern" || v == "style-anti-pattern" {
		v = string(CategoryStyle)
	}

	for _, c := range Categories {
		if string(c) == v {
			return c, nil
		}
	}

	return "", fmt.Errorf("unknown category %q", value)
}

// Severity ranks how urgent a finding is.
type Severity string

const (
	// SeverityCritical must never appear on clean code.
	SeverityCritical Severity = "critical"
	// SeverityWarning must never appear on clean code either.
	SeverityWarning Severity = "warning"
	// SeverityInfo is advisory.
	SeverityInfo Severity = "info"
)

// Rank returns a number that increases with severity.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Blocking reports whether the severity fails a clean fixture.
func (s Severity) Blocking() bool {
	return s == SeverityCritical || s == SeverityWarning
}

// ParseSeverity converts a config value into a Severity.
func ParseSeverity(value string) (Severity, error) {
	switch s := Severity(strings.ToLower(strings.TrimSpace(value))); s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return s, nil
	case "error", "high":
		return SeverityCritical, nil
	case "medium":
		return SeverityWarning, nil
	case "low", "note":
		return SeverityInfo, nil
	default:
		return "", fmt.Errorf("unknown severity %q", value)
	}
}

// Finding is one occurrence of a rule firing on a span.
type Finding struct {
	RuleID    string   `json:"rule_id"`
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`
	Unit      string   `json:"unit"`
	Span      Span     `json:"span"`
	Secondary []Span   `json:"secondary,omitempty"`
	Message   string   `json:"message"`
}

// FindingKey identifies a finding for deduplication.
type FindingKey struct {
	RuleID string
	Span   Span
}

// Key returns the identity of the finding.
func (f Finding) Key() FindingKey {
	return FindingKey{RuleID: f.RuleID, Span: f.Span}
}

// String renders the finding as a single stable line.
func (f Finding) String() string {
	return fmt.Sprintf("%s:%s [%s/%s] %s: %s", f.Unit, f.Span, f.Category, f.Severity, f.RuleID, f.Message)
}

// RuleInfo describes a registered rule for listings and SARIF metadata.
type RuleInfo struct {
	ID       string     `json:"id"`
	Category Category   `json:"category"`
	Severity Severity   `json:"severity"`
	Kinds    []NodeKind `json:"kinds"`
	Summary  string     `json:"summary"`
}
