package controller

import (
	"time"

	m "snare.dev/pkg/snare/internal/model"
)

func findingAt(unit, rule string, category m.Category, severity m.Severity, line int, message string) m.Finding {
	return m.Finding{
		RuleID:   rule,
		Category: category,
		Severity: severity,
		Unit:     unit,
		Span: m.Span{
			Start: m.Position{Offset: line * 10, Line: line, Column: 3},
			End:   m.Position{Offset: line*10 + 5, Line: line, Column: 8},
		},
		Message: message,
	}
}

func sampleCheckReport() m.RunReport {
	cartFindings := []m.Finding{
		findingAt("ui/cart", "missing-key", m.CategoryCorrectness, m.SeverityWarning, 12, "list item without key"),
		findingAt("ui/cart", "inline-handler", m.CategoryPerformance, m.SeverityInfo, 20, "inline function in render"),
	}
	return m.RunReport{
		ID:        "run-42",
		StartedAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		Mode:      m.RunCheck,
		Compare:   m.ModeAtLeast,
		Failed:    1,
		Units: []m.UnitResult{
			{
				Unit:     "api/users",
				Dialect:  m.DialectServerHandler,
				Findings: []m.Finding{},
				Summary:  m.Summary{Unit: "api/users", Counts: map[m.Category]int{}},
				Verdict: &m.Verdict{
					Unit:           "api/users",
					Classification: m.Buggy,
					Pass:           false,
					Mismatches: []m.Mismatch{
						{Kind: m.MismatchMissing, Category: "security", Expected: 2, Observed: 0},
					},
				},
			},
			{
				Unit:     "ui/cart",
				Dialect:  m.DialectUIComponent,
				Findings: cartFindings,
				Summary: m.Summary{
					Unit:     "ui/cart",
					Findings: cartFindings,
					Counts:   map[m.Category]int{m.CategoryCorrectness: 1, m.CategoryPerformance: 1},
					Total:    2,
				},
				Verdict: &m.Verdict{
					Unit:           "ui/cart",
					Classification: m.Clean,
					Pass:           true,
					Mismatches:     []m.Mismatch{},
				},
			},
		},
	}
}
