package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "snare.dev/pkg/snare/internal/model"
)

func finding(rule string, cat m.Category, sev m.Severity, start, end int) m.Finding {
	return m.Finding{RuleID: rule, Category: cat, Severity: sev, Unit: "u", Span: sp(start, end), Message: rule}
}

func TestAggregate(t *testing.T) {
	findings := []m.Finding{
		finding("sql-injection", m.CategorySecurity, m.SeverityCritical, 300, 320),
		finding("weak-hash", m.CategorySecurity, m.SeverityWarning, 100, 110),
		finding("sql-injection", m.CategorySecurity, m.SeverityCritical, 300, 320),
		finding("defer-in-loop", m.CategoryPerformance, m.SeverityWarning, 100, 110),
		finding(RuleMalformedAST, m.CategoryInternal, m.SeverityWarning, 0, 5),
	}
	input := append([]m.Finding(nil), findings...)

	summary := Aggregate("u", findings)

	assert.Equal(t, input, findings, "input must not be modified")
	assert.Equal(t, "u", summary.Unit)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, map[m.Category]int{
		m.CategorySecurity:    2,
		m.CategoryPerformance: 1,
		m.CategoryInternal:    1,
	}, summary.Counts)
	assert.Equal(t, map[m.Severity]int{
		m.SeverityCritical: 1,
		m.SeverityWarning:  3,
	}, summary.BySeverity)

	require.Len(t, summary.Findings, 4)
	assert.Equal(t, []string{RuleMalformedAST, "defer-in-loop", "weak-hash", "sql-injection"}, ruleIDs(summary.Findings))
}

func TestAggregate_KeepsFirstOccurrence(t *testing.T) {
	first := finding("r", m.CategoryStyle, m.SeverityInfo, 10, 20)
	first.Message = "first"
	second := first
	second.Message = "second"

	summary := Aggregate("u", []m.Finding{first, second})

	require.Len(t, summary.Findings, 1)
	assert.Equal(t, "first", summary.Findings[0].Message)
}

func TestAggregate_Empty(t *testing.T) {
	summary := Aggregate("u", nil)

	assert.NotNil(t, summary.Findings)
	assert.Empty(t, summary.Findings)
	assert.Zero(t, summary.Total)

	n, err := summary.Count("security")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMerge(t *testing.T) {
	a := Aggregate("a", []m.Finding{finding("r1", m.CategorySecurity, m.SeverityCritical, 0, 1)})
	b := Aggregate("b", []m.Finding{
		finding("r2", m.CategorySecurity, m.SeverityWarning, 0, 1),
		finding("r3", m.CategoryStyle, m.SeverityInfo, 5, 6),
	})

	merged := Merge(a, b)

	assert.Equal(t, 3, merged.Total)
	assert.Equal(t, 2, merged.Counts[m.CategorySecurity])
	assert.Equal(t, 1, merged.Counts[m.CategoryStyle])
	assert.Equal(t, []string{"r1", "r2", "r3"}, ruleIDs(merged.Findings))
}
