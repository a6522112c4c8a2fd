package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "snare.dev/pkg/snare/internal/model"
)

func securityFindings(n int) []m.Finding {
	out := make([]m.Finding, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, finding("sql-injection", m.CategorySecurity, m.SeverityCritical, i*10, i*10+5))
	}

	return out
}

func TestComparator_CleanFixturePasses(t *testing.T) {
	summary := Aggregate("clean.ast.yaml", nil)
	oracle := &m.ExpectedOracle{Unit: "clean.ast.yaml", Classification: m.Clean, Expect: map[string]int{}}

	verdict := NewComparator("").Compare(summary, oracle)

	assert.True(t, verdict.Pass)
	assert.Empty(t, verdict.Mismatches)
	assert.Equal(t, m.Clean, verdict.Classification)
}

func TestComparator_MissingDetections(t *testing.T) {
	summary := Aggregate("buggy", securityFindings(3))
	oracle := &m.ExpectedOracle{Classification: m.Buggy, Expect: map[string]int{"Security": 5}}

	verdict := NewComparator(m.ModeAtLeast).Compare(summary, oracle)

	assert.False(t, verdict.Pass)
	assert.Equal(t, []m.Mismatch{{
		Kind:     m.MismatchMissing,
		Category: "security",
		Expected: 5,
		Observed: 3,
	}}, verdict.Mismatches)

	require.NotEmpty(t, verdict.Deltas)
	assert.Equal(t, m.CategoryDelta{Category: "security", Expected: 5, Observed: 3, Delta: -2, Tracked: true}, verdict.Deltas[0])
}

func TestComparator_AtLeastIsMonotonic(t *testing.T) {
	oracle := &m.ExpectedOracle{Classification: m.Buggy, Expect: map[string]int{"security": 3, "total": 3}}
	comparator := NewComparator(m.ModeAtLeast)

	for n := 3; n <= 8; n++ {
		verdict := comparator.Compare(Aggregate("u", securityFindings(n)), oracle)
		assert.True(t, verdict.Pass, "%d findings should satisfy a minimum of 3", n)
	}
}

func TestComparator_ExactMode(t *testing.T) {
	oracle := &m.ExpectedOracle{Classification: m.Buggy, Expect: map[string]int{"security": 3}}
	comparator := NewComparator(m.ModeExact)

	assert.Equal(t, m.ModeExact, comparator.Mode())
	assert.True(t, comparator.Compare(Aggregate("u", securityFindings(3)), oracle).Pass)

	verdict := comparator.Compare(Aggregate("u", securityFindings(4)), oracle)
	assert.False(t, verdict.Pass)
	require.Len(t, verdict.Mismatches, 1)
	assert.Equal(t, m.MismatchExcess, verdict.Mismatches[0].Kind)
	assert.Equal(t, 4, verdict.Mismatches[0].Observed)
}

func TestComparator_MissingOracle(t *testing.T) {
	comparator := NewComparator(m.ModeAtLeast)
	summary := Aggregate("u", securityFindings(1))

	t.Run("nil oracle", func(t *testing.T) {
		verdict := comparator.Compare(summary, nil)

		assert.False(t, verdict.Pass)
		require.Len(t, verdict.Mismatches, 1)
		assert.Equal(t, m.MismatchMissingOracle, verdict.Mismatches[0].Kind)
	})

	t.Run("malformed oracle", func(t *testing.T) {
		verdict := comparator.Compare(summary, &m.ExpectedOracle{Classification: "flaky", Expect: map[string]int{"speed": -1}})

		assert.False(t, verdict.Pass)
		require.Len(t, verdict.Mismatches, 1)
		assert.Equal(t, m.MismatchMissingOracle, verdict.Mismatches[0].Kind)
		assert.Contains(t, verdict.Mismatches[0].Detail, "malformed oracle")
	})
}

func TestComparator_CleanFixtureWithBlockingFinding(t *testing.T) {
	findings := []m.Finding{
		finding("legacy-var-declaration", m.CategoryStyle, m.SeverityInfo, 0, 10),
		finding("weak-hash", m.CategorySecurity, m.SeverityWarning, 20, 30),
	}
	oracle := &m.ExpectedOracle{Classification: m.Clean}

	verdict := NewComparator(m.ModeAtLeast).Compare(Aggregate("u", findings), oracle)

	assert.False(t, verdict.Pass)
	require.Len(t, verdict.Mismatches, 1)

	mm := verdict.Mismatches[0]
	assert.Equal(t, m.MismatchUnexpected, mm.Kind)
	assert.Equal(t, "weak-hash", mm.RuleID)
	require.NotNil(t, mm.Span)
	assert.Equal(t, sp(20, 30), *mm.Span)
}

func TestComparator_InternalFindingsDoNotCountTowardsTotal(t *testing.T) {
	findings := []m.Finding{finding(RuleScanAbandoned, m.CategoryInternal, m.SeverityWarning, 0, 100)}
	oracle := &m.ExpectedOracle{Classification: m.Buggy, Expect: map[string]int{"total": 1}}

	verdict := NewComparator(m.ModeAtLeast).Compare(Aggregate("u", findings), oracle)

	assert.False(t, verdict.Pass)

	var internal *m.CategoryDelta
	for i := range verdict.Deltas {
		if verdict.Deltas[i].Category == string(m.CategoryInternal) {
			internal = &verdict.Deltas[i]
		}
	}

	require.NotNil(t, internal)
	assert.Equal(t, 1, internal.Observed)
	assert.False(t, internal.Tracked)
}
