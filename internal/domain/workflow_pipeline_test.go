package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "snare.dev/pkg/snare/internal/model"
)

func TestMergeErrorChannels(t *testing.T) {
	t.Run("first error wins", func(t *testing.T) {
		ch1 := make(chan error, 1)
		ch2 := make(chan error)
		boom := errors.New("boom")

		ch1 <- boom
		close(ch1)

		merged := mergeErrorChannels(ch1, ch2)

		select {
		case err := <-merged:
			require.ErrorIs(t, err, boom)
		case <-time.After(time.Second):
			t.Fatal("merged channel did not deliver the error")
		}

		_, ok := <-merged
		assert.False(t, ok)
	})

	t.Run("closes when both close", func(t *testing.T) {
		ch1 := make(chan error)
		ch2 := make(chan error)

		close(ch1)
		close(ch2)

		select {
		case err, ok := <-mergeErrorChannels(ch1, ch2):
			assert.False(t, ok)
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("merged channel did not close")
		}
	})
}

func TestDiffReports(t *testing.T) {
	finding := m.Finding{
		RuleID:   "sql-injection",
		Category: m.CategorySecurity,
		Severity: m.SeverityCritical,
		Unit:     "api/users",
		Span:     sp(110, 140),
		Message:  "query built from request input",
	}

	base := m.RunReport{ID: "one", Units: []m.UnitResult{{
		Unit:    "api/users",
		Summary: m.Summary{Findings: []m.Finding{finding}},
		Verdict: &m.Verdict{Pass: true},
	}}}

	t.Run("identical", func(t *testing.T) {
		diff, err := DiffReports(base, base)
		require.NoError(t, err)
		assert.Empty(t, diff)
	})

	t.Run("both empty", func(t *testing.T) {
		diff, err := DiffReports(m.RunReport{ID: "a"}, m.RunReport{ID: "b"})
		require.NoError(t, err)
		assert.Empty(t, diff)
	})

	t.Run("finding fixed and verdict flipped", func(t *testing.T) {
		head := m.RunReport{ID: "two", Units: []m.UnitResult{{
			Unit:    "api/users",
			Verdict: &m.Verdict{Pass: false},
		}}}

		diff, err := DiffReports(base, head)
		require.NoError(t, err)

		assert.Contains(t, diff, "--- base/one\n+++ head/two\n")
		assert.Contains(t, diff, "\n-api/users:2:11-2:41 [security/critical] sql-injection: query built from request input\n")
		assert.Contains(t, diff, "\n-api/users: verdict pass\n")
		assert.Contains(t, diff, "\n+api/users: verdict fail\n")
	})
}

func TestReportLines_Sorted(t *testing.T) {
	report := m.RunReport{Units: []m.UnitResult{
		{Unit: "b", Summary: m.Summary{Findings: []m.Finding{{Unit: "b", RuleID: "r"}}}},
		{Unit: "a", Summary: m.Summary{Findings: []m.Finding{{Unit: "a", RuleID: "r"}}}},
	}}

	lines := reportLines(report)
	require.Len(t, lines, 2)
	assert.Equal(t, "a:0:0-0:0 [/] r: \n", lines[0])
	assert.Equal(t, "b:0:0-0:0 [/] r: \n", lines[1])
}
