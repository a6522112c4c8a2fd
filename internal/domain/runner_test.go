package domain

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "snare.dev/pkg/snare/internal/model"
)

// variedCalls is the number of calls to a and b in the i-th varied tree.
func variedCalls(i int) (int, int) {
	return 1 + i%3, i % 4
}

// variedTree builds a handler whose calls differ per i: a calls first, then
// b calls, nested in a loop for odd i.
func variedTree(i int) *m.Node {
	as, bs := variedCalls(i)
	end := 200 + (as+bs)*100

	calls := make([]*m.Node, 0, as+bs)
	for k := 0; k < as+bs; k++ {
		callee := "a"
		if k >= as {
			callee = "b"
		}

		start := 200 + k*100
		calls = append(calls, node(m.KindCallExpression, start, start+50, attrs{m.AttrCallee: callee}))
	}

	body := node(m.KindBlock, 100, end+10, nil, calls...)
	if i%2 == 1 {
		body = node(m.KindBlock, 100, end+10, nil,
			node(m.KindLoopStatement, 150, end, nil,
				node(m.KindBlock, 150, end, nil, calls...),
			),
		)
	}

	return node(m.KindUnit, 0, end+20, nil,
		node(m.KindFunction, 0, end+20, attrs{m.AttrName: fmt.Sprintf("handler%d", i)},
			node(m.KindParameter, 10, 20, attrs{m.AttrName: "req"}),
			body,
		),
	)
}

func manyJobs(n int) []Job {
	jobs := make([]Job, 0, n)
	for i := 0; i < n; i++ {
		unit := unitOf(fmt.Sprintf("unit-%02d", i), variedTree(i))
		jobs = append(jobs, Job{Unit: unit, Path: m.Path(unit.ID)})
	}

	return jobs
}

func TestRunner_RunMatchesSequentialScans(t *testing.T) {
	engine := frozenEngine(t,
		callRule("calls-a", m.SeverityWarning, "a"),
		callRule("calls-b", m.SeverityCritical, "b"),
	)
	jobs := manyJobs(32)

	results, err := NewRunner(engine, nil, RunnerOptions{Threads: 8}).Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))

	for i, job := range jobs {
		as, bs := variedCalls(i)
		result := results[i]

		assert.Equal(t, job.Unit.ID, result.Unit)
		assert.Equal(t, engine.Scan(job.Unit), result.Findings)
		assert.Equal(t, as+bs, result.Summary.Total, job.Unit.ID)
		assert.Equal(t, as, result.Summary.BySeverity[m.SeverityWarning], job.Unit.ID)
		assert.Equal(t, bs, result.Summary.BySeverity[m.SeverityCritical], job.Unit.ID)
		assert.Nil(t, result.Verdict)

		require.Len(t, result.Findings, as+bs)
		assert.Equal(t, sp(200+(as+bs-1)*100, 250+(as+bs-1)*100), result.Findings[as+bs-1].Span, job.Unit.ID)

		for _, f := range result.Findings {
			assert.Equal(t, job.Unit.ID, f.Unit)
		}
	}
}

func TestRunner_GradesJobs(t *testing.T) {
	engine := frozenEngine(t, callRule("calls-a", m.SeverityWarning, "a"))
	jobs := []Job{
		{Unit: unitOf("pass", handlerTree()), Grade: true, Oracle: &m.ExpectedOracle{Classification: m.Buggy, Expect: map[string]int{"correctness": 2}}},
		{Unit: unitOf("fail", handlerTree()), Grade: true, Oracle: &m.ExpectedOracle{Classification: m.Clean}},
		{Unit: unitOf("orphan", handlerTree()), Grade: true},
	}

	results, err := NewRunner(engine, NewComparator(m.ModeAtLeast), RunnerOptions{Threads: 2}).Run(context.Background(), jobs)
	require.NoError(t, err)

	require.NotNil(t, results[0].Verdict)
	assert.True(t, results[0].Verdict.Pass)
	assert.False(t, results[0].Failed())

	assert.True(t, results[1].Failed())
	require.Len(t, results[1].Verdict.Mismatches, 2)

	assert.True(t, results[2].Failed())
	assert.Equal(t, m.MismatchMissingOracle, results[2].Verdict.Mismatches[0].Kind)
}

func TestRunner_AbandonsSlowScans(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	slow := Rule{
		ID:       "slow",
		Category: m.CategoryPerformance,
		Severity: m.SeverityInfo,
		Kinds:    []m.NodeKind{m.KindUnit},
		Check: func(_ *m.Node, ctx *MatchContext) (*Match, error) {
			if ctx.UnitID() == "slow" {
				<-release
			}

			return nil, nil
		},
	}
	engine := frozenEngine(t, slow, callRule("calls-a", m.SeverityWarning, "a"))

	jobs := []Job{
		{Unit: unitOf("slow", handlerTree())},
		{Unit: unitOf("fast", handlerTree())},
	}

	results, err := NewRunner(engine, nil, RunnerOptions{Threads: 2, ScanTimeout: 50 * time.Millisecond}).Run(context.Background(), jobs)
	require.NoError(t, err)

	require.Len(t, results[0].Findings, 1)
	abandoned := results[0].Findings[0]
	assert.Equal(t, RuleScanAbandoned, abandoned.RuleID)
	assert.Equal(t, m.CategoryInternal, abandoned.Category)
	assert.Equal(t, sp(0, 500), abandoned.Span)
	assert.Zero(t, results[0].Summary.Total)

	assert.Len(t, results[1].Findings, 2)
}

func TestRunner_RunCancelled(t *testing.T) {
	engine := frozenEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(engine, nil, RunnerOptions{Threads: 1}).Run(ctx, manyJobs(4))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_Stream(t *testing.T) {
	engine := frozenEngine(t, callRule("calls-a", m.SeverityWarning, "a"))
	jobs := manyJobs(10)

	input := make(chan Job)
	go func() {
		defer close(input)

		for _, j := range jobs {
			input <- j
		}
	}()

	results, errs := NewRunner(engine, nil, RunnerOptions{Threads: 4}).Stream(context.Background(), input)

	expected := make(map[string]int, len(jobs))
	for i, j := range jobs {
		as, _ := variedCalls(i)
		expected[j.Unit.ID] = as
	}

	var units []string
	for r := range results {
		units = append(units, r.Unit)
		assert.Len(t, r.Findings, expected[r.Unit], r.Unit)
	}

	for err := range errs {
		require.NoError(t, err)
	}

	sort.Strings(units)
	require.Len(t, units, len(jobs))
	assert.Equal(t, "unit-00", units[0])
	assert.Equal(t, "unit-09", units[9])
}
