package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
	m "snare.dev/pkg/snare/internal/model"
)

type attrs map[string]string

// sp builds a span on a 100-column grid so lines are easy to read in tests.
func sp(start, end int) m.Span {
	return m.Span{
		Start: m.Position{Offset: start, Line: start/100 + 1, Column: start%100 + 1},
		End:   m.Position{Offset: end, Line: end/100 + 1, Column: end%100 + 1},
	}
}

func node(kind m.NodeKind, start, end int, a attrs, children ...*m.Node) *m.Node {
	return &m.Node{Kind: kind, Span: sp(start, end), Attrs: a, Children: children}
}

func unitOf(id string, root *m.Node) *m.SourceUnit {
	return &m.SourceUnit{ID: id, Dialect: m.DialectGeneric, Root: root}
}

func frozenEngine(t *testing.T, rules ...Rule) *Engine {
	t.Helper()

	reg := NewRegistry()
	for _, r := range rules {
		require.NoError(t, reg.Register(r))
	}

	reg.Freeze()

	engine, err := NewEngine(reg)
	require.NoError(t, err)

	return engine
}

func callRule(id string, sev m.Severity, callee string) Rule {
	return Rule{
		ID:       id,
		Category: m.CategoryCorrectness,
		Severity: sev,
		Kinds:    []m.NodeKind{m.KindCallExpression},
		Summary:  id + " fired",
		Check:    Fire(Self(CalleeIs(callee)), ""),
	}
}

func ruleIDs(findings []m.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.RuleID)
	}

	return out
}
