package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
	"snare.dev/pkg/snare/internal/domain"
	m "snare.dev/pkg/snare/internal/model"
)

type attrs map[string]string

func n(kind m.NodeKind, a attrs, children ...*m.Node) *m.Node {
	return &m.Node{Kind: kind, Attrs: a, Children: children}
}

// layout assigns nested, non-overlapping spans in pre-order. Every node
// opens and closes on its own line, so a node's start line is unique.
func layout(root *m.Node) *m.Node {
	offset := 0

	var walk func(x *m.Node)
	walk = func(x *m.Node) {
		x.Span.Start = m.Position{Offset: offset * 10, Line: offset + 1, Column: 1}
		offset++

		for _, c := range x.Children {
			walk(c)
		}

		x.Span.End = m.Position{Offset: offset * 10, Line: offset + 1, Column: 1}
		offset++
	}

	walk(root)

	return root
}

func unitOf(lang string, d m.Dialect, children ...*m.Node) *m.SourceUnit {
	return &m.SourceUnit{
		ID:       "fixture",
		Dialect:  d,
		Language: lang,
		Root:     layout(n(m.KindUnit, nil, children...)),
	}
}

func scan(t *testing.T, unit *m.SourceUnit) []m.Finding {
	t.Helper()

	reg, err := NewRegistry(Settings{})
	require.NoError(t, err)

	engine, err := domain.NewEngine(reg)
	require.NoError(t, err)

	return engine.Scan(unit)
}

func byRule(findings []m.Finding, id string) []m.Finding {
	var out []m.Finding

	for _, f := range findings {
		if f.RuleID == id {
			out = append(out, f)
		}
	}

	return out
}

// Shorthand constructors for the node shapes rules look at.

func call(callee string, args ...*m.Node) *m.Node {
	return n(m.KindCallExpression, attrs{m.AttrCallee: callee}, args...)
}

func ident(name string) *m.Node {
	return n(m.KindIdentifier, attrs{m.AttrName: name})
}

func str(value string) *m.Node {
	return n(m.KindLiteral, attrs{m.AttrValue: value, m.AttrLiteral: "string"})
}

func block(stmts ...*m.Node) *m.Node {
	return n(m.KindBlock, nil, stmts...)
}

func fn(role string, children ...*m.Node) *m.Node {
	a := attrs{}
	if role != "" {
		a[m.AttrRole] = role
	}

	return n(m.KindFunction, a, children...)
}

func param(name string, children ...*m.Node) *m.Node {
	return n(m.KindParameter, attrs{m.AttrName: name}, children...)
}

func decl(name, keyword string, value ...*m.Node) *m.Node {
	return n(m.KindDeclaration, attrs{m.AttrName: name, m.AttrKeyword: keyword}, value...)
}

func ret(values ...*m.Node) *m.Node {
	return n(m.KindReturnStatement, nil, values...)
}

func hook(name, deps string, callback *m.Node) *m.Node {
	a := attrs{m.AttrHook: name}
	if deps != "-" {
		a[m.AttrDeps] = deps
	}

	if callback == nil {
		return n(m.KindLifecycleHook, a)
	}

	return n(m.KindLifecycleHook, a, callback)
}

// suppressed marks x with the suppression attribute and returns it.
func suppressed(x *m.Node) *m.Node {
	if x.Attrs == nil {
		x.Attrs = attrs{}
	}

	x.Attrs[m.AttrSuppress] = ""

	return x
}
