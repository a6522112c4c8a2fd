package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "snare.dev/pkg/snare/internal/model"
)

func handler(stmts ...*m.Node) *m.Node {
	return fn(roleHandler, param("req"), param("res"), block(stmts...))
}

func TestMultipleResponses(t *testing.T) {
	t.Run("two sequential responses fire once at the second", func(t *testing.T) {
		first := call("res.json", ident("user"))
		second := call("res.json", n(m.KindLiteral, attrs{m.AttrValue: "{}", m.AttrLiteral: "object"}))

		unit := unitOf("javascript", m.DialectServerHandler, handler(first, second))
		findings := scan(t, unit)

		require.Len(t, findings, 1)

		f := findings[0]
		assert.Equal(t, "multiple-responses", f.RuleID)
		assert.Equal(t, m.SeverityCritical, f.Severity)
		assert.Equal(t, m.CategoryCorrectness, f.Category)
		assert.Equal(t, second.Span, f.Span)
		assert.Equal(t, []m.Span{first.Span}, f.Secondary)
		assert.Contains(t, f.Message, "response already sent")
	})

	t.Run("guarded early return does not fire", func(t *testing.T) {
		guard := n(m.KindConditionalBlock, nil,
			n(m.KindBinaryExpression, attrs{m.AttrOperator: "!"}, ident("user")),
			block(ret(call("res.status.json", str("not found")))),
		)

		unit := unitOf("javascript", m.DialectServerHandler, handler(guard, call("res.json", ident("user"))))

		assert.Empty(t, byRule(scan(t, unit), "multiple-responses"))
	})

	t.Run("unguarded branch response followed by another fires", func(t *testing.T) {
		branch := n(m.KindConditionalBlock, nil,
			n(m.KindBinaryExpression, attrs{m.AttrOperator: "!"}, ident("user")),
			block(call("res.status.send", str("missing"))),
		)

		unit := unitOf("javascript", m.DialectServerHandler, handler(call("res.send", str("ok")), branch))

		assert.Len(t, byRule(scan(t, unit), "multiple-responses"), 1)
	})

	t.Run("go handler responses marked by the front-end", func(t *testing.T) {
		write := func(callee string) *m.Node {
			return n(m.KindCallExpression, attrs{m.AttrCallee: callee, m.AttrEffect: EffectTerminalResponse}, ident("w"))
		}

		unit := unitOf("go", m.DialectServerHandler, handler(write("http.Error"), write("w.Write")))

		assert.Len(t, byRule(scan(t, unit), "multiple-responses"), 1)
	})
}

func TestSQLInjection(t *testing.T) {
	tests := []struct {
		name  string
		stmts []*m.Node
		fires bool
	}{
		{
			name:  "template string",
			stmts: []*m.Node{call("db.query", n(m.KindTemplateString, nil, ident("id")))},
			fires: true,
		},
		{
			name: "concatenation through a variable",
			stmts: []*m.Node{
				decl("q", "const", n(m.KindBinaryExpression, attrs{m.AttrOperator: "+"}, str("SELECT * FROM users WHERE id = "), ident("id"))),
				call("db.query", ident("q")),
			},
			fires: true,
		},
		{
			name:  "go Sprintf",
			stmts: []*m.Node{call("db.QueryContext", call("fmt.Sprintf", str("SELECT %s"), ident("col")))},
			fires: true,
		},
		{
			name:  "bound parameters",
			stmts: []*m.Node{call("db.query", str("SELECT * FROM users WHERE id = ?"), ident("id"))},
		},
		{
			name: "constant concatenation",
			stmts: []*m.Node{
				decl("q", "const", n(m.KindBinaryExpression, attrs{m.AttrOperator: "+"}, str("SELECT * "), str("FROM users"))),
				call("db.query", ident("q")),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := byRule(scan(t, unitOf("javascript", m.DialectServerHandler, handler(tt.stmts...))), "sql-injection")
			if tt.fires {
				require.Len(t, findings, 1)
				assert.Equal(t, m.CategorySecurity, findings[0].Category)
			} else {
				assert.Empty(t, findings)
			}
		})
	}
}

func TestEvalUserInput(t *testing.T) {
	fires := []*m.Node{
		call("eval", ident("code")),
		call("child_process.exec", n(m.KindTemplateString, nil, ident("file"))),
	}
	quiet := []*m.Node{
		call("eval", str("1 + 1")),
		call("child_process.exec", str("ls -la")),
	}

	assert.Len(t, byRule(scan(t, unitOf("javascript", m.DialectServerHandler, handler(fires...))), "eval-user-input"), 2)
	assert.Empty(t, byRule(scan(t, unitOf("javascript", m.DialectServerHandler, handler(quiet...))), "eval-user-input"))
}

func TestErrorStackExposure(t *testing.T) {
	catch := n(m.KindCatchClause, nil,
		param("err"),
		block(call("res.status.json", n(m.KindMemberAccess, attrs{m.AttrName: "err.stack"}))),
	)
	tryBlock := n(m.KindTryBlock, nil, block(call("doWork")), catch)

	findings := byRule(scan(t, unitOf("javascript", m.DialectServerHandler, handler(tryBlock))), "error-stack-exposure")
	assert.Len(t, findings, 1)

	goHandler := handler(n(m.KindCallExpression,
		attrs{m.AttrCallee: "http.Error", m.AttrEffect: EffectTerminalResponse},
		ident("w"), call("string", call("debug.Stack")),
	))
	assert.Len(t, byRule(scan(t, unitOf("go", m.DialectServerHandler, goHandler)), "error-stack-exposure"), 1)

	safe := handler(call("res.status.json", n(m.KindMemberAccess, attrs{m.AttrName: "err.message"})))
	assert.Empty(t, byRule(scan(t, unitOf("javascript", m.DialectServerHandler, safe)), "error-stack-exposure"))
}

func TestBlockingCallInHandler(t *testing.T) {
	inHandler := handler(call("fs.readFileSync", str("config.json")), call("time.Sleep", ident("d")))
	assert.Len(t, byRule(scan(t, unitOf("javascript", m.DialectServerHandler, inHandler)), "blocking-call-in-handler"), 2)

	startup := fn("", block(call("fs.readFileSync", str("config.json"))))
	assert.Empty(t, byRule(scan(t, unitOf("javascript", m.DialectServerHandler, startup)), "blocking-call-in-handler"))
}

func TestGlobalMutableState(t *testing.T) {
	t.Run("module cache written by a handler", func(t *testing.T) {
		cache := decl("cache", "const", n(m.KindLiteral, attrs{m.AttrLiteral: "object"}))
		write := n(m.KindAssignmentStatement, attrs{m.AttrTarget: "cache[key]", m.AttrOperator: "="}, ident("value"))
		push := call("cache.set", ident("key"), ident("value"))

		findings := byRule(scan(t, unitOf("javascript", m.DialectServerHandler, cache, handler(write, push))), "global-mutable-state")

		require.Len(t, findings, 2)
		assert.Equal(t, []m.Span{cache.Span}, findings[0].Secondary)
	})

	t.Run("counter reassigned by a function", func(t *testing.T) {
		counter := decl("requests", "let", n(m.KindLiteral, attrs{m.AttrValue: "0", m.AttrLiteral: "number"}))
		inc := n(m.KindAssignmentStatement, attrs{m.AttrTarget: "requests", m.AttrOperator: "+="}, n(m.KindLiteral, attrs{m.AttrValue: "1"}))

		assert.Len(t, byRule(scan(t, unitOf("javascript", m.DialectServerHandler, counter, handler(inc))), "global-mutable-state"), 1)
	})

	t.Run("local state and top-level setup are fine", func(t *testing.T) {
		cache := decl("cache", "const", n(m.KindLiteral, attrs{m.AttrLiteral: "object"}))
		setup := n(m.KindAssignmentStatement, attrs{m.AttrTarget: "cache.ready", m.AttrOperator: "="}, n(m.KindLiteral, attrs{m.AttrValue: "true"}))
		local := handler(
			decl("seen", "const", n(m.KindLiteral, attrs{m.AttrLiteral: "object"})),
			call("seen.add", ident("id")),
		)

		assert.Empty(t, byRule(scan(t, unitOf("javascript", m.DialectServerHandler, cache, setup, local)), "global-mutable-state"))
	})
}

func TestLegacyVarDeclaration(t *testing.T) {
	js := unitOf("javascript", m.DialectServerHandler, decl("count", "var", str("0")))
	findings := byRule(scan(t, js), "legacy-var-declaration")

	require.Len(t, findings, 1)
	assert.Equal(t, m.SeverityInfo, findings[0].Severity)
	assert.Equal(t, "use let or const instead of var for count", findings[0].Message)

	goUnit := unitOf("go", m.DialectServerHandler, decl("count", "var", str("0")))
	assert.Empty(t, byRule(scan(t, goUnit), "legacy-var-declaration"))
}
