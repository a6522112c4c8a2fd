package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "snare.dev/pkg/snare/internal/model"
)

func acquire(name, callee string) *m.Node {
	return n(m.KindResourceAcquisition, attrs{m.AttrName: name, m.AttrCallee: callee}, str("data.txt"))
}

func errGuard(stmts ...*m.Node) *m.Node {
	return n(m.KindConditionalBlock, nil,
		n(m.KindBinaryExpression, attrs{m.AttrOperator: "!="}, ident("err"), n(m.KindLiteral, attrs{m.AttrLiteral: "nil"})),
		block(stmts...),
	)
}

func script(stmts ...*m.Node) *m.SourceUnit {
	return unitOf("go", m.DialectConcurrentScript, fn("", block(stmts...)))
}

func TestResourceLeak(t *testing.T) {
	tests := []struct {
		name    string
		stmts   []*m.Node
		message string
	}{
		{
			name:    "never released",
			stmts:   []*m.Node{acquire("f", "os.Open"), call("process", ident("f"))},
			message: "f acquired by os.Open is never released",
		},
		{
			name: "deferred close after error check",
			stmts: []*m.Node{
				acquire("f", "os.Open"),
				errGuard(ret(ident("err"))),
				n(m.KindDeferStatement, nil, call("f.Close")),
				call("process", ident("f")),
			},
		},
		{
			name: "early return skips the close",
			stmts: []*m.Node{
				acquire("conn", "net.Dial"),
				n(m.KindConditionalBlock, nil,
					n(m.KindBinaryExpression, attrs{m.AttrOperator: "=="}, ident("size"), n(m.KindLiteral, attrs{m.AttrValue: "0"})),
					block(ret()),
				),
				call("conn.Close"),
			},
			message: "conn is not released when the function exits at line",
		},
		{
			name:    "return before release",
			stmts:   []*m.Node{acquire("f", "open"), ret(call("compute")), call("f.close")},
			message: "f is never released before the function exits",
		},
		{
			name:  "handed to the caller",
			stmts: []*m.Node{acquire("f", "os.Open"), ret(ident("f"), n(m.KindLiteral, attrs{m.AttrLiteral: "nil"}))},
		},
		{
			name:  "released with a release statement",
			stmts: []*m.Node{acquire("lock", "mu.Lock"), n(m.KindResourceRelease, attrs{m.AttrTarget: "lock"})},
		},
		{
			name:    "unbound acquisition",
			stmts:   []*m.Node{n(m.KindResourceAcquisition, attrs{m.AttrCallee: "fs.open"})},
			message: "fs.open is never bound and cannot be released",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := byRule(scan(t, script(tt.stmts...)), "resource-leak")
			if tt.message == "" {
				assert.Empty(t, findings)
				return
			}

			require.Len(t, findings, 1)
			assert.Contains(t, findings[0].Message, tt.message)
		})
	}

	t.Run("managed acquisitions are exempt", func(t *testing.T) {
		with := n(m.KindResourceAcquisition, attrs{m.AttrName: "f", m.AttrCallee: "open", m.AttrManaged: "true"})
		assert.Empty(t, byRule(scan(t, script(with, call("f.read"))), "resource-leak"))
	})
}

func TestUnjoinedTask(t *testing.T) {
	worker := func() *m.Node { return fn("callback", block(call("work"))) }
	spawn := func(name string) *m.Node {
		a := attrs{}
		if name != "" {
			a[m.AttrName] = name
		}

		return n(m.KindSpawn, a, worker())
	}

	assert.Len(t, byRule(scan(t, script(spawn(""))), "unjoined-task"), 1)
	assert.Len(t, byRule(scan(t, script(spawn("task"), call("log.info"))), "unjoined-task"), 1)

	awaited := script(spawn("task"), n(m.KindAwait, nil, ident("task")))
	assert.Empty(t, byRule(scan(t, awaited), "unjoined-task"))

	joined := script(spawn(""), call("wg.Wait"))
	assert.Empty(t, byRule(scan(t, joined), "unjoined-task"))

	inLoop := script(
		n(m.KindLoopStatement, nil, block(spawn(""))),
		call("wg.Wait"),
	)
	assert.Empty(t, byRule(scan(t, inLoop), "unjoined-task"))
}

func TestDeferInLoop(t *testing.T) {
	loop := n(m.KindLoopStatement, nil, block(
		acquire("f", "os.Open"),
		n(m.KindDeferStatement, nil, call("f.Close")),
	))

	findings := byRule(scan(t, script(loop)), "defer-in-loop")
	require.Len(t, findings, 1)
	assert.Equal(t, m.CategoryPerformance, findings[0].Category)

	closure := n(m.KindLoopStatement, nil, block(
		call("func", fn("callback", block(
			acquire("f", "os.Open"),
			n(m.KindDeferStatement, nil, call("f.Close")),
		))),
	))
	assert.Empty(t, byRule(scan(t, script(closure)), "defer-in-loop"))
}

func TestLoopVariableCapture(t *testing.T) {
	loop := func(perIteration bool) *m.SourceUnit {
		v := n(m.KindDeclaration, attrs{m.AttrName: "i", m.AttrKeyword: "var"})
		if perIteration {
			v.Attrs[m.AttrPerIteration] = "true"
		}

		return unitOf("javascript", m.DialectConcurrentScript, fn("", block(
			n(m.KindLoopStatement, nil,
				v,
				block(call("setTimeout", fn("callback", block(call("console.log", ident("i")))))),
			),
		)))
	}

	findings := byRule(scan(t, loop(false)), "loop-variable-capture")
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "loop variable i")

	assert.Empty(t, byRule(scan(t, loop(true)), "loop-variable-capture"))
}

func TestUnstoppedTicker(t *testing.T) {
	t.Run("time.Tick", func(t *testing.T) {
		assert.Len(t, byRule(scan(t, script(call("time.Tick", ident("d")))), "unstopped-ticker"), 1)
	})

	t.Run("ticker without Stop", func(t *testing.T) {
		unit := script(decl("ticker", ":=", call("time.NewTicker", ident("d"))), call("loop", ident("ticker")))
		findings := byRule(scan(t, unit), "unstopped-ticker")

		require.Len(t, findings, 1)
		assert.Equal(t, "ticker from time.NewTicker is never stopped", findings[0].Message)
	})

	t.Run("deferred Stop", func(t *testing.T) {
		unit := script(
			decl("ticker", ":=", call("time.NewTicker", ident("d"))),
			n(m.KindDeferStatement, nil, call("ticker.Stop")),
		)
		assert.Empty(t, byRule(scan(t, unit), "unstopped-ticker"))
	})

	t.Run("interval cleared by effect cleanup", func(t *testing.T) {
		unit := unitOf("javascript", m.DialectUIComponent, component(effect("",
			decl("id", "const", call("setInterval", ident("tick"), str("1000"))),
			ret(fn("cleanup", block(call("clearInterval", ident("id"))))),
		)))
		assert.Empty(t, byRule(scan(t, unit), "unstopped-ticker"))
	})
}

func TestUncheckedUnwrap(t *testing.T) {
	unit := unitOf("rust", m.DialectConcurrentScript, fn("", block(
		call("config.parse.unwrap"),
		call("unwrap", ident("x")),
	)))

	findings := byRule(scan(t, unit), "unchecked-unwrap")
	require.Len(t, findings, 1)
	assert.Equal(t, m.SeverityInfo, findings[0].Severity)
}
