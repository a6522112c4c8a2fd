package rules

import (
	"fmt"
	"strings"

	"snare.dev/pkg/snare/internal/domain"
	m "snare.dev/pkg/snare/internal/model"
)

var (
	releaseMethods = set("close", "Close", "release", "Release", "shutdown", "Shutdown", "end", "destroy", "dispose", "disconnect", "abort", "Stop", "unlock", "Unlock", "RUnlock")
	releaseCallees = set("close", "fclose", "closeSync", "fs.closeSync", "drop", "os.close")
	joinMethods    = set("join", "Join", "Wait", "wait", "await", "get", "result", "all", "allSettled", "gather", "joinAll", "Get")
	tickerCallees  = set("time.NewTicker", "setInterval")
	stopCallees    = set("clearInterval")
	unwrapMethods  = set("unwrap", "expect")
	errorNames     = set("err", "error", "e", "ex")
)

func concurrentRules() []domain.Rule {
	return []domain.Rule{
		{
			ID:       "resource-leak",
			Category: m.CategoryReliability,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindResourceAcquisition},
			Summary:  "Resource not released on every exit path.",
			Check:    checkResourceLeak,
		},
		{
			ID:       "unjoined-task",
			Category: m.CategoryReliability,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindSpawn},
			Summary:  "Spawned task is never joined or awaited.",
			Check:    checkUnjoinedTask,
		},
		{
			ID:       "defer-in-loop",
			Category: m.CategoryPerformance,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindDeferStatement},
			Summary:  "Deferred call inside a loop runs only when the function returns.",
			Check: domain.Fire(
				domain.AncestorHasKind([]m.NodeKind{m.KindLoopStatement}, m.KindFunction),
				"defer inside a loop accumulates until the function returns; release per iteration",
			),
		},
		{
			ID:       "loop-variable-capture",
			Category: m.CategoryCorrectness,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindIdentifier},
			Summary:  "Loop variable captured by a deferred or concurrent closure.",
			Check:    checkLoopCapture,
		},
		{
			ID:       "unstopped-ticker",
			Category: m.CategoryReliability,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindCallExpression, m.KindDeclaration},
			Summary:  "Ticker or interval is never stopped.",
			Check:    checkUnstoppedTicker,
		},
		{
			ID:       "unchecked-unwrap",
			Category: m.CategoryReliability,
			Severity: m.SeverityInfo,
			Kinds:    []m.NodeKind{m.KindCallExpression},
			Summary:  "Result unwrapped without handling the error case.",
			Check: domain.Firef(
				domain.Self(func(n *m.Node) bool {
					callee := n.AttrOr(m.AttrCallee)
					return domain.Receiver(callee) != "" && unwrapMethods[domain.Method(callee)]
				}),
				func(n *m.Node) string {
					return fmt.Sprintf("%s panics on error; propagate it instead", n.AttrOr(m.AttrCallee))
				},
			),
		},
	}
}

// releases matches statements that release the named resource.
func releases(name string) domain.NodeMatcher {
	return func(x *m.Node) bool {
		switch x.Kind {
		case m.KindResourceRelease:
			return x.AttrOr(m.AttrTarget) == name
		case m.KindCallExpression:
			callee := x.AttrOr(m.AttrCallee)
			if root(callee) == name && releaseMethods[domain.Method(callee)] {
				return true
			}

			if releaseCallees[callee] {
				arg := firstArgument(x)
				return arg != nil && arg.AttrOr(m.AttrName) == name
			}
		}

		return false
	}
}

// returnsName matches return statements handing the value back to the caller.
func returnsName(name string) domain.NodeMatcher {
	return func(x *m.Node) bool {
		if !x.Is(m.KindReturnStatement) {
			return false
		}

		return domain.ChildOf(x, func(c *m.Node) bool {
			return root(refName(c)) == name
		}) != nil
	}
}

// isErrorGuard matches the conditional that checks whether acquisition failed.
func isErrorGuard(x *m.Node) bool {
	if !x.Is(m.KindConditionalBlock) {
		return false
	}

	cond := domain.ChildOf(x, domain.KindOf(m.KindBinaryExpression, m.KindIdentifier))
	if cond == nil {
		return false
	}

	return domain.FindLocal(cond, func(c *m.Node) bool {
		return c.Is(m.KindIdentifier) && errorNames[c.AttrOr(m.AttrName)]
	}) != nil
}

// checkResourceLeak scans the statements after an acquisition in its block.
// A release in a later statement (deferred releases included) satisfies the
// normal path; a return or throw reached before it is an unreleased exit.
func checkResourceLeak(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	if n.AttrOr(m.AttrManaged) == "true" {
		return nil, nil
	}

	name := n.AttrOr(m.AttrName)
	what := n.AttrOr(m.AttrCallee)

	if what == "" {
		what = "resource"
	}

	if name == "" {
		return &domain.Match{Message: fmt.Sprintf("%s is never bound and cannot be released", what)}, nil
	}

	released := releases(name)
	handsOff := returnsName(name)
	exits := domain.KindOf(m.KindReturnStatement, m.KindThrowStatement)

	var earlyExit *m.Node

	following := ctx.Following()
	for i, s := range following {
		if i == 0 && isErrorGuard(s) {
			continue
		}

		if domain.FindLocal(s, handsOff) != nil {
			return nil, nil
		}

		if domain.FindLocal(s, released) != nil {
			if earlyExit == nil {
				return nil, nil
			}

			return &domain.Match{
				Secondary: []m.Span{earlyExit.Span},
				Message:   fmt.Sprintf("%s is not released when the function exits at line %d", name, lineOf(earlyExit.Span)),
			}, nil
		}

		exit := domain.FindLocal(s, exits)
		if exit == nil {
			continue
		}

		if s == exit {
			return &domain.Match{
				Secondary: []m.Span{exit.Span},
				Message:   fmt.Sprintf("%s is never released before the function exits at line %d", name, lineOf(exit.Span)),
			}, nil
		}

		if earlyExit == nil {
			earlyExit = exit
		}
	}

	if earlyExit != nil {
		return &domain.Match{
			Secondary: []m.Span{earlyExit.Span},
			Message:   fmt.Sprintf("%s is never released; early exit at line %d", name, lineOf(earlyExit.Span)),
		}, nil
	}

	return &domain.Match{Message: fmt.Sprintf("%s acquired by %s is never released", name, what)}, nil
}

func checkUnjoinedTask(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	if n.AttrOr(m.AttrManaged) == "true" {
		return nil, nil
	}

	name := n.AttrOr(m.AttrName)

	joined := func(x *m.Node) bool {
		switch x.Kind {
		case m.KindAwait:
			if name == "" {
				return true
			}

			return domain.FindLocal(x, func(c *m.Node) bool { return root(refName(c)) == name }) != nil
		case m.KindCallExpression:
			callee := x.AttrOr(m.AttrCallee)
			if !joinMethods[domain.Method(callee)] {
				return false
			}

			if name == "" || root(callee) == name {
				return true
			}

			return domain.FindLocal(x, func(c *m.Node) bool {
				return c != x && root(refName(c)) == name
			}) != nil
		case m.KindReturnStatement:
			return name != "" && returnsName(name)(x)
		}

		return false
	}

	for _, s := range ctx.FollowingInFunction() {
		if domain.FindLocal(s, joined) != nil {
			return nil, nil
		}
	}

	if name == "" {
		return &domain.Match{Message: "spawned task is never joined; the caller cannot observe its completion or failure"}, nil
	}

	return &domain.Match{Message: fmt.Sprintf("task %s is spawned but never joined", name)}, nil
}

func checkLoopCapture(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	name := n.AttrOr(m.AttrName)

	sym, ok := ctx.Lookup(name)
	if !ok || sym.Scope == nil || !sym.Scope.Is(m.KindLoopStatement) {
		return nil, nil
	}

	if sym.Decl.AttrOr(m.AttrPerIteration) == "true" {
		return nil, nil
	}

	path := ctx.Ancestors()

	loop := -1

	for i, anc := range path {
		if anc == sym.Scope {
			loop = i
		}
	}

	if loop < 0 {
		return nil, nil
	}

	for j := loop + 1; j < len(path); j++ {
		if !path[j].Is(m.KindFunction) {
			continue
		}

		if path[j-1].Is(m.KindSpawn, m.KindDeferStatement, m.KindCallExpression) {
			return &domain.Match{
				Secondary: []m.Span{sym.Decl.Span},
				Message:   fmt.Sprintf("closure captures loop variable %s, which is shared by every iteration", name),
			}, nil
		}
	}

	return nil, nil
}

func checkUnstoppedTicker(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	switch n.Kind {
	case m.KindCallExpression:
		callee := n.AttrOr(m.AttrCallee)
		if callee == "time.Tick" {
			return &domain.Match{Message: "time.Tick creates a ticker that can never be stopped; use time.NewTicker"}, nil
		}

		if !tickerCallees[callee] {
			return nil, nil
		}

		parent := ctx.Parent()
		if parent.Is(m.KindDeclaration, m.KindAssignmentStatement, m.KindReturnStatement) {
			return nil, nil
		}

		if hook, _ := ctx.FirstAncestor(m.KindLifecycleHook); hook != nil {
			return nil, nil
		}

		return &domain.Match{Message: fmt.Sprintf("%s result is discarded so it can never be stopped", callee)}, nil
	case m.KindDeclaration:
		value := initializer(n)
		if value == nil || !value.Is(m.KindCallExpression) || !tickerCallees[value.AttrOr(m.AttrCallee)] {
			return nil, nil
		}

		name := n.AttrOr(m.AttrName)

		stopped := func(x *m.Node) bool {
			if !x.Is(m.KindCallExpression) {
				return false
			}

			callee := x.AttrOr(m.AttrCallee)
			if root(callee) == name && strings.EqualFold(domain.Method(callee), "stop") {
				return true
			}

			if stopCallees[callee] {
				arg := firstArgument(x)
				return arg != nil && arg.AttrOr(m.AttrName) == name
			}

			return false
		}

		for _, s := range ctx.FollowingInFunction() {
			if domain.Find(s, stopped) != nil || domain.Find(s, returnsName(name)) != nil {
				return nil, nil
			}
		}

		return &domain.Match{
			Secondary: []m.Span{value.Span},
			Message:   fmt.Sprintf("%s from %s is never stopped", name, value.AttrOr(m.AttrCallee)),
		}, nil
	}

	return nil, nil
}
