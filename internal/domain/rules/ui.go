package rules

import (
	"fmt"
	"sort"
	"strings"

	"snare.dev/pkg/snare/internal/domain"
	m "snare.dev/pkg/snare/internal/model"
)

const (
	roleComponent = "component"
	roleRender    = "render"
	roleState     = "state"
	roleRef       = "ref"
)

var (
	effectHooks       = set("useEffect", "useLayoutEffect")
	dependencyHooks   = set("useEffect", "useLayoutEffect", "useMemo", "useCallback")
	subscriptionCalls = set("addEventListener", "setInterval", "setTimeout", "subscribe", "on", "watch", "observe", "listen")
	ioCalls           = set("fetch", "axios", "get", "post", "put", "patch", "then", "send", "open", "query", "request", "load")
)

func uiRules() []domain.Rule {
	return []domain.Rule{
		{
			ID:       "conditional-hook",
			Category: m.CategoryCorrectness,
			Severity: m.SeverityCritical,
			Kinds:    []m.NodeKind{m.KindLifecycleHook},
			Summary:  "Hook called under a condition or loop.",
			Check: domain.Firef(
				domain.And(
					domain.Self(isHookCall),
					domain.AncestorHasKind(
						[]m.NodeKind{m.KindConditionalBlock, m.KindLoopStatement},
						m.KindFunction,
					),
				),
				func(n *m.Node) string {
					return fmt.Sprintf("%s must be called unconditionally at the top level of the component", n.AttrOr(m.AttrHook))
				},
			),
		},
		{
			ID:       "state-mutation-in-render",
			Category: m.CategoryCorrectness,
			Severity: m.SeverityCritical,
			Kinds:    []m.NodeKind{m.KindCallExpression},
			Summary:  "State setter called while rendering.",
			Check: domain.Firef(
				domain.And(domain.Self(isStateSetter), inRenderPhase),
				func(n *m.Node) string {
					return fmt.Sprintf("%s during render triggers another render", n.AttrOr(m.AttrCallee))
				},
			),
		},
		{
			ID:       "direct-state-mutation",
			Category: m.CategoryCorrectness,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindAssignmentStatement, m.KindCallExpression},
			Summary:  "State object mutated in place.",
			Check:    checkDirectStateMutation,
		},
		{
			ID:       "unnecessary-derived-state",
			Category: m.CategoryPerformance,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindLifecycleHook},
			Summary:  "Effect only re-derives state that can be computed during render.",
			Check:    checkDerivedState,
		},
		{
			ID:       "missing-effect-cleanup",
			Category: m.CategoryReliability,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindLifecycleHook},
			Summary:  "Effect subscribes without returning a cleanup.",
			Check:    checkEffectCleanup,
		},
		{
			ID:       "stale-effect-dependency",
			Category: m.CategoryCorrectness,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindLifecycleHook},
			Summary:  "Hook reads values missing from its dependency list.",
			Check:    checkStaleDependencies,
		},
		{
			ID:       "array-index-key",
			Category: m.CategoryPerformance,
			Severity: m.SeverityInfo,
			Kinds:    []m.NodeKind{m.KindElement},
			Summary:  "List element keyed by its array index.",
			Check:    checkIndexKey,
		},
	}
}

func isHookCall(n *m.Node) bool {
	return strings.HasPrefix(n.AttrOr(m.AttrHook), "use")
}

func isStateSetter(n *m.Node) bool {
	callee := n.AttrOr(m.AttrCallee)
	return setterName.MatchString(callee) || callee == "this.setState"
}

// inRenderPhase holds when the nearest enclosing function is the component
// body or a render method, not an effect or event callback.
func inRenderPhase(_ *m.Node, ctx *domain.MatchContext) bool {
	fn := ctx.EnclosingFunction()
	if fn == nil {
		return false
	}

	role := fn.AttrOr(m.AttrRole)

	return role == roleComponent || role == roleRender || fn.AttrOr(m.AttrPhase) == roleRender
}

func checkDirectStateMutation(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	var target string

	switch n.Kind {
	case m.KindAssignmentStatement:
		target = n.AttrOr(m.AttrTarget)
		if strings.HasPrefix(target, "this.state.") || strings.HasPrefix(target, "this.state[") {
			return &domain.Match{Message: fmt.Sprintf("%s is assigned directly; use setState", target)}, nil
		}

		// Rebinding the state variable itself is a different bug; only writes
		// through it count.
		if root(target) == target {
			return nil, nil
		}
	case m.KindCallExpression:
		callee := n.AttrOr(m.AttrCallee)
		if domain.Receiver(callee) == "" || !mutatorMethods[domain.Method(callee)] {
			return nil, nil
		}

		target = callee
	}

	sym, ok := ctx.Lookup(root(target))
	if !ok || sym.Decl == nil || sym.Decl.AttrOr(m.AttrRole) != roleState {
		return nil, nil
	}

	return &domain.Match{
		Secondary: []m.Span{sym.Decl.Span},
		Message:   fmt.Sprintf("state %s is mutated in place; pass a new value to its setter", root(target)),
	}, nil
}

// callback returns the function passed to a hook.
func callback(hook *m.Node) *m.Node {
	return domain.ChildOf(hook, domain.KindOf(m.KindFunction))
}

// checkDerivedState fires on effects whose body only computes values from
// local inputs and stores them through setters.
func checkDerivedState(n *m.Node, _ *domain.MatchContext) (*domain.Match, error) {
	if !effectHooks[n.AttrOr(m.AttrHook)] {
		return nil, nil
	}

	fn := callback(n)
	body := domain.Body(fn)

	if len(domain.Children(body)) == 0 {
		return nil, nil
	}

	var setters []*m.Node

	pure := true

	domain.WalkLocal(body, func(x *m.Node) bool {
		switch {
		case !pure:
			return false
		case x.Is(m.KindAwait, m.KindReturnStatement, m.KindResourceAcquisition, m.KindSpawn, m.KindTryBlock):
			pure = false
		case x.Is(m.KindCallExpression):
			callee := x.AttrOr(m.AttrCallee)
			switch {
			case isStateSetter(x):
				setters = append(setters, x)
			case x.AttrOr(m.AttrEffect) != "" || ioCalls[domain.Method(callee)] || subscriptionCalls[domain.Method(callee)]:
				pure = false
			}
		}

		return pure
	})

	if !pure || len(setters) == 0 {
		return nil, nil
	}

	secondary := make([]m.Span, 0, len(setters))
	for _, s := range setters {
		secondary = append(secondary, s.Span)
	}

	return &domain.Match{
		Secondary: secondary,
		Message:   fmt.Sprintf("effect only derives state through %s; compute it during render or with useMemo", setters[0].AttrOr(m.AttrCallee)),
	}, nil
}

func checkEffectCleanup(n *m.Node, _ *domain.MatchContext) (*domain.Match, error) {
	if !effectHooks[n.AttrOr(m.AttrHook)] {
		return nil, nil
	}

	body := domain.Body(callback(n))
	if body == nil {
		return nil, nil
	}

	subscription := domain.FindLocal(body, func(x *m.Node) bool {
		return x.Is(m.KindCallExpression) && subscriptionCalls[domain.Method(x.AttrOr(m.AttrCallee))]
	})
	if subscription == nil {
		return nil, nil
	}

	cleanup := domain.ChildOf(body, func(x *m.Node) bool {
		if !x.Is(m.KindReturnStatement) {
			return false
		}

		value := domain.ChildOf(x, domain.KindOf(m.KindFunction, m.KindIdentifier, m.KindMemberAccess))

		return value != nil
	})
	if cleanup != nil {
		return nil, nil
	}

	return &domain.Match{
		Secondary: []m.Span{subscription.Span},
		Message:   fmt.Sprintf("%s in effect is never torn down; return a cleanup function", subscription.AttrOr(m.AttrCallee)),
	}, nil
}

// checkStaleDependencies compares the names read inside a hook callback with
// its dependency list. Only names declared inside the component count;
// module-level values and setters are stable.
func checkStaleDependencies(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	if !dependencyHooks[n.AttrOr(m.AttrHook)] {
		return nil, nil
	}

	rawDeps, ok := n.Attr(m.AttrDeps)
	if !ok {
		return nil, nil
	}

	deps := make(map[string]bool)

	for _, d := range strings.Split(rawDeps, ",") {
		if d = strings.TrimSpace(d); d != "" {
			deps[d] = true
			deps[root(d)] = true
		}
	}

	fn := callback(n)
	if fn == nil {
		return nil, nil
	}

	missing := make(map[string]bool)

	for _, c := range domain.Children(fn) {
		if c.Is(m.KindParameter) {
			continue
		}

		domain.Walk(c, func(x *m.Node) bool {
			name := root(refName(x))
			if name == "" || deps[name] || setterName.MatchString(name) {
				return true
			}

			sym, ok := ctx.Lookup(name)
			if !ok || sym.Scope == nil || sym.Scope.Is(m.KindUnit) {
				return true
			}

			if sym.Decl.AttrOr(m.AttrRole) == roleRef {
				return true
			}

			missing[name] = true

			return true
		})
	}

	if len(missing) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}

	sort.Strings(names)

	return &domain.Match{
		Message: fmt.Sprintf("%s reads %s but does not list it as a dependency", n.AttrOr(m.AttrHook), strings.Join(names, ", ")),
	}, nil
}

func checkIndexKey(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	key, ok := n.Attr(m.AttrKey)
	if !ok || key == "" {
		return nil, nil
	}

	fn, depth := ctx.FirstAncestor(m.KindFunction)
	if fn == nil || depth == 0 {
		return nil, nil
	}

	call := ctx.Ancestors()[depth-1]
	if !call.Is(m.KindCallExpression) || domain.Method(call.AttrOr(m.AttrCallee)) != "map" {
		return nil, nil
	}

	var params []*m.Node

	for _, c := range domain.Children(fn) {
		if c.Is(m.KindParameter) {
			params = append(params, c)
		}
	}

	if len(params) < 2 || params[1].AttrOr(m.AttrName) != key {
		return nil, nil
	}

	return &domain.Match{Message: fmt.Sprintf("key={%s} uses the map index; use a stable id", key)}, nil
}
