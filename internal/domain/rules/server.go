package rules

import (
	"fmt"
	"strings"

	"snare.dev/pkg/snare/internal/domain"
	m "snare.dev/pkg/snare/internal/model"
)

// EffectTerminalResponse marks calls a front-end knows to finish the response.
const EffectTerminalResponse = "terminal-response"

const roleHandler = "handler"

var (
	responseReceivers = set("res", "response", "reply")
	responseMethods   = set("json", "send", "end", "redirect", "render", "sendFile", "sendStatus", "jsonp", "download")
	queryMethods      = set("query", "execute", "exec", "raw", "queryRaw", "executeQuery", "Query", "QueryRow", "QueryContext", "QueryRowContext", "Exec", "ExecContext")
	formatCallees     = set("fmt.Sprintf", "String.format", "format", "util.format")
	evalCallees       = set("eval", "Function", "new Function", "vm.runInNewContext", "vm.runInThisContext", "vm.runInContext")
	commandCallees    = set("exec", "execSync", "child_process.exec", "child_process.execSync", "cp.exec", "cp.execSync", "os.system", "os.popen", "Runtime.getRuntime.exec")
	blockingCallees   = set("time.Sleep", "Thread.sleep", "time.sleep", "sleep", "Atomics.wait")
	mutatorMethods    = set("push", "set", "add", "delete", "splice", "unshift", "clear", "Store", "Delete")
	jsLanguages       = set("javascript", "typescript", "jsx", "tsx")
)

func serverRules() []domain.Rule {
	return []domain.Rule{
		{
			ID:       "multiple-responses",
			Category: m.CategoryCorrectness,
			Severity: m.SeverityCritical,
			Kinds:    []m.NodeKind{m.KindCallExpression},
			Summary:  "More than one terminal response on the same request path.",
			Check:    checkMultipleResponses,
		},
		{
			ID:       "sql-injection",
			Category: m.CategorySecurity,
			Severity: m.SeverityCritical,
			Kinds:    []m.NodeKind{m.KindCallExpression},
			Summary:  "Query text is built from non-constant input.",
			Check:    checkSQLInjection,
		},
		{
			ID:       "eval-user-input",
			Category: m.CategorySecurity,
			Severity: m.SeverityCritical,
			Kinds:    []m.NodeKind{m.KindCallExpression},
			Summary:  "Dynamic code or shell command built from non-constant input.",
			Check:    checkEvalInput,
		},
		{
			ID:       "error-stack-exposure",
			Category: m.CategorySecurity,
			Severity: m.SeverityCritical,
			Kinds:    []m.NodeKind{m.KindCallExpression},
			Summary:  "Stack trace sent to the client.",
			Check: domain.Fire(
				domain.Self(domain.AllOf(isTerminalResponse, containsStack)),
				"error stack trace is included in the response body",
			),
		},
		{
			ID:       "blocking-call-in-handler",
			Category: m.CategoryPerformance,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindCallExpression},
			Summary:  "Synchronous blocking call inside a request handler.",
			Check: domain.Firef(
				domain.And(domain.Self(isBlockingCall), insideHandler),
				func(n *m.Node) string {
					return fmt.Sprintf("%s blocks the request handler", n.AttrOr(m.AttrCallee))
				},
			),
		},
		{
			ID:       "global-mutable-state",
			Category: m.CategoryReliability,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindAssignmentStatement, m.KindCallExpression},
			Summary:  "Module-level state mutated from inside a function.",
			Check:    checkGlobalMutation,
		},
		{
			ID:       "legacy-var-declaration",
			Category: m.CategoryStyle,
			Severity: m.SeverityInfo,
			Kinds:    []m.NodeKind{m.KindDeclaration},
			Summary:  "Function-scoped var declaration.",
			Check: domain.Firef(
				func(n *m.Node, ctx *domain.MatchContext) bool {
					return n.AttrOr(m.AttrKeyword) == "var" && jsLanguages[ctx.Language()]
				},
				func(n *m.Node) string {
					return fmt.Sprintf("use let or const instead of var for %s", n.AttrOr(m.AttrName))
				},
			),
		},
	}
}

func isTerminalResponse(n *m.Node) bool {
	if !n.Is(m.KindCallExpression) {
		return false
	}

	if n.AttrOr(m.AttrEffect) == EffectTerminalResponse {
		return true
	}

	callee := n.AttrOr(m.AttrCallee)

	return responseReceivers[domain.Receiver(callee)] && responseMethods[domain.Method(callee)]
}

// checkMultipleResponses scans forward from a terminal response over the
// rest of its block. A later response fires, anchored on the later call; a
// return or throw ends the path.
func checkMultipleResponses(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	if !isTerminalResponse(n) {
		return nil, nil
	}

	for _, s := range ctx.Following() {
		if later := domain.FindLocal(s, isTerminalResponse); later != nil {
			return &domain.Match{
				Span:      later.Span,
				Secondary: []m.Span{n.Span},
				Message:   fmt.Sprintf("response already sent at line %d", lineOf(n.Span)),
			}, nil
		}

		if s.Is(m.KindReturnStatement, m.KindThrowStatement) {
			return nil, nil
		}
	}

	return nil, nil
}

func checkSQLInjection(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	if !queryMethods[domain.Method(n.AttrOr(m.AttrCallee))] {
		return nil, nil
	}

	arg := firstArgument(n)
	if arg == nil || !tainted(arg, ctx, 0) {
		return nil, nil
	}

	return &domain.Match{
		Message: fmt.Sprintf("%s receives query text built by concatenation or interpolation; use bound parameters", n.AttrOr(m.AttrCallee)),
	}, nil
}

func checkEvalInput(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	callee := n.AttrOr(m.AttrCallee)

	switch {
	case evalCallees[callee]:
		arg := firstArgument(n)
		if arg == nil || !dynamic(arg) {
			return nil, nil
		}

		return &domain.Match{Message: fmt.Sprintf("%s evaluates code that is not a constant", callee)}, nil
	case commandCallees[callee]:
		for _, arg := range arguments(n) {
			if tainted(arg, ctx, 0) {
				return &domain.Match{Message: fmt.Sprintf("%s runs a shell command built from input", callee)}, nil
			}
		}
	}

	return nil, nil
}

// tainted reports whether an expression used as query or command text is
// assembled at runtime. Identifiers are followed to their declaration.
func tainted(n *m.Node, ctx *domain.MatchContext, depth int) bool {
	if depth > 4 {
		return false
	}

	switch n.Kind {
	case m.KindTemplateString:
		return len(domain.Children(n)) > 0
	case m.KindBinaryExpression:
		return dynamic(n)
	case m.KindCallExpression:
		if !formatCallees[n.AttrOr(m.AttrCallee)] {
			return false
		}

		return len(arguments(n)) > 1
	case m.KindIdentifier:
		sym, ok := ctx.Lookup(n.AttrOr(m.AttrName))
		if !ok || sym.Decl == nil || !sym.Decl.Is(m.KindDeclaration) {
			return false
		}

		value := initializer(sym.Decl)
		if value == nil || value == n {
			return false
		}

		return tainted(value, ctx, depth+1)
	default:
		return false
	}
}

func containsStack(n *m.Node) bool {
	for _, arg := range arguments(n) {
		hit := domain.FindLocal(arg, func(x *m.Node) bool {
			name := refName(x)
			return name == "stack" || strings.HasSuffix(name, ".stack") || name == "debug.Stack"
		})
		if hit != nil {
			return true
		}
	}

	return false
}

func isBlockingCall(n *m.Node) bool {
	callee := n.AttrOr(m.AttrCallee)
	method := domain.Method(callee)

	if blockingCallees[callee] {
		return true
	}

	return strings.HasSuffix(method, "Sync") && len(method) > len("Sync")
}

func insideHandler(_ *m.Node, ctx *domain.MatchContext) bool {
	for _, anc := range ctx.Ancestors() {
		if anc.Is(m.KindFunction) && anc.AttrOr(m.AttrRole) == roleHandler {
			return true
		}
	}

	return false
}

func checkGlobalMutation(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	if ctx.EnclosingFunction() == nil {
		return nil, nil
	}

	var name string

	switch n.Kind {
	case m.KindAssignmentStatement:
		name = root(n.AttrOr(m.AttrTarget))
	case m.KindCallExpression:
		callee := n.AttrOr(m.AttrCallee)
		if domain.Receiver(callee) == "" || !mutatorMethods[domain.Method(callee)] {
			return nil, nil
		}

		name = root(callee)
	}

	if name == "" {
		return nil, nil
	}

	sym, ok := ctx.Lookup(name)
	if !ok || sym.Scope == nil || !sym.Scope.Is(m.KindUnit) || !sym.Decl.Is(m.KindDeclaration) {
		return nil, nil
	}

	// Reassigning a module constant is a different defect; only mutable
	// bindings and in-place container mutation count here.
	if n.Is(m.KindAssignmentStatement) && n.AttrOr(m.AttrTarget) == name && sym.Decl.AttrOr(m.AttrKeyword) == "const" {
		return nil, nil
	}

	return &domain.Match{
		Secondary: []m.Span{sym.Decl.Span},
		Message:   fmt.Sprintf("module-level %s is shared across requests and mutated here", name),
	}, nil
}

func set(values ...string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}

	return out
}
