package rules

import (
	"fmt"
	"regexp"
	"strings"

	"snare.dev/pkg/snare/internal/domain"
	m "snare.dev/pkg/snare/internal/model"
)

var (
	secretName  = regexp.MustCompile(`(?i)(passw(or)?d|pwd|secret|api[_-]?key|auth[_-]?token|access[_-]?token|private[_-]?key|access[_-]?key|credential)`)
	secretValue = regexp.MustCompile(`^(sk_(live|test)_[A-Za-z0-9]{8,}|AKIA[0-9A-Z]{16}|ghp_[A-Za-z0-9]{20,}|xox[abprs]-[A-Za-z0-9-]{10,}|-----BEGIN ([A-Z]+ )?PRIVATE KEY-----)`)

	weakHashCallees  = set("md5.New", "md5.Sum", "sha1.New", "sha1.Sum", "hashlib.md5", "hashlib.sha1", "DigestUtils.md5Hex", "DigestUtils.sha1Hex")
	hashFactories    = set("crypto.createHash", "createHash", "MessageDigest.getInstance", "hashlib.new")
	weakAlgorithms   = set("md5", "sha1", "md4")
	tempfileCallees  = set("tempfile.mktemp", "mktemp", "os.tempnam", "os.tmpnam", "tmpnam")
	loggerReceivers  = set("console", "log", "logger", "logging", "print", "fmt", "System.out", "System.err")
	mutableLiterals  = set("array", "object", "list", "dict", "set")
	mutableFactories = set("list", "dict", "set", "[]", "{}")
)

func generalRules() []domain.Rule {
	return []domain.Rule{
		{
			ID:       "hardcoded-secret",
			Category: m.CategorySecurity,
			Severity: m.SeverityCritical,
			Kinds:    []m.NodeKind{m.KindDeclaration, m.KindAssignmentStatement, m.KindLiteral},
			Summary:  "Credential embedded in source.",
			Check:    checkHardcodedSecret,
		},
		{
			ID:       "swallowed-error",
			Category: m.CategoryReliability,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindCatchClause, m.KindConditionalBlock},
			Summary:  "Error caught and discarded.",
			Check:    checkSwallowedError,
		},
		{
			ID:       "weak-hash",
			Category: m.CategorySecurity,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindCallExpression},
			Summary:  "Broken hash algorithm.",
			Check:    checkWeakHash,
		},
		{
			ID:       "insecure-tempfile",
			Category: m.CategorySecurity,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindCallExpression},
			Summary:  "Temporary file name created without opening the file.",
			Check: domain.Firef(
				domain.Self(func(n *m.Node) bool { return tempfileCallees[n.AttrOr(m.AttrCallee)] }),
				func(n *m.Node) string {
					return fmt.Sprintf("%s is racy; create the file atomically instead", n.AttrOr(m.AttrCallee))
				},
			),
		},
		{
			ID:       "mutable-default-argument",
			Category: m.CategoryCorrectness,
			Severity: m.SeverityWarning,
			Kinds:    []m.NodeKind{m.KindParameter},
			Summary:  "Mutable default value shared between calls.",
			Check:    checkMutableDefault,
		},
	}
}

func bindingName(n *m.Node) string {
	if n.Is(m.KindAssignmentStatement) {
		target := n.AttrOr(m.AttrTarget)
		if i := strings.LastIndexAny(target, ".["); i >= 0 {
			return strings.Trim(target[i+1:], `]"'`)
		}

		return target
	}

	return n.AttrOr(m.AttrName)
}

// plausibleSecret rejects empty values, interpolations and placeholders.
func plausibleSecret(value string) bool {
	return len(value) >= 4 && !strings.Contains(value, "${") && !strings.HasPrefix(value, "<")
}

func checkHardcodedSecret(n *m.Node, ctx *domain.MatchContext) (*domain.Match, error) {
	switch n.Kind {
	case m.KindLiteral:
		if !isStringLiteral(n) || !secretValue.MatchString(n.AttrOr(m.AttrValue)) {
			return nil, nil
		}

		if parent := ctx.Parent(); parent.Is(m.KindDeclaration, m.KindAssignmentStatement) && secretName.MatchString(bindingName(parent)) {
			return nil, nil
		}

		return &domain.Match{Message: "string literal looks like a live credential"}, nil
	default:
		name := bindingName(n)
		if !secretName.MatchString(name) {
			return nil, nil
		}

		value := initializer(n)
		if value == nil || !isStringLiteral(value) || !plausibleSecret(value.AttrOr(m.AttrValue)) {
			return nil, nil
		}

		return &domain.Match{
			Secondary: []m.Span{value.Span},
			Message:   fmt.Sprintf("%s is hardcoded; load it from the environment or a secret store", name),
		}, nil
	}
}

func checkSwallowedError(n *m.Node, _ *domain.MatchContext) (*domain.Match, error) {
	if n.Is(m.KindConditionalBlock) && !isErrorGuard(n) {
		return nil, nil
	}

	body := domain.Body(n)

	if body == nil || len(body.Children) == 0 {
		return &domain.Match{Message: "error is caught and silently discarded"}, nil
	}

	// A body whose statements are all suppressed is not judged.
	stmts := domain.Children(body)
	if n.Is(m.KindConditionalBlock) || len(stmts) == 0 {
		return nil, nil
	}

	passOnly, logOnly := true, true

	for _, c := range stmts {
		switch {
		case c.Is(m.KindOther) && c.AttrOr(m.AttrKeyword) == "pass":
		case c.Is(m.KindCallExpression) && loggerReceivers[loggerOf(c.AttrOr(m.AttrCallee))]:
			passOnly = false
		default:
			passOnly, logOnly = false, false
		}
	}

	switch {
	case passOnly:
		return &domain.Match{Message: "error is caught and silently discarded"}, nil
	case logOnly:
		return &domain.Match{Message: "error is only logged and execution continues as if it succeeded"}, nil
	default:
		return nil, nil
	}
}

func loggerOf(callee string) string {
	if i := strings.LastIndexByte(callee, '.'); i >= 0 {
		return callee[:i]
	}

	return callee
}

func checkWeakHash(n *m.Node, _ *domain.MatchContext) (*domain.Match, error) {
	callee := n.AttrOr(m.AttrCallee)

	if weakHashCallees[callee] {
		return &domain.Match{Message: fmt.Sprintf("%s is broken for security use; use SHA-256 or better", callee)}, nil
	}

	if !hashFactories[callee] {
		return nil, nil
	}

	arg := firstArgument(n)
	if arg == nil || !isStringLiteral(arg) {
		return nil, nil
	}

	algo := strings.ToLower(strings.ReplaceAll(arg.AttrOr(m.AttrValue), "-", ""))
	if !weakAlgorithms[algo] {
		return nil, nil
	}

	return &domain.Match{Message: fmt.Sprintf("%s(%q) is broken for security use; use SHA-256 or better", callee, arg.AttrOr(m.AttrValue))}, nil
}

func checkMutableDefault(n *m.Node, _ *domain.MatchContext) (*domain.Match, error) {
	value := initializer(n)
	if value == nil {
		return nil, nil
	}

	switch {
	case value.Is(m.KindLiteral) && mutableLiterals[value.AttrOr(m.AttrLiteral)]:
	case value.Is(m.KindCallExpression) && mutableFactories[value.AttrOr(m.AttrCallee)]:
	default:
		return nil, nil
	}

	return &domain.Match{
		Secondary: []m.Span{value.Span},
		Message:   fmt.Sprintf("default for %s is created once and shared by every call", n.AttrOr(m.AttrName)),
	}, nil
}
