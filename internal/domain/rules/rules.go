// Package rules contains the built-in anti-pattern catalog.
package rules

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"snare.dev/pkg/snare/internal/domain"
	m "snare.dev/pkg/snare/internal/model"
)

// Settings adjust the catalog at registration time.
type Settings struct {
	// Disabled rule ids are not registered.
	Disabled map[string]bool
	// Threshold drops rules whose effective severity ranks below it.
	Threshold m.Severity
	// Overrides replace the default severity of a rule.
	Overrides map[string]m.Severity
}

// Catalog returns every built-in rule in registration order.
func Catalog() []domain.Rule {
	var all []domain.Rule

	all = append(all, serverRules()...)
	all = append(all, uiRules()...)
	all = append(all, concurrentRules()...)
	all = append(all, generalRules()...)

	return all
}

// Register adds the catalog to reg according to settings. It does not freeze
// the registry so callers can add their own rules afterwards.
func Register(reg *domain.Registry, settings Settings) error {
	for _, rule := range Catalog() {
		if settings.Disabled[rule.ID] {
			slog.Debug("rule disabled", "rule", rule.ID)
			continue
		}

		if sev, ok := settings.Overrides[rule.ID]; ok {
			rule.Severity = sev
		}

		if settings.Threshold != "" && rule.Severity.Rank() < settings.Threshold.Rank() {
			slog.Debug("rule below severity threshold", "rule", rule.ID, "severity", rule.Severity)
			continue
		}

		if err := reg.Register(rule); err != nil {
			return fmt.Errorf("register %s: %w", rule.ID, err)
		}
	}

	return nil
}

// NewRegistry builds and freezes a registry holding the catalog.
func NewRegistry(settings Settings) (*domain.Registry, error) {
	reg := domain.NewRegistry()
	if err := Register(reg, settings); err != nil {
		return nil, err
	}

	reg.Freeze()

	return reg, nil
}

var setterName = regexp.MustCompile(`^set[A-Z]`)

// root returns the first segment of a dotted or indexed expression
// ("cache[key].x" -> "cache").
func root(expr string) string {
	end := len(expr)
	if i := strings.IndexAny(expr, ".[("); i >= 0 {
		end = i
	}

	return expr[:end]
}

// refName is the name a node reads: identifiers and member accesses carry it
// in name, calls expose their receiver through callee.
func refName(n *m.Node) string {
	switch n.Kind {
	case m.KindIdentifier, m.KindMemberAccess:
		return n.AttrOr(m.AttrName)
	case m.KindCallExpression:
		return n.AttrOr(m.AttrCallee)
	default:
		return ""
	}
}

func isStringLiteral(n *m.Node) bool {
	if !n.Is(m.KindLiteral) {
		return false
	}

	kind := n.AttrOr(m.AttrLiteral)

	return kind == "" || kind == "string"
}

// dynamic reports whether an expression is built from non-constant parts.
func dynamic(n *m.Node) bool {
	switch n.Kind {
	case m.KindLiteral:
		return false
	case m.KindTemplateString:
		return len(domain.Children(n)) > 0
	case m.KindBinaryExpression:
		for _, c := range domain.Children(n) {
			if dynamic(c) {
				return true
			}
		}

		return false
	default:
		return true
	}
}

// arguments returns the argument expressions of a call.
func arguments(call *m.Node) []*m.Node {
	return domain.Children(call)
}

func firstArgument(call *m.Node) *m.Node {
	args := arguments(call)
	if len(args) == 0 {
		return nil
	}

	return args[0]
}

// initializer returns the value expression of a declaration.
func initializer(decl *m.Node) *m.Node {
	for _, c := range domain.Children(decl) {
		if !c.Is(m.KindIdentifier, m.KindOther) {
			return c
		}
	}

	return nil
}

func lineOf(s m.Span) int {
	return s.Start.Line
}
