package domain

import (
	"fmt"

	m "snare.dev/pkg/snare/internal/model"
)

// Match describes where and why a rule fired. A zero Span anchors the
// finding at the node the rule was evaluated on.
type Match struct {
	Span      m.Span
	Secondary []m.Span
	Message   string
}

// Check evaluates a rule on one node. It returns nil when the rule does not
// fire. Checks must not modify the node or anything reachable from it.
type Check func(n *m.Node, ctx *MatchContext) (*Match, error)

// Rule is one registered, immutable anti-pattern detector.
type Rule struct {
	ID       string
	Category m.Category
	Severity m.Severity
	Kinds    []m.NodeKind
	Summary  string
	Check    Check
}

// Info returns the listing metadata of the rule.
func (r Rule) Info() m.RuleInfo {
	kinds := make([]m.NodeKind, len(r.Kinds))
	copy(kinds, r.Kinds)

	return m.RuleInfo{
		ID:       r.ID,
		Category: r.Category,
		Severity: r.Severity,
		Kinds:    kinds,
		Summary:  r.Summary,
	}
}

func (r Rule) validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRule)
	}

	if len(r.Kinds) == 0 {
		return fmt.Errorf("%w: rule %s targets no node kinds", ErrInvalidRule, r.ID)
	}

	for _, k := range r.Kinds {
		if !k.Valid() {
			return fmt.Errorf("%w: rule %s targets unknown kind %q", ErrInvalidRule, r.ID, k)
		}
	}

	if r.Check == nil {
		return fmt.Errorf("%w: rule %s has no check", ErrInvalidRule, r.ID)
	}

	if r.Severity.Rank() == 0 {
		return fmt.Errorf("%w: rule %s has unknown severity %q", ErrInvalidRule, r.ID, r.Severity)
	}

	if r.Category == m.CategoryInternal {
		return fmt.Errorf("%w: rule %s uses the reserved internal category", ErrInvalidRule, r.ID)
	}

	if _, err := m.ParseCategory(string(r.Category)); err != nil {
		return fmt.Errorf("%w: rule %s: %w", ErrInvalidRule, r.ID, err)
	}

	return nil
}

// Fire turns a predicate into a Check that reports msg on the evaluated node.
func Fire(when Predicate, msg string) Check {
	return func(n *m.Node, ctx *MatchContext) (*Match, error) {
		if !when(n, ctx) {
			return nil, nil
		}

		return &Match{Message: msg}, nil
	}
}

// Firef is like Fire but formats the message from the node.
func Firef(when Predicate, format func(n *m.Node) string) Check {
	return func(n *m.Node, ctx *MatchContext) (*Match, error) {
		if !when(n, ctx) {
			return nil, nil
		}

		return &Match{Message: format(n)}, nil
	}
}
