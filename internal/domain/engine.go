package domain

import (
	"fmt"
	"log/slog"
	"sort"

	m "snare.dev/pkg/snare/internal/model"
)

// Rule ids of findings produced by the engine itself.
const (
	RuleEngineError   = "engine-error"
	RuleMalformedAST  = "malformed-ast"
	RuleScanAbandoned = "scan-abandoned"
)

// Engine walks source units and applies the rules of a frozen registry.
// It holds no mutable state, so one Engine can scan many units concurrently.
type Engine struct {
	registry *Registry
}

// NewEngine binds an engine to a registry that has completed registration.
func NewEngine(registry *Registry) (*Engine, error) {
	if registry == nil || !registry.Frozen() {
		return nil, ErrRegistryNotFrozen
	}

	return &Engine{registry: registry}, nil
}

// Registry returns the registry the engine dispatches from.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Scan performs one pre-order traversal of the unit and returns its findings
// in deterministic order: by primary span, then severity descending, then
// rule id.
func (e *Engine) Scan(unit *m.SourceUnit) []m.Finding {
	if unit == nil {
		return nil
	}

	s := &scan{
		registry: e.registry,
		unit:     unit,
		symbols:  &symbolTable{},
	}

	switch {
	case unit.Root == nil:
		s.malformed(m.Span{}, "unit has no AST root")
	case !unit.Root.Span.Valid():
		s.malformed(unit.Root.Span, fmt.Sprintf("root span %s is inverted", unit.Root.Span))
	default:
		s.visit(unit.Root, []*m.Node{unit.Root}, 0)
	}

	findings := s.unsuppressed()
	SortFindings(findings)

	slog.Debug("scanned unit", "unit", unit.ID, "dialect", unit.Dialect, "findings", len(findings))

	return findings
}

// SortFindings orders findings by primary span, then severity descending,
// then rule id. Equal findings keep their relative order.
func SortFindings(findings []m.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if c := a.Span.Compare(b.Span); c != 0 {
			return c < 0
		}

		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}

		return a.RuleID < b.RuleID
	})
}

// scan is the per-unit traversal state. It is owned by one goroutine.
type scan struct {
	registry   *Registry
	unit       *m.SourceUnit
	path       []*m.Node
	symbols    *symbolTable
	findings   []m.Finding
	suppressed []m.Span
}

func (s *scan) visit(n *m.Node, siblings []*m.Node, index int) {
	if n.Suppressed() {
		s.suppressed = append(s.suppressed, n.Span)
		return
	}

	if name := declaredName(n); name != "" {
		s.symbols.declare(name, n)
	}

	s.evaluate(n, siblings, index)

	children := s.validChildren(n)
	if len(children) == 0 {
		return
	}

	if opensScope(n) {
		s.symbols.push(n)
		defer s.symbols.pop()
	}

	s.path = append(s.path, n)
	for i, child := range children {
		s.visit(child, children, i)
	}
	s.path = s.path[:len(s.path)-1]
}

// validChildren returns the children of n that satisfy the span invariants.
// Offending children are reported and their subtrees skipped.
func (s *scan) validChildren(n *m.Node) []*m.Node {
	if len(n.Children) == 0 {
		return nil
	}

	valid := make([]*m.Node, 0, len(n.Children))

	var prev *m.Node

	for _, child := range n.Children {
		if detail := childDefect(n, prev, child); detail != "" {
			span := n.Span
			if child != nil {
				span = child.Span
			}

			s.malformed(span, detail)

			continue
		}

		valid = append(valid, child)
		prev = child
	}

	return valid
}

func (s *scan) evaluate(n *m.Node, siblings []*m.Node, index int) {
	rules := s.registry.RulesFor(n.Kind)
	if len(rules) == 0 {
		return
	}

	ctx := &MatchContext{
		node:     n,
		unit:     s.unit,
		path:     s.path,
		siblings: siblings,
		index:    index,
		symbols:  s.symbols,
	}

	for _, rule := range rules {
		match, err := runCheck(rule, n, ctx)
		if err != nil {
			slog.Warn("rule check failed", "rule", rule.ID, "unit", s.unit.ID, "span", n.Span.String(), "error", err)
			s.findings = append(s.findings, m.Finding{
				RuleID:   RuleEngineError + ":" + rule.ID,
				Category: m.CategoryInternal,
				Severity: m.SeverityWarning,
				Unit:     s.unit.ID,
				Span:     n.Span,
				Message:  fmt.Sprintf("rule %s failed: %v", rule.ID, err),
			})

			continue
		}

		if match == nil {
			continue
		}

		s.findings = append(s.findings, s.finding(rule, n, match))
	}
}

func (s *scan) finding(rule Rule, n *m.Node, match *Match) m.Finding {
	span := match.Span
	if span == (m.Span{}) {
		span = n.Span
	}

	msg := match.Message
	if msg == "" {
		msg = rule.Summary
	}

	var secondary []m.Span
	if len(match.Secondary) > 0 {
		secondary = make([]m.Span, len(match.Secondary))
		copy(secondary, match.Secondary)
	}

	return m.Finding{
		RuleID:    rule.ID,
		Category:  rule.Category,
		Severity:  rule.Severity,
		Unit:      s.unit.ID,
		Span:      span,
		Secondary: secondary,
		Message:   msg,
	}
}

func runCheck(rule Rule, n *m.Node, ctx *MatchContext) (match *Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return rule.Check(n, ctx)
}

func (s *scan) malformed(span m.Span, detail string) {
	slog.Warn("malformed AST", "unit", s.unit.ID, "span", span.String(), "detail", detail)

	s.findings = append(s.findings, m.Finding{
		RuleID:   RuleMalformedAST,
		Category: m.CategoryInternal,
		Severity: m.SeverityWarning,
		Unit:     s.unit.ID,
		Span:     span,
		Message:  detail,
	})
}

// unsuppressed drops rule findings anchored inside a suppressed subtree or
// pointing into one through a secondary span. A forward-scanning rule can
// anchor on a later sibling that the traversal skipped, so this runs after
// the walk.
func (s *scan) unsuppressed() []m.Finding {
	if len(s.suppressed) == 0 {
		return s.findings
	}

	out := s.findings[:0]

	for _, f := range s.findings {
		if f.Category != m.CategoryInternal && s.touchesSuppressed(f) {
			continue
		}

		out = append(out, f)
	}

	return out
}

func (s *scan) touchesSuppressed(f m.Finding) bool {
	if s.inSuppressed(f.Span) {
		return true
	}

	for _, span := range f.Secondary {
		if s.inSuppressed(span) {
			return true
		}
	}

	return false
}

func (s *scan) inSuppressed(span m.Span) bool {
	for _, sup := range s.suppressed {
		if sup.Contains(span) {
			return true
		}
	}

	return false
}

// abandonedFinding reports a scan that exceeded its wall-clock budget.
func abandonedFinding(unit string, span m.Span, detail string) m.Finding {
	return m.Finding{
		RuleID:   RuleScanAbandoned,
		Category: m.CategoryInternal,
		Severity: m.SeverityWarning,
		Unit:     unit,
		Span:     span,
		Message:  detail,
	}
}

// parseFailure reports a unit that could not be read or parsed.
func parseFailure(unit string, err error) m.Finding {
	return m.Finding{
		RuleID:   RuleMalformedAST,
		Category: m.CategoryInternal,
		Severity: m.SeverityWarning,
		Unit:     unit,
		Message:  fmt.Sprintf("could not load unit: %v", err),
	}
}
