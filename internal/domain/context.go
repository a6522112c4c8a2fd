package domain

import (
	"fmt"

	m "snare.dev/pkg/snare/internal/model"
)

// Symbol is a locally declared name.
type Symbol struct {
	Name string
	Decl *m.Node
	// Scope is the node that opened the scope the name was declared in.
	Scope *m.Node
}

type scope struct {
	owner *m.Node
	names map[string]Symbol
}

// symbolTable is a stack of lexical scopes owned by a single traversal.
type symbolTable struct {
	scopes []scope
}

func (t *symbolTable) push(owner *m.Node) {
	t.scopes = append(t.scopes, scope{owner: owner})
}

func (t *symbolTable) pop() {
	t.scopes = t.scopes[:len(t.scopes)-1]
}

func (t *symbolTable) declare(name string, decl *m.Node) {
	if name == "" || len(t.scopes) == 0 {
		return
	}

	top := &t.scopes[len(t.scopes)-1]
	if top.names == nil {
		top.names = make(map[string]Symbol)
	}

	top.names[name] = Symbol{Name: name, Decl: decl, Scope: top.owner}
}

func (t *symbolTable) lookup(name string) (Symbol, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if sym, ok := t.scopes[i].names[name]; ok {
			return sym, true
		}
	}

	return Symbol{}, false
}

// opensScope reports whether entering n starts a new lexical scope.
func opensScope(n *m.Node) bool {
	return n.Is(m.KindUnit, m.KindFunction, m.KindBlock, m.KindLoopStatement, m.KindCatchClause, m.KindClassDecl)
}

// declaredName returns the name n introduces into the current scope.
func declaredName(n *m.Node) string {
	switch n.Kind {
	case m.KindDeclaration, m.KindParameter, m.KindFunction, m.KindClassDecl:
		return n.AttrOr(m.AttrName)
	default:
		return ""
	}
}

// MatchContext is the read-only view a rule gets of the node being evaluated.
// It is only valid for the duration of a single Check call.
type MatchContext struct {
	node     *m.Node
	unit     *m.SourceUnit
	path     []*m.Node
	siblings []*m.Node
	index    int
	symbols  *symbolTable
}

// Node returns the node being evaluated.
func (c *MatchContext) Node() *m.Node {
	return c.node
}

// UnitID returns the identifier of the unit being scanned.
func (c *MatchContext) UnitID() string {
	return c.unit.ID
}

// Dialect returns the dialect of the unit being scanned.
func (c *MatchContext) Dialect() m.Dialect {
	return c.unit.Dialect
}

// Language returns the source language recorded by the front-end.
func (c *MatchContext) Language() string {
	return c.unit.Language
}

// Ancestors returns the path from the root to the parent of the node.
// The slice must not be modified.
func (c *MatchContext) Ancestors() []*m.Node {
	return c.path
}

// Parent returns the direct parent, or nil at the root.
func (c *MatchContext) Parent() *m.Node {
	if len(c.path) == 0 {
		return nil
	}

	return c.path[len(c.path)-1]
}

// FirstAncestor walks up from the parent and returns the first ancestor whose
// kind is one of kinds, together with its depth in Ancestors.
func (c *MatchContext) FirstAncestor(kinds ...m.NodeKind) (*m.Node, int) {
	for i := len(c.path) - 1; i >= 0; i-- {
		if c.path[i].Is(kinds...) {
			return c.path[i], i
		}
	}

	return nil, -1
}

// EnclosingFunction returns the nearest Function ancestor.
func (c *MatchContext) EnclosingFunction() *m.Node {
	fn, _ := c.FirstAncestor(m.KindFunction)
	return fn
}

// PrevSibling returns the closest unsuppressed sibling before the node.
func (c *MatchContext) PrevSibling() *m.Node {
	for i := c.index - 1; i >= 0; i-- {
		if !c.siblings[i].Suppressed() {
			return c.siblings[i]
		}
	}

	return nil
}

// NextSibling returns the closest unsuppressed sibling after the node.
func (c *MatchContext) NextSibling() *m.Node {
	for i := c.index + 1; i < len(c.siblings); i++ {
		if !c.siblings[i].Suppressed() {
			return c.siblings[i]
		}
	}

	return nil
}

// Following returns the unsuppressed siblings after the node in source order.
func (c *MatchContext) Following() []*m.Node {
	if c.index+1 >= len(c.siblings) {
		return nil
	}

	return visibleNodes(c.siblings[c.index+1:])
}

// Preceding returns the unsuppressed siblings before the node in source order.
func (c *MatchContext) Preceding() []*m.Node {
	if c.index <= 0 {
		return nil
	}

	return visibleNodes(c.siblings[:c.index])
}

// FollowingInFunction returns the statements that run after the node inside
// its enclosing function: its following siblings, then the following
// siblings of each ancestor up to the function boundary. Siblings the
// traversal skipped as malformed or suppressed are left out.
func (c *MatchContext) FollowingInFunction() []*m.Node {
	out := c.Following()

	for i := len(c.path) - 1; i > 0; i-- {
		parent := c.path[i]
		if parent.Is(m.KindFunction) {
			break
		}

		siblings := Children(c.path[i-1])

		for j, sib := range siblings {
			if sib == parent {
				out = append(out, siblings[j+1:]...)
				break
			}
		}
	}

	return out
}

func visibleNodes(nodes []*m.Node) []*m.Node {
	out := make([]*m.Node, 0, len(nodes))

	for _, n := range nodes {
		if !n.Suppressed() {
			out = append(out, n)
		}
	}

	return out
}

// Lookup resolves a name against the scopes visible at the node.
func (c *MatchContext) Lookup(name string) (Symbol, bool) {
	return c.symbols.lookup(name)
}

// childDefect describes why child cannot follow prev under parent, or
// returns "" when the spans are consistent.
func childDefect(parent, prev, child *m.Node) string {
	switch {
	case child == nil:
		return fmt.Sprintf("%s node has a nil child", parent.Kind)
	case !child.Span.Valid():
		return fmt.Sprintf("%s span %s is inverted", child.Kind, child.Span)
	case !parent.Span.Contains(child.Span):
		return fmt.Sprintf("%s span %s escapes parent %s span %s", child.Kind, child.Span, parent.Kind, parent.Span)
	case prev != nil && !prev.Span.Precedes(child.Span):
		return fmt.Sprintf("%s span %s overlaps preceding sibling %s", child.Kind, child.Span, prev.Span)
	default:
		return ""
	}
}

// Children returns the children of n the engine traverses: well-formed and
// not suppressed. The result aliases n.Children when nothing is dropped.
func Children(n *m.Node) []*m.Node {
	if n == nil || len(n.Children) == 0 {
		return nil
	}

	var (
		out  []*m.Node
		prev *m.Node
	)

	for i, child := range n.Children {
		keep := childDefect(n, prev, child) == ""
		if keep {
			prev = child
			keep = !child.Suppressed()
		}

		switch {
		case keep && out != nil:
			out = append(out, child)
		case !keep && out == nil:
			out = append(make([]*m.Node, 0, len(n.Children)-1), n.Children[:i]...)
		}
	}

	if out == nil {
		return n.Children
	}

	return out
}

// WalkLocal visits n and its descendants in pre-order without entering
// nested functions or suppressed subtrees. Returning false from fn prunes
// the subtree.
func WalkLocal(n *m.Node, fn func(*m.Node) bool) {
	if n == nil || n.Suppressed() {
		return
	}

	if !fn(n) {
		return
	}

	for _, child := range Children(n) {
		if child.Kind == m.KindFunction {
			continue
		}

		WalkLocal(child, fn)
	}
}

// Walk visits n and every descendant in pre-order, nested functions included.
func Walk(n *m.Node, fn func(*m.Node) bool) {
	if n == nil || n.Suppressed() || !fn(n) {
		return
	}

	for _, child := range Children(n) {
		Walk(child, fn)
	}
}

// FindLocal returns the first node under n (n included) matching nm without
// entering nested functions.
func FindLocal(n *m.Node, nm NodeMatcher) *m.Node {
	var found *m.Node

	WalkLocal(n, func(x *m.Node) bool {
		if found != nil {
			return false
		}

		if nm(x) {
			found = x
			return false
		}

		return true
	})

	return found
}

// Find is FindLocal that also descends into nested functions.
func Find(n *m.Node, nm NodeMatcher) *m.Node {
	var found *m.Node

	Walk(n, func(x *m.Node) bool {
		if found != nil {
			return false
		}

		if nm(x) {
			found = x
			return false
		}

		return true
	})

	return found
}

// ChildOf returns the first direct child of n matching nm.
func ChildOf(n *m.Node, nm NodeMatcher) *m.Node {
	for _, c := range Children(n) {
		if nm(c) {
			return c
		}
	}

	return nil
}

// Body returns the Block child of a function-like node.
func Body(n *m.Node) *m.Node {
	return ChildOf(n, KindOf(m.KindBlock))
}
