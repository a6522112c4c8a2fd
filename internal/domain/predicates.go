package domain

import (
	"regexp"
	"strings"

	m "snare.dev/pkg/snare/internal/model"
)

// NodeMatcher tests a node on its own, without traversal context.
type NodeMatcher func(n *m.Node) bool

// Predicate tests a node in its traversal context.
type Predicate func(n *m.Node, ctx *MatchContext) bool

// KindOf matches nodes of any of the given kinds.
func KindOf(kinds ...m.NodeKind) NodeMatcher {
	return func(n *m.Node) bool {
		return n.Is(kinds...)
	}
}

// AttrIs matches nodes whose attribute equals value.
func AttrIs(name, value string) NodeMatcher {
	return func(n *m.Node) bool {
		v, ok := n.Attr(name)
		return ok && v == value
	}
}

// AttrIn matches nodes whose attribute is one of values.
func AttrIn(name string, values ...string) NodeMatcher {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	return func(n *m.Node) bool {
		v, ok := n.Attr(name)
		if !ok {
			return false
		}

		_, hit := set[v]

		return hit
	}
}

// AttrMatches matches nodes whose attribute matches re.
func AttrMatches(name string, re *regexp.Regexp) NodeMatcher {
	return func(n *m.Node) bool {
		v, ok := n.Attr(name)
		return ok && re.MatchString(v)
	}
}

// HasAttr matches nodes carrying the attribute, whatever its value.
func HasAttr(name string) NodeMatcher {
	return func(n *m.Node) bool {
		_, ok := n.Attr(name)
		return ok
	}
}

// CalleeIs matches calls whose full callee is one of names.
func CalleeIs(names ...string) NodeMatcher {
	return AllOf(KindOf(m.KindCallExpression), AttrIn(m.AttrCallee, names...))
}

// MethodIs matches calls whose last callee segment is one of methods.
func MethodIs(methods ...string) NodeMatcher {
	set := make(map[string]struct{}, len(methods))
	for _, v := range methods {
		set[v] = struct{}{}
	}

	return func(n *m.Node) bool {
		if !n.Is(m.KindCallExpression) {
			return false
		}

		_, ok := set[Method(n.AttrOr(m.AttrCallee))]

		return ok
	}
}

// AllOf matches when every matcher does.
func AllOf(nms ...NodeMatcher) NodeMatcher {
	return func(n *m.Node) bool {
		for _, nm := range nms {
			if !nm(n) {
				return false
			}
		}

		return true
	}
}

// AnyOf matches when at least one matcher does.
func AnyOf(nms ...NodeMatcher) NodeMatcher {
	return func(n *m.Node) bool {
		for _, nm := range nms {
			if nm(n) {
				return true
			}
		}

		return false
	}
}

// NoneOf matches when no matcher does.
func NoneOf(nms ...NodeMatcher) NodeMatcher {
	match := AnyOf(nms...)
	return func(n *m.Node) bool { return !match(n) }
}

// Self lifts a NodeMatcher into a Predicate.
func Self(nm NodeMatcher) Predicate {
	return func(n *m.Node, _ *MatchContext) bool { return nm(n) }
}

// And holds when every predicate holds.
func And(ps ...Predicate) Predicate {
	return func(n *m.Node, ctx *MatchContext) bool {
		for _, p := range ps {
			if !p(n, ctx) {
				return false
			}
		}

		return true
	}
}

// Or holds when at least one predicate holds.
func Or(ps ...Predicate) Predicate {
	return func(n *m.Node, ctx *MatchContext) bool {
		for _, p := range ps {
			if p(n, ctx) {
				return true
			}
		}

		return false
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(n *m.Node, ctx *MatchContext) bool { return !p(n, ctx) }
}

// InDialect holds for units of the given dialects.
func InDialect(dialects ...m.Dialect) Predicate {
	return func(_ *m.Node, ctx *MatchContext) bool {
		for _, d := range dialects {
			if ctx.Dialect() == d {
				return true
			}
		}

		return false
	}
}

// AncestorHasKind walks up the ancestor path and holds when the first
// ancestor whose kind is in kinds or stop has a kind in kinds. The search
// ends at the first qualifying ancestor.
func AncestorHasKind(kinds []m.NodeKind, stop ...m.NodeKind) Predicate {
	all := append(append([]m.NodeKind{}, kinds...), stop...)

	return func(_ *m.Node, ctx *MatchContext) bool {
		anc, _ := ctx.FirstAncestor(all...)
		return anc != nil && anc.Is(kinds...)
	}
}

// NearestAncestor holds when the first ancestor matching match or stop
// matches match.
func NearestAncestor(match, stop NodeMatcher) Predicate {
	return func(_ *m.Node, ctx *MatchContext) bool {
		path := ctx.Ancestors()
		for i := len(path) - 1; i >= 0; i-- {
			if match(path[i]) {
				return true
			}

			if stop(path[i]) {
				return false
			}
		}

		return false
	}
}

// ContainsLocal holds when the node's subtree, nested functions excluded,
// contains a node matching nm.
func ContainsLocal(nm NodeMatcher) Predicate {
	return func(n *m.Node, _ *MatchContext) bool {
		for _, c := range Children(n) {
			if c.Kind != m.KindFunction && FindLocal(c, nm) != nil {
				return true
			}
		}

		return false
	}
}

// FindFollowing scans the siblings after the node, in order, for one
// matching nm. The scan stops before a sibling matching barrier.
func FindFollowing(ctx *MatchContext, nm, barrier NodeMatcher) *m.Node {
	for _, s := range ctx.Following() {
		if s == nil {
			continue
		}

		if nm(s) {
			return s
		}

		if barrier != nil && barrier(s) {
			return nil
		}
	}

	return nil
}

// SiblingSequence holds when the node matches first and the following
// siblings contain, in order, nodes matching rest.
func SiblingSequence(first NodeMatcher, rest ...NodeMatcher) Predicate {
	return func(n *m.Node, ctx *MatchContext) bool {
		if !first(n) {
			return false
		}

		i := 0
		for _, s := range ctx.Following() {
			if i == len(rest) {
				break
			}

			if s != nil && rest[i](s) {
				i++
			}
		}

		return i == len(rest)
	}
}

// Method returns the last dotted segment of a callee ("res.status.json" -> "json").
func Method(callee string) string {
	if i := strings.LastIndexByte(callee, '.'); i >= 0 {
		return callee[i+1:]
	}

	return callee
}

// Receiver returns the first dotted segment of a callee ("res.status.json" -> "res").
func Receiver(callee string) string {
	if i := strings.IndexByte(callee, '.'); i >= 0 {
		return callee[:i]
	}

	return ""
}
