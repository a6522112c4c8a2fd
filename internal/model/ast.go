package model

import (
	"fmt"
	"strings"
)

// Dialect identifies the family of source a unit was parsed from.
type Dialect string

const (
	// DialectServerHandler covers request handlers (express-style APIs, net/http).
	DialectServerHandler Dialect = "server-handler"
	// DialectUIComponent covers component trees with lifecycle hooks.
	DialectUIComponent Dialect = "ui-component"
	// DialectConcurrentScript covers programs that spawn tasks and manage resources.
	DialectConcurrentScript Dialect = "concurrent-script"
	// DialectGeneric is used when a front-end cannot tell.
	DialectGeneric Dialect = "generic"
)

// ParseDialect converts a manifest or document value into a Dialect.
// An empty value maps to DialectGeneric.
func ParseDialect(value string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(value))); d {
	case "":
		return DialectGeneric, nil
	case DialectServerHandler, DialectUIComponent, DialectConcurrentScript, DialectGeneric:
		return d, nil
	default:
		return "", fmt.Errorf("unknown dialect %q", value)
	}
}

// NodeKind is the closed, dialect-agnostic vocabulary of AST node kinds.
type NodeKind string

// Node kinds understood by the engine. Dialect specific concepts are
// expressed through these kinds plus attributes.
const (
	KindUnit                NodeKind = "Unit"
	KindFunction            NodeKind = "Function"
	KindParameter           NodeKind = "Parameter"
	KindBlock               NodeKind = "Block"
	KindClassDecl           NodeKind = "ClassDecl"
	KindDeclaration         NodeKind = "Declaration"
	KindAssignmentStatement NodeKind = "AssignmentStatement"
	KindCallExpression      NodeKind = "CallExpression"
	KindMemberAccess        NodeKind = "MemberAccess"
	KindIdentifier          NodeKind = "Identifier"
	KindLiteral             NodeKind = "Literal"
	KindTemplateString      NodeKind = "TemplateString"
	KindBinaryExpression    NodeKind = "BinaryExpression"
	KindConditionalBlock    NodeKind = "ConditionalBlock"
	KindLoopStatement       NodeKind = "LoopStatement"
	KindTryBlock            NodeKind = "TryBlock"
	KindCatchClause         NodeKind = "CatchClause"
	KindReturnStatement     NodeKind = "ReturnStatement"
	KindThrowStatement      NodeKind = "ThrowStatement"
	KindDeferStatement      NodeKind = "DeferStatement"
	KindSpawn               NodeKind = "Spawn"
	KindAwait               NodeKind = "Await"
	KindResourceAcquisition NodeKind = "ResourceAcquisition"
	KindResourceRelease     NodeKind = "ResourceRelease"
	KindLifecycleHook       NodeKind = "LifecycleHook"
	KindElement             NodeKind = "Element"
	KindOther               NodeKind = "Other"
)

var knownKinds = map[NodeKind]struct{}{
	KindUnit: {}, KindFunction: {}, KindParameter: {}, KindBlock: {}, KindClassDecl: {},
	KindDeclaration: {}, KindAssignmentStatement: {}, KindCallExpression: {}, KindMemberAccess: {},
	KindIdentifier: {}, KindLiteral: {}, KindTemplateString: {}, KindBinaryExpression: {},
	KindConditionalBlock: {}, KindLoopStatement: {}, KindTryBlock: {}, KindCatchClause: {},
	KindReturnStatement: {}, KindThrowStatement: {}, KindDeferStatement: {}, KindSpawn: {},
	KindAwait: {}, KindResourceAcquisition: {}, KindResourceRelease: {}, KindLifecycleHook: {},
	KindElement: {}, KindOther: {},
}

// Valid reports whether k belongs to the closed vocabulary.
func (k NodeKind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// ParseNodeKind validates a kind read from an external document.
func ParseNodeKind(value string) (NodeKind, error) {
	k := NodeKind(strings.TrimSpace(value))
	if !k.Valid() {
		return "", fmt.Errorf("unknown node kind %q", value)
	}

	return k, nil
}

// Well-known attribute names.
const (
	AttrName         = "name"
	AttrCallee       = "callee"
	AttrOperator     = "operator"
	AttrValue        = "value"
	AttrTarget       = "target"
	AttrHook         = "hook"
	AttrDeps         = "deps"
	AttrRole         = "role"
	AttrPhase        = "phase"
	AttrKeyword      = "keyword"
	AttrManaged      = "managed"
	AttrPerIteration = "per-iteration"
	AttrEffect       = "effect"
	AttrLiteral      = "literal"
	AttrKey          = "key"
	AttrSuppress     = "suppress"
)

// Position is a location inside the raw text of a unit.
type Position struct {
	Offset int `json:"offset" yaml:"offset"`
	Line   int `json:"line"   yaml:"line"`
	Column int `json:"col"    yaml:"col"`
}

// Span is a half-open range [Start, End) of the unit text.
type Span struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end"   yaml:"end"`
}

// Valid reports whether the span is well formed.
func (s Span) Valid() bool {
	return s.Start.Offset >= 0 && s.End.Offset >= s.Start.Offset
}

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return other.Start.Offset >= s.Start.Offset && other.End.Offset <= s.End.Offset
}

// Precedes reports whether s ends at or before other starts.
func (s Span) Precedes(other Span) bool {
	return s.End.Offset <= other.Start.Offset
}

// Compare orders spans by start offset, then by end offset.
func (s Span) Compare(other Span) int {
	switch {
	case s.Start.Offset != other.Start.Offset:
		return s.Start.Offset - other.Start.Offset
	default:
		return s.End.Offset - other.End.Offset
	}
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// Node is one element of a normalized AST.
type Node struct {
	Kind     NodeKind          `json:"kind"               yaml:"kind"`
	Span     Span              `json:"span"               yaml:"span"`
	Attrs    map[string]string `json:"attrs,omitempty"    yaml:"attrs,omitempty"`
	Children []*Node           `json:"children,omitempty" yaml:"children,omitempty"`
}

// Attr returns the attribute value and whether it is set.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil || n.Attrs == nil {
		return "", false
	}

	v, ok := n.Attrs[name]

	return v, ok
}

// AttrOr returns the attribute value or an empty string.
func (n *Node) AttrOr(name string) string {
	v, _ := n.Attr(name)
	return v
}

// Is reports whether the node has one of the given kinds.
func (n *Node) Is(kinds ...NodeKind) bool {
	if n == nil {
		return false
	}

	for _, k := range kinds {
		if n.Kind == k {
			return true
		}
	}

	return false
}

// Suppressed reports whether the node carries the suppression attribute.
func (n *Node) Suppressed() bool {
	_, ok := n.Attr(AttrSuppress)
	return ok
}

// SourceUnit is one analysis input. It must not be modified once a front-end
// has returned it.
type SourceUnit struct {
	ID      string  `json:"id"      yaml:"unit"`
	Dialect Dialect `json:"dialect" yaml:"dialect"`

	// Language is the source language the front-end parsed ("go", "javascript").
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	Text     string `json:"text,omitempty"     yaml:"text,omitempty"`
	Hash     string `json:"hash,omitempty"     yaml:"-"`
	Root     *Node  `json:"root"               yaml:"root"`
}
