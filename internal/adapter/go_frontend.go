package adapter

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	m "snare.dev/pkg/snare/internal/model"
)

// IgnoreDirective suppresses findings on the line it is written on and on
// the line that follows it.
const IgnoreDirective = "snare:ignore"

const (
	effectTerminalResponse = "terminal-response"
	roleHandler            = "handler"
	roleCallback           = "callback"
)

var (
	// acquirers return a value that must be closed by the caller.
	acquirers = map[string]bool{
		"os.Open": true, "os.OpenFile": true, "os.Create": true, "os.CreateTemp": true,
		"ioutil.TempFile": true, "net.Dial": true, "net.DialTimeout": true, "net.Listen": true,
		"sql.Open": true, "http.Get": true, "http.Post": true, "http.Head": true,
		"zip.OpenReader": true, "gzip.NewReader": true,
	}

	lockMethods = map[string]bool{"Lock": true, "RLock": true}

	// writerFunctions finish a response when the writer is their first argument.
	writerFunctions = map[string]bool{
		"http.Error": true, "http.Redirect": true, "http.ServeFile": true, "http.ServeContent": true,
		"http.NotFound": true, "fmt.Fprint": true, "fmt.Fprintf": true, "fmt.Fprintln": true,
		"io.WriteString": true, "io.Copy": true,
	}

	// writerMethods finish a response when called on the writer itself.
	writerMethods = map[string]bool{
		"Write": true, "JSON": true, "String": true, "HTML": true, "XML": true, "Data": true,
		"Redirect": true, "IndentedJSON": true, "AbortWithStatusJSON": true, "File": true,
		"NoContent": true, "Blob": true,
	}

	// writerTypes identify the parameter a handler responds through.
	writerTypes = map[string]bool{
		"http.ResponseWriter": true, "*gin.Context": true, "echo.Context": true,
	}
)

// GoFrontend maps Go source files onto the normalized AST.
type GoFrontend struct{}

// NewGoFrontend creates the Go front-end.
func NewGoFrontend() *GoFrontend {
	return &GoFrontend{}
}

// Supports accepts .go files.
func (f *GoFrontend) Supports(path m.Path) bool {
	return strings.HasSuffix(string(path), ".go")
}

// Parse builds a unit with go/parser. The dialect is inferred from the file:
// any handler makes it a server-handler unit, goroutines, channels, tickers or
// acquired resources make it a concurrent-script unit.
func (f *GoFrontend) Parse(file m.File, content []byte) (*m.SourceUnit, error) {
	fset := token.NewFileSet()

	parsed, err := parser.ParseFile(fset, string(file.FullPath), content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file.FullPath, err)
	}

	c := &goConverter{
		fset:    fset,
		ignored: ignoredLines(fset, parsed),
	}

	root := c.unit(parsed, len(content))

	return &m.SourceUnit{
		ID:       file.UnitID(),
		Dialect:  c.dialect(),
		Language: "go",
		Text:     string(content),
		Hash:     file.Hash,
		Root:     root,
	}, nil
}

func ignoredLines(fset *token.FileSet, file *ast.File) map[int]bool {
	lines := make(map[int]bool)

	for _, group := range file.Comments {
		for _, comment := range group.List {
			if !strings.Contains(comment.Text, IgnoreDirective) {
				continue
			}

			line := fset.Position(comment.Pos()).Line
			lines[line] = true
			lines[line+1] = true
		}
	}

	return lines
}

type goConverter struct {
	fset    *token.FileSet
	ignored map[int]bool

	// writers is the stack of response writer names of enclosing handlers.
	writers []string

	handlers   int
	concurrent int
}

func (c *goConverter) dialect() m.Dialect {
	switch {
	case c.handlers > 0:
		return m.DialectServerHandler
	case c.concurrent > 0:
		return m.DialectConcurrentScript
	default:
		return m.DialectGeneric
	}
}

func (c *goConverter) position(p token.Pos) m.Position {
	pos := c.fset.Position(p)
	return m.Position{Offset: pos.Offset, Line: pos.Line, Column: pos.Column}
}

func (c *goConverter) node(kind m.NodeKind, from ast.Node, attrs map[string]string, children ...*m.Node) *m.Node {
	n := &m.Node{
		Kind:  kind,
		Span:  m.Span{Start: c.position(from.Pos()), End: c.position(from.End())},
		Attrs: attrs,
	}

	for _, child := range children {
		if child != nil {
			n.Children = append(n.Children, child)
		}
	}

	if c.ignored[n.Span.Start.Line] {
		if n.Attrs == nil {
			n.Attrs = make(map[string]string, 1)
		}

		n.Attrs[m.AttrSuppress] = "true"
	}

	return n
}

func (c *goConverter) unit(file *ast.File, size int) *m.Node {
	var children []*m.Node

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			children = append(children, c.function(d.Name.Name, d.Recv, d.Type, d.Body, d, ""))
		case *ast.GenDecl:
			children = append(children, c.genDecl(d)...)
		}
	}

	tokenFile := c.fset.File(file.Pos())

	return &m.Node{
		Kind: m.KindUnit,
		Span: m.Span{
			Start: m.Position{Offset: 0, Line: 1, Column: 1},
			End:   c.position(tokenFile.Pos(size)),
		},
		Attrs:    map[string]string{m.AttrName: file.Name.Name},
		Children: children,
	}
}

func (c *goConverter) genDecl(d *ast.GenDecl) []*m.Node {
	var out []*m.Node

	for _, spec := range d.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			out = append(out, c.node(m.KindClassDecl, s, map[string]string{m.AttrName: s.Name.Name}))
		case *ast.ValueSpec:
			attrs := map[string]string{
				m.AttrName:    s.Names[0].Name,
				m.AttrKeyword: d.Tok.String(),
			}

			out = append(out, c.node(m.KindDeclaration, s, attrs, c.exprs(s.Values)...))
		}
	}

	return out
}

func (c *goConverter) function(name string, recv *ast.FieldList, typ *ast.FuncType, body *ast.BlockStmt, from ast.Node, role string) *m.Node {
	attrs := map[string]string{}
	if name != "" {
		attrs[m.AttrName] = name
	}

	writer := responseWriter(typ)
	if writer != "" {
		role = roleHandler
		c.handlers++
		c.writers = append(c.writers, writer)

		defer func() { c.writers = c.writers[:len(c.writers)-1] }()
	}

	if role != "" {
		attrs[m.AttrRole] = role
	}

	var children []*m.Node

	children = append(children, c.params(recv)...)
	children = append(children, c.params(typ.Params)...)

	if body != nil {
		children = append(children, c.block(body))
	}

	return c.node(m.KindFunction, from, attrs, children...)
}

func (c *goConverter) params(fields *ast.FieldList) []*m.Node {
	if fields == nil {
		return nil
	}

	var out []*m.Node

	for _, field := range fields.List {
		if len(field.Names) == 0 {
			out = append(out, c.node(m.KindParameter, field, map[string]string{}))
			continue
		}

		for _, ident := range field.Names {
			out = append(out, c.node(m.KindParameter, ident, map[string]string{m.AttrName: ident.Name}))
		}
	}

	return out
}

func responseWriter(typ *ast.FuncType) string {
	if typ == nil || typ.Params == nil {
		return ""
	}

	for _, field := range typ.Params.List {
		if len(field.Names) == 0 || !writerTypes[typeString(field.Type)] {
			continue
		}

		return field.Names[0].Name
	}

	return ""
}

func (c *goConverter) writer() string {
	if len(c.writers) == 0 {
		return ""
	}

	return c.writers[len(c.writers)-1]
}

func (c *goConverter) block(b *ast.BlockStmt) *m.Node {
	return c.node(m.KindBlock, b, nil, c.stmts(b.List)...)
}

func (c *goConverter) stmts(list []ast.Stmt) []*m.Node {
	var out []*m.Node

	for _, s := range list {
		out = append(out, c.stmt(s)...)
	}

	return out
}

func (c *goConverter) stmt(s ast.Stmt) []*m.Node {
	switch s := s.(type) {
	case *ast.DeclStmt:
		if d, ok := s.Decl.(*ast.GenDecl); ok {
			return c.genDecl(d)
		}

		return nil
	case *ast.LabeledStmt:
		return c.stmt(s.Stmt)
	case *ast.EmptyStmt:
		return nil
	}

	if n := c.single(s); n != nil {
		return []*m.Node{n}
	}

	return nil
}

func (c *goConverter) single(s ast.Stmt) *m.Node {
	switch s := s.(type) {
	case *ast.BlockStmt:
		return c.block(s)
	case *ast.ExprStmt:
		return c.exprStmt(s)
	case *ast.AssignStmt:
		return c.assign(s)
	case *ast.ReturnStmt:
		return c.node(m.KindReturnStatement, s, nil, c.exprs(s.Results)...)
	case *ast.IfStmt:
		var elseNode *m.Node
		if s.Else != nil {
			elseNode = c.single(s.Else)
		}

		return c.node(m.KindConditionalBlock, s, nil, c.init(s.Init, false), c.expr(s.Cond), c.block(s.Body), elseNode)
	case *ast.ForStmt:
		return c.node(m.KindLoopStatement, s, nil, c.init(s.Init, true), c.expr(s.Cond), c.init(s.Post, false), c.block(s.Body))
	case *ast.RangeStmt:
		return c.node(m.KindLoopStatement, s, nil, c.rangeVar(s.Key, s.Tok), c.rangeVar(s.Value, s.Tok), c.expr(s.X), c.block(s.Body))
	case *ast.SwitchStmt:
		return c.node(m.KindConditionalBlock, s, nil, c.init(s.Init, false), c.expr(s.Tag), c.block(s.Body))
	case *ast.TypeSwitchStmt:
		return c.node(m.KindConditionalBlock, s, nil, c.init(s.Init, false), c.init(s.Assign, false), c.block(s.Body))
	case *ast.SelectStmt:
		c.concurrent++
		return c.node(m.KindConditionalBlock, s, map[string]string{m.AttrKeyword: "select"}, c.block(s.Body))
	case *ast.CaseClause:
		children := append(c.exprs(s.List), c.stmts(s.Body)...)
		return c.node(m.KindBlock, s, map[string]string{m.AttrKeyword: "case"}, children...)
	case *ast.CommClause:
		children := append(c.stmt(s.Comm), c.stmts(s.Body)...)
		return c.node(m.KindBlock, s, map[string]string{m.AttrKeyword: "case"}, children...)
	case *ast.DeferStmt:
		return c.node(m.KindDeferStatement, s, nil, c.call(s.Call))
	case *ast.GoStmt:
		c.concurrent++
		return c.node(m.KindSpawn, s, nil, c.call(s.Call))
	case *ast.SendStmt:
		c.concurrent++
		return c.node(m.KindOther, s, map[string]string{m.AttrKeyword: "send"}, c.expr(s.Chan), c.expr(s.Value))
	case *ast.IncDecStmt:
		attrs := map[string]string{m.AttrTarget: exprString(s.X), m.AttrOperator: s.Tok.String()}
		return c.node(m.KindAssignmentStatement, s, attrs)
	case *ast.BranchStmt:
		return c.node(m.KindOther, s, map[string]string{m.AttrKeyword: s.Tok.String()})
	case *ast.DeclStmt, *ast.LabeledStmt:
		nodes := c.stmt(s)
		if len(nodes) > 0 {
			return nodes[0]
		}
	}

	return nil
}

// init converts the init or post statement of a control clause. Loop
// variables declared there are per-iteration since Go 1.22.
func (c *goConverter) init(s ast.Stmt, loop bool) *m.Node {
	if s == nil {
		return nil
	}

	n := c.single(s)
	if loop && n != nil && n.Is(m.KindDeclaration) {
		n.Attrs[m.AttrPerIteration] = "true"
	}

	return n
}

func (c *goConverter) rangeVar(e ast.Expr, tok token.Token) *m.Node {
	ident, ok := e.(*ast.Ident)
	if !ok || tok != token.DEFINE || ident.Name == "_" {
		return nil
	}

	return c.node(m.KindDeclaration, ident, map[string]string{
		m.AttrName:         ident.Name,
		m.AttrKeyword:      ":=",
		m.AttrPerIteration: "true",
	})
}

func (c *goConverter) exprStmt(s *ast.ExprStmt) *m.Node {
	call, ok := unparen(s.X).(*ast.CallExpr)
	if !ok {
		return c.expr(s.X)
	}

	// mu.Lock() acquires mu until a matching Unlock.
	if sel, ok := call.Fun.(*ast.SelectorExpr); ok && lockMethods[sel.Sel.Name] && len(call.Args) == 0 {
		c.concurrent++

		return c.node(m.KindResourceAcquisition, s, map[string]string{
			m.AttrName:   exprString(sel.X),
			m.AttrCallee: exprString(call.Fun),
		})
	}

	return c.call(call)
}

func (c *goConverter) assign(s *ast.AssignStmt) *m.Node {
	name := firstName(s.Lhs)

	if len(s.Rhs) == 1 {
		if call, ok := unparen(s.Rhs[0]).(*ast.CallExpr); ok && acquirers[exprString(call.Fun)] {
			c.concurrent++

			attrs := map[string]string{m.AttrCallee: exprString(call.Fun)}
			if name != "" {
				attrs[m.AttrName] = name
			}

			return c.node(m.KindResourceAcquisition, s, attrs, c.exprs(call.Args)...)
		}
	}

	if s.Tok == token.DEFINE && name != "" {
		attrs := map[string]string{m.AttrName: name, m.AttrKeyword: ":="}
		return c.node(m.KindDeclaration, s, attrs, c.exprs(s.Rhs)...)
	}

	attrs := map[string]string{
		m.AttrTarget:   exprString(s.Lhs[0]),
		m.AttrOperator: s.Tok.String(),
	}

	return c.node(m.KindAssignmentStatement, s, attrs, c.exprs(s.Rhs)...)
}

func firstName(lhs []ast.Expr) string {
	for _, e := range lhs {
		if ident, ok := e.(*ast.Ident); ok && ident.Name != "_" {
			return ident.Name
		}
	}

	return ""
}

func (c *goConverter) exprs(list []ast.Expr) []*m.Node {
	out := make([]*m.Node, 0, len(list))

	for _, e := range list {
		if n := c.expr(e); n != nil {
			out = append(out, n)
		}
	}

	return out
}

func (c *goConverter) expr(e ast.Expr) *m.Node {
	switch e := e.(type) {
	case nil:
		return nil
	case *ast.ParenExpr:
		return c.expr(e.X)
	case *ast.Ident:
		switch e.Name {
		case "nil":
			return c.node(m.KindLiteral, e, map[string]string{m.AttrLiteral: "nil"})
		case "true", "false":
			return c.node(m.KindLiteral, e, map[string]string{m.AttrLiteral: "bool", m.AttrValue: e.Name})
		}

		return c.node(m.KindIdentifier, e, map[string]string{m.AttrName: e.Name})
	case *ast.BasicLit:
		return c.literal(e)
	case *ast.CallExpr:
		return c.call(e)
	case *ast.SelectorExpr:
		var base *m.Node
		if !isPath(e.X) {
			base = c.expr(e.X)
		}

		return c.node(m.KindMemberAccess, e, map[string]string{m.AttrName: exprString(e)}, base)
	case *ast.IndexExpr:
		var base *m.Node
		if !isPath(e.X) {
			base = c.expr(e.X)
		}

		return c.node(m.KindMemberAccess, e, map[string]string{m.AttrName: exprString(e)}, base, c.expr(e.Index))
	case *ast.SliceExpr:
		return c.node(m.KindMemberAccess, e, map[string]string{m.AttrName: exprString(e.X)}, c.expr(e.Low), c.expr(e.High), c.expr(e.Max))
	case *ast.StarExpr:
		return c.expr(e.X)
	case *ast.TypeAssertExpr:
		return c.expr(e.X)
	case *ast.UnaryExpr:
		switch e.Op {
		case token.ARROW:
			c.concurrent++
			return c.node(m.KindAwait, e, nil, c.expr(e.X))
		case token.AND:
			return c.expr(e.X)
		}

		return c.node(m.KindBinaryExpression, e, map[string]string{m.AttrOperator: e.Op.String()}, c.expr(e.X))
	case *ast.BinaryExpr:
		return c.node(m.KindBinaryExpression, e, map[string]string{m.AttrOperator: e.Op.String()}, c.expr(e.X), c.expr(e.Y))
	case *ast.CompositeLit:
		kind := "object"
		if _, ok := e.Type.(*ast.ArrayType); ok {
			kind = "list"
		}

		return c.node(m.KindLiteral, e, map[string]string{m.AttrLiteral: kind}, c.exprs(e.Elts)...)
	case *ast.KeyValueExpr:
		return c.expr(e.Value)
	case *ast.FuncLit:
		return c.function("", nil, e.Type, e.Body, e, roleCallback)
	}

	return nil
}

func (c *goConverter) literal(lit *ast.BasicLit) *m.Node {
	attrs := map[string]string{m.AttrValue: lit.Value}

	switch lit.Kind {
	case token.STRING:
		attrs[m.AttrLiteral] = "string"
		if v, err := strconv.Unquote(lit.Value); err == nil {
			attrs[m.AttrValue] = v
		}
	case token.CHAR:
		attrs[m.AttrLiteral] = "char"
	default:
		attrs[m.AttrLiteral] = "number"
	}

	return c.node(m.KindLiteral, lit, attrs)
}

func (c *goConverter) call(call *ast.CallExpr) *m.Node {
	callee := exprString(call.Fun)

	switch callee {
	case "panic":
		return c.node(m.KindThrowStatement, call, nil, c.exprs(call.Args)...)
	case "time.Tick", "time.NewTicker":
		c.concurrent++
	}

	attrs := map[string]string{m.AttrCallee: callee}
	if c.terminalResponse(call, callee) {
		attrs[m.AttrEffect] = effectTerminalResponse
	}

	var children []*m.Node

	switch fun := unparen(call.Fun).(type) {
	case *ast.FuncLit:
		children = append(children, c.expr(fun))
	case *ast.SelectorExpr:
		if inner, ok := unparen(fun.X).(*ast.CallExpr); ok {
			children = append(children, c.call(inner))
		}
	}

	children = append(children, c.exprs(call.Args)...)

	return c.node(m.KindCallExpression, call, attrs, children...)
}

// terminalResponse reports whether call finishes the response of the
// enclosing handler.
func (c *goConverter) terminalResponse(call *ast.CallExpr, callee string) bool {
	writer := c.writer()
	if writer == "" {
		return false
	}

	writesTo := func(args []ast.Expr) bool {
		return len(args) > 0 && exprString(args[0]) == writer
	}

	if writerFunctions[callee] {
		return writesTo(call.Args)
	}

	sel, ok := unparen(call.Fun).(*ast.SelectorExpr)
	if !ok {
		return false
	}

	method := sel.Sel.Name

	if exprString(sel.X) == writer && writerMethods[method] {
		return true
	}

	switch method {
	case "Encode":
		// json.NewEncoder(w).Encode(v)
		inner, ok := unparen(sel.X).(*ast.CallExpr)
		return ok && strings.HasSuffix(exprString(inner.Fun), ".NewEncoder") && writesTo(inner.Args)
	case "Execute", "ExecuteTemplate":
		return writesTo(call.Args)
	}

	return false
}

func unparen(e ast.Expr) ast.Expr {
	for {
		p, ok := e.(*ast.ParenExpr)
		if !ok {
			return e
		}

		e = p.X
	}
}

// isPath reports whether e is a plain identifier or selector chain, which
// exprString renders completely.
func isPath(e ast.Expr) bool {
	switch e := unparen(e).(type) {
	case *ast.Ident:
		return true
	case *ast.SelectorExpr:
		return isPath(e.X)
	case *ast.StarExpr:
		return isPath(e.X)
	default:
		return false
	}
}

// exprString renders the dotted name of an expression. Calls collapse to
// their function so chains read as "json.NewEncoder.Encode".
func exprString(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		return exprString(e.X) + "." + e.Sel.Name
	case *ast.CallExpr:
		return exprString(e.Fun)
	case *ast.IndexExpr:
		return exprString(e.X) + "[" + exprString(e.Index) + "]"
	case *ast.IndexListExpr:
		return exprString(e.X)
	case *ast.StarExpr:
		return exprString(e.X)
	case *ast.ParenExpr:
		return exprString(e.X)
	case *ast.TypeAssertExpr:
		return exprString(e.X)
	case *ast.BasicLit:
		return e.Value
	case *ast.FuncLit:
		return "func"
	default:
		return ""
	}
}

func typeString(e ast.Expr) string {
	if star, ok := e.(*ast.StarExpr); ok {
		return "*" + exprString(star.X)
	}

	return exprString(e)
}
