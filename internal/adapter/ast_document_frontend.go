package adapter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	m "snare.dev/pkg/snare/internal/model"
)

// AST document suffixes. JSON documents are valid YAML, so one decoder
// serves both.
var astDocumentSuffixes = []string{".ast.yaml", ".ast.yml", ".ast.json"}

// astDocument is the on-disk shape of a pre-normalized unit produced by an
// external parser.
type astDocument struct {
	Unit     string  `yaml:"unit"`
	Dialect  string  `yaml:"dialect"`
	Language string  `yaml:"language"`
	Text     string  `yaml:"text"`
	Root     *m.Node `yaml:"root"`
}

// ASTDocumentFrontend loads units serialized as YAML or JSON documents.
type ASTDocumentFrontend struct{}

// NewASTDocumentFrontend creates the document front-end.
func NewASTDocumentFrontend() *ASTDocumentFrontend {
	return &ASTDocumentFrontend{}
}

// Supports accepts *.ast.yaml, *.ast.yml and *.ast.json files.
func (f *ASTDocumentFrontend) Supports(path m.Path) bool {
	lower := strings.ToLower(string(path))
	for _, suffix := range astDocumentSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}

	return false
}

// Parse decodes the document and validates every node kind. A document whose
// root has no span gets pre-order spans assigned, which keeps hand-written
// fixtures short. The unit id defaults to the file's short path.
func (f *ASTDocumentFrontend) Parse(file m.File, content []byte) (*m.SourceUnit, error) {
	var doc astDocument

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)

	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", file.FullPath, err)
	}

	if doc.Root == nil {
		return nil, fmt.Errorf("%s: document has no root node", file.FullPath)
	}

	dialect, err := m.ParseDialect(doc.Dialect)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.FullPath, err)
	}

	if err := normalizeKinds(doc.Root, "root"); err != nil {
		return nil, fmt.Errorf("%s: %w", file.FullPath, err)
	}

	if doc.Root.Span == (m.Span{}) {
		assignSpans(doc.Root)
	}

	id := doc.Unit
	if id == "" {
		id = file.UnitID()
	}

	return &m.SourceUnit{
		ID:       id,
		Dialect:  dialect,
		Language: doc.Language,
		Text:     doc.Text,
		Hash:     file.Hash,
		Root:     doc.Root,
	}, nil
}

func normalizeKinds(n *m.Node, path string) error {
	kind, err := m.ParseNodeKind(string(n.Kind))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	n.Kind = kind

	var errs []error

	for i, child := range n.Children {
		childPath := fmt.Sprintf("%s.children[%d]", path, i)
		if child == nil {
			errs = append(errs, fmt.Errorf("%s: empty node", childPath))
			continue
		}

		if err := normalizeKinds(child, childPath); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// assignSpans gives every node a nested, non-overlapping span in pre-order.
// Each node opens and closes on its own line.
func assignSpans(root *m.Node) {
	line := 0

	var walk func(n *m.Node)
	walk = func(n *m.Node) {
		line++
		n.Span.Start = m.Position{Offset: line, Line: line, Column: 1}

		for _, c := range n.Children {
			walk(c)
		}

		line++
		n.Span.End = m.Position{Offset: line, Line: line, Column: 1}
	}

	walk(root)
}
