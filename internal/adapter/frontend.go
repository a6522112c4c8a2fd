package adapter

import (
	"errors"
	"fmt"

	m "snare.dev/pkg/snare/internal/model"
)

// ErrUnsupportedSource is returned when no front-end accepts a file.
var ErrUnsupportedSource = errors.New("unsupported source")

// Frontend turns raw fixture bytes into a normalized source unit. Parsing is
// the only place that knows about a concrete language; everything after it
// works on the normalized AST.
type Frontend interface {
	// Supports reports whether the front-end can parse the file at path.
	Supports(path m.Path) bool

	// Parse builds the unit. The returned unit is never modified afterwards.
	Parse(file m.File, content []byte) (*m.SourceUnit, error)
}

type frontendSet struct {
	frontends []Frontend
}

// NewFrontends combines front-ends; the first one that supports a path parses it.
func NewFrontends(frontends ...Frontend) Frontend {
	return &frontendSet{frontends: frontends}
}

func (s *frontendSet) Supports(path m.Path) bool {
	return s.pick(path) != nil
}

func (s *frontendSet) Parse(file m.File, content []byte) (*m.SourceUnit, error) {
	f := s.pick(file.FullPath)
	if f == nil {
		return nil, fmt.Errorf("%s: %w", file.FullPath, ErrUnsupportedSource)
	}

	return f.Parse(file, content)
}

func (s *frontendSet) pick(path m.Path) Frontend {
	for _, f := range s.frontends {
		if f.Supports(path) {
			return f
		}
	}

	return nil
}
