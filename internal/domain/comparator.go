package domain

import (
	"fmt"
	"strings"

	m "snare.dev/pkg/snare/internal/model"
)

// Comparator grades a unit summary against its oracle entry.
type Comparator interface {
	Compare(summary m.Summary, oracle *m.ExpectedOracle) m.Verdict
	Mode() m.CompareMode
}

type comparator struct {
	mode m.CompareMode
}

// NewComparator creates a Comparator. An empty mode means at-least.
func NewComparator(mode m.CompareMode) Comparator {
	if mode == "" {
		mode = m.ModeAtLeast
	}

	return &comparator{mode: mode}
}

func (c *comparator) Mode() m.CompareMode {
	return c.mode
}

func (c *comparator) Compare(summary m.Summary, oracle *m.ExpectedOracle) m.Verdict {
	verdict := m.Verdict{
		Unit:       summary.Unit,
		Mismatches: []m.Mismatch{},
	}

	if oracle == nil {
		verdict.Mismatches = append(verdict.Mismatches, m.Mismatch{
			Kind:   m.MismatchMissingOracle,
			Detail: "no oracle entry for unit",
		})
		verdict.Deltas = untrackedDeltas(summary, nil)

		return verdict
	}

	verdict.Classification = oracle.Classification

	if err := oracle.Validate(); err != nil {
		verdict.Mismatches = append(verdict.Mismatches, m.Mismatch{
			Kind:   m.MismatchMissingOracle,
			Detail: fmt.Sprintf("malformed oracle entry: %v", err),
		})
		verdict.Deltas = untrackedDeltas(summary, nil)

		return verdict
	}

	tracked := make(map[string]struct{}, len(oracle.Expect))

	for _, key := range oracle.Keys() {
		name := canonicalKey(key)
		tracked[name] = struct{}{}

		expected := oracle.Expect[key]
		observed, _ := summary.Count(name)

		verdict.Deltas = append(verdict.Deltas, m.CategoryDelta{
			Category: name,
			Expected: expected,
			Observed: observed,
			Delta:    observed - expected,
			Tracked:  true,
		})

		switch {
		case observed < expected:
			verdict.Mismatches = append(verdict.Mismatches, m.Mismatch{
				Kind:     m.MismatchMissing,
				Category: name,
				Expected: expected,
				Observed: observed,
			})
		case c.mode == m.ModeExact && observed > expected:
			verdict.Mismatches = append(verdict.Mismatches, m.Mismatch{
				Kind:     m.MismatchExcess,
				Category: name,
				Expected: expected,
				Observed: observed,
			})
		}
	}

	verdict.Deltas = append(verdict.Deltas, untrackedDeltas(summary, tracked)...)

	if oracle.Classification == m.Clean {
		for _, f := range summary.Findings {
			if !f.Severity.Blocking() {
				continue
			}

			span := f.Span
			verdict.Mismatches = append(verdict.Mismatches, m.Mismatch{
				Kind:     m.MismatchUnexpected,
				Category: string(f.Category),
				RuleID:   f.RuleID,
				Span:     &span,
				Detail:   f.Message,
			})
		}
	}

	verdict.Pass = len(verdict.Mismatches) == 0

	return verdict
}

// untrackedDeltas reports the categories the oracle does not mention.
func untrackedDeltas(summary m.Summary, tracked map[string]struct{}) []m.CategoryDelta {
	var out []m.CategoryDelta

	for _, cat := range m.Categories {
		if _, ok := tracked[string(cat)]; ok {
			continue
		}

		observed := summary.Counts[cat]
		if cat == m.CategoryInternal && observed == 0 {
			continue
		}

		out = append(out, m.CategoryDelta{
			Category: string(cat),
			Observed: observed,
			Delta:    observed,
		})
	}

	if _, ok := tracked[m.TotalKey]; !ok {
		out = append(out, m.CategoryDelta{
			Category: m.TotalKey,
			Observed: summary.Total,
			Delta:    summary.Total,
		})
	}

	return out
}

func canonicalKey(key string) string {
	if strings.EqualFold(key, m.TotalKey) {
		return m.TotalKey
	}

	if c, err := m.ParseCategory(key); err == nil {
		return string(c)
	}

	return key
}
