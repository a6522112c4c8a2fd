package domain

import (
	"sort"

	m "snare.dev/pkg/snare/internal/model"
)

// Aggregate deduplicates findings by (rule id, primary span), keeping the
// first occurrence, and summarizes them per category and severity. The input
// is not modified.
func Aggregate(unit string, findings []m.Finding) m.Summary {
	summary := m.Summary{
		Unit:       unit,
		Findings:   make([]m.Finding, 0, len(findings)),
		Counts:     make(map[m.Category]int, len(m.Categories)),
		BySeverity: make(map[m.Severity]int, 3),
	}

	seen := make(map[m.FindingKey]struct{}, len(findings))

	for _, f := range findings {
		key := f.Key()
		if _, ok := seen[key]; ok {
			summary.Duplicates++
			continue
		}

		seen[key] = struct{}{}

		summary.Findings = append(summary.Findings, f)
		summary.Counts[f.Category]++
		summary.BySeverity[f.Severity]++

		if f.Category != m.CategoryInternal {
			summary.Total++
		}
	}

	sort.SliceStable(summary.Findings, func(i, j int) bool {
		a, b := summary.Findings[i], summary.Findings[j]
		if a.Span.Start.Offset != b.Span.Start.Offset {
			return a.Span.Start.Offset < b.Span.Start.Offset
		}

		return a.RuleID < b.RuleID
	})

	return summary
}

// Merge concatenates per-unit summaries into a run-wide one. Findings keep
// unit order; counts are summed.
func Merge(summaries ...m.Summary) m.Summary {
	out := m.Summary{
		Counts:     make(map[m.Category]int),
		BySeverity: make(map[m.Severity]int),
	}

	for _, s := range summaries {
		out.Findings = append(out.Findings, s.Findings...)
		out.Total += s.Total
		out.Duplicates += s.Duplicates

		for c, n := range s.Counts {
			out.Counts[c] += n
		}

		for sev, n := range s.BySeverity {
			out.BySeverity[sev] += n
		}
	}

	return out
}
