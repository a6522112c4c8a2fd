package controller

import (
	"fmt"
	"sort"
	"strings"

	m "snare.dev/pkg/snare/internal/model"
)

const (
	passLabel = "PASS"
	failLabel = "FAIL"
)

// reportTotals is the run-wide tally printed under every report.
type reportTotals struct {
	units    int
	findings int
	internal int
	failed   int
	counts   map[m.Category]int
}

func tallyReport(report m.RunReport) reportTotals {
	totals := reportTotals{units: len(report.Units), failed: report.Failed, counts: map[m.Category]int{}}

	for _, unit := range report.Units {
		totals.findings += unit.Summary.Total
		totals.internal += unit.Summary.Counts[m.CategoryInternal]

		for category, n := range unit.Summary.Counts {
			totals.counts[category] += n
		}
	}

	return totals
}

func verdictLabel(result m.UnitResult) string {
	switch {
	case result.Verdict == nil:
		return "-"
	case result.Verdict.Pass:
		return passLabel
	default:
		return failLabel
	}
}

func formatMismatch(mm m.Mismatch) string {
	switch mm.Kind {
	case m.MismatchMissing, m.MismatchExcess:
		return fmt.Sprintf("%s %s: expected %d, observed %d", mm.Kind, mm.Category, mm.Expected, mm.Observed)
	case m.MismatchUnexpected:
		at := ""
		if mm.Span != nil {
			at = " at " + mm.Span.String()
		}

		return fmt.Sprintf("%s %s%s: %s", mm.Kind, mm.RuleID, at, mm.Detail)
	default:
		if mm.Detail == "" {
			return string(mm.Kind)
		}

		return fmt.Sprintf("%s: %s", mm.Kind, mm.Detail)
	}
}

func formatKinds(kinds []m.NodeKind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}

	sort.Strings(names)

	return strings.Join(names, ", ")
}

func formatLocation(f m.Finding) string {
	if f.Span.Start.Line == 0 {
		return "-"
	}

	return fmt.Sprintf("%d:%d", f.Span.Start.Line, f.Span.Start.Column)
}

func pluralUnits(n int) string {
	if n == 1 {
		return "1 unit"
	}

	return fmt.Sprintf("%d units", n)
}
