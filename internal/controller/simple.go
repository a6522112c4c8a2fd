package controller

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	m "snare.dev/pkg/snare/internal/model"
)

// SimpleUI implements UI using cobra Command's output stream.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
	// SimpleUI doesn't block - it just prints and continues
}

// DisplayRunInfo announces the run.
func (s *SimpleUI) DisplayRunInfo(ctx context.Context, info RunInfo) {
	if err := ctx.Err(); err != nil {
		return
	}

	if info.Mode == m.RunCheck {
		s.printf("Checking %s with %d worker(s) (compare: %s)\n", pluralUnits(info.Units), info.Threads, info.Compare)
		return
	}

	s.printf("Scanning %s with %d worker(s)\n", pluralUnits(info.Units), info.Threads)
}

// DisplayUnitResult prints one line per completed unit.
func (s *SimpleUI) DisplayUnitResult(ctx context.Context, result m.UnitResult) {
	if err := ctx.Err(); err != nil {
		return
	}

	line := fmt.Sprintf("Scanned %s (%s) -> %d finding(s)", result.Unit, result.Dialect, result.Summary.Total)
	if result.Verdict != nil {
		line += " " + verdictLabel(result)
	}

	s.printf("%s\n", line)
}

// DisplayReport prints the findings, the per-unit summary and, for checks, the verdicts.
func (s *SimpleUI) DisplayReport(ctx context.Context, report m.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	findings := report.Findings()
	if len(findings) == 0 {
		s.printf("\nNo findings.\n")
	} else {
		s.printf("\n%s", renderFindingsTable(findings))
	}

	s.printf("\n%s", renderSummaryTable(report))

	if report.Mode == m.RunCheck {
		s.printf("\n%s", renderVerdictTable(report))
	}

	totals := tallyReport(report)
	s.printf("\nRun %s: %s, %d finding(s), %d failed\n", report.ID, pluralUnits(totals.units), totals.findings, totals.failed)

	return nil
}

// DisplayRules prints the rule catalogue.
func (s *SimpleUI) DisplayRules(ctx context.Context, rules []m.RuleInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("%s", renderRulesTable(rules))

	return nil
}

// DisplayDiff prints a unified diff between two reports.
func (s *SimpleUI) DisplayDiff(ctx context.Context, diff string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if strings.TrimSpace(diff) == "" {
		s.printf("No differences.\n")
		return nil
	}

	s.printf("%s", diff)

	return nil
}

func newTable(buf *bytes.Buffer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)

	return table
}

func renderFindingsTable(findings []m.Finding) string {
	var tableBuffer bytes.Buffer

	table := newTable(&tableBuffer, []string{"Unit", "Line", "Severity", "Rule", "Message"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
	})

	for _, f := range findings {
		table.Append([]string{f.Unit, formatLocation(f), string(f.Severity), f.RuleID, f.Message})
	}

	table.Render()

	return tableBuffer.String()
}

func renderSummaryTable(report m.RunReport) string {
	var tableBuffer bytes.Buffer

	header := []string{"Unit"}
	for _, c := range m.Categories {
		header = append(header, string(c))
	}

	header = append(header, "Total")

	table := newTable(&tableBuffer, header)

	alignment := []int{tablewriter.ALIGN_LEFT}
	for range m.Categories {
		alignment = append(alignment, tablewriter.ALIGN_CENTER)
	}

	table.SetColumnAlignment(append(alignment, tablewriter.ALIGN_CENTER))

	for _, unit := range report.Units {
		row := []string{unit.Unit}
		for _, c := range m.Categories {
			row = append(row, fmt.Sprintf("%d", unit.Summary.Counts[c]))
		}

		table.Append(append(row, fmt.Sprintf("%d", unit.Summary.Total)))
	}

	totals := tallyReport(report)

	footer := []string{fmt.Sprintf("Total Units %d", totals.units)}
	for _, c := range m.Categories {
		footer = append(footer, fmt.Sprintf("%d", totals.counts[c]))
	}

	table.SetFooter(append(footer, fmt.Sprintf("%d", totals.findings)))
	table.Render()

	return tableBuffer.String()
}

func renderVerdictTable(report m.RunReport) string {
	var tableBuffer bytes.Buffer

	table := newTable(&tableBuffer, []string{"Unit", "Classification", "Verdict", "Mismatches"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT,
	})

	for _, unit := range report.Units {
		classification := "-"
		reasons := []string{}

		if unit.Verdict != nil {
			if unit.Verdict.Classification != "" {
				classification = string(unit.Verdict.Classification)
			}

			for _, mm := range unit.Verdict.Mismatches {
				reasons = append(reasons, formatMismatch(mm))
			}
		}

		table.Append([]string{unit.Unit, classification, verdictLabel(unit), strings.Join(reasons, "; ")})
	}

	table.SetFooter([]string{"", "", fmt.Sprintf("Failed %d", report.Failed), ""})
	table.Render()

	return tableBuffer.String()
}

func renderRulesTable(rules []m.RuleInfo) string {
	var tableBuffer bytes.Buffer

	table := newTable(&tableBuffer, []string{"Rule", "Category", "Severity", "Kinds", "Summary"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
	})

	for _, r := range rules {
		table.Append([]string{r.ID, string(r.Category), string(r.Severity), formatKinds(r.Kinds), r.Summary})
	}

	table.SetFooter([]string{fmt.Sprintf("Total Rules %d", len(rules)), "", "", "", ""})
	table.Render()

	return tableBuffer.String()
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
