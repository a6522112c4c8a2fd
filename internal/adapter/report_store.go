package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/owenrumney/go-sarif/v2/sarif"
	m "snare.dev/pkg/snare/internal/model"
)

// LatestReport is the name of the copy of the most recent report in a
// report directory.
const LatestReport = "latest.json"

const (
	toolName = "snare"
	toolURI  = "https://snare.dev"
)

// ReportStore persists run reports.
type ReportStore interface {
	// SaveReport writes the report into dir as <id>.json and refreshes the
	// latest.json copy. It returns the path of the id file.
	SaveReport(dir m.Path, report m.RunReport) (m.Path, error)

	// LoadReport reads a report file, or latest.json when path is a directory.
	LoadReport(path m.Path) (m.RunReport, error)

	// SaveSARIF exports the findings of a report as SARIF 2.1.0.
	SaveSARIF(path m.Path, report m.RunReport, rules []m.RuleInfo) error
}

// FileReportStore keeps reports as JSON files on disk.
type FileReportStore struct{}

// NewFileReportStore creates a FileReportStore.
func NewFileReportStore() *FileReportStore {
	return &FileReportStore{}
}

// SaveReport writes the report and its latest.json copy.
func (s *FileReportStore) SaveReport(dir m.Path, report m.RunReport) (m.Path, error) {
	if err := os.MkdirAll(string(dir), 0o750); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	path := filepath.Join(string(dir), report.ID+".json")

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	if err := os.WriteFile(filepath.Join(string(dir), LatestReport), data, 0o600); err != nil {
		return "", fmt.Errorf("write latest report: %w", err)
	}

	return m.Path(path), nil
}

// LoadReport reads a saved report.
func (s *FileReportStore) LoadReport(path m.Path) (m.RunReport, error) {
	target := string(path)

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		target = filepath.Join(target, LatestReport)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return m.RunReport{}, fmt.Errorf("read report: %w", err)
	}

	var report m.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return m.RunReport{}, fmt.Errorf("decode report %s: %w", target, err)
	}

	return report, nil
}

// SaveSARIF writes one SARIF run with every registered rule and one result
// per finding. Secondary spans become related locations.
func (s *FileReportStore) SaveSARIF(path m.Path, report m.RunReport, rules []m.RuleInfo) error {
	sarifReport, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)

	for _, rule := range rules {
		run.AddRule(rule.ID).
			WithDescription(rule.Summary).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: sarifLevel(rule.Severity),
			})
	}

	for _, unit := range report.Units {
		uri := string(unit.Path)
		if uri == "" {
			uri = unit.Unit
		}

		uri = filepath.ToSlash(uri)

		for _, f := range unit.Summary.Findings {
			if f.Category == m.CategoryInternal {
				run.AddRule(f.RuleID).WithDescription("Engine diagnostic.")
			}

			result := sarif.NewRuleResult(f.RuleID).
				WithMessage(sarif.NewTextMessage(f.Message)).
				WithLevel(sarifLevel(f.Severity)).
				WithLocations([]*sarif.Location{sarifLocation(uri, f.Span)})

			for _, span := range f.Secondary {
				result.RelatedLocations = append(result.RelatedLocations, sarifLocation(uri, span))
			}

			run.AddResult(result)
		}
	}

	sarifReport.AddRun(run)

	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return fmt.Errorf("create SARIF directory: %w", err)
	}

	file, err := os.Create(string(path))
	if err != nil {
		return fmt.Errorf("error writing SARIF report: %w", err)
	}

	defer func() { _ = file.Close() }()

	return sarifReport.PrettyWrite(file)
}

func sarifLocation(uri string, span m.Span) *sarif.Location {
	physical := sarif.NewPhysicalLocation().
		WithArtifactLocation(sarif.NewArtifactLocation().WithUri(uri))

	if span.Start.Line > 0 {
		region := sarif.NewRegion().WithStartLine(span.Start.Line)
		if span.Start.Column > 0 {
			region = region.WithStartColumn(span.Start.Column)
		}

		if span.End.Line >= span.Start.Line {
			region = region.WithEndLine(span.End.Line)
			if span.End.Column > 0 {
				region = region.WithEndColumn(span.End.Column)
			}
		}

		physical = physical.WithRegion(region)
	}

	return sarif.NewLocation().WithPhysicalLocation(physical)
}

func sarifLevel(severity m.Severity) string {
	switch severity {
	case m.SeverityCritical:
		return "error"
	case m.SeverityWarning:
		return "warning"
	case m.SeverityInfo:
		return "note"
	default:
		return "none"
	}
}
