package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"snare.dev/pkg/snare/internal/adapter"
	"snare.dev/pkg/snare/internal/controller"
	m "snare.dev/pkg/snare/internal/model"
)

// ErrVerdictsFailed is returned by Check when at least one unit fails its oracle.
var ErrVerdictsFailed = errors.New("oracle verdicts failed")

// ScanArgs contains the arguments for scanning fixtures.
type ScanArgs struct {
	Paths   []m.Path
	Exclude []string
	Threads int
	// ScanTimeout bounds one unit scan. Zero disables the budget.
	ScanTimeout time.Duration
	// Reports is the directory receiving JSON reports. Empty disables persistence.
	Reports m.Path
	// SARIF is an optional SARIF output file.
	SARIF m.Path
}

// CheckArgs contains the arguments for grading fixtures against an oracle.
type CheckArgs struct {
	ScanArgs
	Oracle m.Path
	// Mode overrides the manifest's compare mode when set.
	Mode m.CompareMode
}

// DiffArgs names two saved reports, or report directories, to compare.
type DiffArgs struct {
	Base m.Path
	Head m.Path
}

// WatchArgs configures watch mode. Check selects grading over plain scanning.
type WatchArgs struct {
	CheckArgs
	Check bool
}

// Workflow orchestrates discovery, parsing, scanning, grading and reporting.
type Workflow interface {
	Scan(ctx context.Context, args ScanArgs) (m.RunReport, error)
	Check(ctx context.Context, args CheckArgs) (m.RunReport, error)
	Rules(ctx context.Context) error
	Diff(ctx context.Context, args DiffArgs) error
	Watch(ctx context.Context, args WatchArgs) error
}

type workflow struct {
	adapter.SourceFSAdapter
	adapter.Frontend
	adapter.OracleStore
	adapter.ReportStore
	adapter.Watcher
	controller.UI
	engine *Engine
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(
	fsAdapter adapter.SourceFSAdapter,
	frontend adapter.Frontend,
	oracleStore adapter.OracleStore,
	reportStore adapter.ReportStore,
	watcher adapter.Watcher,
	ui controller.UI,
	engine *Engine,
) Workflow {
	return &workflow{
		SourceFSAdapter: fsAdapter,
		Frontend:        frontend,
		OracleStore:     oracleStore,
		ReportStore:     reportStore,
		Watcher:         watcher,
		UI:              ui,
		engine:          engine,
	}
}

// Scan reports findings for every supported file under args.Paths.
func (w *workflow) Scan(ctx context.Context, args ScanArgs) (m.RunReport, error) {
	if err := w.Start(ctx, controller.WithScanMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return m.RunReport{}, err
	}
	defer w.Close(ctx)

	report, err := w.run(ctx, args, nil, NewComparator(m.ModeAtLeast))
	if err != nil {
		return report, err
	}

	w.Wait(ctx)

	return report, nil
}

// Check scans like Scan and grades every unit against the oracle manifest.
func (w *workflow) Check(ctx context.Context, args CheckArgs) (m.RunReport, error) {
	if args.Oracle == "" {
		return m.RunReport{}, errors.New("check: oracle manifest path is required")
	}

	manifest, err := w.Load(args.Oracle)
	if err != nil {
		slog.Error("Failed to load oracle manifest", "path", args.Oracle, "error", err)
		return m.RunReport{}, fmt.Errorf("load oracle: %w", err)
	}

	mode := args.Mode
	if mode == "" {
		mode = manifest.Mode
	}

	if mode == "" {
		mode = m.ModeAtLeast
	}

	if err := w.Start(ctx, controller.WithCheckMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return m.RunReport{}, err
	}
	defer w.Close(ctx)

	report, err := w.run(ctx, args.ScanArgs, &manifest, NewComparator(mode))
	if err != nil {
		return report, err
	}

	warnUnmatchedOracles(manifest, report)

	w.Wait(ctx)

	if report.Failed > 0 {
		return report, fmt.Errorf("%d of %d units: %w", report.Failed, len(report.Units), ErrVerdictsFailed)
	}

	return report, nil
}

// Rules lists the registered rules.
func (w *workflow) Rules(ctx context.Context) error {
	if err := w.Start(ctx, controller.WithListMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	if err := w.DisplayRules(ctx, w.engine.Registry().Infos()); err != nil {
		slog.Error("Failed to display rules", "error", err)
		return fmt.Errorf("display: %w", err)
	}

	w.Wait(ctx)

	return nil
}

// Diff renders a unified diff between the finding lines of two saved reports.
func (w *workflow) Diff(ctx context.Context, args DiffArgs) error {
	base, err := w.LoadReport(args.Base)
	if err != nil {
		return fmt.Errorf("load base report: %w", err)
	}

	head, err := w.LoadReport(args.Head)
	if err != nil {
		return fmt.Errorf("load head report: %w", err)
	}

	diff, err := DiffReports(base, head)
	if err != nil {
		return err
	}

	if err := w.Start(ctx, controller.WithDiffMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	if err := w.DisplayDiff(ctx, diff); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	w.Wait(ctx)

	return nil
}

// Watch runs once, then reruns after every settled burst of file changes
// until ctx is done. Failed reruns are logged, not returned.
func (w *workflow) Watch(ctx context.Context, args WatchArgs) error {
	rerun := func() {
		var err error

		if args.Check {
			_, err = w.Check(ctx, args.CheckArgs)
		} else {
			_, err = w.Scan(ctx, args.ScanArgs)
		}

		if err != nil && !errors.Is(err, ErrVerdictsFailed) && ctx.Err() == nil {
			slog.Error("Failed to rerun after change", "error", err)
		}
	}

	rerun()

	paths := append([]m.Path{}, args.Paths...)
	if len(paths) == 0 {
		paths = append(paths, m.Path("."+adapter.RecursiveSuffix))
	}

	if args.Check && args.Oracle != "" {
		paths = append(paths, args.Oracle)
	}

	return w.Watcher.Watch(ctx, paths, rerun)
}

// DiffReports returns a unified diff of the finding and verdict lines of two
// reports. Identical reports produce an empty string.
func DiffReports(base, head m.RunReport) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        reportLines(base),
		B:        reportLines(head),
		FromFile: "base/" + base.ID,
		ToFile:   "head/" + head.ID,
		Context:  3,
	}

	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff reports: %w", err)
	}

	return text, nil
}

// reportLines renders a report as sorted, newline-terminated lines.
func reportLines(report m.RunReport) []string {
	lines := make([]string, 0, len(report.Units))

	for _, unit := range report.Units {
		for _, f := range unit.Summary.Findings {
			lines = append(lines, f.String()+"\n")
		}

		if unit.Verdict != nil {
			status := "pass"
			if !unit.Verdict.Pass {
				status = "fail"
			}

			lines = append(lines, fmt.Sprintf("%s: verdict %s\n", unit.Unit, status))
		}
	}

	sort.Strings(lines)

	return lines
}

func warnUnmatchedOracles(manifest m.OracleManifest, report m.RunReport) {
	seen := make(map[string]bool, len(report.Units))
	for _, unit := range report.Units {
		seen[unit.Unit] = true
	}

	for key := range manifest.Fixtures {
		if !seen[key] {
			slog.Warn("Oracle entry matches no scanned unit", "unit", key)
		}
	}
}
