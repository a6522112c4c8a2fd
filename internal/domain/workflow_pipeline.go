package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"snare.dev/pkg/snare/internal/controller"
	m "snare.dev/pkg/snare/internal/model"
)

// run is the shared scan pipeline: discover files, load them on the worker
// pool, stream them through the runner, then persist and display the report.
// A nil manifest disables grading.
func (w *workflow) run(ctx context.Context, args ScanArgs, manifest *m.OracleManifest, comparator Comparator) (m.RunReport, error) {
	started := time.Now().UTC()

	threads := args.Threads
	if threads <= 0 {
		threads = 1
	}

	files, err := w.discover(ctx, args)
	if err != nil {
		slog.Error("Failed to discover sources", "error", err)
		return m.RunReport{}, fmt.Errorf("discover sources: %w", err)
	}

	mode := m.RunScan
	if manifest != nil {
		mode = m.RunCheck
	}

	w.DisplayRunInfo(ctx, controller.RunInfo{
		Units:   len(files),
		Threads: threads,
		Mode:    mode,
		Compare: comparator.Mode(),
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobsChannel, loadErrorChannel := w.loadJobsChannel(runCtx, files, threads, manifest)

	runner := NewRunner(w.engine, comparator, RunnerOptions{Threads: threads, ScanTimeout: args.ScanTimeout})
	resultsChannel, runErrorChannel := runner.Stream(runCtx, jobsChannel)

	results, err := w.collectResults(runCtx, resultsChannel, mergeErrorChannels(loadErrorChannel, runErrorChannel))
	if err != nil {
		slog.Error("Failed to scan sources", "error", err)
		return m.RunReport{}, fmt.Errorf("scan: %w", err)
	}

	report := m.RunReport{
		ID:        uuid.NewString(),
		StartedAt: started,
		Mode:      mode,
		Units:     results,
	}

	if manifest != nil {
		report.Compare = comparator.Mode()

		for _, result := range results {
			if result.Failed() {
				report.Failed++
			}
		}
	}

	if err := w.persist(args, report); err != nil {
		return report, err
	}

	if err := w.DisplayReport(ctx, report); err != nil {
		slog.Error("Failed to display report", "error", err)
		return report, fmt.Errorf("display: %w", err)
	}

	return report, nil
}

// discover lists the files a front-end can parse.
func (w *workflow) discover(ctx context.Context, args ScanArgs) ([]m.File, error) {
	files, err := w.Get(ctx, args.Paths, args.Exclude)
	if err != nil {
		return nil, err
	}

	supported := make([]m.File, 0, len(files))

	for _, file := range files {
		if !w.Supports(file.FullPath) {
			slog.Debug("Skipping unsupported file", "path", file.FullPath)
			continue
		}

		supported = append(supported, file)
	}

	return supported, nil
}

func (w *workflow) loadJobsChannel(ctx context.Context, files []m.File, threads int, manifest *m.OracleManifest) (<-chan Job, <-chan error) {
	jobsChannel := make(chan Job, threads)
	errorChannel := make(chan error, 1)

	go func() {
		defer close(errorChannel)

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(threads)

		for _, file := range files {
			file := file

			if groupCtx.Err() != nil {
				break
			}

			group.Go(func() error {
				job := w.loadJob(file, manifest)

				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				case jobsChannel <- job:
				}

				return nil
			})
		}

		err := group.Wait()

		close(jobsChannel)

		if err != nil {
			errorChannel <- err
		}
	}()

	return jobsChannel, errorChannel
}

// loadJob reads and parses one file. Read and parse failures stay with the
// unit: it is still reported, with a malformed-ast finding.
func (w *workflow) loadJob(file m.File, manifest *m.OracleManifest) Job {
	job := Job{Path: file.FullPath}

	content, err := w.ReadFile(file.FullPath)
	if err != nil {
		slog.Warn("Failed to read source", "path", file.FullPath, "error", err)

		job.Unit = stubUnit(file)
		job.ParseErr = fmt.Errorf("read %s: %w", file.FullPath, err)
	} else if job.Unit, err = w.Parse(file, content); err != nil {
		slog.Warn("Failed to parse source", "path", file.FullPath, "error", err)

		job.Unit = stubUnit(file)
		job.ParseErr = err
	}

	unit := job.Unit

	if manifest != nil {
		job.Grade = true
		job.Oracle = manifest.Lookup(unit.ID)
	}

	return job
}

// stubUnit stands in for a file that could not be loaded.
func stubUnit(file m.File) *m.SourceUnit {
	return &m.SourceUnit{ID: file.UnitID(), Dialect: m.DialectGeneric, Hash: file.Hash}
}

func (w *workflow) collectResults(ctx context.Context, resultsChannel <-chan m.UnitResult, errorChannel <-chan error) ([]m.UnitResult, error) {
	var results []m.UnitResult

	// Use errgroup to handle both collection and error monitoring
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		for {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			case result, ok := <-resultsChannel:
				if !ok {
					return nil
				}

				w.DisplayUnitResult(groupCtx, result)

				results = append(results, result)
			}
		}
	})

	group.Go(func() error {
		select {
		case <-groupCtx.Done():
			return nil
		case err, ok := <-errorChannel:
			if !ok {
				return nil
			}

			return err
		}
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Unit != results[j].Unit {
			return results[i].Unit < results[j].Unit
		}

		return results[i].Path < results[j].Path
	})

	return results, nil
}

func (w *workflow) persist(args ScanArgs, report m.RunReport) error {
	if args.Reports != "" {
		path, err := w.SaveReport(args.Reports, report)
		if err != nil {
			slog.Error("Failed to save report", "error", err)
			return fmt.Errorf("save report: %w", err)
		}

		slog.Info("Report saved", "path", path, "units", len(report.Units))
	}

	if args.SARIF != "" {
		if err := w.SaveSARIF(args.SARIF, report, w.engine.Registry().Infos()); err != nil {
			slog.Error("Failed to save SARIF", "error", err)
			return fmt.Errorf("save sarif: %w", err)
		}
	}

	return nil
}

func mergeErrorChannels(ch1, ch2 <-chan error) <-chan error {
	merged := make(chan error, 1)

	go func() {
		defer close(merged)

		for ch1 != nil || ch2 != nil {
			select {
			case err, ok := <-ch1:
				if !ok {
					ch1 = nil
				} else {
					merged <- err
					return // Send first error and close
				}
			case err, ok := <-ch2:
				if !ok {
					ch2 = nil
				} else {
					merged <- err
					return
				}
			}
		}
	}()

	return merged
}
