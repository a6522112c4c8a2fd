// Package cmd provides the root command and CLI setup for snare.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"snare.dev/pkg/snare/internal/adapter"
	"snare.dev/pkg/snare/internal/controller"
	"snare.dev/pkg/snare/internal/domain"
	"snare.dev/pkg/snare/internal/domain/rules"
	m "snare.dev/pkg/snare/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var frontend adapter.Frontend
var oracleStore adapter.OracleStore
var reportStore adapter.ReportStore
var watcher adapter.Watcher
var engine *domain.Engine
var workflow domain.Workflow
var ui controller.UI

// reportsOutputDirFlag is a root-level flag shared by commands that read/write reports.
var reportsOutputDirFlag string

// excludePatterns is a root-level flag that filters files for applicable commands.
var excludePatterns []string

// sarifOutputFlag is an optional SARIF file written next to the JSON report.
var sarifOutputFlag string

var verboseFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = newUI(rootCmd)
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	frontend = adapter.NewFrontends(adapter.NewASTDocumentFrontend(), adapter.NewGoFrontend())
	oracleStore = adapter.NewYAMLOracleStore()
	reportStore = adapter.NewFileReportStore()
	watcher = adapter.NewFSWatcher(adapter.DefaultDebounce, viper.GetString(outputFlagName))

	settings, err := ruleSettings()
	cobra.CheckErr(err)

	registry, err := rules.NewRegistry(settings)
	cobra.CheckErr(err)

	engine, err = domain.NewEngine(registry)
	cobra.CheckErr(err)

	workflow = domain.NewWorkflow(
		fsAdapter,
		frontend,
		oracleStore,
		reportStore,
		watcher,
		ui,
		engine,
	)
}

// newUI honours ui.mode: "simple" and "tui" force a renderer, "auto" picks
// the TUI only when stdout is a terminal.
func newUI(cmd *cobra.Command) controller.UI {
	switch strings.ToLower(viper.GetString(uiModeKey)) {
	case uiModeSimple:
		return controller.NewUI(cmd, false)
	case uiModeTUI:
		return controller.NewUI(cmd, true)
	default:
		return controller.NewUI(cmd, controller.IsTTY(os.Stdout))
	}
}

const pathPatternsHelp = `Supports Go-style path patterns:
  - ./...               recursively scan current directory
  - ./fixtures/...      recursively scan the fixtures directory
  - ./api ./ui          scan multiple directories`

const rootLongDescription = `Snare is a static analysis engine that flags known anti-patterns in
normalized syntax trees (server handlers, UI components, concurrent scripts)
and grades the results against a labeled fixture oracle.

` + pathPatternsHelp

const scanLongDescription = `Scan the given paths (default: current directory) and report findings.

` + pathPatternsHelp

const checkLongDescription = `Scan the given paths and grade every unit against the oracle manifest.
Exits with a non-zero status when any unit fails its verdict.

` + pathPatternsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snare",
		Short: "Anti-pattern static analysis with oracle grading",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			defaultReportsDir,
			"output directory for scan reports",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", nil, "exclude files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().StringVar(&sarifOutputFlag, sarifFlagName, "", "also write findings as SARIF to this file")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(sarifFlagName), sarifConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", defaultLogVerbose, "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// An interrupt cancels the running command so watch mode can exit cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

// scanArgs collects the shared scan settings from flags and config.
func scanArgs(args []string) domain.ScanArgs {
	return domain.ScanArgs{
		Paths:       parsePaths(args),
		Exclude:     viper.GetStringSlice(excludeConfigKey),
		Threads:     viper.GetInt(runParallelConfigKey),
		ScanTimeout: scanTimeout(),
		Reports:     m.Path(viper.GetString(outputFlagName)),
		SARIF:       m.Path(viper.GetString(sarifConfigKey)),
	}
}
