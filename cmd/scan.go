package cmd

import (
	"github.com/spf13/cobra"

	"snare.dev/pkg/snare/internal/domain"
)

var runParallelFlag int
var scanTimeoutFlag string
var watchFlag bool

// scanCmd represents the scan command.
var scanCmd = newScanCmd()

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan sources for anti-patterns",
		Long:  scanLongDescription,
		PreRun: func(cmd *cobra.Command, _ []string) {
			bindRunFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			scan := scanArgs(args)

			if watchFlag {
				return workflow.Watch(cmd.Context(), domain.WatchArgs{
					CheckArgs: domain.CheckArgs{ScanArgs: scan},
				})
			}

			_, err := workflow.Scan(cmd.Context(), scan)

			return err
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// configureRunFlags adds the worker and watch flags shared by scan and check.
func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&runParallelFlag, runParallelFlagName, "p", defaultRunParallel, "number of parallel scan workers")
	cmd.Flags().StringVar(&scanTimeoutFlag, scanTimeoutFlagName, defaultScanTimeout.String(), "wall-clock budget for scanning one unit (0 disables)")
	cmd.Flags().BoolVarP(&watchFlag, watchFlagName, "w", false, "re-run after fixture changes until interrupted")
}

// bindRunFlags binds the shared flags of the command being executed. Binding
// happens at run time because scan and check both own a flag for each key.
func bindRunFlags(cmd *cobra.Command) {
	bindFlagToConfig(cmd.Flags().Lookup(runParallelFlagName), runParallelConfigKey)
	bindFlagToConfig(cmd.Flags().Lookup(scanTimeoutFlagName), scanTimeoutKey)
}
