package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"snare.dev/pkg/snare/internal/domain"
	m "snare.dev/pkg/snare/internal/model"
)

var oracleFlag string
var compareModeFlag string

// checkCmd represents the check command.
var checkCmd = newCheckCmd()

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Scan sources and grade them against the oracle manifest",
		Long:  checkLongDescription,
		PreRun: func(cmd *cobra.Command, _ []string) {
			bindRunFlags(cmd)
			bindFlagToConfig(cmd.Flags().Lookup(oracleFlagName), oraclePathKey)
			bindFlagToConfig(cmd.Flags().Lookup(modeFlagName), oracleModeKey)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			check := domain.CheckArgs{
				ScanArgs: scanArgs(args),
				Oracle:   m.Path(viper.GetString(oraclePathKey)),
			}

			// An empty mode defers to the manifest.
			if value := viper.GetString(oracleModeKey); value != "" {
				mode, err := m.ParseCompareMode(value)
				if err != nil {
					return fmt.Errorf("invalid --%s: %w", modeFlagName, err)
				}

				check.Mode = mode
			}

			if watchFlag {
				return workflow.Watch(cmd.Context(), domain.WatchArgs{CheckArgs: check, Check: true})
			}

			_, err := workflow.Check(cmd.Context(), check)
			if errors.Is(err, domain.ErrVerdictsFailed) {
				cmd.SilenceUsage = true
			}

			return err
		},
	}

	configureRunFlags(cmd)
	configureCheckFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func configureCheckFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&oracleFlag, oracleFlagName, defaultOraclePath, "oracle manifest with the expected findings per unit")
	cmd.Flags().StringVar(&compareModeFlag, modeFlagName, "", "compare mode: at-least or exact (default: manifest setting)")
}
