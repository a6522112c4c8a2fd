package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"snare.dev/pkg/snare/internal/domain"
	m "snare.dev/pkg/snare/internal/model"
)

// diffCmd represents the diff command.
var diffCmd = newDiffCmd()

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <base> [head]",
		Short: "Show how findings changed between two saved reports",
		Long: `Print a unified diff of the findings and verdicts of two saved reports.
Each argument is a report file or a report directory, in which case its
latest report is used. When head is omitted the output directory is used.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			head := viper.GetString(outputFlagName)
			if len(args) == 2 {
				head = args[1]
			}

			return workflow.Diff(cmd.Context(), domain.DiffArgs{
				Base: m.Path(args[0]),
				Head: m.Path(head),
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
