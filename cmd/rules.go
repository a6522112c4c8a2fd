package cmd

import (
	"github.com/spf13/cobra"
)

// rulesCmd represents the rules command.
var rulesCmd = newRulesCmd()

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the registered rules",
		Long: `List every rule in the registry with its category, default severity and
the node kinds it inspects. Rules disabled in snare.yaml are not shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return workflow.Rules(cmd.Context())
		},
	}
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
