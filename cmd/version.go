package cmd

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

// buildRevision returns the short VCS revision stamped into the binary, if any.
func buildRevision(info *debug.BuildInfo) string {
	revision, dirty := "", false

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}

	if len(revision) > 12 {
		revision = revision[:12]
	}

	if revision != "" && dirty {
		revision += "-dirty"
	}

	return revision
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Long:  "Displays the snare build version, its VCS revision and the Go version used to build it.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info, ok := debug.ReadBuildInfo()
			if !ok || info.Main.Version == "" {
				cmd.Println("snare version: unknown")
				return
			}

			cmd.Println("snare version\t", info.Main.Version)

			if revision := buildRevision(info); revision != "" {
				cmd.Println("revision\t", revision)
			}

			cmd.Println("go version\t", info.GoVersion)
		},
	}
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
