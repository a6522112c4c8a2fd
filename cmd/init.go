package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"snare.dev/pkg/snare/internal/adapter"
	m "snare.dev/pkg/snare/internal/model"
)

const fromHeadersFlagName = "from-headers"

var fromHeadersFlag bool

// initCmd represents the init command.
var initCmd = newInitCmd()

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [paths...]",
		Short: "Generate a default snare.yaml or an oracle manifest",
		Long: `Create a snare.yaml in the current working directory populated with the
current CLI defaults so it can be edited manually.

With --from-headers, read the "Expected:" comment at the top of every fixture
under the given paths and add an entry for each unit that the oracle manifest
does not list yet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromHeadersFlag {
				target := m.Path(viper.GetString(oraclePathKey))

				added, err := scaffoldOracle(cmd.Context(), parsePaths(args), target)
				if err != nil {
					return err
				}

				cmd.Printf("Added %d oracle entr%s to %s\n", added, pluralY(added), target)

				return nil
			}

			targetPath := filepath.Join(configFolderPath, configFileName)

			err := viper.SafeWriteConfigAs(targetPath)
			if err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&fromHeadersFlag, fromHeadersFlagName, false, "scaffold the oracle manifest from fixture header comments")

	return cmd
}

func init() {
	rootCmd.AddCommand(initCmd)
}

// scaffoldOracle merges header-derived expectations into the manifest at
// target. Existing entries are never overwritten.
func scaffoldOracle(ctx context.Context, paths []m.Path, target m.Path) (int, error) {
	manifest, err := oracleStore.Load(target)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("load oracle: %w", err)
		}

		manifest = m.OracleManifest{Version: adapter.ManifestVersion}
	}

	if manifest.Fixtures == nil {
		manifest.Fixtures = map[string]m.ExpectedOracle{}
	}

	files, err := fsAdapter.Get(ctx, paths, viper.GetStringSlice(excludeConfigKey))
	if err != nil {
		return 0, fmt.Errorf("discover fixtures: %w", err)
	}

	added := 0

	for _, file := range files {
		if !frontend.Supports(file.FullPath) {
			continue
		}

		content, err := fsAdapter.ReadFile(file.FullPath)
		if err != nil {
			return added, fmt.Errorf("read %s: %w", file.FullPath, err)
		}

		expected, ok := adapter.ParseExpectationHeader(content)
		if !ok {
			slog.Debug("No expectation header", "path", file.FullPath)
			continue
		}

		id := file.UnitID()
		if unit, err := frontend.Parse(file, content); err == nil {
			id = unit.ID
		}

		if _, exists := manifest.Fixtures[id]; exists {
			continue
		}

		manifest.Fixtures[id] = expected
		added++
	}

	if added == 0 {
		return 0, nil
	}

	if err := oracleStore.Save(target, manifest); err != nil {
		return added, fmt.Errorf("save oracle: %w", err)
	}

	return added, nil
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}

	return "ies"
}
