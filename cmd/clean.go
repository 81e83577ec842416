package cmd

import (
	"fmt"

	"github.com/brogergvhs/mangapdf/internal/config"
	"github.com/brogergvhs/mangapdf/internal/util"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove scratch folders left behind by killed or failed runs",
	Long: "Remove every run-* folder under the scratch root, including images kept after a failed assembly.\n" +
		"Do not run this while a download is in progress.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(config.Options{ScratchDir: flagScratchDir})
		if err != nil {
			return err
		}
		defer a.Close()

		n := util.CleanupStaleScratch(a.cfg.ScratchDir)
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d scratch folder(s) from %s\n", n, a.cfg.ScratchDir)
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVar(&flagScratchDir, "scratch-dir", "", "root folder for temporary images")
	rootCmd.AddCommand(cleanCmd)
}
