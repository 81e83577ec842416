package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/brogergvhs/mangapdf/internal/config"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded chapter downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(config.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		st, err := a.openStore(ctx)
		if err != nil {
			return err
		}

		recs, err := st.ListDownloads(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(recs) == 0 {
			fmt.Fprintln(out, "No downloads recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tWHEN\tNAME\tURL")
		for _, r := range recs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.OutputName, r.URL)
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
