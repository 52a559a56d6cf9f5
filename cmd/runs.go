package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/heartland-scout/scout-cli/internal/model"
	"github.com/heartland-scout/scout-cli/internal/store"
)

var (
	runsTown   string
	runsStatus string
	runsLimit  int
	runsID     string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List or show research runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if runsID != "" {
			run, err := st.GetRun(ctx, runsID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Town:   runsTown,
			Status: model.RunStatus(runsStatus),
			Limit:  runsLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTOWN\tSTATUS\tCREATED\tSUMMARY")
		for _, r := range runs {
			summary := r.Error
			if r.Result != nil {
				summary = r.Result.Summary
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Town, r.Status, r.CreatedAt.Format("2006-01-02 15:04"), summary)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsTown, "town", "", "filter by town")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (running, completed, failed)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	runsCmd.Flags().StringVar(&runsID, "id", "", "show one run as JSON")
	rootCmd.AddCommand(runsCmd)
}
