package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/heartland-scout/scout-cli/internal/model"
)

var townsCmd = &cobra.Command{
	Use:   "towns",
	Short: "List registered HDB towns and their research status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		kbs, err := st.ListKnowledgeBases(ctx)
		if err != nil {
			return err
		}
		byTown := make(map[string]model.TownKnowledgeBase, len(kbs))
		for _, kb := range kbs {
			byTown[kb.Town] = kb
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOWN\tRUNS\tLAST RUN\tPULSE")
		for _, town := range model.Towns() {
			kb, ok := byTown[town]
			if !ok {
				fmt.Fprintf(w, "%s\t-\t-\t-\n", town)
				continue
			}
			pulse := kb.CurrentAnalysis.CommercialPulse
			if len(pulse) > 60 {
				pulse = pulse[:60] + "..."
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", town, kb.TotalRuns, kb.LastRunAt, pulse)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(townsCmd)
}
