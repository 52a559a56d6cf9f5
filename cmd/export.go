package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/export"
	"github.com/heartland-scout/scout-cli/internal/store"
)

var (
	exportOut      string
	exportRunLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export knowledge bases and run history to an XLSX workbook",
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
		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: exportRunLimit})
		if err != nil {
			return err
		}

		if err := export.WriteWorkbook(exportOut, kbs, runs); err != nil {
			return eris.Wrap(err, "export workbook")
		}
		zap.L().Info("export complete", zap.String("path", exportOut))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "scout.xlsx", "output file path")
	exportCmd.Flags().IntVar(&exportRunLimit, "run-limit", 200, "maximum runs to include")
	rootCmd.AddCommand(exportCmd)
}
