package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/model"
	"github.com/heartland-scout/scout-cli/internal/progress"
)

var runTown string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one research cycle for a single town",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		town, ok := model.NormalizeTown(runTown)
		if !ok {
			return eris.Errorf("unknown HDB town: %s (see `scout-cli towns`)", runTown)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		cycle, err := env.pipeline(progress.NopSink{}).RunCycle(ctx, town)
		if err != nil {
			return eris.Wrapf(err, "cycle for %s", town)
		}

		zap.L().Info("cycle complete",
			zap.String("town", town),
			zap.String("run_id", cycle.RunID),
			zap.String("summary", cycle.Summary),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cycle)
	},
}

func init() {
	runCmd.Flags().StringVar(&runTown, "town", "", "HDB town to research (required)")
	_ = runCmd.MarkFlagRequired("town")
	rootCmd.AddCommand(runCmd)
}
