package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/progress"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one research cycle for every registered town",
	Long:  "Runs the towns sequentially so the shared per-host rate limits hold. A failed town is recorded and the sweep continues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.pipeline(progress.NopSink{}).Sweep(ctx)
		if err != nil {
			return err
		}

		var failed int
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		zap.L().Info("sweep finished",
			zap.Int("towns", len(results)),
			zap.Int("failed", failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
