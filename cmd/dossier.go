package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/heartland-scout/scout-cli/internal/model"
	"github.com/heartland-scout/scout-cli/internal/progress"
)

var (
	dossierTown     string
	dossierBusiness string
)

var dossierCmd = &cobra.Command{
	Use:   "dossier",
	Short: "Generate an investment dossier for a business type in a town",
	Long:  "Grounds the dossier on the town's stored analysis plus one web search. The town must have at least one completed research cycle.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		town, ok := model.NormalizeTown(dossierTown)
		if !ok {
			return eris.Errorf("unknown HDB town: %s", dossierTown)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		kb, err := env.store.GetKnowledgeBase(ctx, town)
		if err != nil {
			return err
		}
		if kb == nil {
			return eris.Errorf("no knowledge base for %s yet; run `scout-cli run --town %q` first", town, town)
		}

		dossier, err := env.pipeline(progress.NopSink{}).GenerateDossier(ctx, town, dossierBusiness, &kb.CurrentAnalysis)
		if err != nil {
			return eris.Wrap(err, "generate dossier")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dossier)
	},
}

func init() {
	dossierCmd.Flags().StringVar(&dossierTown, "town", "", "HDB town (required)")
	dossierCmd.Flags().StringVar(&dossierBusiness, "business", "", "business type, e.g. \"specialty cafe\" (required)")
	_ = dossierCmd.MarkFlagRequired("town")
	_ = dossierCmd.MarkFlagRequired("business")
	rootCmd.AddCommand(dossierCmd)
}
