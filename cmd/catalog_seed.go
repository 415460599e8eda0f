package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opengov-es/revisor/internal/reconcile"
	"github.com/opengov-es/revisor/internal/seed"
)

var catalogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the catalog from a YAML file",
	Long:  "Upsert sanction sources, KPI definitions, and generic ingestion sources from the seed file. Re-seeding with the same file is a no-op.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "catalog.seed"))

		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = cfg.Catalog.SeedPath
		}

		f, err := seed.Load(path)
		if err != nil {
			return exitErr(reconcile.ExitMissingInput, err)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "catalog seed: migrate")
		}
		if err := st.SeedCatalog(ctx, f.Sources, f.KPIs, f.GenericSources); err != nil {
			return eris.Wrap(err, "catalog seed")
		}

		log.Info("catalog seeded",
			zap.Int("sources", len(f.Sources)),
			zap.Int("kpis", len(f.KPIs)),
			zap.Int("generic_sources", len(f.GenericSources)),
		)
		fmt.Printf("Seeded %d sources, %d KPI definitions, %d generic sources from %s\n",
			len(f.Sources), len(f.KPIs), len(f.GenericSources), path)
		return nil
	},
}

func init() {
	catalogSeedCmd.Flags().String("file", "", "seed file path (default from config)")
	catalogCmd.AddCommand(catalogSeedCmd)
}
