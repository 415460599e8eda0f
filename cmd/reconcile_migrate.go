package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reconcileMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply store schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "reconcile.migrate"))

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "reconcile migrate")
		}

		log.Info("migrations applied", zap.String("driver", cfg.Store.Driver))
		fmt.Println("Migrations applied")
		return nil
	},
}

func init() {
	reconcileCmd.AddCommand(reconcileMigrateCmd)
}
