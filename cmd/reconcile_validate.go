package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/reconcile"
	"github.com/opengov-es/revisor/internal/sheet"
	"github.com/opengov-es/revisor/internal/store"
)

var reconcileValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an apply sheet for readiness",
	Long: `Check a filled apply sheet against the catalog and the numeric
consistency rules without writing anything.

With --strict, exit 4 unless every row is ready.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "reconcile.validate"))

		input, _ := cmd.Flags().GetString("input")
		rows, err := readApplySheet(input)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		catalog, err := store.LoadCatalog(ctx, st)
		if err != nil {
			return eris.Wrap(err, "reconcile validate")
		}

		report := reconcile.Validate(rows, catalog, cfg.Reconcile)

		log.Info("apply sheet validated",
			zap.Int("rows", report.Totals.RowsTotal),
			zap.Int("ready", report.Totals.RowsReady),
			zap.Int("blocked", report.Totals.RowsBlocked),
			zap.String("status", string(report.Status)),
		)

		out, _ := cmd.Flags().GetString("out")
		if err := writeReport(out, report); err != nil {
			return err
		}

		if report.Status == model.HealthFailed {
			return exitErr(reconcile.ExitUpstreamFailed, eris.New("validation failed: empty batch"))
		}
		if strict, _ := cmd.Flags().GetBool("strict"); strict && report.Status != model.HealthOK {
			return exitErr(reconcile.ExitGateNotSatisfied,
				eris.Errorf("strict validation: %d of %d rows blocked", report.Totals.RowsBlocked, report.Totals.RowsTotal))
		}
		return nil
	},
}

func init() {
	reconcileValidateCmd.Flags().String("input", "", "filled apply sheet (CSV)")
	reconcileValidateCmd.Flags().Bool("strict", false, "exit 4 unless every row is ready")
	reconcileValidateCmd.Flags().String("out", "", "write the report to a file instead of stdout")
	_ = reconcileValidateCmd.MarkFlagRequired("input")
	reconcileCmd.AddCommand(reconcileValidateCmd)
}

// readApplySheet opens and decodes an apply sheet. A missing file or a
// sheet missing required headers is a missing-input condition.
func readApplySheet(path string) ([]model.ApplyRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, exitErr(reconcile.ExitMissingInput, eris.Wrapf(err, "open apply sheet %s", path))
	}
	defer f.Close()

	rows, err := sheet.ReadApplyRows(f)
	if err != nil {
		return nil, exitErr(reconcile.ExitMissingInput, err)
	}
	return rows, nil
}
