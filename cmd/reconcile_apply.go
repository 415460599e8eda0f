package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/reconcile"
	"github.com/opengov-es/revisor/internal/store"
)

var reconcileApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Validate and upsert an apply sheet",
	Long: `Validate a filled apply sheet, then upsert the ready rows into the
metric store in a single transaction.

By default blocked rows are skipped and the ready rows applied. With
--strict-readiness, nothing is applied unless validation reports ok;
a blocked batch exits 4 with no writes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "reconcile.apply"))

		input, _ := cmd.Flags().GetString("input")
		rows, err := readApplySheet(input)
		if err != nil {
			return err
		}

		if tol, _ := cmd.Flags().GetFloat64("tolerance"); cmd.Flags().Changed("tolerance") {
			cfg.Reconcile.RatioTolerance = tol
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		catalog, err := store.LoadCatalog(ctx, st)
		if err != nil {
			return eris.Wrap(err, "reconcile apply")
		}

		out, _ := cmd.Flags().GetString("out")

		// The validation report is written before any gated exit so a
		// blocked batch still leaves an artifact.
		validation := reconcile.Validate(rows, catalog, cfg.Reconcile)
		if validation.Status == model.HealthFailed {
			if werr := writeReport(out, validation); werr != nil {
				return werr
			}
			return exitErr(reconcile.ExitUpstreamFailed, eris.New("apply aborted: validation failed"))
		}

		strict, _ := cmd.Flags().GetBool("strict-readiness")
		if strict && validation.Status != model.HealthOK {
			if werr := writeReport(out, validation); werr != nil {
				return werr
			}
			return exitErr(reconcile.ExitGateNotSatisfied,
				eris.Errorf("strict readiness: %d of %d rows blocked, nothing applied",
					validation.Totals.RowsBlocked, validation.Totals.RowsTotal))
		}

		report, err := reconcile.Apply(ctx, st, validation.ReadyRows(), time.Now().UTC())
		if report != nil {
			if werr := writeReport(out, report); werr != nil {
				return werr
			}
		}
		if err != nil {
			return exitErr(reconcile.ExitUpstreamFailed, eris.Wrap(err, "reconcile apply"))
		}

		log.Info("batch applied",
			zap.Int("inserted", report.Totals.RowsInserted),
			zap.Int("updated", report.Totals.RowsUpdated),
			zap.Int("blocked", validation.Totals.RowsBlocked),
		)
		return nil
	},
}

func init() {
	reconcileApplyCmd.Flags().String("input", "", "filled apply sheet (CSV)")
	reconcileApplyCmd.Flags().Bool("strict-readiness", false, "refuse to apply unless every row is ready")
	reconcileApplyCmd.Flags().Float64("tolerance", 0, "override the ratio consistency tolerance")
	reconcileApplyCmd.Flags().String("out", "", "write the report to a file instead of stdout")
	_ = reconcileApplyCmd.MarkFlagRequired("input")
	reconcileCmd.AddCommand(reconcileApplyCmd)
}
