package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/reconcile"
	"github.com/opengov-es/revisor/internal/sheet"
)

var reconcileDeriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive KPI apply rows from a raw-capture sheet",
	Long: `Derive the three per-source KPI values from filled raw-capture rows.

Each raw row is accepted or rejected whole: an accepted row emits exactly
three apply rows (recurso_estimation_rate, formal_annulment_rate,
resolution_delay_p90_days); a rejected row emits none and its reasons land
in the rejection queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zap.L().With(zap.String("command", "reconcile.derive"))

		input, _ := cmd.Flags().GetString("input")
		f, err := os.Open(input)
		if err != nil {
			return exitErr(reconcile.ExitMissingInput, eris.Wrapf(err, "open raw capture sheet %s", input))
		}
		defer f.Close()

		rawRows, err := sheet.ReadRawCaptureRows(f)
		if err != nil {
			return exitErr(reconcile.ExitMissingInput, err)
		}

		result := reconcile.Derive(rawRows, cfg.Reconcile)

		log.Info("raw rows derived",
			zap.Int("raw_rows", result.Totals.RawRowsTotal),
			zap.Int("accepted", result.Totals.RawRowsAccepted),
			zap.Int("apply_rows", result.Totals.ApplyRowsTotal),
			zap.String("status", string(result.Status)),
		)

		if sheetPath, _ := cmd.Flags().GetString("sheet"); sheetPath != "" {
			sf, err := os.Create(sheetPath)
			if err != nil {
				return eris.Wrapf(err, "create %s", sheetPath)
			}
			if err := sheet.WriteApplyRows(sf, result.ApplyRows); err != nil {
				sf.Close()
				return err
			}
			sf.Close()
			fmt.Printf("Apply sheet written to %s (%d rows)\n", sheetPath, len(result.ApplyRows))
		}

		out, _ := cmd.Flags().GetString("out")
		if err := writeReport(out, result); err != nil {
			return err
		}

		if result.Status == model.HealthFailed {
			return exitErr(reconcile.ExitUpstreamFailed, eris.New("derivation failed: no raw rows"))
		}
		return nil
	},
}

func init() {
	reconcileDeriveCmd.Flags().String("input", "", "filled raw-capture sheet (CSV)")
	reconcileDeriveCmd.Flags().String("sheet", "", "write derived apply rows to this CSV path")
	reconcileDeriveCmd.Flags().String("out", "", "write the report to a file instead of stdout")
	_ = reconcileDeriveCmd.MarkFlagRequired("input")
	reconcileCmd.AddCommand(reconcileDeriveCmd)
}
