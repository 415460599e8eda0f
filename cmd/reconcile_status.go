package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/reconcile"
)

var reconcileStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-source coverage",
	Long:  "Display captured, traceable, and evidenced KPI counts per registered sanction source.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := reconcile.Coverage(ctx, st)
		if err != nil {
			return eris.Wrap(err, "reconcile status")
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			out, _ := cmd.Flags().GetString("out")
			if err := writeReport(out, report); err != nil {
				return err
			}
		} else {
			printCoverage(report)
		}

		if report.Status == model.HealthFailed {
			return exitErr(reconcile.ExitUpstreamFailed, eris.New("coverage report failed: no sources registered"))
		}
		return nil
	},
}

func init() {
	reconcileStatusCmd.Flags().Bool("json", false, "emit the JSON report envelope instead of a table")
	reconcileStatusCmd.Flags().String("out", "", "write the JSON report to a file instead of stdout")
	reconcileCmd.AddCommand(reconcileStatusCmd)
}

func printCoverage(report *reconcile.CoverageReport) {
	fmt.Println("=== Coverage Status ===")
	fmt.Printf("Sources:            %d\n", report.Totals.SourcesTotal)
	fmt.Printf("Fully covered:      %d\n", report.Totals.SourcesFullyCovered)
	fmt.Printf("Metrics captured:   %d\n", report.Totals.MetricsTotal)
	fmt.Printf("Overall status:     %s\n", report.Status)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tORGANISMO\tEXPECTED\tCOVERED\tTRACEABLE\tEVIDENCED\tPCT")
	for _, row := range report.Rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%.1f%%\n",
			row.SanctionSourceID, row.Organismo,
			row.KPIsExpected, row.KPIsCovered,
			row.WithSourceRecord, row.WithEvidence,
			row.CoveragePct,
		)
	}
	w.Flush()
}
