package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/opengov-es/revisor/internal/model"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Completeness reconciliation pipeline",
	Long:  "Classify gaps, generate remediation sheets, derive KPI values from raw captures, validate and apply batches, and report coverage.",
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

// parsePeriod reads the shared --period and --granularity flags. A blank
// period means all time.
func parsePeriod(cmd *cobra.Command) (model.Period, error) {
	date, _ := cmd.Flags().GetString("period")
	gran, _ := cmd.Flags().GetString("granularity")

	if date == "" && gran == "" {
		return model.Period{}, nil
	}
	if date == "" {
		return model.Period{}, eris.New("--granularity requires --period; omit both for all time")
	}
	if gran == "" {
		gran = cfg.Reconcile.DefaultGranularity
	}
	if !model.ValidGranularity(gran) {
		return model.Period{}, eris.Errorf("unknown granularity %q (want one of year, quarter, month, day)", gran)
	}
	return model.Period{Date: date, Granularity: gran}, nil
}

func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().String("period", "", "reporting period date (YYYY-MM-DD), blank for all time")
	cmd.Flags().String("granularity", "", "period granularity: year, quarter, month, day")
}
