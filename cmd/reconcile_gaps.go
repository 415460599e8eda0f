package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/reconcile"
	"github.com/opengov-es/revisor/internal/sheet"
)

var reconcileGapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Classify completeness gaps into a prioritized queue",
	Long: `Classify every (sanction source, KPI) pair against captured metrics.

Each pair resolves to exactly one status: missing_source, missing_metric,
missing_source_record, missing_evidence, or ready. The queue is sorted by
descending priority and truncated only after sorting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "reconcile.gaps"))

		opts, err := parseGapOpts(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := reconcile.GapQueue(ctx, st, cfg.Reconcile, opts)
		if err != nil {
			return eris.Wrap(err, "reconcile gaps")
		}

		log.Info("gap queue classified",
			zap.Int("expected_pairs", report.Totals.ExpectedPairsTotal),
			zap.Int("queue_rows", report.Totals.QueueRowsTotal),
			zap.String("status", string(report.Status)),
		)

		out, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")
		if format == "csv" {
			if err := writeQueueCSV(out, report.QueueRows); err != nil {
				return err
			}
		} else if err := writeReport(out, report); err != nil {
			return err
		}

		if report.Status == model.HealthFailed {
			return exitErr(reconcile.ExitUpstreamFailed, eris.New("gap classification failed: empty catalog"))
		}
		return nil
	},
}

func init() {
	addPeriodFlags(reconcileGapsCmd)
	reconcileGapsCmd.Flags().String("status", "", "comma-separated status allow-list")
	reconcileGapsCmd.Flags().Int("limit", 0, "cap the queue after sorting; 0 means no cap")
	reconcileGapsCmd.Flags().Bool("include-ready", false, "keep ready pairs in the queue output")
	reconcileGapsCmd.Flags().String("out", "", "write the report to a file instead of stdout")
	reconcileGapsCmd.Flags().String("format", "json", "output format: json or csv")
	reconcileCmd.AddCommand(reconcileGapsCmd)
}

func parseGapOpts(cmd *cobra.Command) (reconcile.GapOptions, error) {
	period, err := parsePeriod(cmd)
	if err != nil {
		return reconcile.GapOptions{}, err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	includeReady, _ := cmd.Flags().GetBool("include-ready")

	opts := reconcile.GapOptions{
		Period:       period,
		Limit:        limit,
		IncludeReady: includeReady,
	}
	if limit == 0 {
		opts.Limit = cfg.Reconcile.QueueLimit
	}

	if statusStr, _ := cmd.Flags().GetString("status"); statusStr != "" {
		for _, s := range strings.Split(statusStr, ",") {
			status := model.CompletenessStatus(strings.TrimSpace(s))
			if !status.Valid() {
				return reconcile.GapOptions{}, eris.Errorf("unknown status %q", s)
			}
			opts.Statuses = append(opts.Statuses, status)
		}
	}
	return opts, nil
}

func writeQueueCSV(path string, rows []model.QueueRow) error {
	w := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close()
		w = f
	}
	return sheet.WriteQueueRows(w, rows)
}
