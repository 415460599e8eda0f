package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/reconcile"
	"github.com/opengov-es/revisor/internal/sheet"
)

var reconcileGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate remediation fill-in sheets",
	Long: `Generate one pre-filled apply row per actionable gap and one raw-capture
packet per source with gaps.

Apply rows carry the identifying columns filled and the value columns blank.
Packets are written under --dir, one file per source, named by a
deterministic slug of (source, period).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "reconcile.generate"))

		period, err := parsePeriod(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := reconcile.Generate(ctx, st, cfg.Reconcile, reconcile.GenerateOptions{Period: period})
		if err != nil {
			return eris.Wrap(err, "reconcile generate")
		}

		sheetPath, _ := cmd.Flags().GetString("sheet")
		if err := writeApplySheet(sheetPath, result.ApplyRows); err != nil {
			return err
		}

		dir, _ := cmd.Flags().GetString("dir")
		format, _ := cmd.Flags().GetString("format")
		if err := writePackets(dir, format, result.Packets); err != nil {
			return err
		}

		log.Info("remediation sheets generated",
			zap.Int("apply_rows", result.Totals.ApplyRowsTotal),
			zap.Int("packets", result.Totals.PacketsTotal),
			zap.String("status", string(result.Status)),
		)

		out, _ := cmd.Flags().GetString("out")
		if err := writeReport(out, result); err != nil {
			return err
		}

		if result.Status == model.HealthFailed {
			return exitErr(reconcile.ExitUpstreamFailed, eris.New("generation failed: empty catalog"))
		}
		return nil
	},
}

func init() {
	addPeriodFlags(reconcileGenerateCmd)
	reconcileGenerateCmd.Flags().String("sheet", "apply_rows.csv", "path for the apply fill-in sheet")
	reconcileGenerateCmd.Flags().String("dir", "", "directory for per-source raw-capture packets (default from config)")
	reconcileGenerateCmd.Flags().String("format", "csv", "packet format: csv or xlsx")
	reconcileGenerateCmd.Flags().String("out", "", "write the report to a file instead of stdout")
	reconcileCmd.AddCommand(reconcileGenerateCmd)
}

func writeApplySheet(path string, rows []model.ApplyRow) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	if err := sheet.WriteApplyRows(f, rows); err != nil {
		return err
	}
	fmt.Printf("Apply sheet written to %s (%d rows)\n", path, len(rows))
	return nil
}

func writePackets(dir, format string, packets []reconcile.Packet) error {
	if dir == "" {
		dir = cfg.Reconcile.PacketDir
	}
	if len(packets) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "create packet dir %s", dir)
	}

	for _, p := range packets {
		path := filepath.Join(dir, p.FileName)
		switch format {
		case "xlsx":
			path = strings.TrimSuffix(path, ".csv") + ".xlsx"
			if err := sheet.WritePacketXLSX(path, p.Row); err != nil {
				return err
			}
		case "csv", "":
			f, err := os.Create(path)
			if err != nil {
				return eris.Wrapf(err, "create %s", path)
			}
			if err := sheet.WriteRawCaptureRows(f, []model.RawCaptureRow{p.Row}); err != nil {
				f.Close()
				return err
			}
			f.Close()
		default:
			return eris.Errorf("unknown packet format %q (want csv or xlsx)", format)
		}
	}
	fmt.Printf("%d packets written to %s\n", len(packets), dir)
	return nil
}
