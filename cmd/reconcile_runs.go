package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/opengov-es/revisor/internal/reconcile"
)

var reconcileRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent cycle runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := reconcile.NewRunLog(st).List(ctx)
		if err != nil {
			return eris.Wrap(err, "reconcile runs")
		}
		if len(runs) == 0 {
			fmt.Println("No cycle runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tMODE\tSTATUS\tVALIDATION\tINSERTED\tUPDATED\tSTARTED\tCOMPLETED")
		for _, run := range runs {
			completed := "-"
			if run.CompletedAt != nil {
				completed = run.CompletedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				run.ID, run.Mode, run.Status, run.ValidationStatus,
				run.RowsInserted, run.RowsUpdated,
				run.StartedAt.Format("2006-01-02 15:04:05"), completed,
			)
		}
		w.Flush()
		return nil
	},
}

func init() {
	reconcileCmd.AddCommand(reconcileRunsCmd)
}
