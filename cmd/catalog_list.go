package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sanction sources and KPI definitions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sources, err := st.ListSources(ctx)
		if err != nil {
			return eris.Wrap(err, "catalog list: sources")
		}
		kpis, err := st.ListKPIDefinitions(ctx)
		if err != nil {
			return eris.Wrap(err, "catalog list: kpis")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tORGANISMO\tAMBITO\tEXPECTED METRICS")
		for _, src := range sources {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", src.ID, src.Organismo, src.Ambito, src.ExpectedMetricsJoined())
		}
		w.Flush()
		fmt.Println()

		kw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(kw, "KPI\tKIND\tLABEL")
		for _, kpi := range kpis {
			fmt.Fprintf(kw, "%s\t%s\t%s\n", kpi.ID, kpi.Kind, kpi.Label)
		}
		kw.Flush()
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogListCmd)
}
