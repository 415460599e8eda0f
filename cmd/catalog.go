package main

import (
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the sanction source and KPI catalog",
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
