package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"reconcile", "catalog"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "revisor", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestReconcileCommand_HasSubcommands(t *testing.T) {
	cmds := reconcileCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"migrate", "gaps", "generate", "derive", "validate", "apply", "status", "cycle", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "reconcile should have subcommand %q", name)
	}
}

func TestCatalogCommand_HasSubcommands(t *testing.T) {
	cmds := catalogCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"seed", "list"} {
		assert.True(t, names[name], "catalog should have subcommand %q", name)
	}
}

func TestGapsCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"period", "granularity", "status", "limit", "include-ready", "out", "format"} {
		flag := reconcileGapsCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "reconcile gaps should have --%s flag", flagName)
	}

	limit := reconcileGapsCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "0", limit.DefValue)
}

func TestGenerateCommand_Flags(t *testing.T) {
	sheet := reconcileGenerateCmd.Flags().Lookup("sheet")
	require.NotNil(t, sheet, "reconcile generate should have --sheet flag")
	assert.Equal(t, "apply_rows.csv", sheet.DefValue)

	format := reconcileGenerateCmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "csv", format.DefValue)
}

func TestApplyCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"input", "strict-readiness", "tolerance", "out"} {
		flag := reconcileApplyCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "reconcile apply should have --%s flag", flagName)
	}
}

func TestCycleCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"input", "strict-readiness", "out"} {
		flag := reconcileCycleCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "reconcile cycle should have --%s flag", flagName)
	}
}
