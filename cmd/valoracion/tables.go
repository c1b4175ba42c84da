package main

import (
	"fmt"
	"io"

	"github.com/dshills/valoracion/internal/tables"
	"github.com/spf13/cobra"
)

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List built-in scoring table sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(cmd.OutOrStdout())
		},
	}
}

func runTables(stdout io.Writer) error {
	names, err := tables.List()
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	for _, name := range names {
		t, err := tables.LoadBuiltin(name)
		if err != nil {
			return exitError(3, "failed to load tables: %v", err)
		}
		fmt.Fprintf(stdout, "%s\tv%d\t%d items, max %d\t%s\n", t.Name, t.Version, t.Items, t.MaxScore(), t.Description)
	}
	return nil
}
