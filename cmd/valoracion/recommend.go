package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type recommendFlags struct {
	format string
	tables string
}

func newRecommendCmd() *cobra.Command {
	f := &recommendFlags{}

	cmd := &cobra.Command{
		Use:   "recommend <level>",
		Short: "Print the recommended actions for a risk level",
		Long:  "Print the recommended actions for a risk level. Unknown levels get the lowest level's list.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(args[0], f, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "text", "Output format: text or json")
	flags.StringVar(&f.tables, "tables", envOr("VALORACION_TABLES", ""), "Built-in table set name or YAML file")

	return cmd
}

func runRecommend(level string, f *recommendFlags, stdout io.Writer) error {
	engine, err := loadEngine(f.tables)
	if err != nil {
		return exitError(3, "failed to load tables: %v", err)
	}
	recs := engine.RecommendationsFor(level)

	switch f.format {
	case "text":
		for i, r := range recs {
			fmt.Fprintf(stdout, "%d. %s\n", i+1, r)
		}
	case "json":
		data, err := json.MarshalIndent(map[string]any{
			"level":           level,
			"recommendations": recs,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
	default:
		return exitError(3, "unknown format: %s", f.format)
	}
	return nil
}
