package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dshills/valoracion/internal/questionnaire"
	"github.com/dshills/valoracion/internal/render"
	"github.com/dshills/valoracion/internal/risk"
	"github.com/dshills/valoracion/internal/schema"
	"github.com/spf13/cobra"
)

type scoreFlags struct {
	format  string
	out     string
	tables  string
	failOn  string
	verbose bool
}

// scoreReport is the JSON document printed by the score command.
type scoreReport struct {
	Tool            string      `json:"tool"`
	Version         string      `json:"version"`
	Input           scoreInput  `json:"input"`
	Result          risk.Result `json:"result"`
	Recommendations []string    `json:"recommendations"`
	Ignored         []string    `json:"ignored"`
}

type scoreInput struct {
	AnswersFile string `json:"answers_file"`
	AnswersHash string `json:"answers_hash"`
	Tables      string `json:"tables"`
}

func newScoreCmd() *cobra.Command {
	f := &scoreFlags{}

	cmd := &cobra.Command{
		Use:   "score <answers-file>",
		Short: "Score a questionnaire answer file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(args[0], f, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "json", "Output format: json or md")
	flags.StringVar(&f.out, "out", "", "Output file path (default: stdout)")
	flags.StringVar(&f.tables, "tables", envOr("VALORACION_TABLES", ""), "Built-in table set name or YAML file")
	flags.StringVar(&f.failOn, "fail-on", "", "Exit 2 if the risk level meets this level: bajo, medio, alto, extremo")
	flags.BoolVar(&f.verbose, "verbose", false, "Print processing steps to stderr")

	return cmd
}

func runScore(answersPath string, f *scoreFlags, stdout io.Writer) error {
	logger := log.New(os.Stderr, "", 0)
	verbose := func(msg string, args ...any) {
		if f.verbose {
			logger.Printf(msg, args...)
		}
	}

	var failLevel risk.Level
	if f.failOn != "" {
		failLevel = risk.Level(f.failOn)
		if !failLevel.Valid() {
			return exitError(3, "unrecognized --fail-on level: %s", f.failOn)
		}
	}
	if f.format != "json" && f.format != "md" {
		return exitError(3, "unknown format: %s", f.format)
	}

	// 1. Load tables
	verbose("Loading tables: %s", displayRef(f.tables))
	engine, err := loadEngine(f.tables)
	if err != nil {
		return exitError(3, "failed to load tables: %v", err)
	}
	t := engine.Tables()

	// 2. Load answers
	verbose("Loading answers: %s", answersPath)
	qf, err := questionnaire.Load(answersPath, t.Items)
	if err != nil {
		return exitError(3, "failed to load answers: %v", err)
	}
	verbose("Bound %d affirmative items, ignored %d keys", len(qf.Answers.Positive()), len(qf.Ignored))

	// 3. Score and check
	result := engine.Score(qf.Answers)
	if errs := schema.Validate(&result, t); len(errs) > 0 {
		for _, e := range errs {
			logger.Printf("  %s", e)
		}
		return fmt.Errorf("inconsistent result (%d errors)", len(errs))
	}
	verbose("Total %d/%d, level %s, %d alerts", result.TotalScore, result.MaxScore, result.Level, len(result.Alerts))

	recs := engine.RecommendationsFor(string(result.Level))

	// 4. Output
	var output string
	switch f.format {
	case "json":
		rep := scoreReport{
			Tool:    "valoracion",
			Version: version,
			Input: scoreInput{
				AnswersFile: filepath.Base(answersPath),
				AnswersHash: qf.Hash,
				Tables:      t.Name,
			},
			Result:          result,
			Recommendations: recs,
			Ignored:         qf.Ignored,
		}
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		output = string(data) + "\n"
	case "md":
		output = render.Markdown(&render.Document{
			Source:          filepath.Base(answersPath),
			Result:          result,
			Recommendations: recs,
			Ignored:         qf.Ignored,
		})
	}

	if f.out != "" {
		verbose("Writing output to %s", f.out)
		if err := os.WriteFile(f.out, []byte(output), 0600); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	} else {
		fmt.Fprint(stdout, output)
	}

	// 5. Exit code based on --fail-on
	if failLevel != "" && result.Level.AtLeast(failLevel) {
		return exitError(2, "risk level %s meets fail threshold %s", result.Level, failLevel)
	}
	return nil
}

func displayRef(ref string) string {
	if ref == "" {
		return "(default)"
	}
	return ref
}
