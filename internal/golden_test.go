package internal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/dshills/valoracion/internal/questionnaire"
	"github.com/dshills/valoracion/internal/risk"
	"github.com/dshills/valoracion/internal/schema"
)

func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Dir(filepath.Dir(filename))
}

// golden is the expected outcome for one answer file.
type golden struct {
	TotalScore    int      `json:"total_score"`
	Level         string   `json:"level"`
	Alerts        []string `json:"alerts"`
	PositiveItems []int    `json:"positive_items"`
	Ignored       []string `json:"ignored"`
}

func TestGoldenAnswers(t *testing.T) {
	root := projectRoot()
	engine, err := risk.Default()
	if err != nil {
		t.Fatal(err)
	}

	goldens, err := filepath.Glob(filepath.Join(root, "testdata", "golden", "*.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(goldens) == 0 {
		t.Fatal("no golden files found")
	}

	for _, gp := range goldens {
		name := strings.TrimSuffix(filepath.Base(gp), ".json")
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(gp)
			if err != nil {
				t.Fatalf("failed to read golden file: %v", err)
			}
			var want golden
			if err := json.Unmarshal(data, &want); err != nil {
				t.Fatalf("failed to parse golden JSON: %v", err)
			}

			qf, err := questionnaire.Load(filepath.Join(root, "testdata", "answers", name+".json"), engine.Tables().Items)
			if err != nil {
				t.Fatalf("failed to load answers: %v", err)
			}
			res := engine.Score(qf.Answers)

			for _, e := range schema.Validate(&res, engine.Tables()) {
				t.Errorf("validation error: %s", e)
			}
			if res.TotalScore != want.TotalScore {
				t.Errorf("TotalScore = %d, want %d", res.TotalScore, want.TotalScore)
			}
			if string(res.Level) != want.Level {
				t.Errorf("Level = %s, want %s", res.Level, want.Level)
			}
			codes := make([]string, 0, len(res.Alerts))
			for _, a := range res.Alerts {
				codes = append(codes, a.Code)
			}
			if !reflect.DeepEqual(codes, want.Alerts) {
				t.Errorf("Alerts = %v, want %v", codes, want.Alerts)
			}
			if got := qf.Answers.Positive(); !reflect.DeepEqual(got, want.PositiveItems) {
				t.Errorf("PositiveItems = %v, want %v", got, want.PositiveItems)
			}
			if !reflect.DeepEqual(qf.Ignored, want.Ignored) {
				t.Errorf("Ignored = %v, want %v", qf.Ignored, want.Ignored)
			}

			// Scoring the same answers twice is deterministic.
			again := engine.Score(qf.Answers)
			if !reflect.DeepEqual(res, again) {
				t.Error("repeated scoring produced a different result")
			}
		})
	}
}

func TestGoldenRejectsNonMapping(t *testing.T) {
	_, err := questionnaire.Load(filepath.Join(projectRoot(), "testdata", "answers", "lista.json"), 52)
	if !errors.Is(err, risk.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
