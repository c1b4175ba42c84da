// Package schema validates stored or received scoring results against the
// rule tables that are supposed to have produced them.
package schema

import (
	"fmt"

	"github.com/dshills/valoracion/internal/risk"
	"github.com/dshills/valoracion/internal/tables"
)

// ValidationError describes a single schema violation.
type ValidationError struct {
	Path    string
	Message string
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Result for internal consistency and agreement with t.
func Validate(r *risk.Result, t *tables.Tables) []ValidationError {
	var errs []ValidationError

	if len(r.Sections) != len(t.Sections) {
		errs = append(errs, ValidationError{"sections", fmt.Sprintf("expected %d sections, got %d", len(t.Sections), len(r.Sections))})
	}

	sum := 0
	for i, s := range r.Sections {
		prefix := fmt.Sprintf("sections[%d]", i)
		sum += s.Points
		if i >= len(t.Sections) {
			continue
		}
		def := t.Sections[i]
		if s.ID != def.ID {
			errs = append(errs, ValidationError{prefix + ".id", fmt.Sprintf("expected %q, got %q", def.ID, s.ID)})
		}
		if s.PointsPerItem != def.Points {
			errs = append(errs, ValidationError{prefix + ".points_per_item", fmt.Sprintf("expected %d, got %d", def.Points, s.PointsPerItem)})
		}
		if s.MaxPoints != def.MaxPoints() {
			errs = append(errs, ValidationError{prefix + ".max_points", fmt.Sprintf("expected %d, got %d", def.MaxPoints(), s.MaxPoints)})
		}
		if s.Points != len(s.PositiveItems)*def.Points {
			errs = append(errs, ValidationError{prefix + ".points", fmt.Sprintf("%d does not match %d positive items x %d", s.Points, len(s.PositiveItems), def.Points)})
		}
		seen := make(map[int]bool, len(s.PositiveItems))
		for j, item := range s.PositiveItems {
			if !def.Contains(item) {
				errs = append(errs, ValidationError{fmt.Sprintf("%s.positive_items[%d]", prefix, j), fmt.Sprintf("item %d outside %d-%d", item, def.First, def.Last)})
			}
			if seen[item] {
				errs = append(errs, ValidationError{fmt.Sprintf("%s.positive_items[%d]", prefix, j), fmt.Sprintf("duplicate item %d", item)})
			}
			seen[item] = true
		}
	}

	if r.TotalScore != sum {
		errs = append(errs, ValidationError{"total_score", fmt.Sprintf("%d does not match section sum %d", r.TotalScore, sum)})
	}
	if r.MaxScore != t.MaxScore() {
		errs = append(errs, ValidationError{"max_score", fmt.Sprintf("expected %d, got %d", t.MaxScore(), r.MaxScore)})
	}
	if !r.Level.Valid() {
		errs = append(errs, ValidationError{"level", fmt.Sprintf("invalid level: %q", r.Level)})
	} else if want := levelFor(t, r.TotalScore); r.Level != want {
		errs = append(errs, ValidationError{"level", fmt.Sprintf("level %s does not match total %d (expected %s)", r.Level, r.TotalScore, want)})
	}

	rules := make(map[string]tables.AlertRule, len(t.Alerts))
	for _, a := range t.Alerts {
		rules[a.Code] = a
	}
	codes := make(map[string]bool)
	for i, a := range r.Alerts {
		prefix := fmt.Sprintf("alerts[%d]", i)
		rule, ok := rules[a.Code]
		if !ok {
			errs = append(errs, ValidationError{prefix + ".code", fmt.Sprintf("unknown alert code: %q", a.Code)})
			continue
		}
		if codes[a.Code] {
			errs = append(errs, ValidationError{prefix + ".code", fmt.Sprintf("duplicate alert: %q", a.Code)})
		}
		codes[a.Code] = true
		if !a.Severity.Valid() {
			errs = append(errs, ValidationError{prefix + ".severity", fmt.Sprintf("invalid: %q", a.Severity)})
		} else if string(a.Severity) != rule.Severity {
			errs = append(errs, ValidationError{prefix + ".severity", fmt.Sprintf("expected %s, got %s", rule.Severity, a.Severity)})
		}
		if len(a.Items) == 0 {
			errs = append(errs, ValidationError{prefix + ".items", "at least one triggering item required"})
		}
	}

	return errs
}

func levelFor(t *tables.Tables, total int) risk.Level {
	for _, th := range t.Thresholds {
		if total <= th.Max {
			return risk.Level(th.Level)
		}
	}
	return risk.Level(t.TopLevel)
}
