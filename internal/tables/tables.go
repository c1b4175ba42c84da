// Package tables loads the weighting, threshold, alert and recommendation
// tables that drive risk scoring.
package tables

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// DefaultName is the built-in table set used when none is requested.
const DefaultName = "default"

// Tables is a complete rule set for one questionnaire instrument.
type Tables struct {
	Name            string              `yaml:"name"`
	Version         int                 `yaml:"version"`
	Description     string              `yaml:"description"`
	Items           int                 `yaml:"items"`
	Sections        []Section           `yaml:"sections"`
	Thresholds      []Threshold         `yaml:"thresholds"`
	TopLevel        string              `yaml:"top_level"`
	Alerts          []AlertRule         `yaml:"alerts"`
	Recommendations map[string][]string `yaml:"recommendations"`
	FallbackLevel   string              `yaml:"fallback_level"`
}

// Section groups a contiguous range of items that share a per-item weight.
type Section struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	First  int    `yaml:"first"`
	Last   int    `yaml:"last"`
	Points int    `yaml:"points"`
}

// Size returns the number of items in the section.
func (s Section) Size() int { return s.Last - s.First + 1 }

// MaxPoints returns the points earned when every item in the section is affirmative.
func (s Section) MaxPoints() int { return s.Size() * s.Points }

// Contains reports whether item belongs to the section.
func (s Section) Contains(item int) bool { return item >= s.First && item <= s.Last }

// Threshold is an inclusive upper bound for a risk level.
type Threshold struct {
	Max   int    `yaml:"max"`
	Level string `yaml:"level"`
}

// AlertRule fires when any of its items is affirmative.
type AlertRule struct {
	Code     string `yaml:"code"`
	Severity string `yaml:"severity"`
	Message  string `yaml:"message"`
	AnyOf    []int  `yaml:"any_of"`
}

// LoadBuiltin loads a built-in table set by name.
func LoadBuiltin(name string) (*Tables, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("tables.LoadBuiltin: unknown table set %q: %w", name, err)
	}
	t, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("tables.LoadBuiltin: %q: %w", name, err)
	}
	return t, nil
}

// LoadFile loads a table set from a YAML file on disk.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tables.LoadFile: %w", err)
	}
	t, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("tables.LoadFile: %s: %w", path, err)
	}
	return t, nil
}

// Load resolves a reference that is either a built-in name or a path to a
// YAML file. An empty reference selects the default built-in set.
func Load(ref string) (*Tables, error) {
	if ref == "" {
		return LoadBuiltin(DefaultName)
	}
	if strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") || strings.ContainsRune(ref, os.PathSeparator) {
		return LoadFile(ref)
	}
	return LoadBuiltin(ref)
}

// List returns the names of all available built-in table sets.
func List() ([]string, error) {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasSuffix(n, ".yaml") {
			names = append(names, strings.TrimSuffix(n, ".yaml"))
		}
	}
	return names, nil
}

func parse(data []byte) (*Tables, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var t Tables
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// MaxScore returns the total reached when every item is affirmative.
func (t *Tables) MaxScore() int {
	total := 0
	for _, s := range t.Sections {
		total += s.MaxPoints()
	}
	return total
}

// Levels returns the level names in ascending severity order.
func (t *Tables) Levels() []string {
	levels := make([]string, 0, len(t.Thresholds)+1)
	for _, th := range t.Thresholds {
		levels = append(levels, th.Level)
	}
	return append(levels, t.TopLevel)
}

// Clone returns a deep copy so callers can hold tables that nobody else mutates.
func (t *Tables) Clone() *Tables {
	c := *t
	c.Sections = append([]Section(nil), t.Sections...)
	c.Thresholds = append([]Threshold(nil), t.Thresholds...)
	c.Alerts = make([]AlertRule, len(t.Alerts))
	for i, a := range t.Alerts {
		a.AnyOf = append([]int(nil), a.AnyOf...)
		c.Alerts[i] = a
	}
	c.Recommendations = make(map[string][]string, len(t.Recommendations))
	for k, v := range t.Recommendations {
		c.Recommendations[k] = append([]string(nil), v...)
	}
	return &c
}

// Validate checks the structural invariants of the tables: sections cover
// 1..Items exactly once, threshold bounds strictly increase, alert items
// exist, and every level has recommendations.
func (t *Tables) Validate() error {
	var errs []error
	add := func(path, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
	}

	if t.Items < 1 {
		add("items", "must be >= 1, got %d", t.Items)
	}

	owner := make(map[int]string, t.Items)
	sectionIDs := make(map[string]bool)
	for i, s := range t.Sections {
		prefix := fmt.Sprintf("sections[%d]", i)
		if s.ID == "" {
			add(prefix+".id", "required")
		} else if sectionIDs[s.ID] {
			add(prefix+".id", "duplicate ID: %q", s.ID)
		}
		sectionIDs[s.ID] = true
		if s.Points < 1 {
			add(prefix+".points", "must be >= 1, got %d", s.Points)
		}
		if s.First < 1 || s.Last > t.Items || s.Last < s.First {
			add(prefix, "invalid item range %d-%d", s.First, s.Last)
			continue
		}
		for item := s.First; item <= s.Last; item++ {
			if prev, ok := owner[item]; ok {
				add(prefix, "item %d already belongs to section %q", item, prev)
				continue
			}
			owner[item] = s.ID
		}
	}
	if len(t.Sections) == 0 {
		add("sections", "at least one section required")
	}
	for item := 1; item <= t.Items; item++ {
		if _, ok := owner[item]; !ok {
			add("sections", "item %d belongs to no section", item)
		}
	}

	levels := make(map[string]bool)
	for i, th := range t.Thresholds {
		prefix := fmt.Sprintf("thresholds[%d]", i)
		if th.Level == "" {
			add(prefix+".level", "required")
		} else if levels[th.Level] {
			add(prefix+".level", "duplicate level: %q", th.Level)
		}
		levels[th.Level] = true
		if th.Max < 0 {
			add(prefix+".max", "must be >= 0, got %d", th.Max)
		}
		if i > 0 && th.Max <= t.Thresholds[i-1].Max {
			add(prefix+".max", "must be greater than %d, got %d", t.Thresholds[i-1].Max, th.Max)
		}
	}
	if t.TopLevel == "" {
		add("top_level", "required")
	} else if levels[t.TopLevel] {
		add("top_level", "duplicate level: %q", t.TopLevel)
	}
	levels[t.TopLevel] = true

	codes := make(map[string]bool)
	for i, a := range t.Alerts {
		prefix := fmt.Sprintf("alerts[%d]", i)
		if a.Code == "" {
			add(prefix+".code", "required")
		} else if codes[a.Code] {
			add(prefix+".code", "duplicate code: %q", a.Code)
		}
		codes[a.Code] = true
		if a.Severity == "" {
			add(prefix+".severity", "required")
		}
		if a.Message == "" {
			add(prefix+".message", "required")
		}
		if len(a.AnyOf) == 0 {
			add(prefix+".any_of", "at least one item required")
		}
		for _, item := range a.AnyOf {
			if item < 1 || item > t.Items {
				add(prefix+".any_of", "item %d out of range 1-%d", item, t.Items)
			}
		}
	}

	for _, level := range t.Levels() {
		if level == "" {
			continue
		}
		if len(t.Recommendations[level]) == 0 {
			add("recommendations."+level, "at least one recommendation required")
		}
	}
	for level := range t.Recommendations {
		if !levels[level] {
			add("recommendations."+level, "unknown level")
		}
	}
	if !levels[t.FallbackLevel] || t.FallbackLevel == "" {
		add("fallback_level", "must name a defined level, got %q", t.FallbackLevel)
	}

	return errors.Join(errs...)
}
