package risk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/valoracion/internal/tables"
)

// Engine scores answer sets against one immutable rule table set.
// An Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	t        *tables.Tables
	maxScore int
}

// New builds an engine from validated tables. The tables are copied, so
// later changes by the caller do not affect the engine.
func New(t *tables.Tables) (*Engine, error) {
	if t == nil {
		return nil, errors.New("risk.New: nil tables")
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("risk.New: %w", err)
	}
	for _, level := range t.Levels() {
		if !Level(level).Valid() {
			return nil, fmt.Errorf("risk.New: unknown risk level %q", level)
		}
	}
	for _, a := range t.Alerts {
		if !Severity(a.Severity).Valid() {
			return nil, fmt.Errorf("risk.New: alert %s: unknown severity %q", a.Code, a.Severity)
		}
	}
	c := t.Clone()
	return &Engine{t: c, maxScore: c.MaxScore()}, nil
}

var defaultEngine = sync.OnceValues(func() (*Engine, error) {
	t, err := tables.LoadBuiltin(tables.DefaultName)
	if err != nil {
		return nil, err
	}
	return New(t)
})

// Default returns the process-wide engine over the built-in default tables.
func Default() (*Engine, error) {
	return defaultEngine()
}

// Tables returns a copy of the engine's rule tables.
func (e *Engine) Tables() *tables.Tables {
	return e.t.Clone()
}

// MaxScore returns the highest reachable total score.
func (e *Engine) MaxScore() int { return e.maxScore }

// Score computes section scores, total, level and alerts for an answer set.
// It never fails: unanswered items contribute nothing.
func (e *Engine) Score(a Answers) Result {
	sections := make([]SectionScore, 0, len(e.t.Sections))
	total := 0
	for _, s := range e.t.Sections {
		ss := SectionScore{
			ID:            s.ID,
			Name:          s.Name,
			PointsPerItem: s.Points,
			PositiveItems: []int{},
			MaxPoints:     s.MaxPoints(),
		}
		for item := s.First; item <= s.Last; item++ {
			if a.Affirmative(item) {
				ss.Points += s.Points
				ss.PositiveItems = append(ss.PositiveItems, item)
			}
		}
		total += ss.Points
		sections = append(sections, ss)
	}
	return Result{
		Sections:   sections,
		TotalScore: total,
		MaxScore:   e.maxScore,
		Level:      e.LevelFor(total),
		Alerts:     e.Alerts(a),
	}
}

// Normalize binds a raw answer mapping to the engine's items. Keys outside
// the instrument are returned in ignored.
func (e *Engine) Normalize(raw any) (Answers, []string, error) {
	return Normalize(raw, e.t.Items)
}

// Decode parses a JSON answer object against the engine's items.
func (e *Engine) Decode(data []byte) (Answers, []string, error) {
	return Decode(data, e.t.Items)
}

// Evaluate normalizes a raw answer mapping and scores it. Keys that could
// not be bound to an item are returned in ignored.
func (e *Engine) Evaluate(raw any) (Result, []string, error) {
	a, ignored, err := e.Normalize(raw)
	if err != nil {
		return Result{}, nil, err
	}
	return e.Score(a), ignored, nil
}

// LevelFor maps a total score to a risk level. Threshold bounds are
// inclusive; totals above the last bound get the top level.
func (e *Engine) LevelFor(total int) Level {
	for _, th := range e.t.Thresholds {
		if total <= th.Max {
			return Level(th.Level)
		}
	}
	return Level(e.t.TopLevel)
}

// Alerts evaluates the alert rules in declaration order. Each rule fires
// at most once and reports the items that triggered it.
func (e *Engine) Alerts(a Answers) []Alert {
	alerts := []Alert{}
	for _, rule := range e.t.Alerts {
		var hit []int
		for _, item := range rule.AnyOf {
			if a.Affirmative(item) {
				hit = append(hit, item)
			}
		}
		if len(hit) == 0 {
			continue
		}
		alerts = append(alerts, Alert{
			Code:     rule.Code,
			Severity: Severity(rule.Severity),
			Message:  rule.Message,
			Items:    hit,
		})
	}
	return alerts
}

// RecommendationsFor returns the ordered follow-up actions for a level.
// Unknown levels get the fallback level's list. The returned slice is a copy.
func (e *Engine) RecommendationsFor(level string) []string {
	recs, ok := e.t.Recommendations[level]
	if !ok {
		recs = e.t.Recommendations[e.t.FallbackLevel]
	}
	return append([]string(nil), recs...)
}
