// Package risk implements the deterministic risk scoring engine for the
// family-violence intake questionnaire.
package risk

// Level is a risk classification derived from the total score.
type Level string

const (
	LevelBajo    Level = "bajo"
	LevelMedio   Level = "medio"
	LevelAlto    Level = "alto"
	LevelExtremo Level = "extremo"
)

func (l Level) Valid() bool {
	switch l {
	case LevelBajo, LevelMedio, LevelAlto, LevelExtremo:
		return true
	}
	return false
}

// order returns a sort key (higher = more severe).
func (l Level) order() int {
	switch l {
	case LevelBajo:
		return 0
	case LevelMedio:
		return 1
	case LevelAlto:
		return 2
	case LevelExtremo:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether l is as severe as other or more.
// Unknown levels never meet a threshold.
func (l Level) AtLeast(other Level) bool {
	if !l.Valid() || !other.Valid() {
		return false
	}
	return l.order() >= other.order()
}

// Severity tags a lethality alert.
type Severity string

const (
	SeverityCritica Severity = "critica"
	SeverityAlta    Severity = "alta"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritica, SeverityAlta:
		return true
	}
	return false
}

// Order returns a sort key (lower = higher priority).
func (s Severity) Order() int {
	switch s {
	case SeverityCritica:
		return 0
	case SeverityAlta:
		return 1
	default:
		return 2
	}
}

// Result is the outcome of scoring one answer set. A Result is built fresh
// on every call and shares no memory with the engine or with other results.
type Result struct {
	Sections   []SectionScore `json:"sections"`
	TotalScore int            `json:"total_score"`
	MaxScore   int            `json:"max_score"`
	Level      Level          `json:"level"`
	Alerts     []Alert        `json:"alerts"`
}

// SectionScore is the breakdown for one questionnaire section.
type SectionScore struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Points        int    `json:"points"`
	PointsPerItem int    `json:"points_per_item"`
	PositiveItems []int  `json:"positive_items"`
	MaxPoints     int    `json:"max_points"`
}

// Alert is an advisory lethality flag. Alerts never contribute to the score.
type Alert struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Items    []int    `json:"items"`
}

// HasAlert reports whether the result carries an alert with the given code.
func (r Result) HasAlert(code string) bool {
	for _, a := range r.Alerts {
		if a.Code == code {
			return true
		}
	}
	return false
}

// CriticalCount returns the number of critical alerts.
func (r Result) CriticalCount() int {
	n := 0
	for _, a := range r.Alerts {
		if a.Severity == SeverityCritica {
			n++
		}
	}
	return n
}
