// Package render produces Markdown documents from scoring results.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/valoracion/internal/risk"
	"github.com/dshills/valoracion/internal/store"
)

// Document is everything a rendered assessment shows.
type Document struct {
	CaseNumber      string
	AssessmentID    string
	CreatedAt       time.Time
	Source          string
	Result          risk.Result
	Recommendations []string
	Notes           string
	Ignored         []string
}

// FromAssessment builds a document from a stored assessment.
func FromAssessment(a *store.Assessment, recommendations []string) *Document {
	return &Document{
		CaseNumber:      a.CaseNumber,
		AssessmentID:    a.ID,
		CreatedAt:       a.CreatedAt,
		Result:          a.Result,
		Recommendations: recommendations,
		Notes:           a.Notes,
	}
}

// Markdown renders an assessment document as Markdown.
func Markdown(d *Document) string {
	var b strings.Builder
	r := d.Result

	b.WriteString("# Valoración del riesgo\n\n")
	if d.CaseNumber != "" {
		fmt.Fprintf(&b, "**Radicado:** %s\n", d.CaseNumber)
	}
	if d.AssessmentID != "" {
		fmt.Fprintf(&b, "**Valoración:** %s\n", d.AssessmentID)
	}
	if !d.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "**Fecha:** %s\n", d.CreatedAt.Format("2006-01-02 15:04"))
	}
	if d.Source != "" {
		fmt.Fprintf(&b, "**Fuente:** %s\n", d.Source)
	}
	fmt.Fprintf(&b, "**Nivel de riesgo:** %s\n", strings.ToUpper(string(r.Level)))
	fmt.Fprintf(&b, "**Puntaje:** %d / %d\n\n", r.TotalScore, r.MaxScore)

	// Alerts by severity
	criticals := filterAlerts(r.Alerts, risk.SeverityCritica)
	highs := filterAlerts(r.Alerts, risk.SeverityAlta)

	if len(criticals) > 0 {
		b.WriteString("## Alertas críticas\n\n")
		for _, a := range criticals {
			renderAlert(&b, a)
		}
		b.WriteString("\n")
	}
	if len(highs) > 0 {
		b.WriteString("## Alertas altas\n\n")
		for _, a := range highs {
			renderAlert(&b, a)
		}
		b.WriteString("\n")
	}
	if len(r.Alerts) == 0 {
		b.WriteString("Sin alertas de letalidad.\n\n")
	}

	b.WriteString("## Puntaje por sección\n\n")
	b.WriteString("| Sección | Puntos | Máximo | Ítems positivos |\n")
	b.WriteString("|---|---:|---:|---|\n")
	for _, s := range r.Sections {
		fmt.Fprintf(&b, "| %s | %d | %d | %s |\n", s.Name, s.Points, s.MaxPoints, formatItems(s.PositiveItems))
	}
	b.WriteString("\n")

	if len(d.Recommendations) > 0 {
		b.WriteString("## Recomendaciones\n\n")
		for i, rec := range d.Recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
		}
		b.WriteString("\n")
	}

	if strings.TrimSpace(d.Notes) != "" {
		b.WriteString("## Observaciones\n\n")
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(d.Notes))
	}

	if len(d.Ignored) > 0 {
		b.WriteString("## Campos no reconocidos\n\n")
		for _, k := range d.Ignored {
			fmt.Fprintf(&b, "- `%s`\n", k)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func filterAlerts(alerts []risk.Alert, sev risk.Severity) []risk.Alert {
	var result []risk.Alert
	for _, a := range alerts {
		if a.Severity == sev {
			result = append(result, a)
		}
	}
	return result
}

func renderAlert(b *strings.Builder, a risk.Alert) {
	fmt.Fprintf(b, "- **%s**: %s (ítems %s)\n", a.Code, a.Message, formatItems(a.Items))
}

func formatItems(items []int) string {
	if len(items) == 0 {
		return "-"
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = fmt.Sprintf("%d", item)
	}
	return strings.Join(parts, ", ")
}
