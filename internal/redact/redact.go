// Package redact replaces personal identifiers in free-text case notes with
// [REDACTADO] before they are stored or rendered.
package redact

import "regexp"

// Placeholder replaces every redacted span.
const Placeholder = "[REDACTADO]"

var patterns []*regexp.Regexp

func init() {
	raw := []string{
		// Labelled identity documents: "cédula 1.023.456.789", "C.C. No. 52345678", "NUIP: 1098765432"
		`(?i)(c[ée]dula|c\.\s?c\.|documento|pasaporte|nuip|t\.\s?i\.)[^0-9\n]{0,25}[0-9][0-9.]{4,14}`,
		// E-mail addresses
		`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
		// Mobile and landline numbers, with or without +57
		`(?:\+57[\s\-]?)?\b(?:3\d{2}|60\d)[\s\-]?\d{3}[\s\-]?\d{4}\b`,
		// Dotted identity numbers without a label: 1.023.456.789
		`\b\d{1,3}(?:\.\d{3}){2,3}\b`,
	}
	for _, r := range raw {
		patterns = append(patterns, regexp.MustCompile(r))
	}
}

// Redact replaces personal identifier patterns in text with Placeholder.
func Redact(text string) string {
	for _, p := range patterns {
		text = p.ReplaceAllString(text, Placeholder)
	}
	return text
}
