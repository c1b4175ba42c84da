// Package questionnaire reads and hashes answer files submitted for scoring.
package questionnaire

import (
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/dshills/valoracion/internal/risk"
)

// File holds a loaded answer file with its decoded answers and metadata.
type File struct {
	FilePath string
	Raw      []byte
	Hash     string
	Answers  risk.Answers
	// Ignored lists keys that could not be bound to a questionnaire item.
	Ignored []string
}

// Load reads an answer file, computes its SHA-256 hash and decodes the
// answers for an instrument of the given number of items. A file that is
// not a JSON object yields risk.ErrInvalidInput.
func Load(path string, items int) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("questionnaire.Load: %w", err)
	}
	return Parse(path, data, items)
}

// Parse decodes answer bytes that were read from path.
func Parse(path string, data []byte, items int) (*File, error) {
	answers, ignored, err := risk.Decode(data, items)
	if err != nil {
		return nil, fmt.Errorf("questionnaire.Load: %s: %w", path, err)
	}
	return &File{
		FilePath: path,
		Raw:      data,
		Hash:     Hash(data),
		Answers:  answers,
		Ignored:  ignored,
	}, nil
}

// Hash returns the "sha256:"-prefixed digest of data.
func Hash(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}
