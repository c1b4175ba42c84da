// Package intake runs the case intake workflow: normalize a questionnaire
// submission, score it, check the result and persist it.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/valoracion/internal/questionnaire"
	"github.com/dshills/valoracion/internal/redact"
	"github.com/dshills/valoracion/internal/risk"
	"github.com/dshills/valoracion/internal/schema"
	"github.com/dshills/valoracion/internal/store"
	"github.com/dshills/valoracion/internal/tables"
)

// ErrInvalidInput wraps submissions rejected before scoring.
var ErrInvalidInput = errors.New("invalid submission")

// Repository is the persistence the workflow needs. *store.Store satisfies it.
type Repository interface {
	Save(ctx context.Context, a *store.Assessment) error
	Get(ctx context.Context, id string) (*store.Assessment, error)
	List(ctx context.Context, opts store.ListOptions) ([]store.Assessment, error)
	Report(ctx context.Context) (*store.Report, error)
}

// Submission is one questionnaire filed against a case.
type Submission struct {
	CaseNumber string `json:"case_number"`
	Answers    any    `json:"answers"`
	Notes      string `json:"notes,omitempty"`
}

// Options configures a Service.
type Options struct {
	// Redact strips personal identifiers from notes before they are stored.
	Redact bool
}

// Service ties the scoring engine to a repository.
type Service struct {
	engine *risk.Engine
	tables *tables.Tables
	repo   Repository
	opts   Options
}

// NewService creates a Service.
func NewService(engine *risk.Engine, repo Repository, opts Options) *Service {
	return &Service{
		engine: engine,
		tables: engine.Tables(),
		repo:   repo,
		opts:   opts,
	}
}

// Engine returns the scoring engine used by the service.
func (s *Service) Engine() *risk.Engine { return s.engine }

// Submit scores a submission and stores the resulting assessment. It also
// returns the answer keys that could not be bound to an item.
// Submissions without a case number or with answers that are not a mapping
// fail with an error wrapping ErrInvalidInput.
func (s *Service) Submit(ctx context.Context, sub Submission) (*store.Assessment, []string, error) {
	caseNumber := strings.TrimSpace(sub.CaseNumber)
	if caseNumber == "" {
		return nil, nil, fmt.Errorf("%w: case_number is required", ErrInvalidInput)
	}
	answers, ignored, err := s.engine.Normalize(sub.Answers)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	result := s.engine.Score(answers)
	if errs := schema.Validate(&result, s.tables); len(errs) > 0 {
		return nil, nil, fmt.Errorf("intake.Submit: inconsistent result: %w", errs[0])
	}

	notes := strings.TrimSpace(sub.Notes)
	if s.opts.Redact {
		notes = redact.Redact(notes)
	}

	positive := answers.Positive()
	canonical, err := json.Marshal(positive)
	if err != nil {
		return nil, nil, fmt.Errorf("intake.Submit: %w", err)
	}
	a := &store.Assessment{
		CaseNumber:    caseNumber,
		Tables:        s.tables.Name,
		AnswersHash:   questionnaire.Hash(canonical),
		PositiveItems: positive,
		Notes:         notes,
		Result:        result,
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return nil, nil, fmt.Errorf("intake.Submit: %w", err)
	}
	return a, ignored, nil
}

// Get returns a stored assessment; missing IDs yield store.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*store.Assessment, error) {
	return s.repo.Get(ctx, id)
}

// List returns stored assessments matching opts.
func (s *Service) List(ctx context.Context, opts store.ListOptions) ([]store.Assessment, error) {
	if opts.Level != "" && !opts.Level.Valid() {
		return nil, fmt.Errorf("%w: unknown level %q", ErrInvalidInput, opts.Level)
	}
	return s.repo.List(ctx, opts)
}

// Report returns the per-level and per-alert counts.
func (s *Service) Report(ctx context.Context) (*store.Report, error) {
	return s.repo.Report(ctx)
}

// Recommendations returns the follow-up actions for a stored assessment.
func (s *Service) Recommendations(a *store.Assessment) []string {
	return s.engine.RecommendationsFor(string(a.Result.Level))
}
