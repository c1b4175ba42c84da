// Package store persists scored assessments in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dshills/valoracion/internal/risk"
)

// ErrNotFound is returned when an assessment does not exist.
var ErrNotFound = errors.New("assessment not found")

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Assessment is one scored questionnaire attached to a case.
type Assessment struct {
	ID            string      `json:"id"`
	CaseNumber    string      `json:"case_number"`
	CreatedAt     time.Time   `json:"created_at"`
	Tables        string      `json:"tables"`
	AnswersHash   string      `json:"answers_hash"`
	PositiveItems []int       `json:"positive_items"`
	Notes         string      `json:"notes,omitempty"`
	Result        risk.Result `json:"result"`
}

// ListOptions filters List results. Zero values mean no filter.
type ListOptions struct {
	Level      risk.Level
	CaseNumber string
	Limit      int
}

// Report aggregates stored assessments for basic reporting.
type Report struct {
	Total  int                `json:"total"`
	Levels map[risk.Level]int `json:"levels"`
	Alerts map[string]int     `json:"alerts"`
}

// Config holds store settings.
type Config struct {
	Path string
}

// DefaultConfig places the database under the user's home directory.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{Path: filepath.Join(home, ".valoracion", "valoracion.db")}
}

// Store is the SQLite-backed assessment store.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at cfg.Path, enables WAL
// mode and runs migrations.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("store: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	db, err := openDB("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// Pragmas are per connection; one connection keeps them in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS assessments (
			id             TEXT    PRIMARY KEY,
			case_number    TEXT    NOT NULL,
			created_at     TEXT    NOT NULL,
			tables         TEXT    NOT NULL,
			answers_hash   TEXT    NOT NULL,
			positive_items TEXT    NOT NULL,
			notes          TEXT    NOT NULL DEFAULT '',
			total_score    INTEGER NOT NULL,
			level          TEXT    NOT NULL,
			result         TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_assessments_case ON assessments(case_number);
		CREATE INDEX IF NOT EXISTS idx_assessments_level ON assessments(level);
		CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(created_at);

		CREATE TABLE IF NOT EXISTS assessment_alerts (
			assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
			code          TEXT NOT NULL,
			severity      TEXT NOT NULL,
			PRIMARY KEY (assessment_id, code)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save inserts an assessment. A missing ID is filled with a new UUID and a
// zero CreatedAt with the current UTC time; both are written back to a.
func (s *Store) Save(ctx context.Context, a *Assessment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.PositiveItems == nil {
		a.PositiveItems = []int{}
	}

	items, err := json.Marshal(a.PositiveItems)
	if err != nil {
		return fmt.Errorf("store.Save: encode items: %w", err)
	}
	result, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("store.Save: encode result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.Save: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assessments (id, case_number, created_at, tables, answers_hash, positive_items, notes, total_score, level, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CaseNumber, a.CreatedAt.UTC().Format(timeLayout), a.Tables, a.AnswersHash,
		string(items), a.Notes, a.Result.TotalScore, string(a.Result.Level), string(result),
	)
	if err != nil {
		return fmt.Errorf("store.Save: insert assessment: %w", err)
	}
	for _, al := range a.Result.Alerts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assessment_alerts (assessment_id, code, severity) VALUES (?, ?, ?)`,
			a.ID, al.Code, string(al.Severity),
		); err != nil {
			return fmt.Errorf("store.Save: insert alert %s: %w", al.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store.Save: commit: %w", err)
	}
	return nil
}

// timeLayout keeps a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `SELECT id, case_number, created_at, tables, answers_hash, positive_items, notes, result FROM assessments`

type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row scanner) (*Assessment, error) {
	var (
		a         Assessment
		createdAt string
		items     string
		result    string
	)
	if err := row.Scan(&a.ID, &a.CaseNumber, &createdAt, &a.Tables, &a.AnswersHash, &items, &a.Notes, &result); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	a.CreatedAt = t
	if err := json.Unmarshal([]byte(items), &a.PositiveItems); err != nil {
		return nil, fmt.Errorf("decode positive_items: %w", err)
	}
	if err := json.Unmarshal([]byte(result), &a.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &a, nil
}

// Get retrieves an assessment by ID.
func (s *Store) Get(ctx context.Context, id string) (*Assessment, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.Get: %w", err)
	}
	return a, nil
}

// List returns assessments newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Assessment, error) {
	var (
		where []string
		args  []any
	)
	if opts.Level != "" {
		where = append(where, "level = ?")
		args = append(args, string(opts.Level))
	}
	if opts.CaseNumber != "" {
		where = append(where, "case_number = ?")
		args = append(args, opts.CaseNumber)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store.List: %w", err)
	}
	defer rows.Close()

	results := []Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("store.List: %w", err)
		}
		results = append(results, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.List: %w", err)
	}
	return results, nil
}

// Report counts stored assessments per risk level and per alert code.
func (s *Store) Report(ctx context.Context) (*Report, error) {
	r := &Report{Levels: map[risk.Level]int{}, Alerts: map[string]int{}}

	rows, err := s.db.QueryContext(ctx, `SELECT level, COUNT(*) FROM assessments GROUP BY level`)
	if err != nil {
		return nil, fmt.Errorf("store.Report: levels: %w", err)
	}
	for rows.Next() {
		var (
			level string
			n     int
		)
		if err := rows.Scan(&level, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store.Report: levels: %w", err)
		}
		r.Levels[risk.Level(level)] = n
		r.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.Report: levels: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT code, COUNT(*) FROM assessment_alerts GROUP BY code`)
	if err != nil {
		return nil, fmt.Errorf("store.Report: alerts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			code string
			n    int
		)
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("store.Report: alerts: %w", err)
		}
		r.Alerts[code] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.Report: alerts: %w", err)
	}
	return r, nil
}
