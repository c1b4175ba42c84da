package main

import (
	"github.com/dshills/valoracion/internal/risk"
	"github.com/dshills/valoracion/internal/tables"
)

// loadEngine builds an engine for a built-in table name or YAML path.
// An empty reference uses the shared default engine.
func loadEngine(ref string) (*risk.Engine, error) {
	if ref == "" {
		return risk.Default()
	}
	t, err := tables.Load(ref)
	if err != nil {
		return nil, err
	}
	return risk.New(t)
}
