package metrics

import (
	"context"

	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/rotisserie/eris"
)

var (
	ErrMetricsUnavailable = eris.New("metrics unavailable")
	ErrIncompleteMetrics  = eris.New("metrics incomplete")
)

// Record is what a provider returns before sanitization. Fields holds raw
// names exactly as the source spells them.
type Record struct {
	Kind   entity.Kind
	ID     string
	Fields map[string]any
}

// Provider is the single authoritative source of performance figures.
type Provider interface {
	// Endpoint names the source for provenance stamps.
	Endpoint(req Request) string
	Fetch(ctx context.Context, req Request) (*Record, error)
	// Goals returns per-entity targets, or nil when none are set.
	Goals(ctx context.Context, req Request) (*Record, error)
}
