package audit

import (
	"context"
	"time"

	"github.com/bryanwahyu/advisor-guard/internal/domain/validation"
	"github.com/rotisserie/eris"
)

// ErrPersistence wraps audit store failures. It is logged, never surfaced.
var ErrPersistence = eris.New("audit persistence failed")

type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	// StatusError marks runs where validation could not complete, e.g. a
	// malformed constrained reply.
	StatusError Status = "error"
)

// Entry is one validation outcome. Entries are append-only.
type Entry struct {
	ID            string                `json:"id"`
	CreatedAt     time.Time             `json:"created_at"`
	UserID        string                `json:"user_id"`
	Query         string                `json:"query"`
	EntityKind    string                `json:"entity_kind"`
	EntityID      string                `json:"entity_id"`
	Period        string                `json:"period"`
	Status        Status                `json:"status"`
	Confidence    float64               `json:"confidence"`
	MismatchCount int                   `json:"mismatch_count"`
	Mismatches    []validation.Mismatch `json:"mismatches,omitempty"`
	Enforcement   string                `json:"enforcement"`
	AdminOverride bool                  `json:"admin_override"`
	Constrained   bool                  `json:"constrained"`
	Model         string                `json:"model,omitempty"`
	Disclaimer    string                `json:"disclaimer,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// Summary aggregates entries in a window.
type Summary struct {
	Total            int     `json:"total"`
	Passed           int     `json:"passed"`
	Failed           int     `json:"failed"`
	AvgConfidence    float64 `json:"avg_confidence"`
	AvgMismatchCount float64 `json:"avg_mismatch_count"`
}

// FieldCount is how often a field was mismatched.
type FieldCount struct {
	Field string `json:"field"`
	Count int    `json:"count"`
}

// DailyCount is one day bucket, Day formatted YYYY-MM-DD.
type DailyCount struct {
	Day    string `json:"day"`
	Total  int    `json:"total"`
	Passed int    `json:"passed"`
	Failed int    `json:"failed"`
}

// Stats is the monitoring view over a window of days.
type Stats struct {
	Days                int          `json:"days"`
	Total               int          `json:"total"`
	Passed              int          `json:"passed"`
	Failed              int          `json:"failed"`
	PassRate            float64      `json:"pass_rate"`
	AvgConfidence       float64      `json:"avg_confidence"`
	AvgMismatchCount    float64      `json:"avg_mismatch_count"`
	TopMismatchedFields []FieldCount `json:"top_mismatched_fields"`
}

// Repository port for the append-only audit store. Failed counts include
// StatusError entries.
type Repository interface {
	Append(ctx context.Context, e Entry) error
	Summary(ctx context.Context, since time.Time) (Summary, error)
	TopFields(ctx context.Context, since time.Time, limit int) ([]FieldCount, error)
	Daily(ctx context.Context, since time.Time) ([]DailyCount, error)
	List(ctx context.Context, since time.Time, limit int) ([]Entry, error)
}
