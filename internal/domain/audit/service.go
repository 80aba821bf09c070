package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rotisserie/eris"
)

const (
	DefaultDays  = 7
	MaxDays      = 365
	TopFieldsMax = 5
	MaxEntries   = 500
)

// Archiver stores an export blob and returns where it went.
type Archiver interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// Service answers monitoring queries over the audit store.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

// ClampDays applies the default window and the upper bound.
func ClampDays(days int) int {
	if days <= 0 {
		return DefaultDays
	}
	if days > MaxDays {
		return MaxDays
	}
	return days
}

func (s *Service) since(days int) time.Time {
	return s.now().UTC().AddDate(0, 0, -ClampDays(days))
}

// Stats aggregates the last days of entries.
func (s *Service) Stats(ctx context.Context, days int) (*Stats, error) {
	days = ClampDays(days)
	since := s.since(days)

	sum, err := s.repo.Summary(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "audit: summary")
	}
	top, err := s.repo.TopFields(ctx, since, TopFieldsMax)
	if err != nil {
		return nil, eris.Wrap(err, "audit: top fields")
	}
	if top == nil {
		top = []FieldCount{}
	}

	st := &Stats{
		Days:                days,
		Total:               sum.Total,
		Passed:              sum.Passed,
		Failed:              sum.Failed,
		AvgConfidence:       round(sum.AvgConfidence),
		AvgMismatchCount:    round(sum.AvgMismatchCount),
		TopMismatchedFields: top,
	}
	if sum.Total > 0 {
		st.PassRate = round(float64(sum.Passed) / float64(sum.Total))
	}
	return st, nil
}

// Daily returns day-bucketed pass/fail counts, oldest first.
func (s *Service) Daily(ctx context.Context, days int) ([]DailyCount, error) {
	out, err := s.repo.Daily(ctx, s.since(days))
	if err != nil {
		return nil, eris.Wrap(err, "audit: daily")
	}
	return out, nil
}

// Entries lists the most recent entries, newest first.
func (s *Service) Entries(ctx context.Context, days, limit int) ([]Entry, error) {
	if limit <= 0 || limit > MaxEntries {
		limit = MaxEntries
	}
	out, err := s.repo.List(ctx, s.since(days), limit)
	if err != nil {
		return nil, eris.Wrap(err, "audit: list")
	}
	return out, nil
}

// Export writes the window as JSON lines through the archiver and returns the
// object location and the number of entries written.
func (s *Service) Export(ctx context.Context, a Archiver, days int) (string, int, error) {
	entries, err := s.Entries(ctx, days, MaxEntries)
	if err != nil {
		return "", 0, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return "", 0, eris.Wrapf(err, "audit: encode %s", e.ID)
		}
	}

	key := fmt.Sprintf("audit/%s-%dd.jsonl", s.now().UTC().Format("20060102T150405Z"), ClampDays(days))
	loc, err := a.Put(ctx, key, &buf, int64(buf.Len()), "application/x-ndjson")
	if err != nil {
		return "", 0, eris.Wrap(err, "audit: archive export")
	}
	return loc, len(entries), nil
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
