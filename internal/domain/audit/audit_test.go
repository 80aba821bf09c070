package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bryanwahyu/advisor-guard/internal/domain/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type memRepo struct {
	mu      sync.Mutex
	entries []Entry
	err     error
	ctxErr  error
	since   time.Time
}

func (m *memRepo) Append(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRepo) Summary(_ context.Context, since time.Time) (Summary, error) {
	m.since = since
	var s Summary
	var conf, mis float64
	for _, e := range m.entries {
		s.Total++
		if e.Status == StatusPassed {
			s.Passed++
		} else {
			s.Failed++
		}
		conf += e.Confidence
		mis += float64(e.MismatchCount)
	}
	if s.Total > 0 {
		s.AvgConfidence = conf / float64(s.Total)
		s.AvgMismatchCount = mis / float64(s.Total)
	}
	return s, m.err
}

func (m *memRepo) TopFields(context.Context, time.Time, int) ([]FieldCount, error) {
	return nil, m.err
}

func (m *memRepo) Daily(context.Context, time.Time) ([]DailyCount, error) {
	return []DailyCount{{Day: "2025-09-15", Total: len(m.entries)}}, m.err
}

func (m *memRepo) List(_ context.Context, _ time.Time, limit int) ([]Entry, error) {
	if len(m.entries) < limit {
		limit = len(m.entries)
	}
	return m.entries[:limit], m.err
}

var fixed = time.Date(2025, time.September, 15, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return fixed }

func TestRecorder_FillsIDAndTimestamp(t *testing.T) {
	repo := &memRepo{}
	r := NewRecorder(repo, time.Second, clock)

	r.Record(context.Background(), Entry{UserID: "u-1", Status: StatusFailed, Mismatches: []validation.Mismatch{{Field: "sales"}}})
	r.Wait()

	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, fixed, e.CreatedAt)
	assert.Equal(t, 1, e.MismatchCount)
}

func TestRecorder_SurvivesCallerCancellation(t *testing.T) {
	repo := &memRepo{}
	r := NewRecorder(repo, time.Second, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Record(ctx, Entry{UserID: "u-1", Status: StatusPassed})
	r.Wait()

	require.Len(t, repo.entries, 1)
	assert.NoError(t, repo.ctxErr)
}

func TestRecorder_FailuresAreSwallowedAndCounted(t *testing.T) {
	repo := &memRepo{err: errors.New("database is locked")}
	r := NewRecorder(repo, time.Second, clock)

	var got error
	var mu sync.Mutex
	r.OnFailure = func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	}

	r.Record(context.Background(), Entry{UserID: "u-1"})
	r.Record(context.Background(), Entry{UserID: "u-2"})
	r.Wait()

	assert.Equal(t, int64(2), r.Failures())
	assert.ErrorIs(t, got, ErrPersistence)
}

func TestService_Stats(t *testing.T) {
	repo := &memRepo{entries: []Entry{
		{Status: StatusPassed, Confidence: 1},
		{Status: StatusPassed, Confidence: 1},
		{Status: StatusFailed, Confidence: 0.7, MismatchCount: 1},
		{Status: StatusError, Confidence: 0, MismatchCount: 1},
	}}
	st, err := NewService(repo, clock).Stats(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultDays, st.Days)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 2, st.Passed)
	assert.Equal(t, 2, st.Failed)
	assert.Equal(t, 0.5, st.PassRate)
	assert.Equal(t, 0.675, st.AvgConfidence)
	assert.Equal(t, 0.5, st.AvgMismatchCount)
	assert.NotNil(t, st.TopMismatchedFields)
	assert.Equal(t, fixed.AddDate(0, 0, -7), repo.since)
}

func TestService_StatsError(t *testing.T) {
	_, err := NewService(&memRepo{err: errors.New("gone")}, clock).Stats(context.Background(), 30)
	assert.Error(t, err)
}

func TestClampDays(t *testing.T) {
	assert.Equal(t, 7, ClampDays(-1))
	assert.Equal(t, 30, ClampDays(30))
	assert.Equal(t, 365, ClampDays(1000))
}

type memArchive struct {
	key  string
	body bytes.Buffer
	typ  string
}

func (a *memArchive) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	a.key, a.typ = key, contentType
	_, err := io.Copy(&a.body, r)
	return "s3://audit/" + key, err
}

func TestService_ExportWritesJSONLines(t *testing.T) {
	repo := &memRepo{entries: []Entry{{ID: "a", Status: StatusPassed}, {ID: "b", Status: StatusFailed}}}
	arch := &memArchive{}

	loc, n, err := NewService(repo, clock).Export(context.Background(), arch, 7)
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, "audit/20250915T080000Z-7d.jsonl", arch.key)
	assert.Equal(t, "s3://audit/"+arch.key, loc)
	assert.Equal(t, "application/x-ndjson", arch.typ)
	lines := strings.Split(strings.TrimSpace(arch.body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"a"`)
}
