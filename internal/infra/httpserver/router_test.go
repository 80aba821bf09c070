package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bryanwahyu/advisor-guard/internal/application/answering"
	"github.com/bryanwahyu/advisor-guard/internal/domain/ai"
	"github.com/bryanwahyu/advisor-guard/internal/domain/audit"
	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/domain/validation"
	"github.com/bryanwahyu/advisor-guard/internal/middleware"
	"github.com/bryanwahyu/advisor-guard/internal/observability"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeAsk struct {
	res *answering.AskResult
	err error
	got answering.AskCommand
}

func (f *fakeAsk) Ask(_ context.Context, cmd answering.AskCommand) (*answering.AskResult, error) {
	f.got = cmd
	return f.res, f.err
}

type fakeAudit struct {
	days, limit int
	exported    audit.Archiver
}

func (f *fakeAudit) Stats(_ context.Context, days int) (*audit.Stats, error) {
	f.days = days
	return &audit.Stats{Days: audit.ClampDays(days), Total: 4, Passed: 3, Failed: 1, PassRate: 0.75,
		TopMismatchedFields: []audit.FieldCount{{Field: "sales", Count: 1}}}, nil
}

func (f *fakeAudit) Daily(_ context.Context, days int) ([]audit.DailyCount, error) {
	f.days = days
	return []audit.DailyCount{{Day: "2025-09-14", Total: 4, Passed: 3, Failed: 1}}, nil
}

func (f *fakeAudit) Entries(_ context.Context, days, limit int) ([]audit.Entry, error) {
	f.days, f.limit = days, limit
	return nil, nil
}

func (f *fakeAudit) Export(_ context.Context, a audit.Archiver, days int) (string, int, error) {
	f.exported, f.days = a, days
	return "s3://audit/export.jsonl", 4, nil
}

type fakeUsers map[string]*entity.User

func (f fakeUsers) UserByID(_ context.Context, id string) (*entity.User, error) {
	return f[id], nil
}

type nopArchiver struct{}

func (nopArchiver) Put(context.Context, string, io.Reader, int64, string) (string, error) {
	return "", nil
}

var users = fakeUsers{
	"u-1":     {ID: "u-1", FirstName: "Akeen", LastName: "Jackson", Role: entity.RoleAdvisor, Active: true},
	"u-admin": {ID: "u-admin", FirstName: "Sam", LastName: "Ortiz", Role: entity.RoleAdmin, Active: true},
}

func newTestRouter(ask *fakeAsk, aud *fakeAudit, arch audit.Archiver) http.Handler {
	return NewRouter(Deps{
		Ask:      ask,
		Audit:    aud,
		Users:    users,
		Archiver: arch,
		APIKeys:  map[string]string{"u-1": "advisor-key", "u-admin": "admin-key", "u-gone": "gone-key"},
		Metrics:  observability.New(),
	})
}

func do(t *testing.T, h http.Handler, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAsk(t *testing.T) {
	ask := &fakeAsk{res: &answering.AskResult{
		Answer: "Akeen Jackson sold 5385 (corrected from 23450) in August 2025.",
		Validation: answering.ValidationSummary{
			Status:             answering.StatusFailed,
			Violations:         []validation.Mismatch{{Field: "sales", Expected: 5385, Detected: 23450, Severity: validation.SeverityHigh}},
			ApprovedFieldCount: 10,
			Confidence:         0.7,
			Enforcement:        string(validation.EnforcementStrict),
		},
	}}
	rec := do(t, newTestRouter(ask, &fakeAudit{}, nil), http.MethodPost, "/v1/ask", "advisor-key",
		`{"query":"  what were Akeem Jackson's sales for august?\u0000 "}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "u-1", ask.got.UserID)
	assert.Equal(t, "what were Akeem Jackson's sales for august?", ask.got.Query)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, got["answer"], "corrected from 23450")
	v := got["validation"].(map[string]any)
	assert.Equal(t, "failed", v["status"])
	assert.Equal(t, 10.0, v["approvedFieldCount"])
	assert.Len(t, v["violations"], 1)
}

func TestAsk_BadRequests(t *testing.T) {
	h := newTestRouter(&fakeAsk{}, &fakeAudit{}, nil)
	cases := map[string]string{
		"empty":         `{"query":""}`,
		"blank":         `{"query":"   "}`,
		"unknown field": `{"query":"sales?","role":"admin"}`,
		"not json":      `sales?`,
		"two objects":   `{"query":"a"}{"query":"b"}`,
		"too long":      `{"query":"` + strings.Repeat("a", maxQueryLen+1) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/ask", "advisor-key", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestAsk_RequiresKey(t *testing.T) {
	h := newTestRouter(&fakeAsk{}, &fakeAudit{}, nil)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/v1/ask", "", `{"query":"hi"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/v1/ask", "nope", `{"query":"hi"}`).Code)
}

func TestAsk_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{eris.Wrap(answering.ErrUnknownUser, "answering: user u-1"), http.StatusForbidden},
		{eris.Wrap(ai.ErrQuotaExceeded, "answering: model"), http.StatusTooManyRequests},
		{eris.Wrapf(ai.ErrModelTimeout, "answering: model: %v", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{eris.Wrap(validation.ErrMalformedModelOutput, "answering: constrained reply"), http.StatusBadGateway},
		{eris.Wrap(ai.ErrEmptyCompletion, "answering: model"), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			h := newTestRouter(&fakeAsk{err: tc.err}, &fakeAudit{}, nil)
			rec := do(t, h, http.MethodPost, "/v1/ask", "advisor-key", `{"query":"sales for august"}`)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestAudit_AdminOnly(t *testing.T) {
	h := newTestRouter(&fakeAsk{}, &fakeAudit{}, nil)
	for _, path := range []string{"/v1/audit/stats", "/v1/audit/daily", "/v1/audit/entries"} {
		assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, path, "advisor-key", "").Code, path)
		assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, path, "gone-key", "").Code, path)
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, path, "admin-key", "").Code, path)
	}
}

func TestAudit_Stats(t *testing.T) {
	aud := &fakeAudit{}
	rec := do(t, newTestRouter(&fakeAsk{}, aud, nil), http.MethodGet, "/v1/audit/stats?days=30", "admin-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, aud.days)

	var st audit.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 0.75, st.PassRate)
	assert.Equal(t, "sales", st.TopMismatchedFields[0].Field)
}

func TestAudit_EntriesClampsLimit(t *testing.T) {
	aud := &fakeAudit{}
	h := newTestRouter(&fakeAsk{}, aud, nil)

	rec := do(t, h, http.MethodGet, "/v1/audit/entries?limit=100000", "admin-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audit.MaxEntries, aud.limit)
	assert.JSONEq(t, `[]`, rec.Body.String())

	do(t, h, http.MethodGet, "/v1/audit/entries", "admin-key", "")
	assert.Equal(t, 100, aud.limit)
}

func TestAudit_Export(t *testing.T) {
	aud := &fakeAudit{}
	h := newTestRouter(&fakeAsk{}, aud, nopArchiver{})

	rec := do(t, h, http.MethodPost, "/v1/audit/export", "admin-key", `{"days":30}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 30, aud.days)
	assert.NotNil(t, aud.exported)
	assert.Contains(t, rec.Body.String(), "s3://audit/export.jsonl")

	rec = do(t, h, http.MethodPost, "/v1/audit/export", "admin-key", `{"days":900}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAudit_ExportWithoutArchiver(t *testing.T) {
	rec := do(t, newTestRouter(&fakeAsk{}, &fakeAudit{}, nil), http.MethodPost, "/v1/audit/export", "admin-key", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPublicEndpoints(t *testing.T) {
	h := newTestRouter(&fakeAsk{}, &fakeAudit{}, nil)
	for _, path := range []string{"/health", "/ready", "/live"} {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, path, "", "").Code, path)
	}

	do(t, h, http.MethodPost, "/v1/ask", "advisor-key", `{"query":""}`)
	rec := do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/v1/ask"`)
}

func TestRateLimit(t *testing.T) {
	h := NewRouter(Deps{
		Ask:         &fakeAsk{res: &answering.AskResult{Answer: "ok"}},
		Audit:       &fakeAudit{},
		Users:       users,
		APIKeys:     map[string]string{"u-1": "advisor-key"},
		RateLimiter: middleware.NewRateLimiter(0.001, 2),
	})
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/ask", "advisor-key", `{"query":"hi"}`).Code)
	}
	rec := do(t, h, http.MethodPost, "/v1/ask", "advisor-key", `{"query":"hi"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
