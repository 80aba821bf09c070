package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/advisor-guard/internal/domain/validation"
)

func TestMetrics_PipelineCounters(t *testing.T) {
	m := New()

	m.Outcome("failed", validation.EnforcementStrict)
	m.Outcome("unavailable", "")
	m.Mismatch("sales", validation.SeverityHigh)
	m.Mismatch("sales", validation.SeverityHigh)
	m.Stage("model", 2*time.Second, errors.New("boom"))
	m.AuditFailure(errors.New("locked"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("failed", "strict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("unavailable", "none")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mismatches.WithLabelValues("sales", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditFailures))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestMetrics_HandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveRequest("POST", "/v1/ask", 200, 150*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `advisor_guard_http_requests_total{code="200",method="POST",route="/v1/ask"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
