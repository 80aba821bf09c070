package metricsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/metrics/advisor/u-1":
			assert.Equal(t, "8", r.URL.Query().Get("month"))
			assert.Equal(t, "2025", r.URL.Query().Get("year"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"kind":"advisor","id":"u-1","fields":{"sales":5385,"gpSales":"2,600.50","gpPercent":48.3,"invoices":27,"retailTires":38,"allTires":40,"oilChanges":12,"alignments":5,"brakeServices":3,"batteries":2,"rawSales":1}}`)) //nolint:errcheck
		case "/v1/goals/advisor/u-1":
			w.Write([]byte(`{"kind":"advisor","id":"u-1","fields":{"sales":6000}}`)) //nolint:errcheck
		case "/v1/metrics/advisor/broken":
			http.Error(w, "upstream exploded", http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
}

func aug(id string) metrics.Request {
	return metrics.Request{Kind: entity.KindAdvisor, ID: id, Period: entity.Period{Month: 8, Year: 2025}}
}

func TestClient_FetchThroughGateway(t *testing.T) {
	ts := server(t)
	defer ts.Close()

	c := NewClient(ts.URL+"/", "secret", time.Second)
	assert.Equal(t, ts.URL+"/v1/metrics/advisor/u-1?month=8&year=2025", c.Endpoint(aug("u-1")))

	m, err := metrics.NewGateway(c, nil).Fetch(context.Background(), aug("u-1"))
	require.NoError(t, err)
	assert.True(t, m.Trusted())
	sales, _ := m.Number(metrics.FieldSales)
	gp, _ := m.Number(metrics.FieldGPSales)
	assert.Equal(t, 5385.0, sales)
	assert.Equal(t, 2600.5, gp)
	assert.Equal(t, []string{"rawSales"}, m.Dropped)
}

func TestClient_Goals(t *testing.T) {
	ts := server(t)
	defer ts.Close()

	rec, err := NewClient(ts.URL, "secret", 0).Goals(context.Background(), aug("u-1"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Len(t, rec.Fields, 1)
}

func TestClient_NotFoundIsEmpty(t *testing.T) {
	ts := server(t)
	defer ts.Close()

	rec, err := NewClient(ts.URL, "secret", 0).Fetch(context.Background(), aug("u-404"))
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestClient_UpstreamErrorIsUnavailable(t *testing.T) {
	ts := server(t)
	defer ts.Close()

	c := NewClient(ts.URL, "secret", 0)
	_, err := c.Fetch(context.Background(), aug("broken"))
	assert.ErrorContains(t, err, "status 502")

	_, err = metrics.NewGateway(c, nil).Fetch(context.Background(), aug("broken"))
	assert.ErrorIs(t, err, metrics.ErrMetricsUnavailable)
}
