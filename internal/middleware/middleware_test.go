package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserFromContext(r.Context()))) //nolint:errcheck
	})
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"u-1": "key-one", "u-2": "key-two"})(echoUser())

	cases := []struct {
		name, path, header string
		code               int
		body               string
	}{
		{"bearer", "/v1/ask", "Bearer key-two", 200, "u-2"},
		{"bare key", "/v1/ask", "key-one", 200, "u-1"},
		{"missing", "/v1/ask", "", 401, ""},
		{"wrong", "/v1/ask", "Bearer nope", 401, ""},
		{"public", "/health", "", 200, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.code, rec.Code)
			if tc.code == 200 {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestRateLimitMiddleware_PerUser(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := RateLimitMiddleware(rl)(echoUser())

	call := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
		req = req.WithContext(WithUser(req.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, 200, call("u-1").Code)
	assert.Equal(t, 200, call("u-1").Code)
	limited := call("u-1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	// Buckets are independent per user.
	assert.Equal(t, 200, call("u-2").Code)
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Allow("a")
	rl.Allow("b")
	assert.Equal(t, 0, rl.Sweep(time.Hour))
	assert.Equal(t, 2, rl.Sweep(-time.Second))
}

type askBody struct {
	Query string `json:"query" validate:"required,max=2000"`
	Days  int    `json:"days" validate:"omitempty,min=1,max=365"`
}

func TestDecodeJSON(t *testing.T) {
	decode := func(body string) (askBody, error) {
		var b askBody
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := DecodeJSON(httptest.NewRecorder(), req, &b)
		return b, err
	}

	b, err := decode(`{"query":"my sales"}`)
	require.NoError(t, err)
	assert.Equal(t, "my sales", b.Query)

	_, err = decode(`{"query":""}`)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorContains(t, err, "query: required")

	_, err = decode(`{"query":"x","days":900}`)
	assert.ErrorContains(t, err, "days: max=365")

	_, err = decode(`{"query":"x","extra":1}`)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = decode(`{"query":"x"}{"query":"y"}`)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = decode(`not json`)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSanitizeAndIDs(t *testing.T) {
	assert.Equal(t, "my sales", SanitizeString(" my\x00 sales\x07 "))
	assert.NoError(t, ValidateUserID("u-1.admin"))
	assert.Error(t, ValidateUserID(""))
	assert.Error(t, ValidateUserID("u 1"))
	assert.Equal(t, 50, ValidateLimit(0, 50, 500))
	assert.Equal(t, 500, ValidateLimit(9000, 50, 500))
}

type recordedRequest struct {
	method, route string
	code          int
}

type fakeObserver struct {
	mu       sync.Mutex
	requests []recordedRequest
	inflight float64
}

func (f *fakeObserver) ObserveRequest(method, route string, code int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{method, route, code})
}

func (f *fakeObserver) InFlight(d float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight += d
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	obs := &fakeObserver{}
	r := chi.NewRouter()
	r.Use(MetricsMiddleware(obs))
	r.Get("/v1/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/things/42", nil))

	require.Len(t, obs.requests, 1)
	assert.Equal(t, recordedRequest{"GET", "/v1/things/{id}", http.StatusTeapot}, obs.requests[0])
	assert.Equal(t, 0.0, obs.inflight)
}

func TestHealthHandlers(t *testing.T) {
	ok := CheckerFunc(func(context.Context) error { return nil })
	bad := CheckerFunc(func(context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"db": ok, "storage": bad})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storage":{"status":"unhealthy","message":"down"}`)

	rec = httptest.NewRecorder()
	ReadinessHandler(map[string]HealthChecker{"db": ok})(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)

	rec = httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, "ok", rec.Body.String())
}
