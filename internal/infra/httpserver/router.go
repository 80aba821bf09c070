package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/advisor-guard/internal/application/answering"
	"github.com/bryanwahyu/advisor-guard/internal/domain/ai"
	"github.com/bryanwahyu/advisor-guard/internal/domain/audit"
	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/domain/validation"
	"github.com/bryanwahyu/advisor-guard/internal/middleware"
)

var (
	errForbidden  = eris.New("admin role required")
	errNoArchiver = eris.New("audit export storage is not configured")
)

const maxQueryLen = 2000

// AskService answers user questions.
type AskService interface {
	Ask(ctx context.Context, cmd answering.AskCommand) (*answering.AskResult, error)
}

// AuditService serves monitoring aggregates.
type AuditService interface {
	Stats(ctx context.Context, days int) (*audit.Stats, error)
	Daily(ctx context.Context, days int) ([]audit.DailyCount, error)
	Entries(ctx context.Context, days, limit int) ([]audit.Entry, error)
	Export(ctx context.Context, a audit.Archiver, days int) (string, int, error)
}

// Users looks up the caller's role.
type Users interface {
	UserByID(ctx context.Context, id string) (*entity.User, error)
}

// MetricsExporter is the Prometheus side of observability.Metrics.
type MetricsExporter interface {
	middleware.RequestObserver
	Handler() http.Handler
}

type Deps struct {
	Ask      AskService
	Audit    AuditService
	Users    Users
	Archiver audit.Archiver

	APIKeys     map[string]string
	RateLimiter *middleware.RateLimiter
	Metrics     MetricsExporter
	CORSOrigins []string

	// Health checks feed /health; Ready checks gate /ready.
	Health map[string]middleware.HealthChecker
	Ready  map[string]middleware.HealthChecker
}

type Router struct {
	deps Deps
}

func NewRouter(d Deps) http.Handler {
	r := &Router{deps: d}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	if len(d.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	if d.Metrics != nil {
		mux.Use(middleware.MetricsMiddleware(d.Metrics))
	}
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.APIKeyAuth(d.APIKeys))
	if d.RateLimiter != nil {
		mux.Use(middleware.RateLimitMiddleware(d.RateLimiter))
	}

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/ready", middleware.ReadinessHandler(d.Ready))
	mux.Get("/live", middleware.LivenessHandler)
	if d.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/ask", r.wrap(r.handleAsk))
		rt.Route("/audit", func(ar chi.Router) {
			ar.Get("/stats", r.wrap(r.admin(r.handleStats)))
			ar.Get("/daily", r.wrap(r.admin(r.handleDaily)))
			ar.Get("/entries", r.wrap(r.admin(r.handleEntries)))
			ar.Post("/export", r.wrap(r.admin(r.handleExport)))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		code, msg := statusFor(err)
		if code >= http.StatusInternalServerError {
			zap.L().Error("http: handler failed",
				zap.String("path", req.URL.Path),
				zap.String("request_id", chimw.GetReqID(req.Context())),
				zap.Error(err),
			)
		}
		writeJSON(w, code, map[string]string{"error": msg})
	}
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, middleware.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, answering.ErrUnknownUser):
		return http.StatusForbidden, "unknown or inactive user"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, errForbidden.Error()
	case errors.Is(err, ai.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "ai quota exceeded"
	case errors.Is(err, ai.ErrModelTimeout):
		return http.StatusGatewayTimeout, "model timed out"
	case errors.Is(err, validation.ErrMalformedModelOutput), errors.Is(err, ai.ErrEmptyCompletion):
		return http.StatusBadGateway, "model returned an unusable answer"
	case errors.Is(err, errNoArchiver):
		return http.StatusServiceUnavailable, errNoArchiver.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

// admin rejects callers whose directory role is not admin.
func (r *Router) admin(h handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, req *http.Request) error {
		id := middleware.GetUserFromContext(req.Context())
		u, err := r.deps.Users.UserByID(req.Context(), id)
		if err != nil {
			return eris.Wrapf(err, "http: load user %s", id)
		}
		if u == nil || !u.Active {
			return eris.Wrapf(answering.ErrUnknownUser, "http: user %s", id)
		}
		if u.Role != entity.RoleAdmin {
			return errForbidden
		}
		return h(w, req)
	}
}

type askRequest struct {
	Query string `json:"query" validate:"required,max=2000"`
}

// POST /v1/ask
// Body: {"query": "<question>"}
func (r *Router) handleAsk(w http.ResponseWriter, req *http.Request) error {
	var body askRequest
	if err := middleware.DecodeJSON(w, req, &body); err != nil {
		return err
	}
	query := middleware.SanitizeString(body.Query)
	if query == "" || len(query) > maxQueryLen {
		return eris.Wrap(middleware.ErrInvalidRequest, "query: required")
	}

	res, err := r.deps.Ask.Ask(req.Context(), answering.AskCommand{
		UserID: middleware.GetUserFromContext(req.Context()),
		Query:  query,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

// GET /v1/audit/stats?days=7
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	st, err := r.deps.Audit.Stats(req.Context(), intParam(req, "days"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, st)
	return nil
}

// GET /v1/audit/daily?days=7
func (r *Router) handleDaily(w http.ResponseWriter, req *http.Request) error {
	days := audit.ClampDays(intParam(req, "days"))
	list, err := r.deps.Audit.Daily(req.Context(), days)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "buckets": list})
	return nil
}

// GET /v1/audit/entries?days=7&limit=100
func (r *Router) handleEntries(w http.ResponseWriter, req *http.Request) error {
	limit := middleware.ValidateLimit(intParam(req, "limit"), 100, audit.MaxEntries)
	list, err := r.deps.Audit.Entries(req.Context(), intParam(req, "days"), limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

type exportRequest struct {
	Days int `json:"days" validate:"omitempty,min=1,max=365"`
}

// POST /v1/audit/export
// Body: {"days": 30}
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	if r.deps.Archiver == nil {
		return errNoArchiver
	}
	var body exportRequest
	if req.ContentLength != 0 {
		if err := middleware.DecodeJSON(w, req, &body); err != nil {
			return err
		}
	}
	loc, n, err := r.deps.Audit.Export(req.Context(), r.deps.Archiver, body.Days)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]any{"location": loc, "entries": n})
	return nil
}

func intParam(req *http.Request, name string) int {
	n, _ := strconv.Atoi(req.URL.Query().Get(name))
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("http: encode response", zap.Error(err))
	}
}
