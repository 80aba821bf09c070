package answering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/advisor-guard/internal/domain/ai"
	"github.com/bryanwahyu/advisor-guard/internal/domain/answer"
	"github.com/bryanwahyu/advisor-guard/internal/domain/audit"
	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
	"github.com/bryanwahyu/advisor-guard/internal/domain/settings"
	"github.com/bryanwahyu/advisor-guard/internal/domain/validation"
)

var ErrUnknownUser = eris.New("unknown or inactive user")

const (
	DefaultMetricsTimeout = 10 * time.Second
	DefaultModelTimeout   = 180 * time.Second
)

// Answer status values.
const (
	StatusPassed      = "passed"
	StatusFailed      = "failed"
	StatusUnavailable = "unavailable"
)

// Observer receives pipeline outcomes, e.g. for Prometheus.
type Observer interface {
	Outcome(status string, enforcement validation.EnforcementMode)
	Mismatch(field string, severity validation.Severity)
	Stage(stage string, d time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) Outcome(string, validation.EnforcementMode) {}
func (noopObserver) Mismatch(string, validation.Severity)       {}
func (noopObserver) Stage(string, time.Duration, error)         {}

// Service runs the guarded answering pipeline. It is safe for concurrent use;
// requests share nothing but the settings cache and the audit store.
type Service struct {
	Directory entity.Directory
	Resolver  *entity.Resolver
	Gateway   *metrics.Gateway
	Composer  *answer.Composer
	Model     ai.Client
	Validator *validation.Validator
	Settings  settings.Store
	Recorder  *audit.Recorder
	Observer  Observer

	MetricsTimeout time.Duration
	ModelTimeout   time.Duration
}

//
// ==== USE CASES ====
//

// AskCommand is one user question.
type AskCommand struct {
	UserID string
	Query  string
}

// ValidationSummary is the user-facing view of a ValidationResult.
type ValidationSummary struct {
	Status             string                `json:"status"`
	Violations         []validation.Mismatch `json:"violations"`
	ApprovedFieldCount int                   `json:"approvedFieldCount"`
	Confidence         float64               `json:"confidence"`
	Disclaimer         string                `json:"disclaimer,omitempty"`
	Enforcement        string                `json:"enforcement"`
	AdminOverride      bool                  `json:"adminOverride,omitempty"`
}

type AskResult struct {
	Answer     string            `json:"answer"`
	Validation ValidationSummary `json:"validation"`
	Entity     entity.Reference  `json:"entity"`
	Model      string            `json:"model,omitempty"`
}

// Ask resolves, fetches, composes, generates, validates and corrects. Only a
// failed model call or a malformed constrained reply is returned as an error.
func (s *Service) Ask(ctx context.Context, cmd AskCommand) (*AskResult, error) {
	obs := s.observer()

	user, err := s.Directory.UserByID(ctx, cmd.UserID)
	if err != nil {
		return nil, eris.Wrapf(err, "answering: load user %s", cmd.UserID)
	}
	if user == nil || !user.Active {
		return nil, eris.Wrapf(ErrUnknownUser, "answering: user %s", cmd.UserID)
	}

	cfg, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "answering: settings")
	}

	ref := s.Resolver.Resolve(ctx, cmd.Query, *user)
	in := answer.Input{
		Query: cmd.Query,
		Ref:   ref,
		Role:  user.Role,
		Self:  ref.Kind == entity.KindAdvisor && ref.ID == user.ID,
	}

	if validation.IsPerformanceQuery(cmd.Query, cfg.ExtraKeywords) {
		m, ok := s.fetch(ctx, ref)
		if !ok {
			obs.Outcome(StatusUnavailable, "")
			return &AskResult{
				Answer:     cfg.Disclaimers.Unavailable,
				Validation: ValidationSummary{Status: StatusUnavailable, Violations: []validation.Mismatch{}},
				Entity:     ref,
			}, nil
		}
		in.Metrics = m
		if cfg.IncludeGoals {
			in.Goals = s.goals(ctx, ref)
		}
		in.Aggregate, in.AggregateLabel = s.aggregate(ctx, ref)
	}

	prompt, err := s.Composer.Compose(ctx, in)
	if err != nil {
		return nil, eris.Wrap(err, "answering: compose")
	}

	comp, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	res, verr := s.Validator.Validate(ctx, validation.Input{
		Query:       cmd.Query,
		Text:        comp.Text,
		Ref:         ref,
		Metrics:     in.Metrics,
		Constrained: prompt.Constrained,
		UserID:      user.ID,
	})
	mode := validation.EnforcementFor(user.Role, cfg)

	switch {
	case errors.Is(verr, validation.ErrMalformedModelOutput):
		s.record(ctx, ref, res, mode, false, comp.Model, audit.StatusError, verr)
		obs.Outcome(string(audit.StatusError), mode)
		return nil, eris.Wrap(verr, "answering: constrained reply")
	case verr != nil:
		zap.L().Error("answering: validation system error, answer flagged untrusted", zap.String("user_id", user.ID), zap.Error(verr))
	}

	corr := validation.NewCorrector(cfg).Correct(res.Answer, res, mode)

	status := StatusPassed
	if !res.IsValid {
		status = StatusFailed
	}
	auditStatus := audit.Status(status)
	if verr != nil {
		auditStatus = audit.StatusError
	}
	s.record(ctx, ref, res, mode, corr.AdminOverride, comp.Model, auditStatus, verr)

	obs.Outcome(status, mode)
	for _, m := range res.Mismatches {
		obs.Mismatch(m.Field, m.Severity)
	}

	violations := res.Mismatches
	if violations == nil {
		violations = []validation.Mismatch{}
	}
	return &AskResult{
		Answer: corr.Text,
		Validation: ValidationSummary{
			Status:             status,
			Violations:         violations,
			ApprovedFieldCount: in.Metrics.Len(),
			Confidence:         res.ConfidenceScore,
			Disclaimer:         res.Disclaimer,
			Enforcement:        string(mode),
			AdminOverride:      corr.AdminOverride,
		},
		Entity: ref,
		Model:  comp.Model,
	}, nil
}

// fetch returns trusted metrics or false. Incomplete metrics are used as-is.
func (s *Service) fetch(ctx context.Context, ref entity.Reference) (*metrics.Metrics, bool) {
	ctx, cancel := context.WithTimeout(ctx, orDefault(s.MetricsTimeout, DefaultMetricsTimeout))
	defer cancel()

	start := time.Now()
	m, err := s.Gateway.Fetch(ctx, metrics.Request{Kind: ref.Kind, ID: ref.ID, Period: ref.Period})
	s.observer().Stage("metrics", time.Since(start), err)

	switch {
	case errors.Is(err, metrics.ErrIncompleteMetrics):
		zap.L().Info("answering: answering with incomplete metrics", zap.String("id", ref.ID), zap.Error(err))
	case err != nil:
		zap.L().Warn("answering: metrics unavailable", zap.String("id", ref.ID), zap.Error(err))
		return nil, false
	}
	if !m.Trusted() {
		zap.L().Warn("answering: metrics untrusted, refusing to surface them", zap.String("id", ref.ID))
		return nil, false
	}
	return m, true
}

func (s *Service) goals(ctx context.Context, ref entity.Reference) *metrics.Metrics {
	ctx, cancel := context.WithTimeout(ctx, orDefault(s.MetricsTimeout, DefaultMetricsTimeout))
	defer cancel()

	g, err := s.Gateway.Goals(ctx, metrics.Request{Kind: ref.Kind, ID: ref.ID, Period: ref.Period})
	if err != nil {
		zap.L().Debug("answering: goals unavailable", zap.String("id", ref.ID), zap.Error(err))
		return nil
	}
	return g
}

// aggregate fetches the parent market of a store as peer context. Advisor
// references never get one.
func (s *Service) aggregate(ctx context.Context, ref entity.Reference) (*metrics.Metrics, string) {
	if ref.Kind != entity.KindStore {
		return nil, ""
	}
	store, err := s.Directory.UnitByID(ctx, entity.KindStore, ref.ID)
	if err != nil || store == nil || store.ParentID == "" {
		return nil, ""
	}
	market, err := s.Directory.UnitByID(ctx, entity.KindMarket, store.ParentID)
	if err != nil || market == nil {
		return nil, ""
	}

	ctx, cancel := context.WithTimeout(ctx, orDefault(s.MetricsTimeout, DefaultMetricsTimeout))
	defer cancel()
	m, err := s.Gateway.Fetch(ctx, metrics.Request{Kind: entity.KindMarket, ID: market.ID, Period: ref.Period})
	if err != nil && !errors.Is(err, metrics.ErrIncompleteMetrics) {
		return nil, ""
	}
	if !m.Trusted() {
		return nil, ""
	}
	return m, fmt.Sprintf("market %s", market.Name)
}

// complete calls the model once. There is no retry.
func (s *Service) complete(ctx context.Context, p answer.Prompt) (*ai.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, orDefault(s.ModelTimeout, DefaultModelTimeout))
	defer cancel()

	start := time.Now()
	comp, err := s.Model.Complete(ctx, ai.Request{System: p.System, User: p.User, Params: p.Params})
	s.observer().Stage("model", time.Since(start), err)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, eris.Wrapf(ai.ErrModelTimeout, "answering: model: %v", err)
		}
		return nil, eris.Wrap(err, "answering: model")
	}
	if comp == nil || comp.Text == "" {
		return nil, eris.Wrap(ai.ErrEmptyCompletion, "answering: model")
	}
	return comp, nil
}

func (s *Service) record(ctx context.Context, ref entity.Reference, res validation.Result, mode validation.EnforcementMode, override bool, model string, status audit.Status, cause error) {
	if s.Recorder == nil {
		return
	}
	e := audit.Entry{
		CreatedAt:     res.Audit.Timestamp,
		UserID:        res.Audit.UserID,
		Query:         res.Audit.Query,
		EntityKind:    string(ref.Kind),
		EntityID:      ref.ID,
		Period:        ref.Period.String(),
		Status:        status,
		Confidence:    res.ConfidenceScore,
		Mismatches:    res.Mismatches,
		Enforcement:   string(mode),
		AdminOverride: override,
		Constrained:   res.Constrained,
		Model:         model,
		Disclaimer:    res.Disclaimer,
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	s.Recorder.Record(ctx, e)
}

func (s *Service) observer() Observer {
	if s.Observer == nil {
		return noopObserver{}
	}
	return s.Observer
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
