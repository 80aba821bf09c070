package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Gateway is the only sanctioned path from a Provider to the rest of the
// pipeline. Everything it returns is whitelisted and stamped.
type Gateway struct {
	provider Provider
	now      func() time.Time
}

func NewGateway(p Provider, now func() time.Time) *Gateway {
	if now == nil {
		now = time.Now
	}
	return &Gateway{provider: p, now: now}
}

// Fetch returns sanitized metrics. When required fields are missing it returns
// both the partial metrics and an error wrapping ErrIncompleteMetrics.
func (g *Gateway) Fetch(ctx context.Context, req Request) (*Metrics, error) {
	rec, err := g.provider.Fetch(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(ErrMetricsUnavailable, "metrics: fetch %s/%s: %v", req.Kind, req.ID, err)
	}
	if rec == nil || len(rec.Fields) == 0 {
		return nil, eris.Wrapf(ErrMetricsUnavailable, "metrics: no data for %s/%s %s", req.Kind, req.ID, req.Period)
	}

	m := g.sanitize(req, rec)
	if len(m.Values) == 0 {
		return nil, eris.Wrapf(ErrMetricsUnavailable, "metrics: no approved fields for %s/%s", req.Kind, req.ID)
	}

	for _, f := range Required(req.Kind) {
		if _, ok := m.Values[f]; !ok {
			m.Missing = append(m.Missing, f)
		}
	}
	for f := range m.Values {
		if IsAdvanced(f) {
			m.Advanced = append(m.Advanced, f)
		}
	}
	sortFields(m.Advanced)

	if len(m.Missing) > 0 {
		zap.L().Warn("metrics: required fields missing",
			zap.String("kind", string(req.Kind)),
			zap.String("id", req.ID),
			zap.Any("missing", m.Missing),
		)
		return m, eris.Wrapf(ErrIncompleteMetrics, "metrics: %s/%s missing %d field(s)", req.Kind, req.ID, len(m.Missing))
	}
	return m, nil
}

// Goals fetches per-entity targets through the same whitelist. A nil result
// without error means no goals are set.
func (g *Gateway) Goals(ctx context.Context, req Request) (*Metrics, error) {
	rec, err := g.provider.Goals(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(ErrMetricsUnavailable, "metrics: goals %s/%s: %v", req.Kind, req.ID, err)
	}
	if rec == nil || len(rec.Fields) == 0 {
		return nil, nil
	}
	return g.sanitize(req, rec), nil
}

func (g *Gateway) sanitize(req Request, rec *Record) *Metrics {
	m := &Metrics{
		Kind:     req.Kind,
		EntityID: req.ID,
		Period:   req.Period,
		Values:   make(map[Field]Value, len(rec.Fields)),
	}

	for name, raw := range rec.Fields {
		if IsForbidden(name) {
			m.Dropped = append(m.Dropped, name)
			zap.L().Warn("metrics: forbidden field dropped", zap.String("field", name), zap.String("id", req.ID))
			continue
		}
		f, typ, ok := Lookup(name)
		if !ok {
			m.Dropped = append(m.Dropped, name)
			zap.L().Debug("metrics: unknown field rejected", zap.String("field", name))
			continue
		}
		if raw == nil {
			continue
		}
		v, err := convert(typ, raw)
		if err != nil {
			m.Dropped = append(m.Dropped, name)
			zap.L().Warn("metrics: bad value dropped", zap.String("field", name), zap.Error(err))
			continue
		}
		m.Values[f] = v
	}
	sort.Strings(m.Dropped)

	integrity := IntegrityVerified
	if rec.Kind != req.Kind || rec.ID != req.ID {
		integrity = IntegrityUnverified
		zap.L().Warn("metrics: record does not match request",
			zap.String("want", fmt.Sprintf("%s/%s", req.Kind, req.ID)),
			zap.String("got", fmt.Sprintf("%s/%s", rec.Kind, rec.ID)),
		)
	}
	m.Provenance = &Provenance{
		Endpoint:    g.provider.Endpoint(req),
		RetrievedAt: g.now().UTC(),
		Integrity:   integrity,
	}
	return m
}

func convert(typ Type, raw any) (Value, error) {
	switch typ {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, eris.Errorf("metrics: want string, got %T", raw)
		}
		return Value{Type: typ, Text: strings.TrimSpace(s)}, nil
	case TypeTimestamp:
		switch t := raw.(type) {
		case time.Time:
			return Value{Type: typ, Text: t.UTC().Format(time.RFC3339)}, nil
		case string:
			return Value{Type: typ, Text: t}, nil
		}
		return Value{}, eris.Errorf("metrics: want timestamp, got %T", raw)
	}

	n, err := toFloat(raw)
	if err != nil {
		return Value{}, err
	}
	return Value{Type: typ, Number: n}, nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case []byte:
		return toFloat(string(v))
	case string:
		s := strings.NewReplacer("$", "", ",", "", "%", "").Replace(strings.TrimSpace(v))
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, eris.Wrapf(err, "metrics: parse %q", v)
		}
		return n, nil
	}
	return 0, eris.Errorf("metrics: want number, got %T", raw)
}

func sortFields(fs []Field) {
	sort.Slice(fs, func(i, j int) bool { return fs[i] < fs[j] })
}
