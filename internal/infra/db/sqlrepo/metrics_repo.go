package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
)

// MetricsRepository implements metrics.Provider over the performance_metrics
// table, one row per (entity, month, field). Values are stored as text and
// converted by the gateway.
type MetricsRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewMetricsRepository(db *sql.DB, d Dialect) *MetricsRepository {
	return &MetricsRepository{db: db, dialect: d}
}

func (r *MetricsRepository) Endpoint(req metrics.Request) string {
	return fmt.Sprintf("%s://performance_metrics/%s/%s?period=%s", r.dialect, req.Kind, req.ID, req.Period)
}

func (r *MetricsRepository) Fetch(ctx context.Context, req metrics.Request) (*metrics.Record, error) {
	return r.load(ctx, req, false)
}

func (r *MetricsRepository) Goals(ctx context.Context, req metrics.Request) (*metrics.Record, error) {
	return r.load(ctx, req, true)
}

// Put upserts one month of values for an entity.
func (r *MetricsRepository) Put(ctx context.Context, kind entity.Kind, id string, p entity.Period, goal bool, values map[string]string) error {
	q := upsertSQL(r.dialect, "performance_metrics",
		[]string{"entity_kind", "entity_id", "period_year", "period_month", "is_goal", "field"},
		[]string{"entity_kind", "entity_id", "period_year", "period_month", "is_goal", "field", "value"})

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlrepo: begin metrics put")
	}
	defer tx.Rollback() //nolint:errcheck

	for f, v := range values {
		if _, err := tx.ExecContext(ctx, q, string(kind), id, p.Year, p.Month, goal, f, v); err != nil {
			return eris.Wrapf(err, "sqlrepo: put %s/%s %s", kind, id, f)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlrepo: commit metrics put")
}

func (r *MetricsRepository) load(ctx context.Context, req metrics.Request, goal bool) (*metrics.Record, error) {
	period, ok, err := r.period(ctx, req, goal)
	if err != nil || !ok {
		return nil, err
	}

	q := r.dialect.Rebind(`
SELECT field, value FROM performance_metrics
WHERE entity_kind=? AND entity_id=? AND period_year=? AND period_month=? AND is_goal=?`)
	rows, err := r.db.QueryContext(ctx, q, string(req.Kind), req.ID, period.Year, period.Month, goal)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlrepo: metrics %s/%s", req.Kind, req.ID)
	}
	defer rows.Close()

	fields := map[string]any{}
	for rows.Next() {
		var f, v string
		if err := rows.Scan(&f, &v); err != nil {
			return nil, eris.Wrap(err, "sqlrepo: scan metric")
		}
		fields[f] = v
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlrepo: metrics rows")
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &metrics.Record{Kind: req.Kind, ID: req.ID, Fields: fields}, nil
}

// period returns the requested month, or the latest stored month when the
// request leaves it open.
func (r *MetricsRepository) period(ctx context.Context, req metrics.Request, goal bool) (entity.Period, bool, error) {
	if req.Period.Month != 0 {
		return req.Period, true, nil
	}
	q := `SELECT period_year, period_month FROM performance_metrics WHERE entity_kind=? AND entity_id=? AND is_goal=?`
	args := []any{string(req.Kind), req.ID, goal}
	if req.Period.Year != 0 {
		q += ` AND period_year=?`
		args = append(args, req.Period.Year)
	}
	q += ` ORDER BY period_year DESC, period_month DESC LIMIT 1`

	var p entity.Period
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(q), args...).Scan(&p.Year, &p.Month)
	if errors.Is(err, sql.ErrNoRows) {
		return p, false, nil
	}
	if err != nil {
		return p, false, eris.Wrapf(err, "sqlrepo: latest period %s/%s", req.Kind, req.ID)
	}
	return p, true, nil
}
