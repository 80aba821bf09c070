package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/advisor-guard/internal/domain/audit"
	"github.com/bryanwahyu/advisor-guard/internal/domain/validation"
)

const auditColumns = `id, created_at, user_id, query_text, entity_kind, entity_id, period, status,
 confidence, mismatch_count, mismatches, enforcement, admin_override, constrained,
 model, disclaimer, error`

// AuditRepository implements audit.Repository. Entries are append-only;
// mismatched field names are denormalized into audit_mismatch_fields so the
// top-fields aggregate stays a plain GROUP BY.
type AuditRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewAuditRepository(db *sql.DB, d Dialect) *AuditRepository {
	return &AuditRepository{db: db, dialect: d}
}

// Append inserts the entry and its mismatch field rows in one transaction.
func (r *AuditRepository) Append(ctx context.Context, e audit.Entry) error {
	mismatches := e.Mismatches
	if mismatches == nil {
		mismatches = []validation.Mismatch{}
	}
	raw, err := json.Marshal(mismatches)
	if err != nil {
		return eris.Wrap(err, "sqlrepo: marshal mismatches")
	}
	created := e.CreatedAt.UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlrepo: begin audit append")
	}
	defer tx.Rollback() //nolint:errcheck

	q := r.dialect.Rebind(`INSERT INTO audit_entries (` + auditColumns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if _, err := tx.ExecContext(ctx, q,
		e.ID, created, e.UserID, e.Query, orDash(e.EntityKind), orDash(e.EntityID), e.Period, string(e.Status),
		e.Confidence, e.MismatchCount, string(raw), e.Enforcement, e.AdminOverride, e.Constrained,
		e.Model, e.Disclaimer, e.Error,
	); err != nil {
		return eris.Wrapf(err, "sqlrepo: insert audit entry %s", e.ID)
	}

	fq := r.dialect.Rebind(`INSERT INTO audit_mismatch_fields (entry_id, created_at, field, severity) VALUES (?,?,?,?)`)
	for _, m := range e.Mismatches {
		if _, err := tx.ExecContext(ctx, fq, e.ID, created, m.Field, string(m.Severity)); err != nil {
			return eris.Wrapf(err, "sqlrepo: insert mismatch field %s", m.Field)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlrepo: commit audit append")
}

// Summary counts entries since a point in time. Anything not passed counts as
// failed.
func (r *AuditRepository) Summary(ctx context.Context, since time.Time) (audit.Summary, error) {
	q := r.dialect.Rebind(`
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status='passed' THEN 1 ELSE 0 END), 0),
       COALESCE(AVG(confidence), 0),
       COALESCE(AVG(mismatch_count), 0)
FROM audit_entries
WHERE created_at >= ?`)

	var s audit.Summary
	if err := r.db.QueryRowContext(ctx, q, since.UTC()).Scan(&s.Total, &s.Passed, &s.AvgConfidence, &s.AvgMismatchCount); err != nil {
		return s, eris.Wrap(err, "sqlrepo: audit summary")
	}
	s.Failed = s.Total - s.Passed
	return s, nil
}

func (r *AuditRepository) TopFields(ctx context.Context, since time.Time, limit int) ([]audit.FieldCount, error) {
	if limit <= 0 {
		limit = audit.TopFieldsMax
	}
	q := r.dialect.Rebind(`
SELECT field, COUNT(*) AS n
FROM audit_mismatch_fields
WHERE created_at >= ?
GROUP BY field
ORDER BY n DESC, field ASC
LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, q, since.UTC(), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlrepo: top fields")
	}
	defer rows.Close()

	out := []audit.FieldCount{}
	for rows.Next() {
		var fc audit.FieldCount
		if err := rows.Scan(&fc.Field, &fc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlrepo: scan top field")
		}
		out = append(out, fc)
	}
	return out, eris.Wrap(rows.Err(), "sqlrepo: top fields rows")
}

func (r *AuditRepository) Daily(ctx context.Context, since time.Time) ([]audit.DailyCount, error) {
	day := r.dialect.day("created_at")
	q := r.dialect.Rebind(`
SELECT ` + day + ` AS day,
       COUNT(*),
       COALESCE(SUM(CASE WHEN status='passed' THEN 1 ELSE 0 END), 0)
FROM audit_entries
WHERE created_at >= ?
GROUP BY ` + day + `
ORDER BY day ASC`)
	rows, err := r.db.QueryContext(ctx, q, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlrepo: audit daily")
	}
	defer rows.Close()

	out := []audit.DailyCount{}
	for rows.Next() {
		var d audit.DailyCount
		if err := rows.Scan(&d.Day, &d.Total, &d.Passed); err != nil {
			return nil, eris.Wrap(err, "sqlrepo: scan daily")
		}
		d.Failed = d.Total - d.Passed
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlrepo: daily rows")
}

// List returns entries newest first.
func (r *AuditRepository) List(ctx context.Context, since time.Time, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = audit.MaxEntries
	}
	q := r.dialect.Rebind(`SELECT ` + auditColumns + `
FROM audit_entries
WHERE created_at >= ?
ORDER BY created_at DESC, id DESC
LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, q, since.UTC(), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlrepo: list audit")
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var status string
		var raw []byte
		if err := rows.Scan(
			&e.ID, &e.CreatedAt, &e.UserID, &e.Query, &e.EntityKind, &e.EntityID, &e.Period, &status,
			&e.Confidence, &e.MismatchCount, &raw, &e.Enforcement, &e.AdminOverride, &e.Constrained,
			&e.Model, &e.Disclaimer, &e.Error,
		); err != nil {
			return nil, eris.Wrap(err, "sqlrepo: scan audit entry")
		}
		e.Status = audit.Status(status)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Mismatches); err != nil {
				return nil, eris.Wrapf(err, "sqlrepo: decode mismatches of %s", e.ID)
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlrepo: list rows")
}
