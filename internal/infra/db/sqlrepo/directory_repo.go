package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
)

const userColumns = `id, first_name, last_name, role, store_id, market_id, active`

// DirectoryRepository implements entity.Directory over the users and
// org_units tables. Name arguments are compared case-insensitively.
type DirectoryRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewDirectoryRepository(db *sql.DB, d Dialect) *DirectoryRepository {
	return &DirectoryRepository{db: db, dialect: d}
}

func (r *DirectoryRepository) UserByID(ctx context.Context, id string) (*entity.User, error) {
	q := r.dialect.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id=? LIMIT 1`)
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlrepo: user %s", id)
	}
	return u, nil
}

func (r *DirectoryRepository) FindActiveUsersByName(ctx context.Context, first, last string) ([]entity.User, error) {
	first, last = strings.ToLower(first), strings.ToLower(last)
	var q string
	var args []any
	if first == "" {
		q = `SELECT ` + userColumns + ` FROM users
WHERE active=? AND (LOWER(last_name)=? OR LOWER(first_name)=?)
ORDER BY id`
		args = []any{true, last, last}
	} else {
		q = `SELECT ` + userColumns + ` FROM users
WHERE active=? AND ((LOWER(first_name)=? AND LOWER(last_name)=?) OR (LOWER(first_name)=? AND LOWER(last_name)=?))
ORDER BY id`
		args = []any{true, first, last, last, first}
	}
	users, err := r.queryUsers(ctx, q, args...)
	return users, eris.Wrap(err, "sqlrepo: users by name")
}

func (r *DirectoryRepository) FindActiveUsersByPrefix(ctx context.Context, firstPrefix, lastPrefix string, limit int) ([]entity.User, error) {
	if limit <= 0 {
		limit = 25
	}
	var conds []string
	args := []any{true}
	for _, p := range []string{firstPrefix, lastPrefix} {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		conds = append(conds, "LOWER(first_name) LIKE ?", "LOWER(last_name) LIKE ?")
		args = append(args, p+"%", p+"%")
	}
	if len(conds) == 0 {
		return nil, nil
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE active=? AND (` + strings.Join(conds, " OR ") + `) ORDER BY id LIMIT ?`
	args = append(args, limit)

	users, err := r.queryUsers(ctx, q, args...)
	return users, eris.Wrap(err, "sqlrepo: users by prefix")
}

func (r *DirectoryRepository) FindUnitByName(ctx context.Context, kind entity.Kind, name string) (*entity.Unit, error) {
	q := r.dialect.Rebind(`SELECT id, kind, name, parent_id FROM org_units WHERE kind=? AND LOWER(name)=? LIMIT 1`)
	u, err := scanUnit(r.db.QueryRowContext(ctx, q, string(kind), strings.ToLower(strings.TrimSpace(name))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, eris.Wrapf(err, "sqlrepo: %s %q", kind, name)
}

func (r *DirectoryRepository) UnitByID(ctx context.Context, kind entity.Kind, id string) (*entity.Unit, error) {
	q := r.dialect.Rebind(`SELECT id, kind, name, parent_id FROM org_units WHERE kind=? AND id=? LIMIT 1`)
	u, err := scanUnit(r.db.QueryRowContext(ctx, q, string(kind), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, eris.Wrapf(err, "sqlrepo: %s %s", kind, id)
}

// SaveUser upserts a directory user.
func (r *DirectoryRepository) SaveUser(ctx context.Context, u entity.User) error {
	_, err := r.db.ExecContext(ctx, r.upsert("users", []string{"id"},
		[]string{"id", "first_name", "last_name", "role", "store_id", "market_id", "active"}),
		u.ID, u.FirstName, u.LastName, string(u.Role), u.StoreID, u.MarketID, u.Active)
	return eris.Wrapf(err, "sqlrepo: save user %s", u.ID)
}

// SaveUnit upserts a store or market.
func (r *DirectoryRepository) SaveUnit(ctx context.Context, u entity.Unit) error {
	_, err := r.db.ExecContext(ctx, r.upsert("org_units", []string{"id"},
		[]string{"id", "kind", "name", "parent_id"}),
		u.ID, string(u.Kind), u.Name, u.ParentID)
	return eris.Wrapf(err, "sqlrepo: save unit %s", u.ID)
}

func (r *DirectoryRepository) queryUsers(ctx context.Context, q string, args ...any) ([]entity.User, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// upsert builds an insert-or-update statement for the dialect.
func (r *DirectoryRepository) upsert(table string, keys, cols []string) string {
	return upsertSQL(r.dialect, table, keys, cols)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*entity.User, error) {
	var u entity.User
	var role string
	if err := s.Scan(&u.ID, &u.FirstName, &u.LastName, &role, &u.StoreID, &u.MarketID, &u.Active); err != nil {
		return nil, err
	}
	u.Role = entity.Role(role)
	return &u, nil
}

func scanUnit(s scanner) (*entity.Unit, error) {
	var u entity.Unit
	var kind string
	if err := s.Scan(&u.ID, &kind, &u.Name, &u.ParentID); err != nil {
		return nil, err
	}
	u.Kind = entity.Kind(kind)
	return &u, nil
}
