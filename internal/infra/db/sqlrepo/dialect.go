// Package sqlrepo holds the database/sql repositories shared by the MySQL,
// PostgreSQL and SQLite backends.
package sqlrepo

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case MySQL, Postgres, SQLite:
		return d, nil
	case "postgresql", "pg":
		return Postgres, nil
	case "sqlite3":
		return SQLite, nil
	}
	return "", eris.Errorf("sqlrepo: unknown dialect %q", s)
}

// Rebind rewrites ? placeholders to $n for PostgreSQL.
func (d Dialect) Rebind(q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// day renders col as a YYYY-MM-DD string.
func (d Dialect) day(col string) string {
	switch d {
	case MySQL:
		return "DATE_FORMAT(" + col + ", '%Y-%m-%d')"
	case Postgres:
		return "to_char(" + col + ", 'YYYY-MM-DD')"
	}
	return "substr(" + col + ", 1, 10)"
}
