package store

import (
	"strconv"
	"strings"
)

// Dialect selects engine-specific SQL
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// DialectFor infers the dialect from a DSN
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Postgres
	}
	return SQLite
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Rebind rewrites ? placeholders into $1, $2, ... for PostgreSQL.
// Queries must not contain a literal question mark.
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// rowIDType is the type of business-table primary keys
func (d Dialect) rowIDType() string {
	if d == Postgres {
		return "BIGINT PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY"
}

// serialType is an auto-assigned surrogate key
func (d Dialect) serialType() string {
	if d == Postgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// bigint is the integer type for foreign keys and row ids
func (d Dialect) bigint() string {
	if d == Postgres {
		return "BIGINT"
	}
	return "INTEGER"
}

// quoteIdent quotes a column or table name. Names come from the static
// table specs, never from the wire.
func quoteIdent(name string) string {
	return `"` + name + `"`
}
