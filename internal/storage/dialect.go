package storage

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"saldo/internal/core"
)

// Dialect selects the SQL flavour a Store speaks.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return "unknown"
	}
}

func (d Dialect) driverName() string {
	return d.String()
}

// rebind rewrites ? placeholders into $1, $2... for PostgreSQL.
func (d Dialect) rebind(q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
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

// lockSuffix is appended to budget reads made inside a transaction.
// SQLite has no row locks; its single writer connection serializes units.
func (d Dialect) lockSuffix() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// PostgreSQL error classes that mean "retry the whole unit".
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// translate maps driver errors that signal a lost race onto core.ErrConflict.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected:
			return errors.Join(core.ErrConflict, err)
		}
	}
	return err
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// dateColumn scans a calendar date stored as DATE (PostgreSQL) or
// YYYY-MM-DD text (SQLite).
type dateColumn struct {
	d *core.Date
}

func (c dateColumn) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*c.d = core.NewDate(v.Year(), int(v.Month()), v.Day())
		return nil
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	default:
		return core.ErrInvalidDate
	}
}

func (c dateColumn) parse(s string) error {
	// Some drivers render DATE with a time suffix.
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return err
	}
	*c.d = d
	return nil
}
