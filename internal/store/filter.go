// Package store holds the SQL shared by the view record stores. The postgres
// and sqlite subpackages differ only in placeholders and timestamp encoding.
package store

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/djlord-it/easy-views/internal/domain"
)

// Table is the name of the view records table.
const Table = "views"

// ErrDuplicateView is returned when a record with the same id already exists.
var ErrDuplicateView = errors.New("duplicate view record")

// Dialect adapts the generated SQL to one database driver.
type Dialect struct {
	Placeholder func(n int) string
	Time        func(t time.Time) any
}

// Postgres numbers placeholders and passes timestamps through.
var Postgres = Dialect{
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	Time:        func(t time.Time) any { return t.UTC() },
}

// SQLite uses positional placeholders and stores timestamps as unix nanoseconds.
var SQLite = Dialect{
	Placeholder: func(int) string { return "?" },
	Time:        func(t time.Time) any { return t.UTC().UnixNano() },
}

type builder struct {
	d     Dialect
	conds []string
	args  []any
}

func (b *builder) add(cond string, args ...any) {
	for _, a := range args {
		b.args = append(b.args, a)
		cond = strings.Replace(cond, "?", b.d.Placeholder(len(b.args)), 1)
	}
	b.conds = append(b.conds, cond)
}

func (b *builder) where() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// Where renders the predicate set of q.
func Where(q domain.ViewQuery, d Dialect) (string, []any) {
	b := &builder{d: d}
	if q.SubjectType != "" {
		b.add("subject_type = ?", q.SubjectType)
	}
	if q.SubjectID != "" {
		b.add("subject_id = ?", q.SubjectID)
	}
	switch {
	case q.Start != nil && q.End != nil:
		b.add("viewed_at BETWEEN ? AND ?", d.Time(*q.Start), d.Time(*q.End))
	case q.Start != nil:
		b.add("viewed_at >= ?", d.Time(*q.Start))
	case q.End != nil:
		b.add("viewed_at <= ?", d.Time(*q.End))
	}
	if q.Collection != "" {
		b.add("collection = ?", q.Collection)
	}
	return b.where(), b.args
}

// CountQuery counts rows, or distinct visitors when q.Unique is set.
func CountQuery(q domain.ViewQuery, d Dialect) (string, []any) {
	where, args := Where(q, d)
	return "SELECT " + countExpr(q.Unique) + " FROM " + Table + where, args
}

// DeleteQuery removes every row matching q.
func DeleteQuery(q domain.ViewQuery, d Dialect) (string, []any) {
	where, args := Where(q, d)
	return "DELETE FROM " + Table + where, args
}

// TopQuery ranks subject ids of q.SubjectType by view count.
func TopQuery(q domain.ViewQuery, d Dialect, limit int) (string, []any) {
	q.SubjectID = ""
	where, args := Where(q, d)
	cond := "subject_id IS NOT NULL"
	if where == "" {
		where = " WHERE " + cond
	} else {
		where += " AND " + cond
	}
	args = append(args, limit)
	return "SELECT subject_id, " + countExpr(q.Unique) + " AS view_count FROM " + Table + where +
		" GROUP BY subject_id ORDER BY view_count DESC, subject_id ASC LIMIT " + d.Placeholder(len(args)), args
}

// InsertQuery inserts one view record.
func InsertQuery(d Dialect) string {
	ph := make([]string, 6)
	for i := range ph {
		ph[i] = d.Placeholder(i + 1)
	}
	return "INSERT INTO " + Table + " (id, subject_type, subject_id, visitor, collection, viewed_at) VALUES (" +
		strings.Join(ph, ", ") + ")"
}

// InsertArgs returns the arguments for InsertQuery. Empty optional fields are
// stored as NULL.
func InsertArgs(rec domain.ViewRecord, d Dialect) []any {
	return []any{
		rec.ID.String(),
		rec.SubjectType,
		nullable(rec.SubjectID),
		nullable(rec.Visitor),
		nullable(rec.Collection),
		d.Time(rec.ViewedAt),
	}
}

func countExpr(unique bool) string {
	if unique {
		return "COUNT(DISTINCT visitor)"
	}
	return "COUNT(*)"
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
