package adapters

import (
	"errors"
	"fmt"
	"strings"
)

// tableQuery describes a single-column read shared by the SQL adapters.
type tableQuery struct {
	Table      string
	Column     string
	OrderBy    string
	TimeColumn string
}

func (q tableQuery) validate() error {
	if q.Table == "" || q.Column == "" {
		return errors.New("table and column are required")
	}
	if q.OrderBy == "" {
		return errors.New("orderBy is required")
	}
	return nil
}

// build renders the SELECT. quote sanitizes identifiers; placeholder is the
// driver's first bind parameter ("$1" or "?"), used only with TimeColumn.
func (q tableQuery) build(quote func(string) string, cast string, placeholder string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT CAST(%s AS %s) FROM %s", quote(q.Column), cast, quote(q.Table))
	if q.TimeColumn != "" {
		fmt.Fprintf(&b, " WHERE %s >= %s", quote(q.TimeColumn), placeholder)
	}
	fmt.Fprintf(&b, " ORDER BY %s ASC", quote(q.OrderBy))
	return b.String()
}

// columns lists the names the query reads, in SELECT, WHERE, ORDER BY order.
func (q tableQuery) columns() []string {
	cols := []string{q.Column}
	if q.TimeColumn != "" {
		cols = append(cols, q.TimeColumn)
	}
	return append(cols, q.OrderBy)
}

// sqliteIdent backtick-quotes each dot-separated part of an identifier.
// SQLite reads an unknown double-quoted name as a string literal, a
// backtick-quoted one is always an identifier.
func sqliteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}
