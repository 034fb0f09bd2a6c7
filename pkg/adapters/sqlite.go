package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteAdapter reads one numeric column of a SQLite table, typically the
// local database of a triage kiosk.
//
// When TimeColumn is set only rows newer than the window are read; the column
// must hold RFC3339 UTC text so that string comparison matches time order.
type SQLiteAdapter struct {
	Path       string
	Table      string
	Column     string
	OrderBy    string
	TimeColumn string
}

func (s *SQLiteAdapter) Name() string { return "sqlite" }

// Collect implements Adapter.
func (s *SQLiteAdapter) Collect(ctx context.Context, windowSeconds int) (*DataFrame, error) {
	q := tableQuery{Table: s.Table, Column: s.Column, OrderBy: s.OrderBy, TimeColumn: s.TimeColumn}
	if s.Path == "" {
		return &DataFrame{}, fmt.Errorf("sqlite adapter: path is required")
	}
	if err := q.validate(); err != nil {
		return &DataFrame{}, fmt.Errorf("sqlite adapter: %w", err)
	}

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("sqlite adapter: open %s: %w", s.Path, err)
	}
	defer func() { _ = db.Close() }()

	if err := checkSQLiteColumns(ctx, db, q); err != nil {
		return &DataFrame{}, fmt.Errorf("sqlite adapter: %w", err)
	}

	var args []any
	if s.TimeColumn != "" {
		start := windowStart(time.Now().UTC(), windowSeconds)
		args = append(args, start.Format(time.RFC3339))
	}

	rows, err := db.QueryContext(ctx, q.build(sqliteIdent, "REAL", "?"), args...)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("sqlite adapter: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return &DataFrame{}, fmt.Errorf("sqlite adapter: scan: %w", err)
		}
		if !v.Valid {
			return &DataFrame{}, fmt.Errorf("sqlite adapter: row %d: %s is NULL", len(out), s.Column)
		}
		out = append(out, Row{
			"index": len(out),
			"value": v.Float64,
		})
	}
	if err := rows.Err(); err != nil {
		return &DataFrame{}, fmt.Errorf("sqlite adapter: %w", err)
	}
	return &DataFrame{Rows: out}, nil
}

// checkSQLiteColumns fails when the table or any column the query reads is
// missing. Table may be schema-qualified ("main.visits").
func checkSQLiteColumns(ctx context.Context, db *sql.DB, q tableQuery) error {
	schema, table := "main", q.Table
	if i := strings.LastIndex(q.Table, "."); i >= 0 {
		schema, table = q.Table[:i], q.Table[i+1:]
	}

	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?, ?)", table, schema)
	if err != nil {
		return fmt.Errorf("table info %s: %w", q.Table, err)
	}
	defer func() { _ = rows.Close() }()

	known := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("table info %s: %w", q.Table, err)
		}
		known[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("table info %s: %w", q.Table, err)
	}

	if len(known) == 0 {
		return fmt.Errorf("table %q not found", q.Table)
	}
	for _, col := range q.columns() {
		if !known[strings.ToLower(col)] && !isRowID(col) {
			return fmt.Errorf("column %q not found in %s", col, q.Table)
		}
	}
	return nil
}

func isRowID(name string) bool {
	switch strings.ToLower(name) {
	case "rowid", "oid", "_rowid_":
		return true
	}
	return false
}
