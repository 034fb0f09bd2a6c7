package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// PostgresAdapter reads one numeric column of a PostgreSQL table, for example
// the visits table of a hospital information system. TimeColumn, when set,
// must be a timestamp or timestamptz column.
type PostgresAdapter struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN        string
	Table      string
	Column     string
	OrderBy    string
	TimeColumn string
}

func (p *PostgresAdapter) Name() string { return "postgres" }

// Collect implements Adapter.
func (p *PostgresAdapter) Collect(ctx context.Context, windowSeconds int) (*DataFrame, error) {
	q := tableQuery{Table: p.Table, Column: p.Column, OrderBy: p.OrderBy, TimeColumn: p.TimeColumn}
	if p.DSN == "" {
		return &DataFrame{}, fmt.Errorf("postgres adapter: dsn is required")
	}
	if err := q.validate(); err != nil {
		return &DataFrame{}, fmt.Errorf("postgres adapter: %w", err)
	}

	conn, err := pgx.Connect(ctx, p.DSN)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("postgres adapter: connect: %w", err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	var args []any
	if p.TimeColumn != "" {
		args = append(args, windowStart(time.Now().UTC(), windowSeconds))
	}

	rows, err := conn.Query(ctx, q.build(pgIdent, "double precision", "$1"), args...)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("postgres adapter: query: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var v *float64
		if err := rows.Scan(&v); err != nil {
			return &DataFrame{}, fmt.Errorf("postgres adapter: scan: %w", err)
		}
		if v == nil {
			return &DataFrame{}, fmt.Errorf("postgres adapter: row %d: %s is NULL", len(out), p.Column)
		}
		out = append(out, Row{
			"index": len(out),
			"value": *v,
		})
	}
	if err := rows.Err(); err != nil {
		return &DataFrame{}, fmt.Errorf("postgres adapter: %w", err)
	}
	return &DataFrame{Rows: out}, nil
}

func pgIdent(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
