package adapters

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSVAdapter reads one numeric column from a CSV file with a header row.
// Rows are returned in file order as {"index": int, "value": float64}.
type CSVAdapter struct {
	// Path is the CSV file location.
	Path string
	// Column is the header name of the wait-time column.
	Column string
	// Delimiter defaults to ',' when zero.
	Delimiter rune
}

func (c *CSVAdapter) Name() string { return "csv" }

// Collect implements Adapter. windowSeconds is ignored: the whole file is read.
func (c *CSVAdapter) Collect(ctx context.Context, _ int) (*DataFrame, error) {
	if c.Path == "" || c.Column == "" {
		return &DataFrame{}, errors.New("csv adapter: Path and Column are required")
	}

	f, err := os.Open(c.Path)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("csv adapter: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if c.Delimiter != 0 {
		r.Comma = c.Delimiter
	}
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &DataFrame{}, fmt.Errorf("csv adapter: %s has no header row", c.Path)
		}
		return &DataFrame{}, fmt.Errorf("csv adapter: read header: %w", err)
	}

	col := -1
	for i, name := range header {
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) == c.Column {
			col = i
			break
		}
	}
	if col < 0 {
		return &DataFrame{}, fmt.Errorf("csv adapter: column %q not found in %s", c.Column, c.Path)
	}

	var rows []Row
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return &DataFrame{}, err
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &DataFrame{}, fmt.Errorf("csv adapter: line %d: %w", line, err)
		}
		if col >= len(record) {
			return &DataFrame{}, fmt.Errorf("csv adapter: line %d: missing column %q", line, c.Column)
		}

		raw := strings.TrimSpace(record[col])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return &DataFrame{}, fmt.Errorf("csv adapter: line %d: parse %q: %w", line, raw, err)
		}
		rows = append(rows, Row{
			"index": len(rows),
			"value": v,
		})
	}

	return &DataFrame{Rows: rows}, nil
}
