package chair

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sumika-cloud/sumika/internal/domain"
)

// call records one statement sent to the mock.
type call struct {
	sql  string
	args []any
}

// mockQuerier queues canned results and records every statement.
type mockQuerier struct {
	execCalls  []call
	queryCalls []call
	rowCalls   []call

	rowQueue  []fakeRow
	rowsQueue []*fakeRows
	queryErr  error
	execErr   error
}

func (m *mockQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execCalls = append(m.execCalls, call{sql: sql, args: args})
	return pgconn.CommandTag{}, m.execErr
}

func (m *mockQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.queryCalls = append(m.queryCalls, call{sql: sql, args: args})
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if len(m.rowsQueue) == 0 {
		return &fakeRows{}, nil
	}
	rows := m.rowsQueue[0]
	m.rowsQueue = m.rowsQueue[1:]
	return rows, nil
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.rowCalls = append(m.rowCalls, call{sql: sql, args: args})
	if len(m.rowQueue) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	row := m.rowQueue[0]
	m.rowQueue = m.rowQueue[1:]
	return row
}

// fakeRow satisfies pgx.Row with a single canned value set.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.vals)
}

// fakeRows satisfies the subset of pgx.Rows the repository touches.
type fakeRows struct {
	pgx.Rows

	data [][]any
	pos  int
}

func (r *fakeRows) Close() {}

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(dest, r.data[r.pos-1])
}

func assign(dest, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(vals))
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *int64:
			d2, ok := vals[i].(int64)
			if !ok {
				return fmt.Errorf("scan: column %d is %T, want int64", i, vals[i])
			}
			*d = d2
		case *string:
			d2, ok := vals[i].(string)
			if !ok {
				return fmt.Errorf("scan: column %d is %T, want string", i, vals[i])
			}
			*d = d2
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

func chairVals(c domain.Chair) []any {
	return []any{
		c.ID, c.Name, c.Description, c.Thumbnail, c.Price,
		c.Height, c.Width, c.Depth, c.Color, c.Features,
		c.Kind, c.Popularity, c.Stock,
	}
}
