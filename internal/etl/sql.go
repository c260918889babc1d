package etl

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
)

// SQLExecutor runs queries on a database/sql pool. Each cursor holds its own
// connection until closed.
type SQLExecutor struct {
	DB *sql.DB
}

func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{DB: db}
}

func (s *SQLExecutor) Execute(ctx context.Context, query string, args ...any) (Cursor, error) {
	conn, err := s.DB.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire connection")
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "execute query")
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		conn.Close()
		return nil, errors.Wrap(err, "read result columns")
	}

	return &sqlCursor{conn: conn, rows: rows, cols: cols}, nil
}

type sqlCursor struct {
	conn *sql.Conn
	rows *sql.Rows
	cols []string
	done bool
}

func (c *sqlCursor) Columns() []string {
	return c.cols
}

func (c *sqlCursor) FetchBatch(ctx context.Context, n int) ([][]any, error) {
	if c.done {
		return nil, nil
	}
	if n <= 0 {
		return nil, errors.Errorf("invalid batch size %d", n)
	}

	batch := make([][]any, 0, min(n, 1024))
	for len(batch) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !c.rows.Next() {
			c.done = true
			if err := c.rows.Err(); err != nil {
				return nil, errors.Wrap(err, "iterate rows")
			}
			break
		}

		columns := make([]any, len(c.cols))
		columnPointers := make([]any, len(c.cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}
		if err := c.rows.Scan(columnPointers...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		batch = append(batch, columns)
	}
	return batch, nil
}

func (c *sqlCursor) Close() error {
	rowsErr := c.rows.Close()
	connErr := c.conn.Close()
	if rowsErr != nil {
		return rowsErr
	}
	return connErr
}
