package sql

import (
	"context"
	"database/sql/driver"
	"errors"
	"strconv"
	"sync/atomic"

	surrealdb "github.com/surrealdb/surrealdriver"
)

var errNoTransactions = errors.New("surrealdb: transactions are not supported, use BEGIN and COMMIT statements")

type Conn struct {
	db *surrealdb.DB

	// broken is set once a call failed at the transport level.
	broken atomic.Bool
}

// DB exposes the client behind the connection, for use with sql.Conn.Raw.
func (c *Conn) DB() *surrealdb.DB {
	return c.db
}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{conn: c, query: query}, nil
}

func (c *Conn) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	return c.Prepare(query)
}

func (c *Conn) Close() error {
	return c.db.Close(context.Background())
}

func (c *Conn) Begin() (driver.Tx, error) {
	return nil, errNoTransactions
}

func (c *Conn) Ping(ctx context.Context) error {
	if _, err := c.db.Version(ctx); err != nil {
		c.broken.Store(true)
		return errors.Join(driver.ErrBadConn, err)
	}
	return nil
}

func (c *Conn) ResetSession(ctx context.Context) error {
	return nil
}

func (c *Conn) IsValid() bool {
	return !c.broken.Load()
}

// CheckNamedValue accepts every argument as is; the engine codec decides how
// it travels.
func (c *Conn) CheckNamedValue(*driver.NamedValue) error {
	return nil
}

func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	resp, err := c.db.Query(ctx, query, bindArgs(args))
	if err != nil {
		return nil, c.callError(err)
	}
	return newRows(resp)
}

func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	resp, err := c.db.Query(ctx, query, bindArgs(args))
	if err != nil {
		return nil, c.callError(err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var result Result
	if resp.Len() > 0 {
		last, _ := resp.Outcome(resp.Len() - 1)
		values, _ := last.Values()
		result.AffectedRows = int64(len(values))
	}
	return result, nil
}

// bindArgs binds named arguments as $name and positional ones as $1..$n.
func bindArgs(args []driver.NamedValue) map[string]any {
	if len(args) == 0 {
		return nil
	}
	vars := make(map[string]any, len(args))
	for _, arg := range args {
		name := arg.Name
		if name == "" {
			name = strconv.Itoa(arg.Ordinal)
		}
		vars[name] = arg.Value
	}
	return vars
}

// callError marks the connection broken after a transport failure. Only a
// call that never reached the server is reported as driver.ErrBadConn, so
// database/sql does not run a statement twice.
func (c *Conn) callError(err error) error {
	switch {
	case errors.Is(err, surrealdb.ErrClosed), errors.Is(err, surrealdb.ErrNotOpen):
		c.broken.Store(true)
		return errors.Join(driver.ErrBadConn, err)
	case errors.Is(err, surrealdb.ErrConnection):
		c.broken.Store(true)
	}
	return err
}

var (
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
	_ driver.SessionResetter    = (*Conn)(nil)
	_ driver.Validator          = (*Conn)(nil)
	_ driver.NamedValueChecker  = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
)
