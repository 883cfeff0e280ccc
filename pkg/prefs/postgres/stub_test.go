package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

var stubSeq atomic.Int64

// stubConn keeps grid_prefs rows in memory and records every statement.
type stubConn struct {
	mu        sync.Mutex
	execs     []string
	rows      map[string]string
	failExec  bool
	failQuery bool
	failPing  bool
}

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{rows: map[string]string{}}
	name := fmt.Sprintf("stubprefs%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *stubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, fmt.Errorf("not implemented") }

func (c *stubConn) Ping(context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	if c.failExec {
		return nil, fmt.Errorf("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "INSERT INTO GRID_PREFS"):
		if len(args) != 3 {
			return nil, fmt.Errorf("expected 3 args, got %d", len(args))
		}
		c.rows[fmt.Sprint(args[0].Value)] = fmt.Sprint(args[1].Value)
	case strings.HasPrefix(upper, "DELETE FROM GRID_PREFS"):
		delete(c.rows, fmt.Sprint(args[0].Value))
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failQuery {
		return nil, fmt.Errorf("query fail")
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT PAYLOAD FROM GRID_PREFS") {
		return nil, fmt.Errorf("unexpected query %s", query)
	}
	out := &stubRows{}
	if payload, ok := c.rows[fmt.Sprint(args[0].Value)]; ok {
		out.rows = [][]driver.Value{{[]byte(payload)}}
	}
	return out, nil
}

type stubRows struct {
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
