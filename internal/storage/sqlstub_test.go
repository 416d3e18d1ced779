package storage_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"roomchat/backend/internal/storage"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubResult is what the stub database answers to a query.
type stubResult struct {
	columns []string
	rows    [][]driver.Value
}

type stubCall struct {
	query string
	args  []any
}

// stubDB is an in-memory database/sql driver that records every statement
// and answers queries from a script.
type stubDB struct {
	mu      sync.Mutex
	calls   []stubCall
	respond func(query string) stubResult
}

func (d *stubDB) record(query string, args []driver.NamedValue) {
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = a.Value
	}
	d.mu.Lock()
	d.calls = append(d.calls, stubCall{query: query, args: values})
	d.mu.Unlock()
}

// statements returns the recorded calls whose SQL contains fragment.
func (d *stubDB) statements(fragment string) []stubCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []stubCall
	for _, c := range d.calls {
		if strings.Contains(c.query, fragment) {
			out = append(out, c)
		}
	}
	return out
}

func (d *stubDB) Connect(context.Context) (driver.Conn, error) { return &stubConn{db: d}, nil }
func (d *stubDB) Driver() driver.Driver                        { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("stub driver is opened through its connector")
}

type stubConn struct{ db *stubDB }

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub driver does not prepare statements")
}
func (c *stubConn) Close() error              { return nil }
func (c *stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

func (c *stubConn) CheckNamedValue(*driver.NamedValue) error { return nil }

func (c *stubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.db.record(query, args)
	res := stubResult{columns: []string{"id"}}
	if c.db.respond != nil {
		res = c.db.respond(query)
	}
	return &stubRows{columns: res.columns, rows: res.rows}, nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.db.record(query, args)
	return driver.RowsAffected(1), nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubRows struct {
	columns []string
	rows    [][]driver.Value
}

func (r *stubRows) Columns() []string { return r.columns }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if len(r.rows) == 0 {
		return io.EOF
	}
	copy(dest, r.rows[0])
	r.rows = r.rows[1:]
	return nil
}

// newStubService opens gorm with the postgres dialector over a stubDB, so the
// service emits exactly the SQL it would send to Postgres.
func newStubService(t *testing.T, respond func(query string) stubResult) (*storage.Service, *stubDB) {
	t.Helper()
	stub := &stubDB{respond: respond}
	sqlDB := sql.OpenDB(stub)
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := storage.GormConfig()
	cfg.DisableAutomaticPing = true
	cfg.Logger = logger.Default.LogMode(logger.Silent)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), cfg)
	require.NoError(t, err)
	return storage.NewStorageService(db, nil, logs.GetLoggerFromLevel(slog.LevelDebug)), stub
}
