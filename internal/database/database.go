package database

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"fmt"
	"io"

	_ "github.com/tursodatabase/go-libsql"
)

// pragmas configure a connection for concurrent use: WAL journal mode, 5 s
// busy timeout, foreign keys enabled. The busy timeout matters here: quota
// decrements and round transitions are read-modify-write and contend on the
// same rows under load. journal_mode persists in the database file, but
// busy_timeout and foreign_keys reset on every new connection, so they must
// run on each connection the pool opens, not just the first.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Open creates a SQLite connection via libSQL and configures it for
// concurrent use: WAL journal mode, 5 s busy timeout, foreign keys enabled.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	probe, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	drv, ok := probe.Driver().(sqldriver.DriverContext)
	probe.Close()
	if !ok {
		return nil, fmt.Errorf("opening database: libsql driver does not support OpenConnector")
	}
	base, err := drv.OpenConnector("file:" + path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := sql.OpenDB(&pragmaConnector{base: base})
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// pragmaConnector applies the pragmas to every connection it hands to the
// pool.
type pragmaConnector struct {
	base sqldriver.Connector
}

func (p *pragmaConnector) Connect(ctx context.Context) (sqldriver.Conn, error) {
	c, err := p.base.Connect(ctx)
	if err != nil {
		return nil, err
	}
	q, ok := c.(sqldriver.QueryerContext)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("libsql connection does not support QueryContext")
	}
	// libSQL rejects Exec for PRAGMAs that return rows, but some PRAGMAs
	// (like foreign_keys=ON) return nothing. Use QueryContext and drain rows
	// to handle both cases uniformly.
	for _, pragma := range pragmas {
		rows, err := q.QueryContext(ctx, pragma, nil)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("executing %s: %w", pragma, err)
		}
		rows.Close()
	}
	return c, nil
}

func (p *pragmaConnector) Driver() sqldriver.Driver {
	return p.base.Driver()
}

func (p *pragmaConnector) Close() error {
	if closer, ok := p.base.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
