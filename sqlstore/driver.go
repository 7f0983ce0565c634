package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	// Drivers are selected by connection URI scheme.
	_ "github.com/alexbrainman/odbc"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connection is one live database session. The contract is deliberately
// text-oriented: Exec takes a complete SQL string and returns a RecordSet of
// text columns. Numeric coercion is the business of the response cursor.
type Connection interface {
	// Exec runs |query| and returns its result rows. Statements which
	// return no rows yield an empty RecordSet.
	Exec(query string) (RecordSet, error)
	// Connected is true if the session is still usable.
	Connected() bool
	// Release closes the session.
	Release() error
}

// RecordSet is the result of one Exec: row-by-row iteration, and per-row
// column iteration, each through a caller-supplied callback.
type RecordSet interface {
	// ForEachRow invokes |cb| once per row. A non-nil error aborts
	// iteration and is returned.
	ForEachRow(cb func() error) error
	// ForEachColumn invokes |cb| with the (name, value) of each non-NULL
	// column of the current row.
	ForEachColumn(cb func(name, value string) error) error
	// Release frees the RecordSet.
	Release()
}

// dialect captures the behavioral differences between the supported
// backends: how strings are quoted, whether the array-containment operator
// exists, and whether post-bulk maintenance applies.
type dialect int

const (
	// dialectPostgres is the native libpq-style driver. Preferred.
	dialectPostgres dialect = iota
	// dialectODBC is the generic ODBC driver.
	dialectODBC
	// dialectSQLite is a file-local dialect without array containment;
	// incoming sets route through the Edges table instead.
	dialectSQLite
)

func (d dialect) driverName() string {
	switch d {
	case dialectPostgres:
		return "postgres"
	case dialectODBC:
		return "odbc"
	default:
		return "sqlite3"
	}
}

// quoteName quotes a node name for embedding in SQL. Postgres uses dollar-tag
// quoting so that arbitrary unicode, including single quotes, passes through
// unharmed. Other backends double any embedded single quotes.
func (d dialect) quoteName(s string) string {
	if d == dialectPostgres {
		return "$ocp$" + s + "$ocp$"
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// hasArrayContainment is true if the backend supports `outgoing @> ARRAY[..]`.
func (d dialect) hasArrayContainment() bool { return d == dialectPostgres }

// parseURI maps a connection URI onto a (dialect, DSN) pair. The scheme
// prefix selects the driver; a leading '/' defaults to the native driver.
func parseURI(uri string) (dialect, string, error) {
	switch {
	case strings.HasPrefix(uri, "postgres"), strings.HasPrefix(uri, "/"):
		return dialectPostgres, uri, nil
	case strings.HasPrefix(uri, "odbc"):
		var dsn = strings.TrimPrefix(uri, "odbc")
		dsn = strings.TrimPrefix(dsn, "://")
		dsn = strings.TrimPrefix(dsn, ":")
		return dialectODBC, dsn, nil
	case strings.HasPrefix(uri, "sqlite"):
		var dsn = strings.TrimPrefix(uri, "sqlite3")
		dsn = strings.TrimPrefix(dsn, "sqlite")
		dsn = strings.TrimPrefix(dsn, "://")
		dsn = strings.TrimPrefix(dsn, ":")
		return dialectSQLite, dsn, nil
	default:
		return 0, "", errors.Wrapf(ErrUnknownScheme, "uri %q", uri)
	}
}

// sqlConn is a Connection backed by one dedicated database/sql session.
type sqlConn struct {
	conn *sql.Conn
}

func (c *sqlConn) Exec(query string) (RecordSet, error) {
	var ctx = context.Background()

	if !returnsRows(query) {
		if _, err := c.conn.ExecContext(ctx, query); err != nil {
			return nil, err
		}
		return new(memoryRecordSet), nil
	}

	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var rs = &memoryRecordSet{cols: cols}
	var dest = make([]interface{}, len(cols))
	for rows.Next() {
		var vals = make([]sql.NullString, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err = rows.Scan(dest...); err != nil {
			return nil, err
		}
		rs.rows = append(rs.rows, vals)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (c *sqlConn) Connected() bool {
	return c.conn.PingContext(context.Background()) == nil
}

func (c *sqlConn) Release() error { return c.conn.Close() }

// returnsRows is true for statements which produce a result set.
func returnsRows(query string) bool {
	var q = strings.TrimSpace(query)
	if len(q) < 4 {
		return false
	}
	switch strings.ToUpper(q[:4]) {
	case "SELE", "WITH":
		return true
	}
	return false
}

// memoryRecordSet holds a fully-materialized result set. Materializing at
// Exec time frees the underlying session for reuse before the caller walks
// the rows.
type memoryRecordSet struct {
	cols []string
	rows [][]sql.NullString
	cur  int
}

func (r *memoryRecordSet) ForEachRow(cb func() error) error {
	for i := range r.rows {
		r.cur = i
		if err := cb(); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryRecordSet) ForEachColumn(cb func(name, value string) error) error {
	if r.cur >= len(r.rows) {
		return nil
	}
	var row = r.rows[r.cur]
	for i, col := range r.cols {
		if !row[i].Valid {
			continue
		}
		if err := cb(col, row[i].String); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryRecordSet) Release() {}

// openConnections dials |n| sessions of the parsed URI and returns them.
func openConnections(d dialect, dsn string, n int) (*sql.DB, []Connection, error) {
	var db, err = sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening database")
	}
	db.SetMaxOpenConns(n)
	db.SetMaxIdleConns(n)

	var conns = make([]Connection, 0, n)
	for i := 0; i != n; i++ {
		conn, err := db.Conn(context.Background())
		if err != nil {
			for _, c := range conns {
				_ = c.Release()
			}
			_ = db.Close()
			return nil, nil, errors.Wrap(err, "dialing connection")
		}
		conns = append(conns, &sqlConn{conn: conn})
	}
	return db, conns, nil
}
