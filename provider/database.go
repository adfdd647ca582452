package provider

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.ircservices.dev/core/metrics"
	"go.ircservices.dev/core/serialize"
)

// DB is a Provider which utilizes a database having a "database/sql"
// compatible driver. All statements, including BEGIN and COMMIT, are issued
// over a single dedicated connection so they share one session.
type DB struct {
	Builder

	db   *sql.DB
	conn *sql.Conn
	ctx  context.Context
}

var _ Provider = (*DB)(nil)

// Open the database |dsn| using the driver of the Dialect.
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	var db, err = sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, errors.WithMessagef(err, "opening %s database", dialect.Name())
	}
	d, err := NewDB(ctx, dialect, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// NewDB returns a DB of the Dialect which takes a dedicated connection
// of |db|. Closing the DB also closes |db|.
func NewDB(ctx context.Context, dialect Dialect, db *sql.DB) (*DB, error) {
	var conn, err = db.Conn(ctx)
	if err != nil {
		return nil, errors.WithMessagef(err, "connecting to %s database", dialect.Name())
	}
	return &DB{
		Builder: Builder{Dialect: dialect},
		db:      db,
		conn:    conn,
		ctx:     ctx,
	}, nil
}

// SQL returns the *sql.DB of the DB.
func (d *DB) SQL() *sql.DB { return d.db }

// Close the DB.
func (d *DB) Close() error {
	var err = d.conn.Close()
	if err2 := d.db.Close(); err == nil {
		err = err2
	}
	return err
}

// BeginTransaction returns a BEGIN statement.
func (d *DB) BeginTransaction() Query { return NewQuery("BEGIN") }

// Commit returns a COMMIT statement.
func (d *DB) Commit() Query { return NewQuery("COMMIT") }

// Rollback returns a ROLLBACK statement.
func (d *DB) Rollback() Query { return NewQuery("ROLLBACK") }

// InitSchema returns the Dialect's initialization statements.
func (d *DB) InitSchema(prefix string) []Query { return d.Dialect.InitSchema(prefix) }

// AlterTable returns statements adding the column of Field |f| to the table
// of |t|, if the table doesn't already have it.
func (d *DB) AlterTable(prefix string, t *serialize.Type, f *serialize.Field) []Query {
	var table = prefix + t.Name()
	var existing, err = d.columns(table)
	if err != nil {
		// Fall through to ADD COLUMN. If the column does exist, its failure
		// is absorbed as a schema conflict.
		log.WithFields(log.Fields{"table": table, "err": err}).Warn("failed to list table columns")
	}
	return d.Builder.AlterTable(prefix, t, f, existing)
}

func (d *DB) columns(table string) (map[string]bool, error) {
	var q = d.Dialect.ListColumns()
	q.SetText("table", table)

	var res = d.RunQuery(q)
	if res.Err != nil {
		return nil, res.Err
	}
	var out = make(map[string]bool, res.Len())
	for i := range res.Rows {
		var c, err = res.Get(i, "name")
		if err != nil {
			return nil, err
		}
		out[c.Text] = true
	}
	return out, nil
}

// NextID inserts a row of defaults into table |prefix|+|typeName|
// and returns its ID.
func (d *DB) NextID(prefix, typeName string) (serialize.ID, error) {
	var text, returning = d.Dialect.InsertDefault(QuoteIdent(prefix + typeName))
	var res = d.RunQuery(NewQuery(text))

	if res.Err != nil {
		return 0, res.Err
	} else if !returning {
		if res.LastID <= 0 {
			return 0, errors.Errorf("no ID was allocated for %s", typeName)
		}
		return serialize.ID(res.LastID), nil
	}

	var c, err = res.Get(0, serialize.IDColumn)
	if err != nil {
		return 0, err
	}
	return serialize.ParseID(c.Text)
}

// RunQuery binds and executes the Query.
func (d *DB) RunQuery(q Query) (res Result) {
	res.Query = q

	var engine = d.Dialect.Name()
	var started = time.Now()

	defer func() {
		metrics.SQLQueriesTotal.WithLabelValues(engine, queryKind(q)).Inc()
		metrics.SQLQueryDurationSeconds.WithLabelValues(engine).Observe(time.Since(started).Seconds())

		if res.Err != nil {
			metrics.SQLQueryFailuresTotal.WithLabelValues(engine).Inc()
		}
	}()

	var text, args, err = q.Bind(d.Dialect.Placeholder)
	if err != nil {
		res.Err = errors.WithMessage(err, "binding query")
		return
	}

	if ReturnsRows(text) {
		err = d.query(text, args, &res)
	} else {
		err = d.exec(text, args, &res)
	}

	if err != nil && q.Schema && d.Dialect.IsAlreadyExists(err) {
		log.WithFields(log.Fields{"query": text, "err": err}).Debug("absorbed schema conflict")
		err = nil
	}
	if err != nil {
		res.Err = errors.WithMessagef(err, "running %q", text)
	}
	return
}

func (d *DB) exec(text string, args []interface{}, res *Result) error {
	var r, err = d.conn.ExecContext(d.ctx, text, args...)
	if err != nil {
		return err
	}
	// Not all drivers support these: ignore their errors.
	res.Affected, _ = r.RowsAffected()
	res.LastID, _ = r.LastInsertId()
	return nil
}

func (d *DB) query(text string, args []interface{}, res *Result) error {
	var rows, err = d.conn.QueryContext(d.ctx, text, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if res.Columns, err = rows.Columns(); err != nil {
		return err
	}
	var scan = make([]sql.NullString, len(res.Columns))
	var dest = make([]interface{}, len(scan))
	for i := range scan {
		dest[i] = &scan[i]
	}

	for rows.Next() {
		if err = rows.Scan(dest...); err != nil {
			return err
		}
		var row = make([]Cell, len(scan))
		for i, s := range scan {
			row[i] = Cell{Text: s.String, Null: !s.Valid}
		}
		res.Rows = append(res.Rows, row)
	}
	return rows.Err()
}

// ReturnsRows returns true if statement |text| produces result rows, and
// must be run as a query rather than executed.
func ReturnsRows(text string) bool {
	var upper = strings.ToUpper(strings.TrimSpace(text))
	for _, p := range []string{"SELECT", "PRAGMA", "WITH", "VALUES", "SHOW"} {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return strings.Contains(upper, " RETURNING ")
}

func queryKind(q Query) string {
	if q.Schema {
		return "schema"
	}
	var upper = strings.ToUpper(strings.TrimSpace(q.Text))
	switch {
	case upper == "BEGIN" || upper == "COMMIT" || upper == "ROLLBACK":
		return "transaction"
	case strings.HasPrefix(upper, "SELECT"):
		return "read"
	default:
		return "write"
	}
}
