// Package postgres is the PostgreSQL Dialect of provider.DB, using the
// github.com/lib/pq driver.
package postgres

import (
	"context"
	"strconv"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.ircservices.dev/core/provider"
	"go.ircservices.dev/core/serialize"
)

// EngineName of the PostgreSQL Dialect.
const EngineName = "postgres"

// Dialect of PostgreSQL.
type Dialect struct{}

var _ provider.Dialect = Dialect{}

func (Dialect) Name() string             { return EngineName }
func (Dialect) DriverName() string       { return "postgres" }
func (Dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (Dialect) PrimaryKey() string {
	return "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
}

func (Dialect) ColumnType(f *serialize.Field) string {
	if f.IsReference() {
		return "BIGINT"
	}
	return "TEXT"
}

func (Dialect) AddColumn(table, column, typ string) string {
	return "ALTER TABLE " + table + " ADD COLUMN IF NOT EXISTS " + column + " " + typ
}

func (Dialect) ListColumns() provider.Query {
	return provider.NewQuery(`SELECT column_name AS name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = :table`)
}

func (Dialect) InsertDefault(table string) (string, bool) {
	return "INSERT INTO " + table + " DEFAULT VALUES RETURNING " + provider.QuoteIdent(serialize.IDColumn), true
}

// InitSchema pins the session time zone, so timestamps stored as text
// by services are stable.
func (Dialect) InitSchema(string) []provider.Query {
	return []provider.Query{provider.NewQuery("SET TIME ZONE 'UTC'")}
}

// IsAlreadyExists matches duplicate_table (which also covers indexes),
// duplicate_column, and duplicate_object.
func (Dialect) IsAlreadyExists(err error) bool {
	if pe, ok := errors.Cause(err).(*pq.Error); ok {
		switch pe.Code {
		case "42P07", "42701", "42710":
			return true
		}
	}
	return false
}

// Open a PostgreSQL database of connection string |dsn| as a provider.DB.
func Open(ctx context.Context, dsn string) (*provider.DB, error) {
	return provider.Open(ctx, Dialect{}, dsn)
}
