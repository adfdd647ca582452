// Package sqlite is the SQLite Dialect of provider.DB, using the
// github.com/mattn/go-sqlite3 driver.
package sqlite

import (
	"context"
	"net/url"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.ircservices.dev/core/provider"
	"go.ircservices.dev/core/serialize"
)

// EngineName of the SQLite Dialect.
const EngineName = "sqlite"

// Dialect of SQLite.
type Dialect struct{}

var _ provider.Dialect = Dialect{}

func (Dialect) Name() string           { return EngineName }
func (Dialect) DriverName() string     { return "sqlite3" }
func (Dialect) Placeholder(int) string { return "?" }

// PrimaryKey is an AUTOINCREMENT key, so IDs of deleted rows aren't reused.
func (Dialect) PrimaryKey() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (Dialect) ColumnType(f *serialize.Field) string {
	if f.IsReference() {
		return "INTEGER"
	}
	return "TEXT"
}

// AddColumn returns an ALTER TABLE ADD COLUMN. SQLite lacks
// ADD COLUMN IF NOT EXISTS, so columns are first listed by provider.DB.
func (Dialect) AddColumn(table, column, typ string) string {
	return "ALTER TABLE " + table + " ADD COLUMN " + column + " " + typ
}

func (Dialect) ListColumns() provider.Query {
	return provider.NewQuery(`SELECT name FROM pragma_table_info(:table)`)
}

func (Dialect) InsertDefault(table string) (string, bool) {
	return "INSERT INTO " + table + " DEFAULT VALUES", false
}

// InitSchema returns PRAGMAs applied to the bound connection.
func (Dialect) InitSchema(string) []provider.Query {
	return []provider.Query{
		provider.NewQuery("PRAGMA synchronous = FULL"),
		provider.NewQuery("PRAGMA secure_delete = FAST"),
	}
}

func (Dialect) IsAlreadyExists(err error) bool {
	var se, ok = errors.Cause(err).(sqlite3.Error)
	if ok && se.Code != sqlite3.ErrError {
		return false
	}
	var msg = err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}

// URI returns a go-sqlite3 filename URI of |path| with full synchronous
// writes and a busy timeout. Path ":memory:" returns a URI of a private
// in-memory database.
func URI(path string) string {
	var values = url.Values{
		"_synchronous":  {"FULL"},
		"_busy_timeout": {"5000"},
	}
	if path == ":memory:" {
		values.Set("mode", "memory")
		values.Set("cache", "private")
	}
	return "file:" + path + "?" + values.Encode()
}

// Open a SQLite database at |path| as a provider.DB.
func Open(ctx context.Context, path string) (*provider.DB, error) {
	return provider.Open(ctx, Dialect{}, URI(path))
}
