package provider

import (
	"fmt"
	"strings"

	"go.ircservices.dev/core/serialize"
)

// Dialect captures what differs between relational engines.
type Dialect interface {
	// Name of the engine, eg "sqlite".
	Name() string
	// DriverName is the database/sql driver of the engine.
	DriverName() string
	// Placeholder returns the positional placeholder of 1-based argument |n|.
	Placeholder(n int) string
	// PrimaryKey is the column definition of the integer "id" primary key.
	PrimaryKey() string
	// ColumnType is the column type of Field |f|.
	ColumnType(f *serialize.Field) string
	// AddColumn returns the statement text adding |column| of |typ| to |table|.
	// |table| and |column| are quoted.
	AddColumn(table, column, typ string) string
	// ListColumns returns a Query selecting the "name" of each column of
	// the ":table" parameter.
	ListColumns() Query
	// InsertDefault returns the statement text inserting a row of defaults
	// into quoted |table|, and whether it returns the "id" as a result row
	// (rather than through the driver's last insert ID).
	InsertDefault(table string) (string, bool)
	// InitSchema returns statements run once upon binding |prefix|.
	InitSchema(prefix string) []Query
	// IsAlreadyExists returns true if |err| reports an already existing
	// table, column or index.
	IsAlreadyExists(err error) bool
}

// QuoteIdent quotes |name| as a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Builder produces dialect-neutral Queries, parameterized by its Dialect.
// Builder performs no I/O.
type Builder struct {
	Dialect Dialect
}

func schema(text string) Query { return Query{Text: text, Schema: true} }

// CreateTable returns a CREATE TABLE IF NOT EXISTS statement of |prefix|+|t|.
func (b Builder) CreateTable(prefix string, t *serialize.Type) []Query {
	return []Query{schema(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s %s)",
		QuoteIdent(prefix+t.Name()), QuoteIdent(serialize.IDColumn), b.Dialect.PrimaryKey()))}
}

// AlterTable returns statements adding the column of Field |f|, unless
// it's present in |existing|. Reference columns are also indexed.
func (b Builder) AlterTable(prefix string, t *serialize.Type, f *serialize.Field, existing map[string]bool) []Query {
	if existing[f.Name] {
		return nil
	}
	var table = prefix + t.Name()
	var out = []Query{schema(b.Dialect.AddColumn(
		QuoteIdent(table), QuoteIdent(f.Name), b.Dialect.ColumnType(f)))}

	if f.IsReference() {
		out = append(out, b.CreateIndex(table, f.Name)...)
	}
	return out
}

// CreateIndex returns a CREATE INDEX IF NOT EXISTS statement of |column|.
func (b Builder) CreateIndex(table, column string) []Query {
	return []Query{schema(fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		QuoteIdent(table+"_"+column+"_idx"), QuoteIdent(table), QuoteIdent(column)))}
}

// SelectFind returns a Query of the "id" of rows having |column| = :value.
func (b Builder) SelectFind(table, column string) Query {
	return NewQuery(fmt.Sprintf("SELECT %s FROM %s WHERE %s = :value ORDER BY %[1]s",
		QuoteIdent(serialize.IDColumn), QuoteIdent(table), QuoteIdent(column)))
}

// SelectIDs returns a Query of the "id" of every row.
func (b Builder) SelectIDs(table string) Query {
	return NewQuery(fmt.Sprintf("SELECT %s FROM %s ORDER BY %[1]s",
		QuoteIdent(serialize.IDColumn), QuoteIdent(table)))
}

// SelectField returns a Query of |column| of the :id row.
func (b Builder) SelectField(table, column string) Query {
	return NewQuery(fmt.Sprintf("SELECT %s FROM %s WHERE %s = :id",
		QuoteIdent(column), QuoteIdent(table), QuoteIdent(serialize.IDColumn)))
}

// SelectReferrers returns a Query of the "id" of rows having |column| = :id.
func (b Builder) SelectReferrers(table, column string) Query {
	return NewQuery(fmt.Sprintf("SELECT %s FROM %s WHERE %s = :id ORDER BY %[1]s",
		QuoteIdent(serialize.IDColumn), QuoteIdent(table), QuoteIdent(column)))
}

// SelectExists returns a Query of the "id" of the :id row.
func (b Builder) SelectExists(table string) Query {
	return NewQuery(fmt.Sprintf("SELECT %s FROM %s WHERE %[1]s = :id",
		QuoteIdent(serialize.IDColumn), QuoteIdent(table)))
}

// Replace returns an upsert of |table| having the Params of |values| as
// columns, which conflicts on |keys| and updates the remaining columns.
func (b Builder) Replace(table string, values Query, keys []string) []Query {
	var (
		cols, binds, sets []string
		isKey             = make(map[string]bool, len(keys))
		out               Query
	)
	for _, k := range keys {
		isKey[k] = true
	}
	for i, p := range values.Params {
		// Columns may not be valid placeholder names, so bind by position.
		var name = fmt.Sprintf("v%d", i)
		out.set(name, p.Value)

		cols = append(cols, QuoteIdent(p.Name))
		binds = append(binds, ":"+name)

		if !isKey[p.Name] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%[1]s", QuoteIdent(p.Name)))
		}
	}
	var quotedKeys = make([]string, len(keys))
	for i, k := range keys {
		quotedKeys[i] = QuoteIdent(k)
	}

	var action = "DO NOTHING"
	if len(sets) != 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	out.Text = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		QuoteIdent(table), strings.Join(cols, ", "), strings.Join(binds, ", "),
		strings.Join(quotedKeys, ", "), action)

	return []Query{out}
}

// Delete returns a DELETE of the row of |id|.
func (b Builder) Delete(table string, id serialize.ID) Query {
	var q = NewQuery(fmt.Sprintf("DELETE FROM %s WHERE %s = :id",
		QuoteIdent(table), QuoteIdent(serialize.IDColumn)))
	q.SetUint("id", uint64(id))
	return q
}
