// Package provider defines the relational backend consumed by the
// serialization bridge: dialect-neutral, parameterized statements produced
// by a Builder, and their execution by a Provider.
//
// DB implements Provider over a database/sql driver; packages
// provider/sqlite and provider/postgres supply the Dialects of their engines.
package provider

import (
	"sort"
	"sync"

	"go.ircservices.dev/core/serialize"
)

// Statements builds the Queries of schema management and CRUD.
type Statements interface {
	// CreateTable returns statements creating table |prefix|+|t| with an
	// integer primary key "id". They're safe to repeat.
	CreateTable(prefix string, t *serialize.Type) []Query
	// AlterTable returns statements adding the column of Field |f| to the
	// table of |t|, if absent. They're safe to repeat.
	AlterTable(prefix string, t *serialize.Type, f *serialize.Field) []Query
	// CreateIndex returns statements creating an index of |column|, if absent.
	CreateIndex(table, column string) []Query
	// SelectFind returns a Query selecting "id" of rows where |column|
	// equals the ":value" parameter.
	SelectFind(table, column string) Query
	// SelectIDs returns a Query selecting "id" of all rows.
	SelectIDs(table string) Query
	// SelectField returns a Query selecting |column| of the ":id" row.
	SelectField(table, column string) Query
	// SelectReferrers returns a Query selecting "id" of rows whose |column|
	// equals the ":id" parameter.
	SelectReferrers(table, column string) Query
	// SelectExists returns a Query selecting "id" of the ":id" row.
	SelectExists(table string) Query
	// Replace returns statements which insert or update a row of |table|
	// from the Params of |values|, keyed on |keys|.
	Replace(table string, values Query, keys []string) []Query
	// Delete returns a Query removing the row of |id|.
	Delete(table string, id serialize.ID) Query
}

// Provider is a relational backend.
type Provider interface {
	Statements

	// RunQuery executes the Query. Failures are reported through Result.Err.
	RunQuery(Query) Result
	// BeginTransaction returns the statement beginning a transaction.
	BeginTransaction() Query
	// Commit returns the statement committing a transaction.
	Commit() Query
	// Rollback returns the statement rolling back a transaction.
	Rollback() Query
	// InitSchema returns statements run once, before any other, after
	// the Provider is bound with table |prefix|.
	InitSchema(prefix string) []Query
	// NextID allocates an ID of |typeName| by inserting a row into table
	// |prefix|+|typeName|, returning its ID.
	NextID(prefix, typeName string) (serialize.ID, error)
}

// Directory resolves Providers by engine name.
type Directory struct {
	mu        sync.Mutex
	providers map[string]Provider
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{providers: make(map[string]Provider)}
}

// Register Provider |p| as engine |name|, replacing any prior registration.
// A nil |p| removes the registration.
func (d *Directory) Register(name string, p Provider) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p == nil {
		delete(d.providers, name)
	} else {
		d.providers[name] = p
	}
}

// Lookup the Provider of engine |name|.
func (d *Directory) Lookup(name string) (Provider, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var p, ok = d.providers[name]
	return p, ok
}

// Names returns registered engine names in sorted order.
func (d *Directory) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out = make([]string, 0, len(d.providers))
	for n := range d.providers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
