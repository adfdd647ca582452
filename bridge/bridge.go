// Package bridge maps serializable objects onto a relational backend.
//
// Bridge implements serialize.Hooks over a provider.Provider: each Type is a
// table named by the configured prefix and the Type name, having an integer
// "id" primary key, a TEXT column per scalar Field and an integer column per
// reference Field (holding the referenced object's ID). Tables, columns and
// indexes are created lazily, the first time a hook touches them.
//
// Writes issued within one cycle of the processing loop share a single
// transaction, which is committed when the cycle goes idle. With no Provider
// bound, every hook Declines and nothing is mutated.
package bridge

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.ircservices.dev/core/cycle"
	"go.ircservices.dev/core/provider"
	"go.ircservices.dev/core/serialize"
)

// Config of the Bridge's backend binding.
type Config struct {
	Engine string `long:"engine" env:"ENGINE" default:"sqlite" description:"Database engine which persists objects. If empty, objects are held only in memory"`
	Prefix string `long:"prefix" env:"PREFIX" default:"anope_" description:"Prefix of database table names"`
}

// Bridge is a serialize.Hooks implementation backed by a provider.Provider.
// It must be used only from the goroutine of its cycle.Loop.
type Bridge struct {
	registry  *serialize.Registry
	directory *provider.Directory
	notifier  *cycle.Notifier

	sql    provider.Provider // Bound Provider, or nil.
	engine string            // Engine name of |sql|.
	prefix string            // Table name prefix.

	state     state
	commitErr error
	onFailure []func(error) // Invoked upon a failed commit.
}

var _ serialize.Hooks = (*Bridge)(nil)

// New returns a Bridge of the Registry which resolves engines from
// |directory|. Its transactions commit when cycles of |loop| go idle.
// The Bridge has no bound Provider until Reconfigure is called.
func New(registry *serialize.Registry, directory *provider.Directory, loop *cycle.Loop) *Bridge {
	var b = &Bridge{
		registry:  registry,
		directory: directory,
		state:     newState(),
	}
	b.notifier = loop.NewNotifier(b.commit)
	return b
}

// Reconfigure the Bridge's binding. A transaction open against a prior
// binding is first committed. The transaction flag and all markers of
// initialized schema are then reset. An empty or unregistered Engine leaves
// the Bridge with no bound Provider.
func (b *Bridge) Reconfigure(cfg Config) {
	b.commit()

	b.sql, b.engine, b.prefix = nil, cfg.Engine, cfg.Prefix
	b.state = newState()

	if cfg.Engine == "" {
		log.Info("no database engine configured; objects are held in memory")
	} else if p, ok := b.directory.Lookup(cfg.Engine); !ok {
		log.WithFields(log.Fields{
			"engine":    cfg.Engine,
			"available": b.directory.Names(),
		}).Warn("database engine is not available; objects are held in memory")
	} else {
		b.sql = p
		log.WithFields(log.Fields{"engine": cfg.Engine, "prefix": cfg.Prefix}).
			Info("bound database engine")
	}
}

// OnCommitFailure registers |fn| to be invoked, from the goroutine of the
// Bridge's Loop, with the error of each transaction which fails to commit.
// Writes of the transaction have been rolled back when |fn| is invoked.
func (b *Bridge) OnCommitFailure(fn func(error)) { b.onFailure = append(b.onFailure, fn) }

// Bound returns true if the Bridge has a bound Provider.
func (b *Bridge) Bound() bool { return b.sql != nil }

// Prefix returns the table name prefix of the binding.
func (b *Bridge) Prefix() string { return b.prefix }

func (b *Bridge) table(t *serialize.Type) string { return b.prefix + t.Name() }

func (b *Bridge) known(t *serialize.Type) bool {
	return t != nil && b.registry.Type(t.Name()) == t
}

// runSchema runs each of |qs|, returning true only if all succeeded.
// Schema which failed to apply isn't marked, and is retried by the next
// hook which touches it.
func (b *Bridge) runSchema(qs []provider.Query) bool {
	var ok = true
	for _, q := range qs {
		if res := b.run(q); res.Err != nil {
			ok = false
		}
	}
	return ok
}

// ensureTable creates the table of |t|, once per binding. It returns
// whether the table is known to exist.
func (b *Bridge) ensureTable(t *serialize.Type) bool {
	var table = b.table(t)
	if !b.state.tables[table] && b.runSchema(b.sql.CreateTable(b.prefix, t)) {
		b.state.tables[table] = true
	}
	return b.state.tables[table]
}

// ensureColumn creates the table of |t| and column of |f|, once per binding.
// It returns whether the column is known to exist.
func (b *Bridge) ensureColumn(t *serialize.Type, f *serialize.Field) bool {
	if !b.ensureTable(t) {
		return false
	}
	var key = b.table(t) + "." + f.Name
	if !b.state.columns[key] && b.runSchema(b.sql.AlterTable(b.prefix, t, f)) {
		b.state.columns[key] = true
	}
	return b.state.columns[key]
}

// ensureIndex creates the index of |f|, once per binding.
func (b *Bridge) ensureIndex(t *serialize.Type, f *serialize.Field) {
	if !b.ensureColumn(t, f) {
		return
	}
	var key = b.table(t) + "." + f.Name
	if !b.state.indexes[key] && b.runSchema(b.sql.CreateIndex(b.table(t), f.Name)) {
		b.state.indexes[key] = true
	}
}

func parseIDs(res provider.Result) ([]serialize.ID, error) {
	var ids = make([]serialize.ID, 0, res.Len())
	for i := 0; i != res.Len(); i++ {
		var c, err = res.Get(i, serialize.IDColumn)
		if err != nil {
			return nil, err
		} else if c.Null {
			return nil, errors.Errorf("row %d has a NULL id", i)
		}
		id, err := serialize.ParseID(c.Text)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListIDs returns the IDs of all stored objects of |t|.
func (b *Bridge) ListIDs(t *serialize.Type) serialize.Result[[]serialize.ID] {
	if b.sql == nil || !b.known(t) {
		return serialize.Decline[[]serialize.ID]()
	}
	b.startTransaction()
	b.ensureTable(t)

	var res = b.run(b.sql.SelectIDs(b.table(t)))
	if res.Err != nil {
		return serialize.Decline[[]serialize.ID]()
	}
	var ids, err = parseIDs(res)
	if err != nil {
		log.WithFields(log.Fields{"type": t.Name(), "err": err}).Warn("failed to convert stored IDs")
		return serialize.Decline[[]serialize.ID]()
	}
	return serialize.Handle(ids)
}

// FindID returns the ID of the first stored object of |t| having Field
// |f| equal to |value|. The table, column and index of |f| are created if
// they don't yet exist.
func (b *Bridge) FindID(t *serialize.Type, f *serialize.Field, value string) serialize.Result[serialize.ID] {
	if b.sql == nil || !b.known(t) || f == nil || f.Owner() != t {
		return serialize.Decline[serialize.ID]()
	}
	b.startTransaction()
	b.ensureIndex(t, f)

	var q = b.sql.SelectFind(b.table(t), f.Name)
	q.SetValue("value", value, !f.IsReference())

	var res = b.run(q)
	if res.Err != nil || res.Len() == 0 {
		return serialize.Decline[serialize.ID]()
	}
	var ids, err = parseIDs(res)
	if err != nil {
		log.WithFields(log.Fields{"type": t.Name(), "field": f.Name, "err": err}).
			Warn("failed to convert found ID")
		return serialize.Decline[serialize.ID]()
	}
	return serialize.Handle(ids[0])
}

// Exists returns whether a row of |t| having |id| is stored.
func (b *Bridge) Exists(t *serialize.Type, id serialize.ID) serialize.Result[bool] {
	if b.sql == nil || !b.known(t) {
		return serialize.Decline[bool]()
	}
	b.startTransaction()
	b.ensureTable(t)

	var q = b.sql.SelectExists(b.table(t))
	q.SetUint("id", uint64(id))

	var res = b.run(q)
	if res.Err != nil || res.Len() == 0 {
		return serialize.Decline[bool]()
	}
	return serialize.Handle(true)
}

// owns returns true if |f| is a Field of the Type of |o|.
func owns(o *serialize.Object, f *serialize.Field) bool {
	return f != nil && f.Owner() == o.Type()
}

// getValue selects the Cell of Field |f| of |o|. It returns false if no
// row exists, the query failed, or |f| isn't a Field of |o|'s Type.
func (b *Bridge) getValue(o *serialize.Object, f *serialize.Field) (provider.Cell, bool) {
	if !owns(o, f) {
		return provider.Cell{}, false
	}
	var t = o.Type()
	b.startTransaction()
	b.ensureColumn(t, f)

	var q = b.sql.SelectField(b.table(t), f.Name)
	q.SetUint("id", uint64(o.ID))

	var res = b.run(q)
	if res.Err != nil || res.Len() == 0 {
		return provider.Cell{}, false
	}
	var c, err = res.Get(0, f.Name)
	if err != nil {
		log.WithFields(log.Fields{"object": o, "field": f.Name, "err": err}).Warn("malformed result")
		return provider.Cell{}, false
	}
	return c, true
}

// GetScalar returns the stored value of Field |f| of |o|. A missing row or
// a NULL value is Declined.
func (b *Bridge) GetScalar(o *serialize.Object, f *serialize.Field) serialize.Result[string] {
	if b.sql == nil || !b.known(o.Type()) {
		return serialize.Decline[string]()
	}
	var c, ok = b.getValue(o, f)
	if !ok || c.Null {
		return serialize.Decline[string]()
	}
	return serialize.Handle(c.Text)
}

// GetReference returns the stored reference of Field |f| of |o|. A missing
// row or NULL reference is Declined, while a reference which isn't an ID is
// Corrupt.
func (b *Bridge) GetReference(o *serialize.Object, f *serialize.Field) serialize.Result[serialize.Ref] {
	if b.sql == nil || !b.known(o.Type()) || !f.IsReference() {
		return serialize.Decline[serialize.Ref]()
	}
	var c, ok = b.getValue(o, f)
	if !ok || c.Null {
		return serialize.Decline[serialize.Ref]()
	}
	var id, err = serialize.ParseID(c.Text)
	if err != nil {
		return serialize.Corrupted[serialize.Ref](
			errors.WithMessagef(err, "%s.%s", o, f.Name))
	}
	return serialize.Handle(serialize.Ref{Type: f.Target, ID: id})
}

// GetEdges returns Edges of stored objects of |t| (or of every registered
// Type if |t| is nil) which reference |o| through one of their Fields.
func (b *Bridge) GetEdges(o *serialize.Object, t *serialize.Type) serialize.Result[[]serialize.Edge] {
	if b.sql == nil || (t != nil && !b.known(t)) {
		return serialize.Decline[[]serialize.Edge]()
	}
	b.startTransaction()

	var types = b.registry.Types()
	if t != nil {
		types = []*serialize.Type{t}
	}

	var edges = []serialize.Edge{}
	for _, typ := range types {
		edges = b.getRefs(o, typ, edges)
	}
	return serialize.Handle(edges)
}

func (b *Bridge) getRefs(o *serialize.Object, t *serialize.Type, edges []serialize.Edge) []serialize.Edge {
	for _, f := range t.Fields() {
		if !f.IsReference() || f.Target != o.Type().Name() {
			continue
		}
		b.ensureColumn(t, f)

		var q = b.sql.SelectReferrers(b.table(t), f.Name)
		q.SetUint("id", uint64(o.ID))

		var res = b.run(q)
		if res.Err != nil {
			continue
		}
		var ids, err = parseIDs(res)
		if err != nil {
			log.WithFields(log.Fields{"type": t.Name(), "field": f.Name, "err": err}).
				Warn("failed to convert referencing IDs")
			continue
		}
		for _, id := range ids {
			edges = append(edges, serialize.Edge{Other: t.Require(id), Field: f})
		}
	}
	return edges
}

// set upserts Field |f| of |o| to |value|, or NULL if |value| is nil.
func (b *Bridge) set(o *serialize.Object, f *serialize.Field, value *string) serialize.Result[serialize.None] {
	if b.sql == nil || !b.known(o.Type()) || !owns(o, f) {
		return serialize.Decline[serialize.None]()
	}
	var t = o.Type()
	b.startTransaction()
	b.ensureColumn(t, f)

	var q provider.Query
	q.SetUint(serialize.IDColumn, uint64(o.ID))
	if value != nil {
		q.SetValue(f.Name, *value, !f.IsReference())
	} else {
		q.SetNull(f.Name)
	}
	for _, rq := range b.sql.Replace(b.table(t), q, []string{serialize.IDColumn}) {
		b.run(rq)
	}
	return serialize.Handle(serialize.None{})
}

// SetScalar stores |value| as Field |f| of |o|.
func (b *Bridge) SetScalar(o *serialize.Object, f *serialize.Field, value string) serialize.Result[serialize.None] {
	return b.set(o, f, &value)
}

// SetReference stores the ID of |target| as Field |f| of |o|.
// A nil |target| stores NULL.
func (b *Bridge) SetReference(o *serialize.Object, f *serialize.Field, target *serialize.Object) serialize.Result[serialize.None] {
	if target == nil {
		return b.set(o, f, nil)
	}
	var id = target.ID.String()
	return b.set(o, f, &id)
}

// UnsetScalar stores NULL as Field |f| of |o|.
func (b *Bridge) UnsetScalar(o *serialize.Object, f *serialize.Field) serialize.Result[serialize.None] {
	return b.set(o, f, nil)
}

// UnsetReference stores NULL as Field |f| of |o|.
func (b *Bridge) UnsetReference(o *serialize.Object, f *serialize.Field) serialize.Result[serialize.None] {
	return b.set(o, f, nil)
}

// HasField loads Field |f| of |o| and materializes it onto |o|, returning
// whether a value was found.
func (b *Bridge) HasField(o *serialize.Object, f *serialize.Field) serialize.Result[bool] {
	if f.IsReference() {
		var r = b.GetReference(o, f)
		switch r.Outcome {
		case serialize.Handled:
			o.MaterializeRef(f, r.Value)
			return serialize.Handle(true)
		case serialize.Corrupt:
			return serialize.Corrupted[bool](r.Reason)
		}
		return serialize.Decline[bool]()
	}

	if r := b.GetScalar(o, f); r.Outcome == serialize.Handled {
		o.Materialize(f, r.Value)
		return serialize.Handle(true)
	}
	return serialize.Decline[bool]()
}

// AllocateID allocates a new ID of |t| from the backend, which inserts
// its row.
func (b *Bridge) AllocateID(t *serialize.Type) serialize.Result[serialize.ID] {
	if b.sql == nil || !b.known(t) {
		return serialize.Decline[serialize.ID]()
	}
	b.startTransaction()
	b.ensureTable(t)

	var id, err = b.sql.NextID(b.prefix, t.Name())
	if err != nil {
		log.WithFields(log.Fields{"type": t.Name(), "err": err}).Warn("failed to allocate ID")
		return serialize.Decline[serialize.ID]()
	}
	return serialize.Handle(id)
}

// DeleteObject removes the row of |o|.
func (b *Bridge) DeleteObject(o *serialize.Object) serialize.Result[serialize.None] {
	if b.sql == nil || !b.known(o.Type()) {
		return serialize.Decline[serialize.None]()
	}
	var t = o.Type()
	b.startTransaction()
	b.ensureTable(t)

	b.run(b.sql.Delete(b.table(t), o.ID))
	return serialize.Handle(serialize.None{})
}

// Create is a notification only: rows are created by AllocateID or by the
// first write of the object.
func (b *Bridge) Create(*serialize.Object) {}
