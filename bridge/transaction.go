package bridge

import (
	log "github.com/sirupsen/logrus"
	"go.ircservices.dev/core/metrics"
	"go.ircservices.dev/core/provider"
)

// state is the mutable binding state of a Bridge. It's owned by the
// processing loop, and is reset whenever the Bridge is reconfigured.
type state struct {
	open    bool            // Is a transaction open?
	inited  bool            // Were InitSchema statements run?
	tables  map[string]bool // Tables known to exist.
	columns map[string]bool // "table.column" pairs known to exist.
	indexes map[string]bool // "table.column" pairs known to be indexed.
}

func newState() state {
	return state{
		tables:  make(map[string]bool),
		columns: make(map[string]bool),
		indexes: make(map[string]bool),
	}
}

// forgetSchema clears markers of created schema, but not the transaction flag.
func (s *state) forgetSchema() {
	s.inited = false
	s.tables = make(map[string]bool)
	s.columns = make(map[string]bool)
	s.indexes = make(map[string]bool)
}

// run executes |q| against the bound Provider, first running InitSchema
// statements if this is the first Query of the binding.
func (b *Bridge) run(q provider.Query) provider.Result {
	if b.sql == nil {
		return provider.Result{Query: q}
	}
	if !b.state.inited {
		b.state.inited = true

		for _, iq := range b.sql.InitSchema(b.prefix) {
			if res := b.sql.RunQuery(iq); res.Err != nil {
				log.WithFields(log.Fields{"engine": b.engine, "err": res.Err}).
					Warn("failed to initialize schema")
			}
		}
	}

	var res = b.sql.RunQuery(q)
	if res.Err != nil {
		log.WithFields(log.Fields{
			"engine": b.engine,
			"query":  q.Text,
			"err":    res.Err,
		}).Warn("query failed")
	}
	return res
}

// startTransaction begins a transaction, unless no Provider is bound or a
// transaction is already open. A begun transaction arms the Bridge's
// Notifier, so it's committed when the current cycle goes idle. Any number
// of calls within one cycle share one transaction.
func (b *Bridge) startTransaction() {
	if b.sql == nil || b.state.open {
		return
	}
	if res := b.run(b.sql.BeginTransaction()); res.Err != nil {
		// Statements of this cycle will auto-commit.
		return
	}
	b.state.open = true
	b.notifier.Notify()
}

// commit the open transaction. Upon success, live object handles which are
// no longer held are collected. Upon failure the transaction is rolled
// back, schema markers are reset (DDL of the transaction is lost with it),
// collection is skipped, the error is retained for CommitErr, and
// OnCommitFailure callbacks are invoked.
func (b *Bridge) commit() {
	if b.sql == nil || !b.state.open {
		return
	}
	var res = b.run(b.sql.Commit())
	b.state.open = false

	if res.Err != nil {
		metrics.SQLTransactionsTotal.WithLabelValues(metrics.Fail).Inc()
		log.WithFields(log.Fields{"engine": b.engine, "err": res.Err}).
			Error("failed to commit transaction; writes of this cycle are lost")

		_ = b.run(b.sql.Rollback())
		b.state.forgetSchema()
		b.commitErr = res.Err

		for _, fn := range b.onFailure {
			fn(res.Err)
		}
		return
	}
	metrics.SQLTransactionsTotal.WithLabelValues(metrics.Ok).Inc()
	b.commitErr = nil

	if b.registry != nil {
		var n = b.registry.GC()
		metrics.ObjectsCollectedTotal.Add(float64(n))

		if n != 0 {
			log.WithField("collected", n).Debug("collected object handles")
		}
	}
}

// InTransaction returns true if the Bridge has an open transaction.
func (b *Bridge) InTransaction() bool { return b.state.open }

// CommitErr returns the error of the most recent commit, or nil if it succeeded.
func (b *Bridge) CommitErr() error { return b.commitErr }
