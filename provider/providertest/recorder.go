// Package providertest provides utilities for testing components which
// drive a provider.Provider.
package providertest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.ircservices.dev/core/provider"
	"go.ircservices.dev/core/provider/sqlite"
	"go.ircservices.dev/core/serialize"
)

// Recorder is a Provider which wraps another, recording the text of each
// executed Query. It may be instructed to fail matching Queries.
type Recorder struct {
	provider.Provider

	// Statements run through the Recorder, in order.
	Statements []string
	// Fail, if non-nil, is consulted before running each Query. A non-nil
	// returned error fails the Query without running it.
	Fail func(provider.Query) error
}

// NewRecorder returns a Recorder wrapping |p|.
func NewRecorder(p provider.Provider) *Recorder { return &Recorder{Provider: p} }

// RunQuery records and runs the Query.
func (r *Recorder) RunQuery(q provider.Query) provider.Result {
	r.Statements = append(r.Statements, q.Text)

	if r.Fail != nil {
		if err := r.Fail(q); err != nil {
			return provider.Result{Query: q, Err: err}
		}
	}
	return r.Provider.RunQuery(q)
}

// NextID records a "-- NextID <table>" marker and delegates to the
// wrapped Provider. Fail is consulted with a Query of the marker text.
func (r *Recorder) NextID(prefix, typeName string) (serialize.ID, error) {
	var marker = "-- NextID " + prefix + typeName
	r.Statements = append(r.Statements, marker)

	if r.Fail != nil {
		if err := r.Fail(provider.NewQuery(marker)); err != nil {
			return 0, err
		}
	}
	return r.Provider.NextID(prefix, typeName)
}

// Count returns the number of recorded statements equal to |text|.
func (r *Recorder) Count(text string) int {
	var n int
	for _, s := range r.Statements {
		if s == text {
			n++
		}
	}
	return n
}

// CountPrefix returns the number of recorded statements beginning with |prefix|.
func (r *Recorder) CountPrefix(prefix string) int {
	var n int
	for _, s := range r.Statements {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

// Reset clears recorded statements.
func (r *Recorder) Reset() { r.Statements = nil }

// NewSQLite returns a provider.DB of a private in-memory SQLite database,
// which is closed when the test completes.
func NewSQLite(t testing.TB) *provider.DB {
	var db, err = sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

// Query runs |text| against |p| with the given alternating name / Value
// pairs, and returns the Result, requiring that it succeeded.
func Query(t testing.TB, p provider.Provider, text string, params ...interface{}) provider.Result {
	var q = provider.NewQuery(text)
	for i := 0; i+1 < len(params); i += 2 {
		switch v := params[i+1].(type) {
		case nil:
			q.SetNull(params[i].(string))
		case string:
			q.SetText(params[i].(string), v)
		case int:
			q.SetInt(params[i].(string), int64(v))
		case serialize.ID:
			q.SetUint(params[i].(string), uint64(v))
		default:
			t.Fatalf("unsupported parameter type %T", v)
		}
	}
	var res = p.RunQuery(q)
	require.NoError(t, res.Err)
	return res
}
