package provider

import (
	"strconv"
	"testing"

	gc "gopkg.in/check.v1"
)

type QuerySuite struct{}

func (s *QuerySuite) TestBindRewritesPlaceholders(c *gc.C) {
	var q = NewQuery(`SELECT "id" FROM "t" WHERE "a" = :a AND "b" = :b OR "a" = :a`)
	q.SetText("a", "one")
	q.SetInt("b", -2)

	var text, args, err = q.Bind(func(int) string { return "?" })
	c.Check(err, gc.IsNil)
	c.Check(text, gc.Equals, `SELECT "id" FROM "t" WHERE "a" = ? AND "b" = ? OR "a" = ?`)
	c.Check(args, gc.DeepEquals, []interface{}{"one", int64(-2), "one"})

	text, _, err = q.Bind(func(n int) string { return "$" + strconv.Itoa(n) })
	c.Check(err, gc.IsNil)
	c.Check(text, gc.Equals, `SELECT "id" FROM "t" WHERE "a" = $1 AND "b" = $2 OR "a" = $3`)
}

func (s *QuerySuite) TestBindSkipsQuotesAndCasts(c *gc.C) {
	var q = NewQuery(`SELECT ':a', ":a", "x"::text, 'it''s :a' FROM t WHERE v = :a::bigint`)
	q.SetUint("a", 42)

	var text, args, err = q.Bind(func(n int) string { return "$" + strconv.Itoa(n) })
	c.Check(err, gc.IsNil)
	c.Check(text, gc.Equals, `SELECT ':a', ":a", "x"::text, 'it''s :a' FROM t WHERE v = $1::bigint`)
	c.Check(args, gc.DeepEquals, []interface{}{int64(42)})
}

func (s *QuerySuite) TestBindErrors(c *gc.C) {
	var q = NewQuery(`SELECT 1 WHERE x = :missing`)
	var _, _, err = q.Bind(func(int) string { return "?" })
	c.Check(err, gc.ErrorMatches, `placeholder "missing" has no bound value`)

	q = NewQuery(`SELECT 'unterminated`)
	_, _, err = q.Bind(func(int) string { return "?" })
	c.Check(err, gc.ErrorMatches, `unterminated quote \(.\) in query`)

	q = NewQuery(`SELECT :n`)
	q.SetValue("n", "abc", false)
	_, _, err = q.Bind(func(int) string { return "?" })
	c.Check(err, gc.ErrorMatches, `binding "n": value "abc" is not numeric`)
}

func (s *QuerySuite) TestValueKinds(c *gc.C) {
	var q Query
	q.SetValue("text", "007", true)
	q.SetValue("num", "007", false)
	q.SetValue("float", "1.5", false)
	q.SetNull("null")
	q.SetText("text", "008") // Replaces.

	c.Check(q.Params, gc.HasLen, 4)

	for _, tc := range []struct {
		name   string
		expect interface{}
	}{
		{"text", "008"},
		{"num", int64(7)},
		{"float", 1.5},
		{"null", nil},
	} {
		var v, ok = q.Lookup(tc.name)
		c.Check(ok, gc.Equals, true)

		var arg, err = v.Arg()
		c.Check(err, gc.IsNil)
		c.Check(arg, gc.Equals, tc.expect)
	}
	var _, ok = q.Lookup("other")
	c.Check(ok, gc.Equals, false)

	var _, err = Value{Kind: 9}.Arg()
	c.Check(err, gc.ErrorMatches, "invalid ValueKind 9")
}

func (s *QuerySuite) TestResultAccess(c *gc.C) {
	var r = Result{
		Columns: []string{"id", "email"},
		Rows: [][]Cell{
			{{Text: "1"}, {Text: "a@b.com"}},
			{{Text: "2"}, {Null: true}},
		},
	}
	c.Check(r.Len(), gc.Equals, 2)
	c.Check(r.Column("email"), gc.Equals, 1)
	c.Check(r.Column("other"), gc.Equals, -1)

	var cell, err = r.Get(1, "email")
	c.Check(err, gc.IsNil)
	c.Check(cell, gc.Equals, Cell{Null: true})

	_, err = r.Get(2, "email")
	c.Check(err, gc.ErrorMatches, `row 2 out of range \(have 2\)`)
	_, err = r.Get(0, "other")
	c.Check(err, gc.ErrorMatches, `result has no column "other"`)
}

var _ = gc.Suite(&QuerySuite{})

func Test(t *testing.T) { gc.TestingT(t) }
