package postgres

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.ircservices.dev/core/provider"
	"go.ircservices.dev/core/serialize"
	gc "gopkg.in/check.v1"
)

type DialectSuite struct{}

func (s *DialectSuite) types() (*serialize.Type, *serialize.Type) {
	var reg = serialize.NewRegistry()
	var acct = reg.MustRegister("Account", serialize.Field{Name: "email"})
	var ch = reg.MustRegister("Channel",
		serialize.Field{Name: "founder", Kind: serialize.Reference, Target: "Account"})
	return acct, ch
}

func (s *DialectSuite) TestSchemaStatements(c *gc.C) {
	var b = provider.Builder{Dialect: Dialect{}}
	var acct, ch = s.types()

	var qs = b.CreateTable("anope_", acct)
	c.Assert(qs, gc.HasLen, 1)
	c.Check(qs[0].Text, gc.Equals, `CREATE TABLE IF NOT EXISTS "anope_Account" `+
		`("id" BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY)`)

	qs = b.AlterTable("anope_", acct, acct.Field("email"), nil)
	c.Assert(qs, gc.HasLen, 1)
	c.Check(qs[0].Text, gc.Equals, `ALTER TABLE "anope_Account" ADD COLUMN IF NOT EXISTS "email" TEXT`)
	c.Check(qs[0].Schema, gc.Equals, true)

	// Reference columns are BIGINT, and indexed.
	qs = b.AlterTable("anope_", ch, ch.Field("founder"), nil)
	c.Assert(qs, gc.HasLen, 2)
	c.Check(qs[0].Text, gc.Equals, `ALTER TABLE "anope_Channel" ADD COLUMN IF NOT EXISTS "founder" BIGINT`)
	c.Check(qs[1].Text, gc.Equals,
		`CREATE INDEX IF NOT EXISTS "anope_Channel_founder_idx" ON "anope_Channel" ("founder")`)
}

func (s *DialectSuite) TestInsertDefaultReturnsID(c *gc.C) {
	var text, returning = Dialect{}.InsertDefault(provider.QuoteIdent("anope_Account"))

	c.Check(text, gc.Equals, `INSERT INTO "anope_Account" DEFAULT VALUES RETURNING "id"`)
	c.Check(returning, gc.Equals, true)
	c.Check(provider.ReturnsRows(text), gc.Equals, true)
}

func (s *DialectSuite) TestPlaceholders(c *gc.C) {
	var b = provider.Builder{Dialect: Dialect{}}

	var q provider.Query
	q.SetUint(serialize.IDColumn, 7)
	q.SetText("email", "a@b.com")

	var qs = b.Replace("anope_Account", q, []string{serialize.IDColumn})
	c.Assert(qs, gc.HasLen, 1)

	var text, args, err = qs[0].Bind(Dialect{}.Placeholder)
	c.Assert(err, gc.IsNil)
	c.Check(text, gc.Equals, `INSERT INTO "anope_Account" ("id", "email") VALUES ($1, $2) `+
		`ON CONFLICT ("id") DO UPDATE SET "email" = excluded."email"`)
	c.Check(args, gc.DeepEquals, []interface{}{int64(7), "a@b.com"})

	// Type casts and quoted text aren't placeholders.
	q = provider.NewQuery(`SELECT :id::text, ':nope' FROM t WHERE n = :n`)
	q.SetUint("id", 1)
	q.SetInt("n", 2)

	text, args, err = q.Bind(Dialect{}.Placeholder)
	c.Assert(err, gc.IsNil)
	c.Check(text, gc.Equals, `SELECT $1::text, ':nope' FROM t WHERE n = $2`)
	c.Check(args, gc.HasLen, 2)

	q = Dialect{}.ListColumns()
	q.SetText("table", "anope_Account")
	text, _, err = q.Bind(Dialect{}.Placeholder)
	c.Assert(err, gc.IsNil)
	c.Check(text, gc.Matches, `(?s).*table_name = \$1`)
}

func (s *DialectSuite) TestIsAlreadyExists(c *gc.C) {
	var d = Dialect{}

	for _, code := range []pq.ErrorCode{"42P07", "42701", "42710"} {
		c.Check(d.IsAlreadyExists(&pq.Error{Code: code}), gc.Equals, true)
		c.Check(d.IsAlreadyExists(errors.WithMessage(&pq.Error{Code: code}, "running")), gc.Equals, true)
	}
	// undefined_table, and non-driver errors.
	c.Check(d.IsAlreadyExists(&pq.Error{Code: "42P01"}), gc.Equals, false)
	c.Check(d.IsAlreadyExists(errors.New("relation already exists")), gc.Equals, false)
	c.Check(d.IsAlreadyExists(nil), gc.Equals, false)
}

func (s *DialectSuite) TestInitSchema(c *gc.C) {
	var qs = Dialect{}.InitSchema("anope_")
	c.Assert(qs, gc.HasLen, 1)
	c.Check(qs[0].Text, gc.Equals, "SET TIME ZONE 'UTC'")
	c.Check(qs[0].Schema, gc.Equals, false)
	c.Check(Dialect{}.Name(), gc.Equals, EngineName)
}

var _ = gc.Suite(&DialectSuite{})

func Test(t *testing.T) { gc.TestingT(t) }
