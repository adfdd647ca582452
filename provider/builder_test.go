package provider

import (
	"github.com/pkg/errors"
	"go.ircservices.dev/core/serialize"
	gc "gopkg.in/check.v1"
)

type BuilderSuite struct{}

// testDialect is a minimal Dialect used to exercise Builder.
type testDialect struct{}

func (testDialect) Name() string           { return "test" }
func (testDialect) DriverName() string     { return "test" }
func (testDialect) Placeholder(int) string { return "?" }
func (testDialect) PrimaryKey() string     { return "INTEGER PRIMARY KEY" }
func (testDialect) ColumnType(f *serialize.Field) string {
	if f.IsReference() {
		return "INTEGER"
	}
	return "TEXT"
}
func (testDialect) AddColumn(table, column, typ string) string {
	return "ALTER TABLE " + table + " ADD COLUMN " + column + " " + typ
}
func (testDialect) ListColumns() Query                        { return NewQuery("SELECT name FROM columns(:table)") }
func (testDialect) InsertDefault(table string) (string, bool) { return "INSERT INTO " + table, false }
func (testDialect) InitSchema(string) []Query                 { return nil }
func (testDialect) IsAlreadyExists(err error) bool {
	return errors.Cause(err).Error() == "exists"
}

func (s *BuilderSuite) types() (*serialize.Type, *serialize.Type) {
	var reg = serialize.NewRegistry()
	var acct = reg.MustRegister("Account", serialize.Field{Name: "email"})
	var ch = reg.MustRegister("Channel",
		serialize.Field{Name: "founder", Kind: serialize.Reference, Target: "Account"})
	return acct, ch
}

func (s *BuilderSuite) TestSchemaStatements(c *gc.C) {
	var b = Builder{Dialect: testDialect{}}
	var acct, ch = s.types()

	var qs = b.CreateTable("anope_", acct)
	c.Assert(qs, gc.HasLen, 1)
	c.Check(qs[0].Text, gc.Equals, `CREATE TABLE IF NOT EXISTS "anope_Account" ("id" INTEGER PRIMARY KEY)`)
	c.Check(qs[0].Schema, gc.Equals, true)

	qs = b.AlterTable("anope_", acct, acct.Field("email"), nil)
	c.Assert(qs, gc.HasLen, 1)
	c.Check(qs[0].Text, gc.Equals, `ALTER TABLE "anope_Account" ADD COLUMN "email" TEXT`)
	c.Check(qs[0].Schema, gc.Equals, true)

	// Present columns produce no statements.
	c.Check(b.AlterTable("anope_", acct, acct.Field("email"), map[string]bool{"email": true}), gc.HasLen, 0)

	// References are also indexed.
	qs = b.AlterTable("anope_", ch, ch.Field("founder"), map[string]bool{"id": true})
	c.Assert(qs, gc.HasLen, 2)
	c.Check(qs[0].Text, gc.Equals, `ALTER TABLE "anope_Channel" ADD COLUMN "founder" INTEGER`)
	c.Check(qs[1].Text, gc.Equals,
		`CREATE INDEX IF NOT EXISTS "anope_Channel_founder_idx" ON "anope_Channel" ("founder")`)
	c.Check(qs[1].Schema, gc.Equals, true)
}

func (s *BuilderSuite) TestSelects(c *gc.C) {
	var b = Builder{Dialect: testDialect{}}

	c.Check(b.SelectFind("anope_Account", "email").Text, gc.Equals,
		`SELECT "id" FROM "anope_Account" WHERE "email" = :value ORDER BY "id"`)
	c.Check(b.SelectIDs("anope_Account").Text, gc.Equals,
		`SELECT "id" FROM "anope_Account" ORDER BY "id"`)
	c.Check(b.SelectField("anope_Account", "email").Text, gc.Equals,
		`SELECT "email" FROM "anope_Account" WHERE "id" = :id`)
	c.Check(b.SelectReferrers("anope_Channel", "founder").Text, gc.Equals,
		`SELECT "id" FROM "anope_Channel" WHERE "founder" = :id ORDER BY "id"`)
	c.Check(b.SelectExists("anope_Account").Text, gc.Equals,
		`SELECT "id" FROM "anope_Account" WHERE "id" = :id`)

	var q = b.Delete("anope_Account", 7)
	c.Check(q.Text, gc.Equals, `DELETE FROM "anope_Account" WHERE "id" = :id`)
	c.Check(q.Params, gc.DeepEquals, []Param{{Name: "id", Value: Value{Kind: Numeric, Data: "7"}}})
}

func (s *BuilderSuite) TestReplace(c *gc.C) {
	var b = Builder{Dialect: testDialect{}}

	var values Query
	values.SetUint("id", 5)
	values.SetText("e-mail", "a@b.com")
	values.SetNull("display")

	var qs = b.Replace("anope_Account", values, []string{"id"})
	c.Assert(qs, gc.HasLen, 1)
	c.Check(qs[0].Text, gc.Equals, `INSERT INTO "anope_Account" ("id", "e-mail", "display") `+
		`VALUES (:v0, :v1, :v2) ON CONFLICT ("id") `+
		`DO UPDATE SET "e-mail" = excluded."e-mail", "display" = excluded."display"`)
	c.Check(qs[0].Params, gc.DeepEquals, []Param{
		{Name: "v0", Value: Value{Kind: Numeric, Data: "5"}},
		{Name: "v1", Value: Value{Kind: Text, Data: "a@b.com"}},
		{Name: "v2", Value: Value{Kind: Null}},
	})

	var text, args, err = qs[0].Bind(testDialect{}.Placeholder)
	c.Check(err, gc.IsNil)
	c.Check(text, gc.Equals, `INSERT INTO "anope_Account" ("id", "e-mail", "display") `+
		`VALUES (?, ?, ?) ON CONFLICT ("id") `+
		`DO UPDATE SET "e-mail" = excluded."e-mail", "display" = excluded."display"`)
	c.Check(args, gc.DeepEquals, []interface{}{int64(5), "a@b.com", nil})

	// Keys alone do nothing on conflict.
	values = Query{}
	values.SetUint("id", 5)
	qs = b.Replace("anope_Account", values, []string{"id"})
	c.Check(qs[0].Text, gc.Equals,
		`INSERT INTO "anope_Account" ("id") VALUES (:v0) ON CONFLICT ("id") DO NOTHING`)
}

func (s *BuilderSuite) TestQuoteIdent(c *gc.C) {
	c.Check(QuoteIdent("plain"), gc.Equals, `"plain"`)
	c.Check(QuoteIdent(`we"ird`), gc.Equals, `"we""ird"`)
}

func (s *BuilderSuite) TestQueryKinds(c *gc.C) {
	c.Check(queryKind(Query{Text: "CREATE TABLE x", Schema: true}), gc.Equals, "schema")
	c.Check(queryKind(NewQuery(" begin")), gc.Equals, "transaction")
	c.Check(queryKind(NewQuery("SELECT 1")), gc.Equals, "read")
	c.Check(queryKind(NewQuery("DELETE FROM x")), gc.Equals, "write")

	c.Check(ReturnsRows("select 1"), gc.Equals, true)
	c.Check(ReturnsRows("PRAGMA table_info(x)"), gc.Equals, true)
	c.Check(ReturnsRows(`INSERT INTO "t" DEFAULT VALUES RETURNING "id"`), gc.Equals, true)
	c.Check(ReturnsRows(`INSERT INTO "t" DEFAULT VALUES`), gc.Equals, false)
}

var _ = gc.Suite(&BuilderSuite{})
