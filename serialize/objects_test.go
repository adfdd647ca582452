package serialize

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// declining Declines every request.
type declining struct{}

func (declining) ListIDs(*Type) Result[[]ID]                         { return Decline[[]ID]() }
func (declining) FindID(*Type, *Field, string) Result[ID]            { return Decline[ID]() }
func (declining) Exists(*Type, ID) Result[bool]                      { return Decline[bool]() }
func (declining) GetScalar(*Object, *Field) Result[string]           { return Decline[string]() }
func (declining) GetReference(*Object, *Field) Result[Ref]           { return Decline[Ref]() }
func (declining) GetEdges(*Object, *Type) Result[[]Edge]             { return Decline[[]Edge]() }
func (declining) SetScalar(*Object, *Field, string) Result[None]     { return Decline[None]() }
func (declining) SetReference(*Object, *Field, *Object) Result[None] { return Decline[None]() }
func (declining) UnsetScalar(*Object, *Field) Result[None]           { return Decline[None]() }
func (declining) UnsetReference(*Object, *Field) Result[None]        { return Decline[None]() }
func (declining) HasField(*Object, *Field) Result[bool]              { return Decline[bool]() }
func (declining) AllocateID(*Type) Result[ID]                        { return Decline[ID]() }
func (declining) DeleteObject(*Object) Result[None]                  { return Decline[None]() }
func (declining) Create(*Object)                                     {}

// mapHooks stores scalars and references in maps keyed on "Type:ID.field".
type mapHooks struct {
	declining
	scalars   map[string]string
	refs      map[string]Ref
	created   []Ref
	nextID    ID
	populated int
}

func newMapHooks() *mapHooks {
	return &mapHooks{scalars: make(map[string]string), refs: make(map[string]Ref)}
}

func key(o *Object, f *Field) string { return o.String() + "." + f.Name }

func (h *mapHooks) GetScalar(o *Object, f *Field) Result[string] {
	if v, ok := h.scalars[key(o, f)]; ok {
		return Handle(v)
	}
	return Decline[string]()
}

func (h *mapHooks) GetReference(o *Object, f *Field) Result[Ref] {
	if v, ok := h.refs[key(o, f)]; ok {
		return Handle(v)
	}
	return Decline[Ref]()
}

func (h *mapHooks) SetScalar(o *Object, f *Field, v string) Result[None] {
	h.scalars[key(o, f)] = v
	return Handle(None{})
}

func (h *mapHooks) AllocateID(*Type) Result[ID] {
	if h.nextID == 0 {
		return Decline[ID]()
	}
	h.nextID++
	return Handle(h.nextID - 1)
}

func (h *mapHooks) Create(o *Object) { h.created = append(h.created, o.Ref()) }

func (h *mapHooks) PopulateScalar(o *Object, f *Field, v string) {
	h.scalars[key(o, f)] = v
	h.populated++
}

func (h *mapHooks) PopulateReference(o *Object, f *Field, r Ref) {
	h.refs[key(o, f)] = r
	h.populated++
}

// corrupting reports every read as Corrupt.
type corrupting struct{ declining }

func (corrupting) GetScalar(*Object, *Field) Result[string] {
	return Corrupted[string](errors.New("bad row"))
}

func (corrupting) GetReference(*Object, *Field) Result[Ref] {
	return Corrupted[Ref](errors.New("bad row"))
}

func testRegistry() (*Registry, *Type, *Type) {
	var reg = NewRegistry()
	var acct = reg.MustRegister("Account", Field{Name: "display"}, Field{Name: "email"})
	var ch = reg.MustRegister("Channel",
		Field{Name: "name"},
		Field{Name: "founder", Kind: Reference, Target: "Account"},
	)
	return reg, acct, ch
}

func TestChainFallbackAndPopulation(t *testing.T) {
	var _, acct, ch = testRegistry()
	var cache, store = newMapHooks(), newMapHooks()
	var chain = Chain{cache, store}

	var o, email = acct.Require(1), acct.Field("email")
	store.scalars["Account:1.email"] = "a@b.com"

	// The cache misses, the store answers, and the cache is populated.
	assert.Equal(t, Handle("a@b.com"), chain.GetScalar(o, email))
	assert.Equal(t, "a@b.com", cache.scalars["Account:1.email"])
	assert.Equal(t, 1, cache.populated)
	assert.Equal(t, 0, store.populated)

	// Now the cache answers, so nothing is populated.
	assert.Equal(t, Handle("a@b.com"), chain.GetScalar(o, email))
	assert.Equal(t, 1, cache.populated)

	var c, founder = ch.Require(2), ch.Field("founder")
	store.refs["Channel:2.founder"] = o.Ref()
	assert.Equal(t, Handle(o.Ref()), chain.GetReference(c, founder))
	assert.Equal(t, o.Ref(), cache.refs["Channel:2.founder"])

	// Writes go to the first hook which doesn't Decline.
	assert.True(t, chain.SetScalar(o, acct.Field("display"), "alice").Handled())
	assert.Equal(t, "alice", cache.scalars["Account:1.display"])
	assert.NotContains(t, store.scalars, "Account:1.display")

	// Everything Declines.
	assert.True(t, chain.ListIDs(acct).Declined())
	assert.True(t, Chain{}.GetScalar(o, email).Declined())

	// Corrupt stops the chain.
	chain = Chain{corrupting{}, store}
	var r = chain.GetScalar(o, email)
	assert.Equal(t, Corrupt, r.Outcome)
	assert.EqualError(t, r.Reason, "bad row")

	// Create notifies every Hooks.
	Chain{cache, store}.Create(o)
	assert.Equal(t, []Ref{o.Ref()}, cache.created)
	assert.Equal(t, []Ref{o.Ref()}, store.created)
}

func TestObjectsInMemoryFallback(t *testing.T) {
	var reg, acct, ch = testRegistry()
	var objs = NewObjects(reg, Chain{declining{}})

	var a, err = objs.New(acct)
	require.NoError(t, err)
	assert.Equal(t, ID(1), a.ID)

	// Live IDs are skipped by the in-memory allocator.
	acct.Require(2)
	b, err := objs.New(acct)
	require.NoError(t, err)
	assert.Equal(t, ID(3), b.ID)

	require.NoError(t, objs.Set(a, "email", "a@b.com"))
	require.NoError(t, objs.Set(b, "email", "c@d.com"))

	v, ok, err := objs.Get(a, "email")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", v)

	_, ok, err = objs.Get(a, "display")
	assert.NoError(t, err)
	assert.False(t, ok)

	found, ok, err := objs.Find(acct, "email", "c@d.com")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, b, found)

	_, ok, err = objs.Find(acct, "email", "missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	list, err := objs.List(acct)
	assert.NoError(t, err)
	assert.Equal(t, []*Object{a, acct.Peek(2), b}, list)

	ok, err = objs.Exists(acct, 3)
	assert.NoError(t, err)
	assert.True(t, ok)

	// References and Edges.
	var c1, c2 = ch.Require(1), ch.Require(2)
	require.NoError(t, objs.SetRef(c1, "founder", a))
	require.NoError(t, objs.SetRef(c2, "founder", a))

	target, ok, err := objs.GetRef(c1, "founder")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, a, target)

	edges, err := objs.Edges(a, nil)
	assert.NoError(t, err)
	assert.Equal(t, []Edge{{Other: c1, Field: ch.Field("founder")}, {Other: c2, Field: ch.Field("founder")}}, edges)

	require.NoError(t, objs.SetRef(c2, "founder", nil))
	edges, err = objs.Edges(a, ch)
	assert.NoError(t, err)
	assert.Len(t, edges, 1)

	require.NoError(t, objs.Unset(a, "email"))
	_, ok, _ = objs.Get(a, "email")
	assert.False(t, ok)

	require.NoError(t, objs.Delete(b))
	assert.True(t, b.Collected())
	ok, err = objs.Exists(acct, 3)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestObjectsFieldErrors(t *testing.T) {
	var reg, acct, ch = testRegistry()
	var objs = NewObjects(reg, Chain{declining{}})
	var a, c = acct.Require(1), ch.Require(1)

	_, _, err := objs.Get(a, "missing")
	assert.EqualError(t, err, `type Account has no field "missing"`)
	assert.EqualError(t, objs.Set(c, "founder", "1"), "field Channel.founder is a reference")
	assert.EqualError(t, objs.SetRef(a, "email", a), "field Account.email is not a reference")
	assert.EqualError(t, objs.SetRef(c, "founder", c), "field Channel.founder references Account, not Channel")
	_, _, err = objs.GetRef(a, "email")
	assert.EqualError(t, err, "field Account.email is not a reference")
}

func TestObjectsHookResults(t *testing.T) {
	var reg, acct, ch = testRegistry()
	var store = newMapHooks()
	store.nextID = 10
	var objs = NewObjects(reg, Chain{store})

	var a, err = objs.New(acct)
	require.NoError(t, err)
	assert.Equal(t, ID(10), a.ID)
	assert.Equal(t, []Ref{{Type: "Account", ID: 10}}, store.created)

	// Handled reads are materialized.
	store.scalars["Account:10.email"] = "a@b.com"
	v, ok, err := objs.Get(a, "email")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", v)
	v, ok = a.Scalar("email")
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", v)

	// A stored reference to an unregistered type is corrupt.
	var c = ch.Require(1)
	store.refs["Channel:1.founder"] = Ref{Type: "Nick", ID: 1}
	_, _, err = objs.GetRef(c, "founder")
	assert.True(t, errors.Is(err, ErrCorrupt))

	// Corrupt results surface as ErrCorrupt.
	objs = NewObjects(reg, Chain{corrupting{}, store})
	_, _, err = objs.Get(a, "email")
	assert.True(t, errors.Is(err, ErrCorrupt))
	assert.Contains(t, err.Error(), "Account:10.email: bad row")

	_, _, err = objs.GetRef(c, "founder")
	assert.True(t, errors.Is(err, ErrCorrupt))
}
