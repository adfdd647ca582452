package serialize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ID identifies an Object within its Type. IDs are unique per Type, not globally.
type ID uint64

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseID parses the decimal text form of an ID.
func ParseID(s string) (ID, error) {
	var n, err = strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.WithMessagef(err, "parsing ID %q", s)
	}
	return ID(n), nil
}

// Ref names an Object by its Type name and ID.
type Ref struct {
	Type string
	ID   ID
}

// String returns the "Type:ID" form of the Ref.
func (r Ref) String() string { return fmt.Sprintf("%s:%d", r.Type, r.ID) }

// ParseRef parses the "Type:ID" form of a Ref.
func ParseRef(s string) (Ref, error) {
	var ind = strings.LastIndexByte(s, ':')
	if ind <= 0 {
		return Ref{}, errors.Errorf("malformed reference %q", s)
	}
	var id, err = ParseID(s[ind+1:])
	if err != nil {
		return Ref{}, err
	}
	return Ref{Type: s[:ind], ID: id}, nil
}

// Edge is a resolved reference relationship between two Objects via Field.
// If Outgoing, the Object from which the Edge was resolved holds the Field
// and points to Other. Otherwise Other holds the Field and points back.
type Edge struct {
	Other    *Object
	Field    *Field
	Outgoing bool
}

// Object is a live handle of a serializable object. Field values are
// materialized onto the Object on demand by the object layer.
type Object struct {
	ID ID

	typ       *Type
	scalars   map[string]string
	refs      map[string]Ref
	holds     int
	collected bool
}

func newObject(t *Type, id ID) *Object {
	return &Object{
		ID:      id,
		typ:     t,
		scalars: make(map[string]string),
		refs:    make(map[string]Ref),
	}
}

// Type of the Object.
func (o *Object) Type() *Type { return o.typ }

// Ref of the Object.
func (o *Object) Ref() Ref { return Ref{Type: o.typ.name, ID: o.ID} }

func (o *Object) String() string { return o.Ref().String() }

// Hold the Object, preventing its collection by Registry.GC.
func (o *Object) Hold() { o.holds++ }

// Release a previous Hold.
func (o *Object) Release() {
	if o.holds == 0 {
		panic("Release of Object which is not held")
	}
	o.holds--
}

// Collected returns true if the handle was dropped by Registry.GC.
// A collected handle must not be used further; Require a fresh one instead.
func (o *Object) Collected() bool { return o.collected }

// Materialize a scalar |value| of Field |f| onto the Object.
func (o *Object) Materialize(f *Field, value string) {
	o.scalars[f.Name] = value
}

// MaterializeRef materializes a reference of Field |f| onto the Object.
func (o *Object) MaterializeRef(f *Field, ref Ref) {
	o.refs[f.Name] = ref
}

// Forget a materialized value of Field |f|.
func (o *Object) Forget(f *Field) {
	delete(o.scalars, f.Name)
	delete(o.refs, f.Name)
}

// Scalar returns the materialized value of the named Field.
func (o *Object) Scalar(name string) (string, bool) {
	var v, ok = o.scalars[name]
	return v, ok
}

// Reference returns the materialized reference of the named Field.
func (o *Object) Reference(name string) (Ref, bool) {
	var r, ok = o.refs[name]
	return r, ok
}
