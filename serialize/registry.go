package serialize

import (
	"sort"

	"github.com/pkg/errors"
)

// FieldKind distinguishes Fields holding plain values from Fields
// holding a reference to an object of another Type.
type FieldKind int

const (
	// Scalar fields persist a textual value.
	Scalar FieldKind = iota
	// Reference fields persist the ID of an object of the Field's Target Type.
	Reference
)

func (k FieldKind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Reference:
		return "reference"
	default:
		return "unknown"
	}
}

// Field describes one persisted attribute of a Type.
type Field struct {
	// Name of the Field, which is also its column name.
	Name string
	// Kind of the Field.
	Kind FieldKind
	// Target is the name of the referenced Type. It's set only if Kind is Reference.
	Target string

	owner *Type
}

// IsReference returns true if the Field references another object.
func (f *Field) IsReference() bool { return f.Kind == Reference }

// Owner returns the Type which declares the Field.
func (f *Field) Owner() *Type { return f.owner }

// Validate returns an error if the Field is not well-formed.
func (f *Field) Validate() error {
	if f.Name == "" {
		return errors.New("expected Field Name")
	} else if f.Name == IDColumn {
		return errors.Errorf("field name %q is reserved", f.Name)
	}
	switch f.Kind {
	case Scalar:
		if f.Target != "" {
			return errors.Errorf("scalar field %q has a reference Target (%s)", f.Name, f.Target)
		}
	case Reference:
		if f.Target == "" {
			return errors.Errorf("reference field %q is missing a Target", f.Name)
		}
	default:
		return errors.Errorf("field %q has invalid kind %d", f.Name, f.Kind)
	}
	return nil
}

// IDColumn is the primary-key column of every Type's table.
const IDColumn = "id"

// Type is a registered schema of serializable objects. Its Fields are
// ordered by registration.
type Type struct {
	name   string
	fields []*Field
	byName map[string]*Field
	live   map[ID]*Object
}

// Name of the Type.
func (t *Type) Name() string { return t.name }

// Fields of the Type, in registration order. The returned slice must not be modified.
func (t *Type) Fields() []*Field { return t.fields }

// Field returns the named Field, or nil if the Type has no such Field.
func (t *Type) Field(name string) *Field { return t.byName[name] }

// Require returns the live Object of the Type having |id|,
// creating a handle if one doesn't exist.
func (t *Type) Require(id ID) *Object {
	if o, ok := t.live[id]; ok {
		return o
	}
	var o = newObject(t, id)
	t.live[id] = o
	return o
}

// Peek returns the live Object having |id|, or nil.
func (t *Type) Peek(id ID) *Object { return t.live[id] }

// Live returns the number of live Object handles of the Type.
func (t *Type) Live() int { return len(t.live) }

func (t *Type) addField(f Field) (*Field, error) {
	if err := f.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "type %s", t.name)
	} else if _, ok := t.byName[f.Name]; ok {
		return nil, errors.Errorf("type %s already has field %q", t.name, f.Name)
	}
	var out = &Field{Name: f.Name, Kind: f.Kind, Target: f.Target, owner: t}
	t.fields = append(t.fields, out)
	t.byName[out.Name] = out
	return out, nil
}

// Registry holds all serializable Types of the process. Types are
// registered once at startup and are never unregistered. A Registry is
// not safe for concurrent use: it belongs to the processing loop.
type Registry struct {
	types map[string]*Type
	order []*Type
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Register a Type having |name| and the ordered |fields|.
func (r *Registry) Register(name string, fields ...Field) (*Type, error) {
	if name == "" {
		return nil, errors.New("expected Type name")
	} else if _, ok := r.types[name]; ok {
		return nil, errors.Errorf("type %s is already registered", name)
	}
	var t = &Type{
		name:   name,
		byName: make(map[string]*Field, len(fields)),
		live:   make(map[ID]*Object),
	}
	for _, f := range fields {
		if _, err := t.addField(f); err != nil {
			return nil, err
		}
	}
	r.types[name] = t
	r.order = append(r.order, t)
	return t, nil
}

// MustRegister is Register which panics on error.
func (r *Registry) MustRegister(name string, fields ...Field) *Type {
	var t, err = r.Register(name, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// AddField appends a Field to a registered Type. The Field's column is
// created by storage backends on its first use.
func (r *Registry) AddField(typeName string, f Field) (*Field, error) {
	var t, ok = r.types[typeName]
	if !ok {
		return nil, errors.Errorf("type %s is not registered", typeName)
	}
	return t.addField(f)
}

// Type returns the named Type, or nil if not registered.
func (r *Registry) Type(name string) *Type { return r.types[name] }

// Types returns all registered Types in registration order.
func (r *Registry) Types() []*Type { return r.order }

// Validate that every Reference Field targets a registered Type.
func (r *Registry) Validate() error {
	for _, t := range r.order {
		for _, f := range t.fields {
			if f.IsReference() && r.types[f.Target] == nil {
				return errors.Errorf("field %s.%s references unregistered type %s",
					t.name, f.Name, f.Target)
			}
		}
	}
	return nil
}

// GC drops live Object handles which are not held, returning the number
// of collected handles.
func (r *Registry) GC() int {
	var n int
	for _, t := range r.order {
		var ids []ID
		for id, o := range t.live {
			if o.holds == 0 {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			t.live[id].collected = true
			delete(t.live, id)
		}
		n += len(ids)
	}
	return n
}
