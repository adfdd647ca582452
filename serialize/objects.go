package serialize

import (
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrCorrupt is returned (wrapped) by Objects when a hook reports stored
// data which cannot be used.
var ErrCorrupt = errors.New("corrupt serialized data")

// Objects is the generic object layer. It dispatches field accesses of
// Objects through Hooks, materializing results onto Objects, and falls back
// to in-memory state for requests which every hook Declines.
type Objects struct {
	registry *Registry
	hooks    Hooks
	nextID   map[*Type]ID
}

// NewObjects returns Objects of the Registry, backed by |hooks|.
func NewObjects(registry *Registry, hooks Hooks) *Objects {
	return &Objects{
		registry: registry,
		hooks:    hooks,
		nextID:   make(map[*Type]ID),
	}
}

// Registry of the Objects.
func (m *Objects) Registry() *Registry { return m.registry }

func corrupt(reason error, o *Object, field string) error {
	return errors.WithMessagef(ErrCorrupt, "%s.%s: %v", o, field, reason)
}

func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func (m *Objects) field(t *Type, name string) (*Field, error) {
	if f := t.Field(name); f != nil {
		return f, nil
	}
	return nil, errors.Errorf("type %s has no field %q", t.Name(), name)
}

// New creates an Object of Type |t| with a newly allocated ID. If no hook
// allocates an ID, one is drawn from an in-memory counter of the Type.
func (m *Objects) New(t *Type) (*Object, error) {
	var id ID

	switch r := m.hooks.AllocateID(t); r.Outcome {
	case Handled:
		id = r.Value
		if id >= m.nextID[t] {
			m.nextID[t] = id + 1
		}
	case Corrupt:
		return nil, errors.WithMessagef(r.Reason, "allocating %s ID", t.Name())
	default:
		if m.nextID[t] == 0 {
			m.nextID[t] = 1
		}
		for t.Peek(m.nextID[t]) != nil {
			m.nextID[t]++
		}
		id = m.nextID[t]
		m.nextID[t]++
	}

	var o = t.Require(id)
	m.hooks.Create(o)

	log.WithFields(log.Fields{"type": t.Name(), "id": id}).Debug("created object")
	return o, nil
}

// Get returns the scalar value of the named Field of |o|. The boolean
// is false if no source holds a value.
func (m *Objects) Get(o *Object, name string) (string, bool, error) {
	var f, err = m.field(o.Type(), name)
	if err != nil {
		return "", false, err
	}

	switch r := m.hooks.GetScalar(o, f); r.Outcome {
	case Handled:
		o.Materialize(f, r.Value)
		return r.Value, true, nil
	case Corrupt:
		return "", false, corrupt(r.Reason, o, name)
	default:
		var v, ok = o.Scalar(name)
		return v, ok, nil
	}
}

// GetRef returns the Object referenced by the named Field of |o|.
func (m *Objects) GetRef(o *Object, name string) (*Object, bool, error) {
	var f, err = m.field(o.Type(), name)
	if err != nil {
		return nil, false, err
	} else if !f.IsReference() {
		return nil, false, errors.Errorf("field %s.%s is not a reference", o.Type().Name(), name)
	}

	var ref Ref
	switch r := m.hooks.GetReference(o, f); r.Outcome {
	case Handled:
		ref = r.Value
		o.MaterializeRef(f, ref)
	case Corrupt:
		return nil, false, corrupt(r.Reason, o, name)
	default:
		var ok bool
		if ref, ok = o.Reference(name); !ok {
			return nil, false, nil
		}
	}

	var target = m.registry.Type(ref.Type)
	if target == nil {
		return nil, false, corrupt(errors.Errorf("unregistered type %s", ref.Type), o, name)
	}
	return target.Require(ref.ID), true, nil
}

// Set the scalar Field |name| of |o| to |value|.
func (m *Objects) Set(o *Object, name, value string) error {
	var f, err = m.field(o.Type(), name)
	if err != nil {
		return err
	} else if f.IsReference() {
		return errors.Errorf("field %s.%s is a reference", o.Type().Name(), name)
	}
	if r := m.hooks.SetScalar(o, f, value); r.Outcome == Corrupt {
		return corrupt(r.Reason, o, name)
	}
	o.Materialize(f, value)
	return nil
}

// SetRef sets the reference Field |name| of |o| to |target|, which may be
// nil to clear the reference.
func (m *Objects) SetRef(o *Object, name string, target *Object) error {
	var f, err = m.field(o.Type(), name)
	if err != nil {
		return err
	} else if !f.IsReference() {
		return errors.Errorf("field %s.%s is not a reference", o.Type().Name(), name)
	} else if target != nil && target.Type().Name() != f.Target {
		return errors.Errorf("field %s.%s references %s, not %s",
			o.Type().Name(), name, f.Target, target.Type().Name())
	}
	if r := m.hooks.SetReference(o, f, target); r.Outcome == Corrupt {
		return corrupt(r.Reason, o, name)
	}
	if target == nil {
		o.Forget(f)
	} else {
		o.MaterializeRef(f, target.Ref())
	}
	return nil
}

// Unset clears Field |name| of |o|.
func (m *Objects) Unset(o *Object, name string) error {
	var f, err = m.field(o.Type(), name)
	if err != nil {
		return err
	}
	var r Result[None]
	if f.IsReference() {
		r = m.hooks.UnsetReference(o, f)
	} else {
		r = m.hooks.UnsetScalar(o, f)
	}
	if r.Outcome == Corrupt {
		return corrupt(r.Reason, o, name)
	}
	o.Forget(f)
	return nil
}

// Load Field |name| of |o| from the hooks, returning whether it was found.
func (m *Objects) Load(o *Object, name string) (bool, error) {
	var f, err = m.field(o.Type(), name)
	if err != nil {
		return false, err
	}
	switch r := m.hooks.HasField(o, f); r.Outcome {
	case Handled:
		return r.Value, nil
	case Corrupt:
		return false, corrupt(r.Reason, o, name)
	default:
		return false, nil
	}
}

// Delete Object |o|. Its handle is dropped and must not be used further.
func (m *Objects) Delete(o *Object) error {
	if r := m.hooks.DeleteObject(o); r.Outcome == Corrupt {
		return errors.WithMessagef(r.Reason, "deleting %s", o)
	}
	var t = o.Type()
	if t.live[o.ID] == o {
		delete(t.live, o.ID)
	}
	o.collected = true
	return nil
}

// Find returns the Object of Type |t| having Field |name| equal to |value|.
// Live Objects having a materialized match are consulted if hooks Decline.
func (m *Objects) Find(t *Type, name, value string) (*Object, bool, error) {
	var f, err = m.field(t, name)
	if err != nil {
		return nil, false, err
	}
	switch r := m.hooks.FindID(t, f, value); r.Outcome {
	case Handled:
		return t.Require(r.Value), true, nil
	case Corrupt:
		return nil, false, errors.WithMessagef(r.Reason, "finding %s.%s", t.Name(), name)
	}

	var found *Object
	for _, o := range t.live {
		if v, ok := o.Scalar(name); ok && v == value && (found == nil || o.ID < found.ID) {
			found = o
		}
	}
	return found, found != nil, nil
}

// Exists returns whether Type |t| has a stored or live Object having |id|.
func (m *Objects) Exists(t *Type, id ID) (bool, error) {
	switch r := m.hooks.Exists(t, id); r.Outcome {
	case Handled:
		return r.Value, nil
	case Corrupt:
		return false, errors.WithMessagef(r.Reason, "dereferencing %s:%d", t.Name(), id)
	default:
		return t.Peek(id) != nil, nil
	}
}

// List all Objects of Type |t|, ordered by ID.
func (m *Objects) List(t *Type) ([]*Object, error) {
	var ids []ID

	switch r := m.hooks.ListIDs(t); r.Outcome {
	case Handled:
		ids = r.Value
	case Corrupt:
		return nil, errors.WithMessagef(r.Reason, "listing %s", t.Name())
	default:
		for id := range t.live {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)

	var out = make([]*Object, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.Require(id))
	}
	return out, nil
}

// Edges returns Edges of Objects of Type |t| (or any Type, if nil) which
// reference |o|.
func (m *Objects) Edges(o *Object, t *Type) ([]Edge, error) {
	switch r := m.hooks.GetEdges(o, t); r.Outcome {
	case Handled:
		return r.Value, nil
	case Corrupt:
		return nil, errors.WithMessagef(r.Reason, "resolving edges of %s", o)
	}

	// Fall back to materialized references of live Objects.
	var edges []Edge
	var types = m.registry.Types()
	if t != nil {
		types = []*Type{t}
	}
	for _, typ := range types {
		for _, f := range typ.Fields() {
			if !f.IsReference() || f.Target != o.Type().Name() {
				continue
			}
			var ids []ID
			for id, other := range typ.live {
				if ref, ok := other.Reference(f.Name); ok && ref.ID == o.ID {
					ids = append(ids, id)
				}
			}
			sortIDs(ids)
			for _, id := range ids {
				edges = append(edges, Edge{Other: typ.live[id], Field: f})
			}
		}
	}
	return edges, nil
}
