package serialize

// Hooks are implemented by storage backends of serializable objects. Each
// hook returns a Result which is Handled, Declined ("no data here, try
// another source"), or Corrupt ("data present but unusable"). Hooks never
// return errors: failures are mapped to one of these outcomes.
type Hooks interface {
	// ListIDs returns all IDs of Type |t|.
	ListIDs(t *Type) Result[[]ID]
	// FindID returns the ID of an object of Type |t| whose Field |f| is |value|.
	FindID(t *Type, f *Field, value string) Result[ID]
	// Exists returns whether an object of Type |t| having |id| is stored.
	Exists(t *Type, id ID) Result[bool]
	// GetScalar returns the stored value of Field |f| of Object |o|.
	GetScalar(o *Object, f *Field) Result[string]
	// GetReference returns the stored reference of Field |f| of Object |o|.
	GetReference(o *Object, f *Field) Result[Ref]
	// GetEdges returns Edges of Objects of Type |t| (or of all Types, if nil)
	// which reference Object |o|.
	GetEdges(o *Object, t *Type) Result[[]Edge]
	// SetScalar stores |value| as Field |f| of Object |o|.
	SetScalar(o *Object, f *Field, value string) Result[None]
	// SetReference stores |target| as Field |f| of Object |o|.
	// A nil |target| clears the reference.
	SetReference(o *Object, f *Field, target *Object) Result[None]
	// UnsetScalar clears the stored value of Field |f| of Object |o|.
	UnsetScalar(o *Object, f *Field) Result[None]
	// UnsetReference clears the stored reference of Field |f| of Object |o|.
	UnsetReference(o *Object, f *Field) Result[None]
	// HasField loads Field |f| of Object |o|, materializing it onto |o|.
	HasField(o *Object, f *Field) Result[bool]
	// AllocateID returns a new ID for an object of Type |t|.
	AllocateID(t *Type) Result[ID]
	// DeleteObject removes stored Object |o|.
	DeleteObject(o *Object) Result[None]
	// Create notifies of a newly created Object |o|.
	Create(o *Object)
}

// Populator is optionally implemented by Hooks which cache values. When a
// read is Declined by a Populator but Handled by a later hook of a Chain,
// the Populator is filled with the Handled value.
type Populator interface {
	PopulateScalar(o *Object, f *Field, value string)
	PopulateReference(o *Object, f *Field, ref Ref)
}

// Chain is an ordered fallback chain of Hooks. Each operation is
// offered to Hooks in order until one doesn't Decline. Chain itself
// implements Hooks.
type Chain []Hooks

var _ Hooks = Chain(nil)

func first[T any](c Chain, fn func(Hooks) Result[T]) (Result[T], int) {
	for i, h := range c {
		if r := fn(h); r.Outcome != Declined {
			return r, i
		}
	}
	return Decline[T](), len(c)
}

func (c Chain) ListIDs(t *Type) Result[[]ID] {
	var r, _ = first(c, func(h Hooks) Result[[]ID] { return h.ListIDs(t) })
	return r
}

func (c Chain) FindID(t *Type, f *Field, value string) Result[ID] {
	var r, _ = first(c, func(h Hooks) Result[ID] { return h.FindID(t, f, value) })
	return r
}

func (c Chain) Exists(t *Type, id ID) Result[bool] {
	var r, _ = first(c, func(h Hooks) Result[bool] { return h.Exists(t, id) })
	return r
}

func (c Chain) GetScalar(o *Object, f *Field) Result[string] {
	var r, ind = first(c, func(h Hooks) Result[string] { return h.GetScalar(o, f) })
	if r.Outcome == Handled {
		for _, h := range c[:ind] {
			if p, ok := h.(Populator); ok {
				p.PopulateScalar(o, f, r.Value)
			}
		}
	}
	return r
}

func (c Chain) GetReference(o *Object, f *Field) Result[Ref] {
	var r, ind = first(c, func(h Hooks) Result[Ref] { return h.GetReference(o, f) })
	if r.Outcome == Handled {
		for _, h := range c[:ind] {
			if p, ok := h.(Populator); ok {
				p.PopulateReference(o, f, r.Value)
			}
		}
	}
	return r
}

func (c Chain) GetEdges(o *Object, t *Type) Result[[]Edge] {
	var r, _ = first(c, func(h Hooks) Result[[]Edge] { return h.GetEdges(o, t) })
	return r
}

func (c Chain) SetScalar(o *Object, f *Field, value string) Result[None] {
	var r, _ = first(c, func(h Hooks) Result[None] { return h.SetScalar(o, f, value) })
	return r
}

func (c Chain) SetReference(o *Object, f *Field, target *Object) Result[None] {
	var r, _ = first(c, func(h Hooks) Result[None] { return h.SetReference(o, f, target) })
	return r
}

func (c Chain) UnsetScalar(o *Object, f *Field) Result[None] {
	var r, _ = first(c, func(h Hooks) Result[None] { return h.UnsetScalar(o, f) })
	return r
}

func (c Chain) UnsetReference(o *Object, f *Field) Result[None] {
	var r, _ = first(c, func(h Hooks) Result[None] { return h.UnsetReference(o, f) })
	return r
}

func (c Chain) HasField(o *Object, f *Field) Result[bool] {
	var r, _ = first(c, func(h Hooks) Result[bool] { return h.HasField(o, f) })
	return r
}

func (c Chain) AllocateID(t *Type) Result[ID] {
	var r, _ = first(c, func(h Hooks) Result[ID] { return h.AllocateID(t) })
	return r
}

func (c Chain) DeleteObject(o *Object) Result[None] {
	var r, _ = first(c, func(h Hooks) Result[None] { return h.DeleteObject(o) })
	return r
}

// Create notifies every Hooks of the Chain.
func (c Chain) Create(o *Object) {
	for _, h := range c {
		h.Create(o)
	}
}
