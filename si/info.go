package si

// Info is a node in a SerializationInfo tree. Trees are built and owned
// by whoever constructs them (a Decomposer walking user data, or a
// Composer fed by a Deserializer); they are transient per RPC call and
// may be discarded as soon as the formatter/parser finishes with them.
//
// Back-references to the parent are not stored at all (spec.md §9 flags
// the C++ source's raw back-pointers as a pattern needing redesign):
// an Info only ever holds forward pointers to its own members, so a
// subtree is a self-contained value with no link back to whatever
// Object or Array it was appended into. Nothing in this package (the
// Decomposer/Composer traversal, codecs, or si.Marshaler/Unmarshaler)
// ever needs to walk from a child back to its parent.
type Info struct {
	category Category
	name     *string
	typeName *string
	scalar   Scalar
	members  []*Info
}

// NewVoid returns a detached Void node.
func NewVoid() *Info { return &Info{category: Void} }

// NewValue returns a detached Value node carrying scalar.
func NewValue(scalar Scalar) *Info { return &Info{category: Value, scalar: scalar} }

// NewObject returns a detached, empty Object node.
func NewObject() *Info { return &Info{category: Object} }

// NewArray returns a detached, empty Array node.
func NewArray() *Info { return &Info{category: Array} }

// Category returns the node's category.
func (i *Info) Category() Category { return i.category }

// Name returns the member name within a parent Object, or "" if unset.
func (i *Info) Name() string {
	if i.name == nil {
		return ""
	}
	return *i.name
}

// HasName reports whether a name has been set.
func (i *Info) HasName() bool { return i.name != nil }

// SetName sets the member name.
func (i *Info) SetName(name string) *Info {
	n := name
	i.name = &n
	return i
}

// TypeName returns the user-declared type tag, or "" if unset. It is
// opaque to the core: codecs may use it (e.g. the XML-RPC alias table)
// but never interpret its meaning.
func (i *Info) TypeName() string {
	if i.typeName == nil {
		return ""
	}
	return *i.typeName
}

// HasTypeName reports whether a type name has been set.
func (i *Info) HasTypeName() bool { return i.typeName != nil }

// SetTypeName sets the user-declared type tag.
func (i *Info) SetTypeName(t string) *Info {
	if t == "" {
		i.typeName = nil
		return i
	}
	tn := t
	i.typeName = &tn
	return i
}

// SetNull demotes the node to Void, discarding any scalar or children.
func (i *Info) SetNull() *Info {
	i.category = Void
	i.scalar = Scalar{}
	i.members = nil
	return i
}

// promote moves a Void node into cat on first assignment. Category may
// never change between two non-Void categories without an explicit
// SetNull first — that invariant is enforced here.
func (i *Info) promote(cat Category) error {
	if i.category == Void {
		i.category = cat
		return nil
	}
	if i.category != cat {
		return NewSerializationError("cannot change category from " + i.category.String() + " to " + cat.String() + " without SetNull")
	}
	return nil
}

// SetScalar sets the node's scalar value, promoting Void to Value.
func (i *Info) SetScalar(s Scalar) error {
	if err := i.promote(Value); err != nil {
		return err
	}
	i.scalar = s
	return nil
}

// Scalar returns the node's scalar value. It is the zero Scalar
// (ScalarEmpty) for non-Value categories.
func (i *Info) Scalar() Scalar { return i.scalar }

// --- duck-typed scalar accessors -----------------------------------

func (i *Info) SetBool(v bool) *Info   { i.must(i.SetScalar(Scalar{Kind: ScalarBool, B: v})); return i }
func (i *Info) SetInt(v int64) *Info   { i.must(i.SetScalar(Scalar{Kind: ScalarInt, I: v})); return i }
func (i *Info) SetUint(v uint64) *Info { i.must(i.SetScalar(Scalar{Kind: ScalarUint, U: v})); return i }
func (i *Info) SetFloat(v float64) *Info {
	i.must(i.SetScalar(Scalar{Kind: ScalarFloat, F: v}))
	return i
}
func (i *Info) SetString(v string) *Info {
	i.must(i.SetScalar(Scalar{Kind: ScalarString, Str: v}))
	return i
}
func (i *Info) SetWideString(v []rune) *Info {
	i.must(i.SetScalar(Scalar{Kind: ScalarWide, Wide: v}))
	return i
}

func (i *Info) must(err error) {
	if err != nil {
		panic(err)
	}
}

func (i *Info) GetBool() (bool, error)         { return i.scalar.AsBool() }
func (i *Info) GetInt() (int64, error)         { return i.scalar.AsInt() }
func (i *Info) GetUint() (uint64, error)       { return i.scalar.AsUint() }
func (i *Info) GetFloat() (float64, error)     { return i.scalar.AsFloat() }
func (i *Info) GetString() (string, error)     { return i.scalar.AsString() }
func (i *Info) GetWideString() ([]rune, error) { return i.scalar.AsWideString() }

// IsNull reports whether the node is a Void placeholder.
func (i *Info) IsNull() bool { return i.category == Void }

// --- members ---------------------------------------------------------

// AddMember appends a child. With a non-empty name it promotes the
// receiver to Object and appends a named child (first-wins on a
// duplicate name is enforced at lookup time, per spec, not at insert
// time — later duplicates are still stored but never found by name).
// With an empty name it promotes the receiver to Array and appends an
// unnamed child.
func (i *Info) AddMember(name string) *Info {
	child := &Info{category: Void}
	if name != "" {
		i.must(i.promote(Object))
		child.SetName(name)
	} else {
		i.must(i.promote(Array))
	}
	i.members = append(i.members, child)
	return child
}

// FindMember returns the first child with the given name, or nil.
// Only meaningful for Object nodes.
func (i *Info) FindMember(name string) *Info {
	for _, m := range i.members {
		if m.name != nil && *m.name == name {
			return m
		}
	}
	return nil
}

// Member returns the named child or a MemberNotFoundError.
func (i *Info) Member(name string) (*Info, error) {
	m := i.FindMember(name)
	if m == nil {
		return nil, &MemberNotFoundError{Name: name}
	}
	return m, nil
}

// Members returns the node's children in insertion order. The slice
// must not be mutated by the caller.
func (i *Info) Members() []*Info { return i.members }

// Len returns the number of children.
func (i *Info) Len() int { return len(i.members) }
