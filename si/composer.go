package si

// Composer receives calls from a codec.Deserializer (via the
// codec.Builder capability set) and builds an *Info tree. It owns an
// explicit stack of in-progress nodes rather than relying on recursion
// or parent back-pointers, per spec.md §9's arena/parent-index redesign
// note: the stack here plays the role of that arena for the duration of
// one parse, and Result() hands the finished, detached tree to the
// caller exactly once parsing completes.
type Composer struct {
	root    *Info
	stack   []*Info
	pending string // member name set by BeginMember, consumed by the next value
}

// NewComposer returns an empty Composer ready to receive Deserializer
// callbacks for one top-level value.
func NewComposer() *Composer {
	return &Composer{}
}

// Result returns the finished tree once the Deserializer has signaled
// Complete. It is nil if no value has been built yet.
func (c *Composer) Result() *Info { return c.root }

// Reset clears the composer so it may build a new top-level value (used
// between pipelined messages on a keep-alive connection).
func (c *Composer) Reset() {
	c.root = nil
	c.stack = nil
	c.pending = ""
}

func (c *Composer) current() *Info {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// attach places a freshly built leaf node into the current container,
// or makes it the root if the stack is empty.
func (c *Composer) attach(n *Info, name string) {
	top := c.current()
	if top == nil {
		c.root = n
		return
	}
	if top.Category() == Object {
		if name == "" {
			name = c.pending
		}
		n.SetName(name)
	}
	top.members = append(top.members, n)
}

func (c *Composer) SetValueString(name, typeName, value string) error {
	n := NewValue(Scalar{Kind: ScalarString, Str: value}).SetTypeName(typeName)
	c.attach(n, name)
	return nil
}

func (c *Composer) SetValueWideString(name, typeName string, value []rune) error {
	n := NewValue(Scalar{Kind: ScalarWide, Wide: value}).SetTypeName(typeName)
	c.attach(n, name)
	return nil
}

func (c *Composer) SetValueBool(name, typeName string, value bool) error {
	n := NewValue(Scalar{Kind: ScalarBool, B: value}).SetTypeName(typeName)
	c.attach(n, name)
	return nil
}

func (c *Composer) SetValueInt(name, typeName string, value int64) error {
	n := NewValue(Scalar{Kind: ScalarInt, I: value}).SetTypeName(typeName)
	c.attach(n, name)
	return nil
}

func (c *Composer) SetValueUint(name, typeName string, value uint64) error {
	n := NewValue(Scalar{Kind: ScalarUint, U: value}).SetTypeName(typeName)
	c.attach(n, name)
	return nil
}

func (c *Composer) SetValueFloat(name, typeName string, value float64) error {
	n := NewValue(Scalar{Kind: ScalarFloat, F: value}).SetTypeName(typeName)
	c.attach(n, name)
	return nil
}

func (c *Composer) SetNull(name, typeName string) error {
	n := NewVoid().SetTypeName(typeName)
	c.attach(n, name)
	return nil
}

func (c *Composer) BeginObject(name, typeName string) error {
	n := NewObject().SetTypeName(typeName)
	c.attach(n, name)
	c.stack = append(c.stack, n)
	return nil
}

func (c *Composer) BeginMember(name string) error {
	c.pending = name
	return nil
}

func (c *Composer) EndMember() error {
	c.pending = ""
	return nil
}

func (c *Composer) EndObject() error {
	if len(c.stack) == 0 {
		return NewSerializationError("EndObject with no matching BeginObject")
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

func (c *Composer) BeginArray(name, typeName string) error {
	n := NewArray().SetTypeName(typeName)
	c.attach(n, name)
	c.stack = append(c.stack, n)
	return nil
}

func (c *Composer) EndArray() error {
	if len(c.stack) == 0 {
		return NewSerializationError("EndArray with no matching BeginArray")
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}
