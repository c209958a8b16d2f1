package si

import "github.com/polyrpc/polyrpc/codec"

// Decomposer walks an *Info tree and drives a codec.Formatter. It is
// the write-side traversal helper shared by every protocol: the
// formatter decides how each event becomes bytes, Decomposer only
// decides the order of events.
type Decomposer struct {
	f codec.Formatter
}

// NewDecomposer returns a Decomposer that drives f.
func NewDecomposer(f codec.Formatter) *Decomposer {
	return &Decomposer{f: f}
}

// Decompose drives the formatter with the tree rooted at root, using
// name as the root's member name (pass "" for a top-level value with
// no name, as is typical for RPC arguments/results).
func (d *Decomposer) Decompose(root *Info, name string) error {
	if err := d.walk(root, name); err != nil {
		return err
	}
	return d.f.Finish()
}

func (d *Decomposer) walk(n *Info, name string) error {
	typeName := n.TypeName()
	switch n.Category() {
	case Void:
		return d.f.AddNull(name, typeName)
	case Value:
		return d.walkScalar(n.Scalar(), name, typeName)
	case Array:
		if err := d.f.BeginArray(name, typeName); err != nil {
			return err
		}
		for _, m := range n.Members() {
			if err := d.walk(m, ""); err != nil {
				return err
			}
		}
		return d.f.FinishArray()
	case Object:
		if err := d.f.BeginObject(name, typeName); err != nil {
			return err
		}
		for _, m := range n.Members() {
			if err := d.f.BeginMember(m.Name()); err != nil {
				return err
			}
			if err := d.walk(m, m.Name()); err != nil {
				return err
			}
			if err := d.f.FinishMember(); err != nil {
				return err
			}
		}
		return d.f.FinishObject()
	default:
		return NewSerializationError("unknown category")
	}
}

func (d *Decomposer) walkScalar(s Scalar, name, typeName string) error {
	switch s.Kind {
	case ScalarBool:
		return d.f.AddValueBool(name, typeName, s.B)
	case ScalarInt:
		return d.f.AddValueInt(name, typeName, s.I)
	case ScalarUint:
		return d.f.AddValueUint(name, typeName, s.U)
	case ScalarFloat:
		return d.f.AddValueFloat(name, typeName, s.F)
	case ScalarString:
		return d.f.AddValueString(name, typeName, s.Str)
	case ScalarWide:
		return d.f.AddValueWideString(name, typeName, s.Wide)
	default:
		return d.f.AddNull(name, typeName)
	}
}
