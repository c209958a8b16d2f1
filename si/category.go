// Package si implements SerializationInfo, the intermediate tagged-union
// tree that every wire codec marshals into and out of. It is the common
// currency between user types (via Marshaler/Unmarshaler) and the three
// protocol codecs in codec/xmlrpc, codec/binrpc, and codec/jsonrpc.
package si

// Category is the kind of a node in a SerializationInfo tree.
type Category uint8

const (
	// Void is a null placeholder: no scalar, no children.
	Void Category = iota
	// Value carries exactly one scalar and no children.
	Value
	// Object carries named children; on a duplicate name the first one
	// wins at lookup (later duplicates are still stored).
	Object
	// Array carries positional children; member names are irrelevant.
	Array
)

func (c Category) String() string {
	switch c {
	case Void:
		return "void"
	case Value:
		return "value"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "unknown"
	}
}
