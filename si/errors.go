package si

import "errors"

var (
	errEmptyScalar = errors.New("scalar is empty")
	errRange       = errors.New("value out of range for target type")
)

// SerializationError is raised when a Formatter's call sequence violates
// the begin/finish grammar, or when a codec encounters a construct it
// cannot represent (e.g. a reference in a codec that does not support
// them).
type SerializationError struct {
	Msg string
}

func (e *SerializationError) Error() string { return "si: " + e.Msg }

// NewSerializationError builds a SerializationError with msg.
func NewSerializationError(msg string) error {
	return &SerializationError{Msg: msg}
}

// MemberNotFoundError is raised by Info.Member when the requested name
// is absent from an Object node.
type MemberNotFoundError struct {
	Name string
}

func (e *MemberNotFoundError) Error() string {
	return "si: member not found: " + e.Name
}
