package si

// Marshaler is the only user-visible extension point: a user type
// provides MarshalSI to describe itself as a SerializationInfo tree.
// This stands in for the source's free-function `<<=` overload and
// MUST be preserved bit-for-bit in behavior since every codec and every
// RPC argument passes through it.
type Marshaler interface {
	MarshalSI() *Info
}

// Unmarshaler is the read-side counterpart of Marshaler, standing in
// for the source's `>>=` overload.
type Unmarshaler interface {
	UnmarshalSI(*Info) error
}
