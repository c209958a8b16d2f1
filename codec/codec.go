// Package codec defines the abstract write-side (Formatter) and
// read-side (Deserializer) interfaces every wire protocol implements,
// plus the ByteSink/ByteSource traits that decouple codecs from the
// reactor's buffering (spec.md §9: "separate a ByteSink/ByteSource
// trait from the reactor's buffer; codecs depend only on the trait").
//
// Concrete codecs live in codec/xmlrpc, codec/binrpc, and codec/jsonrpc.
// Package si drives a Formatter via Decomposer and is driven by a
// Deserializer via Composer; codec itself has no dependency on si so
// that codecs could, in principle, be reused for values outside the SI
// model.
package codec

// ByteSink is the write-side collaborator every Formatter emits bytes
// to. It matches io.Writer's signature exactly so any io.Writer (a
// socket, a bytes.Buffer, a reactor StreamBuffer) satisfies it.
type ByteSink interface {
	Write(p []byte) (n int, err error)
}

// ByteSource is the read-side collaborator every Deserializer consumes
// bytes from, one byte (or rune, for text codecs) at a time via
// Advance. Implementations may buffer internally; callers must not
// assume any particular read granularity beyond one unit per Advance
// call.
type ByteSource interface {
	// ReadByte returns the next byte, or io.EOF when the source is
	// exhausted.
	ReadByte() (byte, error)
}

// AdvanceResult is returned by a Deserializer's Advance method.
type AdvanceResult uint8

const (
	// NeedMore indicates the byte was consumed and the value is not
	// yet complete.
	NeedMore AdvanceResult = iota
	// Complete indicates the byte completed the top-level value and
	// was itself part of it.
	Complete
	// CompleteAndPutback indicates the byte that ended the value was
	// not itself part of it (e.g. whitespace after a JSON number) and
	// must be replayed by the caller against the next Begin.
	CompleteAndPutback
)

// Formatter is the write-side abstraction every wire codec implements.
// Calls must be balanced: every BeginArray/BeginObject/BeginMember is
// matched by the corresponding Finish call, in LIFO order. Formatters
// may buffer internally but MUST emit bytes incrementally to the
// underlying ByteSink — no codec may require the whole tree in memory
// before any output (spec.md §4.2).
type Formatter interface {
	AddValueString(name, typeName, value string) error
	AddValueWideString(name, typeName string, value []rune) error
	AddValueBool(name, typeName string, value bool) error
	AddValueInt(name, typeName string, value int64) error
	AddValueUint(name, typeName string, value uint64) error
	AddValueFloat(name, typeName string, value float64) error
	AddNull(name, typeName string) error

	BeginArray(name, typeName string) error
	FinishArray() error

	BeginObject(name, typeName string) error
	BeginMember(name string) error
	FinishMember() error
	FinishObject() error

	// Finish flushes any trailing state (e.g. a top-level end marker).
	Finish() error
}

// Deserializer is the read-side abstraction every wire codec
// implements. Advance consumes one byte and drives a Builder-backed
// value under construction; Begin resets internal state so a second
// top-level message can be parsed from the same stream after a
// Complete/CompleteAndPutback (spec.md §4.3 — keep-alive pipelining).
type Deserializer interface {
	Begin()
	Advance(b byte) (AdvanceResult, error)
}

// Builder is the capability set a Deserializer drives to construct a
// value as it parses. It has the same shape as Formatter (spec.md §9:
// "keep the abstraction but express it as a capability set ... behind a
// single table per protocol") so package si's Composer can implement it
// without codec depending on si.
type Builder interface {
	SetValueString(name, typeName, value string) error
	SetValueWideString(name, typeName string, value []rune) error
	SetValueBool(name, typeName string, value bool) error
	SetValueInt(name, typeName string, value int64) error
	SetValueUint(name, typeName string, value uint64) error
	SetValueFloat(name, typeName string, value float64) error
	SetNull(name, typeName string) error

	BeginObject(name, typeName string) error
	BeginMember(name string) error
	EndMember() error
	EndObject() error

	BeginArray(name, typeName string) error
	EndArray() error
}
