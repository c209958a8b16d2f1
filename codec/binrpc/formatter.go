package binrpc

import (
	"encoding/binary"
	"math"

	"github.com/polyrpc/polyrpc/codec"
)

// Formatter implements codec.Formatter for the binary RPC wire format.
// It writes directly and incrementally to the underlying sink — no
// node's bytes are held back waiting for the rest of the tree, per
// spec.md §4.2.
type Formatter struct {
	w        codec.ByteSink
	names    *nameDict
	typeDict *nameDict
	err      error
}

// NewFormatter returns a Formatter writing to w. Its name/type-name
// dictionaries persist across multiple top-level messages written
// through the same Formatter, which is what makes them useful on a
// pipelined keep-alive connection.
func NewFormatter(w codec.ByteSink) *Formatter {
	return &Formatter{w: w, names: newNameDict(), typeDict: newNameDict()}
}

func (f *Formatter) write(p []byte) {
	if f.err != nil {
		return
	}
	_, f.err = f.w.Write(p)
}

func (f *Formatter) writeByte(b byte) { f.write([]byte{b}) }

// writeName emits the name field: a dictionary back-reference if known,
// otherwise the literal NUL-terminated bytes (registering it for next
// time).
func (f *Formatter) writeName(dict *nameDict, s string) {
	if s == "" {
		f.writeByte(0x00)
		return
	}
	if idx, ok := dict.lookup(s); ok {
		f.writeByte(dictRefMask | idx)
		return
	}
	f.write([]byte(s))
	f.writeByte(0x00)
	dict.add(s)
}

func (f *Formatter) AddValueString(name, typeName, value string) error {
	f.writeByte(CatValue)
	f.writeName(f.names, name)
	f.writeStringScalar(value)
	f.writeByte(EndMarker)
	return f.err
}

func (f *Formatter) AddValueWideString(name, typeName string, value []rune) error {
	return f.AddValueString(name, typeName, string(value))
}

func (f *Formatter) AddValueBool(name, typeName string, value bool) error {
	f.writeByte(CatValue)
	f.writeName(f.names, name)
	f.writeByte(TypeBool)
	if value {
		f.writeByte(0xF1)
	} else {
		f.writeByte(0xF0)
	}
	f.writeByte(EndMarker)
	return f.err
}

func (f *Formatter) AddValueInt(name, typeName string, value int64) error {
	f.writeByte(CatValue)
	f.writeName(f.names, name)
	f.writeSignedFixed(value)
	f.writeByte(EndMarker)
	return f.err
}

func (f *Formatter) AddValueUint(name, typeName string, value uint64) error {
	f.writeByte(CatValue)
	f.writeName(f.names, name)
	f.writeUnsignedFixed(value)
	f.writeByte(EndMarker)
	return f.err
}

func (f *Formatter) AddValueFloat(name, typeName string, value float64) error {
	f.writeByte(CatValue)
	f.writeName(f.names, name)
	f.writeByte(TypeLongDbl)
	dec := formatCanonicalDecimal(value)
	f.write([]byte(dec))
	f.writeByte(0x00)
	f.writeByte(EndMarker)
	return f.err
}

func (f *Formatter) AddNull(name, typeName string) error {
	f.writeByte(CatNull)
	f.writeName(f.names, name)
	f.writeByte(EndMarker)
	return f.err
}

func (f *Formatter) BeginArray(name, typeName string) error {
	f.writeByte(CatArray)
	f.writeName(f.names, name)
	f.writeName(f.typeDict, typeName)
	return f.err
}

func (f *Formatter) FinishArray() error {
	f.writeByte(EndMarker)
	return f.err
}

func (f *Formatter) BeginObject(name, typeName string) error {
	f.writeByte(CatObject)
	f.writeName(f.names, name)
	f.writeName(f.typeDict, typeName)
	return f.err
}

func (f *Formatter) BeginMember(name string) error { return f.err }
func (f *Formatter) FinishMember() error           { return f.err }

func (f *Formatter) FinishObject() error {
	f.writeByte(EndMarker)
	return f.err
}

func (f *Formatter) Finish() error { return f.err }

// writeStringScalar picks the NUL-terminated string encoding (TypeString)
// when value contains no embedded NUL, otherwise a length-prefixed
// opaque blob (TypeBlob16/TypeBlob32, smallest that fits).
func (f *Formatter) writeStringScalar(value string) {
	if !containsNul(value) {
		f.writeByte(TypeString)
		f.write([]byte(value))
		f.writeByte(0x00)
		return
	}
	if len(value) <= 0xFFFF {
		f.writeByte(TypeBlob16)
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(value)))
		f.write(lenBuf[:])
		f.write([]byte(value))
		return
	}
	f.writeByte(TypeBlob32)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(value)))
	f.write(lenBuf[:])
	f.write([]byte(value))
}

func containsNul(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return true
		}
	}
	return false
}

// writeSignedFixed picks the smallest of the fixed-width signed codes
// that can represent value, per spec.md §4.5.
func (f *Formatter) writeSignedFixed(value int64) {
	switch {
	case value >= math.MinInt8 && value <= math.MaxInt8:
		f.writeByte(TypeInt8)
		f.writeByte(byte(int8(value)))
	case value >= math.MinInt16 && value <= math.MaxInt16:
		f.writeByte(TypeInt16)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(int16(value)))
		f.write(b[:])
	case value >= math.MinInt32 && value <= math.MaxInt32:
		f.writeByte(TypeInt32)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(int32(value)))
		f.write(b[:])
	default:
		f.writeByte(TypeInt64)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(value))
		f.write(b[:])
	}
}

// writeUnsignedFixed picks the smallest of the fixed-width unsigned
// codes that can represent value.
func (f *Formatter) writeUnsignedFixed(value uint64) {
	switch {
	case value <= math.MaxUint8:
		f.writeByte(TypeUint8)
		f.writeByte(byte(value))
	case value <= math.MaxUint16:
		f.writeByte(TypeUint16)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(value))
		f.write(b[:])
	case value <= math.MaxUint32:
		f.writeByte(TypeUint32)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(value))
		f.write(b[:])
	default:
		f.writeByte(TypeUint64)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], value)
		f.write(b[:])
	}
}
