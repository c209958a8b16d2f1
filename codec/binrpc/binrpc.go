// Package binrpc implements the compact, self-describing binary RPC wire
// format of spec.md §4.5/§6: a byte-driven state-machine parser
// (ValueParser) paired with an incremental Formatter, plus the
// top-level request/response/fault framing.
//
// Two places in spec.md describe the frame layout slightly differently
// (§3's "every SI node is a frame" vs §4.5's category-byte enumeration);
// this package resolves the ambiguity once, here, and the decision is
// recorded in DESIGN.md:
//
//   - Every value frame is: <category byte> <name> [<type-name> if
//     Object/Array] <body> <0xFF>.
//   - <name> and <type-name> are each either a single 0x00 (empty) or
//     immediate NUL-terminated bytes, or a single dictionary
//     back-reference byte 0xC0|n — two independent, growing
//     dictionaries (one for names, one for type names) live for the
//     lifetime of one Formatter/ValueParser, so repeated names compress
//     across a whole pipelined keep-alive connection.
//   - Object bodies are a plain sequence of child frames (no extra
//     per-member marker byte — the child's own category byte already
//     disambiguates "another member" from the 0xFF terminator).
//   - Integers are always emitted with the fixed-width codes
//     (0x10-0x13 signed, 0x18-0x1B unsigned), smallest that fits. The
//     variable-width "0x04 signed, sign byte" and legacy "0x06 BCD
//     double" and "0x40 array-as-value" codes are decode-only, per
//     spec.md's own Open Question resolution for 0x06.
package binrpc

// Category bytes, per spec.md §4.5.
const (
	CatValue     byte = 0
	CatObject    byte = 1
	CatArray     byte = 2
	CatReference byte = 3
	CatNull      byte = 4
)

// Type codes, per spec.md §6.
const (
	TypeEmpty     byte = 0x00
	TypeBool      byte = 0x01
	TypeChar      byte = 0x02
	TypeString    byte = 0x03
	TypeIntVar    byte = 0x04 // decode-only: signed int, minimal width with sign byte
	TypeLongDbl   byte = 0x05
	TypeBCDDouble byte = 0x06 // decode-only legacy
	TypeBlob16    byte = 0x07
	TypeBlob32    byte = 0x08

	TypeInt8  byte = 0x10
	TypeInt16 byte = 0x11
	TypeInt32 byte = 0x12
	TypeInt64 byte = 0x13

	TypeUint8  byte = 0x18
	TypeUint16 byte = 0x19
	TypeUint32 byte = 0x1A
	TypeUint64 byte = 0x1B

	TypeArrayLegacy byte = 0x40 // decode-only legacy array-as-value

	EndMarker byte = 0xFF
)

// Top-level message tags, per spec.md §4.5/§6.
const (
	TagRequest  byte = 0xC0
	TagResponse byte = 0xC1
	TagFault    byte = 0xC2
	TagOneWay   byte = 0xC3 // reserved
)

const (
	dictRefMask byte = 0xC0
	dictRefMax  byte = 0x3F // at most 64 dictionary entries per stream
)
