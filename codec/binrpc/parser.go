package binrpc

import (
	"encoding/binary"
	"errors"

	"github.com/polyrpc/polyrpc/codec"
	"github.com/polyrpc/polyrpc/si"
)

// errNeedMore is the internal sentinel a parse attempt returns when it
// would have to read past the bytes seen so far.
var errNeedMore = errors.New("binrpc: need more bytes")

// ValueParser implements codec.Deserializer for one SI value frame. Per
// spec.md §4.5 it is driven one byte at a time via Advance; internally
// it re-attempts a parse of the bytes buffered since Begin on every
// call (bounded by one message's size, never the whole connection),
// using parseFrame's explicit stack rather than recursion, which is
// simpler to get right than a hand-enumerated state table while
// preserving the same externally observable behavior: NeedMore until
// the frame's closing 0xFF has been seen, Complete exactly then. A
// binary frame is fully self-delimited, so CompleteAndPutback never
// occurs here.
type ValueParser struct {
	buf      []byte
	names    *nameDict
	typeDict *nameDict
	composer *si.Composer
}

// NewValueParser returns a ValueParser with its own private name and
// type-name dictionaries, suitable for parsing a single, self-contained
// frame in isolation (tests, or a codec that never dictionary-compresses
// across frames).
func NewValueParser() *ValueParser {
	return newValueParserShared(newNameDict(), newNameDict())
}

// newValueParserShared returns a ValueParser backed by caller-owned
// dictionaries, so several successive frames (and successive top-level
// messages) on one connection can resolve each other's dictionary
// back-references, mirroring the Formatter's persistent dictionaries.
func newValueParserShared(names, typeDict *nameDict) *ValueParser {
	return &ValueParser{names: names, typeDict: typeDict}
}

// Begin resets the parser to accept the next top-level value frame.
func (p *ValueParser) Begin() {
	p.buf = p.buf[:0]
	p.composer = si.NewComposer()
}

// Result returns the finished tree after Advance has reported Complete.
func (p *ValueParser) Result() *si.Info {
	if p.composer == nil {
		return nil
	}
	return p.composer.Result()
}

// Advance consumes one byte of the current frame. Each call re-parses
// the whole frame buffered so far against a fresh Composer: since a
// NeedMore attempt's partial builder calls must never carry over into
// the next attempt, reusing one Composer across retries would replay
// BeginObject/SetValue calls multiple times.
func (p *ValueParser) Advance(b byte) (codec.AdvanceResult, error) {
	p.buf = append(p.buf, b)
	p.composer = si.NewComposer()

	cur := &cursor{data: p.buf}
	err := parseFrame(cur, p.composer, p.names, p.typeDict)
	if err != nil {
		if errors.Is(err, errNeedMore) {
			return codec.NeedMore, nil
		}
		return codec.NeedMore, err
	}
	if cur.pos != len(p.buf) {
		return codec.NeedMore, NewProtocolError("trailing bytes after frame")
	}
	return codec.Complete, nil
}

// ProtocolError reports a malformed binary RPC byte sequence.
type ProtocolError struct{ Msg string }

func (e *ProtocolError) Error() string { return "binrpc: " + e.Msg }

// NewProtocolError builds a ProtocolError.
func NewProtocolError(msg string) error { return &ProtocolError{Msg: msg} }

type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) byte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, errNeedMore
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if c.pos+n > len(c.data) {
		return nil, errNeedMore
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// readName reads either a dictionary back-reference or a fresh
// NUL-terminated name, registering fresh names in dict.
func readName(c *cursor, dict *nameDict) (string, error) {
	start := c.pos
	b, err := c.byte()
	if err != nil {
		return "", err
	}
	if b&dictRefMask == dictRefMask {
		idx := b &^ dictRefMask
		name, ok := dict.get(idx)
		if !ok {
			return "", NewProtocolError("unknown name dictionary reference")
		}
		return name, nil
	}
	// Fresh literal, possibly empty (b == 0x00 already consumed it).
	if b == 0x00 {
		return "", nil
	}
	for {
		nb, err := c.byte()
		if err != nil {
			c.pos = start
			return "", err
		}
		if nb == 0x00 {
			break
		}
	}
	name := string(c.data[start : c.pos-1])
	dict.add(name)
	return name, nil
}

// bodyKind tags an in-progress container frame on parseFrame's explicit
// stack: an Object or Array body reads member/element frames until its
// own 0xFF, and a legacy array (the array-typed scalar body of a Value
// frame, type code TypeArrayLegacy) does the same but additionally owes
// one more 0xFF afterward to close the enclosing Value frame.
type bodyKind int

const (
	bodyObject bodyKind = iota
	bodyArray
	bodyLegacyArray
)

// pendingBody is one entry of parseFrame's explicit nesting stack: a
// container frame whose header has been read and whose body is still
// being filled in by further member/element frames.
type pendingBody struct {
	kind     bodyKind
	names    *nameDict
	typeDict *nameDict
}

// parseFrame parses exactly one value/object/array/null frame starting
// at c.pos, driving b. On success c.pos is advanced past the frame's
// closing 0xFF (and, for a legacy array, the Value frame's own trailing
// 0xFF right behind it).
//
// Nesting is tracked on an explicit stack of pendingBody entries rather
// than by recursing into parseFrame once per nesting level, per
// spec.md §4.5: "The parser maintains an explicit stack bounded by the
// nesting depth; deep recursion is NOT allowed in the implementation."
// Each loop iteration either parses one frame header (pushing a new
// pendingBody for Object/Array/legacy-array bodies) or, when the next
// byte of an open body is the end marker, closes and pops it; the loop
// ends only once the stack empties after the outermost frame closes.
func parseFrame(c *cursor, b codec.Builder, names, typeDict *nameDict) error {
	var stack []pendingBody
	curNames, curTypeDict := names, typeDict

	for {
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.kind == bodyLegacyArray {
				// Legacy array elements share no dictionary with their
				// container or with each other: each element's name and
				// type-name fields get a fresh, empty pair, matching the
				// original recursive implementation's per-element
				// newNameDict() calls.
				curNames, curTypeDict = newNameDict(), newNameDict()
			} else {
				curNames, curTypeDict = top.names, top.typeDict
			}

			peek := c.pos
			nb, err := c.byte()
			if err != nil {
				return err
			}
			if nb == EndMarker {
				switch top.kind {
				case bodyObject:
					if err := b.EndObject(); err != nil {
						return err
					}
				case bodyArray:
					if err := b.EndArray(); err != nil {
						return err
					}
				case bodyLegacyArray:
					if err := b.EndArray(); err != nil {
						return err
					}
					// This marker closed the legacy array body; the
					// enclosing Value frame's own closing marker follows
					// immediately behind it.
					if err := expectEnd(c); err != nil {
						return err
					}
				}
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					return nil
				}
				continue
			}
			c.pos = peek
		}

		cat, err := c.byte()
		if err != nil {
			return err
		}
		switch cat {
		case CatNull:
			name, err := readName(c, curNames)
			if err != nil {
				return err
			}
			if err := expectEnd(c); err != nil {
				return err
			}
			if err := b.SetNull(name, ""); err != nil {
				return err
			}
		case CatValue:
			name, err := readName(c, curNames)
			if err != nil {
				return err
			}
			legacyArray, err := parseScalarBody(c, b, name)
			if err != nil {
				return err
			}
			if legacyArray {
				stack = append(stack, pendingBody{kind: bodyLegacyArray})
				continue
			}
			if err := expectEnd(c); err != nil {
				return err
			}
		case CatObject:
			name, err := readName(c, curNames)
			if err != nil {
				return err
			}
			typeName, err := readName(c, curTypeDict)
			if err != nil {
				return err
			}
			if err := b.BeginObject(name, typeName); err != nil {
				return err
			}
			stack = append(stack, pendingBody{kind: bodyObject, names: curNames, typeDict: curTypeDict})
			continue
		case CatArray:
			name, err := readName(c, curNames)
			if err != nil {
				return err
			}
			typeName, err := readName(c, curTypeDict)
			if err != nil {
				return err
			}
			if err := b.BeginArray(name, typeName); err != nil {
				return err
			}
			stack = append(stack, pendingBody{kind: bodyArray, names: curNames, typeDict: curTypeDict})
			continue
		case CatReference:
			return NewProtocolError("references are not supported")
		default:
			return NewProtocolError("unknown category byte")
		}

		if len(stack) == 0 {
			return nil
		}
	}
}

func expectEnd(c *cursor) error {
	b, err := c.byte()
	if err != nil {
		return err
	}
	if b != EndMarker {
		return NewProtocolError("expected end-of-frame marker")
	}
	return nil
}

// parseScalarBody reads the type code and scalar payload of a CatValue
// frame. It returns legacyArray=true when the type code was
// TypeArrayLegacy: that type's body is itself a sequence of framed
// elements rather than a fixed-width scalar, so parseScalarBody only
// opens it (via BeginArray) and leaves reading the elements and the
// frame's closing marker(s) to parseFrame's stack-driven loop, instead
// of recursing here.
func parseScalarBody(c *cursor, b codec.Builder, name string) (legacyArray bool, err error) {
	tc, err := c.byte()
	if err != nil {
		return false, err
	}
	switch tc {
	case TypeEmpty:
		return false, b.SetValueString(name, "", "")
	case TypeBool:
		v, err := c.byte()
		if err != nil {
			return false, err
		}
		return false, b.SetValueBool(name, "", v == 0xF1)
	case TypeChar:
		v, err := c.byte()
		if err != nil {
			return false, err
		}
		return false, b.SetValueString(name, "", string(rune(v)))
	case TypeString:
		s, err := readNulString(c)
		if err != nil {
			return false, err
		}
		return false, b.SetValueString(name, "", s)
	case TypeIntVar:
		return false, parseVarSignedInt(c, b, name)
	case TypeLongDbl:
		s, err := readNulString(c)
		if err != nil {
			return false, err
		}
		f, ferr := parseCanonicalDecimal(s)
		if ferr != nil {
			return false, NewProtocolError("malformed long double: " + ferr.Error())
		}
		return false, b.SetValueFloat(name, "", f)
	case TypeBCDDouble:
		header, err := c.byte()
		if err != nil {
			return false, err
		}
		digits, err := readNulBytes(c)
		if err != nil {
			return false, err
		}
		return false, b.SetValueFloat(name, "", decodeBCDDouble(header, digits))
	case TypeBlob16:
		lenBytes, err := c.bytes(2)
		if err != nil {
			return false, err
		}
		n := int(binary.BigEndian.Uint16(lenBytes))
		data, err := c.bytes(n)
		if err != nil {
			return false, err
		}
		return false, b.SetValueString(name, "", string(data))
	case TypeBlob32:
		lenBytes, err := c.bytes(4)
		if err != nil {
			return false, err
		}
		n := int(binary.BigEndian.Uint32(lenBytes))
		data, err := c.bytes(n)
		if err != nil {
			return false, err
		}
		return false, b.SetValueString(name, "", string(data))
	case TypeInt8:
		v, err := c.byte()
		if err != nil {
			return false, err
		}
		return false, b.SetValueInt(name, "", int64(int8(v)))
	case TypeInt16:
		v, err := c.bytes(2)
		if err != nil {
			return false, err
		}
		return false, b.SetValueInt(name, "", int64(int16(binary.BigEndian.Uint16(v))))
	case TypeInt32:
		v, err := c.bytes(4)
		if err != nil {
			return false, err
		}
		return false, b.SetValueInt(name, "", int64(int32(binary.BigEndian.Uint32(v))))
	case TypeInt64:
		v, err := c.bytes(8)
		if err != nil {
			return false, err
		}
		return false, b.SetValueInt(name, "", int64(binary.BigEndian.Uint64(v)))
	case TypeUint8:
		v, err := c.byte()
		if err != nil {
			return false, err
		}
		return false, b.SetValueUint(name, "", uint64(v))
	case TypeUint16:
		v, err := c.bytes(2)
		if err != nil {
			return false, err
		}
		return false, b.SetValueUint(name, "", uint64(binary.BigEndian.Uint16(v)))
	case TypeUint32:
		v, err := c.bytes(4)
		if err != nil {
			return false, err
		}
		return false, b.SetValueUint(name, "", uint64(binary.BigEndian.Uint32(v)))
	case TypeUint64:
		v, err := c.bytes(8)
		if err != nil {
			return false, err
		}
		return false, b.SetValueUint(name, "", binary.BigEndian.Uint64(v))
	case TypeArrayLegacy:
		if err := b.BeginArray(name, ""); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, NewProtocolError("unknown scalar type code")
	}
}

func readNulString(c *cursor) (string, error) {
	b, err := readNulBytes(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readNulBytes(c *cursor) ([]byte, error) {
	start := c.pos
	for {
		b, err := c.byte()
		if err != nil {
			c.pos = start
			return nil, err
		}
		if b == 0x00 {
			return c.data[start : c.pos-1], nil
		}
	}
}

func parseVarSignedInt(c *cursor, b codec.Builder, name string) error {
	sign, err := c.byte()
	if err != nil {
		return err
	}
	length, err := c.byte()
	if err != nil {
		return err
	}
	magBytes, err := c.bytes(int(length))
	if err != nil {
		return err
	}
	var mag uint64
	for _, mb := range magBytes {
		mag = mag<<8 | uint64(mb)
	}
	v := int64(mag)
	if sign == 1 {
		v = -v
	}
	return b.SetValueInt(name, "", v)
}
