package jsonrpc

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/polyrpc/polyrpc/codec"
	"github.com/polyrpc/polyrpc/si"
)

var errNeedMore = errors.New("jsonrpc: need more bytes")

// ProtocolError reports malformed JSON-RPC input.
type ProtocolError struct{ Msg string }

func (e *ProtocolError) Error() string { return "jsonrpc: " + e.Msg }

func newProtocolError(msg string) error { return &ProtocolError{Msg: msg} }

// Parser implements codec.Deserializer for the tolerant JSON grammar
// described in spec.md §4.6. Like codec/binrpc's ValueParser, it
// re-attempts a full recursive-descent parse of the bytes buffered
// since Begin on every Advance call rather than hand-coding a state
// table; a JSON-RPC message is small and this is never the hot path.
type Parser struct {
	buf      []byte
	composer *si.Composer
}

// NewParser returns a Parser ready to receive bytes.
func NewParser() *Parser {
	return &Parser{}
}

// Begin resets the parser for the next top-level value.
func (p *Parser) Begin() {
	p.buf = p.buf[:0]
	p.composer = si.NewComposer()
}

// Result returns the finished tree once Advance has reported Complete
// or CompleteAndPutback.
func (p *Parser) Result() *si.Info {
	if p.composer == nil {
		return nil
	}
	return p.composer.Result()
}

// Advance consumes one byte. Each call re-parses the whole value
// buffered so far against a fresh Composer, matching codec/binrpc's
// ValueParser: a NeedMore attempt's partial builder calls must never
// leak into the next attempt.
func (p *Parser) Advance(b byte) (codec.AdvanceResult, error) {
	p.buf = append(p.buf, b)
	p.composer = si.NewComposer()

	s := &scanner{data: p.buf}
	s.skipSpaceAndComments()
	if s.pos >= len(s.data) {
		return codec.NeedMore, nil
	}
	consumed, definite, err := parseValue(s, p.composer)
	if err != nil {
		if errors.Is(err, errNeedMore) {
			return codec.NeedMore, nil
		}
		return codec.NeedMore, err
	}
	if consumed == len(p.buf) {
		return codec.Complete, nil
	}
	if !definite {
		return codec.NeedMore, nil
	}
	// consumed < len(buf): the trailing byte(s) were not part of the
	// value (e.g. whitespace, or the byte after a bare number).
	if consumed != len(p.buf)-1 {
		return codec.NeedMore, newProtocolError("unexpected trailing bytes")
	}
	return codec.CompleteAndPutback, nil
}

type scanner struct {
	data []byte
	pos  int
}

func (s *scanner) peek() (byte, bool) {
	if s.pos >= len(s.data) {
		return 0, false
	}
	return s.data[s.pos], true
}

func (s *scanner) skipSpaceAndComments() {
	for s.pos < len(s.data) {
		b := s.data[s.pos]
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			s.pos++
		case b == '/' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '/':
			s.pos += 2
			for s.pos < len(s.data) && s.data[s.pos] != '\n' {
				s.pos++
			}
		case b == '/' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '*':
			end := strIndex(s.data[s.pos+2:], "*/")
			if end < 0 {
				s.pos = len(s.data)
				return
			}
			s.pos += 2 + end + 2
		case b == '/' && s.pos+1 >= len(s.data):
			// A lone '/' at the end of the buffer may still open a
			// comment once the next byte arrives.
			s.pos = len(s.data)
			return
		default:
			return
		}
	}
}

func strIndex(data []byte, sub string) int {
	return strings.Index(string(data), sub)
}

// parseValue parses one JSON value (object, array, string, number,
// true/false/null) starting at s.pos, driving b. It returns how many
// bytes of s.data (from 0) the value occupies and whether that boundary
// is definite. Every successful parse reports definite=true: a bare
// number that reaches the end of the buffer (and so could still be
// extended by more digits) reports errNeedMore instead.
func parseValue(s *scanner, b codec.Builder) (consumed int, definite bool, err error) {
	return parseNamedValue(s, b, "")
}

func parseNamedValue(s *scanner, b codec.Builder, name string) (int, bool, error) {
	s.skipSpaceAndComments()
	ch, ok := s.peek()
	if !ok {
		return 0, false, errNeedMore
	}
	switch {
	case ch == '{':
		return parseObject(s, b, name)
	case ch == '[':
		return parseArray(s, b, name)
	case ch == '"' || ch == '\'':
		str, end, err := parseString(s)
		if err != nil {
			return 0, false, err
		}
		if err := b.SetValueString(name, "", str); err != nil {
			return 0, false, err
		}
		return end, true, nil
	case ch == 't':
		return parseLiteral(s, b, name, "true", true)
	case ch == 'f':
		return parseLiteral(s, b, name, "false", false)
	case ch == 'n':
		return parseNullLiteral(s, b, name)
	case ch == '-' || (ch >= '0' && ch <= '9'):
		return parseNumber(s, b, name)
	default:
		return 0, false, newProtocolError("unexpected character " + string(ch))
	}
}

func parseLiteral(s *scanner, b codec.Builder, name, lit string, value bool) (int, bool, error) {
	if s.pos+len(lit) > len(s.data) {
		if string(s.data[s.pos:]) == lit[:len(s.data)-s.pos] {
			return 0, false, errNeedMore
		}
		return 0, false, newProtocolError("malformed literal")
	}
	if string(s.data[s.pos:s.pos+len(lit)]) != lit {
		return 0, false, newProtocolError("malformed literal")
	}
	if err := b.SetValueBool(name, "", value); err != nil {
		return 0, false, err
	}
	return s.pos + len(lit), true, nil
}

func parseNullLiteral(s *scanner, b codec.Builder, name string) (int, bool, error) {
	const lit = "null"
	if s.pos+len(lit) > len(s.data) {
		if string(s.data[s.pos:]) == lit[:len(s.data)-s.pos] {
			return 0, false, errNeedMore
		}
		return 0, false, newProtocolError("malformed literal")
	}
	if string(s.data[s.pos:s.pos+len(lit)]) != lit {
		return 0, false, newProtocolError("malformed literal")
	}
	if err := b.SetNull(name, ""); err != nil {
		return 0, false, err
	}
	return s.pos + len(lit), true, nil
}

// parseNumber scans a JSON number. The end of a number is only
// definite once a non-continuation byte or the string's own end is
// seen **and more input could change nothing** — since more digits
// could always follow at the very end of the buffer, a number flush
// against the end of the available bytes is never definite.
func parseNumber(s *scanner, b codec.Builder, name string) (int, bool, error) {
	start := s.pos
	i := s.pos
	if i < len(s.data) && s.data[i] == '-' {
		i++
	}
	for i < len(s.data) && isNumberByte(s.data[i]) {
		i++
	}
	if i >= len(s.data) {
		return 0, false, errNeedMore
	}
	lit := string(s.data[start:i])
	if err := setNumberValue(b, name, lit); err != nil {
		return 0, false, err
	}
	// i < len(s.data) here (the guard above returned on i >= len), so a
	// real terminator byte was seen: the number's extent is definite.
	return i, true, nil
}

func isNumberByte(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b == '.' || b == 'e' || b == 'E' || b == '+' || b == '-':
		return true
	}
	return false
}

func setNumberValue(b codec.Builder, name, lit string) error {
	if !strings.ContainsAny(lit, ".eE") {
		if v, err := strconv.ParseUint(lit, 10, 64); err == nil {
			return b.SetValueUint(name, "", v)
		}
		if v, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return b.SetValueInt(name, "", v)
		}
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return newProtocolError("malformed number " + lit)
	}
	return b.SetValueFloat(name, "", v)
}

func parseString(s *scanner) (string, int, error) {
	quote := s.data[s.pos]
	var sb strings.Builder
	i := s.pos + 1
	for {
		if i >= len(s.data) {
			return "", 0, errNeedMore
		}
		c := s.data[i]
		if c == quote {
			return sb.String(), i + 1, nil
		}
		if c == '\\' {
			if i+1 >= len(s.data) {
				return "", 0, errNeedMore
			}
			esc := s.data[i+1]
			switch esc {
			case '"', '\'', '\\', '/':
				sb.WriteByte(esc)
				i += 2
			case 'n':
				sb.WriteByte('\n')
				i += 2
			case 't':
				sb.WriteByte('\t')
				i += 2
			case 'r':
				sb.WriteByte('\r')
				i += 2
			case 'b':
				sb.WriteByte('\b')
				i += 2
			case 'f':
				sb.WriteByte('\f')
				i += 2
			case 'u':
				if i+6 > len(s.data) {
					return "", 0, errNeedMore
				}
				r, err := strconv.ParseUint(string(s.data[i+2:i+6]), 16, 32)
				if err != nil {
					return "", 0, newProtocolError("bad \\u escape")
				}
				r1 := rune(r)
				if utf16.IsSurrogate(r1) && i+12 <= len(s.data) && s.data[i+6] == '\\' && s.data[i+7] == 'u' {
					r2raw, err2 := strconv.ParseUint(string(s.data[i+8:i+12]), 16, 32)
					if err2 == nil {
						dec := utf16.DecodeRune(r1, rune(r2raw))
						if dec != 0xFFFD {
							sb.WriteRune(dec)
							i += 12
							continue
						}
					}
				}
				sb.WriteRune(r1)
				i += 6
			default:
				return "", 0, newProtocolError("bad escape sequence")
			}
			continue
		}
		sb.WriteByte(c)
		i++
	}
}

func parseObject(s *scanner, b codec.Builder, name string) (int, bool, error) {
	if err := b.BeginObject(name, ""); err != nil {
		return 0, false, err
	}
	i0 := s.pos
	s.pos++ // consume '{'
	first := true
	for {
		s.skipSpaceAndComments()
		ch, ok := s.peek()
		if !ok {
			s.pos = i0
			return 0, false, errNeedMore
		}
		if ch == '}' {
			s.pos++
			if err := b.EndObject(); err != nil {
				return 0, false, err
			}
			return s.pos, true, nil
		}
		if !first {
			if ch != ',' {
				return 0, false, newProtocolError("expected , or } in object")
			}
			s.pos++
			s.skipSpaceAndComments()
			// trailing comma tolerated
			if ch2, ok := s.peek(); ok && ch2 == '}' {
				s.pos++
				if err := b.EndObject(); err != nil {
					return 0, false, err
				}
				return s.pos, true, nil
			}
		}
		first = false
		key, err := parseKey(s)
		if err != nil {
			s.pos = i0
			return 0, false, err
		}
		s.skipSpaceAndComments()
		c, ok := s.peek()
		if !ok {
			s.pos = i0
			return 0, false, errNeedMore
		}
		if c != ':' {
			return 0, false, newProtocolError("expected : after object key")
		}
		s.pos++
		if err := b.BeginMember(key); err != nil {
			return 0, false, err
		}
		end, definite, err := parseNamedValue(s, b, key)
		if err != nil {
			if errors.Is(err, errNeedMore) {
				s.pos = i0
				return 0, false, errNeedMore
			}
			return 0, false, err
		}
		_ = definite
		s.pos = end
		if err := b.EndMember(); err != nil {
			return 0, false, err
		}
	}
}

// parseKey accepts a quoted string or a bare identifier-like key.
func parseKey(s *scanner) (string, error) {
	ch, ok := s.peek()
	if !ok {
		return "", errNeedMore
	}
	if ch == '"' || ch == '\'' {
		str, end, err := parseString(s)
		if err != nil {
			return "", err
		}
		s.pos = end
		return str, nil
	}
	start := s.pos
	for s.pos < len(s.data) && isIdentByte(s.data[s.pos], s.pos == start) {
		s.pos++
	}
	if s.pos == start {
		return "", newProtocolError("expected object key")
	}
	if s.pos >= len(s.data) {
		s.pos = start
		return "", errNeedMore
	}
	return string(s.data[start:s.pos]), nil
}

func isIdentByte(b byte, first bool) bool {
	switch {
	case b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z'):
		return true
	case b >= '0' && b <= '9' && !first:
		return true
	}
	return false
}

func parseArray(s *scanner, b codec.Builder, name string) (int, bool, error) {
	if err := b.BeginArray(name, ""); err != nil {
		return 0, false, err
	}
	i0 := s.pos
	s.pos++ // consume '['
	first := true
	for {
		s.skipSpaceAndComments()
		ch, ok := s.peek()
		if !ok {
			s.pos = i0
			return 0, false, errNeedMore
		}
		if ch == ']' {
			s.pos++
			if err := b.EndArray(); err != nil {
				return 0, false, err
			}
			return s.pos, true, nil
		}
		if !first {
			if ch != ',' {
				return 0, false, newProtocolError("expected , or ] in array")
			}
			s.pos++
			s.skipSpaceAndComments()
			if ch2, ok := s.peek(); ok && ch2 == ']' {
				s.pos++
				if err := b.EndArray(); err != nil {
					return 0, false, err
				}
				return s.pos, true, nil
			}
		}
		first = false
		end, _, err := parseNamedValue(s, b, "")
		if err != nil {
			if errors.Is(err, errNeedMore) {
				s.pos = i0
				return 0, false, errNeedMore
			}
			return 0, false, err
		}
		s.pos = end
	}
}
