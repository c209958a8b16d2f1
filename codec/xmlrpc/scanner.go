package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/polyrpc/polyrpc/codec"
	"github.com/polyrpc/polyrpc/si"
)

// errNeedMore signals that the buffered bytes do not yet contain a
// complete <value> element. Scanner retries the whole buffered parse
// on every Advance call rather than tracking explicit byte states, the
// same pragmatic approach codec/binrpc and codec/jsonrpc use for their
// incremental parsers.
var errNeedMore = errors.New("xmlrpc: need more data")

// ProtocolError reports malformed or unsupported XML-RPC input —
// an unrecognized element, or a reference, which this package does not
// support.
type ProtocolError struct{ Msg string }

func (e *ProtocolError) Error() string { return "xmlrpc: " + e.Msg }

func newProtocolError(msg string) error { return &ProtocolError{Msg: msg} }

// Scanner implements codec.Deserializer for a single top-level <value>
// element. It is "a push-driven adapter" (spec.md §4.4) over
// encoding/xml.Decoder, the stdlib pull parser: each Advance call feeds
// one more byte, rebuilds a decoder over the whole buffer so far, and
// attempts the full recursive descent again.
type Scanner struct {
	buf      []byte
	alias    AliasTable
	composer *si.Composer
}

// NewScanner returns a Scanner that resolves element-to-typeName aliases
// via alias (nil for none).
func NewScanner(alias AliasTable) *Scanner {
	return &Scanner{alias: alias}
}

func (s *Scanner) Begin() {
	s.buf = s.buf[:0]
	s.composer = nil
}

func (s *Scanner) Result() *si.Info { return s.composer.Result() }

func (s *Scanner) Advance(b byte) (codec.AdvanceResult, error) {
	s.buf = append(s.buf, b)
	// Fresh composer every attempt: a retried parse must never replay
	// its Begin*/SetValue* calls into an already-populated tree.
	composer := si.NewComposer()
	dec := xml.NewDecoder(bytes.NewReader(s.buf))
	err := parseValueInto(dec, composer, s.alias)
	if err != nil {
		if err == errNeedMore {
			return codec.NeedMore, nil
		}
		return codec.NeedMore, err
	}
	s.composer = composer
	if int(dec.InputOffset()) < len(s.buf) {
		return codec.CompleteAndPutback, nil
	}
	return codec.Complete, nil
}

// parseValueInto reads one <value>...</value> element from dec (the
// decoder must be positioned before its opening tag, modulo leading
// whitespace/CharData) and drives composer with its contents.
func parseValueInto(dec *xml.Decoder, composer *si.Composer, alias AliasTable) error {
	return parseValueWithName(dec, composer, "", alias)
}

// parseValueWithName reads one <value>...</value> element from dec,
// attaching name to whatever it composes — used when the value is a
// struct member or a request parameter that the tree must remember the
// name of.
func parseValueWithName(dec *xml.Decoder, composer *si.Composer, name string, alias AliasTable) error {
	start, err := nextStart(dec)
	if err != nil {
		return err
	}
	if start.Name.Local != tagValue {
		return newProtocolError("expected <" + tagValue + ">, got <" + start.Name.Local + ">")
	}
	return parseValueBody(dec, composer, name, alias)
}

// parseValueBody parses the contents of an already-opened <value>
// element (name is the member/param name, if any, to attach) and
// consumes its closing tag.
func parseValueBody(dec *xml.Decoder, composer *si.Composer, name string, alias AliasTable) error {
	tok, err := nextToken(dec)
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case xml.EndElement:
		// <value></value> with no inner tag: bare string content, empty.
		return composer.SetValueString(name, "", "")
	case xml.CharData:
		// Bare text directly inside <value> is shorthand for <string>.
		text := string(t)
		if _, err := nextEnd(dec, tagValue); err != nil {
			return err
		}
		return composer.SetValueString(name, "", text)
	case xml.StartElement:
		if err := parseTypedValue(dec, composer, name, t, alias); err != nil {
			return err
		}
		if _, err := nextEnd(dec, tagValue); err != nil {
			return err
		}
		return nil
	default:
		return newProtocolError("unexpected token inside <value>")
	}
}

func parseTypedValue(dec *xml.Decoder, composer *si.Composer, name string, start xml.StartElement, alias AliasTable) error {
	tag := start.Name.Local
	switch tag {
	case "nil":
		if _, err := consumeElement(dec, tag); err != nil {
			return err
		}
		return composer.SetNull(name, "")
	case tagI4, tagInt:
		text, err := textAndClose(dec, tag)
		if err != nil {
			return err
		}
		n, perr := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if perr != nil {
			return newProtocolError("invalid <" + tag + "> body: " + text)
		}
		return composer.SetValueInt(name, tagAlias(alias, tag), n)
	case tagBoolean:
		text, err := textAndClose(dec, tag)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		return composer.SetValueBool(name, tagAlias(alias, tag), text == "1" || text == "true")
	case tagDouble:
		text, err := textAndClose(dec, tag)
		if err != nil {
			return err
		}
		f, perr := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if perr != nil {
			return newProtocolError("invalid <" + tag + "> body: " + text)
		}
		return composer.SetValueFloat(name, tagAlias(alias, tag), f)
	case tagString, tagBase64, tagDate:
		text, err := textAndClose(dec, tag)
		if err != nil {
			return err
		}
		return composer.SetValueString(name, tagAlias(alias, tag), text)
	case tagStruct:
		if err := composer.BeginObject(name, ""); err != nil {
			return err
		}
		for {
			next, err := nextToken(dec)
			if err != nil {
				return err
			}
			if end, ok := next.(xml.EndElement); ok {
				if end.Name.Local != tagStruct {
					return newProtocolError("unexpected </" + end.Name.Local + "> inside <struct>")
				}
				break
			}
			memberStart, ok := next.(xml.StartElement)
			if !ok || memberStart.Name.Local != tagMember {
				return newProtocolError("expected <member> inside <struct>")
			}
			memberName, err := readMemberName(dec)
			if err != nil {
				return err
			}
			if err := parseValueWithName(dec, composer, memberName, alias); err != nil {
				return err
			}
			if _, err := nextEnd(dec, tagMember); err != nil {
				return err
			}
		}
		return composer.EndObject()
	case tagArray:
		if err := composer.BeginArray(name, ""); err != nil {
			return err
		}
		if _, err := nextStartNamed(dec, tagData); err != nil {
			return err
		}
		for {
			next, err := nextToken(dec)
			if err != nil {
				return err
			}
			if end, ok := next.(xml.EndElement); ok {
				if end.Name.Local != tagData {
					return newProtocolError("unexpected </" + end.Name.Local + "> inside <data>")
				}
				break
			}
			inner, ok := next.(xml.StartElement)
			if !ok || inner.Name.Local != tagValue {
				return newProtocolError("expected <value> inside <data>")
			}
			if err := parseValueBody(dec, composer, "", alias); err != nil {
				return err
			}
		}
		if _, err := nextEnd(dec, tagArray); err != nil {
			return err
		}
		return composer.EndArray()
	default:
		return newProtocolError("unrecognized element <" + tag + ">")
	}
}

func tagAlias(alias AliasTable, tag string) string {
	if alias == nil {
		return ""
	}
	for typeName, t := range alias {
		if t == tag {
			return typeName
		}
	}
	return ""
}

// readMemberName reads the <name>text</name> child that must open every
// <member> element, leaving the decoder positioned right before the
// member's <value>.
func readMemberName(dec *xml.Decoder) (string, error) {
	if _, err := nextStartNamed(dec, tagName); err != nil {
		return "", err
	}
	text, err := textAndClose(dec, tagName)
	if err != nil {
		return "", err
	}
	return text, nil
}

func consumeElement(dec *xml.Decoder, tag string) (string, error) {
	return textAndClose(dec, tag)
}

// textAndClose reads CharData (possibly empty) up to the matching
// closing tag for an already-opened element named tag.
func textAndClose(dec *xml.Decoder, tag string) (string, error) {
	var sb strings.Builder
	for {
		tok, err := nextToken(dec)
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			if t.Name.Local != tag {
				return "", newProtocolError("mismatched close tag </" + t.Name.Local + ">, want </" + tag + ">")
			}
			return sb.String(), nil
		default:
			return "", newProtocolError("unexpected token inside <" + tag + ">")
		}
	}
}

func nextToken(dec *xml.Decoder) (xml.Token, error) {
	tok, err := dec.Token()
	if err != nil {
		// encoding/xml reports a truncated document either as the
		// sentinel io.ErrUnexpectedEOF or as a SyntaxError wrapping the
		// same condition, depending on where the cut lands; both mean
		// "not enough bytes yet" here, never a real syntax problem.
		if err == io.EOF || err == io.ErrUnexpectedEOF || strings.Contains(err.Error(), "unexpected EOF") {
			return nil, errNeedMore
		}
		return nil, err
	}
	return xml.CopyToken(tok), nil
}

// nextStart skips leading whitespace/CharData/comments and returns the
// next StartElement.
func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := nextToken(dec)
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func nextStartNamed(dec *xml.Decoder, name string) (xml.StartElement, error) {
	start, err := nextStart(dec)
	if err != nil {
		return start, err
	}
	if start.Name.Local != name {
		return start, newProtocolError("expected <" + name + ">, got <" + start.Name.Local + ">")
	}
	return start, nil
}

func nextEnd(dec *xml.Decoder, name string) (xml.EndElement, error) {
	tok, err := nextToken(dec)
	if err != nil {
		return xml.EndElement{}, err
	}
	end, ok := tok.(xml.EndElement)
	if !ok || end.Name.Local != name {
		return xml.EndElement{}, newProtocolError("expected </" + name + ">")
	}
	return end, nil
}
