package xmlrpc

import (
	"bufio"
	"bytes"
	"encoding/xml"

	"github.com/polyrpc/polyrpc/si"
)

// Request is one decoded `<methodCall>`.
type Request struct {
	Method string
	Params []*si.Info
}

// Response is a successful `<methodResponse>`'s single return value.
type Response struct {
	Result *si.Info
}

// Fault is a `<methodResponse><fault>...` reply, per spec.md's
// faultCode/faultString shape.
type Fault struct {
	Code    int64
	Message string
}

// WriteRequest encodes a methodCall envelope through f.
func WriteRequest(f *Formatter, method string, params []*si.Info) error {
	f.write("<" + tagMethodCall + "><" + tagMethodName + ">")
	f.writeEscaped(method)
	f.write("</" + tagMethodName + "><" + tagParams + ">")
	for _, p := range params {
		f.write("<" + tagParam + ">")
		if err := si.NewDecomposer(f).Decompose(p, ""); err != nil {
			return err
		}
		f.write("</" + tagParam + ">")
	}
	f.write("</" + tagParams + "></" + tagMethodCall + ">")
	return f.Finish()
}

// WriteResponse encodes a successful methodResponse envelope.
func WriteResponse(f *Formatter, result *si.Info) error {
	f.write("<" + tagMethodResponse + "><" + tagParams + "><" + tagParam + ">")
	if err := si.NewDecomposer(f).Decompose(result, ""); err != nil {
		return err
	}
	f.write("</" + tagParam + "></" + tagParams + "></" + tagMethodResponse + ">")
	return f.Finish()
}

// WriteFault encodes a methodResponse fault envelope: a struct with
// faultCode (int) and faultString (string) members.
func WriteFault(f *Formatter, code int64, message string) error {
	f.write("<" + tagMethodResponse + "><" + tagFault + "><" + tagValue + "><" + tagStruct + ">")
	f.write("<" + tagMember + "><" + tagName + ">faultCode</" + tagName + "><" + tagValue + "><" + tagInt + ">")
	f.write(itoa(code))
	f.write("</" + tagInt + "></" + tagValue + "></" + tagMember + ">")
	f.write("<" + tagMember + "><" + tagName + ">faultString</" + tagName + ">")
	if err := f.AddValueString("", "", message); err != nil {
		return err
	}
	f.write("</" + tagMember + ">")
	f.write("</" + tagStruct + "></" + tagValue + "></" + tagFault + "></" + tagMethodResponse + ">")
	return f.Finish()
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ReadMessage reads one complete XML-RPC document from r (a methodCall
// or methodResponse, fault or otherwise) and reports which kind it was.
// Unlike binrpc's persistent dictionaries, XML-RPC carries no
// per-connection state, so a fresh decode may run on each call.
//
// The closing tag is the unambiguous terminator of an XML document, so
// this reads byte-by-byte, re-attempting the full document parse after
// every byte — the buffer is never large enough for this to matter in
// practice for RPC-sized payloads — until the outer element closes.
func ReadMessage(r *bufio.Reader) (req *Request, resp *Response, fault *Fault, err error) {
	alias := AliasTable(nil)
	var buf []byte
	for {
		b, rerr := r.ReadByte()
		if rerr != nil {
			return nil, nil, nil, rerr
		}
		buf = append(buf, b)
		dec := xml.NewDecoder(bytes.NewReader(buf))
		req, resp, fault, err = tryParseEnvelope(dec, alias)
		if err == errNeedMore {
			continue
		}
		if err != nil {
			return nil, nil, nil, err
		}
		return req, resp, fault, nil
	}
}

func tryParseEnvelope(dec *xml.Decoder, alias AliasTable) (*Request, *Response, *Fault, error) {
	start, err := nextStart(dec)
	if err != nil {
		return nil, nil, nil, err
	}
	switch start.Name.Local {
	case tagMethodCall:
		return parseMethodCall(dec, alias)
	case tagMethodResponse:
		return parseMethodResponse(dec, alias)
	default:
		return nil, nil, nil, newProtocolError("expected <" + tagMethodCall + "> or <" + tagMethodResponse + ">, got <" + start.Name.Local + ">")
	}
}

func parseMethodCall(dec *xml.Decoder, alias AliasTable) (*Request, *Response, *Fault, error) {
	if _, err := nextStartNamed(dec, tagMethodName); err != nil {
		return nil, nil, nil, err
	}
	method, err := textAndClose(dec, tagMethodName)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := nextStartNamed(dec, tagParams); err != nil {
		return nil, nil, nil, err
	}
	var params []*si.Info
	for {
		tok, err := nextToken(dec)
		if err != nil {
			return nil, nil, nil, err
		}
		if end, ok := tok.(xml.EndElement); ok {
			if end.Name.Local != tagParams {
				return nil, nil, nil, newProtocolError("unexpected </" + end.Name.Local + "> inside <params>")
			}
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != tagParam {
			return nil, nil, nil, newProtocolError("expected <param> inside <params>")
		}
		composer := si.NewComposer()
		if err := parseValueInto(dec, composer, alias); err != nil {
			return nil, nil, nil, err
		}
		if _, err := nextEnd(dec, tagParam); err != nil {
			return nil, nil, nil, err
		}
		params = append(params, composer.Result())
	}
	if _, err := nextEnd(dec, tagMethodCall); err != nil {
		return nil, nil, nil, err
	}
	return &Request{Method: method, Params: params}, nil, nil, nil
}

func parseMethodResponse(dec *xml.Decoder, alias AliasTable) (*Request, *Response, *Fault, error) {
	tok, err := nextToken(dec)
	if err != nil {
		return nil, nil, nil, err
	}
	start, ok := tok.(xml.StartElement)
	if !ok {
		return nil, nil, nil, newProtocolError("expected <params> or <fault>")
	}
	switch start.Name.Local {
	case tagParams:
		if _, err := nextStartNamed(dec, tagParam); err != nil {
			return nil, nil, nil, err
		}
		composer := si.NewComposer()
		if err := parseValueInto(dec, composer, alias); err != nil {
			return nil, nil, nil, err
		}
		if _, err := nextEnd(dec, tagParam); err != nil {
			return nil, nil, nil, err
		}
		if _, err := nextEnd(dec, tagParams); err != nil {
			return nil, nil, nil, err
		}
		if _, err := nextEnd(dec, tagMethodResponse); err != nil {
			return nil, nil, nil, err
		}
		return nil, &Response{Result: composer.Result()}, nil, nil
	case tagFault:
		composer := si.NewComposer()
		if err := parseValueInto(dec, composer, alias); err != nil {
			return nil, nil, nil, err
		}
		if _, err := nextEnd(dec, tagFault); err != nil {
			return nil, nil, nil, err
		}
		if _, err := nextEnd(dec, tagMethodResponse); err != nil {
			return nil, nil, nil, err
		}
		detail := composer.Result()
		var code int64
		var msg string
		if detail.Category() == si.Object {
			if c := detail.FindMember("faultCode"); c != nil {
				code, _ = c.GetInt()
			}
			if m := detail.FindMember("faultString"); m != nil {
				msg, _ = m.GetString()
			}
		}
		return nil, nil, &Fault{Code: code, Message: msg}, nil
	default:
		return nil, nil, nil, newProtocolError("unexpected <" + start.Name.Local + "> inside <methodResponse>")
	}
}

