package jsonrpc

import (
	"bufio"

	"github.com/polyrpc/polyrpc/codec"
	"github.com/polyrpc/polyrpc/si"
)

// Request is one decoded JSON-RPC call per spec.md §4.6's HTTP/TCP
// envelope: `{"id":N,"method":"name","params":[...]}`.
type Request struct {
	ID     int64
	Method string
	Params []*si.Info
}

// Response is a successful call's single result value.
type Response struct {
	ID     int64
	Result *si.Info
}

// Fault is a failed call's error description: either a plain message or
// a `{code, message}` object, per spec.md §4.6.
type Fault struct {
	ID      int64
	Code    int64
	Message string
}

// WriteRequest encodes a request envelope through f.
func WriteRequest(f *Formatter, id int64, method string, params []*si.Info) error {
	if err := f.BeginObject("", ""); err != nil {
		return err
	}
	if err := f.AddValueInt("id", "", id); err != nil {
		return err
	}
	if err := f.AddValueString("method", "", method); err != nil {
		return err
	}
	if err := f.BeginArray("params", ""); err != nil {
		return err
	}
	for _, p := range params {
		if err := si.NewDecomposer(f).Decompose(p, ""); err != nil {
			return err
		}
	}
	if err := f.FinishArray(); err != nil {
		return err
	}
	return f.FinishObject()
}

// WriteResponse encodes a successful reply envelope: result set,
// error explicitly null.
func WriteResponse(f *Formatter, id int64, result *si.Info) error {
	if err := f.BeginObject("", ""); err != nil {
		return err
	}
	if err := f.AddValueInt("id", "", id); err != nil {
		return err
	}
	if err := si.NewDecomposer(f).Decompose(result, "result"); err != nil {
		return err
	}
	if err := f.AddNull("error", ""); err != nil {
		return err
	}
	return f.FinishObject()
}

// WriteFault encodes a fault reply envelope: result explicitly null,
// error set to `{code, message}`.
func WriteFault(f *Formatter, id, code int64, message string) error {
	if err := f.BeginObject("", ""); err != nil {
		return err
	}
	if err := f.AddValueInt("id", "", id); err != nil {
		return err
	}
	if err := f.AddNull("result", ""); err != nil {
		return err
	}
	if err := f.BeginObject("error", ""); err != nil {
		return err
	}
	if err := f.AddValueInt("code", "", code); err != nil {
		return err
	}
	if err := f.AddValueString("message", "", message); err != nil {
		return err
	}
	if err := f.FinishObject(); err != nil {
		return err
	}
	return f.FinishObject()
}

// ReadMessage reads one JSON-RPC envelope from r and reports which kind
// it was. It has no per-connection state to carry (unlike binrpc's
// dictionaries), so a fresh one may be used per call.
func ReadMessage(r *bufio.Reader) (req *Request, resp *Response, fault *Fault, err error) {
	p := NewParser()
	p.Begin()
	for {
		b, rerr := r.ReadByte()
		if rerr != nil {
			return nil, nil, nil, rerr
		}
		res, perr := p.Advance(b)
		if perr != nil {
			return nil, nil, nil, perr
		}
		if res == codec.Complete {
			break
		}
		if res == codec.CompleteAndPutback {
			if err := r.UnreadByte(); err != nil {
				return nil, nil, nil, err
			}
			break
		}
	}
	return decodeEnvelope(p.Result())
}

func decodeEnvelope(root *si.Info) (*Request, *Response, *Fault, error) {
	if root.Category() != si.Object {
		return nil, nil, nil, newProtocolError("envelope must be a JSON object")
	}
	idNode := root.FindMember("id")
	var id int64
	if idNode != nil {
		v, err := idNode.GetInt()
		if err == nil {
			id = v
		}
	}
	if m := root.FindMember("method"); m != nil {
		method, err := m.GetString()
		if err != nil {
			return nil, nil, nil, err
		}
		var params []*si.Info
		if p := root.FindMember("params"); p != nil {
			params = p.Members()
		}
		return &Request{ID: id, Method: method, Params: params}, nil, nil, nil
	}
	if e := root.FindMember("error"); e != nil && !e.IsNull() {
		if e.Category() == si.Object {
			var code int64
			var msg string
			if c := e.FindMember("code"); c != nil {
				code, _ = c.GetInt()
			}
			if m := e.FindMember("message"); m != nil {
				msg, _ = m.GetString()
			}
			return nil, nil, &Fault{ID: id, Code: code, Message: msg}, nil
		}
		msg, _ := e.GetString()
		return nil, nil, &Fault{ID: id, Message: msg}, nil
	}
	result := root.FindMember("result")
	return nil, &Response{ID: id, Result: result}, nil, nil
}
