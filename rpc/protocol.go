// Package rpc implements the protocol-neutral glue spec.md §4.10
// describes: RemoteProcedure/RemoteClient on the calling side,
// Responder/Service/ServiceRegistry and the per-connection dispatcher
// state machine on the serving side. Every piece here is driven by the
// si.Info tree and the codec.Formatter/Deserializer pair, never by a
// single hardwired wire format — xmlrpc, binrpc, and jsonrpc plug in as
// three small Protocol adapters (below) over the shared core.
package rpc

import (
	"bufio"
	"io"

	"github.com/polyrpc/polyrpc/codec/binrpc"
	"github.com/polyrpc/polyrpc/codec/jsonrpc"
	"github.com/polyrpc/polyrpc/codec/xmlrpc"
	"github.com/polyrpc/polyrpc/si"
)

// Request is a protocol-neutral decoded call.
type Request struct {
	ID     int64
	Method string
	Args   []*si.Info
}

// Response is a protocol-neutral decoded successful reply.
type Response struct {
	ID     int64
	Result *si.Info
}

// Fault is a protocol-neutral decoded failed reply, per spec.md §7's
// fault-reply shape (a reserved code plus a human-readable message).
type Fault struct {
	ID      int64
	Code    int64
	Message string
}

// Conn is a protocol's view of one connection: write the three message
// kinds, and pull the next one off the wire. ReadMessage returns
// exactly one of req/resp/fault non-nil, mirroring the three codec
// packages' own ReadMessage functions.
type Conn interface {
	WriteRequest(id int64, method string, args []*si.Info) error
	WriteResponse(id int64, result *si.Info) error
	WriteFault(id int64, code int64, message string) error
	ReadMessage() (req *Request, resp *Response, fault *Fault, err error)
}

// Protocol names a wire format and builds a Conn bound to one
// underlying stream. Every wire format in spec.md §4.4-§4.6 implements
// this the same way: NewConn wraps rw once per TCP connection (or, for
// the HTTP-bound variants in package httprpc, once per request/reply
// round trip) and the returned Conn owns whatever per-connection state
// that protocol's Formatter needs (binrpc's growing name dictionaries;
// xmlrpc and jsonrpc need none).
type Protocol interface {
	Name() string
	NewConn(rw io.ReadWriter) Conn
}

// Protocols usable over a raw TCP stream, by name, per spec.md §1.
var (
	XMLRPC  Protocol = xmlProtocol{}
	BinRPC  Protocol = binProtocol{}
	JSONRPC Protocol = jsonProtocol{}
)

// ByName resolves a protocol identifier ("xmlrpc", "binrpc", "jsonrpc")
// to its Protocol, for config-driven server/client setup.
func ByName(name string) (Protocol, bool) {
	switch name {
	case "xmlrpc":
		return XMLRPC, true
	case "binrpc":
		return BinRPC, true
	case "jsonrpc":
		return JSONRPC, true
	default:
		return nil, false
	}
}

// --- binrpc -----------------------------------------------------------

type binProtocol struct{}

func (binProtocol) Name() string { return "binrpc" }

func (binProtocol) NewConn(rw io.ReadWriter) Conn {
	return &binConn{
		w:  rw,
		f:  binrpc.NewFormatter(rw),
		r:  bufio.NewReader(rw),
		mr: binrpc.NewMessageReader(),
	}
}

type binConn struct {
	w  io.Writer
	f  *binrpc.Formatter
	r  *bufio.Reader
	mr *binrpc.MessageReader
}

func (c *binConn) WriteRequest(_ int64, method string, args []*si.Info) error {
	return binrpc.WriteRequest(c.f, c.w, method, args)
}

func (c *binConn) WriteResponse(_ int64, result *si.Info) error {
	var results []*si.Info
	if result != nil {
		results = []*si.Info{result}
	}
	return binrpc.WriteResponse(c.f, c.w, results)
}

func (c *binConn) WriteFault(_ int64, code int64, message string) error {
	detail := si.NewObject()
	detail.AddMember("code").SetInt(code)
	detail.AddMember("message").SetString(message)
	return binrpc.WriteFault(c.f, c.w, detail)
}

func (c *binConn) ReadMessage() (*Request, *Response, *Fault, error) {
	tag, req, resp, fault, err := c.mr.ReadMessage(c.r)
	if err != nil {
		return nil, nil, nil, err
	}
	switch tag {
	case binrpc.TagRequest:
		return &Request{Method: req.Method, Args: req.Args}, nil, nil, nil
	case binrpc.TagResponse:
		var result *si.Info
		if len(resp.Results) > 0 {
			result = resp.Results[0]
		}
		return nil, &Response{Result: result}, nil, nil
	default:
		code, msg := faultDetail(fault.Detail)
		return nil, nil, &Fault{Code: code, Message: msg}, nil
	}
}

func faultDetail(detail *si.Info) (int64, string) {
	if detail == nil || detail.Category() != si.Object {
		return 0, ""
	}
	var code int64
	var msg string
	if c := detail.FindMember("code"); c != nil {
		code, _ = c.GetInt()
	}
	if m := detail.FindMember("message"); m != nil {
		msg, _ = m.GetString()
	}
	return code, msg
}

// --- xmlrpc -------------------------------------------------------------

type xmlProtocol struct{}

func (xmlProtocol) Name() string { return "xmlrpc" }

func (xmlProtocol) NewConn(rw io.ReadWriter) Conn {
	return &xmlConn{w: rw, r: bufio.NewReader(rw)}
}

type xmlConn struct {
	w     io.Writer
	r     *bufio.Reader
	alias xmlrpc.AliasTable
}

func (c *xmlConn) WriteRequest(_ int64, method string, args []*si.Info) error {
	return xmlrpc.WriteRequest(xmlrpc.NewFormatter(c.w, c.alias), method, args)
}

func (c *xmlConn) WriteResponse(_ int64, result *si.Info) error {
	return xmlrpc.WriteResponse(xmlrpc.NewFormatter(c.w, c.alias), result)
}

func (c *xmlConn) WriteFault(_ int64, code int64, message string) error {
	return xmlrpc.WriteFault(xmlrpc.NewFormatter(c.w, c.alias), code, message)
}

func (c *xmlConn) ReadMessage() (*Request, *Response, *Fault, error) {
	req, resp, fault, err := xmlrpc.ReadMessage(c.r)
	if err != nil {
		return nil, nil, nil, err
	}
	if req != nil {
		return &Request{Method: req.Method, Args: req.Params}, nil, nil, nil
	}
	if fault != nil {
		return nil, nil, &Fault{Code: fault.Code, Message: fault.Message}, nil
	}
	return nil, &Response{Result: resp.Result}, nil, nil
}

// --- jsonrpc ------------------------------------------------------------

type jsonProtocol struct{}

func (jsonProtocol) Name() string { return "jsonrpc" }

func (jsonProtocol) NewConn(rw io.ReadWriter) Conn {
	return &jsonConn{w: rw, r: bufio.NewReader(rw)}
}

type jsonConn struct {
	w io.Writer
	r *bufio.Reader
}

func (c *jsonConn) WriteRequest(id int64, method string, args []*si.Info) error {
	return jsonrpc.WriteRequest(jsonrpc.NewFormatter(c.w, jsonrpc.FormatFlags{}), id, method, args)
}

func (c *jsonConn) WriteResponse(id int64, result *si.Info) error {
	return jsonrpc.WriteResponse(jsonrpc.NewFormatter(c.w, jsonrpc.FormatFlags{}), id, result)
}

func (c *jsonConn) WriteFault(id int64, code int64, message string) error {
	return jsonrpc.WriteFault(jsonrpc.NewFormatter(c.w, jsonrpc.FormatFlags{}), id, code, message)
}

func (c *jsonConn) ReadMessage() (*Request, *Response, *Fault, error) {
	req, resp, fault, err := jsonrpc.ReadMessage(c.r)
	if err != nil {
		return nil, nil, nil, err
	}
	if req != nil {
		return &Request{ID: req.ID, Method: req.Method, Args: req.Params}, nil, nil, nil
	}
	if fault != nil {
		return nil, nil, &Fault{ID: fault.ID, Code: fault.Code, Message: fault.Message}, nil
	}
	return nil, &Response{ID: resp.ID, Result: resp.Result}, nil, nil
}
