package binrpc

import (
	"bufio"
	"io"

	"github.com/polyrpc/polyrpc/codec"
	"github.com/polyrpc/polyrpc/si"
)

// Request is one decoded binary-RPC call: a method name followed by
// its positional argument trees, per spec.md §4.5's top-level framing
// "<0xC0> <method-name NUL> <arg-frame>* 0xFF".
type Request struct {
	Method string
	Args   []*si.Info
}

// Response is a successful call's positional result trees.
type Response struct {
	Results []*si.Info
}

// Fault is a failed call's single fault description tree.
type Fault struct {
	Detail *si.Info
}

// WriteRequest encodes a request onto w, writing the argument frames
// through f (which must write to the same w). f's name/type
// dictionaries carry over between calls, so calling
// WriteRequest/WriteResponse/WriteFault against the same *Formatter
// across a connection gives dictionary compression across pipelined
// messages. The method name itself is always written literally.
func WriteRequest(f *Formatter, w io.Writer, method string, args []*si.Info) error {
	if err := writeByte(w, TagRequest); err != nil {
		return err
	}
	if err := writeNulString(w, method); err != nil {
		return err
	}
	for _, a := range args {
		if err := si.NewDecomposer(f).Decompose(a, ""); err != nil {
			return err
		}
	}
	return writeByte(w, EndMarker)
}

// WriteResponse encodes a successful reply.
func WriteResponse(f *Formatter, w io.Writer, results []*si.Info) error {
	if err := writeByte(w, TagResponse); err != nil {
		return err
	}
	for _, r := range results {
		if err := si.NewDecomposer(f).Decompose(r, ""); err != nil {
			return err
		}
	}
	return writeByte(w, EndMarker)
}

// WriteFault encodes a fault reply.
func WriteFault(f *Formatter, w io.Writer, detail *si.Info) error {
	if err := writeByte(w, TagFault); err != nil {
		return err
	}
	if err := si.NewDecomposer(f).Decompose(detail, ""); err != nil {
		return err
	}
	return writeByte(w, EndMarker)
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func writeNulString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return err
	}
	return writeByte(w, 0x00)
}

// MessageReader reads successive top-level messages off one connection.
// It owns the name/type-name dictionaries that persist across messages,
// mirroring Formatter's persistent dictionaries on the write side — a
// back-reference a peer's Formatter emitted in message 3 can only be
// resolved if this reader has also seen messages 1 and 2.
type MessageReader struct {
	names    *nameDict
	typeDict *nameDict
}

// NewMessageReader returns a MessageReader with empty dictionaries. Use
// one instance for the lifetime of one connection.
func NewMessageReader() *MessageReader {
	return &MessageReader{names: newNameDict(), typeDict: newNameDict()}
}

// ReadMessage reads one top-level message from r and reports which of
// Request, Response, or Fault it was.
func (mr *MessageReader) ReadMessage(r *bufio.Reader) (tag byte, req *Request, resp *Response, fault *Fault, err error) {
	tag, err = r.ReadByte()
	if err != nil {
		return 0, nil, nil, nil, err
	}
	switch tag {
	case TagRequest:
		method, err := readNulStringFromReader(r)
		if err != nil {
			return 0, nil, nil, nil, err
		}
		args, err := mr.readFrameSequence(r)
		if err != nil {
			return 0, nil, nil, nil, err
		}
		return tag, &Request{Method: method, Args: args}, nil, nil, nil
	case TagResponse:
		results, err := mr.readFrameSequence(r)
		if err != nil {
			return 0, nil, nil, nil, err
		}
		return tag, nil, &Response{Results: results}, nil, nil
	case TagFault:
		values, err := mr.readFrameSequence(r)
		if err != nil {
			return 0, nil, nil, nil, err
		}
		if len(values) != 1 {
			return 0, nil, nil, nil, NewProtocolError("fault message must carry exactly one detail frame")
		}
		return tag, nil, nil, &Fault{Detail: values[0]}, nil
	default:
		return 0, nil, nil, nil, NewProtocolError("unknown top-level tag")
	}
}

func readNulStringFromReader(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0x00)
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

// readFrameSequence reads value frames until the top-level 0xFF
// terminator, reusing this reader's dictionaries across every frame.
func (mr *MessageReader) readFrameSequence(r *bufio.Reader) ([]*si.Info, error) {
	var out []*si.Info
	for {
		peek, err := r.Peek(1)
		if err != nil {
			return nil, err
		}
		if peek[0] == EndMarker {
			_, _ = r.ReadByte()
			return out, nil
		}
		p := newValueParserShared(mr.names, mr.typeDict)
		p.Begin()
		for {
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			res, err := p.Advance(b)
			if err != nil {
				return nil, err
			}
			if res == codec.Complete {
				break
			}
		}
		out = append(out, p.Result())
	}
}
