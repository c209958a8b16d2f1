package binrpc

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/polyrpc/polyrpc/si"
	"github.com/stretchr/testify/require"
)

// TestEchoRequestWireShape pins down the request framing for a single
// string argument: tag, NUL-terminated method name, one unnamed string
// value frame, top-level end marker.
func TestEchoRequestWireShape(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	arg := si.NewValue(si.Scalar{Kind: si.ScalarString, Str: "hi"})

	require.NoError(t, WriteRequest(f, &buf, "echo", []*si.Info{arg}))

	want := []byte{TagRequest}
	want = append(want, "echo\x00"...)
	want = append(want, CatValue, 0x00, TypeString)
	want = append(want, "hi\x00"...)
	want = append(want, EndMarker, EndMarker)
	require.Equal(t, want, buf.Bytes())
}

// TestEchoRoundTrip decodes the request this package just encoded and
// checks the argument value and method name survive the round trip.
func TestEchoRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	arg := si.NewValue(si.Scalar{Kind: si.ScalarString, Str: "hi"})
	require.NoError(t, WriteRequest(f, &buf, "echo", []*si.Info{arg}))

	tag, req, _, _, err := NewMessageReader().ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, TagRequest, tag)
	require.Equal(t, "echo", req.Method)
	require.Len(t, req.Args, 1)
	s, err := req.Args[0].GetString()
	require.NoError(t, err)
	require.Equal(t, "hi", s)
}

// TestResponseRoundTrip covers the reply path for the same call.
func TestResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	result := si.NewValue(si.Scalar{Kind: si.ScalarString, Str: "hi"})
	require.NoError(t, WriteResponse(f, &buf, []*si.Info{result}))

	tag, _, resp, _, err := NewMessageReader().ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, TagResponse, tag)
	require.Len(t, resp.Results, 1)
	s, err := resp.Results[0].GetString()
	require.NoError(t, err)
	require.Equal(t, "hi", s)
}

// TestFaultRoundTrip covers a method-not-found style fault: an object
// with a faultCode/faultString pair, the same fault shape codec/xmlrpc
// uses.
func TestFaultRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	detail := si.NewObject()
	detail.AddMember("faultCode").SetInt(404)
	detail.AddMember("faultString").SetString("method not found")
	require.NoError(t, WriteFault(f, &buf, detail))

	tag, _, _, fault, err := NewMessageReader().ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, TagFault, tag)
	require.Equal(t, si.Object, fault.Detail.Category())

	code, err := fault.Detail.FindMember("faultCode").GetInt()
	require.NoError(t, err)
	require.EqualValues(t, 404, code)

	msg, err := fault.Detail.FindMember("faultString").GetString()
	require.NoError(t, err)
	require.Equal(t, "method not found", msg)
}

// TestObjectArrayRoundTrip exercises nested Object/Array framing and
// the name dictionary back-reference path by repeating a member name
// across two sibling objects in the same stream.
func TestObjectArrayRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)

	addPoint := func(arr *si.Info, x, y int64) {
		p := arr.AddMember("")
		p.AddMember("x").SetInt(x)
		p.AddMember("y").SetInt(y)
	}

	arr := si.NewArray()
	addPoint(arr, 1, 2)
	addPoint(arr, 3, 4)

	require.NoError(t, WriteRequest(f, &buf, "plot", []*si.Info{arr}))

	_, req, _, _, err := NewMessageReader().ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, req.Args, 1)
	got := req.Args[0]
	require.Equal(t, si.Array, got.Category())
	require.Len(t, got.Members(), 2)

	x0, _ := got.Members()[0].FindMember("x").GetInt()
	y0, _ := got.Members()[0].FindMember("y").GetInt()
	require.EqualValues(t, 1, x0)
	require.EqualValues(t, 2, y0)

	x1, _ := got.Members()[1].FindMember("x").GetInt()
	require.EqualValues(t, 3, x1)
}

// TestPipelinedMessagesShareDictionary checks that a Formatter and a
// MessageReader reused across two requests agree on the shared name
// dictionary: the second request carries the repeated member name "id"
// as a dictionary back-reference, which the reader must resolve from
// the first request.
func TestPipelinedMessagesShareDictionary(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	obj1 := si.NewObject()
	obj1.AddMember("id").SetInt(1)
	obj2 := si.NewObject()
	obj2.AddMember("id").SetInt(2)

	require.NoError(t, WriteRequest(f, &buf, "get", []*si.Info{obj1}))
	require.NoError(t, WriteRequest(f, &buf, "get", []*si.Info{obj2}))

	r := bufio.NewReader(&buf)
	mr := NewMessageReader()
	_, req1, _, _, err := mr.ReadMessage(r)
	require.NoError(t, err)
	id1, _ := req1.Args[0].FindMember("id").GetInt()
	require.EqualValues(t, 1, id1)

	_, req2, _, _, err := mr.ReadMessage(r)
	require.NoError(t, err)
	id2, _ := req2.Args[0].FindMember("id").GetInt()
	require.EqualValues(t, 2, id2)
}
