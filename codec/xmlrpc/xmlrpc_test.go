package xmlrpc

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/polyrpc/polyrpc/si"
	"github.com/stretchr/testify/require"
)

// TestEchoRequestWireShape pins down the exact methodCall envelope shape
// for a single string argument.
func TestEchoRequestWireShape(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, nil)
	arg := si.NewValue(si.Scalar{Kind: si.ScalarString, Str: "hi"})
	require.NoError(t, WriteRequest(f, "echo", []*si.Info{arg}))

	want := "<methodCall><methodName>echo</methodName><params>" +
		"<param><value><string>hi</string></value></param>" +
		"</params></methodCall>"
	require.Equal(t, want, buf.String())
}

// TestEchoRoundTrip decodes the request this package just encoded.
func TestEchoRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, nil)
	arg := si.NewValue(si.Scalar{Kind: si.ScalarString, Str: "hi"})
	require.NoError(t, WriteRequest(f, "echo", []*si.Info{arg}))

	req, _, _, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, "echo", req.Method)
	require.Len(t, req.Params, 1)
	s, err := req.Params[0].GetString()
	require.NoError(t, err)
	require.Equal(t, "hi", s)
}

// TestResponseRoundTrip covers the successful reply path.
func TestResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, nil)
	result := si.NewValue(si.Scalar{Kind: si.ScalarInt, I: 42})
	require.NoError(t, WriteResponse(f, result))

	want := "<methodResponse><params><param><value><int>42</int></value>" +
		"</param></params></methodResponse>"
	require.Equal(t, want, buf.String())

	_, resp, _, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	n, err := resp.Result.GetInt()
	require.NoError(t, err)
	require.EqualValues(t, 42, n)
}

// TestFaultRoundTrip covers the "bad arg" fault scenario, the XML-RPC
// faultCode/faultString shape (codec/binrpc's fault detail uses the same
// member names; codec/jsonrpc uses {code, message} instead).
func TestFaultRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, nil)
	require.NoError(t, WriteFault(f, 400, "bad arg"))

	want := "<methodResponse><fault><value><struct>" +
		"<member><name>faultCode</name><value><int>400</int></value></member>" +
		"<member><name>faultString</name><value><string>bad arg</string></value></member>" +
		"</struct></value></fault></methodResponse>"
	require.Equal(t, want, buf.String())

	_, _, fault, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.EqualValues(t, 400, fault.Code)
	require.Equal(t, "bad arg", fault.Message)
}

// TestStructAndArrayRoundTrip covers a struct-shaped argument containing
// an array, exercising <struct>/<member> and <array>/<data> nesting.
func TestStructAndArrayRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, nil)

	point := si.NewObject()
	point.AddMember("x").SetInt(1)
	point.AddMember("y").SetInt(2)
	tags := si.NewArray()
	tags.AddMember("").SetString("a")
	tags.AddMember("").SetString("b")

	require.NoError(t, WriteRequest(f, "plot", []*si.Info{point, tags}))

	req, _, _, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, req.Params, 2)

	got := req.Params[0]
	require.Equal(t, si.Object, got.Category())
	x, err := got.FindMember("x").GetInt()
	require.NoError(t, err)
	require.EqualValues(t, 1, x)

	gotTags := req.Params[1]
	require.Equal(t, si.Array, gotTags.Category())
	require.Len(t, gotTags.Members(), 2)
	s0, err := gotTags.Members()[0].GetString()
	require.NoError(t, err)
	require.Equal(t, "a", s0)
}

// TestNullValueRoundTrip covers the <nil/> extension element this
// package emits for a Void scalar, since standard XML-RPC has none.
func TestNullValueRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, nil)
	void := si.NewVoid()
	require.NoError(t, WriteRequest(f, "ping", []*si.Info{void}))
	require.Contains(t, buf.String(), "<value><nil/></value>")

	req, _, _, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, req.Params, 1)
	require.True(t, req.Params[0].IsNull())
}
