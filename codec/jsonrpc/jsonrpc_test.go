package jsonrpc

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/polyrpc/polyrpc/si"
	"github.com/stretchr/testify/require"
)

// TestIncrementRequestWireShape pins the exact envelope shape for a
// single-argument call.
func TestIncrementRequestWireShape(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, FormatFlags{})
	arg := si.NewValue(si.Scalar{Kind: si.ScalarUint, U: 41})
	require.NoError(t, WriteRequest(f, 1, "inc", []*si.Info{arg}))
	require.Equal(t, `{"id":1,"method":"inc","params":[41]}`, buf.String())
}

// TestIncrementRoundTrip decodes the request this package just encoded
// and replies with the expected increment result.
func TestIncrementRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, FormatFlags{})
	arg := si.NewValue(si.Scalar{Kind: si.ScalarUint, U: 41})
	require.NoError(t, WriteRequest(f, 1, "inc", []*si.Info{arg}))

	req, _, _, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, "inc", req.Method)
	require.Len(t, req.Params, 1)
	n, err := req.Params[0].GetUint()
	require.NoError(t, err)
	require.EqualValues(t, 41, n)

	var reply bytes.Buffer
	rf := NewFormatter(&reply, FormatFlags{})
	result := si.NewValue(si.Scalar{Kind: si.ScalarUint, U: n + 1})
	require.NoError(t, WriteResponse(rf, req.ID, result))
	require.Equal(t, `{"id":1,"result":42,"error":null}`, reply.String())

	_, resp, _, err := ReadMessage(bufio.NewReader(&reply))
	require.NoError(t, err)
	require.EqualValues(t, 1, resp.ID)
	got, err := resp.Result.GetUint()
	require.NoError(t, err)
	require.EqualValues(t, 42, got)
}

// TestFaultRoundTrip covers the "bad arg" fault scenario.
func TestFaultRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, FormatFlags{})
	require.NoError(t, WriteFault(f, 7, 400, "bad arg"))

	_, _, fault, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.EqualValues(t, 7, fault.ID)
	require.EqualValues(t, 400, fault.Code)
	require.Equal(t, "bad arg", fault.Message)
}

// TestLenientGrammarExtensions exercises the deliberate read-side
// extensions: comments, single-quoted strings, trailing commas, and
// unquoted object keys.
func TestLenientGrammarExtensions(t *testing.T) {
	input := `{
		// a line comment
		id: 1, /* block comment */
		'method': 'inc',
		"params": [41,],
	}`
	req, _, _, err := ReadMessage(bufio.NewReader(strings.NewReader(input)))
	require.NoError(t, err)
	require.EqualValues(t, 1, req.ID)
	require.Equal(t, "inc", req.Method)
	require.Len(t, req.Params, 1)
	n, err := req.Params[0].GetUint()
	require.NoError(t, err)
	require.EqualValues(t, 41, n)
}

// TestBeautifyFormatter checks the pretty-printed output shape.
func TestBeautifyFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, FormatFlags{Beautify: true, PlainKey: true})
	arg := si.NewValue(si.Scalar{Kind: si.ScalarString, Str: "hi"})
	require.NoError(t, WriteRequest(f, 5, "echo", []*si.Info{arg}))
	require.Contains(t, buf.String(), "\n  id:5")
	require.Contains(t, buf.String(), `"hi"`)
}

// TestNestedObjectParamRoundTrip covers an object-shaped argument.
func TestNestedObjectParamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, FormatFlags{})
	point := si.NewObject()
	point.AddMember("x").SetInt(1)
	point.AddMember("y").SetInt(2)
	require.NoError(t, WriteRequest(f, 2, "plot", []*si.Info{point}))

	req, _, _, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, req.Params, 1)
	require.Equal(t, si.Object, req.Params[0].Category())
	x, err := req.Params[0].FindMember("x").GetInt()
	require.NoError(t, err)
	require.EqualValues(t, 1, x)
}
