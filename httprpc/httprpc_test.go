package httprpc

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polyrpc/polyrpc/rpc"
	"github.com/polyrpc/polyrpc/si"
)

type addArgs struct{ A, B int }
type addReply struct{ Result int }

type arith struct{}

func (a *arith) Add(args *addArgs, reply *addReply) error {
	reply.Result = args.A + args.B
	return nil
}

func TestHandlerExecuteJSONRPC(t *testing.T) {
	reg := rpc.NewServiceRegistry()
	require.NoError(t, reg.Register(&arith{}))

	h := NewHandler(reg)
	h.Route("/rpc", rpc.JSONRPC)

	srv := httptest.NewServer(h)
	defer srv.Close()

	cl := NewClient(srv.URL+"/rpc", rpc.JSONRPC)

	argv, err := rpc.ValueToSI(&addArgs{A: 2, B: 3})
	require.NoError(t, err)

	result, err := cl.Execute("arith.Add", []*si.Info{argv})
	require.NoError(t, err)

	var reply addReply
	require.NoError(t, rpc.SIToValue(result, &reply))
	require.Equal(t, 5, reply.Result)
}

func TestHandlerBasicAuth(t *testing.T) {
	reg := rpc.NewServiceRegistry()
	require.NoError(t, reg.Register(&arith{}))

	h := NewHandler(reg)
	h.Auth = &BasicAuth{Realm: "polyrpc", Username: "u", Password: "p"}
	h.Route("/rpc", rpc.JSONRPC)

	srv := httptest.NewServer(h)
	defer srv.Close()

	cl := NewClient(srv.URL+"/rpc", rpc.JSONRPC)
	argv, err := rpc.ValueToSI(&addArgs{A: 1, B: 1})
	require.NoError(t, err)

	_, err = cl.Execute("arith.Add", []*si.Info{argv})
	require.Error(t, err)

	cl.Auth = h.Auth
	result, err := cl.Execute("arith.Add", []*si.Info{argv})
	require.NoError(t, err)
	var reply addReply
	require.NoError(t, rpc.SIToValue(result, &reply))
	require.Equal(t, 2, reply.Result)
}
