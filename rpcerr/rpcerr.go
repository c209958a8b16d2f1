// Package rpcerr defines the error taxonomy shared by every codec, the
// dispatcher, and the client (spec.md §7). Each kind below is a
// sentinel or wrapped error usable with errors.Is/errors.As, not a
// single monolithic error type — parse errors, conversion errors,
// method-not-found, invocation faults, I/O errors, and timeouts are
// distinguishable by callers that need to react differently to each.
package rpcerr

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching. Wrapped errors below carry these as
// their Unwrap() target.
var (
	// ErrMethodNotFound means the registry has no binding for the
	// requested method name.
	ErrMethodNotFound = errors.New("rpcerr: method not found")
	// ErrIOTimeout means a blocking or suspendable operation exceeded
	// its deadline.
	ErrIOTimeout = errors.New("rpcerr: i/o timeout")
	// ErrCertificateNotAccepted means the application's certificate
	// delegate vetoed a TLS peer.
	ErrCertificateNotAccepted = errors.New("rpcerr: certificate not accepted")
	// ErrConnectionClosed means the connection was closed, by either
	// peer or a cancellation, before a pending call completed.
	ErrConnectionClosed = errors.New("rpcerr: connection closed")
)

// ProtocolError is a malformed-byte-sequence or grammar violation. The
// wire codecs report their own types instead (binrpc.ProtocolError,
// jsonrpc.ProtocolError). On any read error, rpc.Responder closes the
// connection without sending a fault.
type ProtocolError struct {
	Protocol string
	Msg      string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("rpcerr: %s protocol error: %s", e.Protocol, e.Msg)
}

// ConversionError wraps a si.ConversionError (or any scalar mismatch)
// encountered while composing arguments or decomposing a result.
type ConversionError struct {
	Field string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("rpcerr: conversion error on %q: %v", e.Field, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// InvocationError wraps the error a registered method returned. Code is
// an application-defined fault code: the method's error is consulted
// for an Rc() int64 method (RemoteCoder) (this package's stand-in for the source's
// RemoteException::rc()); otherwise Code is CodeGeneric.
type InvocationError struct {
	Code    int64
	Message string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("rpcerr: invocation fault %d: %s", e.Code, e.Message)
}

// RemoteCoder is implemented by application errors that want a specific
// fault code on the wire instead of CodeGeneric.
type RemoteCoder interface {
	Rc() int64
}

// NewInvocationError builds an InvocationError from a method's returned
// error, consulting RemoteCoder when available.
func NewInvocationError(err error) *InvocationError {
	code := CodeGeneric
	var rc RemoteCoder
	if errors.As(err, &rc) {
		code = rc.Rc()
	}
	return &InvocationError{Code: code, Message: err.Error()}
}

// Reserved fault codes, per spec.md §7.
const (
	CodeGeneric        int64 = 1
	CodeMethodNotFound int64 = 2
	CodeParseError     int64 = 3
	CodeConversion     int64 = 4
	CodeTimeout        int64 = 5
	CodeRateLimited    int64 = 6
)

// IOError wraps a transport-level failure: connection reset, EOF
// mid-message, TLS handshake failure. Always terminal for the affected
// connection.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("rpcerr: i/o error during %s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }
