// Package nettransport implements the stream-endpoint layer of spec.md
// §4.8: TcpServer/TcpSocket above Go's already-nonblocking net package,
// with TLS wrapping as an opt-in layer (SslCtx) exactly as spec.md
// describes it — "TLS is an opt-in wrapping layer" — rather than a
// separate code path duplicated per protocol.
package nettransport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/polyrpc/polyrpc/rpcerr"
)

// VerifyLevel mirrors spec.md §4.8's peer-verification level enum.
type VerifyLevel int

const (
	VerifyNone VerifyLevel = iota
	VerifyPeer
	VerifyFailIfNoPeerCert
)

// CertAcceptFunc lets the application veto a peer certificate the
// standard library's own chain verification already accepted — spec.md
// §4.8's "certificate acceptance may be vetoed by a delegate the
// application supplies."
type CertAcceptFunc func(*x509.Certificate) bool

// SslCtx is the TLS collaborator spec.md §1 calls out as an
// "implementation aid": certificate material, peer-verification level,
// protocol bounds, optional cipher list, and the application's
// certificate-accept delegate.
type SslCtx struct {
	Certificates []tls.Certificate
	RootCAs      *x509.CertPool
	ClientCAs    *x509.CertPool
	Verify       VerifyLevel
	MinVersion   uint16 // tls.VersionTLS12, etc. — spec.md's SSLv2..TLS1.3 bounds
	MaxVersion   uint16
	CipherSuites []uint16
	AcceptCert   CertAcceptFunc
}

func (s *SslCtx) serverConfig() *tls.Config {
	cfg := &tls.Config{
		Certificates: s.Certificates,
		ClientCAs:    s.ClientCAs,
		MinVersion:   s.MinVersion,
		MaxVersion:   s.MaxVersion,
		CipherSuites: s.CipherSuites,
	}
	switch s.Verify {
	case VerifyPeer:
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
	case VerifyFailIfNoPeerCert:
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	default:
		cfg.ClientAuth = tls.NoClientCert
	}
	if s.AcceptCert != nil {
		cfg.VerifyPeerCertificate = acceptCertCallback(s.AcceptCert)
	}
	return cfg
}

func (s *SslCtx) clientConfig(serverName string) *tls.Config {
	cfg := &tls.Config{
		Certificates: s.Certificates,
		RootCAs:      s.RootCAs,
		MinVersion:   s.MinVersion,
		MaxVersion:   s.MaxVersion,
		CipherSuites: s.CipherSuites,
		ServerName:   serverName,
	}
	if s.AcceptCert != nil {
		cfg.VerifyPeerCertificate = acceptCertCallback(s.AcceptCert)
	}
	return cfg
}

func acceptCertCallback(accept CertAcceptFunc) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return rpcerr.ErrCertificateNotAccepted
		}
		cert, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return &rpcerr.IOError{Op: "parse peer certificate", Err: err}
		}
		if !accept(cert) {
			return rpcerr.ErrCertificateNotAccepted
		}
		return nil
	}
}

// TcpServer listens on one or more (ip, port) pairs. The listen backlog
// is the operating system's default; TcpServer has no setting for it.
// Accept is non-blocking courtesy of Go's runtime netpoller,
// matching spec.md's "accepting is non-blocking" without a hand-rolled
// selector (spec.md §9's redesign note for cooperative-async code).
type TcpServer struct {
	listeners []net.Listener
	ssl       *SslCtx
}

// Listen may be called repeatedly to bind additional addresses; empty
// ip means all interfaces, and the same call handles IPv4 and IPv6
// transparently via Go's "tcp" network.
func (s *TcpServer) Listen(ip string, port int, ssl *SslCtx) error {
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &rpcerr.IOError{Op: "listen " + addr, Err: err}
	}
	if ssl != nil {
		ln = tls.NewListener(ln, ssl.serverConfig())
		s.ssl = ssl
	}
	s.listeners = append(s.listeners, ln)
	return nil
}

// Accept blocks until a connection arrives on any listener, or ctx is
// done. Each call starts one accept per listener and returns the first
// connection (or error) to arrive.
func (s *TcpServer) Accept(ctx context.Context) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, len(s.listeners))
	for _, ln := range s.listeners {
		go func(ln net.Listener) {
			conn, err := ln.Accept()
			select {
			case ch <- result{conn, err}:
			case <-ctx.Done():
				if conn != nil {
					conn.Close()
				}
			}
		}(ln)
	}
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, &rpcerr.IOError{Op: "accept", Err: r.err}
		}
		return r.conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting on every listener.
func (s *TcpServer) Close() error {
	var first error
	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Addrs returns every bound listener's address, for tests and for
// advertising to a service registry.
func (s *TcpServer) Addrs() []net.Addr {
	addrs := make([]net.Addr, len(s.listeners))
	for i, ln := range s.listeners {
		addrs[i] = ln.Addr()
	}
	return addrs
}

// DialTCP connects to addr, optionally performing a TLS client
// handshake (sslConnect in spec.md's naming) when ssl is non-nil.
func DialTCP(ctx context.Context, addr string, ssl *SslCtx) (net.Conn, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &rpcerr.IOError{Op: "dial " + addr, Err: err}
	}
	if ssl == nil {
		return conn, nil
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.Client(conn, ssl.clientConfig(host))
	if dl, ok := ctx.Deadline(); ok {
		_ = tlsConn.SetDeadline(dl)
	} else {
		_ = tlsConn.SetDeadline(time.Now().Add(10 * time.Second))
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		if err == rpcerr.ErrCertificateNotAccepted {
			return nil, err
		}
		return nil, &rpcerr.IOError{Op: "tls handshake", Err: err}
	}
	_ = tlsConn.SetDeadline(time.Time{})
	return tlsConn, nil
}
