package reactor

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/polyrpc/polyrpc/rpcerr"
)

func TestStreamBufferReadWrite(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sb := NewStreamBuffer(&IODevice{Conn: server})

	go func() {
		client.Write([]byte("hello"))
	}()

	buf := make([]byte, 5)
	n, err := sb.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q, want %q", buf[:n], "hello")
	}
}

func TestStreamBufferPrime(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sb := NewStreamBuffer(&IODevice{Conn: server})
	sb.Prime([]byte("abc"))

	buf := make([]byte, 3)
	n, err := sb.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "abc" {
		t.Fatalf("got %q, want %q", buf[:n], "abc")
	}
}

func TestIODeviceReadTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	dev := &IODevice{Conn: server, Timeout: 10 * time.Millisecond}
	_, err := dev.Read(make([]byte, 1))
	if !errors.Is(err, rpcerr.ErrIOTimeout) {
		t.Fatalf("got %v, want rpcerr.ErrIOTimeout", err)
	}
}

func TestSelectorReadiness(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sel := NewSelector()
	sb := NewStreamBuffer(&IODevice{Conn: server})
	h, ready := sel.Register(sb)

	events := make(chan Event, 1)
	ready.Connect(func(ev Event) { events <- ev })
	sel.Watch(h, make([]byte, 1), WaitInfinite)

	go func() {
		client.Write([]byte("x"))
	}()

	select {
	case ev := <-events:
		if ev.Timeout || ev.Err != nil {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if string(ev.Data) != "x" {
			t.Fatalf("got %q, want %q", ev.Data, "x")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for readiness event")
	}
}

func TestSelectorTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sel := NewSelector()
	sb := NewStreamBuffer(&IODevice{Conn: server})
	h, ready := sel.Register(sb)

	events := make(chan Event, 1)
	ready.Connect(func(ev Event) { events <- ev })
	sel.Watch(h, make([]byte, 1), 10*time.Millisecond)

	select {
	case ev := <-events:
		if !ev.Timeout {
			t.Fatalf("expected timeout event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timeout event")
	}
}
