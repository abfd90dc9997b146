package transport

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/boilerlink/econetd/internal/econet/frame"
)

func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	c := New(client, zerolog.Nop())
	t.Cleanup(func() {
		c.Close()
		server.Close()
	})
	return c, server
}

func TestReceiveValidFrame(t *testing.T) {
	c, server := pipeConn(t)
	want := frame.Frame{Dest: 1, Src: 100, Func: 0x43, Payload: []byte{1, 2, 3}}
	raw, _ := frame.Encode(want)

	go server.Write(raw)

	got, err := c.Receive(time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.Func != want.Func || got.Dest != want.Dest {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestReceiveResyncsPastNoise(t *testing.T) {
	c, server := pipeConn(t)
	want := frame.Frame{Dest: 1, Src: 100, Func: 0x43, Payload: []byte{0xAA}}
	raw, _ := frame.Encode(want)

	go server.Write(append([]byte{0x00}, raw...))

	got, err := c.Receive(time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.Payload[0] != 0xAA {
		t.Fatalf("got %+v", got)
	}
}

func TestReceiveDiscardsCorruptedFrame(t *testing.T) {
	c, server := pipeConn(t)
	good := frame.Frame{Dest: 1, Src: 100, Func: 0x43, Payload: []byte{0x55}}
	bad, _ := frame.Encode(good)
	bad = append([]byte{}, bad...)
	bad[len(bad)-2] ^= 0xFF // corrupt CRC
	goodRaw, _ := frame.Encode(good)

	go server.Write(append(bad, goodRaw...))

	got, err := c.Receive(time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.Payload[0] != 0x55 {
		t.Fatalf("got %+v, want resynced good frame", got)
	}
}

func TestReceiveTimeout(t *testing.T) {
	c, _ := pipeConn(t)
	_, err := c.Receive(50 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestReceivePartialThenRest(t *testing.T) {
	c, server := pipeConn(t)
	want := frame.Frame{Dest: 1, Src: 100, Func: 0x43, Payload: []byte{9, 8, 7, 6}}
	raw, _ := frame.Encode(want)

	go func() {
		server.Write(raw[:4])
		time.Sleep(20 * time.Millisecond)
		server.Write(raw[4:])
	}()

	got, err := c.Receive(time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(got.Payload) != 4 || got.Payload[0] != 9 {
		t.Fatalf("got %+v", got)
	}
}

func TestSendClearsReassemblyBuffer(t *testing.T) {
	c, server := pipeConn(t)
	c.buf = []byte{0x68, 0x01} // stale partial frame from an aborted exchange

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 64)
		server.Read(buf)
	}()

	if err := c.Send(frame.Frame{Dest: 1, Src: 100, Func: 0x29}, time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}
	<-done
	if len(c.buf) != 0 {
		t.Fatalf("reassembly buffer not cleared: % X", c.buf)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c, _ := pipeConn(t)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := c.Send(frame.Frame{}, time.Second); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := c.Receive(time.Millisecond); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
