package socket_test

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nabbar/connengine/socket"
)

type stubProcessor struct {
	mu       sync.Mutex
	received [][]byte
	accept   bool
	closed   bool
}

func (p *stubProcessor) Process(buf []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.accept {
		return false
	}
	p.received = append(p.received, buf)
	return true
}

func (p *stubProcessor) InProgress() bool            { return false }
func (p *stubProcessor) KeepAliveUntil() time.Time   { return time.Time{} }
func (p *stubProcessor) SocketClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *stubProcessor) snapshot() ([][]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received, p.closed
}

func TestHandlerReadsIntoProcessor(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	proc := &stubProcessor{accept: true}
	h := socket.NewHandler(1, server, proc, nil, func(bool) {}, func(uint64) {})

	go client.Write([]byte("hello"))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.OnReadable()
		if received, _ := proc.snapshot(); len(received) > 0 {
			if string(received[0]) != "hello" {
				t.Fatalf("received = %q, want %q", received[0], "hello")
			}
			return
		}
	}
	t.Fatal("timed out waiting for OnReadable to deliver the write")
}

func TestHandlerWriteDeliversToPeer(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	proc := &stubProcessor{accept: true}
	var watchCalls []bool
	h := socket.NewHandler(1, server, proc, nil, func(w bool) {
		watchCalls = append(watchCalls, w)
	}, func(uint64) {})

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := client.Read(buf)
		readDone <- buf[:n]
	}()

	h.Write([]byte("world"))

	select {
	case got := <-readDone:
		if string(got) != "world" {
			t.Fatalf("client read %q, want %q", got, "world")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for write to reach client")
	}
}

func TestHandlerPrepareToCloseClosesImmediatelyWhenDrained(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	proc := &stubProcessor{accept: true}
	var closedID uint64
	h := socket.NewHandler(7, server, proc, nil, func(bool) {}, func(id uint64) {
		closedID = id
	})

	h.PrepareToClose()

	if !h.Closed() {
		t.Fatalf("expected handler to be closed")
	}
	if closedID != 7 {
		t.Fatalf("onClosed id = %d, want 7", closedID)
	}
	if _, closed := proc.snapshot(); !closed {
		t.Fatalf("expected processor to observe SocketClosed")
	}
}
