package socket_test

import (
	"net"
	"testing"
	"time"

	"github.com/nabbar/connengine/network/protocol"
	"github.com/nabbar/connengine/socket"
	"github.com/nabbar/connengine/socket/config"
)

// echoProcessor writes back whatever it receives directly on the accepted
// conn, never going InProgress, so the idle sweep is free to reclaim it
// once its KeepAliveUntil passes.
type echoProcessor struct {
	conn           net.Conn
	keepAliveUntil time.Time
}

func (p *echoProcessor) Process(buf []byte) bool {
	_, _ = p.conn.Write(buf)
	return true
}
func (p *echoProcessor) InProgress() bool          { return false }
func (p *echoProcessor) KeepAliveUntil() time.Time { return p.keepAliveUntil }
func (p *echoProcessor) SocketClosed()             {}

func TestListenerAndManagerEchoRoundTrip(t *testing.T) {
	mgr, err := socket.NewManager(socket.ManagerConfig{Shards: 1, PollTimeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer mgr.Stop()

	factory := func(conn net.Conn) socket.Processor {
		return &echoProcessor{conn: conn, keepAliveUntil: time.Now().Add(time.Hour)}
	}

	ln, err := socket.NewListener(config.Server{Network: protocol.NetworkTCP, Address: "127.0.0.1:0"}, factory, mgr, nil)
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer ln.Stop()

	go ln.Serve()
	go mgr.RunShard(0)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4)
	if _, err := conn.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("echoed = %q, want %q", buf, "ping")
	}
}
