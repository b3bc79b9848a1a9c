package server_test

import (
	"sync"
	"time"

	"github.com/nabbar/connengine/socket"
)

// fakeConn stands in for *socket.Handler in these tests: it records what
// HTTPProcessor writes and whether/what it was asked to swap its
// Processor to, without touching a real net.Conn.
type fakeConn struct {
	mu      sync.Mutex
	written []byte
	closed  bool
	newProc socket.Processor
}

func (f *fakeConn) Write(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, b...)
}

func (f *fakeConn) PrepareToClose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) SetProcessor(p socket.Processor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newProc = p
}

func (f *fakeConn) snapshot() (written []byte, closed bool, newProc socket.Processor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte{}, f.written...), f.closed, f.newProc
}

// stubUpgradeProcessor is the replacement Processor an upgrade factory
// hands back; it satisfies socket.Processor without doing anything, since
// these tests only check that the swap happened.
type stubUpgradeProcessor struct{}

func (stubUpgradeProcessor) Process(buf []byte) bool          { return true }
func (stubUpgradeProcessor) InProgress() bool                 { return true }
func (stubUpgradeProcessor) KeepAliveUntil() time.Time        { return time.Time{} }
func (stubUpgradeProcessor) SocketClosed()                    {}
