/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package socket

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/nabbar/connengine/buffer"
	"github.com/nabbar/connengine/logger"
)

// readProbeDeadline bounds each individual Read attempt inside drain, so a
// worker goroutine driven by the readiness loop can never block past its
// shard's tick even if the kernel's readiness signal was a false positive.
const readProbeDeadline = 5 * time.Millisecond

// Handler is SocketHandler: per-connection read/write buffering, upgrade,
// and close orchestration, per spec.md §4.5.
type Handler struct {
	ID   uint64
	Conn net.Conn
	Proc Processor
	Log  logger.Logger

	onWritableWatch func(writable bool)
	onClosed        func(id uint64)

	mu              sync.Mutex
	writeBuf        *buffer.List
	writeCursor     int
	preparingClose  bool
	closed          bool
	deferredReadBuf []byte
}

// NewHandler wraps conn with the buffering/close state machine described in
// spec.md §4.5. setWritable is called to subscribe/unsubscribe the
// connection for write readiness with the owning ConnectionManager's
// poller; onClosed notifies the manager to drop the handler from its map.
func NewHandler(id uint64, conn net.Conn, proc Processor, log logger.Logger, setWritable func(writable bool), onClosed func(id uint64)) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		ID:              id,
		Conn:            conn,
		Proc:            proc,
		Log:             log,
		onWritableWatch: setWritable,
		onClosed:        onClosed,
		writeBuf:        buffer.New(),
	}
}

// OnReadable drains the socket in a loop until a timeout
// (the "EAGAIN/EWOULDBLOCK" analogue for a net.Conn), EOF or a read error, dispatching
// each non-empty batch to Proc.Process. A processor that returns false
// leaves the batch in deferredReadBuf for the next call.
func (h *Handler) OnReadable() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	if h.retryDeferred() {
		return
	}

	scratch := buffer.GetScratch()
	defer buffer.PutScratch(scratch)

	for {
		_ = h.Conn.SetReadDeadline(time.Now().Add(readProbeDeadline))
		n, err := h.Conn.Read(scratch)

		if n > 0 {
			batch := make([]byte, n)
			copy(batch, scratch[:n])
			if !h.proc().Process(batch) {
				h.mu.Lock()
				h.deferredReadBuf = batch
				h.mu.Unlock()
				return
			}
		}

		if err != nil {
			if isTimeout(err) {
				return
			}
			if err == io.EOF {
				h.proc().SocketClosed()
				h.PrepareToClose()
				return
			}
			h.Log.LogError("socket read error", err)
			h.proc().SocketClosed()
			h.PrepareToClose()
			return
		}
	}
}

// proc returns the current Processor under lock, so a concurrent
// SetProcessor (an upgrade swap) is never observed half-written.
func (h *Handler) proc() Processor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Proc
}

// retryDeferred re-offers a buffer a prior Process call rejected. It
// returns true if a deferred buffer was present (whether or not it was
// consumed this time), signaling OnReadable to stop rather than also
// attempt a fresh read in the same call.
func (h *Handler) retryDeferred() bool {
	h.mu.Lock()
	buf := h.deferredReadBuf
	h.mu.Unlock()
	if buf == nil {
		return false
	}

	if h.proc().Process(buf) {
		h.mu.Lock()
		h.deferredReadBuf = nil
		h.mu.Unlock()
	}
	return true
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

// Write attempts an immediate write if the buffer is empty; otherwise (or
// on a partial write) the remainder is appended to the write buffer and a
// writable-readiness subscription is ensured, per spec.md §4.5.
func (h *Handler) Write(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(b) == 0 {
		return
	}

	if h.writeBuf.Remaining() == 0 {
		_ = h.Conn.SetWriteDeadline(time.Now().Add(readProbeDeadline))
		n, err := h.Conn.Write(b)
		if err == nil && n == len(b) {
			return
		}
		if n > 0 {
			b = b[n:]
		}
		if err != nil && !isTimeout(err) {
			h.Log.LogError("socket write error", err)
		}
	}

	h.writeBuf.Append(b)
	if h.onWritableWatch != nil {
		h.onWritableWatch(true)
	}
}

// OnWritable drains the write buffer via one socket write, advancing the
// cursor on a partial write, and closing once drained if PrepareToClose
// was already requested.
func (h *Handler) OnWritable() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	pending := h.writeBuf.Snapshot()
	h.mu.Unlock()

	if len(pending) == 0 {
		h.stopWritableWatch()
		return
	}

	_ = h.Conn.SetWriteDeadline(time.Now().Add(readProbeDeadline))
	n, err := h.Conn.Write(pending)

	h.mu.Lock()
	if n > 0 {
		h.writeBuf.Fill(make([]byte, n))
	}
	drained := h.writeBuf.Remaining() == 0
	if drained {
		h.writeBuf.Reset()
	}
	closeNow := drained && h.preparingClose
	h.mu.Unlock()

	if err != nil && !isTimeout(err) {
		h.Log.LogError("socket write error", err)
		h.Close()
		return
	}

	if drained {
		h.stopWritableWatch()
	}
	if closeNow {
		h.Close()
	}
}

func (h *Handler) stopWritableWatch() {
	if h.onWritableWatch != nil {
		h.onWritableWatch(false)
	}
}

// PrepareToClose closes immediately if the write buffer is already
// drained; otherwise it flags the handler for deferred close once
// OnWritable finishes draining it.
func (h *Handler) PrepareToClose() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	drained := h.writeBuf.Remaining() == 0
	h.preparingClose = true
	h.mu.Unlock()

	if drained {
		h.Close()
	}
}

// Close cancels readiness subscriptions, closes the socket, marks the
// processor inactive via SocketClosed, and notifies the owning manager.
func (h *Handler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.stopWritableWatch()
	_ = h.Conn.Close()
	h.proc().SocketClosed()

	if h.onClosed != nil {
		h.onClosed(h.ID)
	}
}

// Closed reports whether Close has run.
func (h *Handler) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// SetProcessor swaps the live Processor, per spec.md §4.9: on a successful
// protocol upgrade the outgoing Processor is marked inactive by the caller
// and every subsequent OnReadable batch is handed to the replacement
// instead, without tearing down the socket or its buffers.
func (h *Handler) SetProcessor(p Processor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.Proc = p
}
