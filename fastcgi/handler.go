/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

package fastcgi

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/connengine/logger"
	"github.com/nabbar/connengine/socket"
)

// writeDeadline bounds each direct write to the FastCGI peer, the same
// short-deadline-per-syscall idiom socket.Handler uses for its own writes.
const writeDeadline = 5 * time.Second

// keepConnIdleTimeout is how long a connection kept open via
// FCGI_KEEP_CONN may sit between requests before the idle sweep is
// allowed to close it, matching HTTPProcessorConfig's default
// KeepAliveTimeout.
const keepConnIdleTimeout = 60 * time.Second

// dispatch is one primary request ready for the Delegate, captured while
// Handler.mu is held so the actual delegate call and socket writes can run
// outside the lock.
type dispatch struct {
	req      *Request
	extraIDs []uint16
	keepConn bool
}

// Handler drives a Processor from a live net.Conn instead of pre-decoded
// Records, implementing socket.Processor so a FastCGI responder can be
// served by a socket.Listener exactly like an HTTPProcessor, per spec.md
// §4.8. Unlike HTTPProcessor, Handler writes straight to the net.Conn it
// is handed by the ProcessorFactory rather than through a socket.Handler's
// buffered write queue: the factory runs before any socket.Handler exists
// to wrap the connection, so there is no write-buffering surface to defer
// to yet. This mirrors gophpeek-fcgx's Client, which also holds its
// net.Conn directly and calls conn.Write from the client side of the same
// protocol.
type Handler struct {
	conn     net.Conn
	delegate Delegate
	log      logger.Logger

	wmu sync.Mutex

	mu      sync.Mutex
	proc    *Processor
	pending []byte
	closed  bool

	inProgress     atomic.Bool
	keepAliveUntil time.Time
}

var _ socket.Processor = (*Handler)(nil)

// NewHandler returns a Handler bound to conn, ready to assemble FastCGI
// requests and dispatch each to delegate.
func NewHandler(conn net.Conn, delegate Delegate, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		conn:     conn,
		delegate: delegate,
		log:      log,
		proc:     NewProcessor(),
	}
}

// NewHandlerFactory adapts NewHandler into a socket.ProcessorFactory, so a
// socket.Listener can be configured to speak FastCGI to a delegate.
func NewHandlerFactory(delegate Delegate, log logger.Logger) socket.ProcessorFactory {
	return func(conn net.Conn) socket.Processor {
		return NewHandler(conn, delegate, log)
	}
}

// Process implements socket.Processor: it reassembles complete records out
// of accumulated bytes via ParseOne, feeds each into the embedded
// Processor, answers an unsupported role with END_REQUEST{UNKNOWN_ROLE}
// without tearing down the connection, and hands any fully assembled
// request off to serve.
func (h *Handler) Process(buf []byte) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}

	data := append(h.pending, buf...)
	h.pending = nil

	var rejections [][]byte
	var dispatches []dispatch
	terminal := false

loop:
	for {
		rec, rem, err := ParseOne(data)
		switch err {
		case nil:
			// fall through to Feed below
		case ErrBufferExhausted:
			break loop
		default:
			// ErrInvalidVersion / ErrInvalidType: the wire framing itself is
			// broken, so there is no record boundary left to resync on.
			h.closed = true
			terminal = true
			h.log.LogError("fastcgi protocol error", err)
			break loop
		}
		data = rem

		req, ferr := h.proc.Feed(rec)
		switch {
		case ferr == ErrUnsupportedRole:
			if rej, eerr := EncodeEndRequest(rec.RequestID, 0, StatusUnknownRole); eerr == nil {
				rejections = append(rejections, rej)
			}
			continue
		case ferr != nil:
			h.closed = true
			terminal = true
			h.log.LogError("fastcgi protocol error", ferr)
			break loop
		case req != nil:
			d := dispatch{req: req, extraIDs: h.proc.ExtraRequestIDs(), keepConn: req.KeepConn}
			if d.keepConn {
				// The client may pipeline a new BEGIN_REQUEST as soon as this
				// one's STDIN closes, without waiting for END_REQUEST, so the
				// connection needs a fresh Processor ready immediately.
				h.proc = NewProcessor()
			} else {
				h.closed = true
			}
			dispatches = append(dispatches, d)
			if h.closed {
				break loop
			}
		}
	}

	if !terminal && !h.closed {
		h.pending = data
	}
	if len(dispatches) > 0 {
		h.inProgress.Store(true)
	}
	h.mu.Unlock()

	for _, rej := range rejections {
		h.writeOrLog(rej)
	}
	for _, d := range dispatches {
		go h.serve(d)
	}
	if terminal {
		h.closeConn()
	}
	return true
}

// serve calls the delegate, frames its returned body as the primary
// request's response, writes it to the connection, flushes a
// CANT_MPX_CONN rejection for every request id multiplexed alongside the
// primary, and closes the connection unless the client asked to keep it
// open (BeginRequest's FCGI_KEEP_CONN flag).
func (h *Handler) serve(d dispatch) {
	body := h.delegate.ServeFastCGI(d.req)

	resp, err := EncodeResponse(d.req.RequestID, body)
	if err != nil {
		h.log.LogError("fastcgi encode response", err)
		h.closeConn()
		return
	}
	h.writeOrLog(resp)

	for _, id := range d.extraIDs {
		rej, err := EncodeRejection(id, StatusCantMpxConn)
		if err != nil {
			continue
		}
		h.writeOrLog(rej)
	}

	h.mu.Lock()
	h.inProgress.Store(false)
	h.keepAliveUntil = time.Now().Add(keepConnIdleTimeout)
	h.mu.Unlock()

	if !d.keepConn {
		h.closeConn()
	}
}

func (h *Handler) writeOrLog(b []byte) {
	h.wmu.Lock()
	defer h.wmu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if _, err := h.conn.Write(b); err != nil {
		h.log.LogError("fastcgi write error", err)
	}
}

func (h *Handler) closeConn() {
	_ = h.conn.Close()
}

// InProgress implements socket.Processor.
func (h *Handler) InProgress() bool {
	return h.inProgress.Load()
}

// KeepAliveUntil implements socket.Processor. The zero Time returned before
// any request has completed means "already eligible" under the
// socket.Processor contract.
func (h *Handler) KeepAliveUntil() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.keepAliveUntil
}

// SocketClosed implements socket.Processor.
func (h *Handler) SocketClosed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.inProgress.Store(false)
}
