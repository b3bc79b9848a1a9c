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

// Package socket implements the connection-lifecycle primitives of
// spec.md §4.5, §4.6 and §4.10: SocketHandler (per-connection read/write
// buffering and close orchestration), ConnectionManager (accept, idle
// sweep, limits) and Listener (accept loop).
package socket

import "time"

// Processor is the capability every HTTP and FastCGI processor implements
// so SocketHandler can drive either behind one contract, per spec.md's
// "Dynamic method-dispatch-by-type" redesign note.
type Processor interface {
	// Process consumes as much of buf as it can. It returns true when the
	// whole buffer was accepted; false when the processor is backpressured
	// and the handler must retain buf and retry later.
	Process(buf []byte) bool

	// InProgress reports whether a request/response cycle is underway; the
	// idle sweep never evicts a handler whose processor is in progress.
	InProgress() bool

	// KeepAliveUntil returns the deadline after which an idle connection
	// (InProgress() == false) may be swept, the zero Time meaning "already
	// eligible".
	KeepAliveUntil() time.Time

	// SocketClosed notifies the processor that the underlying socket saw
	// EOF or is being torn down, so it can release any per-request state.
	SocketClosed()
}

// RejectResponse is used when ConnectionManager.Accept finds the
// connection_limit already reached: Accept writes Body to the socket
// verbatim and closes it immediately. Status is not written; no status
// line is framed from it.
type RejectResponse struct {
	Status int
	Body   []byte
}
