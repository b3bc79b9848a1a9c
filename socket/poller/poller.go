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

// Package poller abstracts the readiness loop described in spec.md §4.6: a
// bounded-timeout wait that reports which registered connections became
// readable, writable, or errored. Two backends exist: an epoll-backed one
// for Linux (poller_linux.go, built on golang.org/x/sys/unix) and a
// goroutine/channel-backed one for every other GOOS (poller_other.go),
// selected transparently by NewPoller.
package poller

import "time"

// Kind classifies one readiness Event.
type Kind uint8

const (
	Readable Kind = iota
	Writable
	HangupOrError
)

// Event reports that the connection registered under ID became ready.
type Event struct {
	ID   uint64
	Kind Kind
}

// Poller multiplexes readiness across many registered connections. It is
// safe for concurrent use by one waiter goroutine and any number of
// Add/Remove/SetWritable callers, matching the shard-worker model of
// spec.md §5 (a small pool of I/O threads, one Poller per shard).
type Poller interface {
	// Add registers conn under id for readability, and for writability too
	// iff writable is true.
	Add(id uint64, conn Waitable, writable bool) error

	// SetWritable toggles whether id's connection is watched for write
	// readiness, used by SocketHandler.write to start watching only once a
	// partial write has left bytes buffered, per spec.md §4.5.
	SetWritable(id uint64, writable bool) error

	// Remove unregisters id. It is a no-op if id is unknown.
	Remove(id uint64)

	// Wait blocks up to timeout for at least one event, returning whatever
	// occurred (possibly empty, on timeout).
	Wait(timeout time.Duration) ([]Event, error)

	// Close releases any resources held by the poller.
	Close() error
}

// Waitable is the subset of net.Conn a Poller backend needs: something
// whose readiness can be observed. net.Conn satisfies this directly; the
// goroutine-backed poller uses SetReadDeadline/SetWriteDeadline to poll
// without blocking forever, while the epoll-backed poller additionally
// requires the underlying file descriptor via syscall.Conn.
type Waitable interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// NewPoller returns the platform-appropriate backend.
func NewPoller() (Poller, error) {
	return newPoller()
}
