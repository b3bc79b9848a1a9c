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

package server

import (
	"io"
	"sync"
)

// bodyReader is the "pseudo-asynchronous body reader" of spec.md §9: bytes
// arrive on the I/O goroutine via push as the HTTP parser advances, while
// the delegate's own goroutine drains them through Read, blocking only
// itself (never the I/O thread) until more bytes arrive or the request
// closes.
type bodyReader struct {
	mu     sync.Mutex
	cond   *sync.Cond
	chunks [][]byte
	cur    []byte
	closed bool
	err    error
}

func newBodyReader() *bodyReader {
	b := &bodyReader{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// push hands the reader another chunk of body bytes. Safe to call from the
// I/O goroutine while Read runs concurrently on the delegate's goroutine.
func (b *bodyReader) push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	b.chunks = append(b.chunks, chunk)
	b.cond.Signal()
	b.mu.Unlock()
}

// closeWithErr marks the body complete. err, if non-nil, is returned by the
// next Read once buffered chunks are drained; otherwise Read returns
// io.EOF, matching spec.md §9's "wake the reader with zero bytes" on a
// socket closing mid-body.
func (b *bodyReader) closeWithErr(err error) {
	b.mu.Lock()
	b.closed = true
	b.err = err
	b.cond.Signal()
	b.mu.Unlock()
}

// Read implements io.Reader, blocking the caller's goroutine (not the I/O
// goroutine) until a chunk is available, the body is closed, or the
// process is torn down.
func (b *bodyReader) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.cur) == 0 {
		if len(b.chunks) > 0 {
			b.cur, b.chunks = b.chunks[0], b.chunks[1:]
			break
		}
		if b.closed {
			if b.err != nil {
				return 0, b.err
			}
			return 0, io.EOF
		}
		b.cond.Wait()
	}

	n := copy(p, b.cur)
	b.cur = b.cur[n:]
	return n, nil
}
