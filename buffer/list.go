/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package buffer provides List, a chunked append-only byte buffer with a
// read cursor and rewind, used to accumulate bodies and wire frames that
// arrive in arbitrarily sized reads.
package buffer

import "io"

// Growable is anything that can receive the remainder of a List via Fill,
// e.g. *bytes.Buffer.
type Growable interface {
	Write(p []byte) (int, error)
}

// List is a chunked append-only byte buffer with a read cursor. Appended
// bytes are never mutated or compacted in place, so a Snapshot or an
// in-flight Fill is never invalidated by a concurrent Append from the same
// goroutine sequence.
type List struct {
	chunks [][]byte
	length int
	cursor int
}

// New returns an empty List.
func New() *List {
	return &List{}
}

// Append adds bytes to the end of the buffer. The slice is copied, so the
// caller's buffer may be reused immediately after Append returns.
func (l *List) Append(b []byte) {
	if len(b) == 0 {
		return
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	l.chunks = append(l.chunks, cp)
	l.length += len(cp)
}

// Count returns the total number of bytes ever appended (not the number
// remaining to be read).
func (l *List) Count() int {
	return l.length
}

// Cursor returns the current read offset.
func (l *List) Cursor() int {
	return l.cursor
}

// Remaining returns the number of unread bytes.
func (l *List) Remaining() int {
	return l.length - l.cursor
}

// Fill copies up to len(dst) bytes starting at the cursor into dst and
// advances the cursor by the number of bytes copied.
func (l *List) Fill(dst []byte) int {
	n := 0
	want := len(dst)
	if want == 0 || l.cursor >= l.length {
		return 0
	}

	skip := l.cursor
	for _, c := range l.chunks {
		if n >= want {
			break
		}
		if skip >= len(c) {
			skip -= len(c)
			continue
		}
		avail := c[skip:]
		skip = 0
		cpLen := len(avail)
		if cpLen > want-n {
			cpLen = want - n
		}
		copy(dst[n:], avail[:cpLen])
		n += cpLen
	}

	l.cursor += n
	return n
}

// FillAll copies all remaining bytes into dst (an io.Writer, typically a
// *bytes.Buffer) and advances the cursor to the end.
func (l *List) FillAll(dst Growable) int {
	total := 0
	skip := l.cursor
	for _, c := range l.chunks {
		if skip >= len(c) {
			skip -= len(c)
			continue
		}
		avail := c[skip:]
		skip = 0
		n, _ := dst.Write(avail)
		total += n
	}
	l.cursor = l.length
	return total
}

// Snapshot returns a copy of the unread remainder without advancing the
// cursor.
func (l *List) Snapshot() []byte {
	out := make([]byte, l.Remaining())
	skip := l.cursor
	pos := 0
	for _, c := range l.chunks {
		if skip >= len(c) {
			skip -= len(c)
			continue
		}
		avail := c[skip:]
		skip = 0
		pos += copy(out[pos:], avail)
	}
	return out
}

// Rewind resets the cursor to zero without clearing the buffered bytes, so
// a second full read sequence reproduces the first.
func (l *List) Rewind() {
	l.cursor = 0
}

// Reset clears all buffered bytes and the cursor.
func (l *List) Reset() {
	l.chunks = nil
	l.length = 0
	l.cursor = 0
}

// WriteTo drains the unread remainder to w, advancing the cursor. It
// satisfies io.WriterTo for callers that want to flush the buffer onto a
// socket or response writer directly.
func (l *List) WriteTo(w io.Writer) (int64, error) {
	var written int64
	skip := l.cursor
	for _, c := range l.chunks {
		if skip >= len(c) {
			skip -= len(c)
			continue
		}
		avail := c[skip:]
		skip = 0
		n, err := w.Write(avail)
		written += int64(n)
		l.cursor += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
