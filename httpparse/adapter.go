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

// Package httpparse implements HTTPParserAdapter: an incremental HTTP/1.x
// request and response parser that can suspend mid-message when its input
// is incomplete and resume on the next Execute call.
package httpparse

import (
	"strconv"
	"strings"

	"github.com/nabbar/connengine/buffer"
	"github.com/nabbar/connengine/header"
)

// Mode selects whether Adapter parses a request line or a status line.
type Mode uint8

const (
	ModeRequest Mode = iota
	ModeResponse
)

type phase uint8

const (
	phaseStartLine phase = iota
	phaseHeaders
	phaseBodyIdentity
	phaseBodyChunkSize
	phaseBodyChunkData
	phaseBodyChunkCRLF
	phaseBodyChunkTrailer
	phaseDone
)

// Adapter is the incremental HTTP/1.x parser. It is constructed once per
// connection and Reset between messages on a keep-alive connection.
type Adapter struct {
	mode     Mode
	skipBody bool

	ph phase

	// start line
	Method     string
	URLBytes   []byte
	URLString  string
	HTTPMajor  int
	HTTPMinor  int
	StatusCode int
	Reason     string

	Headers *header.Container
	Body    *buffer.List

	completed   bool
	headersDone bool

	pending []byte // unparsed leftover from a previous Execute (partial line)

	lastField    string
	lastValue    strings.Builder
	haveLast     bool

	contentLength  int64
	haveContentLen bool
	chunked        bool
	chunkRemain    int64

	connectionClose  bool
	connectionKeep   bool
	upgradeRequested bool
}

// New constructs an Adapter in the given mode. skipBody, when true, tells
// the adapter a HEAD response follows (no body is parsed even if
// Content-Length is present), per spec.md §4.3.
func New(mode Mode, skipBody bool) *Adapter {
	a := &Adapter{mode: mode, skipBody: skipBody}
	a.reinit()
	return a
}

func (a *Adapter) reinit() {
	a.ph = phaseStartLine
	a.Method = ""
	a.URLBytes = nil
	a.URLString = ""
	a.HTTPMajor = 0
	a.HTTPMinor = 0
	a.StatusCode = 0
	a.Reason = ""
	a.Headers = header.New()
	a.Body = buffer.New()
	a.completed = false
	a.headersDone = false
	a.pending = nil
	a.lastField = ""
	a.lastValue.Reset()
	a.haveLast = false
	a.contentLength = 0
	a.haveContentLen = false
	a.chunked = false
	a.chunkRemain = 0
	a.connectionClose = false
	a.connectionKeep = false
	a.upgradeRequested = false
}

// Reset reinitializes the adapter for the next message on the same
// connection (keep-alive reuse). The mode and skip-body flag carry over.
func (a *Adapter) Reset() {
	a.reinit()
}

// IsKeepAlive reports whether the most recently parsed message allows the
// connection to be reused, combining the HTTP version default with any
// explicit Connection header.
func (a *Adapter) IsKeepAlive() bool {
	if a.connectionClose {
		return false
	}
	if a.connectionKeep {
		return true
	}
	return a.HTTPMajor == 1 && a.HTTPMinor >= 1
}

func (a *Adapter) commitLastHeader() {
	if !a.haveLast {
		return
	}
	a.Headers.Append(a.lastField, a.lastValue.String())
	a.applyHeaderSemantics(a.lastField, a.lastValue.String())
	a.haveLast = false
	a.lastField = ""
	a.lastValue.Reset()
}

func (a *Adapter) applyHeaderSemantics(name, value string) {
	switch strings.ToLower(name) {
	case "content-length":
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			a.contentLength = n
			a.haveContentLen = true
		}
	case "transfer-encoding":
		if strings.Contains(strings.ToLower(value), "chunked") {
			a.chunked = true
		}
	case "connection":
		for _, tok := range strings.Split(value, ",") {
			switch strings.ToLower(strings.TrimSpace(tok)) {
			case "close":
				a.connectionClose = true
			case "keep-alive":
				a.connectionKeep = true
			case "upgrade":
				a.upgradeRequested = true
			}
		}
	}
}

// Execute feeds data to the parser and returns the number of bytes
// consumed plus whether an Upgrade was requested. Execute never fails: on
// malformed input it stops consuming and leaves State/Error (reachable via
// Status) describing the problem; it never panics across the caller's
// readiness loop.
func (a *Adapter) Execute(data []byte) (consumed int, upgrade bool) {
	buf := data
	prefixLen := 0
	if len(a.pending) > 0 {
		prefixLen = len(a.pending)
		buf = append(append([]byte{}, a.pending...), data...)
		a.pending = nil
	}
	// consumedOfNew reports how much of `data` (excluding any carried-over
	// pending prefix) has been consumed so far, clamped to zero: bytes spent
	// re-parsing a previous call's leftover are never charged to this call.
	consumedOfNew := func(bufOffset int) int {
		n := bufOffset - prefixLen
		if n < 0 {
			return 0
		}
		return n
	}

	offset := 0
	for {
		switch a.ph {
		case phaseStartLine:
			line, n, ok := readLine(buf[offset:])
			if !ok {
				a.pending = append(a.pending, buf[offset:]...)
				return len(data), a.upgradeRequested
			}
			offset += n
			if !a.parseStartLine(string(line)) {
				// malformed start line: stop, caller sees consumed < len
				return consumedOfNew(offset), false
			}
			a.ph = phaseHeaders

		case phaseHeaders:
			line, n, ok := readLine(buf[offset:])
			if !ok {
				a.pending = append(a.pending, buf[offset:]...)
				return len(data), a.upgradeRequested
			}
			offset += n

			if len(line) == 0 {
				a.commitLastHeader()
				a.onHeadersComplete()
				continue
			}

			if (line[0] == ' ' || line[0] == '\t') && a.haveLast {
				a.lastValue.WriteByte(' ')
				a.lastValue.WriteString(strings.TrimSpace(string(line)))
				continue
			}

			a.commitLastHeader()

			idx := indexByte(line, ':')
			if idx < 0 {
				// malformed header line
				return consumedOfNew(offset), false
			}
			a.lastField = strings.TrimSpace(string(line[:idx]))
			a.lastValue.Reset()
			a.lastValue.WriteString(strings.TrimSpace(string(line[idx+1:])))
			a.haveLast = true

		case phaseBodyIdentity:
			want := a.contentLength - int64(a.Body.Count())
			avail := int64(len(buf) - offset)
			take := want
			if take > avail {
				take = avail
			}
			if take > 0 {
				a.Body.Append(buf[offset : offset+int(take)])
				offset += int(take)
			}
			if int64(a.Body.Count()) >= a.contentLength {
				a.ph = phaseDone
				continue
			}
			return len(data), a.upgradeRequested

		case phaseBodyChunkSize:
			line, n, ok := readLine(buf[offset:])
			if !ok {
				a.pending = append(a.pending, buf[offset:]...)
				return len(data), a.upgradeRequested
			}
			offset += n
			sz := string(line)
			if i := indexByte([]byte(sz), ';'); i >= 0 {
				sz = sz[:i]
			}
			n64, err := strconv.ParseInt(strings.TrimSpace(sz), 16, 64)
			if err != nil {
				return consumedOfNew(offset), false
			}
			a.chunkRemain = n64
			if n64 == 0 {
				a.ph = phaseBodyChunkTrailer
			} else {
				a.ph = phaseBodyChunkData
			}

		case phaseBodyChunkData:
			avail := int64(len(buf) - offset)
			take := a.chunkRemain
			if take > avail {
				take = avail
			}
			if take > 0 {
				a.Body.Append(buf[offset : offset+int(take)])
				offset += int(take)
				a.chunkRemain -= take
			}
			if a.chunkRemain == 0 {
				a.ph = phaseBodyChunkCRLF
				continue
			}
			return len(data), a.upgradeRequested

		case phaseBodyChunkCRLF:
			_, n, ok := readLine(buf[offset:])
			if !ok {
				a.pending = append(a.pending, buf[offset:]...)
				return len(data), a.upgradeRequested
			}
			offset += n
			a.ph = phaseBodyChunkSize

		case phaseBodyChunkTrailer:
			line, n, ok := readLine(buf[offset:])
			if !ok {
				a.pending = append(a.pending, buf[offset:]...)
				return len(data), a.upgradeRequested
			}
			offset += n
			if len(line) == 0 {
				a.ph = phaseDone
				continue
			}
			// trailer header: consumed and discarded; trailers are not
			// added to the message's headers.

		case phaseDone:
			a.completed = true
			return consumedOfNew(offset), a.upgradeRequested
		}
	}
}

func (a *Adapter) parseStartLine(line string) bool {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return false
	}

	if a.mode == ModeRequest {
		a.Method = parts[0]
		a.URLBytes = []byte(parts[1])
		if major, minor, ok := parseVersion(parts[2]); ok {
			a.HTTPMajor, a.HTTPMinor = major, minor
		} else {
			return false
		}
	} else {
		if major, minor, ok := parseVersion(parts[0]); ok {
			a.HTTPMajor, a.HTTPMinor = major, minor
		} else {
			return false
		}
		code, err := strconv.Atoi(parts[1])
		if err != nil {
			return false
		}
		a.StatusCode = code
		if len(parts) == 3 {
			a.Reason = parts[2]
		}
	}
	return true
}

func parseVersion(tok string) (major, minor int, ok bool) {
	tok = strings.TrimPrefix(tok, "HTTP/")
	dot := indexByte([]byte(tok), '.')
	if dot < 0 {
		return 0, 0, false
	}
	maj, err1 := strconv.Atoi(tok[:dot])
	min, err2 := strconv.Atoi(tok[dot+1:])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return maj, min, true
}

// onHeadersComplete finalizes the URL string (NUL-terminator-safe, per
// spec.md §3) and decides which body-framing phase follows.
func (a *Adapter) onHeadersComplete() {
	if a.mode == ModeRequest {
		if i := indexByte(a.URLBytes, 0); i >= 0 {
			a.URLString = string(a.URLBytes[:i])
		} else {
			a.URLString = string(a.URLBytes)
		}
	}

	noBody := a.skipBody ||
		(a.mode == ModeRequest && a.Method == "HEAD") ||
		(a.mode == ModeResponse && (a.StatusCode/100 == 1 || a.StatusCode == 204 || a.StatusCode == 304))

	switch {
	case noBody:
		a.ph = phaseDone
	case a.chunked:
		a.ph = phaseBodyChunkSize
	case a.haveContentLen && a.contentLength > 0:
		a.ph = phaseBodyIdentity
	default:
		a.ph = phaseDone
	}

	a.headersDone = true
}

// Completed reports whether the current message reached message_complete.
func (a *Adapter) Completed() bool {
	return a.completed
}

// HasUpgrade reports whether the most recently parsed message carried a
// Connection: Upgrade token.
func (a *Adapter) HasUpgrade() bool {
	return a.upgradeRequested
}

// Status builds the ParserStatus the driver uses to decide what to do next,
// given the (consumed, len(data)) pair returned by Execute.
func (a *Adapter) Status(consumed, total int) ParserStatus {
	s := ParserStatus{
		KeepAlive: a.IsKeepAlive(),
		Upgrade:   a.upgradeRequested,
		BytesLeft: total - consumed,
	}

	switch {
	case a.completed:
		s.State = StateMessageComplete
	case a.headersDone:
		s.State = StateHeadersComplete
	default:
		s.State = StateInitial
	}

	if consumed < total && s.State != StateMessageComplete {
		s.Error = ErrParsedLessThanRead
	}

	return s
}

func readLine(b []byte) (line []byte, consumed int, ok bool) {
	for i := 0; i < len(b); i++ {
		if b[i] == '\n' {
			end := i
			if end > 0 && b[end-1] == '\r' {
				end--
			}
			return b[:end], i + 1, true
		}
	}
	return nil, 0, false
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
