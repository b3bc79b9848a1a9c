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
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nabbar/connengine/httpparse"
	"github.com/nabbar/connengine/socket"
	"github.com/nabbar/connengine/status"
)

// Conn is the write surface HTTPProcessor holds onto its owning
// socket.Handler, per spec.md §9's "pass the handler's write surface as a
// small trait object captured by the processor" (avoiding a strong
// handler↔processor reference cycle). *socket.Handler satisfies this.
type Conn interface {
	Write(b []byte)
	PrepareToClose()
	SetProcessor(p socket.Processor)
}

type processorState uint8

const (
	stateInitial processorState = iota
	stateReset
	stateHeadersParsed
	stateDone
)

type keepAliveState struct {
	ClientRequested   bool
	RequestsRemaining int
	IdleDeadline      time.Time
}

// HTTPProcessor drives HTTPParserAdapter, dispatches to the Delegate once
// headers are parsed, and frames the response, per spec.md §4.7. It
// implements socket.Processor so a socket.Handler can host it directly.
type HTTPProcessor struct {
	cfg        HTTPProcessorConfig
	conn       Conn
	remoteAddr string
	delegate   Delegate

	parser *httpparse.Adapter

	mu        sync.Mutex
	state     processorState
	keepAlive keepAliveState
	sizeAccum int64

	req       *ServerRequest
	resp      *ServerResponse
	bodyRdr   *bodyReader
	bodyEnded bool

	inProgress atomic.Bool
}

var _ socket.Processor = (*HTTPProcessor)(nil)

// NewHTTPProcessor builds an HTTPProcessor bound to conn (the accepting
// socket.Handler), ready to drive one connection's requests against
// delegate.
func NewHTTPProcessor(conn Conn, remoteAddr string, delegate Delegate, cfg HTTPProcessorConfig) *HTTPProcessor {
	cfg.setDefaults()
	p := &HTTPProcessor{
		cfg:        cfg,
		conn:       conn,
		remoteAddr: remoteAddr,
		delegate:   delegate,
		parser:     httpparse.New(httpparse.ModeRequest, false),
		state:      stateInitial,
	}
	// A freshly accepted connection gets a full keep-alive grace period
	// before its first request must arrive; otherwise a zero IdleDeadline
	// (spec.md §3's "zero meaning already eligible") would make it sweepable
	// the instant the idle check next runs.
	p.keepAlive.IdleDeadline = time.Now().Add(cfg.KeepAliveTimeout)
	// RequestsRemaining budgets the whole connection's lifetime, not a
	// single request, so it is seeded once here and only ever decremented
	// by ServerResponse.End — beginNewMessage must never touch it.
	p.keepAlive.RequestsRemaining = cfg.MaxKeepAliveRequests
	return p
}

// Process implements socket.Processor, per spec.md §4.7's state machine.
func (p *HTTPProcessor) Process(buf []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateDone {
		return false
	}

	if p.state == stateReset {
		p.beginNewMessage()
	}

	if p.cfg.RequestSizeLimit > 0 {
		p.sizeAccum += int64(len(buf))
		if p.sizeAccum > p.cfg.RequestSizeLimit {
			p.rejectLocked(p.cfg.SizeLimitStatus, p.cfg.SizeLimitBody)
			return true
		}
	}

	consumed, _ := p.parser.Execute(buf)
	st := p.parser.Status(consumed, len(buf))

	if p.state == stateInitial && (st.State == httpparse.StateHeadersComplete || st.State == httpparse.StateMessageComplete) {
		p.onHeadersCompleteLocked(st)
	}

	if p.state == stateHeadersParsed {
		p.drainBodyLocked()
		if st.State == httpparse.StateMessageComplete && !p.bodyEnded {
			p.bodyRdr.closeWithErr(nil)
			p.bodyEnded = true
		}
	}

	if st.Error == httpparse.ErrParsedLessThanRead && p.state == stateInitial {
		p.rejectLocked(400, []byte("Bad Request"))
	}

	return true
}

// beginNewMessage clears per-request state so a reused (keep-alive)
// connection can parse its next request.
func (p *HTTPProcessor) beginNewMessage() {
	p.parser.Reset()
	p.state = stateInitial
	p.sizeAccum = 0
	p.bodyEnded = false
	p.req = nil
	p.bodyRdr = nil
}

func (p *HTTPProcessor) onHeadersCompleteLocked(st httpparse.ParserStatus) {
	p.state = stateHeadersParsed
	p.keepAlive.ClientRequested = st.KeepAlive
	p.inProgress.Store(true)

	p.bodyRdr = newBodyReader()
	p.req = &ServerRequest{
		TraceID:    uuid.New(),
		Method:     p.parser.Method,
		URL:        p.parser.URLString,
		HTTPMajor:  p.parser.HTTPMajor,
		HTTPMinor:  p.parser.HTTPMinor,
		Headers:    p.parser.Headers,
		RemoteAddr: p.remoteAddr,
		body:       p.bodyRdr,
	}

	if p.resp == nil {
		p.resp = newServerResponse(p)
	} else {
		p.resp.reset()
	}

	req, resp := p.req, p.resp
	go p.delegate.ServeHTTP(req, resp)
}

func (p *HTTPProcessor) drainBodyLocked() {
	n := p.parser.Body.Remaining()
	if n == 0 {
		return
	}
	chunk := make([]byte, n)
	p.parser.Body.Fill(chunk)
	p.bodyRdr.push(chunk)
}

// rejectLocked writes a minimal error response directly (bypassing
// ServerResponse, since headers may not yet exist) and closes the
// connection, per spec.md §7's "Request too large"/"Protocol errors"
// handling.
func (p *HTTPProcessor) rejectLocked(code int, body []byte) {
	p.state = stateDone
	p.inProgress.Store(false)
	if p.bodyRdr != nil && !p.bodyEnded {
		p.bodyRdr.closeWithErr(io.ErrUnexpectedEOF)
		p.bodyEnded = true
	}

	msg := "HTTP/1.1 " + status.Line(code) + "\r\n" +
		"Connection: Close\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"Date: " + gmtNow() + "\r\n\r\n"

	conn := p.conn
	go func() {
		conn.Write([]byte(msg))
		conn.Write(body)
		conn.PrepareToClose()
	}()
}

// InProgress implements socket.Processor.
func (p *HTTPProcessor) InProgress() bool {
	return p.inProgress.Load()
}

// KeepAliveUntil implements socket.Processor.
func (p *HTTPProcessor) KeepAliveUntil() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keepAlive.IdleDeadline
}

// SocketClosed implements socket.Processor: wakes any in-flight body reader
// with zero bytes rather than letting the delegate block forever, per
// spec.md §9's cancellation note.
func (p *HTTPProcessor) SocketClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bodyRdr != nil && !p.bodyEnded {
		p.bodyRdr.closeWithErr(io.ErrUnexpectedEOF)
		p.bodyEnded = true
	}
	p.state = stateDone
	p.inProgress.Store(false)
}
