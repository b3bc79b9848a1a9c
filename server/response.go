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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nabbar/connengine/buffer"
	"github.com/nabbar/connengine/header"
	"github.com/nabbar/connengine/status"
)

// gmtDateFormat is the wire format spec.md §6 names: "EEE, dd MMM yyyy
// HH:mm:ss GMT" in Java's notation, Go's reference-time equivalent below.
const gmtDateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

func gmtNow() string {
	return time.Now().UTC().Format(gmtDateFormat)
}

// ServerResponse is the façade the delegate writes to, per spec.md §4.7.
// End() flushes the status line, headers and buffered body, then applies
// the keep-alive/close/upgrade connection-header policy and tells the
// owning HTTPProcessor how to proceed.
type ServerResponse struct {
	Status  int
	Headers *header.Container

	proc      *HTTPProcessor
	body      *buffer.List
	flushed   bool
	upgrading bool
}

func newServerResponse(p *HTTPProcessor) *ServerResponse {
	r := &ServerResponse{proc: p}
	r.reset()
	return r
}

// reset clears buffer, headers, status and the flushed flag for reuse on
// the next keep-alive request, per spec.md §4.7's ServerResponse.reset().
func (r *ServerResponse) reset() {
	r.Status = status.Unknown
	r.Headers = header.New()
	r.body = buffer.New()
	r.flushed = false
	r.upgrading = false
}

// WriteHeader sets the status code to be used on End.
func (r *ServerResponse) WriteHeader(code int) {
	r.Status = code
}

// Write appends b to the buffered response body.
func (r *ServerResponse) Write(b []byte) (int, error) {
	r.body.Append(b)
	return len(b), nil
}

// Upgrade attempts the protocol upgrade negotiation of spec.md §4.9 against
// reg, using the request's Upgrade header. On success the connection's
// Processor is swapped to the factory's replacement and End is called
// automatically (the 101 response is flushed but the socket is not
// closed); on failure a 400/404 is flushed and the connection is closed.
// Returns the negotiated protocol token on success.
func (r *ServerResponse) Upgrade(reg *UpgradeRegistry) (string, error) {
	p := r.proc
	p.mu.Lock()
	req := p.req
	p.mu.Unlock()

	upgradeHeader := req.Headers.GetFirst("Upgrade")
	if upgradeHeader == "" {
		r.writeErrorAndClose(400, "missing Upgrade header")
		return "", ErrUpgradeNoHeader
	}

	tokens := strings.Split(upgradeHeader, ",")
	token, factory, ok := reg.lookup(tokens)
	if !ok {
		r.writeErrorAndClose(404, "no registered protocol matched: "+upgradeHeader)
		return "", ErrUpgradeNoMatch
	}

	newProc, respBody := factory(p.conn, req, r)
	if newProc == nil {
		r.writeErrorAndClose(400, "upgrade factory declined the request")
		return "", ErrUpgradeDeclined
	}

	r.upgrading = true
	r.Status = 101
	r.Headers.Set("Upgrade", []string{token})
	r.Headers.Set("Connection", []string{"Upgrade"})
	if respBody != nil {
		_, _ = r.Write(respBody)
	}

	p.mu.Lock()
	p.inProgress.Store(false)
	p.mu.Unlock()

	p.conn.SetProcessor(newProc)
	r.End()
	return token, nil
}

func (r *ServerResponse) writeErrorAndClose(code int, msg string) {
	r.proc.mu.Lock()
	r.proc.keepAlive.ClientRequested = false
	r.proc.mu.Unlock()

	r.Status = code
	r.Headers.Set("Content-Type", []string{"text/plain; charset=utf-8"})
	_, _ = r.Write([]byte(msg))
	r.End()
}

// End flushes the status line, headers and buffered body, sets the
// Connection/Keep-Alive headers per the active policy, and transitions the
// owning HTTPProcessor to reset (keep-alive), done (close), or leaves the
// connection open with its new Processor (upgrade), per spec.md §4.7/§4.9.
func (r *ServerResponse) End() {
	p := r.proc
	p.mu.Lock()
	if r.flushed {
		p.mu.Unlock()
		return
	}
	r.flushed = true

	r.Headers.Set("Date", []string{gmtNow()})
	if !r.Headers.Has("Content-Length") && !r.upgrading {
		r.Headers.Set("Content-Length", []string{strconv.Itoa(r.body.Count())})
	}

	keepAlive := false
	if r.upgrading {
		// no connection headers touched beyond what Upgrade already set.
	} else {
		keepAlive = p.keepAlive.ClientRequested && p.keepAlive.RequestsRemaining > 0
		if keepAlive {
			p.keepAlive.RequestsRemaining--
			r.Headers.Set("Connection", []string{"Keep-Alive"})
			r.Headers.Set("Keep-Alive", []string{fmt.Sprintf("timeout=%d, max=%d",
				int(p.cfg.KeepAliveTimeout.Seconds()), p.keepAlive.RequestsRemaining)})
		} else {
			r.Headers.Set("Connection", []string{"Close"})
		}
	}

	var sb strings.Builder
	sb.WriteString("HTTP/1.1 ")
	sb.WriteString(status.Line(r.Status))
	sb.WriteString("\r\n")
	_ = r.Headers.WriteTo(&sb)
	sb.WriteString("\r\n")

	p.keepAlive.IdleDeadline = time.Now().Add(p.cfg.KeepAliveTimeout)
	if !r.upgrading {
		p.inProgress.Store(false)
	}

	if !r.upgrading && keepAlive {
		p.state = stateReset
	} else if !r.upgrading {
		p.state = stateDone
	}
	closeAfter := !r.upgrading && !keepAlive
	p.mu.Unlock()

	p.conn.Write([]byte(sb.String()))
	if r.body.Count() > 0 {
		p.conn.Write(r.body.Snapshot())
	}

	if closeAfter {
		p.conn.PrepareToClose()
	}
}
