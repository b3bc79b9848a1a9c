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
	"io"

	"github.com/google/uuid"

	"github.com/nabbar/connengine/header"
)

// ServerRequest is the façade the delegate sees for one parsed HTTP
// request, per spec.md §4.7.
type ServerRequest struct {
	// TraceID correlates this request across log lines, independent of
	// anything on the wire.
	TraceID uuid.UUID

	Method     string
	URL        string
	HTTPMajor  int
	HTTPMinor  int
	Headers    *header.Container
	RemoteAddr string

	body *bodyReader
}

// Proto formats the HTTP version the way it appeared on the request line,
// e.g. "HTTP/1.1".
func (r *ServerRequest) Proto() string {
	return fmt.Sprintf("HTTP/%d.%d", r.HTTPMajor, r.HTTPMinor)
}

// Body returns a reader over the request body. Reads block the caller's
// own goroutine until bytes arrive from the wire or the body completes;
// they never block the connection's I/O goroutine, per spec.md §9.
func (r *ServerRequest) Body() io.Reader {
	return r.body
}
