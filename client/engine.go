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

package client

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"

	"github.com/nabbar/connengine/httpparse"
)

// ErrTooManyRedirects is returned when more than o.MaxRedirects hops were
// required to reach a non-redirect status, per spec.md §4.11 step 6.
var ErrTooManyRedirects = errors.New("client: stopped after too many redirects")

// Get issues a GET request to rawURL and blocks for the final response,
// following redirects per spec.md §4.11.
func Get(ctx context.Context, rawURL string, o Options) (*Response, error) {
	o.Method = "GET"
	return Do(ctx, rawURL, o, nil)
}

// Do builds and sends one request to rawURL (an options-only send uses
// DoOptions instead), following redirects and skipping interim
// 100/101 preambles, per spec.md §4.11.
func Do(ctx context.Context, rawURL string, o Options, body []byte) (*Response, error) {
	o.setDefaults()

	req, err := newRequestFromURL(rawURL, body, o)
	if err != nil {
		return nil, err
	}
	return send(ctx, req, o)
}

// DoOptions builds a request purely from an Options record (no base URL
// string), per spec.md §4.11's options-record constructor.
func DoOptions(ctx context.Context, o Options, body []byte) (*Response, error) {
	o.setDefaults()

	req, err := newRequestFromOptions(o, body)
	if err != nil {
		return nil, err
	}
	return send(ctx, req, o)
}

// SendAsync mirrors spec.md §4.11's "completion callback taking Response?"
// shape for callers that want the non-blocking form; it is a thin goroutine
// wrapper over Do.
func SendAsync(ctx context.Context, rawURL string, o Options, body []byte, cb func(*Response, error)) {
	go func() {
		resp, err := Do(ctx, rawURL, o, body)
		cb(resp, err)
	}()
}

func send(ctx context.Context, req *outgoingRequest, o Options) (*Response, error) {
	redirects := 0
	for {
		resp, err := roundTrip(ctx, req, o)
		if err != nil {
			return nil, err
		}

		if !isRedirect(resp.StatusCode) {
			return resp, nil
		}

		loc := resp.Headers.GetFirst("Location")
		if loc == "" {
			return resp, nil
		}

		if redirects >= o.MaxRedirects {
			return nil, ErrTooManyRedirects
		}
		redirects++

		next, err := req.URL.Parse(loc)
		if err != nil {
			return resp, nil
		}

		// Between hops, reset response buffers and rewind the write buffer,
		// per spec.md §4.11 step 6.
		req.URL = next
		req.Headers.Remove("Content-Length")
		if resp.StatusCode == 303 {
			req.Method = "GET"
			req.Body.Reset()
		} else {
			req.Body.Rewind()
		}
		req.Headers.Set("Host", []string{req.URL.Host})
		req.applyMethodSemantics(o.CloseConnection)

		o.Log.Debugf("following redirect to %s (method now %s)", redactedURL(req.URL), req.Method)
	}
}

func isRedirect(code int) bool {
	switch code {
	case 301, 302, 303, 307, 308:
		return true
	default:
		return false
	}
}

// roundTrip performs one dial/write/read cycle: no redirect handling, no
// hop bookkeeping.
func roundTrip(ctx context.Context, req *outgoingRequest, o Options) (*Response, error) {
	conn, err := dial(ctx, req.URL, o)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var sb strings.Builder
	req.writeTo(&sb)
	if _, err := conn.Write([]byte(sb.String())); err != nil {
		return nil, err
	}
	req.Body.Rewind()
	if req.Body.Remaining() > 0 {
		if _, err := req.Body.WriteTo(conn); err != nil {
			return nil, err
		}
	}

	skipBody := req.Method == "HEAD"
	parser, err := readFinalResponse(conn, skipBody)
	if err != nil {
		return nil, err
	}

	var bodyBuf bytes.Buffer
	parser.Body.Rewind()
	parser.Body.FillAll(&bodyBuf)

	return &Response{
		StatusCode: parser.StatusCode,
		Reason:     parser.Reason,
		HTTPMajor:  parser.HTTPMajor,
		HTTPMinor:  parser.HTTPMinor,
		Headers:    parser.Headers,
		Body:       bodyBuf.Bytes(),
	}, nil
}

// readFinalResponse reads response messages off conn, skipping any interim
// 100 Continue / 101 Switching Protocols preamble, and returns the parser
// state once a final status line's message completes, per spec.md §4.11
// step 5.
func readFinalResponse(conn net.Conn, skipBody bool) (*httpparse.Adapter, error) {
	parser := httpparse.New(httpparse.ModeResponse, skipBody)

	var pending []byte
	scratch := make([]byte, 4096)
	firstChunk := true

	for {
		var data []byte
		if len(pending) > 0 {
			data, pending = pending, nil
		} else {
			n, err := conn.Read(scratch)
			if n == 0 && err != nil {
				return nil, err
			}
			data = append([]byte(nil), scratch[:n]...)
			if firstChunk {
				data = rewriteHTTP2Prefix(data)
				firstChunk = false
			}
		}

		consumed, _ := parser.Execute(data)
		st := parser.Status(consumed, len(data))
		if consumed < len(data) {
			pending = append(pending, data[consumed:]...)
		}

		if st.State != httpparse.StateMessageComplete {
			continue
		}

		if parser.StatusCode == 100 || parser.StatusCode == 101 {
			parser.Reset()
			continue
		}

		return parser, nil
	}
}

// rewriteHTTP2Prefix applies spec.md §4.11 step 7: an "HTTP/2 " status-line
// prefix (HTTP/2's textual status form, with no minor version) is rewritten
// to "HTTP/2.0 " before the HTTP/1.x parser sees it.
func rewriteHTTP2Prefix(data []byte) []byte {
	const from = "HTTP/2 "
	const to = "HTTP/2.0 "
	if !bytes.HasPrefix(data, []byte(from)) {
		return data
	}
	out := make([]byte, 0, len(data)+len(to)-len(from))
	out = append(out, to...)
	out = append(out, data[len(from):]...)
	return out
}
