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

// Package client implements the outgoing HTTP engine of spec.md §4.11: a
// request builder that accepts either a plain URL or an options record,
// issues the request over a TCP or Unix-domain socket, skips interim
// 100/101 status lines, and follows redirects up to a configured limit.
package client

import (
	"time"

	"github.com/nabbar/connengine/logger"
)

// Options mirrors spec.md §4.11's options record: everything a caller may
// set instead of (or in addition to) a bare URL string.
type Options struct {
	Method string
	Scheme string
	Host   string
	Port   int
	Path   string
	Query  string

	Headers map[string][]string

	Username string
	Password string

	// MaxRedirects bounds how many 3xx hops Do follows before giving up.
	// Default 5.
	MaxRedirects int

	DisableSSLVerification bool

	// UseHTTP2 is recorded but does not change the wire transport: this
	// engine always speaks HTTP/1.x on the connection it opens. The engine
	// does not read this field: the HTTP/2 status-line rewrite
	// (spec.md §4.11 step 7) is applied to every response whether or not
	// it is set.
	UseHTTP2 bool

	// UnixSocketPath, when set, dials this Unix-domain socket instead of
	// resolving Host/Port over TCP, per spec.md §4.11's "optional
	// Unix-domain socket path".
	UnixSocketPath string

	// CloseConnection adds "Connection: close" to the outgoing request,
	// per spec.md §4.11 step 2.
	CloseConnection bool

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	Log logger.Logger
}

func (o *Options) setDefaults() {
	if o.Method == "" {
		o.Method = "GET"
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = 5
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.Log == nil {
		o.Log = logger.Discard()
	}
}
