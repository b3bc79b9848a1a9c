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

// Package server implements HTTPProcessor and UpgradeRegistry, spec.md
// §4.7 and §4.9: the HTTP-side Processor that drives HTTPParserAdapter,
// owns keep-alive policy, and frames responses, plus the process-wide
// protocol-upgrade negotiation the HTTPProcessor consults on request.
package server

// Delegate is the user-supplied request handler (spec.md's
// "ServerDelegate"), invoked once per request with a fully headers-parsed
// ServerRequest and a fresh ServerResponse. It is out of scope for this
// module to specify further (spec.md §1's "out of scope: external
// collaborators"); the signature here is the seam the engine calls through.
type Delegate interface {
	ServeHTTP(req *ServerRequest, resp *ServerResponse)
}

// DelegateFunc adapts a plain function to Delegate.
type DelegateFunc func(req *ServerRequest, resp *ServerResponse)

func (f DelegateFunc) ServeHTTP(req *ServerRequest, resp *ServerResponse) {
	f(req, resp)
}
