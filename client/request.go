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
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"

	"github.com/nabbar/connengine/buffer"
	"github.com/nabbar/connengine/header"
)

// outgoingRequest is the fully-resolved, wire-ready shape of one request:
// target URL, headers and a buffered body, built from Options or a bare URL
// string per spec.md §4.11.
type outgoingRequest struct {
	Method  string
	URL     *url.URL
	Headers *header.Container
	Body    *buffer.List

	// username/password are carried separately from URL so the emitted
	// request line and any logging never re-derive them from u.User,
	// per spec.md §9's "canonicalize to an Authorization header and strip
	// credentials from the emitted URL" open-question resolution.
	username string
	password string
}

// newRequestFromURL builds an outgoingRequest from a bare URL string,
// applying o's method/body/headers on top.
func newRequestFromURL(rawURL string, body []byte, o Options) (*outgoingRequest, error) {
	o.setDefaults()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	username, password := o.Username, o.Password
	if u.User != nil {
		if username == "" {
			username = u.User.Username()
		}
		if password == "" {
			password, _ = u.User.Password()
		}
		u.User = nil
	}

	if host, err := idna.Lookup.ToASCII(u.Hostname()); err == nil && host != "" {
		if port := u.Port(); port != "" {
			u.Host = host + ":" + port
		} else {
			u.Host = host
		}
	}

	r := &outgoingRequest{
		Method:   strings.ToUpper(o.Method),
		URL:      u,
		Headers:  header.New(),
		Body:     buffer.New(),
		username: username,
		password: password,
	}
	r.applyHeaders(o.Headers)
	r.setBody(body)
	r.applyMethodSemantics(o.CloseConnection)
	return r, nil
}

// newRequestFromOptions builds an outgoingRequest entirely from an Options
// record (scheme/host/port/path), per spec.md §4.11's "options record"
// constructor.
func newRequestFromOptions(o Options, body []byte) (*outgoingRequest, error) {
	o.setDefaults()

	scheme := o.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host := o.Host
	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
		host = ascii
	}
	if o.Port != 0 {
		host = host + ":" + strconv.Itoa(o.Port)
	}

	u := &url.URL{Scheme: scheme, Host: host, Path: o.Path, RawQuery: o.Query}

	r := &outgoingRequest{
		Method:   strings.ToUpper(o.Method),
		URL:      u,
		Headers:  header.New(),
		Body:     buffer.New(),
		username: o.Username,
		password: o.Password,
	}
	r.applyHeaders(o.Headers)
	r.setBody(body)
	r.applyMethodSemantics(o.CloseConnection)
	return r, nil
}

func (r *outgoingRequest) applyHeaders(h map[string][]string) {
	for name, values := range h {
		r.Headers.Set(name, values)
	}
	if !r.Headers.Has("Host") {
		r.Headers.Set("Host", []string{r.URL.Host})
	}
}

func (r *outgoingRequest) setBody(body []byte) {
	if len(body) > 0 {
		r.Body.Append(body)
	}
}

// applyMethodSemantics implements spec.md §4.11 steps 1-4: method-specific
// body framing, the close-connection header, 100-continue suppression, and
// Basic Auth construction.
func (r *outgoingRequest) applyMethodSemantics(closeConnection bool) {
	switch r.Method {
	case "GET", "HEAD", "DELETE", "OPTIONS":
		// no body is declared for these verbs even if one was buffered.
	case "POST", "PUT", "PATCH":
		if !r.Headers.Has("Content-Length") {
			r.Headers.Set("Content-Length", []string{strconv.Itoa(r.Body.Count())})
		}
	default:
		// custom verb: still declare the body length if any was set.
		if r.Body.Count() > 0 && !r.Headers.Has("Content-Length") {
			r.Headers.Set("Content-Length", []string{strconv.Itoa(r.Body.Count())})
		}
	}

	if closeConnection {
		r.Headers.Set("Connection", []string{"close"})
	}

	if !r.Headers.Has("Expect") {
		r.Headers.Set("Expect", []string{""})
	}

	if r.username != "" || r.password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(r.username + ":" + r.password))
		r.Headers.Set("Authorization", []string{"Basic " + token})
	}
}

// writeTo formats the request line and header block this request will
// be sent with, in HTTP/1.1 wire form.
func (r *outgoingRequest) writeTo(sb *strings.Builder) {
	target := r.URL.Path
	if target == "" {
		target = "/"
	}
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	sb.WriteString(r.Method)
	sb.WriteString(" ")
	sb.WriteString(target)
	sb.WriteString(" HTTP/1.1\r\n")
	_ = r.Headers.WriteTo(sb)
	sb.WriteString("\r\n")
}

// redactedURL returns u.String() with any userinfo stripped, for logging,
// per spec.md §9's "stripped from URL for logs".
func redactedURL(u *url.URL) string {
	clean := *u
	clean.User = nil
	return clean.String()
}
