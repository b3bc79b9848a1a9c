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
	"context"
	"crypto/tls"
	"net"
	"net/url"
)

// dial opens the transport for one request: a Unix-domain socket when
// o.UnixSocketPath is set, otherwise a TCP (or TLS, for "https") connection
// to u's host, per spec.md §4.11's "optional Unix-domain socket path".
func dial(ctx context.Context, u *url.URL, o Options) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: o.ConnectTimeout}

	if o.UnixSocketPath != "" {
		return dialer.DialContext(ctx, "unix", o.UnixSocketPath)
	}

	addr := u.Host
	if u.Port() == "" {
		if u.Scheme == "https" {
			addr = net.JoinHostPort(u.Hostname(), "443")
		} else {
			addr = net.JoinHostPort(u.Hostname(), "80")
		}
	}

	if u.Scheme == "https" {
		tlsCfg := &tls.Config{InsecureSkipVerify: o.DisableSSLVerification}
		return tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}
