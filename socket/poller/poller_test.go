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

package poller_test

import (
	"net"
	"testing"
	"time"

	"github.com/nabbar/connengine/socket/poller"
)

// dialedPair returns one end of a live TCP connection plus a close func for
// the listener and the other end; NewPoller's backends (epoll on Linux,
// deadline-polling elsewhere) both need a real fd-backed net.Conn, not a
// net.Pipe, since the Linux backend reaches for syscall.Conn.
func dialedPair(t *testing.T) (client net.Conn, server net.Conn, closeAll func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server = <-accepted

	return client, server, func() {
		_ = client.Close()
		_ = server.Close()
		_ = ln.Close()
	}
}

func TestPollerReportsReadable(t *testing.T) {
	p, err := poller.NewPoller()
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Close()

	client, server, closeAll := dialedPair(t)
	defer closeAll()

	if err := p.Add(1, server, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := client.Write([]byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := p.Wait(50 * time.Millisecond)
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		for _, ev := range events {
			if ev.ID == 1 && ev.Kind == poller.Readable {
				return
			}
		}
	}
	t.Fatal("timed out waiting for a Readable event on id 1")
}

func TestPollerSetWritableAndRemove(t *testing.T) {
	p, err := poller.NewPoller()
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Close()

	_, server, closeAll := dialedPair(t)
	defer closeAll()

	if err := p.Add(7, server, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.SetWritable(7, true); err != nil {
		t.Fatalf("SetWritable: %v", err)
	}

	p.Remove(7)

	// Removing an unknown id must be a no-op, not an error or panic.
	p.Remove(7)
}
