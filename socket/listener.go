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

package socket

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/nabbar/connengine/logger"
	"github.com/nabbar/connengine/socket/config"
)

// ProcessorFactory builds the Processor for one freshly accepted
// connection; the server wires one per Listener (an HTTP one, or a
// FastCGI one), per spec.md's "server variants differ only in which
// Processor they construct" redesign note.
type ProcessorFactory func(conn net.Conn) Processor

// Listener is the accept-loop half of the connection engine, per
// spec.md §4.10.
type Listener struct {
	cfg     config.Server
	factory ProcessorFactory
	manager *Manager
	log     logger.Logger

	ln      net.Listener
	stopped atomic.Bool
}

// NewListener binds cfg.Address over cfg.Network without yet accepting.
func NewListener(cfg config.Server, factory ProcessorFactory, manager *Manager, log logger.Logger) (*Listener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}

	// net.ListenConfig exposes no backlog setting, so the listen backlog is
	// the Go runtime's own choice on every GOOS (on Linux, the kernel's
	// net.core.somaxconn); no fixed backlog such as 511 is applied.
	lc := net.ListenConfig{}

	ln, err := lc.Listen(context.Background(), cfg.Network.String(), cfg.Address)
	if err != nil {
		return nil, err
	}

	return &Listener{cfg: cfg, factory: factory, manager: manager, log: log, ln: ln}, nil
}

// Serve accepts clients indefinitely, handing each to manager.Accept
// behind a freshly built Processor. It retries transient accept errors
// and exits cleanly once Stop has been called.
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.stopped.Load() {
				return nil
			}
			if isTemporary(err) {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			l.log.LogError("accept failed", err)
			continue
		}

		proc := l.factory(conn)
		l.manager.Accept(conn, proc)
	}
}

func isTemporary(err error) bool {
	type temporary interface{ Temporary() bool }
	te, ok := err.(temporary)
	return ok && te.Temporary()
}

// Stop closes the listening socket; any in-flight Accept returns an error
// that Serve recognizes via l.stopped and exits on.
func (l *Listener) Stop() error {
	l.stopped.Store(true)
	return l.ln.Close()
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}
