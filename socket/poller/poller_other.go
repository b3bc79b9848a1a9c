//go:build !linux

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

package poller

import (
	"sync"
	"time"
)

// netPoller backs Poller on every non-Linux GOOS without any raw fd access:
// Wait simply reports every currently-registered id once per call, tagged
// Readable (and Writable, for ids registered as such). It pushes the
// "is it actually ready" decision down to the caller's own I/O call, which
// already uses a short deadline and treats a timeout as "not ready yet" —
// the same non-blocking-via-deadline idiom nabbar-golib's socket family
// uses on top of net.Conn, rather than a raw epoll/kqueue readiness peek
// (which net.Conn exposes no portable way to perform without either
// consuming bytes or reaching for per-OS syscalls).
type netPoller struct {
	mu      sync.Mutex
	ids     map[uint64]bool // id -> writable
	closed  chan struct{}
}

func newPoller() (Poller, error) {
	return &netPoller{
		ids:    make(map[uint64]bool),
		closed: make(chan struct{}),
	}, nil
}

func (p *netPoller) Add(id uint64, _ Waitable, writable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[id] = writable
	return nil
}

func (p *netPoller) SetWritable(id uint64, writable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.ids[id]; ok {
		p.ids[id] = writable
	}
	return nil
}

func (p *netPoller) Remove(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ids, id)
}

func (p *netPoller) Wait(timeout time.Duration) ([]Event, error) {
	select {
	case <-p.closed:
		return nil, nil
	case <-time.After(timeout):
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Event, 0, len(p.ids)*2)
	for id, writable := range p.ids {
		out = append(out, Event{ID: id, Kind: Readable})
		if writable {
			out = append(out, Event{ID: id, Kind: Writable})
		}
	}
	return out, nil
}

func (p *netPoller) Close() error {
	close(p.closed)
	return nil
}
