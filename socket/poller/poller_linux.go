//go:build linux

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
	"fmt"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller backs Poller on Linux with a real epoll instance. Each
// registered connection's raw fd is obtained once (via syscall.RawConn) and
// kept open for the lifetime of the registration; EpollCtl add/mod/del
// calls mirror Add/SetWritable/Remove.
type epollPoller struct {
	fd int

	mu   sync.Mutex
	fds  map[uint64]int // id -> raw fd
	events [128]unix.EpollEvent
}

func newPoller() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("poller: epoll_create1: %w", err)
	}
	return &epollPoller{fd: fd, fds: make(map[uint64]int)}, nil
}

func rawFD(conn Waitable) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, fmt.Errorf("poller: connection does not support syscall.Conn")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}

	var fd int
	err = raw.Control(func(f uintptr) {
		fd = int(f)
	})
	if err != nil {
		return 0, err
	}
	return fd, nil
}

func (p *epollPoller) Add(id uint64, conn Waitable, writable bool) error {
	fd, err := rawFD(conn)
	if err != nil {
		return err
	}

	ev := unix.EpollEvent{Fd: int32(fd), Events: unix.EPOLLIN}
	if writable {
		ev.Events |= unix.EPOLLOUT
	}

	p.mu.Lock()
	p.fds[id] = fd
	p.mu.Unlock()

	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) SetWritable(id uint64, writable bool) error {
	p.mu.Lock()
	fd, ok := p.fds[id]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("poller: unknown id %d", id)
	}

	ev := unix.EpollEvent{Fd: int32(fd), Events: unix.EPOLLIN}
	if writable {
		ev.Events |= unix.EPOLLOUT
	}
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) Remove(id uint64) {
	p.mu.Lock()
	fd, ok := p.fds[id]
	delete(p.fds, id)
	p.mu.Unlock()
	if !ok {
		return
	}
	_ = unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wait(timeout time.Duration) ([]Event, error) {
	n, err := unix.EpollWait(p.fd, p.events[:], int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		raw := p.events[i]
		id, ok := p.idForFD(int(raw.Fd))
		if !ok {
			continue
		}
		switch {
		case raw.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0:
			out = append(out, Event{ID: id, Kind: HangupOrError})
		case raw.Events&unix.EPOLLOUT != 0:
			out = append(out, Event{ID: id, Kind: Writable})
		case raw.Events&unix.EPOLLIN != 0:
			out = append(out, Event{ID: id, Kind: Readable})
		}
	}
	return out, nil
}

func (p *epollPoller) idForFD(fd int) (uint64, bool) {
	for id, f := range p.fds {
		if f == fd {
			return id, true
		}
	}
	return 0, false
}

func (p *epollPoller) Close() error {
	return unix.Close(p.fd)
}
