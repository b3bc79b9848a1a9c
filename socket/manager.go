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
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/connengine/logger"
	"github.com/nabbar/connengine/socket/poller"
)

// ManagerConfig tunes ConnectionManager limits and idle-sweep cadence.
type ManagerConfig struct {
	// ConnectionLimit caps concurrently tracked handlers; zero means
	// unlimited.
	ConnectionLimit int

	// Reject, if non-nil, has its Body written and the socket closed when
	// ConnectionLimit is reached instead of silently dropping it.
	Reject *RejectResponse

	// IdleCheckInterval is the minimum time between sweep_idle passes
	// triggered by Accept. Default 5s (set by NewManager), matching the
	// keep-alive granularity noted in spec.md §4.7.
	IdleCheckInterval time.Duration

	// PollTimeout bounds each Wait call in the readiness loop. Default
	// 50ms per spec.md §4.6.
	PollTimeout time.Duration

	// Shards is the number of readiness-loop workers; connections are
	// distributed by ID % Shards. Default 2 per spec.md §5.
	Shards int

	Log logger.Logger
}

// Manager is ConnectionManager: it accepts sockets into Handlers, runs the
// sharded readiness loop, and sweeps idle connections, per spec.md §4.6.
type Manager struct {
	cfg ManagerConfig
	log logger.Logger

	nextID uint64

	mu       sync.RWMutex
	handlers map[uint64]*Handler
	pollers  []poller.Poller

	lastSweep atomic.Int64 // unix nanos
	stopped   atomic.Bool
}

// NewManager builds a Manager with cfg defaults filled in.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.IdleCheckInterval <= 0 {
		cfg.IdleCheckInterval = 5 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 50 * time.Millisecond
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 2
	}
	if cfg.Log == nil {
		cfg.Log = logger.Discard()
	}

	m := &Manager{
		cfg:      cfg,
		log:      cfg.Log,
		handlers: make(map[uint64]*Handler),
		pollers:  make([]poller.Poller, cfg.Shards),
	}
	for i := range m.pollers {
		p, err := poller.NewPoller()
		if err != nil {
			return nil, err
		}
		m.pollers[i] = p
	}
	return m, nil
}

// Accept registers conn behind a new Handler driving proc, rejecting the
// connection instead if ConnectionLimit is already reached.
func (m *Manager) Accept(conn net.Conn, proc Processor) {
	m.mu.RLock()
	count := len(m.handlers)
	m.mu.RUnlock()

	if m.cfg.ConnectionLimit > 0 && count >= m.cfg.ConnectionLimit {
		if m.cfg.Reject != nil {
			_, _ = conn.Write(m.cfg.Reject.Body)
		}
		_ = conn.Close()
		return
	}

	id := atomic.AddUint64(&m.nextID, 1)
	shard := m.shardFor(id)

	h := NewHandler(id, conn, proc, m.log, func(writable bool) {
		_ = shard.SetWritable(id, writable)
	}, m.remove)

	m.mu.Lock()
	m.handlers[id] = h
	m.mu.Unlock()

	if err := shard.Add(id, conn, false); err != nil {
		m.log.LogError("poller add failed", err)
		h.Close()
		return
	}

	m.sweepIdle(false)
}

func (m *Manager) shardFor(id uint64) poller.Poller {
	return m.pollers[id%uint64(len(m.pollers))]
}

func (m *Manager) remove(id uint64) {
	m.shardFor(id).Remove(id)

	m.mu.Lock()
	delete(m.handlers, id)
	m.mu.Unlock()
}

// RunShard drives the readiness loop for shard index i until Stop is
// called. Callers spawn one goroutine per shard (spec.md §5's "sharded by
// fd % N" worker pool).
func (m *Manager) RunShard(i int) {
	p := m.pollers[i]
	for !m.stopped.Load() {
		events, err := p.Wait(m.cfg.PollTimeout)
		if err != nil {
			m.log.LogError("poller wait failed", err)
			continue
		}
		for _, ev := range events {
			m.dispatch(ev)
		}
	}
}

func (m *Manager) dispatch(ev poller.Event) {
	m.mu.RLock()
	h, ok := m.handlers[ev.ID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	switch ev.Kind {
	case poller.HangupOrError:
		h.Close()
	case poller.Writable:
		h.OnWritable()
	case poller.Readable:
		h.OnReadable()
	}
}

// SweepIdle closes every handler whose processor is not in progress and
// whose keep-alive deadline has passed, per spec.md §4.6. It runs at most
// once per IdleCheckInterval unless force is true.
func (m *Manager) SweepIdle(force bool) {
	m.sweepIdle(force)
}

func (m *Manager) sweepIdle(force bool) {
	now := time.Now()
	last := time.Unix(0, m.lastSweep.Load())
	if !force && now.Sub(last) < m.cfg.IdleCheckInterval {
		return
	}
	m.lastSweep.Store(now.UnixNano())

	m.mu.RLock()
	candidates := make([]*Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		candidates = append(candidates, h)
	}
	m.mu.RUnlock()

	for _, h := range candidates {
		if h.Closed() {
			continue
		}
		if h.Proc.InProgress() {
			continue
		}
		until := h.Proc.KeepAliveUntil()
		if until.IsZero() || now.After(until) {
			h.PrepareToClose()
		}
	}
}

// Stop marks the manager stopped, forces a sweep that closes every
// handler regardless of state, and releases poller resources. This closes
// handlers directly rather than draining each one's PrepareToClose write
// buffer first: once the pollers are gone nothing will ever deliver the
// writable readiness a deferred drain is waiting on, so Stop favors a
// bounded shutdown over flushing in-flight response bytes.
func (m *Manager) Stop() {
	m.stopped.Store(true)

	m.mu.RLock()
	all := make([]*Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		all = append(all, h)
	}
	m.mu.RUnlock()

	for _, h := range all {
		h.Close()
	}

	for _, p := range m.pollers {
		_ = p.Close()
	}
}
