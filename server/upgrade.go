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

package server

import (
	"strings"
	"sync"

	"github.com/nabbar/connengine/socket"
)

// UpgradeFactory is a user-registered constructor that, given the
// connection's write surface and the upgrading request/response, returns
// either a replacement socket.Processor to drive the connection from now
// on plus an optional body to send alongside the 101 response, or
// (nil, nil) to decline the upgrade, per spec.md §4.9 and the GLOSSARY.
type UpgradeFactory func(conn Conn, req *ServerRequest, resp *ServerResponse) (socket.Processor, []byte)

// UpgradeRegistry is the process-wide (or, for tests, per-instance)
// mapping from case-insensitive protocol token to UpgradeFactory, per
// spec.md §4.9. Concurrent Register/Clear calls take an exclusive lock;
// lookups during a request take a read lock, matching spec.md §5's
// "process-wide, initialized at startup and normally read-only
// thereafter" note.
type UpgradeRegistry struct {
	mu        sync.RWMutex
	factories map[string]UpgradeFactory
}

// NewUpgradeRegistry returns an empty registry. Most callers only need one
// per process; NewUpgradeRegistry exists mainly so tests can build an
// isolated registry instead of mutating the shared default.
func NewUpgradeRegistry() *UpgradeRegistry {
	return &UpgradeRegistry{factories: make(map[string]UpgradeFactory)}
}

var defaultRegistry = NewUpgradeRegistry()

// DefaultUpgradeRegistry returns the process-wide registry. Nothing in this
// package consults it implicitly; callers pass it to ServerResponse.Upgrade
// like any other registry.
func DefaultUpgradeRegistry() *UpgradeRegistry {
	return defaultRegistry
}

// Register binds token (case-insensitive) to factory, replacing any prior
// binding.
func (u *UpgradeRegistry) Register(token string, factory UpgradeFactory) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.factories[strings.ToLower(token)] = factory
}

// Clear drops every registered factory; used by tests and by a server
// shutting down its upgrade surface.
func (u *UpgradeRegistry) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.factories = make(map[string]UpgradeFactory)
}

// lookup scans tokens (the comma-separated Upgrade header value) in order
// and returns the first one with a registered factory.
func (u *UpgradeRegistry) lookup(tokens []string) (string, UpgradeFactory, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if f, ok := u.factories[strings.ToLower(tok)]; ok {
			return tok, f, true
		}
	}
	return "", nil, false
}
