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
	"time"

	"github.com/nabbar/connengine/logger"
)

// HTTPProcessorConfig tunes one HTTPProcessor's size limits and keep-alive
// policy, per spec.md §4.7. The zero value is usable: NewHTTPProcessor
// fills in every default (setDefaults).
type HTTPProcessorConfig struct {
	// RequestSizeLimit caps accumulated header+body bytes for one request;
	// zero means unlimited, per spec.md §5 "Limits".
	RequestSizeLimit int64

	// SizeLimitStatus is the status written when RequestSizeLimit is
	// exceeded. Default 413 per spec.md §4.7.
	SizeLimitStatus int

	// SizeLimitBody is the response body written alongside SizeLimitStatus.
	SizeLimitBody []byte

	// KeepAliveTimeout is how long an idle (InProgress()==false) connection
	// is kept before the sweep may evict it, and the value advertised in
	// the Keep-Alive: timeout= response header. spec.md §9 notes the source
	// disagreed between 5s and 60s across revisions and tells implementers
	// to pick the smaller value for responsiveness and document it; here
	// that decision applies to ConnectionManager's IdleCheckInterval
	// (socket.ManagerConfig, 5s), while KeepAliveTimeout itself keeps the
	// 60s default spec.md §4.7 names explicitly for the per-connection
	// deadline advertised to clients.
	KeepAliveTimeout time.Duration

	// MaxKeepAliveRequests is requests_remaining's starting value. Default
	// 100, per spec.md §4.7 ("default 100 in server policy").
	MaxKeepAliveRequests int

	// Upgrades is stored with the configuration but HTTPProcessor does not
	// read it: ServerResponse.Upgrade negotiates against the registry passed
	// to it as an argument.
	Upgrades *UpgradeRegistry

	Log logger.Logger
}

func (c *HTTPProcessorConfig) setDefaults() {
	if c.SizeLimitStatus == 0 {
		c.SizeLimitStatus = 413
	}
	if c.SizeLimitBody == nil {
		c.SizeLimitBody = []byte("Request Entity Too Large")
	}
	if c.KeepAliveTimeout <= 0 {
		c.KeepAliveTimeout = 60 * time.Second
	}
	if c.MaxKeepAliveRequests <= 0 {
		c.MaxKeepAliveRequests = 100
	}
	if c.Log == nil {
		c.Log = logger.Discard()
	}
}
