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

import "github.com/nabbar/connengine/errs"

// Error codes for the server package's errs.Error taxonomy (spec.md §7),
// so a caller can test errs.Is(err, CodeRequestTooLarge) instead of matching
// the HTTP status the connection already wrote to the wire.
const (
	CodeRequestTooLarge uint16 = iota + 3000
	CodeProtocolError
	CodeUpgradeNoHeader
	CodeUpgradeNoMatch
	CodeUpgradeDeclined
)

var (
	ErrRequestTooLarge = errs.New(CodeRequestTooLarge, "request exceeds configured size limit")
	ErrProtocolError   = errs.New(CodeProtocolError, "malformed HTTP message")
	ErrUpgradeNoHeader = errs.New(CodeUpgradeNoHeader, "upgrade attempted without an Upgrade header")
	ErrUpgradeNoMatch  = errs.New(CodeUpgradeNoMatch, "no registered protocol matched the Upgrade header")
	ErrUpgradeDeclined = errs.New(CodeUpgradeDeclined, "upgrade factory declined the request")
)
