/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package errs provides a small tagged-error type used across the connection
// engine so callers can branch on a numeric code instead of matching strings.
package errs

import (
	"fmt"
	"runtime"
)

// Error is a tagged error carrying a stable numeric code and an optional
// parent (the error it wraps), plus the call site that raised it.
type Error interface {
	error
	Code() uint16
	ErrorParent(parent error) Error
	Parent() error
	Is(code uint16) bool
	GetTrace() string
}

type ers struct {
	code   uint16
	msg    string
	parent error
	frame  runtime.Frame
}

func caller(skip int) runtime.Frame {
	pc := make([]uintptr, 1)
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return runtime.Frame{}
	}
	frames := runtime.CallersFrames(pc[:n])
	f, _ := frames.Next()
	return f
}

// New creates a new Error with the given code and message.
func New(code uint16, msg string) Error {
	return &ers{code: code, msg: msg, frame: caller(1)}
}

func (e *ers) Error() string {
	if e == nil {
		return ""
	}
	if e.parent != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.parent)
	}
	return e.msg
}

func (e *ers) Code() uint16 {
	if e == nil {
		return 0
	}
	return e.code
}

// ErrorParent returns a copy of the error with parent attached, so the
// original package-level sentinel is never mutated by callers.
func (e *ers) ErrorParent(parent error) Error {
	if e == nil {
		return nil
	}
	n := &ers{code: e.code, msg: e.msg, parent: parent, frame: caller(1)}
	return n
}

func (e *ers) Parent() error {
	if e == nil {
		return nil
	}
	return e.parent
}

// Is reports whether this error (or any error in its parent chain) carries
// the given code.
func (e *ers) Is(code uint16) bool {
	for cur := e; cur != nil; {
		if cur.code == code {
			return true
		}
		p, ok := cur.parent.(*ers)
		if !ok {
			return false
		}
		cur = p
	}
	return false
}

func (e *ers) GetTrace() string {
	if e == nil || e.frame.Function == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d %s", e.frame.File, e.frame.Line, e.frame.Function)
}

// Is reports whether err is an Error carrying the given code anywhere in its
// parent chain. It is the package-level helper mirroring the stdlib errors.Is
// shape, used by callers that only hold an `error`.
func Is(err error, code uint16) bool {
	e, ok := err.(*ers)
	if !ok {
		return false
	}
	return e.Is(code)
}
