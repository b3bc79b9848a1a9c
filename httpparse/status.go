/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

package httpparse

// State is the parser's externally observable progress after an Execute
// call.
type State uint8

const (
	StateInitial State = iota
	StateHeadersComplete
	StateMessageComplete
	StateReset
)

// ParseError classifies why Execute consumed less than it was given without
// reaching message completion.
type ParseError uint8

const (
	ErrNone ParseError = iota
	ErrParsedLessThanRead
	ErrUnexpectedEOF
	ErrInternal
)

// ParserStatus is the tagged result of one Execute call, carrying enough
// information for the driver (HTTPProcessor) to decide whether to keep
// reading, dispatch to the delegate, or close the connection.
type ParserStatus struct {
	State     State
	Error     ParseError
	KeepAlive bool
	Upgrade   bool
	BytesLeft int
}

// Reset returns every field to its zero value.
func (s *ParserStatus) Reset() {
	*s = ParserStatus{}
}
