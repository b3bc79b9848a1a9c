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

// Package fastcgi implements the FastCGI binary record codec and the
// responder-side request assembly described in spec.md §3, §4.4 and §4.8.
package fastcgi

import (
	"encoding/binary"

	"github.com/nabbar/connengine/errs"
)

// Record types, per the FastCGI 1.0 specification.
const (
	TypeBeginRequest uint8 = 1
	TypeAbortRequest uint8 = 2
	TypeEndRequest   uint8 = 3
	TypeParams       uint8 = 4
	TypeStdin        uint8 = 5
	TypeStdout       uint8 = 6
	TypeStderr       uint8 = 7
	TypeData         uint8 = 8
)

// Roles accepted in a BEGIN_REQUEST record. Only Responder is implemented;
// ParseOne decodes any role, and Processor.Feed rejects the others with
// ErrUnsupportedRole.
const (
	RoleResponder uint16 = 1
	RoleAuthorizer uint16 = 2
	RoleFilter     uint16 = 3
)

// protocol_status values for END_REQUEST.
const (
	StatusRequestComplete uint8 = 0
	StatusCantMpxConn     uint8 = 1
	StatusOverloaded      uint8 = 2
	StatusUnknownRole     uint8 = 3
)

// BeginRequest flags. KeepConn is bit 0 of the flags byte.
const FlagKeepConn uint8 = 1

const (
	version1  uint8 = 1
	headerLen       = 8
	maxContentLen   = 65535
)

// Error codes surfaced by ParseOne and Processor.Feed. These are recoverable or terminal
// signals, not panics: the codec never panics on malformed input.
const (
	CodeBufferExhausted uint16 = iota + 1
	CodeInvalidVersion
	CodeInvalidType
	CodeUnsupportedRole
)

var (
	ErrBufferExhausted = errs.New(CodeBufferExhausted, "fastcgi: buffer exhausted, need more bytes")
	ErrInvalidVersion  = errs.New(CodeInvalidVersion, "fastcgi: invalid protocol version")
	ErrInvalidType     = errs.New(CodeInvalidType, "fastcgi: invalid record type")
	ErrUnsupportedRole = errs.New(CodeUnsupportedRole, "fastcgi: unsupported role")
)

// Record is one decoded FastCGI record: the 8-byte header plus its content.
// Padding is consumed during decode and never retained.
type Record struct {
	Version       uint8
	Type          uint8
	RequestID     uint16
	ContentLength uint16
	PaddingLength uint8
	Reserved      uint8
	Content       []byte
}

// BeginRequestBody decodes the Role/Flags sub-fields of a BEGIN_REQUEST
// record's content. Callers must check Type == TypeBeginRequest first.
func (r *Record) BeginRequestBody() (role uint16, flags uint8) {
	if len(r.Content) < 8 {
		return 0, 0
	}
	role = binary.BigEndian.Uint16(r.Content[0:2])
	flags = r.Content[2]
	return role, flags
}

// EndRequestBody decodes the AppStatus/ProtocolStatus sub-fields of an
// END_REQUEST record's content.
func (r *Record) EndRequestBody() (appStatus uint32, protocolStatus uint8) {
	if len(r.Content) < 8 {
		return 0, 0
	}
	appStatus = binary.BigEndian.Uint32(r.Content[0:4])
	protocolStatus = r.Content[4]
	return appStatus, protocolStatus
}

// ParseOne decodes the first complete record from buf.
//
// On success it returns the record and the unconsumed remainder of buf. If
// buf does not yet hold a complete header+content+padding, it returns
// ErrBufferExhausted and the caller should read more bytes and retry with
// the same (unconsumed) buf. ErrInvalidVersion and ErrInvalidType are
// terminal: the connection should be closed.
func ParseOne(buf []byte) (rec Record, remainder []byte, err error) {
	if len(buf) < headerLen {
		return Record{}, buf, ErrBufferExhausted
	}

	version := buf[0]
	if version != version1 {
		return Record{}, buf, ErrInvalidVersion
	}

	typ := buf[1]
	if !validType(typ) {
		return Record{}, buf, ErrInvalidType
	}

	requestID := binary.BigEndian.Uint16(buf[2:4])
	contentLength := binary.BigEndian.Uint16(buf[4:6])
	paddingLength := buf[6]
	reserved := buf[7]

	total := headerLen + int(contentLength) + int(paddingLength)
	if len(buf) < total {
		return Record{}, buf, ErrBufferExhausted
	}

	content := make([]byte, contentLength)
	copy(content, buf[headerLen:headerLen+int(contentLength)])

	rec = Record{
		Version:       version,
		Type:          typ,
		RequestID:     requestID,
		ContentLength: contentLength,
		PaddingLength: paddingLength,
		Reserved:      reserved,
		Content:       content,
	}
	return rec, buf[total:], nil
}

func validType(t uint8) bool {
	switch t {
	case TypeBeginRequest, TypeAbortRequest, TypeEndRequest, TypeParams,
		TypeStdin, TypeStdout, TypeStderr, TypeData:
		return true
	default:
		return false
	}
}

// Encode serializes a record to the wire, computing padding so that
// (content_length + padding_length) % 8 == 0, per spec.md §4.4.
func Encode(typ uint8, requestID uint16, content []byte) ([]byte, error) {
	if len(content) > maxContentLen {
		return nil, errs.New(CodeInvalidType, "fastcgi: content exceeds u16 length")
	}

	contentLen := len(content)
	padLen := (8 - (contentLen % 8)) % 8

	out := make([]byte, headerLen+contentLen+padLen)
	out[0] = version1
	out[1] = typ
	binary.BigEndian.PutUint16(out[2:4], requestID)
	binary.BigEndian.PutUint16(out[4:6], uint16(contentLen))
	out[6] = uint8(padLen)
	out[7] = 0

	copy(out[headerLen:], content)
	return out, nil
}

// EncodeBeginRequest builds a BEGIN_REQUEST record's content and frames it.
func EncodeBeginRequest(requestID uint16, role uint16, flags uint8) ([]byte, error) {
	content := make([]byte, 8)
	binary.BigEndian.PutUint16(content[0:2], role)
	content[2] = flags
	return Encode(TypeBeginRequest, requestID, content)
}

// EncodeEndRequest builds an END_REQUEST record's content and frames it.
func EncodeEndRequest(requestID uint16, appStatus uint32, protocolStatus uint8) ([]byte, error) {
	content := make([]byte, 8)
	binary.BigEndian.PutUint32(content[0:4], appStatus)
	content[4] = protocolStatus
	return Encode(TypeEndRequest, requestID, content)
}

// EncodePair appends one FastCGI name-value pair to dst using the
// length-prefix scheme of spec.md §4.4: a single byte when the length is
// under 128, else 4 bytes big-endian with the high bit of the first byte
// set.
func EncodePair(dst []byte, name, value string) []byte {
	dst = appendPairLen(dst, len(name))
	dst = appendPairLen(dst, len(value))
	dst = append(dst, name...)
	dst = append(dst, value...)
	return dst
}

func appendPairLen(dst []byte, n int) []byte {
	if n < 128 {
		return append(dst, byte(n))
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n)|(1<<31))
	return append(dst, b[:]...)
}

// DecodePairs parses the PARAMS content of a record into an ordered slice of
// name-value pairs, per the (name_len, value_len, name, value) encoding of
// spec.md §4.4.
func DecodePairs(content []byte) ([]NameValue, error) {
	var out []NameValue
	i := 0
	for i < len(content) {
		nameLen, n, ok := readPairLen(content[i:])
		if !ok {
			return nil, errs.New(CodeInvalidType, "fastcgi: truncated params name length")
		}
		i += n

		valueLen, n, ok := readPairLen(content[i:])
		if !ok {
			return nil, errs.New(CodeInvalidType, "fastcgi: truncated params value length")
		}
		i += n

		if i+nameLen+valueLen > len(content) {
			return nil, errs.New(CodeInvalidType, "fastcgi: truncated params name/value")
		}

		name := string(content[i : i+nameLen])
		i += nameLen
		value := string(content[i : i+valueLen])
		i += valueLen

		out = append(out, NameValue{Name: name, Value: value})
	}
	return out, nil
}

// NameValue is one decoded PARAMS entry.
type NameValue struct {
	Name  string
	Value string
}

func readPairLen(buf []byte) (length int, consumed int, ok bool) {
	if len(buf) == 0 {
		return 0, 0, false
	}
	if buf[0]&0x80 == 0 {
		return int(buf[0]), 1, true
	}
	if len(buf) < 4 {
		return 0, 0, false
	}
	v := binary.BigEndian.Uint32(buf[0:4])
	v &^= 1 << 31
	return int(v), 4, true
}
