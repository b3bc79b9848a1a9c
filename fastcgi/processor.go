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

package fastcgi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/idna"

	"github.com/nabbar/connengine/buffer"
	"github.com/nabbar/connengine/header"
)

const maxStdoutChunk = 65535

// Request is the HTTP semantics assembled from a FastCGI primary request's
// BEGIN_REQUEST/PARAMS/STDIN records, per spec.md §4.8.
type Request struct {
	// TraceID correlates this request across log lines independent of the
	// wire-level RequestID, which is only unique within one connection and
	// is reused by the next BEGIN_REQUEST after this one completes.
	TraceID    uuid.UUID
	RequestID  uint16
	KeepConn   bool
	Method     string
	Scheme     string
	Host       string
	URI        string
	RemoteAddr string
	ServerAddr string
	ServerName string
	ServerPort string
	ProtoMajor int
	ProtoMinor int
	Headers    *header.Container
	Body       *buffer.List
}

// URL reconstructs scheme://host[:port]/uri per spec.md §4.8, omitting the
// port when it is the scheme default (80 for http, 443 for https).
func (r *Request) URL() string {
	scheme := r.Scheme
	if scheme == "" {
		scheme = "http"
	}

	host := r.Host
	if host == "" {
		host = r.ServerName
	}
	if host == "" {
		host = r.ServerAddr
	}
	if host == "" {
		host = "127.0.0.1"
	}

	uri := r.URI
	if uri == "" {
		uri = "/"
	}

	if r.ServerPort != "" && !strings.Contains(host, ":") {
		if (scheme == "http" && r.ServerPort != "80") || (scheme == "https" && r.ServerPort != "443") {
			host = host + ":" + r.ServerPort
		}
	}

	return fmt.Sprintf("%s://%s%s", scheme, host, uri)
}

// processorPhase tracks how far a primary request has progressed.
type processorPhase uint8

const (
	phaseAwaitBegin processorPhase = iota
	phaseParams
	phaseStdin
	phaseDone
)

// Processor accumulates FastCGI records for one connection and assembles the
// primary request's HTTP semantics. It rejects multiplexed requests and
// unsupported roles per spec.md §4.8.
type Processor struct {
	phase processorPhase

	primaryID   uint16
	havePrimary bool
	extraIDs    map[uint16]bool

	req *Request
}

// NewProcessor returns a Processor ready to accumulate one connection's
// records.
func NewProcessor() *Processor {
	return &Processor{
		phase:    phaseAwaitBegin,
		extraIDs: make(map[uint16]bool),
	}
}

// ExtraRequestIDs returns the set of non-primary request ids seen so far;
// each must be rejected with END_REQUEST{CANT_MPX_CONN} once the primary
// request completes.
func (p *Processor) ExtraRequestIDs() []uint16 {
	out := make([]uint16, 0, len(p.extraIDs))
	for id := range p.extraIDs {
		out = append(out, id)
	}
	return out
}

// Feed processes one decoded record. It returns:
//   - (nil, nil) if the primary request is not yet complete,
//   - (req, nil) once STDIN has been fully consumed for the primary request,
//   - (nil, ErrUnsupportedRole) if a BEGIN_REQUEST names an unsupported role,
//   - an error for any other protocol violation (duplicate primary
//     BEGIN_REQUEST, malformed PARAMS content).
//
// PARAMS and STDIN records for any id other than the primary request are
// ignored and yield (nil, nil).
func (p *Processor) Feed(rec Record) (*Request, error) {
	switch rec.Type {
	case TypeBeginRequest:
		return nil, p.onBeginRequest(rec)
	case TypeParams:
		return nil, p.onParams(rec)
	case TypeStdin:
		return p.onStdin(rec)
	case TypeAbortRequest:
		p.phase = phaseDone
		return nil, nil
	default:
		return nil, nil
	}
}

func (p *Processor) onBeginRequest(rec Record) error {
	role, flags := rec.BeginRequestBody()

	if !p.havePrimary {
		if role != RoleResponder {
			return ErrUnsupportedRole
		}
		p.havePrimary = true
		p.primaryID = rec.RequestID
		p.phase = phaseParams
		p.req = &Request{
			TraceID:   uuid.New(),
			RequestID: rec.RequestID,
			KeepConn:  flags&FlagKeepConn != 0,
			Headers:   header.New(),
			Body:      buffer.New(),
		}
		return nil
	}

	if rec.RequestID == p.primaryID {
		return errDuplicateBegin
	}

	p.extraIDs[rec.RequestID] = true
	return nil
}

var errDuplicateBegin = fmt.Errorf("fastcgi: duplicate BEGIN_REQUEST for primary request id")

func (p *Processor) onParams(rec Record) error {
	if !p.havePrimary || rec.RequestID != p.primaryID || p.phase != phaseParams {
		return nil
	}

	if len(rec.Content) == 0 {
		p.phase = phaseStdin
		return nil
	}

	pairs, err := DecodePairs(rec.Content)
	if err != nil {
		return err
	}
	for _, kv := range pairs {
		applyParam(p.req, kv.Name, kv.Value)
	}
	return nil
}

func (p *Processor) onStdin(rec Record) (*Request, error) {
	if !p.havePrimary || rec.RequestID != p.primaryID || p.phase != phaseStdin {
		return nil, nil
	}

	if len(rec.Content) == 0 {
		p.phase = phaseDone
		return p.req, nil
	}

	p.req.Body.Append(rec.Content)
	return nil, nil
}

// applyParam maps one PARAMS name-value pair onto the Request per the rules
// of spec.md §4.8.
func applyParam(r *Request, name, value string) {
	switch name {
	case "REQUEST_METHOD":
		r.Method = value
	case "REQUEST_SCHEME":
		r.Scheme = value
	case "HTTP_HOST":
		r.Host = normalizeHostname(value)
		r.Headers.Set("Host", []string{r.Host})
	case "SERVER_ADDR":
		r.ServerAddr = value
	case "SERVER_NAME":
		r.ServerName = normalizeHostname(value)
	case "SERVER_PORT":
		r.ServerPort = value
	case "REQUEST_URI":
		r.URI = value
	case "REMOTE_ADDR":
		r.RemoteAddr = value
	case "SERVER_PROTOCOL":
		major, minor, ok := parseServerProtocol(value)
		if ok {
			r.ProtoMajor = major
			r.ProtoMinor = minor
		}
	default:
		if strings.HasPrefix(name, "HTTP_") {
			headerName := normalizeHeaderParam(name[len("HTTP_"):])
			r.Headers.Append(headerName, value)
		}
	}
}

// normalizeHostname applies IDN ASCII normalization to the host portion of
// an HTTP_HOST/SERVER_NAME param, leaving a trailing ":port" untouched and
// falling back to the original value if it isn't a valid IDN label.
func normalizeHostname(value string) string {
	host, port, ok := strings.Cut(value, ":")
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil || ascii == "" {
		return value
	}
	if !ok {
		return ascii
	}
	return ascii + ":" + port
}

// normalizeHeaderParam turns CONTENT_TYPE-style param suffixes into
// Title-Cased header names: underscores become dashes and each
// dash-separated segment is title-cased.
func normalizeHeaderParam(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}

func parseServerProtocol(s string) (major, minor int, ok bool) {
	const prefix = "HTTP/"
	if !strings.HasPrefix(s, prefix) {
		return 0, 0, false
	}
	rest := s[len(prefix):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return 0, 0, false
	}
	maj, err1 := strconv.Atoi(rest[:dot])
	min, err2 := strconv.Atoi(rest[dot+1:])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return maj, min, true
}

// EncodeResponse wraps body in STDOUT records (at most maxStdoutChunk bytes
// of content each), followed by an empty STDOUT and an END_REQUEST record,
// per spec.md §4.8. The caller writes the returned bytes to the connection;
// Handler then closes it unless the request set KeepConn.
func EncodeResponse(requestID uint16, body []byte) ([]byte, error) {
	var out []byte

	off := 0
	for off < len(body) {
		n := len(body) - off
		if n > maxStdoutChunk {
			n = maxStdoutChunk
		}
		chunk, err := Encode(TypeStdout, requestID, body[off:off+n])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		off += n
	}

	emptyStdout, err := Encode(TypeStdout, requestID, nil)
	if err != nil {
		return nil, err
	}
	out = append(out, emptyStdout...)

	endReq, err := EncodeEndRequest(requestID, 0, StatusRequestComplete)
	if err != nil {
		return nil, err
	}
	out = append(out, endReq...)

	return out, nil
}

// EncodeRejection builds the END_REQUEST{CANT_MPX_CONN} record sent for
// every non-primary request id once the primary request completes.
func EncodeRejection(requestID uint16, status uint8) ([]byte, error) {
	return EncodeEndRequest(requestID, 0, status)
}
