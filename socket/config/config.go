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

// Package config holds the client and server socket configuration structs
// validated before a Listener or dialer is created.
package config

import (
	"errors"
	"net"
	"runtime"

	"github.com/nabbar/connengine/network/protocol"
)

// MaxGID is the largest unix group id accepted by GroupPerm, matching the
// historical 16-bit signed gid_t ceiling used by most unix filesystems.
const MaxGID = 32767

var (
	ErrInvalidProtocol = errors.New("connengine/socket/config: invalid protocol")
	ErrInvalidTLSConfig = errors.New("connengine/socket/config: invalid TLS config")
	ErrInvalidGroup     = errors.New("connengine/socket/config: invalid unix group")
)

// TLSConfig carries the minimal TLS toggle shared by Client and Server. A
// full certificate/key-pair loader is out of scope for the connection
// engine (see SPEC_FULL.md non-goals); callers that need TLS terminate it
// themselves and hand the engine a plain net.Conn.
type TLSConfig struct {
	Enabled bool
}

// Client describes a dial target for the client engine.
type Client struct {
	Network protocol.NetworkProtocol
	Address string
	TLS     TLSConfig
}

// Validate checks that Network is a protocol the runtime supports and that
// Address resolves for it. Empty addresses are intentionally not rejected
// here: net.Resolve*Addr accepts them for some protocols (e.g. to bind the
// wildcard address), so rejecting them would be stricter than the standard
// library itself.
func (c Client) Validate() error {
	if c.Network.IsUnix() && runtime.GOOS == "windows" {
		return ErrInvalidProtocol
	}

	switch {
	case c.Network.IsTCP():
		_, err := net.ResolveTCPAddr(c.Network.String(), c.Address)
		return err
	case c.Network.IsUDP():
		_, err := net.ResolveUDPAddr(c.Network.String(), c.Address)
		return err
	case c.Network.IsUnix():
		_, err := net.ResolveUnixAddr(c.Network.String(), c.Address)
		return err
	default:
		return ErrInvalidProtocol
	}
}

// Server describes a listen target for the server engine, including the
// unix-socket file permission/group bits applied after Listen when
// Network is a unix-domain variant.
type Server struct {
	Network   protocol.NetworkProtocol
	Address   string
	PermFile  FilePerm
	GroupPerm int32
	TLS       ServerTLSConfig
}

// FilePerm mirrors the permission bits applied to a freshly created unix
// socket file, expressed as the low 9 bits of a standard unix mode.
type FilePerm uint32

// ServerTLSConfig carries the server-side TLS toggle.
type ServerTLSConfig struct {
	Enable bool
}

// Validate checks Network/Address the same way Client.Validate does, and
// additionally rejects a GroupPerm outside the valid gid range.
func (s Server) Validate() error {
	if s.Network.IsUnix() && runtime.GOOS == "windows" {
		return ErrInvalidProtocol
	}

	if s.GroupPerm < 0 || s.GroupPerm > MaxGID {
		return ErrInvalidGroup
	}

	switch {
	case s.Network.IsTCP():
		_, err := net.ResolveTCPAddr(s.Network.String(), s.Address)
		return err
	case s.Network.IsUDP():
		_, err := net.ResolveUDPAddr(s.Network.String(), s.Address)
		return err
	case s.Network.IsUnix():
		_, err := net.ResolveUnixAddr(s.Network.String(), s.Address)
		return err
	default:
		return ErrInvalidProtocol
	}
}
