package config_test

import (
	"github.com/nabbar/connengine/network/protocol"
	"github.com/nabbar/connengine/socket/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client configuration", func() {
	It("validates a TCP client with a valid address", func() {
		c := config.Client{Network: protocol.NetworkTCP, Address: "localhost:8080"}
		Expect(c.Validate()).To(Succeed())
	})

	It("validates a TCP6 client with a bracketed address", func() {
		c := config.Client{Network: protocol.NetworkTCP6, Address: "[::1]:8080"}
		Expect(c.Validate()).To(Succeed())
	})

	It("rejects a TCP client with an unresolvable address", func() {
		c := config.Client{Network: protocol.NetworkTCP, Address: "invalid-address"}
		Expect(c.Validate()).To(HaveOccurred())
	})

	It("validates a unix client with a socket path", func() {
		c := config.Client{Network: protocol.NetworkUnix, Address: "/tmp/test.sock"}
		Expect(c.Validate()).To(Succeed())
	})

	It("rejects an unsupported protocol", func() {
		c := config.Client{Network: protocol.NetworkEmpty, Address: "localhost:8080"}
		Expect(c.Validate()).To(MatchError(config.ErrInvalidProtocol))
	})
})

var _ = Describe("Server configuration", func() {
	It("validates a TCP server with a wildcard address", func() {
		s := config.Server{Network: protocol.NetworkTCP, Address: ":8080"}
		Expect(s.Validate()).To(Succeed())
	})

	It("validates a unix server with a socket path", func() {
		s := config.Server{Network: protocol.NetworkUnix, Address: "/tmp/test.sock"}
		Expect(s.Validate()).To(Succeed())
	})

	It("rejects an out-of-range group id", func() {
		s := config.Server{Network: protocol.NetworkTCP, Address: ":8080", GroupPerm: config.MaxGID + 1}
		Expect(s.Validate()).To(MatchError(config.ErrInvalidGroup))
	})

	It("rejects an unsupported protocol", func() {
		s := config.Server{Network: protocol.NetworkEmpty, Address: ":8080"}
		Expect(s.Validate()).To(MatchError(config.ErrInvalidProtocol))
	})
})

var _ = Describe("Error constants", func() {
	It("defines ErrInvalidProtocol with a descriptive message", func() {
		Expect(config.ErrInvalidProtocol).To(MatchError(ContainSubstring("invalid protocol")))
	})

	It("defines ErrInvalidGroup with a descriptive message", func() {
		Expect(config.ErrInvalidGroup).To(MatchError(ContainSubstring("invalid unix group")))
	})

	It("defines MaxGID", func() {
		Expect(config.MaxGID).To(BeNumerically("==", 32767))
	})
})
