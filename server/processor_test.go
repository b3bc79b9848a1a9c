package server_test

import (
	"io"
	"time"

	"github.com/nabbar/connengine/server"
	"github.com/nabbar/connengine/socket"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// waitUntil polls cond up to a second, returning once it is true. It exists
// because HTTPProcessor dispatches to the Delegate on a separate goroutine
// (spec.md §4.7's "dispatch to the user delegate in a worker task"), so the
// response is never ready synchronously after Process returns.
func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
	}
	return false
}

var _ = Describe("HTTPProcessor", func() {
	It("dispatches a GET request and writes the delegate's response", func() {
		conn := &fakeConn{}
		delegate := server.DelegateFunc(func(req *server.ServerRequest, resp *server.ServerResponse) {
			Expect(req.Method).To(Equal("GET"))
			Expect(req.URL).To(Equal("/hello?x=1"))
			resp.Headers.Set("Content-Type", []string{"text/plain"})
			_, _ = resp.Write([]byte("hi"))
			resp.End()
		})

		p := server.NewHTTPProcessor(conn, "127.0.0.1:1234", delegate, server.HTTPProcessorConfig{})

		ok := p.Process([]byte("GET /hello?x=1 HTTP/1.1\r\nHost: h\r\nConnection: close\r\n\r\n"))
		Expect(ok).To(BeTrue())

		Expect(waitUntil(func() bool {
			w, _, _ := conn.snapshot()
			return len(w) > 0
		})).To(BeTrue())

		written, closed, _ := conn.snapshot()
		Expect(string(written)).To(ContainSubstring("HTTP/1.1 200 OK\r\n"))
		Expect(string(written)).To(ContainSubstring("Content-Type: text/plain\r\n"))
		Expect(string(written)).To(ContainSubstring("Connection: Close\r\n"))
		Expect(string(written)).To(HaveSuffix("hi"))
		Expect(closed).To(BeTrue())
	})

	It("reuses the connection across a keep-alive pair of requests", func() {
		conn := &fakeConn{}
		var served int
		delegate := server.DelegateFunc(func(req *server.ServerRequest, resp *server.ServerResponse) {
			served++
			_, _ = resp.Write([]byte("ok"))
			resp.End()
		})

		p := server.NewHTTPProcessor(conn, "127.0.0.1:1234", delegate, server.HTTPProcessorConfig{})

		p.Process([]byte("GET /a HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n"))
		Expect(waitUntil(func() bool { return served == 1 })).To(BeTrue())

		_, closed, _ := conn.snapshot()
		Expect(closed).To(BeFalse())

		p.Process([]byte("GET /b HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n"))
		Expect(waitUntil(func() bool { return served == 2 })).To(BeTrue())

		written, _, _ := conn.snapshot()
		Expect(string(written)).To(ContainSubstring("Keep-Alive: timeout="))
	})

	It("streams the request body to the delegate through Body()", func() {
		conn := &fakeConn{}
		gotBody := make(chan string, 1)
		delegate := server.DelegateFunc(func(req *server.ServerRequest, resp *server.ServerResponse) {
			b, err := io.ReadAll(req.Body())
			Expect(err).NotTo(HaveOccurred())
			gotBody <- string(b)
			resp.End()
		})

		p := server.NewHTTPProcessor(conn, "", delegate, server.HTTPProcessorConfig{})
		p.Process([]byte("POST /submit HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhello"))

		Eventually(gotBody, time.Second).Should(Receive(Equal("hello")))
	})

	It("rejects an oversize request with the configured status and closes", func() {
		conn := &fakeConn{}
		delegate := server.DelegateFunc(func(req *server.ServerRequest, resp *server.ServerResponse) {
			Fail("delegate should not run for an oversize request")
		})

		p := server.NewHTTPProcessor(conn, "", delegate, server.HTTPProcessorConfig{RequestSizeLimit: 10})
		p.Process([]byte("GET /a-path-longer-than-ten-bytes HTTP/1.1\r\nHost: h\r\n\r\n"))

		Expect(waitUntil(func() bool {
			_, closed, _ := conn.snapshot()
			return closed
		})).To(BeTrue())

		written, _, _ := conn.snapshot()
		Expect(string(written)).To(ContainSubstring("413"))
	})
})

var _ = Describe("UpgradeRegistry", func() {
	It("swaps the connection's Processor on a matched Upgrade token", func() {
		reg := server.NewUpgradeRegistry()
		var gotReq *server.ServerRequest
		reg.Register("websocket", func(conn server.Conn, req *server.ServerRequest, resp *server.ServerResponse) (socket.Processor, []byte) {
			gotReq = req
			return stubUpgradeProcessor{}, nil
		})

		conn := &fakeConn{}
		delegate := server.DelegateFunc(func(req *server.ServerRequest, resp *server.ServerResponse) {
			_, err := resp.Upgrade(reg)
			Expect(err).NotTo(HaveOccurred())
		})

		p := server.NewHTTPProcessor(conn, "", delegate, server.HTTPProcessorConfig{})
		p.Process([]byte("GET /ws HTTP/1.1\r\nHost: h\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n"))

		Expect(waitUntil(func() bool {
			_, _, newProc := conn.snapshot()
			return newProc != nil
		})).To(BeTrue())

		Expect(gotReq).NotTo(BeNil())
		written, closed, _ := conn.snapshot()
		Expect(string(written)).To(ContainSubstring("101 Switching Protocols"))
		Expect(string(written)).To(ContainSubstring("Upgrade: websocket"))
		Expect(closed).To(BeFalse())
	})

	It("responds 404 when no registered token matches", func() {
		reg := server.NewUpgradeRegistry()
		conn := &fakeConn{}
		delegate := server.DelegateFunc(func(req *server.ServerRequest, resp *server.ServerResponse) {
			_, err := resp.Upgrade(reg)
			Expect(err).To(Equal(server.ErrUpgradeNoMatch))
		})

		p := server.NewHTTPProcessor(conn, "", delegate, server.HTTPProcessorConfig{})
		p.Process([]byte("GET /ws HTTP/1.1\r\nHost: h\r\nUpgrade: carrier-pigeon\r\n\r\n"))

		Expect(waitUntil(func() bool {
			w, _, _ := conn.snapshot()
			return len(w) > 0
		})).To(BeTrue())

		written, _, _ := conn.snapshot()
		Expect(string(written)).To(ContainSubstring("404"))
	})
})
