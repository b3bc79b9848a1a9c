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

package client_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/nabbar/connengine/client"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// scriptedServer accepts exactly one connection, hands its raw request line
// and header block to onRequest, and writes back whatever onRequest
// returns.
func scriptedServer(onRequest func(requestLine string, headers []string) string) (addr string, stop func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		line, _ := reader.ReadString('\n')

		var headers []string
		for {
			h, err := reader.ReadString('\n')
			if err != nil || strings.TrimSpace(h) == "" {
				break
			}
			headers = append(headers, strings.TrimSpace(h))
		}
		_, _ = conn.Write([]byte(onRequest(strings.TrimSpace(line), headers)))
	}()

	return ln.Addr().String(), func() {
		_ = ln.Close()
		<-done
	}
}

var _ = Describe("client engine", func() {
	It("round-trips a GET and parses the response", func() {
		addr, stop := scriptedServer(func(reqLine string, headers []string) string {
			Expect(reqLine).To(HavePrefix("GET /hello?x=1 HTTP/1.1"))
			return "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 2\r\nConnection: close\r\n\r\nhi"
		})
		defer stop()

		resp, err := client.Get(context.Background(), fmt.Sprintf("http://%s/hello?x=1", addr), client.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(string(resp.Body)).To(Equal("hi"))
	})

	It("skips a 100 Continue preamble before reading the final response", func() {
		addr, stop := scriptedServer(func(reqLine string, headers []string) string {
			return "HTTP/1.1 100 Continue\r\n\r\n" +
				"HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nok"
		})
		defer stop()

		resp, err := client.Get(context.Background(), fmt.Sprintf("http://%s/", addr), client.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(string(resp.Body)).To(Equal("ok"))
	})

	It("rewrites an HTTP/2 status line before parsing", func() {
		addr, stop := scriptedServer(func(reqLine string, headers []string) string {
			return "HTTP/2 200 OK\r\nContent-Length: 2\r\n\r\nhi"
		})
		defer stop()

		resp, err := client.Get(context.Background(), fmt.Sprintf("http://%s/", addr), client.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(resp.HTTPMajor).To(Equal(2))
		Expect(resp.HTTPMinor).To(Equal(0))
	})

	It("follows a 303 redirect and downgrades the method to GET", func() {
		addrB, stopB := scriptedServer(func(reqLine string, headers []string) string {
			Expect(reqLine).To(HavePrefix("GET /x HTTP/1.1"))
			return "HTTP/1.1 200 OK\r\nContent-Length: 4\r\nConnection: close\r\n\r\ndone"
		})
		defer stopB()

		addrA, stopA := scriptedServer(func(reqLine string, headers []string) string {
			Expect(reqLine).To(HavePrefix("POST / HTTP/1.1"))
			return fmt.Sprintf("HTTP/1.1 303 See Other\r\nLocation: http://%s/x\r\nContent-Length: 0\r\nConnection: close\r\n\r\n", addrB)
		})
		defer stopA()

		resp, err := client.Do(context.Background(), fmt.Sprintf("http://%s/", addrA), client.Options{Method: "POST"}, []byte("body"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(string(resp.Body)).To(Equal("done"))
	})

	It("suppresses 100-continue by sending an empty Expect header", func() {
		var gotExpect bool
		addr, stop := scriptedServer(func(reqLine string, headers []string) string {
			for _, h := range headers {
				if strings.EqualFold(h, "Expect:") {
					gotExpect = true
				}
			}
			return "HTTP/1.1 204 No Content\r\nConnection: close\r\n\r\n"
		})
		defer stop()

		_, err := client.Get(context.Background(), fmt.Sprintf("http://%s/", addr), client.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(gotExpect).To(BeTrue())
	})

	It("dials within ConnectTimeout and surfaces a dial error for an unreachable host", func() {
		_, err := client.Get(context.Background(), "http://127.0.0.1:1", client.Options{
			ConnectTimeout: 200 * time.Millisecond,
		})
		Expect(err).To(HaveOccurred())
	})
})
