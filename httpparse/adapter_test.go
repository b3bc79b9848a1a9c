package httpparse_test

import (
	"testing"

	"github.com/nabbar/connengine/httpparse"
)

func TestRequestRoundTrip(t *testing.T) {
	raw := "GET /hello?x=1 HTTP/1.1\r\nHost: h\r\nContent-Length: 2\r\n\r\nhi"

	a := httpparse.New(httpparse.ModeRequest, false)
	consumed, upgrade := a.Execute([]byte(raw))

	if upgrade {
		t.Fatalf("unexpected upgrade")
	}
	if !a.Completed() {
		t.Fatalf("expected message_complete")
	}
	if consumed != len(raw) {
		t.Fatalf("consumed = %d, want %d", consumed, len(raw))
	}
	if a.Method != "GET" {
		t.Fatalf("Method = %q", a.Method)
	}
	if a.URLString != "/hello?x=1" {
		t.Fatalf("URLString = %q", a.URLString)
	}
	if a.Headers.GetFirst("Host") != "h" {
		t.Fatalf("Host header = %q", a.Headers.GetFirst("Host"))
	}

	body := make([]byte, 2)
	n := a.Body.Fill(body)
	if n != 2 || string(body) != "hi" {
		t.Fatalf("body = %q", body[:n])
	}
}

func TestPartialHeaderSplitAcrossCalls(t *testing.T) {
	a := httpparse.New(httpparse.ModeRequest, false)

	part1 := "GET / HTTP/1.1\r\nHos"
	part2 := "t: example\r\n\r\n"

	consumed1, _ := a.Execute([]byte(part1))
	if consumed1 != len(part1) {
		t.Fatalf("first call should consume everything into pending state, got %d/%d", consumed1, len(part1))
	}
	if a.Completed() {
		t.Fatalf("should not be complete yet")
	}

	consumed2, _ := a.Execute([]byte(part2))
	if consumed2 != len(part2) {
		t.Fatalf("second call consumed = %d, want %d", consumed2, len(part2))
	}
	if !a.Completed() {
		t.Fatalf("expected completion after headers blank line")
	}
	if a.Headers.GetFirst("Host") != "example" {
		t.Fatalf("Host = %q", a.Headers.GetFirst("Host"))
	}
}

func TestConsumesLessThanReadOnCompletedMessageWithTrailingBytes(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n\r\nGET /next HTTP/1.1\r\n\r\n"

	a := httpparse.New(httpparse.ModeRequest, false)
	consumed, _ := a.Execute([]byte(raw))

	if !a.Completed() {
		t.Fatalf("expected completion")
	}
	if consumed >= len(raw) {
		t.Fatalf("consumed = %d, want less than %d (tail must remain for next message)", consumed, len(raw))
	}

	remainder := raw[consumed:]
	if remainder != "GET /next HTTP/1.1\r\n\r\n" {
		t.Fatalf("unexpected remainder: %q", remainder)
	}
}

func TestResponseSkipBodyForHead(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 500\r\n\r\n"

	a := httpparse.New(httpparse.ModeResponse, true)
	_, _ = a.Execute([]byte(raw))

	if !a.Completed() {
		t.Fatalf("expected completion even though Content-Length was not consumed as body")
	}
	if a.StatusCode != 200 {
		t.Fatalf("StatusCode = %d", a.StatusCode)
	}
}

func TestChunkedBody(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"

	a := httpparse.New(httpparse.ModeRequest, false)
	_, _ = a.Execute([]byte(raw))

	if !a.Completed() {
		t.Fatalf("expected completion")
	}

	got := a.Body.Snapshot()
	if string(got) != "Wikipedia" {
		t.Fatalf("chunked body = %q", got)
	}
}

func TestKeepAliveDefaultsByVersion(t *testing.T) {
	a11 := httpparse.New(httpparse.ModeRequest, false)
	a11.Execute([]byte("GET / HTTP/1.1\r\n\r\n"))
	if !a11.IsKeepAlive() {
		t.Fatalf("HTTP/1.1 should default to keep-alive")
	}

	a10 := httpparse.New(httpparse.ModeRequest, false)
	a10.Execute([]byte("GET / HTTP/1.0\r\n\r\n"))
	if a10.IsKeepAlive() {
		t.Fatalf("HTTP/1.0 should default to close")
	}

	a10ka := httpparse.New(httpparse.ModeRequest, false)
	a10ka.Execute([]byte("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n"))
	if !a10ka.IsKeepAlive() {
		t.Fatalf("explicit Connection: keep-alive should override HTTP/1.0 default")
	}
}

func TestResetReinitializesForNextMessage(t *testing.T) {
	a := httpparse.New(httpparse.ModeRequest, false)
	a.Execute([]byte("GET /first HTTP/1.1\r\n\r\n"))
	a.Reset()

	if a.Completed() {
		t.Fatalf("Reset should clear completed state")
	}

	a.Execute([]byte("GET /second HTTP/1.1\r\n\r\n"))
	if a.URLString != "/second" {
		t.Fatalf("URLString after reset+reparse = %q", a.URLString)
	}
}
