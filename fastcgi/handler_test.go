package fastcgi_test

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/nabbar/connengine/fastcgi"
)

func readOne(t *testing.T, conn net.Conn, out chan<- []byte) {
	t.Helper()
	buf := make([]byte, 8192)
	n, _ := conn.Read(buf)
	out <- append([]byte(nil), buf[:n]...)
}

// TestHandlerServesResponderRequest drives a full BEGIN_REQUEST/PARAMS/STDIN
// sequence through Handler.Process and checks the delegate's body comes
// back framed as STDOUT followed by END_REQUEST{REQUEST_COMPLETE}.
func TestHandlerServesResponderRequest(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	var gotMethod string
	delegate := fastcgi.DelegateFunc(func(req *fastcgi.Request) []byte {
		gotMethod = req.Method
		return []byte("Status: 200 OK\r\n\r\nhello")
	})
	h := fastcgi.NewHandler(serverConn, delegate, nil)

	got := make(chan []byte, 1)
	go readOne(t, clientConn, got)

	begin, _ := fastcgi.EncodeBeginRequest(1, fastcgi.RoleResponder, fastcgi.FlagKeepConn)
	params := encodeParams(t, 1, map[string]string{
		"REQUEST_METHOD": "GET",
		"REQUEST_URI":    "/",
	})
	emptyParams, _ := fastcgi.Encode(fastcgi.TypeParams, 1, nil)
	emptyStdin, _ := fastcgi.Encode(fastcgi.TypeStdin, 1, nil)

	buf := append(append(append(begin, params...), emptyParams...), emptyStdin...)
	if !h.Process(buf) {
		t.Fatalf("Process returned false")
	}

	select {
	case resp := <-got:
		rec, rem, err := fastcgi.ParseOne(resp)
		if err != nil {
			t.Fatalf("ParseOne stdout: %v", err)
		}
		if rec.Type != fastcgi.TypeStdout || !bytes.Contains(rec.Content, []byte("hello")) {
			t.Fatalf("stdout record = %+v", rec)
		}

		rec2, rem, err := fastcgi.ParseOne(rem)
		if err != nil {
			t.Fatalf("ParseOne empty stdout: %v", err)
		}
		if rec2.Type != fastcgi.TypeStdout || len(rec2.Content) != 0 {
			t.Fatalf("expected empty stdout terminator, got %+v", rec2)
		}

		rec3, _, err := fastcgi.ParseOne(rem)
		if err != nil {
			t.Fatalf("ParseOne end request: %v", err)
		}
		if rec3.Type != fastcgi.TypeEndRequest {
			t.Fatalf("expected END_REQUEST, got %+v", rec3)
		}
		if _, status := rec3.EndRequestBody(); status != fastcgi.StatusRequestComplete {
			t.Fatalf("protocol_status = %d, want REQUEST_COMPLETE", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for response")
	}

	if gotMethod != "GET" {
		t.Fatalf("delegate saw Method = %q, want GET", gotMethod)
	}
}

// TestHandlerRejectsUnknownRole feeds a BEGIN_REQUEST naming an unsupported
// role and checks the wire actually sees an END_REQUEST{UNKNOWN_ROLE},
// without the delegate ever being invoked.
func TestHandlerRejectsUnknownRole(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	delegate := fastcgi.DelegateFunc(func(req *fastcgi.Request) []byte {
		t.Fatalf("delegate must not be called for an unsupported role")
		return nil
	})
	h := fastcgi.NewHandler(serverConn, delegate, nil)

	got := make(chan []byte, 1)
	go readOne(t, clientConn, got)

	begin, _ := fastcgi.EncodeBeginRequest(7, fastcgi.RoleFilter, 0)
	if !h.Process(begin) {
		t.Fatalf("Process returned false")
	}

	select {
	case resp := <-got:
		rec, _, err := fastcgi.ParseOne(resp)
		if err != nil {
			t.Fatalf("ParseOne: %v", err)
		}
		if rec.Type != fastcgi.TypeEndRequest || rec.RequestID != 7 {
			t.Fatalf("record = %+v", rec)
		}
		if _, status := rec.EndRequestBody(); status != fastcgi.StatusUnknownRole {
			t.Fatalf("protocol_status = %d, want UNKNOWN_ROLE", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for rejection")
	}

	if h.InProgress() {
		t.Fatalf("InProgress() = true after a role rejection with no primary request")
	}
}

// TestHandlerRejectsMultiplexedRequestAfterPrimaryCompletes checks that a
// second BEGIN_REQUEST arriving on a different id is answered with
// END_REQUEST{CANT_MPX_CONN} once the primary request's response is sent.
func TestHandlerRejectsMultiplexedRequestAfterPrimaryCompletes(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	delegate := fastcgi.DelegateFunc(func(req *fastcgi.Request) []byte {
		return []byte("Status: 200 OK\r\n\r\nok")
	})
	h := fastcgi.NewHandler(serverConn, delegate, nil)

	gotPrimary := make(chan []byte, 1)
	gotRejection := make(chan []byte, 1)
	go func() {
		readOne(t, clientConn, gotPrimary)
		readOne(t, clientConn, gotRejection)
	}()

	begin1, _ := fastcgi.EncodeBeginRequest(1, fastcgi.RoleResponder, 0)
	begin2, _ := fastcgi.EncodeBeginRequest(2, fastcgi.RoleResponder, 0)
	params := encodeParams(t, 1, map[string]string{
		"REQUEST_METHOD": "GET",
		"REQUEST_URI":    "/",
	})
	emptyParams, _ := fastcgi.Encode(fastcgi.TypeParams, 1, nil)
	emptyStdin, _ := fastcgi.Encode(fastcgi.TypeStdin, 1, nil)

	buf := append(append(begin1, begin2...), params...)
	buf = append(append(buf, emptyParams...), emptyStdin...)

	if !h.Process(buf) {
		t.Fatalf("Process returned false")
	}

	select {
	case resp := <-gotPrimary:
		rec, _, err := fastcgi.ParseOne(resp)
		if err != nil || rec.Type != fastcgi.TypeStdout {
			t.Fatalf("primary stdout record = %+v, err = %v", rec, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for primary response")
	}

	select {
	case rej := <-gotRejection:
		rec, _, err := fastcgi.ParseOne(rej)
		if err != nil {
			t.Fatalf("ParseOne rejection: %v", err)
		}
		if rec.Type != fastcgi.TypeEndRequest || rec.RequestID != 2 {
			t.Fatalf("rejection record = %+v", rec)
		}
		if _, status := rec.EndRequestBody(); status != fastcgi.StatusCantMpxConn {
			t.Fatalf("protocol_status = %d, want CANT_MPX_CONN", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for multiplexed rejection")
	}
}
