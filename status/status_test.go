package status_test

import (
	"testing"

	"github.com/nabbar/connengine/status"
)

func TestTextKnownCodes(t *testing.T) {
	cases := map[int]string{
		100: "Continue",
		200: "OK",
		204: "No Content",
		404: "Not Found",
		413: "Request Entity Too Large",
		429: "Too Many Requests",
		511: "Network Authentication Required",
	}
	for code, want := range cases {
		if got := status.Text(code); got != want {
			t.Errorf("Text(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestTextUnknownCode(t *testing.T) {
	if got := status.Text(999); got != "" {
		t.Errorf("Text(999) = %q, want empty", got)
	}
	if status.Valid(999) {
		t.Errorf("Valid(999) = true, want false")
	}
}

func TestLine(t *testing.T) {
	if got := status.Line(200); got != "200 OK" {
		t.Errorf("Line(200) = %q", got)
	}
	if got := status.Line(status.Unknown); got != "" {
		t.Errorf("Line(Unknown) = %q, want empty", got)
	}
}
