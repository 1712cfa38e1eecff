package mailtext

import (
	"strings"
	"testing"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestFirstPlain_SinglePart(t *testing.T) {
	raw := crlf(`From: no-reply@famapp.in
To: me@example.com
Subject: Payment
Content-Type: text/plain; charset=utf-8

You received ₹250.0 from RAHUL K at 09:15 AM
`)

	text, err := FirstPlain([]byte(raw))
	if err != nil {
		t.Fatalf("FirstPlain() error = %v", err)
	}
	if !strings.Contains(text, "received ₹250.0 from RAHUL K") {
		t.Errorf("FirstPlain() = %q, want payment line", text)
	}
}

func TestFirstPlain_MultipartPrefersPlain(t *testing.T) {
	raw := crlf(`From: no-reply@famapp.in
To: me@example.com
Subject: Payment
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="frontier"

--frontier
Content-Type: text/html; charset=utf-8

<p>You received <b>₹250.0</b></p>
--frontier
Content-Type: text/plain; charset=utf-8

You received ₹250.0 from RAHUL K at 09:15 AM
--frontier--
`)

	text, err := FirstPlain([]byte(raw))
	if err != nil {
		t.Fatalf("FirstPlain() error = %v", err)
	}
	if strings.Contains(text, "<p>") {
		t.Errorf("FirstPlain() returned the html part: %q", text)
	}
	if !strings.Contains(text, "from RAHUL K at") {
		t.Errorf("FirstPlain() = %q, want the plain part", text)
	}
}

func TestFirstPlain_HTMLOnlyFallsBack(t *testing.T) {
	raw := crlf(`From: no-reply@famapp.in
Subject: Payment
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="frontier"

--frontier
Content-Type: text/html; charset=utf-8

<p>hello</p>
--frontier--
`)

	text, err := FirstPlain([]byte(raw))
	if err != nil {
		t.Fatalf("FirstPlain() error = %v", err)
	}
	if !strings.Contains(text, "hello") {
		t.Errorf("FirstPlain() = %q, want html fallback", text)
	}
}

func TestFirstPlain_InvalidBytesDropped(t *testing.T) {
	raw := "From: a@b\r\nContent-Type: text/plain\r\n\r\nok\xff\xfeok\r\n"

	text, err := FirstPlain([]byte(raw))
	if err != nil {
		t.Fatalf("FirstPlain() error = %v", err)
	}
	if !strings.Contains(text, "okok") {
		t.Errorf("FirstPlain() = %q, want invalid bytes dropped", text)
	}
}
