package headermap

import (
	"net/http"
	"testing"
)

func TestCaseInsensitiveLookup(t *testing.T) {
	m := &Map{}
	m.Add("content-type", "text/plain")
	if m.Get("Content-Type") != "text/plain" {
		t.Fatalf("lookup failed: %+v", m.Fields())
	}
	if !m.Has("CONTENT-TYPE") {
		t.Fatal("Has must be case-insensitive")
	}
}

func TestOrderedReadBack(t *testing.T) {
	m := &Map{}
	m.SetStatusLine("HTTP/1.1 200 OK")
	m.Add("Server", "test")
	m.Add("Set-Cookie", "a=1")
	m.Add("Set-Cookie", "b=2")

	fields := m.Fields()
	if len(fields) != 4 {
		t.Fatalf("got %d fields", len(fields))
	}
	if !fields[0].IsStatusLine() || fields[0].Value != "HTTP/1.1 200 OK" {
		t.Fatalf("first field is %+v", fields[0])
	}
	if fields[2].Value != "a=1" || fields[3].Value != "b=2" {
		t.Fatalf("multi-value order lost: %+v", fields)
	}
}

func TestSetReplacesAllValues(t *testing.T) {
	m := &Map{}
	m.Add("Warning", "110 - \"stale\"")
	m.Add("Warning", "113 - \"heuristic\"")
	m.Set("Warning", "199 - \"misc\"")
	if values := m.Values("Warning"); len(values) != 1 || values[0] != "199 - \"misc\"" {
		t.Fatalf("values are %v", values)
	}
}

func TestFromHTTPHeaderAndBack(t *testing.T) {
	h := make(http.Header)
	h.Add("Content-Type", "text/html")
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")

	m := FromHTTPHeader(h)
	if m.Len() != 3 {
		t.Fatalf("got %d fields", m.Len())
	}
	back := m.HTTPHeader()
	if back.Get("Content-Type") != "text/html" {
		t.Fatalf("header is %+v", back)
	}
	if cookies := back.Values("Set-Cookie"); len(cookies) != 2 || cookies[0] != "a=1" {
		t.Fatalf("cookies are %v", cookies)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := &Map{}
	m.Add("Etag", "v1")
	c := m.Clone()
	c.Set("Etag", "v2")
	if m.Get("Etag") != "v1" {
		t.Fatal("clone mutated the original")
	}
}
