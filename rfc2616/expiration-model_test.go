package rfc2616

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

var testNow = time.Date(2010, time.August, 12, 15, 30, 0, 0, time.UTC)

func headerWith(pairs ...string) http.Header {
	h := make(http.Header)
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return h
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestMaxAgeLifetime(t *testing.T) {
	h := headerWith(
		"Date", ToHttpDate(testNow.Add(-time.Minute)),
		"Cache-Control", "max-age=120",
	)
	f := ComputeFreshness(h, mustParseURL(t, "http://example.com/"), testNow, testNow)
	if f.Age != time.Minute {
		t.Fatalf("age is %v", f.Age)
	}
	if f.Lifetime != 2*time.Minute || f.Heuristic {
		t.Fatalf("lifetime is %v (heuristic: %v)", f.Lifetime, f.Heuristic)
	}
	if !f.Fresh() {
		t.Fatal("response should be fresh")
	}
}

func TestMaxAgeOverridesExpires(t *testing.T) {
	h := headerWith(
		"Date", ToHttpDate(testNow),
		"Expires", ToHttpDate(testNow.Add(time.Hour)),
		"Cache-Control", "max-age=10",
	)
	f := ComputeFreshness(h, mustParseURL(t, "http://example.com/"), testNow, testNow)
	if f.Lifetime != 10*time.Second {
		t.Fatalf("lifetime is %v, max-age must win over Expires", f.Lifetime)
	}
}

func TestExpiresLifetime(t *testing.T) {
	h := headerWith(
		"Date", ToHttpDate(testNow.Add(-time.Hour)),
		"Expires", ToHttpDate(testNow.Add(time.Hour)),
	)
	f := ComputeFreshness(h, mustParseURL(t, "http://example.com/"), testNow, testNow)
	if f.Lifetime != 2*time.Hour {
		t.Fatalf("lifetime is %v", f.Lifetime)
	}
}

func TestExpiresInThePast(t *testing.T) {
	h := headerWith(
		"Date", ToHttpDate(testNow),
		"Expires", ToHttpDate(testNow.Add(-time.Hour)),
	)
	f := ComputeFreshness(h, mustParseURL(t, "http://example.com/"), testNow, testNow)
	if f.Lifetime >= 0 || f.Fresh() {
		t.Fatalf("entry must be stale, lifetime %v", f.Lifetime)
	}
}

func TestHeuristicLifetime(t *testing.T) {
	// served 5 days ago, modified 105 days before that: lifetime is
	// one tenth of the interval, i.e. 10 days
	h := headerWith(
		"Date", ToHttpDate(testNow.Add(-5*24*time.Hour)),
		"Last-Modified", ToHttpDate(testNow.Add(-105*24*time.Hour)),
	)
	f := ComputeFreshness(h, mustParseURL(t, "http://example.com/"), testNow, testNow)
	if !f.Heuristic {
		t.Fatal("lifetime should be heuristic")
	}
	if f.Lifetime != 10*24*time.Hour {
		t.Fatalf("lifetime is %v", f.Lifetime)
	}
	if !f.Fresh() {
		t.Fatal("response should be fresh")
	}
}

func TestNoHeuristicForQueryString(t *testing.T) {
	h := headerWith(
		"Date", ToHttpDate(testNow.Add(-time.Hour)),
		"Last-Modified", ToHttpDate(testNow.Add(-100*time.Hour)),
	)
	f := ComputeFreshness(h, mustParseURL(t, "http://example.com/?q=1"), testNow, testNow)
	if f.Heuristic || f.Lifetime != 0 {
		t.Fatalf("query string URIs get no heuristic lifetime, got %v", f.Lifetime)
	}
}

func TestMissingDateUsesReceiveTime(t *testing.T) {
	h := headerWith("Cache-Control", "max-age=60")
	received := testNow.Add(-30 * time.Second)
	f := ComputeFreshness(h, mustParseURL(t, "http://example.com/"), testNow, received)
	if f.Age != 30*time.Second {
		t.Fatalf("age is %v", f.Age)
	}
}

func TestClockSkewAgeClampedToZero(t *testing.T) {
	h := headerWith("Date", ToHttpDate(testNow.Add(time.Minute)))
	f := ComputeFreshness(h, mustParseURL(t, "http://example.com/"), testNow, testNow)
	if f.Age != 0 {
		t.Fatalf("age is %v, must clamp to zero", f.Age)
	}
}
