package core

import (
	"net/http"
	"testing"
	"time"

	"github.com/always-cache/client-cache/rfc2616"
)

var policyNow = time.Date(2010, time.August, 12, 15, 30, 0, 0, time.UTC)

// seedEntry stores a response through the facade, the way the engine
// would: admission, then streaming the body through the writer.
func seedEntry(t *testing.T, c *Cache, uri, body string, headers map[string]string) {
	t.Helper()
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		t.Fatal(err)
	}
	h := make(http.Header)
	for name, value := range headers {
		h.Set(name, value)
	}
	res := &http.Response{
		StatusCode:    200,
		Status:        "200 OK",
		Proto:         "HTTP/1.1",
		Header:        h,
		ContentLength: int64(len(body)),
		Request:       req,
	}
	writer := c.Put(req, res)
	if writer == nil {
		t.Fatal("response not admitted")
	}
	if _, err := writer.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := writer.Commit(); err != nil {
		t.Fatal(err)
	}
}

func lookupFor(t *testing.T, c *Cache, uri string, reqHeaders map[string]string) Decision {
	t.Helper()
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		t.Fatal(err)
	}
	for name, value := range reqHeaders {
		req.Header.Set(name, value)
	}
	return c.lookup(req, false)
}

func TestLookupFreshEntry(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	seedEntry(t, c, "http://example.com/a", "A", map[string]string{
		"Date":          rfc2616.ToHttpDate(policyNow.Add(-time.Minute)),
		"Cache-Control": "max-age=120",
	})
	decision := lookupFor(t, c, "http://example.com/a", nil)
	if decision.Action != Fresh {
		t.Fatalf("action is %v", decision.Action)
	}
	if decision.Age != time.Minute {
		t.Fatalf("age is %v", decision.Age)
	}
}

func TestLookupMinFresh(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	seedEntry(t, c, "http://example.com/a", "A", map[string]string{
		"Date":          rfc2616.ToHttpDate(policyNow.Add(-time.Minute)),
		"Cache-Control": "max-age=120",
		"Etag":          `"v1"`,
	})
	// 60s left of lifetime, client wants at least 90s
	decision := lookupFor(t, c, "http://example.com/a", map[string]string{
		"Cache-Control": "min-fresh=90",
	})
	if decision.Action != Revalidate {
		t.Fatalf("action is %v", decision.Action)
	}
}

func TestLookupRequestMaxAge(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	seedEntry(t, c, "http://example.com/a", "A", map[string]string{
		"Date":          rfc2616.ToHttpDate(policyNow.Add(-time.Minute)),
		"Cache-Control": "max-age=3600",
		"Etag":          `"v1"`,
	})
	decision := lookupFor(t, c, "http://example.com/a", map[string]string{
		"Cache-Control": "max-age=30",
	})
	if decision.Action != Revalidate {
		t.Fatalf("entry older than the request allows, action is %v", decision.Action)
	}
}

func TestLookupMaxStale(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	seedEntry(t, c, "http://example.com/a", "A", map[string]string{
		"Date":          rfc2616.ToHttpDate(policyNow.Add(-100 * time.Second)),
		"Cache-Control": "max-age=5",
	})
	decision := lookupFor(t, c, "http://example.com/a", map[string]string{
		"Cache-Control": "max-stale",
	})
	if decision.Action != Fresh {
		t.Fatalf("action is %v", decision.Action)
	}
	if len(decision.Warnings) != 1 || decision.Warnings[0] != rfc2616.WarningResponseIsStale {
		t.Fatalf("warnings are %v", decision.Warnings)
	}
}

func TestLookupMaxStaleLimitExceeded(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	seedEntry(t, c, "http://example.com/a", "A", map[string]string{
		"Date":          rfc2616.ToHttpDate(policyNow.Add(-100 * time.Second)),
		"Cache-Control": "max-age=5",
	})
	// staleness is 95s, the client only tolerates 10s
	decision := lookupFor(t, c, "http://example.com/a", map[string]string{
		"Cache-Control": "max-stale=10",
	})
	if decision.Action == Fresh {
		t.Fatal("entry staler than the allowance must not be served")
	}
}

func TestLookupMustRevalidateBlocksMaxStale(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	seedEntry(t, c, "http://example.com/a", "A", map[string]string{
		"Date":          rfc2616.ToHttpDate(policyNow.Add(-100 * time.Second)),
		"Cache-Control": "max-age=5, must-revalidate",
		"Etag":          `"v1"`,
	})
	decision := lookupFor(t, c, "http://example.com/a", map[string]string{
		"Cache-Control": "max-stale",
	})
	if decision.Action != Revalidate {
		t.Fatalf("action is %v", decision.Action)
	}
}

func TestLookupNoCacheRevalidates(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	seedEntry(t, c, "http://example.com/a", "A", map[string]string{
		"Date":          rfc2616.ToHttpDate(policyNow),
		"Cache-Control": "max-age=3600, no-cache",
		"Etag":          `"v1"`,
		"Last-Modified": rfc2616.ToHttpDate(policyNow.Add(-time.Hour)),
	})
	decision := lookupFor(t, c, "http://example.com/a", nil)
	if decision.Action != Revalidate {
		t.Fatalf("action is %v", decision.Action)
	}
	// both validators are synthesized when both exist
	if decision.Conditions.Get("If-None-Match") != `"v1"` {
		t.Fatalf("conditions are %v", decision.Conditions)
	}
	if decision.Conditions.Get("If-Modified-Since") != rfc2616.ToHttpDate(policyNow.Add(-time.Hour)) {
		t.Fatalf("conditions are %v", decision.Conditions)
	}
}

func TestLookupRequestNoStore(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	seedEntry(t, c, "http://example.com/a", "A", map[string]string{
		"Date":          rfc2616.ToHttpDate(policyNow),
		"Cache-Control": "max-age=3600",
	})
	decision := lookupFor(t, c, "http://example.com/a", map[string]string{
		"Cache-Control": "no-store",
	})
	if decision.Action != Miss {
		t.Fatalf("action is %v", decision.Action)
	}
}

func TestLookupStaleWithoutValidator(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	seedEntry(t, c, "http://example.com/a?q=1", "A", map[string]string{
		"Date": rfc2616.ToHttpDate(policyNow.Add(-time.Minute)),
	})
	// no lifetime, no validator: nothing usable
	decision := lookupFor(t, c, "http://example.com/a?q=1", nil)
	if decision.Action != Miss {
		t.Fatalf("action is %v", decision.Action)
	}
}

func TestLookupSecureMismatch(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	// stored for an https URI, but without TLS metadata
	seedEntry(t, c, "https://example.com/a", "A", map[string]string{
		"Date":          rfc2616.ToHttpDate(policyNow),
		"Cache-Control": "max-age=3600",
	})

	req, _ := http.NewRequest("GET", "https://example.com/a", nil)
	if c.Get(req) != nil {
		t.Fatal("plain entry must not answer an https request")
	}
	if (InsecureCache{Inner: c}).Get(req) == nil {
		t.Fatal("the insecure decorator must allow the plain entry")
	}
}

func TestSecureMatchForPlainRequest(t *testing.T) {
	req, _ := http.NewRequest("GET", "http://example.com/a", nil)
	entry := &Entry{TLS: &TLSInfo{CipherSuite: 0x1301}}
	if secureMatch(req, entry, true) {
		t.Fatal("a secure entry must never answer a plain request")
	}
}

func TestPutReplacesEntryAtomically(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	seedEntry(t, c, "http://example.com/a", "old", map[string]string{
		"Date":          rfc2616.ToHttpDate(policyNow),
		"Cache-Control": "max-age=3600",
	})
	seedEntry(t, c, "http://example.com/a", "new", map[string]string{
		"Date":          rfc2616.ToHttpDate(policyNow),
		"Cache-Control": "max-age=3600",
	})
	if keys := storedKeys(c); len(keys) != 1 {
		t.Fatalf("store has %v", keys)
	}
	decision := lookupFor(t, c, "http://example.com/a", nil)
	if string(decision.Entry.Body) != "new" {
		t.Fatalf("body is %q", decision.Entry.Body)
	}
}

func TestFreshenPreservesContentHeaders(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	seedEntry(t, c, "http://example.com/a", "zipped", map[string]string{
		"Date":             rfc2616.ToHttpDate(policyNow.Add(-time.Hour)),
		"Cache-Control":    "max-age=0",
		"Content-Type":     "text/plain",
		"Content-Encoding": "gzip",
		"Etag":             `"v1"`,
	})

	notModified := make(http.Header)
	notModified.Set("Date", rfc2616.ToHttpDate(policyNow))
	notModified.Set("Cache-Control", "max-age=60")
	notModified.Set("Content-Type", "application/json")

	req, _ := http.NewRequest("GET", "http://example.com/a", nil)
	merged := c.update(req, &http.Response{Header: notModified}, policyNow, policyNow)
	if merged == nil {
		t.Fatal("no entry merged")
	}
	header := merged.Header()
	if header.Get("Cache-Control") != "max-age=60" {
		t.Fatalf("Cache-Control is %q", header.Get("Cache-Control"))
	}
	if header.Get("Date") != rfc2616.ToHttpDate(policyNow) {
		t.Fatalf("Date is %q", header.Get("Date"))
	}
	// content-defining headers stick to the original
	if header.Get("Content-Type") != "text/plain" {
		t.Fatalf("Content-Type is %q", header.Get("Content-Type"))
	}
	if header.Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding is %q", header.Get("Content-Encoding"))
	}
	if string(merged.Body) != "zipped" {
		t.Fatalf("body is %q", merged.Body)
	}
}

func TestUpdateWithoutEntry(t *testing.T) {
	c := CreateCache(Config{Clock: FixedClock(policyNow)})
	req, _ := http.NewRequest("GET", "http://example.com/missing", nil)
	if merged := c.update(req, &http.Response{Header: make(http.Header)}, policyNow, policyNow); merged != nil {
		t.Fatal("a 304 without a stored entry must fall through")
	}
}
