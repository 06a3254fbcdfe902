package core

import (
	"bytes"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/always-cache/client-cache/rfc2616"
	"github.com/rs/zerolog/log"
)

// CacheStatusHeader reports on each response how the cache handled the
// request: HIT, REVALIDATED, MISS or BYPASS.
const CacheStatusHeader = "X-Cache-Status"

const (
	cacheStatusHit         = "HIT"
	cacheStatusRevalidated = "REVALIDATED"
	cacheStatusMiss        = "MISS"
	cacheStatusBypass      = "BYPASS"
)

// Transport is the HTTP engine adapter: an http.RoundTripper that
// consults the cache before the network, revalidates stale entries
// with conditional requests, and streams storable response bodies into
// the cache as the caller reads them.
type Transport struct {
	// Cache to consult. Required.
	Cache ResponseCache
	// Transport performs the actual network exchange.
	// Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	// Clock mirrors the cache's clock for request/response times.
	// Defaults to the wall clock.
	Clock Clock
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !useCaches(req) {
		res, err := t.inner().RoundTrip(req)
		if err == nil {
			res.Header.Set(CacheStatusHeader, cacheStatusBypass)
		}
		return res, err
	}

	cres := t.Cache.Get(req)
	if cres == nil {
		if rfc2616.ParseRequestCacheControl(req.Header).OnlyIfCached() {
			return gatewayTimeoutResponse(req), nil
		}
		return t.fetch(req)
	}
	if cres.Conditions == nil {
		log.Trace().Str("uri", cacheKey(req)).Msg("Serving fresh response from cache")
		res := cres.HTTPResponse(req)
		res.Header.Set(CacheStatusHeader, cacheStatusHit)
		return res, nil
	}
	return t.revalidate(req, cres)
}

// revalidate executes the conditional exchange for a stored entry that
// may only be used after validation.
func (t *Transport) revalidate(req *http.Request, cres *Response) (*http.Response, error) {
	// an empty condition set means the client supplied its own
	// preconditions; the exchange is the client's, not ours
	clientConditional := len(cres.Conditions) == 0

	outReq := req.Clone(req.Context())
	for name, values := range cres.Conditions {
		outReq.Header[name] = values
	}

	requestTime := t.clock()()
	res, err := t.inner().RoundTrip(outReq)
	responseTime := t.clock()()
	if err != nil {
		t.Cache.trackMiss()
		return nil, err
	}

	if res.StatusCode == http.StatusNotModified && !clientConditional {
		if merged := t.Cache.update(req, res, requestTime, responseTime); merged != nil {
			res.Body.Close()
			t.Cache.trackConditionalHit()
			log.Trace().Str("uri", cacheKey(req)).Msg("Serving validated response from cache")
			served := entryResponse(merged, req)
			served.Header.Set(CacheStatusHeader, cacheStatusRevalidated)
			return served, nil
		}
		// no matching stored entry; surface the 304 as-is
	}

	t.Cache.trackMiss()
	return t.store(req, res, requestTime, responseTime), nil
}

// fetch performs a plain network exchange and offers the response to
// the cache.
func (t *Transport) fetch(req *http.Request) (*http.Response, error) {
	requestTime := t.clock()()
	res, err := t.inner().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	return t.store(req, res, requestTime, t.clock()()), nil
}

// store offers the response to the cache. When admitted, the body is
// teed through the entry writer so that the cache observes the full
// origin byte stream as the caller reads it. The cache status marker
// is stamped only after the entry's headers have been snapshotted, so
// it never ends up in the store.
func (t *Transport) store(req *http.Request, res *http.Response, requestTime, responseTime time.Time) *http.Response {
	writer := t.Cache.put(req, res, requestTime, responseTime)
	res.Header.Set(CacheStatusHeader, cacheStatusMiss)
	if writer == nil {
		return res
	}
	body := &teeBody{rc: res.Body, writer: writer}
	// a body abandoned without Close aborts the writer eventually
	runtime.SetFinalizer(body, func(b *teeBody) { b.writer.Abort() })
	res.Body = body
	return res
}

func (t *Transport) inner() http.RoundTripper {
	if t.Transport != nil {
		return t.Transport
	}
	return http.DefaultTransport
}

func (t *Transport) clock() Clock {
	if t.Clock != nil {
		return t.Clock
	}
	return wallClock
}

// teeBody delivers the network body to the caller while copying every
// byte into the entry writer. Clean end-of-stream commits the entry;
// a read error or an early close aborts it.
type teeBody struct {
	rc     io.ReadCloser
	writer *EntryWriter
	sawEOF bool
}

func (b *teeBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.writer.Write(p[:n])
	}
	switch {
	case err == io.EOF:
		b.sawEOF = true
		b.writer.Commit()
	case err != nil:
		b.writer.Abort()
	}
	return n, err
}

func (b *teeBody) Close() error {
	if !b.sawEOF {
		b.writer.Abort()
	} else {
		// a fully drained body may be closed without ever observing
		// EOF again; committing twice is a no-op
		b.writer.Commit()
	}
	runtime.SetFinalizer(b, nil)
	return b.rc.Close()
}

// gatewayTimeoutResponse is the synthesized response for an
// "only-if-cached" request with no usable stored entry. Its error
// stream is empty.
func gatewayTimeoutResponse(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode: http.StatusGatewayTimeout,
		Status:     "504 Gateway Timeout",
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header: http.Header{
			CacheStatusHeader: []string{cacheStatusMiss},
		},
		Body:          io.NopCloser(strings.NewReader("")),
		ContentLength: 0,
		Request:       req,
	}
}

// entryResponse builds the client-facing response for an entry served
// after successful revalidation.
func entryResponse(entry *Entry, req *http.Request) *http.Response {
	major, minor := 1, 1
	if maj, min, ok := http.ParseHTTPVersion(entry.Proto); ok {
		major, minor = maj, min
	}
	return &http.Response{
		StatusCode:    entry.StatusCode,
		Status:        entry.Status,
		Proto:         entry.Proto,
		ProtoMajor:    major,
		ProtoMinor:    minor,
		Header:        entry.Header(),
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}
