// Package core implements the policy and lifecycle core of a
// client-side HTTP/1.1 response cache: admission, lookup, freshness,
// revalidation, invalidation, and the streaming entry writer. The HTTP
// engine is an external collaborator; it reaches the cache through the
// two hooks Get and Put (see ResponseCache) or via the bundled
// Transport.
package core

import (
	"bytes"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	headermap "github.com/always-cache/client-cache/pkg/header-map"
	"github.com/always-cache/client-cache/rfc2616"
	"github.com/rs/zerolog/log"
)

// ResponseCache is the two-hook interface the HTTP engine calls into.
// Cache is the default implementation; InsecureCache is a decorator
// that relaxes the TLS metadata check.
type ResponseCache interface {
	// Get is called before the engine performs a network fetch.
	// It returns nil when the engine should fetch normally.
	Get(req *http.Request) *Response
	// Put is called after the engine has received a response's headers
	// and is about to begin streaming its body. A nil return means the
	// response is not storable and the engine should not stream.
	Put(req *http.Request, res *http.Response) *EntryWriter

	// internal hooks used by the Transport
	get(req *http.Request, allowInsecure bool) *Response
	put(req *http.Request, res *http.Response, requestTime, responseTime time.Time) *EntryWriter
	update(req *http.Request, notModified *http.Response, requestTime, responseTime time.Time) *Entry
	trackConditionalHit()
	trackMiss()
}

// Config for creating a cache instance.
type Config struct {
	// Store holds the serialized entries. Defaults to a MemStore.
	Store Store
	// Clock supplies the wall-clock time for freshness math.
	// Defaults to time.Now; tests inject a fixed clock.
	Clock Clock
}

// Cache is the default ResponseCache.
type Cache struct {
	store Store
	clock Clock

	hits      atomic.Int64
	misses    atomic.Int64
	successes atomic.Int64
	aborts    atomic.Int64
}

// Counters is a snapshot of the cache's monotonic counters.
type Counters struct {
	// HitCount is the number of gets satisfied from the store without
	// a network fetch, including entries served after a successful 304
	// revalidation.
	HitCount int64 `json:"hitCount"`
	// MissCount is the number of gets that found no usable entry
	// (including "only-if-cached" lookups answered with a synthesized
	// 504) or whose revalidation did not end in a 304 merge.
	MissCount int64 `json:"missCount"`
	// SuccessCount is the number of entry bodies committed.
	SuccessCount int64 `json:"successCount"`
	// AbortCount is the number of entry writers aborted.
	AbortCount int64 `json:"abortCount"`
}

// CreateCache initializes a cache instance.
func CreateCache(config Config) *Cache {
	c := &Cache{
		store: config.Store,
		clock: config.Clock,
	}
	if c.store == nil {
		c.store = NewMemStore()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	return c
}

// Get runs the lookup policy for the request. It returns nil when no
// stored entry may be used (the engine fetches normally, or
// synthesizes a 504 if the request carried "only-if-cached"). A
// non-nil return with nil Conditions is a fresh hit; with non-nil
// Conditions the engine must revalidate using those headers.
func (c *Cache) Get(req *http.Request) *Response {
	return c.get(req, false)
}

func (c *Cache) get(req *http.Request, allowInsecure bool) *Response {
	decision := c.lookup(req, allowInsecure)
	switch decision.Action {
	case Fresh:
		c.hits.Add(1)
	case Miss, GatewayTimeout:
		c.misses.Add(1)
	case Revalidate:
		// counted by the engine once the validation outcome is known
	}
	log.Trace().
		Str("uri", cacheKey(req)).
		Str("action", decision.Action.String()).
		Msg("Cache lookup")
	if decision.Action == Miss || decision.Action == GatewayTimeout {
		return nil
	}
	return c.respond(decision)
}

// Put runs the admission policy. For mutating methods it removes any
// stored entry for the URI and never stores the response (§13.10).
// The engine must not have read the response body; the returned writer
// is the only channel through which body bytes reach the cache.
func (c *Cache) Put(req *http.Request, res *http.Response) *EntryWriter {
	now := c.clock()
	return c.put(req, res, now, now)
}

func (c *Cache) put(req *http.Request, res *http.Response, requestTime, responseTime time.Time) *EntryWriter {
	key := cacheKey(req)
	if invalidates(req.Method) {
		log.Trace().Str("uri", key).Str("method", req.Method).Msg("Invalidating stored response")
		c.store.Purge(key)
		return nil
	}
	if !storable(req, res) {
		return nil
	}
	entry := entryFromResponse(key, req, res, requestTime, responseTime)
	return &EntryWriter{
		cache:          c,
		entry:          entry,
		declaredLength: declaredLength(res),
	}
}

// update merges a 304 revalidation response into the stored entry and
// returns the freshened entry. A nil return means no matching entry
// was stored; the engine surfaces the 304 to the caller as-is.
func (c *Cache) update(req *http.Request, notModified *http.Response, requestTime, responseTime time.Time) *Entry {
	key := cacheKey(req)
	entry := c.entryFor(key)
	if entry == nil {
		return nil
	}
	freshened := entry.Freshen(notModified.Header, requestTime, responseTime)
	if err := c.commitQuiet(freshened); err != nil {
		log.Error().Err(err).Str("uri", key).Msg("Could not store freshened entry")
		return nil
	}
	log.Trace().Str("uri", key).Msg("Freshened stored response")
	return freshened
}

// commit places a finished entry in the store and counts the success.
func (c *Cache) commit(entry *Entry) error {
	if err := c.commitQuiet(entry); err != nil {
		return err
	}
	c.successes.Add(1)
	log.Trace().Str("uri", entry.URI).Int("bytes", len(entry.Body)).Msg("Cache write")
	return nil
}

func (c *Cache) commitQuiet(entry *Entry) error {
	encoded, err := entryToBytes(entry)
	if err != nil {
		return err
	}
	return c.store.Put(entry.URI, encoded)
}

// entryFor loads and decodes the stored entry for key, nil if none.
func (c *Cache) entryFor(key string) *Entry {
	stored, ok, err := c.store.Get(key)
	if err != nil || !ok {
		if err != nil {
			log.Warn().Err(err).Str("uri", key).Msg("Error reading from store")
		}
		return nil
	}
	entry, err := bytesToEntry(stored)
	if err != nil {
		log.Warn().Err(err).Str("uri", key).Msg("Could not decode stored entry")
		c.store.Purge(key)
		return nil
	}
	return entry
}

func (c *Cache) trackConditionalHit() {
	c.hits.Add(1)
}

func (c *Cache) trackMiss() {
	c.misses.Add(1)
}

// Counters returns a snapshot of the hit/miss/success/abort counters.
func (c *Cache) Counters() Counters {
	return Counters{
		HitCount:     c.hits.Load(),
		MissCount:    c.misses.Load(),
		SuccessCount: c.successes.Load(),
		AbortCount:   c.aborts.Load(),
	}
}

// Keys calls cb for each URI currently cached (tests and admin only).
func (c *Cache) Keys(cb func(string)) {
	c.store.Keys(cb)
}

// Purge removes the entry stored for the given URI, if any.
func (c *Cache) Purge(uri string) {
	c.store.Purge(uri)
}

// respond builds the engine-facing response for a usable entry.
func (c *Cache) respond(decision Decision) *Response {
	entry := decision.Entry
	header := entry.Header()
	header.Set("Age", rfc2616.ToDeltaSeconds(decision.Age))
	for _, warning := range decision.Warnings {
		rfc2616.AddWarning(header, warning)
	}
	return &Response{
		StatusCode: entry.StatusCode,
		Status:     entry.Status,
		Proto:      entry.Proto,
		StatusLine: entry.StatusLine(),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(entry.Body)),
		TLS:        entry.TLS,
		Conditions: decision.Conditions,
		entry:      entry,
	}
}

// Response is what Get hands back to the engine: the stored status
// line, headers, body stream and TLS metadata, plus the conditional
// headers to inject when the entry needs revalidation.
type Response struct {
	StatusCode int
	Status     string
	Proto      string
	StatusLine string
	Header     http.Header
	Body       io.ReadCloser
	// TLS is the preserved handshake metadata, nil for plain entries.
	TLS *TLSInfo
	// Conditions is nil for a fresh hit. Non-nil means the entry may
	// only be used after successful revalidation with these headers.
	// It is empty (but non-nil) when the client supplied its own
	// preconditions.
	Conditions http.Header

	entry *Entry
}

// Fields returns the stored field lines, status line first, for engines
// that deliver headers line by line. Fields are ordered by name; the
// values of one field keep their original relative order.
func (r *Response) Fields() []headermap.Field {
	return r.entry.Headers.Fields()
}

// HTTPResponse converts the cache response for delivery to a client.
func (r *Response) HTTPResponse(req *http.Request) *http.Response {
	major, minor := 1, 1
	if r.Proto != "" {
		if maj, min, ok := http.ParseHTTPVersion(r.Proto); ok {
			major, minor = maj, min
		}
	}
	return &http.Response{
		StatusCode:    r.StatusCode,
		Status:        r.Status,
		Proto:         r.Proto,
		ProtoMajor:    major,
		ProtoMinor:    minor,
		Header:        r.Header,
		Body:          r.Body,
		ContentLength: int64(len(r.entry.Body)),
		Request:       req,
	}
}

// InsecureCache is a decorator that also answers https requests from
// entries stored without TLS metadata. Use only when the transport
// layer's security properties do not matter to the caller.
type InsecureCache struct {
	Inner *Cache
}

func (ic InsecureCache) Get(req *http.Request) *Response {
	return ic.Inner.get(req, true)
}

func (ic InsecureCache) get(req *http.Request, _ bool) *Response {
	return ic.Inner.get(req, true)
}

func (ic InsecureCache) Put(req *http.Request, res *http.Response) *EntryWriter {
	return ic.Inner.Put(req, res)
}

func (ic InsecureCache) put(req *http.Request, res *http.Response, requestTime, responseTime time.Time) *EntryWriter {
	return ic.Inner.put(req, res, requestTime, responseTime)
}

func (ic InsecureCache) update(req *http.Request, notModified *http.Response, requestTime, responseTime time.Time) *Entry {
	return ic.Inner.update(req, notModified, requestTime, responseTime)
}

func (ic InsecureCache) trackConditionalHit() { ic.Inner.trackConditionalHit() }
func (ic InsecureCache) trackMiss()           { ic.Inner.trackMiss() }

// cacheKey is the absolute request URI as presented by the engine.
func cacheKey(req *http.Request) string {
	return req.URL.String()
}

func declaredLength(res *http.Response) int64 {
	if res.ContentLength >= 0 {
		return res.ContentLength
	}
	return -1
}
