package rfc2616

import (
	"net/http"
	"net/url"
	"time"
)

// §  13.2  Expiration Model

// HeuristicWarningThreshold is the heuristic lifetime at or above which
// a served response must carry Warning 113.
//
// §  13.2.4 [...] if the calculated age is greater than 24 hours and the
// §     response's age is greater than 24 hours [...] attach Warning 113
const HeuristicWarningThreshold = 24 * time.Hour

// heuristicFraction divides the interval since Last-Modified when no
// explicit expiration is present (the "10% heuristic", §13.2.4).
const heuristicFraction = 10

// Freshness is the result of applying the §13.2 age and lifetime math
// to a stored response at lookup time.
type Freshness struct {
	// Age of the response, always >= 0.
	Age time.Duration
	// Lifetime the response stays fresh. Negative when an Expires date
	// precedes the Date header; such entries are immediately stale.
	Lifetime time.Duration
	// Heuristic is set when Lifetime came from the Last-Modified
	// heuristic rather than explicit expiration information.
	Heuristic bool
}

// Fresh reports whether the age is within the freshness lifetime.
// The comparison is strict: a response whose age equals its lifetime
// is already stale, so "max-age=0" always forces revalidation.
func (f Freshness) Fresh() bool {
	return f.Age < f.Lifetime
}

// Staleness returns how far past its lifetime the response is.
func (f Freshness) Staleness() time.Duration {
	return f.Age - f.Lifetime
}

// ComputeFreshness applies the expiration model to a stored response.
// The response headers are given in h, uri is the request URI the
// response was stored under, and received is the local clock value at
// the time the response arrived (used when no Date header is present).
//
// §  13.2.3 [...] the age of a response is the time since it was sent
// §     by, or successfully validated with, the origin server.
func ComputeFreshness(h http.Header, uri *url.URL, now, received time.Time) Freshness {
	served := received
	if date, err := HttpDate(h.Get("Date")); err == nil {
		served = date
	}

	f := Freshness{Age: now.Sub(served)}
	if f.Age < 0 {
		f.Age = 0
	}

	cc := ParseResponseCacheControl(h)

	// max-age overrides Expires when both are present
	if maxAge, ok := cc.MaxAge(); ok {
		f.Lifetime = maxAge
		return f
	}
	if expires, err := HttpDate(h.Get("Expires")); err == nil {
		f.Lifetime = expires.Sub(served)
		return f
	}
	// §  13.9 [...] caches MUST NOT treat responses to [URIs with "?" in
	// §     the rel_path part] as fresh unless the server provides an
	// §     explicit expiration time.
	if uri != nil && uri.RawQuery != "" {
		return f
	}
	if lastModified, err := HttpDate(h.Get("Last-Modified")); err == nil {
		f.Lifetime = served.Sub(lastModified) / heuristicFraction
		f.Heuristic = true
	}
	return f
}
