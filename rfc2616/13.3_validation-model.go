package rfc2616

import "net/http"

// §  13.3  Validation Model

// conditionHeaders are the request fields by which a client supplies
// its own preconditions. When any is present the cache passes the
// request through for the client's own conditional exchange instead of
// synthesizing conditions from the stored entry.
var conditionHeaders = []string{
	"If-Modified-Since",
	"If-None-Match",
	"If-Match",
	"If-Unmodified-Since",
	"If-Range",
}

// HasClientConditions reports whether the request carries its own
// precondition fields.
func HasClientConditions(h http.Header) bool {
	for _, name := range conditionHeaders {
		if h.Get(name) != "" {
			return true
		}
	}
	return false
}

// HasValidator reports whether the stored response carries a cache
// validator usable for a conditional request.
//
// §  13.3.4 [...] an HTTP/1.1 origin server SHOULD send both a strong
// §     entity tag and a Last-Modified value.
func HasValidator(h http.Header) bool {
	return h.Get("ETag") != "" || h.Get("Last-Modified") != ""
}

// ConditionalHeaders synthesizes the conditional request fields for
// revalidating a stored response. Both If-None-Match and
// If-Modified-Since are emitted when both validators exist.
func ConditionalHeaders(stored http.Header) http.Header {
	cond := make(http.Header)
	if etag := stored.Get("ETag"); etag != "" {
		cond.Set("If-None-Match", etag)
	}
	if lastModified := stored.Get("Last-Modified"); lastModified != "" {
		cond.Set("If-Modified-Since", lastModified)
	}
	return cond
}
