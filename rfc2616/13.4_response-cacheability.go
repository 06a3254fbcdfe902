package rfc2616

import (
	"net/http"
	"net/url"
)

// §  13.4  Response Cacheability

// CacheableStatus reports whether a response with the given status code
// may be stored. 301 is the only cacheable redirect; 206 is excluded
// because partial content must not create or overwrite a full-resource
// entry (see also ContentRangeForbidden).
func CacheableStatus(code int) bool {
	switch code {
	case http.StatusOK,
		http.StatusNonAuthoritativeInfo,
		http.StatusMultipleChoices,
		http.StatusMovedPermanently,
		http.StatusGone:
		return true
	}
	return false
}

// ContentRangeForbidden reports whether the response advertises partial
// content and is therefore not storable.
func ContentRangeForbidden(status int, h http.Header) bool {
	return status == http.StatusPartialContent || h.Get("Content-Range") != ""
}

// VaryForbidden reports whether the response carries a Vary field with
// a non-empty value. Such responses are not stored at all: refusing
// every variant avoids serving one variant to a request for another.
func VaryForbidden(h http.Header) bool {
	for _, v := range h.Values("Vary") {
		if v != "" {
			return true
		}
	}
	return false
}

// ContentLocationMismatch reports whether the response carries a
// Content-Location resolving to a URI other than the request URI.
// Responses advertising an alternate location are not stored against
// the request URI.
func ContentLocationMismatch(uri *url.URL, h http.Header) bool {
	loc := h.Get("Content-Location")
	if loc == "" || uri == nil {
		return false
	}
	resolved, err := uri.Parse(loc)
	if err != nil {
		return true
	}
	return resolved.String() != uri.String()
}

// AllowsAuthorization reports whether the response directives permit
// storing a response to a request that carried an Authorization field.
//
// §  14.8 [...] a shared cache MUST NOT [store the response] unless [...]
// §     "s-maxage", "must-revalidate" or "public" is also present.
func AllowsAuthorization(cc CacheControl) bool {
	return cc.HasDirective("s-maxage") || cc.MustRevalidate() || cc.Public()
}
