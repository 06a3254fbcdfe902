package rfc2616

import (
	"net/http"
	"strings"
	"time"
)

// CacheControl implements parsing of the "Cache-Control" header field.
//
// §  14.9  Cache-Control
// §
// §     The Cache-Control general-header field is used to specify directives
// §     that MUST be obeyed by all caching mechanisms along the
// §     request/response chain.
// §
// §        Cache-Control   = "Cache-Control" ":" 1#cache-directive
// §
// §        cache-directive = cache-request-directive
// §             | cache-response-directive
type CacheControl struct {
	directives map[string]string
}

// ParseCacheControl takes Cache-Control headers as a slice of strings
// and returns an instance of `CacheControl`.
// Directive names are compared case-insensitively; when a directive is
// repeated the last occurrence wins.
func ParseCacheControl(headers []string) CacheControl {
	m := make(map[string]string)
	for _, header := range headers {
		for _, directive := range strings.Split(header, ",") {
			directive = strings.TrimSpace(directive)
			if directive == "" {
				continue
			}
			parts := strings.SplitN(directive, "=", 2)
			name := strings.ToLower(strings.TrimSpace(parts[0]))
			var arg string
			if len(parts) > 1 {
				// arguments may use token or quoted-string syntax
				arg = strings.Trim(strings.TrimSpace(parts[1]), "\"")
			}
			m[name] = arg
		}
	}
	return CacheControl{m}
}

// ParseRequestCacheControl parses the request's cache directives.
//
// §  14.32  Pragma
// §
// §     "Pragma: no-cache" [...] SHOULD be treated by a client as if the
// §     client had sent "Cache-Control: no-cache".
func ParseRequestCacheControl(h http.Header) CacheControl {
	cc := ParseCacheControl(h.Values("Cache-Control"))
	if hasPragmaNoCache(h) {
		cc.directives["no-cache"] = ""
	}
	return cc
}

// ParseResponseCacheControl parses the response's cache directives,
// treating "Pragma: no-cache" like "Cache-Control: no-cache" as well.
func ParseResponseCacheControl(h http.Header) CacheControl {
	return ParseRequestCacheControl(h)
}

func hasPragmaNoCache(h http.Header) bool {
	for _, pragma := range h.Values("Pragma") {
		for _, token := range strings.Split(pragma, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "no-cache") {
				return true
			}
		}
	}
	return false
}

// Get returns the argument of the specified directive,
// along with a boolean indicating whether the directive is present.
func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.directives[directive]
	return val, ok
}

// HasDirective returns whether the specified directive is present.
func (c CacheControl) HasDirective(directive string) bool {
	_, ok := c.directives[directive]
	return ok
}

// NoCache reports the "no-cache" directive. On a response the entry may
// still be stored but must be revalidated on every use; on a request it
// forces revalidation of any hit.
func (c CacheControl) NoCache() bool {
	return c.HasDirective("no-cache")
}

// NoStore reports the "no-store" directive.
func (c CacheControl) NoStore() bool {
	return c.HasDirective("no-store")
}

// MustRevalidate reports the "must-revalidate" response directive,
// which forbids serving the entry stale under request "max-stale".
func (c CacheControl) MustRevalidate() bool {
	return c.HasDirective("must-revalidate")
}

// Public reports the "public" response directive.
func (c CacheControl) Public() bool {
	return c.HasDirective("public")
}

// OnlyIfCached reports the "only-if-cached" request directive.
func (c CacheControl) OnlyIfCached() bool {
	return c.HasDirective("only-if-cached")
}

// MaxAge returns "max-age" as a duration, along with a boolean
// indicating whether the directive was present with an argument.
func (c CacheControl) MaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("max-age")
}

// SMaxAge returns "s-maxage" as a duration. This is a private cache, so
// the value never enters freshness math; its presence only unlocks
// storage of responses to requests carrying Authorization (§14.8).
func (c CacheControl) SMaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("s-maxage")
}

// MinFresh returns the "min-fresh" request directive as a duration.
func (c CacheControl) MinFresh() (time.Duration, bool) {
	return c.getDeltaSeconds("min-fresh")
}

// MaxStale returns the "max-stale" request directive.
// §     If no value is assigned to max-stale, then the client is willing
// §     to accept a stale response of any age.
// The second return is true when a delta was given, the third when the
// directive is present at all.
func (c CacheControl) MaxStale() (time.Duration, bool, bool) {
	arg, present := c.Get("max-stale")
	if !present {
		return 0, false, false
	}
	if arg == "" {
		return 0, false, true
	}
	return deltaSeconds(arg), true, true
}

func (c CacheControl) getDeltaSeconds(directive string) (time.Duration, bool) {
	if secondsStr, ok := c.Get(directive); ok && secondsStr != "" {
		return deltaSeconds(secondsStr), true
	}
	return 0, false
}
