package core

import (
	"net/http"
	"time"

	"github.com/always-cache/client-cache/rfc2616"
)

// Action is the outcome of a cache lookup.
type Action int

const (
	// Miss: no usable entry; the engine fetches normally.
	Miss Action = iota
	// Fresh: the entry may be served without contacting the origin.
	Fresh
	// Revalidate: the entry may be served only after a successful
	// conditional exchange with the origin.
	Revalidate
	// GatewayTimeout: the request carried "only-if-cached" and no
	// usable entry exists; the engine synthesizes a 504.
	GatewayTimeout
)

func (a Action) String() string {
	switch a {
	case Fresh:
		return "fresh"
	case Revalidate:
		return "revalidate"
	case GatewayTimeout:
		return "gateway-timeout"
	}
	return "miss"
}

// Decision is the full result of the lookup policy.
type Decision struct {
	Action Action
	Entry  *Entry
	// Age of the entry at lookup time, for the Age header.
	Age time.Duration
	// Conditions to inject into the outgoing request on Revalidate.
	// Empty but non-nil when the client supplied its own conditions.
	Conditions http.Header
	// Warnings to attach to the served response.
	Warnings []string
}

// storable decides whether a response may be stored (admission).
func storable(req *http.Request, res *http.Response) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if !useCaches(req) {
		return false
	}
	if !rfc2616.CacheableStatus(res.StatusCode) {
		return false
	}
	reqCC := rfc2616.ParseRequestCacheControl(req.Header)
	resCC := rfc2616.ParseResponseCacheControl(res.Header)
	if reqCC.NoStore() || resCC.NoStore() {
		return false
	}
	if rfc2616.VaryForbidden(res.Header) {
		return false
	}
	// a partial response must not overwrite or create a full entry
	if rfc2616.ContentRangeForbidden(res.StatusCode, res.Header) {
		return false
	}
	if rfc2616.ContentLocationMismatch(req.URL, res.Header) {
		return false
	}
	if req.Header.Get("Authorization") != "" && !rfc2616.AllowsAuthorization(resCC) {
		return false
	}
	return true
}

// lookup decides what to do with the stored entry (or its absence)
// for the given request, per the §13.2 expiration model.
// "only-if-cached" forbids contacting the origin, so any outcome that
// would need the network degrades to GatewayTimeout.
func (c *Cache) lookup(req *http.Request, allowInsecure bool) Decision {
	decision := c.lookupDecision(req, allowInsecure)
	if decision.Action == Revalidate &&
		rfc2616.ParseRequestCacheControl(req.Header).OnlyIfCached() {
		return Decision{Action: GatewayTimeout}
	}
	return decision
}

func (c *Cache) lookupDecision(req *http.Request, allowInsecure bool) Decision {
	if req.Method != http.MethodGet {
		return Decision{Action: Miss}
	}
	if !useCaches(req) {
		return Decision{Action: Miss}
	}

	reqCC := rfc2616.ParseRequestCacheControl(req.Header)
	missAction := Miss
	if reqCC.OnlyIfCached() {
		missAction = GatewayTimeout
	}

	entry := c.entryFor(cacheKey(req))
	if entry == nil {
		return Decision{Action: missAction}
	}
	if !secureMatch(req, entry, allowInsecure) {
		return Decision{Action: missAction}
	}
	if reqCC.NoStore() {
		return Decision{Action: missAction}
	}

	// the client supplied its own preconditions; pass the entry
	// through without synthesizing conditions of our own
	if rfc2616.HasClientConditions(req.Header) {
		return Decision{Action: Revalidate, Entry: entry, Conditions: make(http.Header)}
	}

	now := c.clock()
	freshness := rfc2616.ComputeFreshness(entry.Header(), entry.URL(), now, entry.ResponseTime)
	resCC := rfc2616.ParseResponseCacheControl(entry.Header())

	if resCC.NoCache() || reqCC.NoCache() {
		return revalidateDecision(entry, freshness)
	}

	if isFreshEnough(freshness, reqCC) {
		return freshDecision(entry, freshness, nil)
	}

	// stale, but the client may have allowed it
	if staleAllowed(freshness, reqCC, resCC) {
		return freshDecision(entry, freshness, []string{rfc2616.WarningResponseIsStale})
	}

	if rfc2616.HasValidator(entry.Header()) {
		return revalidateDecision(entry, freshness)
	}

	return Decision{Action: missAction}
}

// isFreshEnough applies the request's freshness constraints on top of
// the computed freshness. A request "max-age" caps the lifetime and
// "min-fresh" demands that much lifetime be left over.
func isFreshEnough(f rfc2616.Freshness, reqCC rfc2616.CacheControl) bool {
	lifetime := f.Lifetime
	if reqMaxAge, ok := reqCC.MaxAge(); ok && reqMaxAge < lifetime {
		lifetime = reqMaxAge
	}
	if minFresh, ok := reqCC.MinFresh(); ok {
		lifetime -= minFresh
	}
	return f.Age < lifetime
}

// staleAllowed reports whether a stale entry may still be served under
// the request's max-stale allowance. Forbidden by must-revalidate.
func staleAllowed(f rfc2616.Freshness, reqCC, resCC rfc2616.CacheControl) bool {
	limit, hasLimit, present := reqCC.MaxStale()
	if !present || resCC.MustRevalidate() {
		return false
	}
	return !hasLimit || f.Staleness() <= limit
}

func freshDecision(entry *Entry, f rfc2616.Freshness, warnings []string) Decision {
	if f.Heuristic && f.Lifetime >= rfc2616.HeuristicWarningThreshold {
		warnings = append(warnings, rfc2616.WarningHeuristicExpiration)
	}
	return Decision{
		Action:   Fresh,
		Entry:    entry,
		Age:      f.Age,
		Warnings: warnings,
	}
}

func revalidateDecision(entry *Entry, f rfc2616.Freshness) Decision {
	return Decision{
		Action:     Revalidate,
		Entry:      entry,
		Age:        f.Age,
		Conditions: rfc2616.ConditionalHeaders(entry.Header()),
	}
}

// secureMatch checks the TLS metadata invariant: a secure entry only
// answers https requests, and an https request is only answered by a
// secure entry unless the insecure decorator is in use.
func secureMatch(req *http.Request, entry *Entry, allowInsecure bool) bool {
	https := req.URL.Scheme == "https"
	if entry.TLS != nil {
		return https
	}
	return !https || allowInsecure
}

func invalidates(method string) bool {
	return rfc2616.InvalidatesCache(method)
}
