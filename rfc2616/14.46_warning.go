package rfc2616

import "net/http"

// §  14.46  Warning
// §
// §     The Warning general-header field is used to carry additional
// §     information about the status or transformation of a message [...]
// §
// §        warning-value = warn-code SP warn-agent SP warn-text

// warnAgent identifies this cache in generated warnings. The value
// matches what clients of the historical URLConnection cache expect.
const warnAgent = "HttpURLConnection"

const (
	// WarningResponseIsStale is attached when a stale entry is served
	// under a request max-stale allowance (warn code 110).
	WarningResponseIsStale = `110 ` + warnAgent + ` "Response is stale"`

	// WarningHeuristicExpiration is attached when an entry served fresh
	// got its lifetime from the heuristic and that lifetime is 24 hours
	// or more (warn code 113).
	WarningHeuristicExpiration = `113 ` + warnAgent + ` "Heuristic expiration"`
)

// AddWarning appends a warning-value. Warnings stack, so Add is used
// rather than Set.
func AddWarning(h http.Header, warning string) {
	h.Add("Warning", warning)
}
