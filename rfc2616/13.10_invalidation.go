package rfc2616

// §  13.10  Invalidation After Updates or Deletions
// §
// §     Some HTTP methods MUST cause a cache to invalidate an entity [...]
// §        PUT, DELETE, POST

// InvalidatesCache reports whether a request with the given method
// removes any stored entry for its URI before being forwarded.
func InvalidatesCache(method string) bool {
	switch method {
	case "POST", "PUT", "DELETE":
		return true
	}
	return false
}
