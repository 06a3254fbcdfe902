package core

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
)

// defaultUseCaches is the process-wide default for whether requests go
// through the cache. Each request snapshots it at construction; later
// changes affect only requests created after the change.
var defaultUseCaches atomic.Bool

func init() {
	defaultUseCaches.Store(true)
}

// SetDefaultUseCaches changes the process-wide default. Requests
// already constructed keep the default they were born with.
func SetDefaultUseCaches(use bool) {
	defaultUseCaches.Store(use)
}

// DefaultUseCaches returns the current process-wide default.
func DefaultUseCaches() bool {
	return defaultUseCaches.Load()
}

type useCachesKey struct{}

// NewRequest creates a request with the current default-use-caches
// value snapshotted into its context.
func NewRequest(method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	return RequestWithUseCaches(req, DefaultUseCaches()), nil
}

// RequestWithUseCaches returns a copy of the request with its
// use-caches flag set. When false, the cache neither reads nor writes
// for that request.
func RequestWithUseCaches(req *http.Request, use bool) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), useCachesKey{}, use))
}

// useCaches returns the request's snapshotted flag, falling back to
// the current process default for requests constructed without one.
func useCaches(req *http.Request) bool {
	if use, ok := req.Context().Value(useCachesKey{}).(bool); ok {
		return use
	}
	return DefaultUseCaches()
}
