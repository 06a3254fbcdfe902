package core

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	headermap "github.com/always-cache/client-cache/pkg/header-map"
)

// Entry is one cached response. It is immutable after commit; the only
// mutation path is the 304 header merge performed via Freshen.
type Entry struct {
	// URI the entry is stored under, as presented by the engine.
	URI string
	// Method of the originating request, always GET for admitted entries.
	Method string
	// StatusCode and the full status line of the stored response.
	StatusCode int
	Proto      string
	Status     string
	// Headers is the complete ordered field set from the origin,
	// status line included.
	Headers *headermap.Map
	// Body is the stored byte sequence.
	Body []byte
	// TLS is present iff the response was received over TLS.
	TLS *TLSInfo
	// RequestTime and ResponseTime bracket the network exchange that
	// produced the response. ResponseTime stands in for a missing Date
	// header in freshness math.
	RequestTime  time.Time
	ResponseTime time.Time
}

// TLSInfo is the handshake metadata preserved for a secure response.
type TLSInfo struct {
	CipherSuite       uint16
	PeerCertificates  []*x509.Certificate
	LocalCertificates []*x509.Certificate
}

// TLSInfoFromConnectionState captures the metadata of a live handshake.
func TLSInfoFromConnectionState(cs *tls.ConnectionState) *TLSInfo {
	if cs == nil {
		return nil
	}
	return &TLSInfo{
		CipherSuite:      cs.CipherSuite,
		PeerCertificates: cs.PeerCertificates,
	}
}

// CipherSuiteName returns the textual name of the negotiated suite.
func (t *TLSInfo) CipherSuiteName() string {
	return tls.CipherSuiteName(t.CipherSuite)
}

// PeerPrincipal returns the subject of the peer's leaf certificate.
func (t *TLSInfo) PeerPrincipal() string {
	if len(t.PeerCertificates) == 0 {
		return ""
	}
	return t.PeerCertificates[0].Subject.String()
}

// LocalPrincipal returns the subject of the local leaf certificate.
func (t *TLSInfo) LocalPrincipal() string {
	if len(t.LocalCertificates) == 0 {
		return ""
	}
	return t.LocalCertificates[0].Subject.String()
}

// URL parses the entry's URI.
func (e *Entry) URL() *url.URL {
	u, err := url.Parse(e.URI)
	if err != nil {
		return nil
	}
	return u
}

// Header returns the entry's regular fields as an http.Header copy.
func (e *Entry) Header() http.Header {
	return e.Headers.HTTPHeader()
}

// StatusLine returns the stored status line.
func (e *Entry) StatusLine() string {
	return e.Headers.StatusLine()
}

// Freshen merges the headers of a 304 (Not Modified) revalidation
// response into the entry, returning the freshened copy. Fields from
// the 304 overwrite stored fields, except content-defining fields
// (Content-Length, Content-Encoding, Content-Type, Content-Range and
// any other Content-*), which stick to the original. The merge keeps
// gzip transparency through revalidation: the 304 carries no body, so
// its content headers describe nothing.
func (e *Entry) Freshen(notModified http.Header, requestTime, responseTime time.Time) *Entry {
	merged := e.Headers.Clone()
	for name, values := range notModified {
		if isContentHeader(name) {
			continue
		}
		merged.Del(name)
		for _, v := range values {
			merged.Add(name, v)
		}
	}
	freshened := *e
	freshened.Headers = merged
	freshened.RequestTime = requestTime
	freshened.ResponseTime = responseTime
	return &freshened
}

func isContentHeader(name string) bool {
	return len(name) >= 8 && strings.EqualFold(name[:8], "Content-")
}

// entryFromResponse builds the uncommitted entry for a storable
// response. The body is filled in by the EntryWriter on commit.
func entryFromResponse(uri string, req *http.Request, res *http.Response, requestTime, responseTime time.Time) *Entry {
	headers := headermap.FromHTTPHeader(res.Header)
	headers.SetStatusLine(statusLine(res))
	return &Entry{
		URI:          uri,
		Method:       req.Method,
		StatusCode:   res.StatusCode,
		Proto:        res.Proto,
		Status:       res.Status,
		Headers:      headers,
		TLS:          TLSInfoFromConnectionState(res.TLS),
		RequestTime:  requestTime,
		ResponseTime: responseTime,
	}
}

func statusLine(res *http.Response) string {
	proto := res.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	status := res.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode))
	}
	return proto + " " + status
}
