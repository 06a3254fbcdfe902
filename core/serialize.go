package core

import (
	"crypto/x509"
	"fmt"
	"strconv"
	"strings"

	serializer "github.com/always-cache/client-cache/pkg/entry-serializer"
)

func entryToBytes(e *Entry) ([]byte, error) {
	se := serializer.Entry{
		Method:       e.Method,
		URI:          e.URI,
		Headers:      e.Headers,
		Body:         e.Body,
		RequestTime:  e.RequestTime,
		ResponseTime: e.ResponseTime,
	}
	if e.TLS != nil {
		se.Secure = true
		se.CipherSuite = e.TLS.CipherSuite
		for _, cert := range e.TLS.PeerCertificates {
			se.PeerCertificates = append(se.PeerCertificates, cert.Raw)
		}
		for _, cert := range e.TLS.LocalCertificates {
			se.LocalCertificates = append(se.LocalCertificates, cert.Raw)
		}
	}
	return serializer.EntryToBytes(se)
}

func bytesToEntry(b []byte) (*Entry, error) {
	se, err := serializer.BytesToEntry(b)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		URI:          se.URI,
		Method:       se.Method,
		Headers:      se.Headers,
		Body:         se.Body,
		RequestTime:  se.RequestTime,
		ResponseTime: se.ResponseTime,
	}
	if e.Proto, e.StatusCode, e.Status, err = parseStatusLine(se.Headers.StatusLine()); err != nil {
		return nil, err
	}
	if se.Secure {
		tlsInfo := &TLSInfo{CipherSuite: se.CipherSuite}
		if tlsInfo.PeerCertificates, err = parseCerts(se.PeerCertificates); err != nil {
			return nil, err
		}
		if tlsInfo.LocalCertificates, err = parseCerts(se.LocalCertificates); err != nil {
			return nil, err
		}
		e.TLS = tlsInfo
	}
	return e, nil
}

func parseCerts(raw [][]byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, der := range raw {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// parseStatusLine splits "HTTP/1.1 200 OK" into proto, code, and the
// "200 OK" status as kept by http.Response.
func parseStatusLine(line string) (proto string, code int, status string, err error) {
	proto, status, found := strings.Cut(line, " ")
	if !found {
		return "", 0, "", fmt.Errorf("malformed status line: %q", line)
	}
	codeStr, _, _ := strings.Cut(status, " ")
	code, err = strconv.Atoi(codeStr)
	if err != nil {
		return "", 0, "", fmt.Errorf("malformed status line: %q", line)
	}
	return proto, code, status, nil
}
