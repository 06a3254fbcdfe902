// Package serializer converts cache entries to and from their stored
// byte representation. The representation is an HTTP/1.1-style message
// with a two-line preamble (request line, exchange timestamps), so that
// stored entries stay human-inspectable in any storage backend.
package serializer

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	headermap "github.com/always-cache/client-cache/pkg/header-map"
)

// Internal fields carrying metadata that has no header representation
// of its own. They are appended before encoding and stripped on decode.
const (
	cipherSuiteFieldName = "Clientcache-Tls-Cipher-Suite"
	peerCertFieldName    = "Clientcache-Tls-Peer-Cert"
	localCertFieldName   = "Clientcache-Tls-Local-Cert"
)

// Entry is the serializable form of a cached response.
type Entry struct {
	Method       string
	URI          string
	Headers      *headermap.Map
	Body         []byte
	RequestTime  time.Time
	ResponseTime time.Time

	// TLS metadata; Secure is set iff the response came over TLS.
	Secure            bool
	CipherSuite       uint16
	PeerCertificates  [][]byte // DER
	LocalCertificates [][]byte // DER
}

// EntryToBytes encodes the entry.
func EntryToBytes(e Entry) ([]byte, error) {
	if e.Headers == nil || e.Headers.StatusLine() == "" {
		return nil, fmt.Errorf("entry has no status line")
	}
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "%s %s\r\n", e.Method, e.URI)
	fmt.Fprintf(buf, "%d %d\r\n", e.RequestTime.Unix(), e.ResponseTime.Unix())
	buf.WriteString(e.Headers.StatusLine())
	buf.WriteString("\r\n")
	for _, f := range e.Headers.Fields() {
		if f.IsStatusLine() {
			continue
		}
		fmt.Fprintf(buf, "%s: %s\r\n", f.Name, f.Value)
	}
	if e.Secure {
		fmt.Fprintf(buf, "%s: %d\r\n", cipherSuiteFieldName, e.CipherSuite)
		writeCerts(buf, peerCertFieldName, e.PeerCertificates)
		writeCerts(buf, localCertFieldName, e.LocalCertificates)
	}
	buf.WriteString("\r\n")
	buf.Write(e.Body)
	return buf.Bytes(), nil
}

func writeCerts(buf *bytes.Buffer, field string, certs [][]byte) {
	for _, der := range certs {
		fmt.Fprintf(buf, "%s: %s\r\n", field, base64.StdEncoding.EncodeToString(der))
	}
}

// BytesToEntry decodes a stored entry.
func BytesToEntry(b []byte) (Entry, error) {
	e := Entry{Headers: &headermap.Map{}}
	r := bufio.NewReader(bytes.NewReader(b))

	requestLine, err := readLine(r)
	if err != nil {
		return e, err
	}
	method, uri, found := strings.Cut(requestLine, " ")
	if !found {
		return e, fmt.Errorf("malformed request line: %q", requestLine)
	}
	e.Method = method
	e.URI = uri

	timeLine, err := readLine(r)
	if err != nil {
		return e, err
	}
	if e.RequestTime, e.ResponseTime, err = parseTimes(timeLine); err != nil {
		return e, err
	}

	statusLine, err := readLine(r)
	if err != nil {
		return e, err
	}
	e.Headers.SetStatusLine(statusLine)

	for {
		line, err := readLine(r)
		if err != nil {
			return e, err
		}
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return e, fmt.Errorf("malformed header line: %q", line)
		}
		value = strings.TrimLeft(value, " ")
		switch name {
		case cipherSuiteFieldName:
			suite, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return e, err
			}
			e.Secure = true
			e.CipherSuite = uint16(suite)
		case peerCertFieldName:
			if e.PeerCertificates, err = appendCert(e.PeerCertificates, value); err != nil {
				return e, err
			}
		case localCertFieldName:
			if e.LocalCertificates, err = appendCert(e.LocalCertificates, value); err != nil {
				return e, err
			}
		default:
			e.Headers.Add(name, value)
		}
	}

	e.Body, err = io.ReadAll(r)
	return e, err
}

func appendCert(certs [][]byte, encoded string) ([][]byte, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return certs, err
	}
	return append(certs, der), nil
}

func parseTimes(line string) (time.Time, time.Time, error) {
	reqStr, resStr, found := strings.Cut(line, " ")
	if !found {
		return time.Time{}, time.Time{}, fmt.Errorf("malformed time line: %q", line)
	}
	reqUnix, err := strconv.ParseInt(reqStr, 10, 64)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	resUnix, err := strconv.ParseInt(resStr, 10, 64)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return time.Unix(reqUnix, 0), time.Unix(resUnix, 0), nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
