// Package headermap implements an ordered, case-insensitive HTTP header
// multimap. In addition to regular fields it carries the response status
// line as a distinguished field, so that a stored response can be read
// back line by line, status line first, in the order its fields were
// added.
package headermap

import (
	"net/http"
	"net/textproto"
	"strings"
)

// Field is a single header line. A Field with an empty Name holds the
// status line (e.g. "HTTP/1.1 200 OK").
type Field struct {
	Name  string
	Value string
}

// IsStatusLine reports whether the field carries the status line.
func (f Field) IsStatusLine() bool {
	return f.Name == ""
}

// Map is an ordered header multimap. Lookups are case-insensitive,
// read-back preserves insertion order. The zero value is ready to use.
type Map struct {
	statusLine string
	fields     []Field
}

// FromHTTPHeader copies the given http.Header into a new Map.
// Go's map iteration order is not stable, so the field order of the
// result is canonicalized by sorting within http.Header iteration;
// multiple values of one field keep their relative order.
func FromHTTPHeader(h http.Header) *Map {
	m := &Map{}
	for _, name := range sortedNames(h) {
		for _, v := range h[name] {
			m.Add(name, v)
		}
	}
	return m
}

func sortedNames(h http.Header) []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	// insertion sort, header counts are small
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}

// SetStatusLine records the status line.
func (m *Map) SetStatusLine(line string) {
	m.statusLine = line
}

// StatusLine returns the recorded status line, or "".
func (m *Map) StatusLine() string {
	return m.statusLine
}

// Add appends a field, keeping any existing values for the same name.
func (m *Map) Add(name, value string) {
	m.fields = append(m.fields, Field{Name: canonical(name), Value: value})
}

// Set replaces all values for name with the single given value.
func (m *Map) Set(name, value string) {
	m.Del(name)
	m.Add(name, value)
}

// Del removes all values for name.
func (m *Map) Del(name string) {
	name = canonical(name)
	kept := m.fields[:0]
	for _, f := range m.fields {
		if f.Name != name {
			kept = append(kept, f)
		}
	}
	m.fields = kept
}

// Get returns the first value for name, or "".
func (m *Map) Get(name string) string {
	name = canonical(name)
	for _, f := range m.fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Has reports whether at least one value exists for name.
func (m *Map) Has(name string) bool {
	name = canonical(name)
	for _, f := range m.fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Values returns all values for name in insertion order.
func (m *Map) Values(name string) []string {
	name = canonical(name)
	var values []string
	for _, f := range m.fields {
		if f.Name == name {
			values = append(values, f.Value)
		}
	}
	return values
}

// Fields returns the ordered field lines, status line first if set.
func (m *Map) Fields() []Field {
	fields := make([]Field, 0, len(m.fields)+1)
	if m.statusLine != "" {
		fields = append(fields, Field{Value: m.statusLine})
	}
	return append(fields, m.fields...)
}

// Len returns the number of regular fields, excluding the status line.
func (m *Map) Len() int {
	return len(m.fields)
}

// HTTPHeader converts the regular fields to an http.Header.
func (m *Map) HTTPHeader() http.Header {
	h := make(http.Header, len(m.fields))
	for _, f := range m.fields {
		h[f.Name] = append(h[f.Name], f.Value)
	}
	return h
}

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	c := &Map{statusLine: m.statusLine}
	c.fields = append(c.fields, m.fields...)
	return c
}

// canonical normalizes a field name to its canonical MIME form,
// e.g. "content-length" -> "Content-Length".
func canonical(name string) string {
	return textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
}
