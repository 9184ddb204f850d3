package http

import (
	"io"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

// Header is a multi-valued header map keyed by canonical header name
type Header map[string][]string

// Add appends a value to the header
func (h Header) Add(key, value string) {
	k := textproto.CanonicalMIMEHeaderKey(key)
	h[k] = append(h[k], value)
}

// Set replaces all values of the header
func (h Header) Set(key, value string) {
	h[textproto.CanonicalMIMEHeaderKey(key)] = []string{value}
}

// Get returns the first value of the header
func (h Header) Get(key string) string {
	if v := h[textproto.CanonicalMIMEHeaderKey(key)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns all values of the header
func (h Header) Values(key string) []string {
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

// Has reports whether the header is present
func (h Header) Has(key string) bool {
	_, ok := h[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}

// Del removes the header
func (h Header) Del(key string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(key))
}

// Clone returns a deep copy of the header
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// URL is the request location split the way the dispatcher needs it.
// Path is relative to BasePath; Port is 0 for the scheme default.
type URL struct {
	Scheme   string
	HostName string
	Port     int
	BasePath string
	Path     string
	Query    string
}

// String rebuilds the absolute URL
func (u URL) String() string {
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
	}
	b.WriteString(u.HostName)
	if u.Port != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(u.Port))
	}
	b.WriteString(u.BasePath)
	b.WriteString(u.Path)
	if u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	return b.String()
}

// Request is a fully parsed HTTP request handed to the engine by a transport
type Request struct {
	Method     string
	URL        URL
	Header     Header
	Body       io.ReadCloser
	RemoteAddr string
	Proto      string

	query url.Values
}

// NewRequest creates a request for method and an app-local path, with an optional query string
func NewRequest(method, target string) *Request {
	u := URL{Scheme: "http", HostName: "localhost", Path: target}
	if idx := strings.IndexByte(target, '?'); idx != -1 {
		u.Path = target[:idx]
		u.Query = target[idx+1:]
	}
	return &Request{
		Method: method,
		URL:    u,
		Header: Header{},
		Body:   io.NopCloser(strings.NewReader("")),
		Proto:  "HTTP/1.1",
	}
}

// Path returns the app-local request path
func (r *Request) Path() string {
	return r.URL.Path
}

// Query gets a query parameter
func (r *Request) Query(key string) string {
	if r.query == nil {
		q, err := url.ParseQuery(r.URL.Query)
		if err != nil {
			q = url.Values{}
		}
		r.query = q
	}
	return r.query.Get(key)
}

// ReadBody reads the whole request body
func (r *Request) ReadBody() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(r.Body)
}

// AcceptsEncoding reports whether the Accept-Encoding header allows the coding.
// An explicit entry wins over "*", and a quality of zero refuses the coding.
func (r *Request) AcceptsEncoding(coding string) bool {
	wildcard := false
	for _, v := range r.Header.Values("Accept-Encoding") {
		for _, entry := range strings.Split(v, ",") {
			name, params, _ := strings.Cut(entry, ";")
			name = strings.TrimSpace(name)
			switch {
			case strings.EqualFold(name, coding):
				return !zeroQuality(params)
			case name == "*":
				wildcard = !zeroQuality(params)
			}
		}
	}
	return wildcard
}

// zeroQuality reports whether the parameters carry q=0
func zeroQuality(params string) bool {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil && q == 0
	}
	return false
}

// Close releases the request body
func (r *Request) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}
