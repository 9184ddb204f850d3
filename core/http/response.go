package http

import (
	"bytes"
	"io"
	stdhttp "net/http"
)

const (
	textPlain = "text/plain; charset=utf-8"
	textHTML  = "text/html; charset=utf-8"
)

// Status is an explicit status code result; handlers may return it directly
type Status int

// RedirectType selects the redirect status code
type RedirectType int

const (
	RedirectSeeOther  RedirectType = iota // 303
	RedirectPermanent                     // 301
	RedirectTemporary                     // 307
)

func (t RedirectType) code() int {
	switch t {
	case RedirectPermanent:
		return stdhttp.StatusMovedPermanently
	case RedirectTemporary:
		return stdhttp.StatusTemporaryRedirect
	default:
		return stdhttp.StatusSeeOther
	}
}

// Response is the canonical response produced by routes and hooks.
// Contents is invoked once by the transport to write the body.
type Response struct {
	StatusCode   int
	ReasonPhrase string
	ContentType  string
	Header       Header
	Cookies      []*stdhttp.Cookie
	Contents     func(w io.Writer) error
}

func noContents(io.Writer) error { return nil }

// NewResponse creates an empty 200 response
func NewResponse() *Response {
	return &Response{
		StatusCode: stdhttp.StatusOK,
		Header:     Header{},
		Contents:   noContents,
	}
}

// WithStatus sets the status code
func (r *Response) WithStatus(code int) *Response {
	r.StatusCode = code
	return r
}

// WithHeader sets a response header
func (r *Response) WithHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = Header{}
	}
	r.Header.Set(key, value)
	return r
}

// WithContentType sets the content type
func (r *Response) WithContentType(contentType string) *Response {
	r.ContentType = contentType
	return r
}

// WithCookie appends a cookie
func (r *Response) WithCookie(cookie *stdhttp.Cookie) *Response {
	r.Cookies = append(r.Cookies, cookie)
	return r
}

// Reason returns the reason phrase, falling back to the standard status text
func (r *Response) Reason() string {
	if r.ReasonPhrase != "" {
		return r.ReasonPhrase
	}
	return stdhttp.StatusText(r.StatusCode)
}

// WriteTo writes the body produced by Contents
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	if r.Contents == nil {
		return 0, nil
	}
	cw := &countingWriter{w: w}
	err := r.Contents(cw)
	return cw.n, err
}

// Body renders Contents into memory; meant for tests and small responses
func (r *Response) Body() ([]byte, error) {
	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	return buf.Bytes(), err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// NewStatus creates a body-less response with the given status code
func NewStatus(code int) *Response {
	return NewResponse().WithStatus(code)
}

// NewText creates a UTF-8 plain text response
func NewText(code int, contents string) *Response {
	return newBytes(code, textPlain, []byte(contents))
}

// NewHTML creates a UTF-8 HTML response
func NewHTML(code int, html string) *Response {
	return newBytes(code, textHTML, []byte(html))
}

// NewBytes creates a response carrying raw bytes
func NewBytes(code int, contentType string, data []byte) *Response {
	return newBytes(code, contentType, data)
}

func newBytes(code int, contentType string, data []byte) *Response {
	resp := NewResponse().WithStatus(code).WithContentType(contentType)
	resp.Contents = func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}
	return resp
}

// NewRedirect creates a redirect to location
func NewRedirect(location string, kind RedirectType) *Response {
	return NewStatus(kind.code()).
		WithHeader("Location", location).
		WithContentType(textHTML)
}

// NewStream creates a response whose body is copied from a stream opened at write time
func NewStream(open func() (io.ReadCloser, error), contentType string) *Response {
	resp := NewResponse().WithContentType(contentType)
	resp.Contents = func(w io.Writer) error {
		rc, err := open()
		if err != nil {
			return err
		}
		defer rc.Close()
		_, err = io.Copy(w, rc)
		return err
	}
	return resp
}

// NotFound creates the 404 response used when no route matches
func NotFound() *Response {
	return NewText(stdhttp.StatusNotFound, "Not Found")
}

// InternalServerError creates the fixed 500 response
func InternalServerError() *Response {
	return NewStatus(stdhttp.StatusInternalServerError)
}
