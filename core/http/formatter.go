package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/searchktools/fast-host/core/codec"
)

var (
	ErrUnsafePath     = errors.New("file is outside the safe roots")
	ErrIsDirectory    = errors.New("is a directory")
	ErrUnknownCharset = errors.New("unknown charset")
)

// Formatter builds responses for a single request.
// The resolver binds one to every Context before the action runs.
type Formatter struct {
	ctx       *Context
	codecs    *codec.Registry
	safeRoots []string
}

// NewFormatter creates a formatter bound to c
func NewFormatter(c *Context, codecs *codec.Registry, safeRoots []string) *Formatter {
	if codecs == nil {
		codecs = codec.Default()
	}
	roots := make([]string, 0, len(safeRoots))
	for _, root := range safeRoots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		roots = append(roots, abs)
	}
	return &Formatter{ctx: c, codecs: codecs, safeRoots: roots}
}

// Context returns the bound request context
func (f *Formatter) Context() *Context {
	return f.ctx
}

// AsText creates a UTF-8 plain text response
func (f *Formatter) AsText(contents string) *Response {
	return NewText(200, contents)
}

// AsTextCharset creates a plain text response encoded with the named charset
func (f *Formatter) AsTextCharset(contents, charset string) (*Response, error) {
	return NewTextCharset(200, contents, charset)
}

// AsHTML creates a UTF-8 HTML response
func (f *Formatter) AsHTML(html string) *Response {
	return NewHTML(200, html)
}

// AsJSON encodes model as JSON
func (f *Formatter) AsJSON(status int, model any) (*Response, error) {
	return f.encode("application/json", status, model)
}

// AsXML encodes model as XML
func (f *Formatter) AsXML(status int, model any) (*Response, error) {
	return f.encode("application/xml", status, model)
}

// AsProtobuf encodes a proto message
func (f *Formatter) AsProtobuf(status int, model any) (*Response, error) {
	return f.encode("application/x-protobuf", status, model)
}

func (f *Formatter) encode(contentType string, status int, model any) (*Response, error) {
	c, err := f.codecs.Lookup(contentType)
	if err != nil {
		return nil, err
	}
	data, err := c.Encode(model)
	if err != nil {
		return nil, fmt.Errorf("%s encode: %w", c.Name(), err)
	}
	ct := c.ContentType()
	if c.Name() != "protobuf" {
		ct += "; charset=utf-8"
	}
	return NewBytes(status, ct, data), nil
}

// AsRedirect redirects to location; "~/" paths are expanded onto the base path
func (f *Formatter) AsRedirect(location string, kind RedirectType) *Response {
	if f.ctx != nil {
		location = f.ctx.ToFullPath(location)
	}
	return NewRedirect(location, kind)
}

// FromStream copies the body from a stream opened at write time
func (f *Formatter) FromStream(open func() (io.ReadCloser, error), contentType string) *Response {
	return NewStream(open, contentType)
}

// AsFile serves a file from disk when it lies under one of the safe roots
func (f *Formatter) AsFile(path, contentType string) (*Response, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(abs))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return NewStream(func() (io.ReadCloser, error) { return os.Open(abs) }, contentType), nil
}

// safePath resolves path, following symlinks, and checks that the target
// lies under a safe root
func (f *Formatter) safePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	for _, root := range f.safeRoots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsafePath, path)
}

// NewTextCharset creates a plain text response encoded with the named charset
func NewTextCharset(code int, contents, charset string) (*Response, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharset, charset)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = strings.ToLower(charset)
	}
	data, err := enc.NewEncoder().String(contents)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return NewBytes(code, "text/plain; charset="+name, []byte(data)), nil
}
