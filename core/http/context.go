package http

import (
	"errors"
	"io"
	"strings"
)

// RouteInfo describes the route a request was resolved to
type RouteInfo interface {
	Name() string
	Method() string
	Path() string
}

// Context is the per-request state shared by hooks and the route action.
// It is owned by the goroutine serving the request.
type Context struct {
	Request   *Request
	Response  *Response
	Route     RouteInfo
	Params    Params
	Formatter *Formatter

	items map[string]any
}

// NewContext creates a context for an incoming request
func NewContext(req *Request) *Context {
	return &Context{
		Request: req,
		Params:  Params{},
	}
}

// Set stores a value for later hooks
func (c *Context) Set(key string, value any) {
	if c.items == nil {
		c.items = make(map[string]any)
	}
	c.items[key] = value
}

// Get returns a stored value
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.items[key]
	return v, ok
}

// Delete removes a stored value without closing it
func (c *Context) Delete(key string) {
	delete(c.items, key)
}

// Method returns the request method
func (c *Context) Method() string {
	return c.Request.Method
}

// Path returns the app-local request path
func (c *Context) Path() string {
	return c.Request.URL.Path
}

// ToFullPath expands an app-relative "~/" path onto the request base path
func (c *Context) ToFullPath(path string) string {
	if path == "" {
		return path
	}
	if c.Request == nil || c.Request.URL.BasePath == "" {
		return strings.TrimPrefix(path, "~")
	}
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	return c.Request.URL.BasePath + strings.TrimPrefix(path, "~")
}

// Close releases every io.Closer in the item store and the request body
func (c *Context) Close() error {
	var errs []error
	for key, v := range c.items {
		if closer, ok := v.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		delete(c.items, key)
	}
	if c.Request != nil {
		if err := c.Request.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
