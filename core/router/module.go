package router

import (
	"fmt"
	"strings"
)

// Option customizes a route at registration
type Option func(*RouteDescription)

// WithName sets the display name of a route
func WithName(name string) Option {
	return func(d *RouteDescription) {
		d.Name = name
	}
}

// WithCondition attaches a guard to a route
func WithCondition(cond Condition) Option {
	return func(d *RouteDescription) {
		d.Condition = cond
	}
}

// Module is a named route registration table sharing a base path
type Module struct {
	name     string
	basePath string
	routes   []*Route
}

// NewModule creates a module; a trailing "Module" is dropped from the name
func NewModule(name, basePath string) *Module {
	if trimmed := strings.TrimSuffix(name, "Module"); trimmed != "" {
		name = trimmed
	}
	return &Module{
		name:     name,
		basePath: "/" + strings.Trim(basePath, "/"),
	}
}

// Name returns the module key
func (m *Module) Name() string { return m.name }

// BasePath returns the path prefix shared by the module's routes
func (m *Module) BasePath() string { return m.basePath }

// Routes returns the registered routes in order
func (m *Module) Routes() []*Route {
	return m.routes
}

// Route registers an action for method and path relative to the base path
func (m *Module) Route(method, path string, action Action, opts ...Option) *Module {
	if action == nil {
		panic("route action must not be nil")
	}
	full := m.fullPath(path)
	desc := NewRouteDescription("", method, full, nil)
	for _, opt := range opts {
		opt(&desc)
	}
	if desc.Name == "" {
		desc.Name = desc.Method + " " + full
	}
	m.routes = append(m.routes, &Route{Description: desc, Action: action})
	return m
}

func (m *Module) fullPath(path string) string {
	path = strings.Trim(path, "/")
	switch {
	case m.basePath == "/" && path == "":
		return "/"
	case m.basePath == "/":
		return "/" + path
	case path == "":
		return m.basePath
	}
	return m.basePath + "/" + path
}

func (m *Module) Get(path string, action Action, opts ...Option) *Module {
	return m.Route("GET", path, action, opts...)
}

func (m *Module) Post(path string, action Action, opts ...Option) *Module {
	return m.Route("POST", path, action, opts...)
}

func (m *Module) Put(path string, action Action, opts ...Option) *Module {
	return m.Route("PUT", path, action, opts...)
}

func (m *Module) Patch(path string, action Action, opts ...Option) *Module {
	return m.Route("PATCH", path, action, opts...)
}

func (m *Module) Delete(path string, action Action, opts ...Option) *Module {
	return m.Route("DELETE", path, action, opts...)
}

func (m *Module) Head(path string, action Action, opts ...Option) *Module {
	return m.Route("HEAD", path, action, opts...)
}

func (m *Module) Options(path string, action Action, opts ...Option) *Module {
	return m.Route("OPTIONS", path, action, opts...)
}

// Catalog holds modules by key, in registration order
type Catalog struct {
	keys    []string
	modules map[string]*Module
}

// NewCatalog creates a catalog from modules
func NewCatalog(modules ...*Module) *Catalog {
	c := &Catalog{modules: make(map[string]*Module)}
	for _, m := range modules {
		c.Add(m)
	}
	return c
}

// Add registers a module. Keys must be unique.
func (c *Catalog) Add(m *Module) {
	if _, exists := c.modules[m.name]; exists {
		panic(fmt.Sprintf("module %q is already registered", m.name))
	}
	c.keys = append(c.keys, m.name)
	c.modules[m.name] = m
}

// Module returns a module by key
func (c *Catalog) Module(key string) (*Module, bool) {
	m, ok := c.modules[key]
	return m, ok
}

// Modules returns the modules in registration order
func (c *Catalog) Modules() []*Module {
	out := make([]*Module, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.modules[k])
	}
	return out
}

// IndexedRoute is a route description with its position in the owning module
type IndexedRoute struct {
	Index       int
	Description RouteDescription
}

// CacheEntry lists the routes of one module
type CacheEntry struct {
	ModuleKey string
	Routes    []IndexedRoute
}

// RouteCache is the ordered index of every registered route
type RouteCache []CacheEntry

// Cache builds the route cache from the registered modules
func (c *Catalog) Cache() RouteCache {
	cache := make(RouteCache, 0, len(c.keys))
	for _, m := range c.Modules() {
		entry := CacheEntry{ModuleKey: m.name, Routes: make([]IndexedRoute, 0, len(m.routes))}
		for i, r := range m.routes {
			entry.Routes = append(entry.Routes, IndexedRoute{Index: i, Description: r.Description})
		}
		cache = append(cache, entry)
	}
	return cache
}
