package router

import (
	"github.com/searchktools/fast-host/core/codec"
	"github.com/searchktools/fast-host/core/http"
)

// ResolveResult is the route chosen for a request and its captured parameters
type ResolveResult struct {
	Route  *Route
	Params http.Params
}

// Resolver maps requests onto registered routes
type Resolver struct {
	trie      *Trie
	catalog   *Catalog
	codecs    *codec.Registry
	safeRoots []string
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithCodecs sets the codecs used by the per-request formatter
func WithCodecs(reg *codec.Registry) ResolverOption {
	return func(r *Resolver) {
		r.codecs = reg
	}
}

// WithSafeRoots sets the directories file responses may read from
func WithSafeRoots(roots ...string) ResolverOption {
	return func(r *Resolver) {
		r.safeRoots = append(r.safeRoots, roots...)
	}
}

// NewResolver builds the trie from the catalog
func NewResolver(catalog *Catalog, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		trie:    NewTrie(),
		catalog: catalog,
		codecs:  codec.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.trie.Build(catalog.Cache())
	return r
}

// Trie returns the underlying route trie
func (r *Resolver) Trie() *Trie {
	return r.trie
}

// Resolve picks the most specific guard-passing route for the request
// and binds a response formatter to c. It falls back to a fresh 405 route
// when only other methods match and to a fresh 404 route otherwise.
func (r *Resolver) Resolve(c *http.Context) ResolveResult {
	c.Formatter = http.NewFormatter(c, r.codecs, r.safeRoots)

	method := c.Request.Method
	path := c.Request.Path()

	for _, m := range r.trie.Matches(method, path, c) {
		module, ok := r.catalog.Module(m.ModuleKey)
		if !ok || m.RouteIndex >= len(module.routes) {
			continue
		}
		return ResolveResult{Route: module.routes[m.RouteIndex], Params: m.Params}
	}

	if allowed := r.trie.Options(path, c); len(allowed) > 0 {
		return ResolveResult{Route: MethodNotAllowedRoute(method, path, allowed), Params: http.Params{}}
	}
	return ResolveResult{Route: NotFoundRoute(method, path), Params: http.Params{}}
}
