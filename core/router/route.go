package router

import (
	"context"
	"sort"
	"strings"

	"github.com/searchktools/fast-host/core/http"
)

// Action handles a resolved request. The result is negotiated into a response.
type Action func(ctx context.Context, c *http.Context) (any, error)

// Condition is a guard evaluated against the live request after trie matching
type Condition func(c *http.Context) bool

// RouteDescription is the immutable metadata of one registered endpoint
type RouteDescription struct {
	Name      string
	Method    string
	Path      string
	Segments  []string
	Condition Condition
}

// NewRouteDescription creates a description, splitting path into segments
func NewRouteDescription(name, method, path string, condition Condition) RouteDescription {
	return RouteDescription{
		Name:      name,
		Method:    strings.ToUpper(method),
		Path:      path,
		Segments:  splitPath(path),
		Condition: condition,
	}
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// Route is a resolved, invocable endpoint
type Route struct {
	Description RouteDescription
	Action      Action
}

func (r *Route) Name() string { return r.Description.Name }
func (r *Route) Method() string { return r.Description.Method }
func (r *Route) Path() string { return r.Description.Path }

// Invoke runs the route action
func (r *Route) Invoke(ctx context.Context, c *http.Context) (any, error) {
	return r.Action(ctx, c)
}

// Names of the fallback routes
const (
	NotFoundName         = "not-found"
	MethodNotAllowedName = "method-not-allowed"
)

// NotFoundRoute creates the 404 route returned when no path matches.
// A new route is built for every failed resolution.
func NotFoundRoute(method, path string) *Route {
	return &Route{
		Description: NewRouteDescription(NotFoundName, method, path, nil),
		Action: func(context.Context, *http.Context) (any, error) {
			return http.NotFound(), nil
		},
	}
}

// MethodNotAllowedRoute creates the 405 route carrying the Allow header
func MethodNotAllowedRoute(method, path string, allowed []string) *Route {
	methods := append([]string(nil), allowed...)
	sort.Strings(methods)
	allow := strings.Join(methods, ", ")

	return &Route{
		Description: NewRouteDescription(MethodNotAllowedName, method, path, nil),
		Action: func(context.Context, *http.Context) (any, error) {
			return http.NewStatus(405).WithHeader("Allow", allow), nil
		},
	}
}
